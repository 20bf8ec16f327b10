package broadcast

import (
	"encoding/json"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscription_CloseUnblocksPumpWithUndeliveredEvents(t *testing.T) {
	sub := &Subscription{
		events: make(chan json.RawMessage, 1),
		done:   make(chan struct{}),
	}

	msgs := make(chan *redis.Message, 4)
	for i := 0; i < 4; i++ {
		msgs <- &redis.Message{Payload: `{"id":"1"}`}
	}

	exited := make(chan struct{})
	go func() {
		sub.pump(msgs)
		close(exited)
	}()

	// Nobody reads events, so the pump parks on the send once the buffer
	// fills. Close must still let it exit.
	time.Sleep(20 * time.Millisecond)
	sub.Close()

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("pump still running after Close")
	}
}

func TestSubscription_EventsCloseWhenSourceCloses(t *testing.T) {
	sub := &Subscription{
		events: make(chan json.RawMessage, 16),
		done:   make(chan struct{}),
	}

	msgs := make(chan *redis.Message, 1)
	msgs <- &redis.Message{Payload: `{"n":1}`}
	close(msgs)

	go sub.pump(msgs)

	event, ok := <-sub.Events()
	require.True(t, ok)
	assert.JSONEq(t, `{"n":1}`, string(event))

	_, ok = <-sub.Events()
	assert.False(t, ok, "events must close after the source closes")
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	sub := &Subscription{
		events: make(chan json.RawMessage, 1),
		done:   make(chan struct{}),
	}

	sub.Close()
	sub.Close()
}

func TestChannelFor(t *testing.T) {
	assert.Equal(t, "notifications:42", ChannelFor(42))
}
