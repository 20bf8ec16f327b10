package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMentions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "single mention",
			content: "thanks @alice for the numbers",
			want:    []string{"alice"},
		},
		{
			name:    "mention at start",
			content: "@bob can you check this",
			want:    []string{"bob"},
		},
		{
			name:    "multiple mentions keep order",
			content: "@carol see @alice and @bob",
			want:    []string{"carol", "alice", "bob"},
		},
		{
			name:    "duplicates collapse case insensitively",
			content: "@Alice and @alice and @ALICE",
			want:    []string{"alice"},
		},
		{
			name:    "email addresses are not mentions",
			content: "mail me at billing@example.com",
			want:    nil,
		},
		{
			name:    "punctuation ends a mention",
			content: "ping @dave, then @erin.",
			want:    []string{"dave", "erin"},
		},
		{
			name:    "underscores and digits allowed",
			content: "cc @ops_2 on this",
			want:    []string{"ops_2"},
		},
		{
			name:    "bare at sign ignored",
			content: "rate is 12 @ 0.50",
			want:    nil,
		},
		{
			name:    "over-length token rejected",
			content: "hi @" + strings.Repeat("a", 51),
			want:    nil,
		},
		{
			name:    "max length token accepted",
			content: "hi @" + strings.Repeat("a", 50),
			want:    []string{strings.Repeat("a", 50)},
		},
		{
			name:    "empty content",
			content: "",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMentions(tt.content))
		})
	}
}
