package history

import (
	"context"
	"fmt"

	"github.com/adlens/campledger/internal/history/domain"
	taskdomain "github.com/adlens/campledger/internal/taskqueue/domain"
	"github.com/adlens/campledger/internal/taskqueue/worker"
	"github.com/bwmarrin/snowflake"
)

// TaskRecordChange is the queue task that persists one change record.
const TaskRecordChange = "history.record_change"

// LockKey serializes queue work per entity so history for one entity is
// recorded in submission order.
func LockKey(entityType domain.EntityType, entityID snowflake.ID) string {
	return fmt.Sprintf("%s-%s", entityType, entityID)
}

// TaskPayload shapes a change for the task queue.
func TaskPayload(change domain.Change) map[string]interface{} {
	payload := map[string]interface{}{
		"entity_type": string(change.EntityType),
		"entity_id":   change.EntityID.String(),
		"new_value":   change.NewValue,
		"changed_by":  change.ChangedBy.String(),
	}
	if change.OldValue != nil {
		payload["old_value"] = change.OldValue
	}
	return payload
}

// NewTaskHandler builds the worker handler that records queued changes. The
// service skips no-ops on its own, so replayed tasks stay idempotent.
func NewTaskHandler(svc domain.Service) worker.Handler {
	return func(ctx context.Context, task taskdomain.Task) error {
		change, err := changeFromPayload(map[string]interface{}(task.Payload))
		if err != nil {
			return err
		}
		return svc.Record(ctx, change)
	}
}

func changeFromPayload(payload map[string]interface{}) (domain.Change, error) {
	entityType, _ := payload["entity_type"].(string)
	if entityType == "" {
		return domain.Change{}, fmt.Errorf("history task: missing entity_type")
	}

	entityID, err := parseIDField(payload, "entity_id")
	if err != nil {
		return domain.Change{}, err
	}
	changedBy, err := parseIDField(payload, "changed_by")
	if err != nil {
		return domain.Change{}, err
	}

	return domain.Change{
		EntityType: domain.EntityType(entityType),
		EntityID:   entityID,
		OldValue:   mapField(payload, "old_value"),
		NewValue:   mapField(payload, "new_value"),
		ChangedBy:  changedBy,
	}, nil
}

func parseIDField(payload map[string]interface{}, key string) (snowflake.ID, error) {
	raw, _ := payload[key].(string)
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("history task: invalid %s %q", key, raw)
	}
	return id, nil
}

func mapField(payload map[string]interface{}, key string) map[string]interface{} {
	value, ok := payload[key].(map[string]interface{})
	if !ok {
		return nil
	}
	return value
}
