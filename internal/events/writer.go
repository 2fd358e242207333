package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	DemandCreated = "demand.created"
	DemandUpdated = "demand.updated"
	DemandDeleted = "demand.deleted"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append records an event inside the caller's transaction so the log never
// disagrees with the demands table.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityID string, payload EventPayload) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_id,payload_json) VALUES (?,?,?,?)`,
		ts, evtType, nullable(entityID), string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
