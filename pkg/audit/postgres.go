package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresLogger implements audit logging to the audit_events table
type PostgresLogger struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresLogger creates a new database-backed audit logger
func NewPostgresLogger(db *sql.DB) *PostgresLogger {
	return &PostgresLogger{db: db, now: time.Now}
}

// Log inserts the event and sets its ID
func (l *PostgresLogger) Log(ctx context.Context, event *Event) error {
	var metadataJSON []byte
	if len(event.Metadata) > 0 {
		var err error
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_events (
			occurred_at, event_type, status,
			actor_id, organization_id,
			resource_type, resource_id, target_user_id,
			request_id, message, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err := l.db.QueryRowContext(ctx, query,
		event.Timestamp, event.EventType, event.Status,
		nullString(event.ActorID), event.OrganizationID,
		nullString(string(event.ResourceType)), nullString(event.ResourceID), nullString(event.TargetUserID),
		nullString(event.RequestID), event.Message, metadataJSON,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	return nil
}

// Search returns events matching the filter, newest first
func (l *PostgresLogger) Search(ctx context.Context, filter SearchFilter) ([]Event, error) {
	filter = filter.normalized()

	query := `
		SELECT
			id, occurred_at, event_type, status,
			actor_id, organization_id,
			resource_type, resource_id, target_user_id,
			request_id, message, metadata
		FROM audit_events
		WHERE 1=1
	`
	args := []interface{}{}
	argCount := 1

	if filter.OrganizationID != "" {
		query += fmt.Sprintf(" AND organization_id = $%d", argCount)
		args = append(args, filter.OrganizationID)
		argCount++
	}

	if filter.ActorID != "" {
		query += fmt.Sprintf(" AND actor_id = $%d", argCount)
		args = append(args, filter.ActorID)
		argCount++
	}

	if len(filter.EventTypes) > 0 {
		query += fmt.Sprintf(" AND event_type = ANY($%d)", argCount)
		eventTypeStrs := make([]string, len(filter.EventTypes))
		for i, et := range filter.EventTypes {
			eventTypeStrs[i] = string(et)
		}
		args = append(args, pq.Array(eventTypeStrs))
		argCount++
	}

	if filter.Since != nil {
		query += fmt.Sprintf(" AND occurred_at >= $%d", argCount)
		args = append(args, *filter.Since)
		argCount++
	}

	query += fmt.Sprintf(" ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			e                                             Event
			actor, resType, resID, target, reqID, message sql.NullString
			metadata                                      []byte
		)
		if err := rows.Scan(
			&e.ID, &e.Timestamp, &e.EventType, &e.Status,
			&actor, &e.OrganizationID,
			&resType, &resID, &target,
			&reqID, &message, &metadata,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.ActorID = actor.String
		e.ResourceType = ResourceType(resType.String)
		e.ResourceID = resID.String
		e.TargetUserID = target.String
		e.RequestID = reqID.String
		e.Message = message.String
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode audit metadata: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit events: %w", err)
	}

	return events, nil
}

// Purge deletes events older than the retention period and returns how many
// were removed
func (l *PostgresLogger) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := l.now().UTC().Add(-retention)
	result, err := l.db.ExecContext(ctx, `DELETE FROM audit_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit events: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
