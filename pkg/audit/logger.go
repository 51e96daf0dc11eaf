package audit

import (
	"context"
	"time"

	"github.com/platinummonkey/communityhub/pkg/observability"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error
}

// NopLogger discards every event
type NopLogger struct{}

// Log implements Logger
func (NopLogger) Log(ctx context.Context, event *Event) error {
	return nil
}

// NewEvent creates an event stamped with the current time and with the actor
// and request ID carried by the context
func NewEvent(ctx context.Context, eventType EventType, organizationID string) *Event {
	return &Event{
		Timestamp:      time.Now().UTC(),
		EventType:      eventType,
		Status:         EventStatusSuccess,
		ActorID:        observability.GetUserID(ctx),
		OrganizationID: organizationID,
		RequestID:      observability.GetRequestID(ctx),
	}
}

// MultiLogger logs to several audit loggers
type MultiLogger []Logger

// Log logs the event to every logger, continuing past failures. The first
// error is returned.
func (m MultiLogger) Log(ctx context.Context, event *Event) error {
	var firstErr error
	for _, l := range m {
		if l == nil {
			continue
		}
		if err := l.Log(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
