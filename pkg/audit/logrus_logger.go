package audit

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogrusLogger writes audit events to the structured application log
type LogrusLogger struct {
	logger logrus.FieldLogger
}

// NewLogrusLogger creates a new log-backed audit logger
func NewLogrusLogger(logger logrus.FieldLogger) *LogrusLogger {
	return &LogrusLogger{logger: logger}
}

// Log implements Logger
func (l *LogrusLogger) Log(ctx context.Context, event *Event) error {
	fields := logrus.Fields{
		"audit":           true,
		"event_type":      event.EventType,
		"status":          event.Status,
		"organization_id": event.OrganizationID,
	}
	if event.ActorID != "" {
		fields["actor_id"] = event.ActorID
	}
	if event.ResourceID != "" {
		fields["resource_type"] = event.ResourceType
		fields["resource_id"] = event.ResourceID
	}
	if event.TargetUserID != "" {
		fields["target_user_id"] = event.TargetUserID
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}

	entry := l.logger.WithFields(fields)
	if event.Status == EventStatusFailure {
		entry.Warn(event.Message)
		return nil
	}
	entry.Info(event.Message)
	return nil
}
