// Package audit records append-only events for state transitions and minted
// download URLs. Recording is best-effort: a failed write is logged and
// never aborts the transition it describes.
package audit

import (
	"context"

	"github.com/filegate/filegate/internal/logger"
	"github.com/filegate/filegate/pkg/models"
)

// Sink persists audit events. *store.GORMStore satisfies this.
type Sink interface {
	CreateAuditEvent(ctx context.Context, event *models.AuditEvent) error
}

// Recorder writes audit events to a sink.
type Recorder struct {
	sink Sink
}

// NewRecorder creates an audit recorder backed by the given sink.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink}
}

// Event captures the request-scoped attributes of one audit record.
type Event struct {
	ActorUserID string
	Action      string
	FileID      string
	IP          string
	UserAgent   string
	Details     models.JSONMap
}

// Record persists one event. Errors are swallowed after logging so the
// primary transition is never rolled back by audit trouble.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	event := &models.AuditEvent{
		Action:    ev.Action,
		IP:        ev.IP,
		UserAgent: ev.UserAgent,
		Details:   ev.Details,
	}
	if ev.ActorUserID != "" {
		event.ActorUserID = &ev.ActorUserID
	}
	if ev.FileID != "" {
		event.FileID = &ev.FileID
	}

	if err := r.sink.CreateAuditEvent(ctx, event); err != nil {
		logger.Error("failed to record audit event",
			logger.KeyError, err.Error(),
			"action", ev.Action,
			logger.KeyFileID, ev.FileID,
		)
	}
}
