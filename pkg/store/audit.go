package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/filegate/filegate/pkg/models"
)

// CreateAuditEvent appends one audit record. Events are insert-only.
func (s *GORMStore) CreateAuditEvent(ctx context.Context, event *models.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	return s.db.WithContext(ctx).Create(event).Error
}

// ListAuditEventsByFile returns the audit trail for one file, oldest first.
func (s *GORMStore) ListAuditEventsByFile(ctx context.Context, fileID string) ([]models.AuditEvent, error) {
	var events []models.AuditEvent
	err := s.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
