// Package quota gates uploads against per-owner ceilings. Admission at init
// checks only the file count (size is unknown then); the byte ceiling is
// enforced atomically when the scan worker activates the file.
package quota

import (
	"context"
	"fmt"

	"github.com/filegate/filegate/pkg/models"
	"github.com/filegate/filegate/pkg/store"
)

// Counters is the persistence surface the quota service needs.
// *store.GORMStore satisfies this.
type Counters interface {
	GetUsage(ctx context.Context, ownerID string) (*models.UsageCounter, error)
	IncrementUsage(ctx context.Context, ownerID string, sizeBytes int64) error
	DecrementUsage(ctx context.Context, ownerID string, sizeBytes int64) error
}

// Service enforces the per-owner quota policy.
type Service struct {
	counters Counters
}

// NewService creates a quota service over the given counter store.
func NewService(counters Counters) *Service {
	return &Service{counters: counters}
}

// EnforceInit admits a new init call. Only the file-count ceiling applies
// here; the declared size is untrusted and the real size is unknown.
func (s *Service) EnforceInit(ctx context.Context, ownerID string) error {
	usage, err := s.counters.GetUsage(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to read usage for %s: %w", ownerID, err)
	}
	if usage.FilesCount >= store.MaxFilesPerOwner {
		return models.ErrQuotaExceeded
	}
	return nil
}

// IncrementOnActive atomically admits the file against both ceilings at
// activation time. Returns models.ErrQuotaExceeded when either would be
// crossed; the caller quarantines.
func (s *Service) IncrementOnActive(ctx context.Context, ownerID string, sizeBytes int64) error {
	return s.counters.IncrementUsage(ctx, ownerID, sizeBytes)
}

// DecrementOnDelete releases the file's quota after a deletion.
func (s *Service) DecrementOnDelete(ctx context.Context, ownerID string, sizeBytes int64) error {
	return s.counters.DecrementUsage(ctx, ownerID, sizeBytes)
}

// Usage returns the owner's current counters.
func (s *Service) Usage(ctx context.Context, ownerID string) (*models.UsageCounter, error) {
	return s.counters.GetUsage(ctx, ownerID)
}
