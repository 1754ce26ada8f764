package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/filegate/filegate/pkg/models"
)

// Quota ceilings applied per owner. Demo sessions share the same ceilings
// through their auto-provisioned user.
const (
	MaxFilesPerOwner = 200
	MaxBytesPerOwner = int64(2_000_000_000)
)

// GetUsage returns the owner's counter, or a zero counter when the owner has
// never activated a file.
func (s *GORMStore) GetUsage(ctx context.Context, ownerID string) (*models.UsageCounter, error) {
	var counter models.UsageCounter
	err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.UsageCounter{OwnerID: ownerID}, nil
		}
		return nil, err
	}
	return &counter, nil
}

// IncrementUsage atomically admits one more file of the given size against
// the owner's ceilings. The counter row is locked for the duration of the
// transaction so concurrent activations for the same owner serialize. Returns
// ErrQuotaExceeded when either ceiling would be crossed.
func (s *GORMStore) IncrementUsage(ctx context.Context, ownerID string, sizeBytes int64) error {
	if sizeBytes < 0 {
		return fmt.Errorf("negative size %d for owner %s", sizeBytes, ownerID)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		counter, err := lockCounter(tx, ownerID)
		if err != nil {
			return err
		}
		if counter.FilesCount+1 > MaxFilesPerOwner || counter.BytesStored+sizeBytes > MaxBytesPerOwner {
			return models.ErrQuotaExceeded
		}
		counter.FilesCount++
		counter.BytesStored += sizeBytes
		return tx.Save(counter).Error
	})
}

// DecrementUsage releases one file's worth of quota. Counters are clamped at
// zero so a double release cannot drive them negative.
func (s *GORMStore) DecrementUsage(ctx context.Context, ownerID string, sizeBytes int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		counter, err := lockCounter(tx, ownerID)
		if err != nil {
			return err
		}
		counter.FilesCount--
		if counter.FilesCount < 0 {
			counter.FilesCount = 0
		}
		counter.BytesStored -= sizeBytes
		if counter.BytesStored < 0 {
			counter.BytesStored = 0
		}
		return tx.Save(counter).Error
	})
}

// lockCounter fetches the owner's counter row under FOR UPDATE, creating it
// if absent. SQLite serializes writers at the database level, so the lock
// clause is only emitted on PostgreSQL.
func lockCounter(tx *gorm.DB, ownerID string) (*models.UsageCounter, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var counter models.UsageCounter
	err := q.Where("owner_id = ?", ownerID).First(&counter).Error
	if err == nil {
		return &counter, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	counter = models.UsageCounter{OwnerID: ownerID}
	if err := tx.Create(&counter).Error; err != nil {
		if !isUniqueConstraintError(err) {
			return nil, err
		}
		// Lost the insert race; take the lock on the winner's row.
		if lockErr := q.Where("owner_id = ?", ownerID).First(&counter).Error; lockErr != nil {
			return nil, lockErr
		}
	}
	return &counter, nil
}
