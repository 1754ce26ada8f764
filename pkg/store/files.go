package store

import (
	"context"
	"fmt"

	"github.com/filegate/filegate/pkg/models"
)

func (s *GORMStore) CreateFile(ctx context.Context, file *models.FileObject) (string, error) {
	return createWithID(s.db, ctx, file, func(f *models.FileObject, id string) { f.ID = id }, file.ID, models.ErrDuplicateFile)
}

func (s *GORMStore) GetFile(ctx context.Context, id string) (*models.FileObject, error) {
	return getByField[models.FileObject](s.db, ctx, "id", id, models.ErrFileNotFound)
}

// GetFileForOwner fetches a file only if it belongs to the given owner.
// Files owned by someone else surface as not found rather than forbidden.
func (s *GORMStore) GetFileForOwner(ctx context.Context, id, ownerID string) (*models.FileObject, error) {
	var file models.FileObject
	err := s.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&file).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrFileNotFound)
	}
	return &file, nil
}

// ListFilesByOwner returns the owner's files newest first.
func (s *GORMStore) ListFilesByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.FileObject, error) {
	var files []models.FileObject
	q := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}

// TransitionFile moves a file from one state to another with an optimistic
// guard on the current state. Extra column updates ride along in the same
// UPDATE. If the row was concurrently moved out of `from`, no rows match and
// ErrStaleState is returned so callers can re-read and decide.
func (s *GORMStore) TransitionFile(ctx context.Context, id string, from, to models.FileState, updates map[string]any) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, to)
	}
	if updates == nil {
		updates = map[string]any{}
	}
	updates["state"] = to

	res := s.db.WithContext(ctx).
		Model(&models.FileObject{}).
		Where("id = ? AND state = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var file models.FileObject
		if err := s.db.WithContext(ctx).Where("id = ?", id).First(&file).Error; err != nil {
			return convertNotFoundError(err, models.ErrFileNotFound)
		}
		return fmt.Errorf("%w: file %s is %s, expected %s", models.ErrStaleState, id, file.State, from)
	}
	return nil
}

// UpdateFileFields patches arbitrary columns without a state guard. Used for
// bookkeeping fields like size_bytes that do not participate in the state
// machine.
func (s *GORMStore) UpdateFileFields(ctx context.Context, id string, updates map[string]any) error {
	res := s.db.WithContext(ctx).
		Model(&models.FileObject{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrFileNotFound
	}
	return nil
}
