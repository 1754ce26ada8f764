package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/filegate/filegate/pkg/models"
)

func (s *GORMStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return getByField[models.User](s.db, ctx, "id", id, models.ErrUserNotFound)
}

func (s *GORMStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return getByField[models.User](s.db, ctx, "email", email, models.ErrUserNotFound)
}

func (s *GORMStore) CreateUser(ctx context.Context, user *models.User) (string, error) {
	return createWithID(s.db, ctx, user, func(u *models.User, id string) { u.ID = id }, user.ID, models.ErrDuplicateUser)
}

// ListUsers returns all users ordered by creation time, oldest first.
func (s *GORMStore) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// ValidateCredentials checks an email/password pair against the stored
// bcrypt hash. Unknown users and wrong passwords are indistinguishable to
// the caller.
func (s *GORMStore) ValidateCredentials(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, models.ErrUserNotFound
	}
	return user, nil
}

// EnsureDemoUser returns the auto-provisioned user backing a demo session,
// creating it on first use. The user id equals the demo session id. The
// password hash is a random value no one can log in with.
func (s *GORMStore) EnsureDemoUser(ctx context.Context, demoID string) (*models.User, error) {
	user, err := s.GetUserByID(ctx, demoID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.New().String()), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user = &models.User{
		ID:           demoID,
		Email:        models.DemoEmail(demoID),
		PasswordHash: string(hash),
		Role:         string(models.RoleUser),
	}
	if _, err := s.CreateUser(ctx, user); err != nil {
		// A concurrent request may have provisioned the same session.
		if errors.Is(err, models.ErrDuplicateUser) {
			return s.GetUserByID(ctx, demoID)
		}
		return nil, err
	}
	return user, nil
}
