//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/filegate/filegate/pkg/models"
)

// setupPostgresStore starts a disposable PostgreSQL container and returns a
// store backed by it. The embedded SQL migrations run as part of New.
func setupPostgresStore(t *testing.T) *GORMStore {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("filegate_test"),
		postgres.WithUsername("filegate_test"),
		postgres.WithPassword("filegate_test"),
		testcontainers.WithWaitStrategyAndDeadline(5*time.Minute,
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	store, err := New(&Config{
		Type: DatabaseTypePostgres,
		Postgres: PostgresConfig{
			Host:     host,
			Port:     port.Int(),
			Database: "filegate_test",
			User:     "filegate_test",
			Password: "filegate_test",
			SSLMode:  "disable",
		},
	})
	if err != nil {
		t.Fatalf("failed to create postgres store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPostgresMigrationsAndCRUD(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	user := &models.User{
		Email:        "pg@example.com",
		PasswordHash: "hash",
		Role:         string(models.RoleUser),
	}
	if _, err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	fileID, err := store.CreateFile(ctx, &models.FileObject{
		OwnerID:             user.ID,
		Bucket:              "uploads",
		ObjectKey:           "u/pg/report.pdf",
		OriginalFilename:    "report.pdf",
		DeclaredContentType: "application/pdf",
		ChecksumSHA256:      "00",
		State:               models.StateInitiated,
	})
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	if err := store.TransitionFile(ctx, fileID, models.StateInitiated, models.StateScanning, nil); err != nil {
		t.Fatalf("transition failed: %v", err)
	}

	// Unique (bucket, key) comes from the SQL migration, not AutoMigrate.
	_, err = store.CreateFile(ctx, &models.FileObject{
		OwnerID:             user.ID,
		Bucket:              "uploads",
		ObjectKey:           "u/pg/report.pdf",
		OriginalFilename:    "report.pdf",
		DeclaredContentType: "application/pdf",
		ChecksumSHA256:      "00",
	})
	if !errors.Is(err, models.ErrDuplicateFile) {
		t.Errorf("expected ErrDuplicateFile, got %v", err)
	}

	fid := fileID
	if err := store.CreateAuditEvent(ctx, &models.AuditEvent{
		ActorUserID: &user.ID,
		Action:      models.ActionFileInit,
		FileID:      &fid,
		Details:     models.JSONMap{"bucket": "uploads", "size": float64(1)},
	}); err != nil {
		t.Fatalf("failed to create audit event: %v", err)
	}
	events, err := store.ListAuditEventsByFile(ctx, fid)
	if err != nil || len(events) != 1 {
		t.Fatalf("expected 1 audit event, got %d (err %v)", len(events), err)
	}
}

func TestPostgresQuotaConcurrency(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	const owner = "concurrent-owner"
	const workers = 8
	const perWorker = 5

	errCh := make(chan error, workers)
	for w := 0; w < workers; w++ {
		go func() {
			for i := 0; i < perWorker; i++ {
				if err := store.IncrementUsage(ctx, owner, 10); err != nil {
					errCh <- err
					return
				}
			}
			errCh <- nil
		}()
	}
	for w := 0; w < workers; w++ {
		if err := <-errCh; err != nil {
			t.Fatalf("concurrent increment failed: %v", err)
		}
	}

	usage, err := store.GetUsage(ctx, owner)
	if err != nil {
		t.Fatalf("failed to get usage: %v", err)
	}
	if usage.FilesCount != workers*perWorker {
		t.Errorf("expected %d files, got %d", workers*perWorker, usage.FilesCount)
	}
	if usage.BytesStored != workers*perWorker*10 {
		t.Errorf("expected %d bytes, got %d", workers*perWorker*10, usage.BytesStored)
	}
}
