package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("uploads")

	t.Run("head missing object", func(t *testing.T) {
		_, err := store.Head(ctx, "uploads", "nope")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("put then head", func(t *testing.T) {
		store.Put("a/b.txt", []byte("hello world"))
		size, err := store.Head(ctx, "uploads", "a/b.txt")
		if err != nil {
			t.Fatalf("head failed: %v", err)
		}
		if size != 11 {
			t.Errorf("expected size 11, got %d", size)
		}
	})

	t.Run("open streams full object", func(t *testing.T) {
		rc, err := store.Open(ctx, "uploads", "a/b.txt")
		if err != nil {
			t.Fatalf("open failed: %v", err)
		}
		defer rc.Close()
		data, _ := io.ReadAll(rc)
		if string(data) != "hello world" {
			t.Errorf("unexpected body %q", data)
		}
	})

	t.Run("range read", func(t *testing.T) {
		data, err := store.GetRange(ctx, "uploads", "a/b.txt", 0, 4)
		if err != nil {
			t.Fatalf("range read failed: %v", err)
		}
		if string(data) != "hello" {
			t.Errorf("expected 'hello', got %q", data)
		}
	})

	t.Run("range clamped to object size", func(t *testing.T) {
		data, err := store.GetRange(ctx, "uploads", "a/b.txt", 0, 16383)
		if err != nil {
			t.Fatalf("range read failed: %v", err)
		}
		if string(data) != "hello world" {
			t.Errorf("expected full body, got %q", data)
		}
	})

	t.Run("range past end yields empty", func(t *testing.T) {
		data, err := store.GetRange(ctx, "uploads", "a/b.txt", 100, 200)
		if err != nil {
			t.Fatalf("range read failed: %v", err)
		}
		if len(data) != 0 {
			t.Errorf("expected empty result, got %q", data)
		}
	})

	t.Run("presign put carries content type header", func(t *testing.T) {
		up, err := store.PresignPut(ctx, "a/b.txt", "text/plain", 15*time.Minute)
		if err != nil {
			t.Fatalf("presign failed: %v", err)
		}
		if up.URL == "" {
			t.Error("expected non-empty URL")
		}
		if up.Headers["Content-Type"] != "text/plain" {
			t.Errorf("expected Content-Type header, got %v", up.Headers)
		}
	})

	t.Run("presign get binds disposition", func(t *testing.T) {
		u, err := store.PresignGet(ctx, "a/b.txt", 5*time.Minute, `attachment; filename="b.txt"`)
		if err != nil {
			t.Fatalf("presign failed: %v", err)
		}
		if !strings.Contains(u, "response-content-disposition=") {
			t.Errorf("expected disposition in URL, got %q", u)
		}
	})
}
