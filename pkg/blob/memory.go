package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and local development. It
// mints fake URLs and serves object bytes from a map.
type MemoryStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string][]byte
}

// NewMemoryStore creates an empty in-memory blob store.
func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{
		bucket:  bucket,
		objects: make(map[string][]byte),
	}
}

// Put stores object bytes directly. Tests use this to simulate a client
// uploading through its presigned URL.
func (m *MemoryStore) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
}

// Delete removes an object.
func (m *MemoryStore) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
}

func (m *MemoryStore) Bucket() string {
	return m.bucket
}

func (m *MemoryStore) PresignPut(_ context.Context, key, contentType string, ttl time.Duration) (*PresignedUpload, error) {
	return &PresignedUpload{
		URL: fmt.Sprintf("https://blob.invalid/%s/%s?X-Amz-Expires=%d",
			m.bucket, url.PathEscape(key), int(ttl.Seconds())),
		Headers: map[string]string{"Content-Type": contentType},
	}, nil
}

func (m *MemoryStore) PresignGet(_ context.Context, key string, ttl time.Duration, disposition string) (string, error) {
	u := fmt.Sprintf("https://blob.invalid/%s/%s?X-Amz-Expires=%d",
		m.bucket, url.PathEscape(key), int(ttl.Seconds()))
	if disposition != "" {
		u += "&response-content-disposition=" + url.QueryEscape(disposition)
	}
	return u, nil
}

func (m *MemoryStore) Head(_ context.Context, _, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return 0, ErrNotFound
	}
	return int64(len(data)), nil
}

func (m *MemoryStore) Open(_ context.Context, _, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), data...))), nil
}

func (m *MemoryStore) GetRange(_ context.Context, _, key string, start, end int64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	if start >= int64(len(data)) {
		return nil, nil
	}
	if end >= int64(len(data)) {
		end = int64(len(data)) - 1
	}
	return append([]byte(nil), data[start:end+1]...), nil
}
