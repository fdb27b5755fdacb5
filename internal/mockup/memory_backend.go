package mockup

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBackend is an in-process Backend, for tests and local development.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: make(map[string][]byte)}
}

func (b *MemoryBackend) Put(ctx context.Context, bucket, path string, data []byte, mimeType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[bucket+"/"+path] = append([]byte(nil), data...)
	return nil
}

// Get returns a previously-stored object, for tests that need to read back
// what Analyze would have fetched via a signed URL.
func (b *MemoryBackend) Get(bucket, path string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.objects[bucket+"/"+path]
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", bucket, path)
	}
	return data, nil
}
