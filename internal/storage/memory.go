package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// MemoryObject is an object held by MemoryStorage.
type MemoryObject struct {
	Data        []byte
	ContentType string
	Public      bool
}

// MemoryStorage implements ObjectStorage in process memory, for local runs and tests.
type MemoryStorage struct {
	mu        sync.RWMutex
	objects   map[string]*MemoryObject
	publicURL string

	// FailUpload, when set, is consulted before every upload.
	FailUpload func(key string) error
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage(publicURL string) *MemoryStorage {
	if publicURL == "" {
		publicURL = "memory://"
	}
	return &MemoryStorage{
		objects:   make(map[string]*MemoryObject),
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

// EnsureBucket is a no-op.
func (s *MemoryStorage) EnsureBucket(ctx context.Context) error {
	return nil
}

// Upload stores the reader's content under key.
func (s *MemoryStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.FailUpload != nil {
		if err := s.FailUpload(key); err != nil {
			return fmt.Errorf("failed to upload object: %w", err)
		}
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read upload body: %w", err)
	}

	s.mu.Lock()
	s.objects[key] = &MemoryObject{Data: data, ContentType: contentType}
	s.mu.Unlock()
	return nil
}

// Download returns a copy of the object's content.
func (s *MemoryStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(obj.Data))), nil
}

// GetURL returns the URL for accessing an object
func (s *MemoryStorage) GetURL(key string) string {
	return fmt.Sprintf("%s/%s", s.publicURL, key)
}

// Delete removes an object; missing keys are not an error.
func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Exists checks if an object exists
func (s *MemoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	_, ok := s.objects[key]
	s.mu.RUnlock()
	return ok, nil
}

// MakePublic flags an existing object as public.
func (s *MemoryStorage) MakePublic(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	obj.Public = true
	return nil
}

// Object returns a stored object.
func (s *MemoryStorage) Object(key string) (MemoryObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return MemoryObject{}, false
	}
	return *obj, true
}

// Keys lists stored keys in lexical order.
func (s *MemoryStorage) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}
