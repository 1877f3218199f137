package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryStore keeps media in process memory. Used when MinIO is not configured.
type MemoryStore struct {
	mu          sync.RWMutex
	objects     map[string]Object
	maxFileSize int64
}

func NewMemoryStore(maxFileSize int64) *MemoryStore {
	return &MemoryStore{objects: make(map[string]Object), maxFileSize: maxFileSize}
}

func (s *MemoryStore) UploadMedia(_ context.Context, folder, fileName, contentType string, reader io.Reader, size int64) (string, error) {
	if err := s.ValidateContentType(contentType); err != nil {
		return "", err
	}
	if err := s.ValidateFileSize(size); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(reader, size)); err != nil {
		return "", fmt.Errorf("failed to read media: %w", err)
	}

	key := objectKey(folder, fileName)
	s.mu.Lock()
	s.objects[key] = Object{Key: key, ContentType: NormalizeContentType(contentType), Data: buf.Bytes()}
	s.mu.Unlock()
	return key, nil
}

func (s *MemoryStore) Fetch(_ context.Context, key string) (Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return Object{}, ErrObjectNotFound
	}
	return Object{Key: obj.Key, ContentType: obj.ContentType, Data: append([]byte(nil), obj.Data...)}, nil
}

func (s *MemoryStore) ValidateContentType(contentType string) error {
	return validateContentType(contentType)
}

func (s *MemoryStore) ValidateFileSize(sizeBytes int64) error {
	return validateFileSize(sizeBytes, s.maxFileSize)
}

var _ MediaStore = (*MemoryStore)(nil)
