// mock_spool.go - In-memory upload spool for handler tests
package testutil

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/score-analyzer/webapp/internal/models"
	"github.com/score-analyzer/webapp/internal/storage"
)

// MockSpool implements storage.Store in memory.
type MockSpool struct {
	mu      sync.Mutex
	files   map[string]*storage.FileInfo
	content map[string][]byte
}

// NewMockSpool creates an empty in-memory spool.
func NewMockSpool() *MockSpool {
	return &MockSpool{
		files:   make(map[string]*storage.FileInfo),
		content: make(map[string][]byte),
	}
}

func (s *MockSpool) Save(name string, r io.Reader) (*storage.FileInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	info := &storage.FileInfo{
		ID:         uuid.New().String(),
		Name:       name,
		Size:       int64(len(data)),
		UploadedAt: time.Now(),
		Stage:      models.StageUploading,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[info.ID] = info
	s.content[info.ID] = data
	return info, nil
}

func (s *MockSpool) Get(id string) (*storage.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", id)
	}
	return info, nil
}

func (s *MockSpool) Open(id string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.content[id]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", id)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MockSpool) List(limit int) ([]*storage.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []*storage.FileInfo
	for _, info := range s.files {
		list = append(list, info)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (s *MockSpool) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("file not found: %s", id)
	}
	delete(s.files, id)
	delete(s.content, id)
	return nil
}

func (s *MockSpool) GetFilePath(id string) (string, error) {
	return "", fmt.Errorf("mock spool has no paths")
}
