package repository

import (
	"context"
	"sync"

	"github.com/example/storefront/pkg/models"
)

// MemoryStore holds the dataset in process. Load and Save copy, so callers
// never share a snapshot with the store.
type MemoryStore struct {
	mu  sync.RWMutex
	doc *models.Document
}

func NewMemoryStore(seed *models.Document) *MemoryStore {
	if seed == nil {
		seed = models.NewDocument()
	}
	return &MemoryStore{doc: seed.Clone().Normalize()}
}

func (s *MemoryStore) Load(ctx context.Context) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc.Clone().Normalize()
	return nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}
