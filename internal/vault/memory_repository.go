package vault

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Record
	owners  map[string]string
}

// NewMemoryRepository constructs an in-memory repository for tests and development.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		storage: make(map[string]Record),
		owners:  make(map[string]string),
	}
}

func (r *memoryRepository) Create(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[rec.ID]; exists {
		return ErrAlreadyExists
	}
	if _, exists := r.owners[rec.Owner]; exists {
		return ErrAlreadyExists
	}
	r.storage[rec.ID] = rec
	r.owners[rec.Owner] = rec.ID
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.storage[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (r *memoryRepository) GetByOwner(_ context.Context, owner string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.owners[owner]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r.storage[id], nil
}

func (r *memoryRepository) Update(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.storage[rec.ID]
	if !ok {
		return ErrNotFound
	}
	if rec.Owner != current.Owner {
		if _, taken := r.owners[rec.Owner]; taken {
			return ErrAlreadyExists
		}
		delete(r.owners, current.Owner)
		r.owners[rec.Owner] = rec.ID
	}
	r.storage[rec.ID] = rec
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.storage[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.storage, id)
	delete(r.owners, rec.Owner)
	return nil
}
