package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"validert/internal/models"
)

const defaultMemorySize = 256

// MemoryStore is an in-process LRU tier in front of the shared stores.
type MemoryStore struct {
	lru *lru.Cache[models.CacheKey, models.CacheEntry]
	now func() time.Time
}

func NewMemoryStore(size int) (*MemoryStore, error) {
	if size <= 0 {
		size = defaultMemorySize
	}
	c, err := lru.New[models.CacheKey, models.CacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{lru: c, now: time.Now}, nil
}

func (m *MemoryStore) Get(_ context.Context, key models.CacheKey) (models.CacheEntry, bool, error) {
	if !validKey(key) {
		return models.CacheEntry{}, false, nil
	}
	e, ok := m.lru.Get(key)
	if !ok {
		return models.CacheEntry{}, false, nil
	}
	return cloneEntry(e), true, nil
}

func (m *MemoryStore) Put(_ context.Context, e models.CacheEntry) error {
	if err := checkEntry(e); err != nil {
		return err
	}
	now := m.now().UTC()
	if prev, ok := m.lru.Peek(e.CacheKey); ok && !prev.CreatedAt.IsZero() {
		e.CreatedAt = prev.CreatedAt
	} else if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	m.lru.Add(e.CacheKey, cloneEntry(e))
	return nil
}

func (m *MemoryStore) Len() int {
	return m.lru.Len()
}
