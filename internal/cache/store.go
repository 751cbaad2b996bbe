package cache

import (
	"context"
	"errors"
	"fmt"

	"validert/internal/models"
)

// Store persists analysis results under their (document, scoring model, pipeline)
// hash triple. A key that differs in any component is a miss.
type Store interface {
	Get(ctx context.Context, key models.CacheKey) (models.CacheEntry, bool, error)
	Put(ctx context.Context, entry models.CacheEntry) error
}

var ErrIncompleteKey = errors.New("cache key needs all three hashes")

func validKey(k models.CacheKey) bool {
	return k.DocumentHash != "" && k.ScoringModelSHA != "" && k.PipelineSHA != ""
}

func checkEntry(e models.CacheEntry) error {
	if !validKey(e.CacheKey) {
		return ErrIncompleteKey
	}
	if len(e.DetectedPoints) == 0 || len(e.ScoringResult) == 0 || len(e.ModelOutput) == 0 {
		return fmt.Errorf("cache entry %s: missing payload", e.CacheKey)
	}
	return nil
}

func cloneEntry(e models.CacheEntry) models.CacheEntry {
	e.DetectedPoints = append([]byte(nil), e.DetectedPoints...)
	e.ScoringResult = append([]byte(nil), e.ScoringResult...)
	e.ModelOutput = append([]byte(nil), e.ModelOutput...)
	return e
}

// Tiered reads through its stores in order and back-fills faster stores on a hit.
// Writes go to the last (authoritative) store first; faster stores are only written
// once that succeeds.
type Tiered struct {
	stores []Store
}

func NewTiered(stores ...Store) *Tiered {
	out := make([]Store, 0, len(stores))
	for _, s := range stores {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Tiered{stores: out}
}

func (t *Tiered) Get(ctx context.Context, key models.CacheKey) (models.CacheEntry, bool, error) {
	if !validKey(key) {
		return models.CacheEntry{}, false, nil
	}
	for i, s := range t.stores {
		e, ok, err := s.Get(ctx, key)
		if err != nil {
			return models.CacheEntry{}, false, fmt.Errorf("cache tier %d get: %w", i, err)
		}
		if !ok {
			continue
		}
		for j := 0; j < i; j++ {
			_ = t.stores[j].Put(ctx, e)
		}
		return e, true, nil
	}
	return models.CacheEntry{}, false, nil
}

func (t *Tiered) Put(ctx context.Context, e models.CacheEntry) error {
	if err := checkEntry(e); err != nil {
		return err
	}
	for i := len(t.stores) - 1; i >= 0; i-- {
		if err := t.stores[i].Put(ctx, e); err != nil {
			if i == len(t.stores)-1 {
				return fmt.Errorf("cache put: %w", err)
			}
		}
	}
	return nil
}
