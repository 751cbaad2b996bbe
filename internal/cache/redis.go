package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"validert/internal/models"
)

const redisKeyPrefix = "validert:analysis:"

// RedisStore shares cache entries between worker processes.
type RedisStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

// NewRedisStore connects and pings the server. A zero ttl keeps entries until the
// server evicts them.
func NewRedisStore(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb, ttl: ttl}, nil
}

func NewRedisStoreFromClient(rdb *goredis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func RedisKey(k models.CacheKey) string {
	return redisKeyPrefix + k.DocumentHash + ":" + k.ScoringModelSHA + ":" + k.PipelineSHA
}

func (r *RedisStore) Get(ctx context.Context, key models.CacheKey) (models.CacheEntry, bool, error) {
	if !validKey(key) {
		return models.CacheEntry{}, false, nil
	}
	raw, err := r.rdb.Get(ctx, RedisKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	e, err := decodeEntry(raw)
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("decode cached entry %s: %w", key, err)
	}
	if e.CacheKey != key {
		return models.CacheEntry{}, false, nil
	}
	return e, true, nil
}

// Put stores the payloads byte for byte, so indented JSON comes back indented.
func (r *RedisStore) Put(ctx context.Context, e models.CacheEntry) error {
	if err := checkEntry(e); err != nil {
		return err
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	raw, err := encodeEntry(e)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", e.CacheKey, err)
	}
	if err := r.rdb.Set(ctx, RedisKey(e.CacheKey), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", e.CacheKey, err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}

// redisRecord holds payloads as strings; json.Marshal would compact a RawMessage.
type redisRecord struct {
	models.CacheKey
	DetectedPoints string    `json:"detected_points"`
	ScoringResult  string    `json:"scoring_result"`
	ModelOutput    string    `json:"model_output"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func encodeEntry(e models.CacheEntry) ([]byte, error) {
	return json.Marshal(redisRecord{
		CacheKey:       e.CacheKey,
		DetectedPoints: string(e.DetectedPoints),
		ScoringResult:  string(e.ScoringResult),
		ModelOutput:    string(e.ModelOutput),
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	})
}

func decodeEntry(raw []byte) (models.CacheEntry, error) {
	var rec redisRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return models.CacheEntry{}, err
	}
	return models.CacheEntry{
		CacheKey:       rec.CacheKey,
		DetectedPoints: json.RawMessage(rec.DetectedPoints),
		ScoringResult:  json.RawMessage(rec.ScoringResult),
		ModelOutput:    json.RawMessage(rec.ModelOutput),
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}, nil
}
