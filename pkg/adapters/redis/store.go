// Package redis persists execution records in Redis and provides a Redis
// backed distributed lock.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/weft/pkg/domain"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "weft:records:"

// noExpiry is the index score of records saved without a TTL (2100-01-01).
const noExpiry = 4102444800

// Store implements ports.RecordStore using Redis.
// Each record is a JSON string; a per-workflow ZSET indexes record ids by expiry.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets the expiration for records.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client returns the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) key(workflowID, recordID string) string {
	return s.prefix + workflowID + ":rec:" + recordID
}

func (s *Store) indexKey(workflowID string) string {
	return s.prefix + workflowID + ":index"
}

// Save persists the record and indexes it under its workflow.
func (s *Store) Save(ctx context.Context, rec *domain.ExecutionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = noExpiry
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(rec.WorkflowID, rec.ID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(rec.WorkflowID), backend.Z{Score: score, Member: rec.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves a record.
func (s *Store) Load(ctx context.Context, workflowID, recordID string) (*domain.ExecutionRecord, error) {
	val, err := s.client.Get(ctx, s.key(workflowID, recordID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	var rec domain.ExecutionRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

// Delete removes the record and its index entry.
func (s *Store) Delete(ctx context.Context, workflowID, recordID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(workflowID, recordID))
	pipe.ZRem(ctx, s.indexKey(workflowID), recordID)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns the workflow's records, newest first.
// Expired entries are pruned from the index lazily.
func (s *Store) List(ctx context.Context, workflowID string) ([]*domain.ExecutionRecord, error) {
	index := s.indexKey(workflowID)
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, index, "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired records: %w", err)
	}

	ids, err := s.client.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	recs := make([]*domain.ExecutionRecord, 0, len(ids))
	if len(ids) == 0 {
		return recs, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(workflowID, id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// Expired before the index caught up.
			continue
		}
		var rec domain.ExecutionRecord
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record %s: %w", ids[i], err)
		}
		recs = append(recs, &rec)
	}
	domain.SortRecordsNewestFirst(recs)
	return recs, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
