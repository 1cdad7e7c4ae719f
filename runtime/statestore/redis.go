package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/domini04/bluestar/runtime/workflow"
)

const (
	defaultRedisPrefix = "bluestar"
	// DefaultRedisTTL bounds how long an abandoned run is kept.
	DefaultRedisTTL = 7 * 24 * time.Hour
)

// RedisStore keeps checkpoints in Redis as JSON strings with a TTL. A sorted
// set indexes runs by update time and a hash holds their summaries.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the time-to-live of a checkpoint. Zero disables expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix. Default is "bluestar".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a Redis-backed store.
//
// Example:
//
//	store := NewRedisStore(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    WithTTL(48 * time.Hour),
//	)
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		ttl:    DefaultRedisTTL,
		prefix: defaultRedisPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Load retrieves a checkpoint by run ID.
func (s *RedisStore) Load(ctx context.Context, runID string) (*workflow.Checkpoint, error) {
	if runID == "" {
		return nil, ErrInvalidID
	}
	data, err := s.client.Get(ctx, s.runKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return decode(data)
}

// Save stores the checkpoint and updates the index in one round-trip.
func (s *RedisStore) Save(ctx context.Context, cp *workflow.Checkpoint) error {
	if err := checkSave(cp); err != nil {
		return err
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	summary, err := json.Marshal(summarize(cp))
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.runKey(cp.RunID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(cp.UpdatedAt.UnixMilli()), Member: cp.RunID})
	pipe.HSet(ctx, s.summaryKey(), cp.RunID, summary)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// Delete removes a run and its index entries.
func (s *RedisStore) Delete(ctx context.Context, runID string) error {
	if runID == "" {
		return ErrInvalidID
	}
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.runKey(runID))
	pipe.ZRem(ctx, s.indexKey(), runID)
	pipe.HDel(ctx, s.summaryKey(), runID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return nil
}

// List returns run summaries, most recently updated first. Index entries
// whose checkpoint has expired are pruned on the way.
func (s *RedisStore) List(ctx context.Context, opts ListOptions) ([]Summary, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange failed: %w", err)
	}
	if len(ids) == 0 {
		return []Summary{}, nil
	}

	pipe := s.client.Pipeline()
	exists := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		exists[i] = pipe.Exists(ctx, s.runKey(id))
	}
	summaries := pipe.HMGet(ctx, s.summaryKey(), ids...)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis pipeline failed: %w", err)
	}

	var stale []string
	out := make([]Summary, 0, len(ids))
	for i, raw := range summaries.Val() {
		str, ok := raw.(string)
		if !ok || exists[i].Val() == 0 {
			stale = append(stale, ids[i])
			continue
		}
		var sum Summary
		if err := json.Unmarshal([]byte(str), &sum); err != nil {
			return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
		}
		if opts.Status == "" || sum.Status == opts.Status {
			out = append(out, sum)
		}
	}
	if len(stale) > 0 {
		s.prune(ctx, stale)
	}
	return paginate(out, opts), nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) prune(ctx context.Context, ids []string) {
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	pipe := s.client.Pipeline()
	pipe.ZRem(ctx, s.indexKey(), members...)
	pipe.HDel(ctx, s.summaryKey(), ids...)
	_, _ = pipe.Exec(ctx)
}

func (s *RedisStore) runKey(runID string) string {
	return fmt.Sprintf("%s:run:%s", s.prefix, runID)
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":runs"
}

func (s *RedisStore) summaryKey() string {
	return s.prefix + ":summaries"
}
