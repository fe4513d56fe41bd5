// Package redis implements the job store on Redis, one hash per job id.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ankemong/newsnexus-sub000/internal/job"
)

// Config controls the Redis connection and key layout.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Store is a Redis-backed job.Store. Each record is a hash keyed by
// prefix+id; HSET writes individual fields, which is exactly the
// field-level atomic primitive the store contract requires. Partial
// updates from the gateway and from workers never read-modify-write the
// whole record, so concurrent writers cannot clobber each other's fields.
type Store struct {
	client *redis.Client
	prefix string
}

// New connects to Redis and pings it to fail fast on a bad address.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("store.redis.addr is required")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		closeErr := client.Close()
		if closeErr != nil {
			return nil, fmt.Errorf("ping redis: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Store{client: client, prefix: prefix}, nil
}

// createScript makes the existence check and the full-record write one
// server-side operation: a reader can never observe a half-written hash
// and a client crash can never leave one behind.
var createScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV))
return 1
`)

// Create persists a new record. UUID generation makes a real collision
// effectively impossible, so the existence guard is a contract check
// rather than an expected path.
func (s *Store) Create(ctx context.Context, j job.Job) error {
	fields := hashFromJob(j)
	args := make([]any, 0, len(fields)*2)
	for name, value := range fields {
		args = append(args, name, value)
	}
	created, err := createScript.Run(ctx, s.client, []string{s.key(j.ID)}, args...).Int()
	if err != nil {
		return fmt.Errorf("redis create %s: %w", j.ID, err)
	}
	if created == 0 {
		return job.ErrAlreadyExists
	}
	return nil
}

// Get fetches a record by id.
func (s *Store) Get(ctx context.Context, id string) (job.Job, error) {
	vals, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return job.Job{}, fmt.Errorf("redis get %s: %w", id, err)
	}
	if len(vals) == 0 {
		return job.Job{}, job.ErrNotFound
	}
	j, err := jobFromHash(vals)
	if err != nil {
		return job.Job{}, fmt.Errorf("redis get %s: %w", id, err)
	}
	return j, nil
}

// UpdateFields applies a partial update. A single multi-field HSET is
// atomic on the server, so either all listed fields land or none do.
func (s *Store) UpdateFields(ctx context.Context, id string, fields job.Fields) error {
	key := s.key(id)
	exists, err := s.client.HExists(ctx, key, fieldID).Result()
	if err != nil {
		return fmt.Errorf("redis update %s: %w", id, err)
	}
	if !exists {
		return job.ErrNotFound
	}
	if fields.Empty() {
		return nil
	}
	if err := s.client.HSet(ctx, key, hashFromFields(fields)).Err(); err != nil {
		return fmt.Errorf("redis update %s: %w", id, err)
	}
	return nil
}

// ListByStatusBefore scans the key space and filters by status and
// staleness. The sweep runs on a timer against a modest key count, so a
// SCAN walk is acceptable here.
func (s *Store) ListByStatusBefore(ctx context.Context, status job.Status, cutoff time.Time) ([]job.Job, error) {
	var out []job.Job
	iter := s.client.Scan(ctx, 0, s.prefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		vals, err := s.client.HGetAll(ctx, iter.Val()).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan read %s: %w", iter.Val(), err)
		}
		if len(vals) == 0 {
			continue
		}
		j, err := jobFromHash(vals)
		if err != nil {
			return nil, fmt.Errorf("redis scan parse %s: %w", iter.Val(), err)
		}
		if j.Status == status && j.UpdatedAt.Before(cutoff) {
			out = append(out, j)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return out, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}

func (s *Store) key(id string) string {
	return s.prefix + id
}
