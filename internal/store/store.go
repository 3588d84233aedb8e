// Package store implements the record store adapter: a Redis-backed
// document store with the conditional-update and index primitives the
// task/worker/queue/event lifecycles need, in place of the teacher's
// stream-specific RedisQueue.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maumercado/task-queue-go/internal/apperr"
	"github.com/maumercado/task-queue-go/internal/config"
	"github.com/maumercado/task-queue-go/internal/metrics"
)

// Collection names the logical document collections persisted in Redis.
type Collection string

const (
	CollQueues  Collection = "queues"
	CollTasks   Collection = "tasks"
	CollWorkers Collection = "workers"
	CollEvents  Collection = "events"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = apperr.NotFound("record not found")

// Store wraps a Redis client with the document/index helpers every
// component (tenant, task, worker, dispatch, report, reaper, events) builds
// on, plus a per-queue mutex used as the transaction boundary (§5 allows a
// single-threaded/cooperative scheduling model; this generalizes the
// teacher's SetNX-based scheduler lock into one mutex per queue instead of a
// single global lock).
type Store struct {
	rdb   *redis.Client
	locks sync.Map // map[string]*sync.Mutex, keyed by queue ID
}

// New constructs a Store from an already-dialed Redis client.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// NewFromConfig dials Redis per cfg, verifying the connection, exactly as
// the teacher's NewRedisQueue does.
func NewFromConfig(cfg *config.RedisConfig) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return New(rdb), nil
}

// Client exposes the underlying Redis client for callers that issue raw
// commands (the reaper ticker's SetNX lock, integration-test cleanup).
func (s *Store) Client() *redis.Client { return s.rdb }

// Close closes the Redis connection.
func (s *Store) Close() error { return s.rdb.Close() }

// Ping is used by the /health/full handler.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func docKey(coll Collection, id string) string {
	return fmt.Sprintf("%s:%s", coll, id)
}

// Put serializes v as JSON and stores it under coll:id.
func (s *Store) Put(ctx context.Context, coll Collection, id string, v interface{}) error {
	defer observeRedis("put")()
	data, err := json.Marshal(v)
	if err != nil {
		return apperr.StoreFatal("marshal document", err)
	}
	if err := s.rdb.Set(ctx, docKey(coll, id), data, 0).Err(); err != nil {
		metrics.RecordRedisError("put")
		return apperr.StoreTransient("put document", err)
	}
	return nil
}

// Get loads the document at coll:id into v. Returns ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, coll Collection, id string, v interface{}) error {
	defer observeRedis("get")()
	data, err := s.rdb.Get(ctx, docKey(coll, id)).Bytes()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		metrics.RecordRedisError("get")
		return apperr.StoreTransient("get document", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperr.StoreFatal("unmarshal document", err)
	}
	return nil
}

// Exists reports whether coll:id is present.
func (s *Store) Exists(ctx context.Context, coll Collection, id string) (bool, error) {
	defer observeRedis("exists")()
	n, err := s.rdb.Exists(ctx, docKey(coll, id)).Result()
	if err != nil {
		metrics.RecordRedisError("exists")
		return false, apperr.StoreTransient("exists check", err)
	}
	return n > 0, nil
}

// Delete removes coll:id. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, coll Collection, id string) error {
	defer observeRedis("delete")()
	if err := s.rdb.Del(ctx, docKey(coll, id)).Err(); err != nil {
		metrics.RecordRedisError("delete")
		return apperr.StoreTransient("delete document", err)
	}
	return nil
}

// observeRedis starts a timer for a Redis operation, returning a func to
// call via defer once it completes.
func observeRedis(operation string) func() {
	start := time.Now()
	return func() {
		metrics.RecordRedisOperation(operation, time.Since(start).Seconds())
	}
}

// lockFor returns the mutex serializing all mutation for the given queue,
// creating it lazily.
func (s *Store) lockFor(queueID string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(queueID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Transaction serializes fn against every other Transaction call for the
// same queueID. This is the store's atomicity boundary for claim/report/
// reap operations: §5 permits a single-threaded/cooperative scheduling
// model, and this gives that guarantee per-queue rather than globally, so
// unrelated queues still make concurrent progress.
func (s *Store) Transaction(ctx context.Context, queueID string, fn func(ctx context.Context) error) error {
	lock := s.lockFor(queueID)
	lock.Lock()
	defer lock.Unlock()
	return fn(ctx)
}
