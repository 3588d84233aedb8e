package store

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/maumercado/task-queue-go/internal/apperr"
)

// idxKey names a set/sorted-set index key, distinct from document keys so
// the two spaces never collide.
func idxKey(name string) string {
	return "idx:" + name
}

// IndexAdd adds member to the named set index (e.g. a uniqueness index or a
// status index).
func (s *Store) IndexAdd(ctx context.Context, name, member string) error {
	if err := s.rdb.SAdd(ctx, idxKey(name), member).Err(); err != nil {
		return apperr.StoreTransient("index add", err)
	}
	return nil
}

// IndexRemove removes member from the named set index.
func (s *Store) IndexRemove(ctx context.Context, name, member string) error {
	if err := s.rdb.SRem(ctx, idxKey(name), member).Err(); err != nil {
		return apperr.StoreTransient("index remove", err)
	}
	return nil
}

// IndexMembers returns every member of the named set index.
func (s *Store) IndexMembers(ctx context.Context, name string) ([]string, error) {
	members, err := s.rdb.SMembers(ctx, idxKey(name)).Result()
	if err != nil {
		return nil, apperr.StoreTransient("index members", err)
	}
	return members, nil
}

// IndexCard reports the number of members in the named set index.
func (s *Store) IndexCard(ctx context.Context, name string) (int64, error) {
	n, err := s.rdb.SCard(ctx, idxKey(name)).Result()
	if err != nil {
		return 0, apperr.StoreTransient("index card", err)
	}
	return n, nil
}

// IndexIsMember reports whether member belongs to the named set index.
func (s *Store) IndexIsMember(ctx context.Context, name, member string) (bool, error) {
	ok, err := s.rdb.SIsMember(ctx, idxKey(name), member).Result()
	if err != nil {
		return false, apperr.StoreTransient("index membership check", err)
	}
	return ok, nil
}

// SetGet returns every field/value pair of the named hash index (such as
// the unique-name->id index, which maps a string to a string rather than a
// set membership).
func (s *Store) SetGet(ctx context.Context, name string) (map[string]string, error) {
	m, err := s.rdb.HGetAll(ctx, idxKey(name)).Result()
	if err != nil {
		return nil, apperr.StoreTransient("hash index read", err)
	}
	return m, nil
}

// HashSetNX sets field=value in the named hash index (e.g. idx:queue_name ->
// queue name -> queue id), only if the field is not already set. Returns
// false without error if the field already existed (caller treats this as
// a uniqueness conflict).
func (s *Store) HashSetNX(ctx context.Context, name, field, value string) (bool, error) {
	ok, err := s.rdb.HSetNX(ctx, idxKey(name), field, value).Result()
	if err != nil {
		return false, apperr.StoreTransient("hash index setnx", err)
	}
	return ok, nil
}

// HashGet reads field from the named hash index.
func (s *Store) HashGet(ctx context.Context, name, field string) (string, bool, error) {
	v, err := s.rdb.HGet(ctx, idxKey(name), field).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperr.StoreTransient("hash index get", err)
	}
	return v, true, nil
}

// HashDelete removes field from the named hash index.
func (s *Store) HashDelete(ctx context.Context, name, field string) error {
	if err := s.rdb.HDel(ctx, idxKey(name), field).Err(); err != nil {
		return apperr.StoreTransient("hash index delete", err)
	}
	return nil
}

// ZIndexAdd adds member to the named sorted-set index at the given score.
// Used for the per-queue pending-task ordering (§4.3): score encodes
// priority-descending, created-at-ascending so an ascending ZRANGE yields
// fetch order directly.
func (s *Store) ZIndexAdd(ctx context.Context, name string, score float64, member string) error {
	if err := s.rdb.ZAdd(ctx, idxKey(name), redis.Z{Score: score, Member: member}).Err(); err != nil {
		return apperr.StoreTransient("zindex add", err)
	}
	return nil
}

// ZIndexRemove removes member from the named sorted-set index.
func (s *Store) ZIndexRemove(ctx context.Context, name, member string) error {
	if err := s.rdb.ZRem(ctx, idxKey(name), member).Err(); err != nil {
		return apperr.StoreTransient("zindex remove", err)
	}
	return nil
}

// ZIndexRange returns up to limit members in ascending score order,
// starting from the lowest score (limit <= 0 means unbounded).
func (s *Store) ZIndexRange(ctx context.Context, name string, limit int64) ([]string, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = limit - 1
	}
	members, err := s.rdb.ZRange(ctx, idxKey(name), 0, stop).Result()
	if err != nil {
		return nil, apperr.StoreTransient("zindex range", err)
	}
	return members, nil
}

// ZIndexCard reports the number of members in the named sorted-set index.
func (s *Store) ZIndexCard(ctx context.Context, name string) (int64, error) {
	n, err := s.rdb.ZCard(ctx, idxKey(name)).Result()
	if err != nil {
		return 0, apperr.StoreTransient("zindex card", err)
	}
	return n, nil
}

// Incr atomically increments the named counter and returns the new value.
// Used to allocate gap-free per-queue event sequence numbers (§4.7).
func (s *Store) Incr(ctx context.Context, name string) (int64, error) {
	n, err := s.rdb.Incr(ctx, "seq:"+name).Result()
	if err != nil {
		return 0, apperr.StoreTransient("incr counter", err)
	}
	return n, nil
}

// SeqValue reads the named counter without incrementing it, returning 0 if
// it was never allocated. Used by replay and cascade delete to find the
// current high-water sequence for a queue.
func (s *Store) SeqValue(ctx context.Context, name string) (int64, error) {
	n, err := s.rdb.Get(ctx, "seq:"+name).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, apperr.StoreTransient("read counter", err)
	}
	return n, nil
}

// DeleteCounter removes the named counter entirely (cascade delete).
func (s *Store) DeleteCounter(ctx context.Context, name string) error {
	if err := s.rdb.Del(ctx, "seq:"+name).Err(); err != nil {
		return apperr.StoreTransient("delete counter", err)
	}
	return nil
}

// DeleteIndex removes the named index key entirely (set or sorted set),
// used by cascade delete to drop per-queue index structures.
func (s *Store) DeleteIndex(ctx context.Context, name string) error {
	if err := s.rdb.Del(ctx, idxKey(name)).Err(); err != nil {
		return apperr.StoreTransient("delete index", err)
	}
	return nil
}
