package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/apextrades/internal/domain/user"
	"github.com/redis/go-redis/v9"
)

// Profiles is a read-through cache of public user records keyed by user id.
// Entries never carry the password hash. Failures are treated as misses.
//
// Readers take a Generation before loading from the store and hand it to
// Fill; writers call Invalidate after the store write. Fill drops the record
// when an Invalidate happened in between, so a slow reader never caches a
// record older than the last write.
type Profiles interface {
	Get(ctx context.Context, id string) (user.User, bool)
	Generation(ctx context.Context, id string) (gen int64, ok bool)
	Fill(ctx context.Context, u user.User, gen int64)
	Invalidate(ctx context.Context, id string)
}

func profileKey(id string) string {
	return "users:profile:v1:" + id
}

func generationKey(id string) string {
	return "users:profile:v1:" + id + ":gen"
}

// generations outlive any profile entry by a wide margin so a counter never
// resets while a reader still holds an old value.
const generationTTL = 24 * time.Hour

func public(u user.User) user.User {
	u.PasswordHash = ""
	return u
}

// MemoryProfiles keeps profiles in the process-local TTL map. It is only
// coherent for a single API process.
type MemoryProfiles struct {
	mu   sync.Mutex
	c    *Cache
	gens map[string]int64
}

func NewMemoryProfiles(ttl time.Duration) *MemoryProfiles {
	return &MemoryProfiles{c: New(ttl), gens: make(map[string]int64)}
}

func (m *MemoryProfiles) Get(_ context.Context, id string) (user.User, bool) {
	v, ok := m.c.Get(profileKey(id))
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}

func (m *MemoryProfiles) Generation(_ context.Context, id string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.gens[id], true
}

func (m *MemoryProfiles) Fill(_ context.Context, u user.User, gen int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gens[u.ID] != gen {
		return
	}
	m.c.Set(profileKey(u.ID), public(u))
}

func (m *MemoryProfiles) Invalidate(_ context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gens[id]++
	m.c.Delete(profileKey(id))
}

// RedisProfiles shares profiles between API instances. The generation lives
// in its own key and Fill only writes under WATCH on it.
type RedisProfiles struct {
	client *Client
	ttl    time.Duration
}

func NewRedisProfiles(client *Client, ttl time.Duration) *RedisProfiles {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisProfiles{client: client, ttl: ttl}
}

func (r *RedisProfiles) Get(ctx context.Context, id string) (user.User, bool) {
	data, err := r.client.Raw().Get(ctx, profileKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Default().WarnContext(ctx, "profile_cache_get_failed", "user_id", id, "err", err)
		}
		return user.User{}, false
	}

	var u user.User
	if err := json.Unmarshal(data, &u); err != nil {
		slog.Default().WarnContext(ctx, "profile_cache_decode_failed", "user_id", id, "err", err)
		return user.User{}, false
	}
	return u, true
}

func (r *RedisProfiles) Generation(ctx context.Context, id string) (int64, bool) {
	gen, err := readGeneration(ctx, r.client.Raw().Get, id)
	if err != nil {
		slog.Default().WarnContext(ctx, "profile_cache_generation_failed", "user_id", id, "err", err)
		return 0, false
	}
	return gen, true
}

var errStaleFill = errors.New("profile generation moved")

func (r *RedisProfiles) Fill(ctx context.Context, u user.User, gen int64) {
	data, err := json.Marshal(public(u))
	if err != nil {
		return
	}

	err = r.client.Raw().Watch(ctx, func(tx *redis.Tx) error {
		cur, err := readGeneration(ctx, tx.Get, u.ID)
		if err != nil {
			return err
		}
		if cur != gen {
			return errStaleFill
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, profileKey(u.ID), data, r.ttl)
			return nil
		})
		return err
	}, generationKey(u.ID))

	switch {
	case err == nil, errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
	default:
		slog.Default().WarnContext(ctx, "profile_cache_set_failed", "user_id", u.ID, "err", err)
	}
}

func (r *RedisProfiles) Invalidate(ctx context.Context, id string) {
	_, err := r.client.Raw().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(id))
		pipe.Expire(ctx, generationKey(id), generationTTL)
		pipe.Del(ctx, profileKey(id))
		return nil
	})
	if err != nil {
		slog.Default().WarnContext(ctx, "profile_cache_delete_failed", "user_id", id, "err", err)
	}
}

func readGeneration(ctx context.Context, get func(context.Context, string) *redis.StringCmd, id string) (int64, error) {
	gen, err := get(ctx, generationKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// NoopProfiles disables caching.
type NoopProfiles struct{}

func (NoopProfiles) Get(context.Context, string) (user.User, bool) { return user.User{}, false }
func (NoopProfiles) Generation(context.Context, string) (int64, bool) { return 0, false }
func (NoopProfiles) Fill(context.Context, user.User, int64) {}
func (NoopProfiles) Invalidate(context.Context, string) {}
