package queue

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis persists the queue as a redis list under playerQueue:<guildID>,
// surviving process restarts. Index operations rewrite the list from a
// snapshot; with one owning session per queue that is safe.
type Redis struct {
	rdb *redis.Client
	ctx context.Context
	key string
}

// NewRedis binds a durable queue to a guild id.
func NewRedis(rdb *redis.Client, guildID string) *Redis {
	return &Redis{
		rdb: rdb,
		ctx: context.Background(),
		key: "playerQueue:" + guildID,
	}
}

// Key returns the backing redis key, mainly for diagnostics.
func (q *Redis) Key() string { return q.key }

func (q *Redis) Offer(encoded string) error {
	pipe := q.rdb.TxPipeline()
	pipe.RPush(q.ctx, q.key, encoded)
	pipe.Persist(q.ctx, q.key)
	if _, err := pipe.Exec(q.ctx); err != nil {
		return fmt.Errorf("queue: offer: %w", err)
	}
	return nil
}

func (q *Redis) InsertAt(index int, encoded string) error {
	return q.rewrite(func(items []string) ([]string, error) {
		if index < 0 || index > len(items) {
			return nil, ErrBadIndex
		}
		items = append(items, "")
		copy(items[index+1:], items[index:])
		items[index] = encoded
		return items, nil
	})
}

func (q *Redis) PollHead() (string, bool, error) {
	val, err := q.rdb.LPop(q.ctx, q.key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("queue: poll: %w", err)
	}
	return val, true, nil
}

func (q *Redis) RemoveAt(index int) (string, error) {
	var removed string
	err := q.rewrite(func(items []string) ([]string, error) {
		if index < 0 || index >= len(items) {
			return nil, ErrBadIndex
		}
		removed = items[index]
		return append(items[:index], items[index+1:]...), nil
	})
	return removed, err
}

func (q *Redis) RemoveRange(start, end int) (int, error) {
	var removed int
	err := q.rewrite(func(items []string) ([]string, error) {
		if start < 0 || end < start || start >= len(items) {
			return nil, ErrBadIndex
		}
		if end >= len(items) {
			end = len(items) - 1
		}
		removed = end - start + 1
		return append(items[:start], items[end+1:]...), nil
	})
	return removed, err
}

func (q *Redis) RemoveWhere(pred func(string) bool) (int, error) {
	var removed int
	err := q.rewrite(func(items []string) ([]string, error) {
		kept := items[:0]
		for _, item := range items {
			if pred(item) {
				removed++
			} else {
				kept = append(kept, item)
			}
		}
		return kept, nil
	})
	return removed, err
}

func (q *Redis) Move(from, to int) error {
	return q.rewrite(func(items []string) ([]string, error) {
		if from < 0 || from >= len(items) || to < 0 || to >= len(items) {
			return nil, ErrBadIndex
		}
		item := items[from]
		items = append(items[:from], items[from+1:]...)
		items = append(items[:to], append([]string{item}, items[to:]...)...)
		return items, nil
	})
}

func (q *Redis) Shuffle() error {
	return q.rewrite(func(items []string) ([]string, error) {
		rand.Shuffle(len(items), func(i, j int) {
			items[i], items[j] = items[j], items[i]
		})
		return items, nil
	})
}

func (q *Redis) Size() (int, error) {
	n, err := q.rdb.LLen(q.ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: size: %w", err)
	}
	return int(n), nil
}

func (q *Redis) Snapshot() ([]string, error) {
	items, err := q.rdb.LRange(q.ctx, q.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: snapshot: %w", err)
	}
	return items, nil
}

func (q *Redis) Clear() error {
	if err := q.rdb.Del(q.ctx, q.key).Err(); err != nil {
		return fmt.Errorf("queue: clear: %w", err)
	}
	return nil
}

func (q *Redis) SetExpiry(d time.Duration) error {
	if err := q.rdb.Expire(q.ctx, q.key, d).Err(); err != nil {
		return fmt.Errorf("queue: expire: %w", err)
	}
	return nil
}

// rewrite replays a transformation of the whole list back into redis
// atomically. The single-writer assumption keeps the read-modify-write
// race-free from the queue's perspective.
func (q *Redis) rewrite(fn func([]string) ([]string, error)) error {
	items, err := q.Snapshot()
	if err != nil {
		return err
	}

	items, err = fn(items)
	if err != nil {
		return err
	}

	pipe := q.rdb.TxPipeline()
	pipe.Del(q.ctx, q.key)
	if len(items) > 0 {
		args := make([]interface{}, len(items))
		for i, item := range items {
			args[i] = item
		}
		pipe.RPush(q.ctx, q.key, args...)
	}
	if _, err := pipe.Exec(q.ctx); err != nil {
		return fmt.Errorf("queue: rewrite: %w", err)
	}
	return nil
}
