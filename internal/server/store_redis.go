package server

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/lox/holdemtables/internal/game"
)

const redisKeyPrefix = "holdem:table:"

// RedisStateStore keeps table state in Redis so a restarted server can
// resume hands in progress.
type RedisStateStore struct {
	rdclient *redis.Client
	ttl      time.Duration
}

// NewRedisStateStore connects to Redis. A zero ttl keeps state until removed.
func NewRedisStateStore(addr, password string, db int, ttl time.Duration) *RedisStateStore {
	rdclient := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStateStore{rdclient: rdclient, ttl: ttl}
}

func (r *RedisStateStore) key(roomID string) string {
	return redisKeyPrefix + roomID
}

// Ping checks the connection.
func (r *RedisStateStore) Ping(ctx context.Context) error {
	return r.rdclient.Ping(ctx).Err()
}

func (r *RedisStateStore) SaveState(ctx context.Context, roomID string, st game.TableState) error {
	data, err := st.Encode()
	if err != nil {
		return err
	}
	return r.rdclient.Set(ctx, r.key(roomID), data, r.ttl).Err()
}

func (r *RedisStateStore) LoadState(ctx context.Context, roomID string) (*game.TableState, error) {
	data, err := r.rdclient.Get(ctx, r.key(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	st, err := game.DecodeState(data)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *RedisStateStore) RemoveState(ctx context.Context, roomID string) error {
	return r.rdclient.Del(ctx, r.key(roomID)).Err()
}

func (r *RedisStateStore) Close() error {
	return r.rdclient.Close()
}
