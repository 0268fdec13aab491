package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/gomodule/redigo/redis"
)

// ConnProvider hands out pooled redis connections. *redis.Pool satisfies it.
type ConnProvider interface {
	GetContext(ctx context.Context) (redis.Conn, error)
}

// RedisMedium stores the encoded state under a single redis key.
type RedisMedium struct {
	pool ConnProvider
	key  string
}

// NewRedisMedium returns a medium storing state at key.
func NewRedisMedium(pool ConnProvider, key string) *RedisMedium {
	return &RedisMedium{
		pool: pool,
		key:  key,
	}
}

func (m *RedisMedium) String() string {
	return "redis:" + m.key
}

func (m *RedisMedium) Read(ctx context.Context) ([]byte, error) {
	conn, err := m.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get redis connection: %w", err)
	}
	defer conn.Close()

	data, err := redis.Bytes(redis.DoContext(conn, ctx, "GET", m.key))
	if errors.Is(err, redis.ErrNil) {
		return nil, ErrNoState
	} else if err != nil {
		return nil, fmt.Errorf("failed to get state key: %w", err)
	}
	return data, nil
}

// Write replaces the key's value with a single SET, which redis applies atomically.
func (m *RedisMedium) Write(ctx context.Context, data []byte) error {
	conn, err := m.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get redis connection: %w", err)
	}
	defer conn.Close()

	if _, err := redis.String(redis.DoContext(conn, ctx, "SET", m.key, data)); err != nil {
		return fmt.Errorf("failed to set state key: %w", err)
	}
	return nil
}
