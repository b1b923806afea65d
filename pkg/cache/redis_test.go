package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsMapsTimeouts(t *testing.T) {
	opts := options(Config{Host: "redis", Port: 6380, DB: 2, MaxPoolSize: 16, ConnTimeout: 3, ReadTimeout: 4, WriteTimeout: 5})

	assert.Equal(t, "redis:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 16, opts.PoolSize)
	assert.Equal(t, 3*time.Second, opts.DialTimeout)
	assert.Equal(t, 4*time.Second, opts.ReadTimeout)
	assert.Equal(t, 5*time.Second, opts.WriteTimeout)
	assert.Zero(t, opts.ConnMaxIdleTime)
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	// 端口 1 上没有 Redis
	_, err := New(Config{Host: "127.0.0.1", Port: 1, ConnTimeout: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}
