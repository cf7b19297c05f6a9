package ratelimit

import (
	"context"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMemory_AllowsUpToLimit(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(ctx, "1.2.3.4"), "request %d", i+1)
	}
	assert.False(t, l.Allow(ctx, "1.2.3.4"))
	assert.Equal(t, 0, l.Remaining("1.2.3.4"))

	// Other keys are independent.
	assert.True(t, l.Allow(ctx, "5.6.7.8"))
	assert.Equal(t, 2, l.Remaining("5.6.7.8"))
}

func TestMemory_WindowExpires(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(1, 20*time.Millisecond)

	assert.True(t, l.Allow(ctx, "k"))
	assert.False(t, l.Allow(ctx, "k"))
	time.Sleep(30 * time.Millisecond)
	assert.True(t, l.Allow(ctx, "k"))
}

func TestMemory_Reset(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(1, time.Minute)

	assert.True(t, l.Allow(ctx, "k"))
	assert.False(t, l.Allow(ctx, "k"))
	l.Reset(ctx, "k")
	assert.True(t, l.Allow(ctx, "k"))
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", ClientIP(r))

	r.Header.Set("X-Real-IP", "192.168.1.9")
	assert.Equal(t, "192.168.1.9", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientIP(r))
}

func TestNewAuthLimits_InMemoryWithoutRedis(t *testing.T) {
	limits := NewAuthLimits(nil, zap.NewNop())
	_, ok := limits.Login.(*Memory)
	assert.True(t, ok)
}

func TestRedis_FailsOpenWhenUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()

	l := NewRedis(rdb, "test", 1, time.Minute, zap.NewNop())
	ctx := context.Background()
	assert.True(t, l.Allow(ctx, "k"))
	assert.True(t, l.Allow(ctx, "k"))
}

// Runs only when a Redis server is provided.
func TestRedis_Limits(t *testing.T) {
	addr := os.Getenv("EKOMUROJAAT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("EKOMUROJAAT_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	ctx := context.Background()
	l := NewRedis(rdb, "test-"+time.Now().Format("150405.000000"), 2, time.Minute, zap.NewNop())
	defer l.Reset(ctx, "k")

	assert.True(t, l.Allow(ctx, "k"))
	assert.True(t, l.Allow(ctx, "k"))
	assert.False(t, l.Allow(ctx, "k"))
	l.Reset(ctx, "k")
	assert.True(t, l.Allow(ctx, "k"))
}
