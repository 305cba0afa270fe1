package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string    `json:"name"`
	Value float64   `json:"value"`
	At    time.Time `json:"at"`
}

func exercise(t *testing.T, c Cache) {
	ctx := context.Background()
	var got payload
	found, err := c.Get(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)

	want := payload{Name: "grid", Value: 1.25, At: time.Date(2025, 3, 1, 3, 0, 0, 0, time.UTC)}
	require.NoError(t, c.Set(ctx, "k", want, time.Minute))
	found, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Value, got.Value)
	assert.True(t, want.At.Equal(got.At))
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory()
	clock := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	require.NoError(t, m.Set(context.Background(), "k", 1, time.Minute))
	clock = clock.Add(2 * time.Minute)

	var v int
	found, err := m.Get(context.Background(), "k", &v)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	r := NewRedis(addr)
	t.Cleanup(func() { r.Close() })
	require.NoError(t, r.Ping(context.Background()))
	exercise(t, r)
}
