package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrivoltaic-dashboard/internal/models"
	"agrivoltaic-dashboard/pkg/metrics"
)

func TestSession_Advance(t *testing.T) {
	tests := []struct {
		name          string
		cursor        int
		rows          int
		wantCursor    int
		wantCompleted bool
	}{
		{"first step", 0, 5, 1, false},
		{"middle", 2, 5, 3, false},
		{"to last row", 3, 5, 4, false},
		{"wraps from last row", 4, 5, 0, true},
		{"single row always wraps", 0, 1, 0, true},
		{"stale cursor past end", 9, 5, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{Cursor: tt.cursor}
			completed := s.Advance(tt.rows)
			assert.Equal(t, tt.wantCursor, s.Cursor)
			assert.Equal(t, tt.wantCompleted, completed)
			assert.Equal(t, tt.wantCompleted, s.NoticePending)
		})
	}
}

func TestSession_FullCycleSignalsOnce(t *testing.T) {
	const rows = 4
	s := New(time.Now())

	signals := 0
	for i := 0; i < rows; i++ {
		if s.Advance(rows) {
			signals++
		}
	}
	assert.Equal(t, 1, signals)
	assert.Equal(t, 0, s.Cursor)
	assert.Equal(t, 1, s.Completions)

	assert.Equal(t, models.PlaybackFinishedNotice, s.TakeNotice())
	assert.Empty(t, s.TakeNotice(), "notice is shown once")
}

func TestSession_Reset(t *testing.T) {
	s := &Session{Cursor: 3, NoticePending: true}
	s.Reset()
	assert.Equal(t, 0, s.Cursor)
	assert.False(t, s.NoticePending)
}

// exerciseStore runs the Store contract against any implementation
func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()

	created, err := store.Create(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 0, created.Cursor)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	updated, err := store.Update(ctx, created.ID, func(s *Session) error {
		s.Advance(10)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Cursor)

	got, err = store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Cursor)

	boom := errors.New("boom")
	_, err = store.Update(ctx, created.ID, func(s *Session) error {
		s.Cursor = 7
		return boom
	})
	assert.ErrorIs(t, err, boom)
	got, err = store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Cursor, "failed update leaves the session untouched")

	require.NoError(t, store.Delete(ctx, created.ID))

	_, err = store.Get(ctx, created.ID)
	assert.True(t, models.IsNotFound(err, models.ResourceSession))
	_, err = store.Update(ctx, created.ID, func(*Session) error { return nil })
	assert.True(t, models.IsNotFound(err, models.ResourceSession))
	assert.True(t, models.IsNotFound(store.Delete(ctx, created.ID), models.ResourceSession))
}

func TestMemoryStore_Contract(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Hour))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	s, err := store.Create(ctx)
	require.NoError(t, err)
	s.Cursor = 42

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Cursor)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	s, err := store.Create(ctx)
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	_, err = store.Update(ctx, s.ID, func(*Session) error { return nil })
	require.NoError(t, err, "updates slide the expiry")

	now = now.Add(45 * time.Second)
	_, err = store.Get(ctx, s.ID)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, s.ID)
	assert.True(t, models.IsNotFound(err, models.ResourceSession))
	assert.Equal(t, 0, store.Len())
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			require.Len(t, mf.GetMetric(), 1)
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}

func TestMemoryStore_ActiveSessionsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("test", reg)

	store := NewMemoryStore(time.Minute)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	require.NoError(t, collector.ObserveActiveSessions(store.Len))
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		s, err := store.Create(ctx)
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}
	assert.Equal(t, 3.0, gaugeValue(t, reg, "test_playback_sessions_active"))

	require.NoError(t, store.Delete(ctx, ids[0]))
	assert.Equal(t, 2.0, gaugeValue(t, reg, "test_playback_sessions_active"))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 0.0, gaugeValue(t, reg, "test_playback_sessions_active"), "expired sessions are not counted")
}

func TestMemoryStore_ConcurrentAdvances(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()
	s, err := store.Create(ctx)
	require.NoError(t, err)

	const workers, steps = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < steps; i++ {
				_, err := store.Update(ctx, s.ID, func(s *Session) error {
					s.Advance(1000)
					return nil
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, workers*steps, got.Cursor)
}

// TestRedisStore_Contract needs a reachable Redis at REDIS_TEST_ADDR
func TestRedisStore_Contract(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	store := NewRedisStore(client, time.Minute)
	store.prefix = "agrivoltaic:test:" + t.Name() + ":"
	exerciseStore(t, store)
}
