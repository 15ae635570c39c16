package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubebuddy/cubebuddy/internal/domain"
)

func sampleSteps() []domain.SolveStep {
	return []domain.SolveStep{
		{Title: "Step 1", Notation: "R U R' U'", Description: "corners", MoveCount: 4},
		{Notation: "F D F'", MoveCount: 3},
	}
}

func backends(t *testing.T) map[string]*Handoff {
	t.Helper()
	out := map[string]*Handoff{
		"memory": NewMemory(Options{}),
		"fs":     NewFS(filepath.Join(t.TempDir(), "handoff"), Options{}),
	}

	sq, err := OpenSQLite(":memory:", Options{})
	require.NoError(t, err)
	out["sqlite"] = sq

	bg, err := OpenBadger("", Options{})
	require.NoError(t, err)
	out["badger"] = bg

	if url := os.Getenv("CUBEBUDDY_TEST_REDIS_URL"); url != "" {
		rd, err := OpenRedis(context.Background(), url, Options{TTL: time.Minute})
		require.NoError(t, err)
		out["redis"] = rd
	}

	t.Cleanup(func() {
		for _, h := range out {
			_ = h.Close()
		}
	})
	return out
}

func TestHandoffContract(t *testing.T) {
	for name, h := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.Equal(t, name, h.Backend())

			key, err := h.Put(ctx, sampleSteps())
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(key, "solution-"))
			assert.True(t, ValidKey(key))

			for i := 0; i < 2; i++ {
				got, err := h.Get(ctx, key)
				require.NoError(t, err, "read %d", i)
				if diff := cmp.Diff(sampleSteps(), got); diff != "" {
					t.Fatalf("steps mismatch (-want +got):\n%s", diff)
				}
			}

			err = h.PutKey(ctx, key, sampleSteps()[:1])
			require.ErrorIs(t, err, domain.ErrHandoffExists)
			got, err := h.Get(ctx, key)
			require.NoError(t, err)
			assert.Len(t, got, 2, "entries are write-once")

			_, err = h.Get(ctx, NewKey())
			assert.ErrorIs(t, err, domain.ErrHandoffNotFound)
			_, err = h.Get(ctx, "../../etc/passwd")
			assert.ErrorIs(t, err, domain.ErrHandoffNotFound)
		})
	}
}

func TestHandoffEmptySteps(t *testing.T) {
	h := NewMemory(Options{})
	key, err := h.Put(context.Background(), nil)
	require.NoError(t, err)
	got, err := h.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHandoffTooLarge(t *testing.T) {
	h := NewMemory(Options{MaxBytes: 64})
	steps := []domain.SolveStep{{Notation: strings.Repeat("R ", 100), MoveCount: 100}}
	_, err := h.Put(context.Background(), steps)
	require.ErrorIs(t, err, domain.ErrHandoffTooLarge)
}

func TestHandoffRejectsBadKey(t *testing.T) {
	h := NewMemory(Options{})
	err := h.PutKey(context.Background(), "solution-not-a-uuid", sampleSteps())
	assert.Error(t, err)
}

func TestMemoryTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mb := &memoryBackend{entries: map[string]memEntry{}, now: func() time.Time { return now }}
	h := newHandoff(mb, Options{TTL: time.Minute}, nil)
	ctx := context.Background()

	key, err := h.Put(ctx, sampleSteps())
	require.NoError(t, err)
	_, err = h.Get(ctx, key)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = h.Get(ctx, key)
	require.ErrorIs(t, err, domain.ErrHandoffNotFound)
	require.NoError(t, h.PutKey(ctx, key, sampleSteps()), "expired key can be reused")
}

func TestSQLiteTTL(t *testing.T) {
	h, err := OpenSQLite(filepath.Join(t.TempDir(), "handoff.db"), Options{TTL: time.Minute})
	require.NoError(t, err)
	defer h.Close()

	sb := h.b.(*sqliteBackend)
	now := time.Now()
	sb.now = func() time.Time { return now }
	ctx := context.Background()

	key, err := h.Put(ctx, sampleSteps())
	require.NoError(t, err)
	now = now.Add(time.Hour)
	_, err = h.Get(ctx, key)
	assert.ErrorIs(t, err, domain.ErrHandoffNotFound)
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "handoff.db")
	ctx := context.Background()

	h, err := OpenSQLite(path, Options{})
	require.NoError(t, err)
	key, err := h.Put(ctx, sampleSteps())
	require.NoError(t, err)
	require.NoError(t, h.Close())

	h, err = OpenSQLite(path, Options{})
	require.NoError(t, err)
	defer h.Close()
	got, err := h.Get(ctx, key)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestConcurrentPutSameKey(t *testing.T) {
	for name, h := range backends(t) {
		t.Run(name, func(t *testing.T) {
			key := NewKey()
			errs := make([]error, 8)
			var wg sync.WaitGroup
			for i := range errs {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs[i] = h.PutKey(context.Background(), key, sampleSteps())
				}()
			}
			wg.Wait()

			wins := 0
			for _, err := range errs {
				if err == nil {
					wins++
					continue
				}
				assert.ErrorIs(t, err, domain.ErrHandoffExists)
			}
			assert.Equal(t, 1, wins)
		})
	}
}
