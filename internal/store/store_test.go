package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PixelBoard/internal/state"
)

// stepClock returns t0, t0+1s, t0+2s, ... on successive calls.
func stepClock(t0 time.Time) func() time.Time {
	var mu sync.Mutex
	next := t0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur := next
		next = next.Add(time.Second)
		return cur
	}
}

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func backends(t *testing.T, opts ...Option) map[string]Store {
	t.Helper()
	sq, err := OpenSQLite(":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(opts...),
		"sqlite": sq,
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	for _, name := range []string{"memory", "sqlite"} {
		t.Run(name, func(t *testing.T) {
			t.Run("upsert then get", func(t *testing.T) {
				s := backends(t, WithClock(stepClock(t0)))[name]

				c, err := s.Upsert(ctx, 5, 5, "#FF0000", "Alice")
				require.NoError(t, err)
				assert.Equal(t, state.Cell{X: 5, Y: 5, Color: "#FF0000", InsertedBy: "Alice", UpdatedAt: t0}, c)

				got, err := s.Get(ctx, 5, 5)
				require.NoError(t, err)
				assert.Equal(t, c, got)
			})

			t.Run("missing author is anonymous", func(t *testing.T) {
				s := backends(t)[name]
				c, err := s.Upsert(ctx, 0, 0, "#000000", "")
				require.NoError(t, err)
				assert.Equal(t, state.Anonymous, c.InsertedBy)
			})

			t.Run("overwrite in place", func(t *testing.T) {
				s := backends(t, WithClock(stepClock(t0)))[name]

				_, err := s.Upsert(ctx, 1, 2, "#FF0000", "Alice")
				require.NoError(t, err)
				c, err := s.Upsert(ctx, 1, 2, "#00FF00", "Bob")
				require.NoError(t, err)
				assert.Equal(t, "#00FF00", c.Color)
				assert.Equal(t, "Bob", c.InsertedBy)
				assert.Equal(t, t0.Add(time.Second), c.UpdatedAt)

				n, err := s.Count(ctx)
				require.NoError(t, err)
				assert.Equal(t, 1, n)
			})

			t.Run("timestamps never go backwards", func(t *testing.T) {
				times := []time.Time{t0.Add(time.Minute), t0}
				i := 0
				clock := func() time.Time { tt := times[i]; i++; return tt }
				s := backends(t, WithClock(clock))[name]

				first, err := s.Upsert(ctx, 3, 3, "#111111", "a")
				require.NoError(t, err)
				second, err := s.Upsert(ctx, 3, 3, "#222222", "b")
				require.NoError(t, err)
				assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))
			})

			t.Run("upsert delete get", func(t *testing.T) {
				s := backends(t)[name]

				painted, err := s.Upsert(ctx, 7, 8, "#ABCDEF", "Carol")
				require.NoError(t, err)

				removed, err := s.Delete(ctx, 7, 8)
				require.NoError(t, err)
				assert.Equal(t, painted, removed)

				_, err = s.Get(ctx, 7, 8)
				assert.ErrorIs(t, err, state.ErrNotFound)
			})

			t.Run("delete is idempotent", func(t *testing.T) {
				s := backends(t)[name]
				for i := 0; i < 2; i++ {
					_, err := s.Delete(ctx, 5, 5)
					assert.ErrorIs(t, err, state.ErrNotFound)
					assert.False(t, errors.Is(err, state.ErrStorageUnavailable))
				}
			})

			t.Run("all is ordered by recency", func(t *testing.T) {
				s := backends(t, WithClock(stepClock(t0)))[name]

				all, err := s.All(ctx)
				require.NoError(t, err)
				assert.Empty(t, all)

				for _, x := range []int{3, 1, 2} {
					_, err := s.Upsert(ctx, x, 0, "#010101", "")
					require.NoError(t, err)
				}
				// Repainting 3 moves it to the end.
				_, err = s.Upsert(ctx, 3, 0, "#020202", "")
				require.NoError(t, err)

				all, err = s.All(ctx)
				require.NoError(t, err)
				require.Len(t, all, 3)
				assert.Equal(t, []int{1, 2, 3}, []int{all[0].X, all[1].X, all[2].X})
				assert.Equal(t, "#020202", all[2].Color)
			})

			t.Run("top painters", func(t *testing.T) {
				s := backends(t)[name]
				paint := func(author string, n, row int) {
					for i := 0; i < n; i++ {
						_, err := s.Upsert(ctx, i, row, "#000000", author)
						require.NoError(t, err)
					}
				}
				paint("zed", 2, 0)
				paint("amy", 2, 1)
				paint("bob", 3, 2)
				paint("", 1, 3)

				top, err := s.TopPainters(ctx, 3)
				require.NoError(t, err)
				assert.Equal(t, []state.PainterCount{
					{Label: "bob", Cells: 3},
					{Label: "amy", Cells: 2},
					{Label: "zed", Cells: 2},
				}, top)

				all, err := s.TopPainters(ctx, 0)
				require.NoError(t, err)
				assert.Len(t, all, 4)
			})
		})
	}
}

func TestStoreConcurrentUpserts(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := s.Upsert(ctx, 10, 10, fmt.Sprintf("#0000%02X", i), "racer")
					assert.NoError(t, err)
				}(i)
			}
			wg.Wait()

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n, "one authoritative record per coordinate")
		})
	}
}

func TestSQLiteStoreClosedIsUnavailable(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Upsert(context.Background(), 1, 1, "#FFFFFF", "x")
	assert.ErrorIs(t, err, state.ErrStorageUnavailable)

	_, err = s.Count(context.Background())
	assert.ErrorIs(t, err, state.ErrStorageUnavailable)
}

func TestStoreCancelledContextIsUnavailable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			checks := map[string]error{}
			_, checks["upsert"] = s.Upsert(ctx, 1, 1, "#FFFFFF", "x")
			_, checks["get"] = s.Get(ctx, 1, 1)
			_, checks["delete"] = s.Delete(ctx, 1, 1)
			_, checks["all"] = s.All(ctx)
			_, checks["count"] = s.Count(ctx)
			_, checks["top painters"] = s.TopPainters(ctx, 5)

			for op, err := range checks {
				assert.ErrorIs(t, err, state.ErrStorageUnavailable, op)
				assert.ErrorIs(t, err, context.Canceled, op)
			}
		})
	}
}

func TestSQLiteStorePersists(t *testing.T) {
	path := t.TempDir() + "/canvas/pixels.db"
	ctx := context.Background()

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	_, err = s.Upsert(ctx, 42, 24, "#C0FFEE", "Dana")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	c, err := s.Get(ctx, 42, 24)
	require.NoError(t, err)
	assert.Equal(t, "#C0FFEE", c.Color)
	assert.Equal(t, "Dana", c.InsertedBy)
}
