package store

import (
	"context"
	"sort"
	"sync"

	"PixelBoard/internal/state"
)

type memEntry struct {
	cell  state.Cell
	order uint64 // write counter, breaks UpdatedAt ties
}

// MemoryStore keeps the grid in a map. Nothing survives a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	cells  map[state.Coord]memEntry
	writes uint64
	opts   options
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaults()
	for _, fn := range opts {
		fn(&o)
	}
	return &MemoryStore{
		cells: make(map[state.Coord]memEntry),
		opts:  o,
	}
}

func (m *MemoryStore) All(ctx context.Context) ([]state.Cell, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("all", err)
	}
	m.mu.RLock()
	entries := make([]memEntry, 0, len(m.cells))
	for _, e := range m.cells {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.cell.UpdatedAt.Equal(b.cell.UpdatedAt) {
			return a.cell.UpdatedAt.Before(b.cell.UpdatedAt)
		}
		return a.order < b.order
	})

	out := make([]state.Cell, len(entries))
	for i, e := range entries {
		out[i] = e.cell
	}
	return out, nil
}

func (m *MemoryStore) Get(ctx context.Context, x, y int) (state.Cell, error) {
	if err := ctx.Err(); err != nil {
		return state.Cell{}, unavailable("get", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.cells[state.Coord{X: x, Y: y}]
	if !ok {
		return state.Cell{}, state.ErrNotFound
	}
	return e.cell, nil
}

func (m *MemoryStore) Upsert(ctx context.Context, x, y int, color, author string) (state.Cell, error) {
	if err := ctx.Err(); err != nil {
		return state.Cell{}, unavailable("upsert", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := state.Coord{X: x, Y: y}
	now := m.opts.now().UTC()
	if prev, ok := m.cells[key]; ok && now.Before(prev.cell.UpdatedAt) {
		now = prev.cell.UpdatedAt
	}

	m.writes++
	c := state.Cell{
		X:          x,
		Y:          y,
		Color:      color,
		InsertedBy: state.NormalizeAuthor(author),
		UpdatedAt:  now,
	}
	m.cells[key] = memEntry{cell: c, order: m.writes}
	return c, nil
}

func (m *MemoryStore) Delete(ctx context.Context, x, y int) (state.Cell, error) {
	if err := ctx.Err(); err != nil {
		return state.Cell{}, unavailable("delete", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := state.Coord{X: x, Y: y}
	e, ok := m.cells[key]
	if !ok {
		return state.Cell{}, state.ErrNotFound
	}
	delete(m.cells, key)
	return e.cell, nil
}

func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable("count", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cells), nil
}

func (m *MemoryStore) TopPainters(ctx context.Context, limit int) ([]state.PainterCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("top painters", err)
	}
	m.mu.RLock()
	counts := make(map[string]int)
	for _, e := range m.cells {
		counts[e.cell.InsertedBy]++
	}
	m.mu.RUnlock()

	out := make([]state.PainterCount, 0, len(counts))
	for label, n := range counts {
		out = append(out, state.PainterCount{Label: label, Cells: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cells != out[j].Cells {
			return out[i].Cells > out[j].Cells
		}
		return out[i].Label < out[j].Label
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
