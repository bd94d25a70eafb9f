package state

import (
	"sort"
	"sync"
)

// Mirror is a client's local copy of the cells it has learned about. It is
// filled by a full reload and kept current by applying broadcasts.
type Mirror struct {
	mu    sync.RWMutex
	cells map[Coord]Cell
}

// NewMirror creates an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{
		cells: make(map[Coord]Cell),
	}
}

// Replace drops everything and loads cells, as done after a reconnect.
func (m *Mirror) Replace(cells []Cell) {
	fresh := make(map[Coord]Cell, len(cells))
	for _, c := range cells {
		// Later entries win, so an ascending-by-recency list keeps the newest.
		fresh[c.Coord()] = c
	}

	m.mu.Lock()
	m.cells = fresh
	m.mu.Unlock()
}

// Set stores or overwrites a cell. It returns false if the mirror already
// held a newer value for the coordinate.
func (m *Mirror) Set(c Cell) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.cells[c.Coord()]; ok && cur.UpdatedAt.After(c.UpdatedAt) {
		return false
	}
	m.cells[c.Coord()] = c
	return true
}

// Delete removes a coordinate and reports whether it was present.
func (m *Mirror) Delete(x, y int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := Coord{X: x, Y: y}
	if _, ok := m.cells[key]; !ok {
		return false
	}
	delete(m.cells, key)
	return true
}

// Get returns the cell at (x, y) if the mirror knows about it.
func (m *Mirror) Get(x, y int) (Cell, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cells[Coord{X: x, Y: y}]
	return c, ok
}

// Len returns the number of mirrored cells.
func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cells)
}

// Cells returns a copy of all mirrored cells ordered by UpdatedAt, then by
// coordinate, so repeated calls draw in the same order.
func (m *Mirror) Cells() []Cell {
	m.mu.RLock()
	out := make([]Cell, 0, len(m.cells))
	for _, c := range m.cells {
		out = append(out, c)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}
