package render

import (
	"context"
	"image"
	"log/slog"
	"sync"

	"PixelBoard/internal/state"
	"PixelBoard/internal/viewport"
	"PixelBoard/internal/wire"
)

// Loop owns the client's mirror, viewport and frame. Every state change
// draws into the frame right away and marks it dirty; Run hands dirty
// frames to present, coalescing bursts into one call.
type Loop struct {
	mu       sync.Mutex
	mirror   *state.Mirror
	view     *viewport.Viewport
	renderer *Renderer

	dirty   chan struct{}
	present func(image.Image)
	logger  *slog.Logger
}

// NewLoop builds a loop around a fresh renderer sized to view. present is
// called from Run's goroutine with a private copy of each frame.
func NewLoop(mirror *state.Mirror, view *viewport.Viewport, present func(image.Image), logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loop{
		mirror:   mirror,
		view:     view,
		renderer: NewRenderer(int(view.Width), int(view.Height)),
		dirty:    make(chan struct{}, 1),
		present:  present,
		logger:   logger,
	}
	l.mu.Lock()
	l.redrawLocked()
	l.mu.Unlock()
	return l
}

// Run presents frames until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.dirty:
			if l.present != nil {
				l.present(l.Frame())
			}
		}
	}
}

// Frame returns a copy of the current frame.
func (l *Loop) Frame() image.Image {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.renderer.Image()
}

// Reload replaces the mirror with a full snapshot and redraws everything.
func (l *Loop) Reload(cells []state.Cell) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mirror.Replace(cells)
	l.redrawLocked()
}

// Apply folds one broadcast into the mirror and redraws only the affected
// cell. It reports whether the frame changed.
func (l *Loop) Apply(m wire.Message) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	var err error
	switch m.Type {
	case wire.KindPixelUpdate:
		c := m.Cell()
		if !l.mirror.Set(c) {
			return false
		}
		err = l.renderer.Cell(l.view, c)
	case wire.KindPixelDelete:
		if !l.mirror.Delete(m.X, m.Y) {
			return false
		}
		err = l.renderer.ClearCell(l.view, m.X, m.Y)
	default:
		return false
	}
	if err != nil {
		l.logger.Warn("incremental draw failed, redrawing", "type", m.Type, "x", m.X, "y", m.Y, "error", err)
		l.redrawLocked()
		return true
	}
	l.markDirty()
	return true
}

// PanBy moves the view and redraws.
func (l *Loop) PanBy(dx, dy float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.view.PanBy(dx, dy)
	l.redrawLocked()
}

// ZoomAt zooms around a screen point. Nothing is redrawn when the zoom is
// already at its bound.
func (l *Loop) ZoomAt(sx, sy, factor float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.view.ZoomAt(sx, sy, factor) {
		return false
	}
	l.redrawLocked()
	return true
}

// ResetView recenters at the initial zoom.
func (l *Loop) ResetView() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.view.Reset()
	l.redrawLocked()
}

// Resize changes the frame size.
func (l *Loop) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if w, h := l.renderer.Size(); w == width && h == height {
		return
	}
	if err := l.renderer.Resize(width, height); err != nil {
		l.logger.Error("resize frame", "width", width, "height", height, "error", err)
		return
	}
	l.view.Resize(float64(width), float64(height))
	l.redrawLocked()
}

// CellAt returns the grid cell under a screen point, if any.
func (l *Loop) CellAt(sx, sy float64) (state.Coord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	x, y := l.view.ScreenToGrid(sx, sy)
	if !l.view.Contains(x, y) {
		return state.Coord{}, false
	}
	return state.Coord{X: x, Y: y}, true
}

// Lookup returns the mirrored cell at c.
func (l *Loop) Lookup(c state.Coord) (state.Cell, bool) {
	return l.mirror.Get(c.X, c.Y)
}

// Zoom returns the current zoom factor.
func (l *Loop) Zoom() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.view.Zoom
}

// Cells returns the mirrored cells, oldest first.
func (l *Loop) Cells() []state.Cell {
	return l.mirror.Cells()
}

// SavePNG writes the current frame to path.
func (l *Loop) SavePNG(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.renderer.SavePNG(path)
}

func (l *Loop) redrawLocked() {
	if err := l.renderer.Full(l.view, l.mirror.Cells()); err != nil {
		l.logger.Error("redraw", "error", err)
	}
	l.markDirty()
}

func (l *Loop) markDirty() {
	select {
	case l.dirty <- struct{}{}:
	default:
	}
}
