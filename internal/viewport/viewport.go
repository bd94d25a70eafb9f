// Package viewport maps between screen pixels and grid cells for a zoomable,
// pannable view of the canvas.
//
// The forward map is
//
//	screen = center + pan + cell * CellSize * Zoom
//
// where center places the whole grid in the middle of the view.
package viewport

import (
	"image"
	"math"

	"PixelBoard/internal/state"
)

const (
	DefaultCellSize = 1.0
	DefaultZoom     = 0.3
	DefaultMinZoom  = 0.1
	DefaultMaxZoom  = 40.0

	// ZoomIn and ZoomOut are the per-notch wheel factors.
	ZoomIn  = 1.1
	ZoomOut = 0.9

	// GridLineThreshold is the on-screen cell size in pixels below which
	// cell borders are not drawn.
	GridLineThreshold = 2.0
)

// Viewport is the current zoom and pan of one view. The zero value is not
// usable; start from Default or New.
type Viewport struct {
	GridSize int
	CellSize float64

	Zoom     float64
	MinZoom  float64
	MaxZoom  float64
	HomeZoom float64

	PanX, PanY    float64
	Width, Height float64
}

// Config holds the fixed parameters of a viewport.
type Config struct {
	GridSize int
	CellSize float64
	Zoom     float64
	MinZoom  float64
	MaxZoom  float64
}

// New returns a centered viewport of the given size. Zero config fields take
// the package defaults.
func New(cfg Config, width, height float64) *Viewport {
	if cfg.GridSize <= 0 {
		cfg.GridSize = state.DefaultGridSize
	}
	if cfg.CellSize <= 0 {
		cfg.CellSize = DefaultCellSize
	}
	if cfg.MinZoom <= 0 {
		cfg.MinZoom = DefaultMinZoom
	}
	if cfg.MaxZoom <= 0 {
		cfg.MaxZoom = DefaultMaxZoom
	}
	if cfg.MaxZoom < cfg.MinZoom {
		cfg.MinZoom, cfg.MaxZoom = cfg.MaxZoom, cfg.MinZoom
	}
	if cfg.Zoom <= 0 {
		cfg.Zoom = DefaultZoom
	}
	zoom := clamp(cfg.Zoom, cfg.MinZoom, cfg.MaxZoom)

	return &Viewport{
		GridSize: cfg.GridSize,
		CellSize: cfg.CellSize,
		Zoom:     zoom,
		MinZoom:  cfg.MinZoom,
		MaxZoom:  cfg.MaxZoom,
		HomeZoom: zoom,
		Width:    width,
		Height:   height,
	}
}

// Default returns a viewport with the stock grid and zoom settings.
func Default(width, height float64) *Viewport {
	return New(Config{}, width, height)
}

// CellPixels is the on-screen edge length of one cell.
func (v *Viewport) CellPixels() float64 {
	return v.CellSize * v.Zoom
}

// Extent is the on-screen edge length of the whole grid.
func (v *Viewport) Extent() float64 {
	return float64(v.GridSize) * v.CellPixels()
}

// ShowGridLines reports whether cells are large enough to outline.
func (v *Viewport) ShowGridLines() bool {
	return v.CellPixels() >= GridLineThreshold
}

func (v *Viewport) origin() (float64, float64) {
	ext := v.Extent()
	return (v.Width-ext)/2 + v.PanX, (v.Height-ext)/2 + v.PanY
}

// ScreenToGrid returns the cell under a screen point. The result may lie
// outside the grid; check it with Contains.
func (v *Viewport) ScreenToGrid(sx, sy float64) (int, int) {
	ox, oy := v.origin()
	size := v.CellPixels()
	return int(math.Floor((sx - ox) / size)), int(math.Floor((sy - oy) / size))
}

// GridToScreen returns the top-left screen corner of a cell.
func (v *Viewport) GridToScreen(x, y int) (float64, float64) {
	ox, oy := v.origin()
	size := v.CellPixels()
	return ox + float64(x)*size, oy + float64(y)*size
}

// CellCenter returns the screen position of the middle of a cell.
func (v *Viewport) CellCenter(x, y int) (float64, float64) {
	sx, sy := v.GridToScreen(x, y)
	half := v.CellPixels() / 2
	return sx + half, sy + half
}

// Contains reports whether the cell lies on the grid.
func (v *Viewport) Contains(x, y int) bool {
	return x >= 0 && x < v.GridSize && y >= 0 && y < v.GridSize
}

// VisibleCells returns the cells at least partly on screen, as a half-open
// rectangle clipped to the grid. It is empty when the grid is off screen.
func (v *Viewport) VisibleCells() image.Rectangle {
	x0, y0 := v.ScreenToGrid(0, 0)
	x1, y1 := v.ScreenToGrid(v.Width, v.Height)
	r := image.Rect(x0, y0, x1+1, y1+1)
	return r.Intersect(image.Rect(0, 0, v.GridSize, v.GridSize))
}

// PanBy moves the view by a screen delta.
func (v *Viewport) PanBy(dx, dy float64) {
	v.PanX += dx
	v.PanY += dy
	v.clampPan()
}

// ZoomAt multiplies the zoom by factor while keeping the cell under
// (sx, sy) at the same screen position. It reports whether anything
// changed; a zoom already at its bound is a no-op.
func (v *Viewport) ZoomAt(sx, sy, factor float64) bool {
	zoom := clamp(v.Zoom*factor, v.MinZoom, v.MaxZoom)
	if zoom == v.Zoom {
		return false
	}

	gx, gy := v.ScreenToGrid(sx, sy)
	beforeX, beforeY := v.GridToScreen(gx, gy)
	v.Zoom = zoom
	afterX, afterY := v.GridToScreen(gx, gy)

	v.PanX += beforeX - afterX
	v.PanY += beforeY - afterY
	v.clampPan()
	return true
}

// Resize changes the screen size. Pan is kept relative to the center.
func (v *Viewport) Resize(width, height float64) {
	v.Width, v.Height = width, height
	v.clampPan()
}

// Reset recenters the grid at the initial zoom.
func (v *Viewport) Reset() {
	v.Zoom = v.HomeZoom
	v.PanX, v.PanY = 0, 0
}

// clampPan keeps at least half of the grid on screen along each axis.
func (v *Viewport) clampPan() {
	limit := v.Extent() / 2
	v.PanX = clamp(v.PanX, -limit, limit)
	v.PanY = clamp(v.PanY, -limit, limit)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
