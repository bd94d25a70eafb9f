// Package render draws the mirrored canvas into an off-screen frame and
// keeps that frame current as broadcasts arrive.
package render

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/gogpu/gg"

	"PixelBoard/internal/state"
	"PixelBoard/internal/viewport"
)

var (
	// Backdrop fills the view outside the grid.
	Backdrop = gg.Hex("#E8E8E8")
	// Paper is the color of an empty cell.
	Paper = gg.Hex("#FFFFFF")
	// GridLine outlines cells once they are large enough to see.
	GridLine = gg.Hex("#DDDDDD")
)

// Renderer rasterizes cells through a viewport onto a gg context.
type Renderer struct {
	dc *gg.Context
}

// NewRenderer allocates a width x height frame.
func NewRenderer(width, height int) *Renderer {
	return &Renderer{dc: gg.NewContext(max(width, 1), max(height, 1))}
}

// Size returns the frame dimensions in pixels.
func (r *Renderer) Size() (int, int) {
	return r.dc.Width(), r.dc.Height()
}

// Resize reallocates the frame. The content is lost; follow with Full.
func (r *Renderer) Resize(width, height int) error {
	return r.dc.Resize(width, height)
}

// Full redraws the whole frame: backdrop, empty grid, cell borders when
// legible, then every visible cell.
func (r *Renderer) Full(v *viewport.Viewport, cells []state.Cell) error {
	r.dc.ClearWithColor(Backdrop)

	vis := v.VisibleCells()
	if vis.Empty() {
		return nil
	}

	x0, y0 := v.GridToScreen(vis.Min.X, vis.Min.Y)
	x1, y1 := v.GridToScreen(vis.Max.X, vis.Max.Y)
	r.dc.SetColor(Paper.Color())
	r.dc.DrawRectangle(x0, y0, x1-x0, y1-y0)
	if err := r.dc.Fill(); err != nil {
		return fmt.Errorf("render: paper: %w", err)
	}

	if v.ShowGridLines() {
		if err := r.gridLines(v, vis); err != nil {
			return err
		}
	}

	// One path per color keeps the number of fills small on busy canvases.
	size := v.CellPixels()
	byColor := make(map[string][]state.Cell)
	for _, c := range cells {
		if image.Pt(c.X, c.Y).In(vis) {
			byColor[c.Color] = append(byColor[c.Color], c)
		}
	}
	colors := make([]string, 0, len(byColor))
	for col := range byColor {
		colors = append(colors, col)
	}
	sort.Strings(colors)

	for _, col := range colors {
		group := byColor[col]
		r.dc.SetColor(group[0].RGBA())
		for _, c := range group {
			sx, sy := v.GridToScreen(c.X, c.Y)
			r.dc.DrawRectangle(sx, sy, size, size)
		}
		if err := r.dc.Fill(); err != nil {
			return fmt.Errorf("render: cells %s: %w", col, err)
		}
	}
	return nil
}

func (r *Renderer) gridLines(v *viewport.Viewport, vis image.Rectangle) error {
	left, top := v.GridToScreen(vis.Min.X, vis.Min.Y)
	right, bottom := v.GridToScreen(vis.Max.X, vis.Max.Y)
	top, bottom = math.Max(top, 0), math.Min(bottom, v.Height)
	left, right = math.Max(left, 0), math.Min(right, v.Width)

	r.dc.SetColor(GridLine.Color())
	r.dc.SetLineWidth(1)
	for x := vis.Min.X; x <= vis.Max.X; x++ {
		sx, _ := v.GridToScreen(x, 0)
		r.dc.MoveTo(sx, top)
		r.dc.LineTo(sx, bottom)
	}
	for y := vis.Min.Y; y <= vis.Max.Y; y++ {
		_, sy := v.GridToScreen(0, y)
		r.dc.MoveTo(left, sy)
		r.dc.LineTo(right, sy)
	}
	if err := r.dc.Stroke(); err != nil {
		return fmt.Errorf("render: grid: %w", err)
	}
	return nil
}

// Cell paints one cell without touching the rest of the frame.
func (r *Renderer) Cell(v *viewport.Viewport, c state.Cell) error {
	if !r.onScreen(v, c.X, c.Y) {
		return nil
	}
	sx, sy := v.GridToScreen(c.X, c.Y)
	size := v.CellPixels()
	r.dc.SetColor(c.RGBA())
	r.dc.DrawRectangle(sx, sy, size, size)
	if err := r.dc.Fill(); err != nil {
		return fmt.Errorf("render: cell %d,%d: %w", c.X, c.Y, err)
	}
	return nil
}

// ClearCell restores one cell to empty paper and redraws its border.
func (r *Renderer) ClearCell(v *viewport.Viewport, x, y int) error {
	if !r.onScreen(v, x, y) {
		return nil
	}
	sx, sy := v.GridToScreen(x, y)
	size := v.CellPixels()
	r.dc.SetColor(Paper.Color())
	r.dc.DrawRectangle(sx, sy, size, size)
	if err := r.dc.Fill(); err != nil {
		return fmt.Errorf("render: clear %d,%d: %w", x, y, err)
	}
	if !v.ShowGridLines() {
		return nil
	}
	r.dc.SetColor(GridLine.Color())
	r.dc.SetLineWidth(1)
	r.dc.DrawRectangle(sx, sy, size, size)
	if err := r.dc.Stroke(); err != nil {
		return fmt.Errorf("render: border %d,%d: %w", x, y, err)
	}
	return nil
}

func (r *Renderer) onScreen(v *viewport.Viewport, x, y int) bool {
	return v.Contains(x, y) && image.Pt(x, y).In(v.VisibleCells())
}

// Image returns a copy of the current frame.
func (r *Renderer) Image() image.Image {
	return r.dc.Image()
}

// SavePNG writes the current frame to path.
func (r *Renderer) SavePNG(path string) error {
	return r.dc.SavePNG(path)
}

// Close releases the drawing context.
func (r *Renderer) Close() error {
	return r.dc.Close()
}
