package ui

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"PixelBoard/internal/client"
	"PixelBoard/internal/render"
	"PixelBoard/internal/state"
	"PixelBoard/internal/viewport"
)

// Painter sends mutations to the server. *client.API implements it.
type Painter interface {
	Paint(ctx context.Context, x, y int, color, author string) (state.Cell, error)
	Erase(ctx context.Context, x, y int) error
}

const requestTimeout = 5 * time.Second

// BoardWidget shows the render loop's frame and turns pointer input into
// view changes and paint requests. Painted cells only appear once the
// server broadcasts them.
type BoardWidget struct {
	widget.BaseWidget

	loop    *render.Loop
	painter Painter
	logger  *slog.Logger

	mu      sync.Mutex
	color   string
	eraser  bool
	author  string
	panning bool
	last    fyne.Position

	frame *canvas.Image

	// OnHover is called with the cell under the pointer, or nil when the
	// pointer leaves the grid.
	OnHover func(c state.Coord, cell *state.Cell)
	// OnResult is called after every paint or erase request.
	OnResult func(c state.Coord, err error)
	// OnView is called after a pan or zoom.
	OnView func(zoom float64)
}

var (
	_ fyne.Widget       = (*BoardWidget)(nil)
	_ fyne.Tappable     = (*BoardWidget)(nil)
	_ fyne.Draggable    = (*BoardWidget)(nil)
	_ fyne.Scrollable   = (*BoardWidget)(nil)
	_ desktop.Mouseable = (*BoardWidget)(nil)
	_ desktop.Hoverable = (*BoardWidget)(nil)
)

// NewBoardWidget builds the widget and its render loop over mirror and view.
func NewBoardWidget(mirror *state.Mirror, view *viewport.Viewport, painter Painter, logger *slog.Logger) *BoardWidget {
	if logger == nil {
		logger = slog.Default()
	}
	b := &BoardWidget{
		painter: painter,
		logger:  logger,
		color:   Palette[0],
		author:  state.Anonymous,
	}
	b.frame = canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1)))
	b.frame.FillMode = canvas.ImageFillStretch
	b.frame.ScaleMode = canvas.ImageScalePixels
	b.loop = render.NewLoop(mirror, view, b.present, logger)
	b.ExtendBaseWidget(b)
	return b
}

// Loop returns the render loop behind the widget.
func (b *BoardWidget) Loop() *render.Loop { return b.loop }

func (b *BoardWidget) present(img image.Image) {
	fyne.Do(func() {
		b.frame.Image = img
		b.frame.Refresh()
	})
}

// SetColor selects the paint color and leaves eraser mode.
func (b *BoardWidget) SetColor(c string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.color = c
	b.eraser = false
}

// SetEraser toggles eraser mode.
func (b *BoardWidget) SetEraser(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.eraser = on
}

// SetAuthor sets the attribution sent with paints.
func (b *BoardWidget) SetAuthor(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.author = state.NormalizeAuthor(name)
}

// Tool returns the selected color and whether the eraser is active.
func (b *BoardWidget) Tool() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.color, b.eraser
}

// ResetView restores the initial zoom and pan.
func (b *BoardWidget) ResetView() {
	b.loop.ResetView()
	b.viewChanged()
}

// Tapped paints or erases the cell under the pointer.
func (b *BoardWidget) Tapped(e *fyne.PointEvent) {
	c, ok := b.loop.CellAt(float64(e.Position.X), float64(e.Position.Y))
	if !ok {
		return
	}
	b.mu.Lock()
	hex, eraser, author := b.color, b.eraser, b.author
	b.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		var err error
		if eraser {
			err = b.painter.Erase(ctx, c.X, c.Y)
			if errors.Is(err, state.ErrNotFound) {
				err = nil
			}
		} else {
			_, err = b.painter.Paint(ctx, c.X, c.Y, hex, author)
		}
		if err != nil {
			b.logger.Warn("paint request failed", "cell", c, "erase", eraser, "error", err)
		}
		if b.OnResult != nil {
			b.OnResult(c, err)
		}
	}()
}

// MouseDown starts a pan on the secondary button.
func (b *BoardWidget) MouseDown(e *desktop.MouseEvent) {
	if e.Button == desktop.MouseButtonSecondary {
		b.mu.Lock()
		b.panning = true
		b.last = e.Position
		b.mu.Unlock()
	}
}

func (b *BoardWidget) MouseUp(e *desktop.MouseEvent) {
	if e.Button == desktop.MouseButtonSecondary {
		b.mu.Lock()
		b.panning = false
		b.mu.Unlock()
	}
}

// Dragged pans the view.
func (b *BoardWidget) Dragged(e *fyne.DragEvent) {
	b.loop.PanBy(float64(e.Dragged.DX), float64(e.Dragged.DY))
	b.viewChanged()
}

func (b *BoardWidget) DragEnd() {}

// Scrolled zooms around the pointer.
func (b *BoardWidget) Scrolled(e *fyne.ScrollEvent) {
	factor := viewport.ZoomOut
	if e.Scrolled.DY > 0 {
		factor = viewport.ZoomIn
	}
	if b.loop.ZoomAt(float64(e.Position.X), float64(e.Position.Y), factor) {
		b.viewChanged()
	}
}

func (b *BoardWidget) MouseIn(e *desktop.MouseEvent) { b.hover(e.Position) }

// MouseMoved pans while the secondary button is held and reports the
// hovered cell otherwise.
func (b *BoardWidget) MouseMoved(e *desktop.MouseEvent) {
	b.mu.Lock()
	panning := b.panning
	dx, dy := e.Position.X-b.last.X, e.Position.Y-b.last.Y
	b.last = e.Position
	b.mu.Unlock()

	if panning {
		b.loop.PanBy(float64(dx), float64(dy))
		b.viewChanged()
		return
	}
	b.hover(e.Position)
}

func (b *BoardWidget) MouseOut() {
	b.mu.Lock()
	b.panning = false
	b.mu.Unlock()
	if b.OnHover != nil {
		b.OnHover(state.Coord{}, nil)
	}
}

func (b *BoardWidget) hover(pos fyne.Position) {
	if b.OnHover == nil {
		return
	}
	c, ok := b.loop.CellAt(float64(pos.X), float64(pos.Y))
	if !ok {
		b.OnHover(state.Coord{}, nil)
		return
	}
	cell, painted := b.loop.Lookup(c)
	if !painted {
		cell = state.Cell{X: c.X, Y: c.Y}
	}
	b.OnHover(c, &cell)
}

func (b *BoardWidget) viewChanged() {
	if b.OnView != nil {
		b.OnView(b.loop.Zoom())
	}
}

func (b *BoardWidget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.NRGBA{R: 0xE8, G: 0xE8, B: 0xE8, A: 0xFF})
	return &boardWidgetRenderer{board: b, background: bg}
}

type boardWidgetRenderer struct {
	board      *BoardWidget
	background *canvas.Rectangle
}

func (r *boardWidgetRenderer) Layout(size fyne.Size) {
	r.background.Resize(size)
	r.board.frame.Resize(size)
	r.board.loop.Resize(int(size.Width), int(size.Height))
}

func (r *boardWidgetRenderer) MinSize() fyne.Size { return fyne.NewSize(300, 300) }

func (r *boardWidgetRenderer) Refresh() {
	r.board.frame.Refresh()
}

func (r *boardWidgetRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.background, r.board.frame}
}

func (r *boardWidgetRenderer) Destroy() {}

// describe formats hover info for the status line.
func describe(c state.Coord, cell *state.Cell) string {
	if cell == nil {
		return ""
	}
	if cell.Color == "" {
		return fmt.Sprintf("Position: (%d, %d)  Empty", c.X, c.Y)
	}
	return fmt.Sprintf("Position: (%d, %d)  Color: %s  Placed by: %s  Last updated: %s",
		c.X, c.Y, cell.Color, cell.InsertedBy, cell.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
}

// resultText formats the outcome of a paint request, or "" on success.
func resultText(c state.Coord, err error) string {
	var verr *state.ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return fmt.Sprintf("Rejected %s: %s", c, verr.Reason)
	case client.IsOffline(err):
		return "Offline: change not sent"
	default:
		return fmt.Sprintf("Server error at %s", c)
	}
}
