package render

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PixelBoard/internal/state"
	"PixelBoard/internal/viewport"
	"PixelBoard/internal/wire"
)

var (
	red   = color.NRGBA{R: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// smallView is a 10x10 grid at 20px per cell filling a 200x200 frame, so
// cell (x, y) covers [20x, 20x+20).
func smallView() *viewport.Viewport {
	return viewport.New(viewport.Config{GridSize: 10, Zoom: 20, MaxZoom: 40}, 200, 200)
}

func pixel(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func near(a, b color.NRGBA) bool {
	d := func(x, y uint8) bool {
		diff := int(x) - int(y)
		return diff >= -2 && diff <= 2
	}
	return d(a.R, b.R) && d(a.G, b.G) && d(a.B, b.B) && d(a.A, b.A)
}

func assertColor(t *testing.T, want color.NRGBA, img image.Image, x, y int) {
	t.Helper()
	got := pixel(img, x, y)
	assert.True(t, near(want, got), "pixel %d,%d: want %v got %v", x, y, want, got)
}

func cellCenter(v *viewport.Viewport, x, y int) (int, int) {
	sx, sy := v.CellCenter(x, y)
	return int(sx), int(sy)
}

func cell(x, y int, hex string, at time.Time) state.Cell {
	return state.Cell{X: x, Y: y, Color: hex, InsertedBy: "Alice", UpdatedAt: at}
}

func TestRendererFull(t *testing.T) {
	v := smallView()
	r := NewRenderer(200, 200)
	t0 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, r.Full(v, []state.Cell{
		cell(1, 1, "#FF0000", t0),
		cell(3, 2, "#0000FF", t0),
		cell(4, 4, "#FF0000", t0),
	}))
	img := r.Image()

	x, y := cellCenter(v, 1, 1)
	assertColor(t, red, img, x, y)
	x, y = cellCenter(v, 3, 2)
	assertColor(t, blue, img, x, y)
	x, y = cellCenter(v, 4, 4)
	assertColor(t, red, img, x, y)
	x, y = cellCenter(v, 0, 0)
	assertColor(t, white, img, x, y)
}

func TestRendererBackdropOutsideGrid(t *testing.T) {
	v := viewport.New(viewport.Config{GridSize: 10, Zoom: 10}, 200, 200)
	r := NewRenderer(200, 200)
	require.NoError(t, r.Full(v, nil))
	img := r.Image()

	assertColor(t, color.NRGBAModel.Convert(Backdrop.Color()).(color.NRGBA), img, 5, 5)
	x, y := cellCenter(v, 5, 5)
	assertColor(t, white, img, x, y)
}

func TestRendererIncremental(t *testing.T) {
	v := smallView()
	r := NewRenderer(200, 200)
	require.NoError(t, r.Full(v, nil))

	require.NoError(t, r.Cell(v, cell(2, 2, "#0000FF", time.Now())))
	x, y := cellCenter(v, 2, 2)
	assertColor(t, blue, r.Image(), x, y)

	require.NoError(t, r.ClearCell(v, 2, 2))
	assertColor(t, white, r.Image(), x, y)

	// Off-grid cells are ignored.
	assert.NoError(t, r.Cell(v, cell(50, 50, "#0000FF", time.Now())))
}

func TestRendererSavePNG(t *testing.T) {
	r := NewRenderer(20, 20)
	require.NoError(t, r.Full(viewport.New(viewport.Config{GridSize: 2, Zoom: 10}, 20, 20), nil))
	path := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, r.SavePNG(path))
	assert.FileExists(t, path)
}

func newLoop(t *testing.T, present func(image.Image)) (*Loop, *viewport.Viewport) {
	t.Helper()
	v := smallView()
	return NewLoop(state.NewMirror(), v, present, nil), v
}

func TestLoopApply(t *testing.T) {
	l, v := newLoop(t, nil)
	t0 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	x, y := cellCenter(v, 5, 5)

	assert.True(t, l.Apply(wire.PixelUpdate(cell(5, 5, "#FF0000", t0))))
	assertColor(t, red, l.Frame(), x, y)

	assert.False(t, l.Apply(wire.PixelUpdate(cell(5, 5, "#0000FF", t0.Add(-time.Second)))), "older update is ignored")
	assertColor(t, red, l.Frame(), x, y)

	assert.False(t, l.Apply(wire.UserCount(3)))

	assert.True(t, l.Apply(wire.PixelDelete(5, 5)))
	assertColor(t, white, l.Frame(), x, y)
	assert.False(t, l.Apply(wire.PixelDelete(5, 5)), "already gone")

	_, ok := l.Lookup(state.Coord{X: 5, Y: 5})
	assert.False(t, ok)
}

func TestLoopReloadReplacesMirror(t *testing.T) {
	l, v := newLoop(t, nil)
	t0 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	l.Apply(wire.PixelUpdate(cell(1, 1, "#FF0000", t0)))

	l.Reload([]state.Cell{cell(2, 2, "#0000FF", t0)})

	x, y := cellCenter(v, 1, 1)
	assertColor(t, white, l.Frame(), x, y)
	x, y = cellCenter(v, 2, 2)
	assertColor(t, blue, l.Frame(), x, y)
	assert.Len(t, l.Cells(), 1)
}

func TestLoopViewChanges(t *testing.T) {
	l, _ := newLoop(t, nil)

	c, ok := l.CellAt(45, 65)
	require.True(t, ok)
	assert.Equal(t, state.Coord{X: 2, Y: 3}, c)

	_, ok = l.CellAt(-500, 10)
	assert.False(t, ok)

	assert.True(t, l.ZoomAt(100, 100, 2))
	assert.Equal(t, 40.0, l.Zoom())
	assert.False(t, l.ZoomAt(100, 100, 2), "already at max zoom")

	l.ResetView()
	assert.Equal(t, 20.0, l.Zoom())

	l.Resize(300, 100)
	w, h := l.renderer.Size()
	assert.Equal(t, 300, w)
	assert.Equal(t, 100, h)
	assert.Equal(t, image.Rect(0, 0, 300, 100), l.Frame().Bounds())
}

func TestLoopRunPresentsCoalescedFrames(t *testing.T) {
	frames := make(chan image.Image, 16)
	l, v := newLoop(t, func(img image.Image) { frames <- img })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	// The initial draw is pending.
	select {
	case <-frames:
	case <-time.After(2 * time.Second):
		t.Fatal("no initial frame")
	}

	t0 := time.Now()
	l.Apply(wire.PixelUpdate(cell(7, 7, "#FF0000", t0)))

	x, y := cellCenter(v, 7, 7)
	deadline := time.After(2 * time.Second)
	for {
		select {
		case img := <-frames:
			if near(pixel(img, x, y), red) {
				cancel()
				assert.ErrorIs(t, <-done, context.Canceled)
				return
			}
		case <-deadline:
			t.Fatal("painted frame never presented")
		}
	}
}
