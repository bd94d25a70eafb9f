package ui

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PixelBoard/internal/client"
	"PixelBoard/internal/state"
	"PixelBoard/internal/viewport"
)

type call struct {
	erase  bool
	x, y   int
	color  string
	author string
}

type fakePainter struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (f *fakePainter) Paint(_ context.Context, x, y int, color, author string) (state.Cell, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{x: x, y: y, color: color, author: author})
	return state.Cell{X: x, Y: y, Color: color, InsertedBy: author}, f.err
}

func (f *fakePainter) Erase(_ context.Context, x, y int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{erase: true, x: x, y: y})
	return f.err
}

func (f *fakePainter) recorded() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

// newBoard shows a 10x10 grid at 20px per cell filling a 200x200 widget.
func newBoard(t *testing.T, p Painter) (*BoardWidget, *state.Mirror) {
	t.Helper()
	test.NewTempApp(t)
	mirror := state.NewMirror()
	view := viewport.New(viewport.Config{GridSize: 10, Zoom: 20, MaxZoom: 40}, 200, 200)
	b := NewBoardWidget(mirror, view, p, nil)
	b.Resize(fyne.NewSize(200, 200))
	return b, mirror
}

func TestTapPaintsSelectedColor(t *testing.T) {
	p := &fakePainter{}
	b, _ := newBoard(t, p)
	b.SetAuthor("  Alice ")
	b.SetColor("#FF4500")

	results := make(chan error, 1)
	b.OnResult = func(_ state.Coord, err error) { results <- err }

	test.TapAt(b, fyne.NewPos(25, 45))
	select {
	case err := <-results:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("no result")
	}
	assert.Equal(t, []call{{x: 1, y: 2, color: "#FF4500", author: "Alice"}}, p.recorded())
}

func TestTapWithEraser(t *testing.T) {
	p := &fakePainter{err: state.ErrNotFound}
	b, _ := newBoard(t, p)
	b.SetEraser(true)
	_, eraser := b.Tool()
	assert.True(t, eraser)

	results := make(chan error, 1)
	b.OnResult = func(_ state.Coord, err error) { results <- err }
	test.TapAt(b, fyne.NewPos(195, 5))

	select {
	case err := <-results:
		assert.NoError(t, err, "erasing an empty cell is not an error")
	case <-time.After(2 * time.Second):
		t.Fatal("no result")
	}
	assert.Equal(t, []call{{erase: true, x: 9, y: 0}}, p.recorded())

	b.SetColor("#000000")
	_, eraser = b.Tool()
	assert.False(t, eraser, "picking a color leaves eraser mode")
}

func TestScrollZoomsAtPointer(t *testing.T) {
	b, _ := newBoard(t, &fakePainter{})
	var zooms []float64
	b.OnView = func(z float64) { zooms = append(zooms, z) }

	before, ok := b.Loop().CellAt(150, 150)
	require.True(t, ok)
	b.Scrolled(&fyne.ScrollEvent{
		PointEvent: fyne.PointEvent{Position: fyne.NewPos(150, 150)},
		Scrolled:   fyne.NewDelta(0, 1),
	})
	require.Len(t, zooms, 1)
	assert.InDelta(t, 22.0, zooms[0], 1e-9)
	after, ok := b.Loop().CellAt(150, 150)
	require.True(t, ok)
	assert.Equal(t, before, after, "cell under the pointer stays put")

	b.ResetView()
	assert.InDelta(t, 20.0, b.Loop().Zoom(), 1e-9)
}

func TestSecondaryDragPans(t *testing.T) {
	b, _ := newBoard(t, &fakePainter{})
	start := fyne.NewPos(100, 100)

	b.MouseDown(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: start}, Button: desktop.MouseButtonSecondary})
	b.MouseMoved(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(140, 100)}})
	b.MouseUp(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(140, 100)}, Button: desktop.MouseButtonSecondary})

	// The view moved 40px right, so screen x=40 now shows column 0.
	c, ok := b.Loop().CellAt(45, 5)
	require.True(t, ok)
	assert.Equal(t, state.Coord{X: 0, Y: 0}, c)
	_, ok = b.Loop().CellAt(20, 5)
	assert.False(t, ok)
}

func TestHoverDescribesCell(t *testing.T) {
	b, mirror := newBoard(t, &fakePainter{})
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.Local)
	mirror.Set(state.Cell{X: 3, Y: 4, Color: "#00A368", InsertedBy: "Bob", UpdatedAt: at})

	var got string
	b.OnHover = func(c state.Coord, cell *state.Cell) { got = describe(c, cell) }

	b.MouseMoved(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(65, 85)}})
	assert.Equal(t, "Position: (3, 4)  Color: #00A368  Placed by: Bob  Last updated: 2026-03-01 09:30:00", got)

	b.MouseMoved(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(5, 5)}})
	assert.Equal(t, "Position: (0, 0)  Empty", got)

	b.MouseOut()
	assert.Empty(t, got)
}

func TestSaveNameStoresPreference(t *testing.T) {
	b, _ := newBoard(t, &fakePainter{})
	prefs := fyne.CurrentApp().Preferences()
	saveName(prefs, b, "  Carol ")
	assert.Equal(t, "Carol", prefs.String(NamePreference))
}

func TestStatusTexts(t *testing.T) {
	assert.Equal(t, "Online: 3 users", connectionText(client.Status{Online: true, Users: 3}))
	assert.Equal(t, "Online: 1 user", connectionText(client.Status{Online: true, Users: 1}))
	assert.Equal(t, "Offline, reconnecting...", connectionText(client.Status{Err: errors.New("eof")}))

	c := state.Coord{X: 1, Y: 2}
	assert.Empty(t, resultText(c, nil))
	rejected := &client.APIError{Status: 400, Message: "Invalid color format"}
	assert.Contains(t, resultText(c, rejected), "Invalid color format")
	assert.Equal(t, "Offline: change not sent", resultText(c, errors.New("connection refused")))
	assert.Contains(t, resultText(c, &client.APIError{Status: 500, Message: "Failed to set pixel"}), "Server error")
}

func TestQuitOnDone(t *testing.T) {
	test.NewTempApp(t)

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var quits atomic.Int32
		done := make(chan struct{})
		go func() {
			quitOnDone(ctx, make(chan struct{}), func() { quits.Add(1) })
			close(done)
		}()

		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("quitOnDone did not return")
		}
		require.Eventually(t, func() bool { return quits.Load() == 1 }, time.Second, 10*time.Millisecond)
	})

	t.Run("window closed first", func(t *testing.T) {
		var quits atomic.Int32
		stopped := make(chan struct{})
		done := make(chan struct{})
		go func() {
			quitOnDone(context.Background(), stopped, func() { quits.Add(1) })
			close(done)
		}()

		close(stopped)
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("quitOnDone did not return")
		}
		assert.Zero(t, quits.Load())
	})
}
