// Package ui is the fyne desktop client: the board widget, its toolbar and
// the window that ties them to a server.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"PixelBoard/internal/client"
	"PixelBoard/internal/export"
	"PixelBoard/internal/state"
	"PixelBoard/internal/viewport"
)

const (
	appID = "io.pixelboard.desktop"

	// NamePreference stores the painter's display name between runs.
	NamePreference = "pixelUserName"
)

// Options configures one client window.
type Options struct {
	Title     string
	API       *client.API
	View      viewport.Config
	ShareLink string
	// Name overrides the stored display name when set.
	Name           string
	ReconnectDelay time.Duration
	Logger         *slog.Logger
}

// Run opens the window and blocks until it is closed or ctx is cancelled.
// The realtime channel and render loop stop with it.
func Run(ctx context.Context, opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Title == "" {
		opts.Title = "PixelBoard"
	}

	a := app.NewWithID(appID)
	w := a.NewWindow(opts.Title)
	w.Resize(fyne.NewSize(1024, 768))

	stopped := make(chan struct{})
	defer close(stopped)
	go quitOnDone(ctx, stopped, a.Quit)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	view := viewport.New(opts.View, 1024, 700)
	board := NewBoardWidget(state.NewMirror(), view, opts.API, logger)
	status := newStatusLine(board.Loop().Zoom())

	name := opts.Name
	if name == "" {
		name = a.Preferences().String(NamePreference)
	}
	board.SetAuthor(name)

	board.OnHover = func(c state.Coord, cell *state.Cell) {
		fyne.Do(func() { status.setHover(describe(c, cell)) })
	}
	board.OnView = func(zoom float64) {
		fyne.Do(func() { status.setZoom(zoom) })
	}
	board.OnResult = func(c state.Coord, err error) {
		msg := resultText(c, err)
		fyne.Do(func() { status.setMessage(msg) })
	}

	rt := client.NewRealtime(opts.API, board.Loop(), opts.ReconnectDelay, logger)
	rt.OnStatus = func(s client.Status) {
		fyne.Do(func() { status.setConnection(s) })
	}

	exportPDF := func(path string) error {
		return export.PDF(path, board.Loop().Cells(), opts.View.GridSize)
	}
	actions := Actions{
		ExportPDF: func() { saveAs(w, "pixelboard.pdf", exportPDF) },
		ExportPNG: func() { saveAs(w, "pixelboard.png", board.Loop().SavePNG) },
		Rename:    func() { askName(w, a.Preferences(), board) },
	}
	if opts.ShareLink != "" {
		actions.CopyLink = func() {
			w.Clipboard().SetContent(opts.ShareLink)
			status.setMessage("Share link copied")
		}
	}

	top := NewToolbar(board, actions)
	bottom := container.NewVBox(widget.NewSeparator(), status.object())
	if opts.ShareLink != "" {
		bottom.Add(widget.NewLabel("Share: " + opts.ShareLink))
	}
	w.SetContent(container.NewBorder(top, bottom, nil, nil, board))

	go func() {
		if err := board.Loop().Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("render loop stopped", "error", err)
		}
	}()
	go rt.Run(ctx)

	if name == "" {
		askName(w, a.Preferences(), board)
	}
	w.ShowAndRun()
}

// quitOnDone calls quit on the fyne thread when ctx is cancelled before
// stopped is closed.
func quitOnDone(ctx context.Context, stopped <-chan struct{}, quit func()) {
	select {
	case <-ctx.Done():
		fyne.Do(quit)
	case <-stopped:
	}
}

// askName prompts for the display name and stores it in prefs.
func askName(w fyne.Window, prefs fyne.Preferences, board *BoardWidget) {
	entry := widget.NewEntry()
	entry.SetPlaceHolder(state.Anonymous)
	entry.SetText(prefs.String(NamePreference))
	dialog.ShowForm("Your name", "Save", "Skip",
		[]*widget.FormItem{widget.NewFormItem("Name", entry)},
		func(ok bool) {
			if !ok {
				return
			}
			saveName(prefs, board, entry.Text)
		}, w)
}

func saveName(prefs fyne.Preferences, board *BoardWidget, name string) {
	name = strings.TrimSpace(name)
	prefs.SetString(NamePreference, name)
	board.SetAuthor(name)
}

// saveAs asks for a destination and hands its local path to write.
func saveAs(w fyne.Window, suggested string, write func(path string) error) {
	d := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		if uc == nil {
			return
		}
		path := uc.URI().Path()
		// The writer is only used to pick the file.
		uc.Close()
		if err := write(path); err != nil {
			dialog.ShowError(fmt.Errorf("save %s: %w", path, err), w)
			return
		}
		dialog.ShowInformation("Saved", path, w)
	}, w)
	d.SetFileName(suggested)
	d.Show()
}

// statusLine shows connection state, online users, zoom and hover info.
type statusLine struct {
	conn    *widget.Label
	zoom    *widget.Label
	hover   *widget.Label
	message *widget.Label
}

func newStatusLine(zoom float64) *statusLine {
	s := &statusLine{
		conn:    widget.NewLabel("Connecting..."),
		zoom:    widget.NewLabel(""),
		hover:   widget.NewLabel(""),
		message: widget.NewLabel(""),
	}
	s.setZoom(zoom)
	return s
}

func (s *statusLine) object() fyne.CanvasObject {
	return container.NewHBox(s.conn, widget.NewSeparator(), s.zoom, widget.NewSeparator(), s.hover, s.message)
}

func (s *statusLine) setConnection(st client.Status) {
	s.conn.SetText(connectionText(st))
}

func (s *statusLine) setZoom(z float64) {
	s.zoom.SetText(fmt.Sprintf("Zoom %.2fx", z))
}

func (s *statusLine) setHover(text string) {
	s.hover.SetText(text)
}

func (s *statusLine) setMessage(text string) {
	s.message.SetText(text)
}

func connectionText(st client.Status) string {
	switch {
	case st.Online && st.Users == 0:
		return "Online"
	case st.Online && st.Users == 1:
		return "Online: 1 user"
	case st.Online:
		return fmt.Sprintf("Online: %d users", st.Users)
	case st.Err != nil:
		return "Offline, reconnecting..."
	default:
		return "Disconnected"
	}
}
