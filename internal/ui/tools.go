package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"PixelBoard/internal/state"
)

// Palette lists the selectable paint colors.
var Palette = []string{
	"#000000", "#FFFFFF", "#888888", "#E4E4E4",
	"#FF4500", "#FFA800", "#FFD635", "#00A368",
	"#7EED56", "#2450A4", "#3690EA", "#51E9F4",
	"#811E9F", "#B44AC0", "#FF99AA", "#9C6926",
}

// colorSwatch is a tappable color square.
type colorSwatch struct {
	widget.BaseWidget
	Hex      string
	OnTapped func(hex string)

	border *canvas.Rectangle
}

func newColorSwatch(hex string, tapped func(string)) *colorSwatch {
	s := &colorSwatch{Hex: hex, OnTapped: tapped}
	s.ExtendBaseWidget(s)
	return s
}

func (s *colorSwatch) CreateRenderer() fyne.WidgetRenderer {
	var fill color.Color = color.Black
	if c, err := state.ParseColor(s.Hex); err == nil {
		fill = c
	}
	rect := canvas.NewRectangle(fill)
	rect.SetMinSize(fyne.NewSize(24, 24))

	s.border = canvas.NewRectangle(color.Transparent)
	s.border.StrokeColor = color.Gray{Y: 150}
	s.border.StrokeWidth = 1

	return widget.NewSimpleRenderer(container.NewStack(rect, s.border))
}

func (s *colorSwatch) Tapped(_ *fyne.PointEvent) {
	if s.OnTapped != nil {
		s.OnTapped(s.Hex)
	}
}

// setSelected thickens the border of the active swatch.
func (s *colorSwatch) setSelected(on bool) {
	if s.border == nil {
		return
	}
	s.border.StrokeWidth = 1
	s.border.StrokeColor = color.Gray{Y: 150}
	if on {
		s.border.StrokeWidth = 3
		s.border.StrokeColor = theme.Color(theme.ColorNamePrimary)
	}
	s.border.Refresh()
}

// Actions are the toolbar commands that need the window.
type Actions struct {
	ExportPDF func()
	ExportPNG func()
	CopyLink  func()
	Rename    func()
}

// NewToolbar builds the palette, eraser toggle and view/export actions.
func NewToolbar(board *BoardWidget, actions Actions) fyne.CanvasObject {
	var swatches []*colorSwatch
	eraser := widget.NewCheck("Eraser", nil)

	selectColor := func(hex string) {
		board.SetColor(hex)
		eraser.SetChecked(false)
		for _, s := range swatches {
			s.setSelected(s.Hex == hex)
		}
	}
	eraser.OnChanged = func(on bool) {
		board.SetEraser(on)
		if !on {
			return
		}
		for _, s := range swatches {
			s.setSelected(false)
		}
	}

	colorBox := container.NewHBox()
	for _, hex := range Palette {
		s := newColorSwatch(hex, selectColor)
		swatches = append(swatches, s)
		colorBox.Add(s)
	}

	items := []widget.ToolbarItem{
		widget.NewToolbarAction(theme.ViewRestoreIcon(), board.ResetView),
	}
	if actions.ExportPNG != nil {
		items = append(items, widget.NewToolbarAction(theme.FileImageIcon(), actions.ExportPNG))
	}
	if actions.ExportPDF != nil {
		items = append(items, widget.NewToolbarAction(theme.DocumentSaveIcon(), actions.ExportPDF))
	}
	if actions.CopyLink != nil {
		items = append(items, widget.NewToolbarAction(theme.ContentCopyIcon(), actions.CopyLink))
	}
	if actions.Rename != nil {
		items = append(items, widget.NewToolbarAction(theme.AccountIcon(), actions.Rename))
	}

	return container.NewHBox(
		widget.NewLabel("Color:"),
		colorBox,
		widget.NewSeparator(),
		eraser,
		widget.NewSeparator(),
		widget.NewToolbar(items...),
		layout.NewSpacer(),
	)
}
