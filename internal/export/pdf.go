// Package export writes the canvas to files outside the app.
package export

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jung-kurt/gofpdf"

	"PixelBoard/internal/state"
)

const margin = 10.0 // mm

// PDF writes cells to an A4 page at path.
func PDF(path string, cells []state.Cell, gridSize int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export pdf: %w", err)
	}
	if err := WritePDF(f, cells, gridSize); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export pdf: %w", err)
	}
	return nil
}

// WritePDF renders cells onto one A4 page: a header line, then the grid
// scaled to fit the page width with each painted cell as a filled square.
func WritePDF(w io.Writer, cells []state.Cell, gridSize int) error {
	if gridSize <= 0 {
		gridSize = state.DefaultGridSize
	}

	p := gofpdf.New("P", "mm", "A4", "")
	p.SetTitle("PixelBoard", false)
	p.SetCreator("PixelBoard", false)
	p.AddPage()

	p.SetFont("Helvetica", "B", 14)
	p.CellFormat(0, 8, "PixelBoard", "", 1, "L", false, 0, "")
	p.SetFont("Helvetica", "", 10)
	p.CellFormat(0, 6, fmt.Sprintf("%d painted cells on a %dx%d grid, exported %s",
		len(cells), gridSize, gridSize, time.Now().Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")

	pageW, _ := p.GetPageSize()
	side := pageW - 2*margin
	top := p.GetY() + 4
	cell := side / float64(gridSize)

	p.SetDrawColor(180, 180, 180)
	p.SetLineWidth(0.2)
	p.Rect(margin, top, side, side, "D")

	for _, c := range cells {
		if c.X < 0 || c.Y < 0 || c.X >= gridSize || c.Y >= gridSize {
			continue
		}
		rgb, err := state.ParseColor(c.Color)
		if err != nil {
			continue
		}
		p.SetFillColor(int(rgb.R), int(rgb.G), int(rgb.B))
		p.Rect(margin+float64(c.X)*cell, top+float64(c.Y)*cell, cell, cell, "F")
	}

	if err := p.Output(w); err != nil {
		return fmt.Errorf("export pdf: %w", err)
	}
	return nil
}
