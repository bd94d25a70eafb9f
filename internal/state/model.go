package state

import (
	"fmt"
	"image/color"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultGridSize is the edge length of the shared canvas in cells.
	DefaultGridSize = 3000

	// Anonymous is the attribution recorded when a painter gives no name.
	Anonymous = "Anonymous"
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Coord addresses one cell of the grid.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Coord) String() string {
	return fmt.Sprintf("%d,%d", c.X, c.Y)
}

// Cell is the current paint state of one coordinate.
type Cell struct {
	X          int       `json:"x"`
	Y          int       `json:"y"`
	Color      string    `json:"color"`
	InsertedBy string    `json:"insertedBy"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Coord returns the cell's key.
func (c Cell) Coord() Coord {
	return Coord{X: c.X, Y: c.Y}
}

// RGBA converts the cell's hex color. Invalid colors come back as opaque black.
func (c Cell) RGBA() color.NRGBA {
	rgb, err := ParseColor(c.Color)
	if err != nil {
		return color.NRGBA{A: 255}
	}
	return rgb
}

// PainterCount is one row of the top painters aggregate.
type PainterCount struct {
	Label string `json:"insertedBy"`
	Cells int    `json:"pixels"`
}

// ValidateCoord checks that x and y fall inside a gridSize x gridSize canvas.
func ValidateCoord(x, y, gridSize int) error {
	if x < 0 || x >= gridSize || y < 0 || y >= gridSize {
		return &ValidationError{Field: "coordinates", Reason: "Coordinates out of bounds"}
	}
	return nil
}

// ValidateColor accepts exactly "#RRGGBB".
func ValidateColor(c string) error {
	if !colorPattern.MatchString(c) {
		return &ValidationError{Field: "color", Reason: "Invalid color format"}
	}
	return nil
}

// NormalizeAuthor trims the label and falls back to Anonymous.
func NormalizeAuthor(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return Anonymous
	}
	return label
}

// ParseColor decodes a "#RRGGBB" string.
func ParseColor(c string) (color.NRGBA, error) {
	if err := ValidateColor(c); err != nil {
		return color.NRGBA{}, err
	}
	v, err := strconv.ParseUint(c[1:], 16, 32)
	if err != nil {
		return color.NRGBA{}, err
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// FormatColor renders c as upper-case "#RRGGBB", dropping alpha.
func FormatColor(c color.Color) string {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("#%02X%02X%02X", n.R, n.G, n.B)
}
