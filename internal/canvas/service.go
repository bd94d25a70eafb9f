// Package canvas applies paint and erase requests to the grid store and
// announces every committed change to connected sessions.
package canvas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"PixelBoard/internal/state"
	"PixelBoard/internal/store"
	"PixelBoard/internal/wire"
)

// Broadcaster fans messages out to live sessions. *hub.Hub implements it.
type Broadcaster interface {
	Publish(m wire.Message)
	Count() int
	LastSeq() uint64
}

// PaintRequest is one paint mutation as received from a client.
type PaintRequest struct {
	X          int
	Y          int
	Color      string
	InsertedBy string
}

// Stats summarizes the canvas.
type Stats struct {
	TotalPixels int    `json:"totalPixels"`
	ActiveUsers int    `json:"activeUsers"`
	CanvasSize  string `json:"canvasSize"`
}

// Service validates mutations, commits them to the store and publishes the
// result. Mutations are serialized so the broadcast order is the commit
// order.
type Service struct {
	store    store.Store
	bc       Broadcaster
	gridSize int
	logger   *slog.Logger

	mu sync.Mutex
}

// New wires a service. gridSize <= 0 selects state.DefaultGridSize.
func New(st store.Store, bc Broadcaster, gridSize int, logger *slog.Logger) *Service {
	if gridSize <= 0 {
		gridSize = state.DefaultGridSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, bc: bc, gridSize: gridSize, logger: logger}
}

// GridSize returns the edge length of the canvas in cells.
func (s *Service) GridSize() int { return s.gridSize }

// Paint sets one cell and broadcasts a pixel_update. Invalid requests never
// reach the store.
func (s *Service) Paint(ctx context.Context, req PaintRequest) (state.Cell, error) {
	if err := state.ValidateCoord(req.X, req.Y, s.gridSize); err != nil {
		return state.Cell{}, err
	}
	if err := state.ValidateColor(req.Color); err != nil {
		return state.Cell{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cell, err := s.store.Upsert(ctx, req.X, req.Y, req.Color, state.NormalizeAuthor(req.InsertedBy))
	if err != nil {
		s.logger.Error("paint failed", "x", req.X, "y", req.Y, "error", err)
		return state.Cell{}, fmt.Errorf("paint %d,%d: %w", req.X, req.Y, err)
	}
	s.bc.Publish(wire.PixelUpdate(cell))
	s.logger.Debug("painted", "x", cell.X, "y", cell.Y, "color", cell.Color, "by", cell.InsertedBy)
	return cell, nil
}

// Erase clears one cell and broadcasts a pixel_delete. Erasing an empty
// cell returns state.ErrNotFound and broadcasts nothing.
func (s *Service) Erase(ctx context.Context, x, y int) (state.Cell, error) {
	if err := state.ValidateCoord(x, y, s.gridSize); err != nil {
		return state.Cell{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cell, err := s.store.Delete(ctx, x, y)
	if err != nil {
		if !errors.Is(err, state.ErrNotFound) {
			s.logger.Error("erase failed", "x", x, "y", y, "error", err)
		}
		return state.Cell{}, fmt.Errorf("erase %d,%d: %w", x, y, err)
	}
	s.bc.Publish(wire.PixelDelete(x, y))
	s.logger.Debug("erased", "x", x, "y", y)
	return cell, nil
}

// Cells returns every painted cell, oldest first.
func (s *Service) Cells(ctx context.Context) ([]state.Cell, error) {
	return s.store.All(ctx)
}

// Snapshot returns every painted cell together with the sequence number of
// the last broadcast already reflected in it. A client that loads the
// snapshot can drop any cell broadcast numbered at or below seq.
func (s *Service) Snapshot(ctx context.Context) ([]state.Cell, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cells, err := s.store.All(ctx)
	if err != nil {
		return nil, 0, err
	}
	return cells, s.bc.LastSeq(), nil
}

// Cell looks up one coordinate.
func (s *Service) Cell(ctx context.Context, x, y int) (state.Cell, error) {
	if err := state.ValidateCoord(x, y, s.gridSize); err != nil {
		return state.Cell{}, err
	}
	return s.store.Get(ctx, x, y)
}

// Stats reports the painted cell count and the live session count.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalPixels: n,
		ActiveUsers: s.bc.Count(),
		CanvasSize:  fmt.Sprintf("%dx%d", s.gridSize, s.gridSize),
	}, nil
}

// ActiveUsers returns the live session count.
func (s *Service) ActiveUsers() int { return s.bc.Count() }

// TopPainters ranks painters by the number of cells they currently own.
func (s *Service) TopPainters(ctx context.Context, limit int) ([]state.PainterCount, error) {
	return s.store.TopPainters(ctx, limit)
}
