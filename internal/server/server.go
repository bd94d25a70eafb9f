// Package server exposes the canvas over HTTP and the realtime channel over
// a websocket endpoint.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"PixelBoard/internal/canvas"
	"PixelBoard/internal/hub"
	"PixelBoard/internal/state"
	"PixelBoard/internal/wire"
)

const (
	maxBodyBytes       = 64 * 1024
	defaultTopPainters = 10
)

// Server routes HTTP requests to the canvas service and upgrades /ws
// requests into hub sessions.
type Server struct {
	svc      *canvas.Service
	hub      *hub.Hub
	sessions hub.SessionConfig
	logger   *slog.Logger
	upgrader websocket.Upgrader
	router   chi.Router
}

// New builds the router.
func New(svc *canvas.Service, h *hub.Hub, sessions hub.SessionConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:      svc,
		hub:      h,
		sessions: sessions,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Any origin may watch the canvas; there is no auth to protect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/pixels-with-metadata", s.handleCells)
		r.Get("/pixels", s.handleCells)
		r.Get("/pixel/{x}/{y}", s.handleCell)
		r.Post("/pixel", s.handlePaint)
		r.Delete("/pixel", s.handleErase)
		r.Get("/stats", s.handleStats)
		r.Get("/top-painters", s.handleTopPainters)
		r.Get("/health", s.handleHealth)
	})
	r.Get("/ws", s.handleWS)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type paintBody struct {
	X          *int    `json:"x"`
	Y          *int    `json:"y"`
	Color      *string `json:"color"`
	InsertedBy *string `json:"insertedBy"`
}

type eraseBody struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

func (s *Server) handleCells(w http.ResponseWriter, r *http.Request) {
	cells, seq, err := s.svc.Snapshot(r.Context())
	if err != nil {
		s.logger.Error("fetch pixels", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch pixels")
		return
	}
	w.Header().Set(wire.SeqHeader, strconv.FormatUint(seq, 10))
	writeJSON(w, http.StatusOK, cells)
}

func (s *Server) handleCell(w http.ResponseWriter, r *http.Request) {
	x, errX := strconv.Atoi(chi.URLParam(r, "x"))
	y, errY := strconv.Atoi(chi.URLParam(r, "y"))
	if errX != nil || errY != nil {
		writeError(w, http.StatusBadRequest, "Invalid input data")
		return
	}

	cell, err := s.svc.Cell(r.Context(), x, y)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, cell)
	case state.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, state.ErrNotFound):
		writeError(w, http.StatusNotFound, "Pixel not found")
	default:
		s.logger.Error("fetch pixel", "x", x, "y", y, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch pixel")
	}
}

func (s *Server) handlePaint(w http.ResponseWriter, r *http.Request) {
	var body paintBody
	if err := decodeBody(w, r, &body); err != nil || body.X == nil || body.Y == nil || body.Color == nil {
		writeError(w, http.StatusBadRequest, "Invalid input data")
		return
	}

	req := canvas.PaintRequest{X: *body.X, Y: *body.Y, Color: *body.Color}
	if body.InsertedBy != nil {
		req.InsertedBy = *body.InsertedBy
	}

	cell, err := s.svc.Paint(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, cell)
	case state.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "Failed to set pixel")
	}
}

func (s *Server) handleErase(w http.ResponseWriter, r *http.Request) {
	var body eraseBody
	if err := decodeBody(w, r, &body); err != nil || body.X == nil || body.Y == nil {
		writeError(w, http.StatusBadRequest, "Invalid input data")
		return
	}

	_, err := s.svc.Erase(r.Context(), *body.X, *body.Y)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Pixel deleted successfully"})
	case state.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, state.ErrNotFound):
		writeError(w, http.StatusNotFound, "Pixel not found")
	default:
		writeError(w, http.StatusInternalServerError, "Failed to delete pixel")
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		s.logger.Error("fetch stats", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTopPainters(w http.ResponseWriter, r *http.Request) {
	top, err := s.svc.TopPainters(r.Context(), queryInt(r, "limit", defaultTopPainters))
	if err != nil {
		s.logger.Error("fetch top painters", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch top painters")
		return
	}
	writeJSON(w, http.StatusOK, top)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "healthy",
		"timestamp":         time.Now().UTC().Format(time.RFC3339Nano),
		"activeConnections": s.svc.ActiveUsers(),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Debug("websocket upgrade", "remote", r.RemoteAddr, "error", err)
		return
	}
	hub.NewSession(conn, s.sessions, s.logger).Serve(s.hub)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, reason string) {
	writeJSON(w, code, map[string]string{"error": reason})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// requestLogger logs one line per request through logger.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
