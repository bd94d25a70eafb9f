// Package client talks to a PixelBoard server: plain HTTP for mutations and
// snapshots, and a supervised websocket for the realtime stream.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"PixelBoard/internal/canvas"
	"PixelBoard/internal/state"
	"PixelBoard/internal/wire"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Unwrap maps the status onto the shared error taxonomy so callers can use
// errors.Is and state.IsValidation.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusBadRequest:
		return &state.ValidationError{Reason: e.Message}
	case e.Status == http.StatusNotFound:
		return state.ErrNotFound
	case e.Status >= 500:
		return state.ErrStorageUnavailable
	default:
		return nil
	}
}

// Health is the server's liveness report.
type Health struct {
	Status            string    `json:"status"`
	Timestamp         time.Time `json:"timestamp"`
	ActiveConnections int       `json:"activeConnections"`
}

// API is a typed HTTP client for one server.
type API struct {
	base string
	http *http.Client
}

// NewAPI targets base, e.g. "http://192.168.1.20:8888". A nil client uses
// one with a 10s timeout.
func NewAPI(base string, hc *http.Client) *API {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &API{base: strings.TrimSuffix(base, "/"), http: hc}
}

// Base returns the server's base URL.
func (a *API) Base() string { return a.base }

// RealtimeURL returns the websocket endpoint of the server.
func (a *API) RealtimeURL() (string, error) {
	u, err := url.Parse(a.base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

// Snapshot fetches every cell plus the sequence number of the last
// broadcast already included.
func (a *API) Snapshot(ctx context.Context) ([]state.Cell, uint64, error) {
	var cells []state.Cell
	resp, err := a.do(ctx, http.MethodGet, "/api/pixels-with-metadata", nil, &cells)
	if err != nil {
		return nil, 0, err
	}
	var seq uint64
	if h := resp.Header.Get(wire.SeqHeader); h != "" {
		seq, err = strconv.ParseUint(h, 10, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("bad %s header %q: %w", wire.SeqHeader, h, err)
		}
	}
	return cells, seq, nil
}

// Cells fetches every painted cell.
func (a *API) Cells(ctx context.Context) ([]state.Cell, error) {
	cells, _, err := a.Snapshot(ctx)
	return cells, err
}

// Cell fetches one cell.
func (a *API) Cell(ctx context.Context, x, y int) (state.Cell, error) {
	var c state.Cell
	_, err := a.do(ctx, http.MethodGet, fmt.Sprintf("/api/pixel/%d/%d", x, y), nil, &c)
	return c, err
}

// Paint sets one cell. An empty author is recorded as Anonymous.
func (a *API) Paint(ctx context.Context, x, y int, color, author string) (state.Cell, error) {
	body := map[string]any{"x": x, "y": y, "color": color}
	if author != "" {
		body["insertedBy"] = author
	}
	var c state.Cell
	_, err := a.do(ctx, http.MethodPost, "/api/pixel", body, &c)
	return c, err
}

// Erase clears one cell. Erasing an empty cell yields state.ErrNotFound.
func (a *API) Erase(ctx context.Context, x, y int) error {
	_, err := a.do(ctx, http.MethodDelete, "/api/pixel", map[string]int{"x": x, "y": y}, nil)
	return err
}

// Stats fetches the canvas summary.
func (a *API) Stats(ctx context.Context) (canvas.Stats, error) {
	var s canvas.Stats
	_, err := a.do(ctx, http.MethodGet, "/api/stats", nil, &s)
	return s, err
}

// GridSize asks the server for its canvas edge length.
func (a *API) GridSize(ctx context.Context) (int, error) {
	s, err := a.Stats(ctx)
	if err != nil {
		return 0, err
	}
	var w, h int
	if _, err := fmt.Sscanf(s.CanvasSize, "%dx%d", &w, &h); err != nil || w <= 0 || w != h {
		return 0, fmt.Errorf("unexpected canvas size %q", s.CanvasSize)
	}
	return w, nil
}

// TopPainters fetches the leaderboard.
func (a *API) TopPainters(ctx context.Context, limit int) ([]state.PainterCount, error) {
	var out []state.PainterCount
	_, err := a.do(ctx, http.MethodGet, fmt.Sprintf("/api/top-painters?limit=%d", limit), nil, &out)
	return out, err
}

// Health fetches the liveness report.
func (a *API) Health(ctx context.Context) (Health, error) {
	var h Health
	_, err := a.do(ctx, http.MethodGet, "/api/health", nil, &h)
	return h, err
}

func (a *API) do(ctx context.Context, method, path string, in, out any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return resp, &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp, nil
}
