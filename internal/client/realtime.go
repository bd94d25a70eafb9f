package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"PixelBoard/internal/state"
	"PixelBoard/internal/wire"
)

// DefaultReconnectDelay is the fixed pause between connection attempts.
const DefaultReconnectDelay = 3 * time.Second

// Sink receives the realtime state. *render.Loop implements it.
type Sink interface {
	Reload(cells []state.Cell)
	Apply(m wire.Message) bool
}

// Status describes the realtime connection for display.
type Status struct {
	Online bool
	Users  int
	Err    error
}

// Realtime keeps a sink in sync with a server. Each connection starts with
// a full reload, so broadcasts missed while offline are never needed.
type Realtime struct {
	api    *API
	sink   Sink
	delay  time.Duration
	dialer *websocket.Dialer
	logger *slog.Logger

	// OnStatus, if set, is called from Run's goroutine on every change.
	OnStatus func(Status)

	tracker state.SeqTracker
	// covered is the last broadcast already reflected in the loaded snapshot.
	covered uint64
}

// NewRealtime wires api to sink. delay <= 0 selects DefaultReconnectDelay.
func NewRealtime(api *API, sink Sink, delay time.Duration, logger *slog.Logger) *Realtime {
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Realtime{
		api:    api,
		sink:   sink,
		delay:  delay,
		dialer: websocket.DefaultDialer,
		logger: logger,
	}
}

// Run connects, streams and reconnects after a fixed delay until ctx is
// cancelled. It always returns ctx.Err().
func (r *Realtime) Run(ctx context.Context) error {
	for {
		err := r.session(ctx)
		if ctx.Err() != nil {
			r.notify(Status{})
			return ctx.Err()
		}
		r.logger.Warn("realtime channel lost", "error", err, "retry_in", r.delay)
		r.notify(Status{Err: err})

		t := time.NewTimer(r.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// session runs one connection until it fails.
func (r *Realtime) session(ctx context.Context) error {
	url, err := r.api.RealtimeURL()
	if err != nil {
		return err
	}
	conn, _, err := r.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	r.tracker.Reset()
	// Broadcasts that arrive during the reload queue up on the socket and
	// are filtered against the snapshot's sequence number.
	if err := r.reload(ctx); err != nil {
		return err
	}
	r.logger.Info("realtime channel open", "url", url)

	online := Status{Online: true}
	r.notify(online)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		m, err := wire.Decode(data)
		if err != nil {
			r.logger.Warn("ignoring malformed frame", "error", err)
			continue
		}

		if !r.tracker.Observe(m.Seq) {
			r.logger.Warn("broadcast gap, reloading", "seq", m.Seq)
			if err := r.reload(ctx); err != nil {
				return err
			}
		}

		switch {
		case m.Type == wire.KindUserCount:
			online.Users = m.Count
			r.notify(online)
		case m.Seq != 0 && m.Seq <= r.covered:
			// Already part of the snapshot.
		default:
			r.sink.Apply(m)
		}
	}
}

func (r *Realtime) reload(ctx context.Context) error {
	cells, seq, err := r.api.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	r.sink.Reload(cells)
	r.covered = seq
	r.logger.Debug("mirror reloaded", "cells", len(cells), "seq", seq)
	return nil
}

func (r *Realtime) notify(s Status) {
	if r.OnStatus != nil {
		r.OnStatus(s)
	}
}

// IsOffline reports whether err means the server could not be reached.
func IsOffline(err error) bool {
	var apiErr *APIError
	return err != nil && !errors.As(err, &apiErr)
}
