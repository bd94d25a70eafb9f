package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gogpu/gg"

	"PixelBoard/internal/canvas"
	"PixelBoard/internal/client"
	"PixelBoard/internal/config"
	"PixelBoard/internal/hub"
	lan "PixelBoard/internal/net"
	"PixelBoard/internal/server"
	"PixelBoard/internal/store"
	"PixelBoard/internal/ui"
)

func main() {
	configPath := flag.String("config", "pixelboard.yaml", "YAML config file; missing is fine")
	headless := flag.Bool("headless", false, "host without opening a window")
	discover := flag.Bool("discover", false, "list PixelBoard servers on the LAN and exit")
	join := flag.String("join", "", "server URL or pixelboard:// link to join instead of hosting")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	lvl, _ := config.ParseLevel(cfg.Log.Level)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	gg.SetLogger(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Share links arrive as the first argument when the OS opens one.
	target := *join
	if arg := flag.Arg(0); lan.IsLink(arg) {
		target = arg
	}
	if target == "" {
		target = cfg.Client.Server
	}

	switch {
	case *discover:
		err = runDiscover(ctx)
	case target != "":
		err = runClient(ctx, cfg, target, logger)
	default:
		err = runHost(ctx, cfg, *headless, logger)
	}
	if err != nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func runHost(ctx context.Context, cfg *config.Config, headless bool, logger *slog.Logger) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	h := hub.New(logger)
	svc := canvas.New(st, h, cfg.Server.GridSize, logger)

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}
	port, err := lan.PortOf(ln.Addr().String())
	if err != nil {
		ln.Close()
		return err
	}

	srv := &http.Server{
		Handler:           server.New(svc, h, cfg.SessionConfig(), logger),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", ln.Addr().String(), "grid", cfg.Server.GridSize, "storage", cfg.Storage.Driver)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if *cfg.Server.Advertise {
		zone, err := lan.Advertise(port)
		if err != nil {
			logger.Warn("mdns advertise failed, share the link by hand", "error", err)
		} else {
			defer zone.Shutdown()
		}
	}

	link := lan.ShareLink(lan.OutgoingIP(), port)
	logger.Info("share link", "link", link)

	if headless {
		select {
		case <-ctx.Done():
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
		}
	} else {
		ui.Run(ctx, ui.Options{
			Title:          "PixelBoard (host)",
			API:            client.NewAPI(fmt.Sprintf("http://127.0.0.1:%d", port), nil),
			View:           cfg.ViewportConfig(),
			ShareLink:      link,
			Name:           cfg.Client.Name,
			ReconnectDelay: cfg.Client.ReconnectDelay,
			Logger:         logger,
		})
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	// Websocket connections are hijacked and not tracked by Shutdown.
	h.Close()
	logger.Info("server stopped")
	return nil
}

func runClient(ctx context.Context, cfg *config.Config, target string, logger *slog.Logger) error {
	base, err := baseURL(target)
	if err != nil {
		return err
	}
	api := client.NewAPI(base, nil)

	view := cfg.ViewportConfig()
	probeCtx, probeCancel := context.WithTimeout(ctx, 5*time.Second)
	if size, err := api.GridSize(probeCtx); err == nil {
		view.GridSize = size
	} else {
		logger.Warn("could not ask the server for its grid size", "server", base, "error", err, "assumed", view.GridSize)
	}
	probeCancel()

	ui.Run(ctx, ui.Options{
		Title:          "PixelBoard: " + base,
		API:            api,
		View:           view,
		Name:           cfg.Client.Name,
		ReconnectDelay: cfg.Client.ReconnectDelay,
		Logger:         logger,
	})
	return nil
}

func runDiscover(ctx context.Context) error {
	seen := make(map[string]bool)
	err := lan.Browse(ctx, 3*time.Second, func(f lan.Found) {
		if seen[f.Addr] {
			return
		}
		seen[f.Addr] = true
		fmt.Printf("%s\t%s%s\n", f.Instance, lan.LinkScheme, f.Addr)
	})
	if err != nil {
		return err
	}
	if len(seen) == 0 {
		fmt.Println("no PixelBoard servers found")
	}
	return nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return store.NewMemoryStore(), nil
	default:
		st, err := store.OpenSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.Storage.Path, err)
		}
		return st, nil
	}
}

// baseURL accepts a share link, a full URL or a bare host:port.
func baseURL(target string) (string, error) {
	switch {
	case lan.IsLink(target):
		return lan.ParseLink(target)
	case strings.HasPrefix(target, "http://"), strings.HasPrefix(target, "https://"):
		return strings.TrimSuffix(target, "/"), nil
	default:
		return "http://" + strings.TrimSuffix(target, "/"), nil
	}
}
