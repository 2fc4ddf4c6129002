package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hl_gateway/internal/app"
	"hl_gateway/internal/domain"

	_ "net/http/pprof" // For pprof profiling
)

type options struct {
	configPath string
	envPath    string
	listAgents bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "config.yaml", "path to the YAML config file")
	flag.StringVar(&opts.envPath, "env", "", "secrets env file (default ~/.config/hyperliquid-mcp/.env)")
	flag.BoolVar(&opts.listAgents, "list-agents", false, "print the agent registry for the configured network and exit")
	flag.Parse()

	if err := run(opts); err != nil {
		slog.Error("❌ hl-gateway stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// run owns every resource, so deferred cleanup happens on all exits.
func run(opts options) error {
	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap(opts.configPath, opts.envPath)
	if err := bootstrap.Initialize(); err != nil {
		bootstrap.Shutdown()
		return err
	}
	defer bootstrap.Shutdown()

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.listAgents {
		return printAgents(ctx, bootstrap)
	}

	// 3. First run: durable key only
	if bootstrap.NeedsSetup() {
		if err := bootstrap.Setup(ctx); err != nil {
			return err
		}
	}

	// 4. Live feed and background refresh
	if err := bootstrap.Start(ctx); err != nil {
		return err
	}

	// 5. Metrics, health and pprof
	if addr := bootstrap.Config.Metrics.Addr; addr != "" {
		srv := newAdminServer(addr, bootstrap)
		go func() {
			slog.Info("🕵️ Metrics server started", slog.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	slog.InfoContext(ctx, "✨ hl-gateway fully operational. Press Ctrl+C to exit.",
		slog.Bool("read_only", bootstrap.Gateway.ReadOnly()),
		slog.Bool("builder_approved", bootstrap.Gateway.BuilderApproved()),
	)

	// Wait for shutdown signal
	<-ctx.Done()

	slog.Info("👋 Shutting down gracefully...")
	return nil
}

// newAdminServer serves /metrics, /healthz and the pprof handlers.
// /healthz fails while the live feed is enabled but disconnected.
func newAdminServer(addr string, b *app.Bootstrap) *http.Server {
	http.Handle("/metrics", b.Metrics.Handler())
	http.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		var feed domain.StreamWorker
		if b.Stream != nil {
			feed = b.Stream
		}
		if feed != nil && !feed.IsConnected() {
			http.Error(w, "live feed disconnected", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	return &http.Server{Addr: addr, ReadHeaderTimeout: 5 * time.Second}
}

func printAgents(ctx context.Context, b *app.Bootstrap) error {
	if b.Storage == nil {
		return errors.New("agent registry is disabled (storage.enabled: false)")
	}
	var repo domain.AgentRepository = b.Storage
	recs, err := repo.ListAgents(ctx, string(b.Config.Chain()))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}
