package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"tarkovtracker.org/internal/config"
	"tarkovtracker.org/internal/persistence/cachedb"
	persistlog "tarkovtracker.org/internal/persistence/log"
	"tarkovtracker.org/internal/tracker/metadata"
	"tarkovtracker.org/internal/tracker/overlay"
	"tarkovtracker.org/internal/transport/api"
	"tarkovtracker.org/internal/transport/ws"
	"tarkovtracker.org/internal/upstream"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to tracker.yaml (optional; TT_* env vars override it)")
		addr        = flag.String("addr", "", "http listen address (overrides config listen)")
		upstreamDir = flag.String("upstream_dir", "", "read upstream payloads from this directory instead of the GraphQL api")
		enablePprof = flag.Bool("pprof", false, "expose /debug/pprof on the listen address")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if s := strings.TrimSpace(*addr); s != "" {
		cfg.Listen = s
	}
	if s := strings.TrimSpace(*upstreamDir); s != "" {
		cfg.Upstream.Dir = s
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	// Optional: persistent payload cache. The stores work without it.
	var cache metadata.Cache
	if !cfg.Cache.Disabled {
		db, err := cachedb.OpenSQLite(cfg.Cache.Path)
		if err != nil {
			logger.Fatalf("open cache: %v", err)
		}
		defer db.Close()
		if n, err := db.PurgeExpired(ctx); err != nil {
			logger.Printf("cache purge: %v", err)
		} else if n > 0 {
			logger.Printf("cache purge: dropped %d expired entries", n)
		}
		cache = db
	}

	rejects := persistlog.NewRejectLog(cfg.Overlay.RejectDir, func(err error) {
		logger.Printf("reject log: %v", err)
	})
	defer rejects.Close()

	var ov metadata.OverlaySource
	if cfg.Overlay.URL != "" {
		ov = overlay.NewProvider(overlay.ProviderConfig{
			URL:     cfg.Overlay.URL,
			Timeout: cfg.Overlay.Timeout,
			Cache:   overlay.NewCache(cfg.Overlay.TTL),
			Logger:  log.New(os.Stdout, "[overlay] ", log.LstdFlags|log.Lmicroseconds),
			Rejects: rejects,
		})
	}

	fetcher := newFetcher(cfg.Upstream)
	storeLog := log.New(os.Stdout, "[metadata] ", log.LstdFlags|log.Lmicroseconds)
	stores := make(map[string]*metadata.Store, len(cfg.Modes))
	for _, m := range cfg.Modes {
		stores[m] = metadata.NewStore(metadata.Config{
			Mode:    m,
			Lang:    cfg.Language,
			Fetcher: fetcher,
			Cache:   cache,
			Overlay: ov,
			TTL:     cfg.Cache.TTL,
			Logger:  storeLog,
		})
	}

	// Initial load runs in the background; /readyz reports when each mode has
	// its core tasks.
	go func() {
		if err := loadAll(ctx, stores, (*metadata.Store).Initialize); err != nil {
			logger.Printf("initial load: %v", err)
		}
		if cfg.Upstream.RefreshEvery > 0 {
			refreshLoop(ctx, stores, cfg.Upstream.RefreshEvery, logger)
		}
	}()

	mux := http.NewServeMux()
	api.NewServer(stores, ov, logger).Register(mux)
	mux.HandleFunc("/v1/ws", ws.NewServer(stores, logger).Handler())
	if *enablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s modes=%v lang=%s upstream=%s overlay=%t cache=%t",
		cfg.Listen, cfg.Modes, cfg.Language, upstreamLabel(cfg.Upstream), ov != nil, cache != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func newFetcher(cfg config.UpstreamConfig) metadata.Fetcher {
	if cfg.Dir != "" {
		return upstream.DirFetcher{Dir: cfg.Dir}
	}
	return upstream.HTTPFetcher{Endpoint: cfg.URL, Timeout: cfg.Timeout}
}

func upstreamLabel(cfg config.UpstreamConfig) string {
	if cfg.Dir != "" {
		return "dir:" + cfg.Dir
	}
	return cfg.URL
}

// loadAll runs fn for every mode concurrently and returns the first error.
// Every mode still runs to completion.
func loadAll(ctx context.Context, stores map[string]*metadata.Store, fn func(*metadata.Store, context.Context) error) error {
	var g errgroup.Group
	for _, s := range stores {
		g.Go(func() error { return fn(s, ctx) })
	}
	return g.Wait()
}

func refreshLoop(ctx context.Context, stores map[string]*metadata.Store, every time.Duration, logger *log.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := loadAll(ctx, stores, (*metadata.Store).Refresh); err != nil {
				logger.Printf("refresh: %v", err)
			}
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
