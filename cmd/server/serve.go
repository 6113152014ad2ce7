package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"netbloom/internal/adapter"
	"netbloom/internal/config"
	"netbloom/internal/domain"
	"netbloom/internal/engine"
	"netbloom/internal/handler"
	"netbloom/internal/hub"
	"netbloom/internal/render"
	"netbloom/internal/repository/open"
)

// ShutdownTimeout bounds graceful HTTP shutdown
const ShutdownTimeout = 10 * time.Second

func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		DataSource:     cfg.DataSource,
		Hub:            cfg.Hub,
		Viewport:       cfg.ViewportSize(),
		UpdateInterval: cfg.UpdateInterval.Duration(),
		TickInterval:   cfg.Layout.TickInterval.Duration(),
		Force:          cfg.ForceConfig(),
		Policy:         cfg.Policy(),
		KeyPrefix:      cfg.Storage.KeyPrefix,
	}
}

func serve(ctx context.Context, opts *options) error {
	cfg, path, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger, logFile := setupLogger(opts, cfg.Log)
	defer logFile.Close()
	detect(ctx, opts, cfg, logger)

	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.Info("netbloom starting",
		"config", path,
		"data_source", cfg.DataSource,
		"hub", cfg.Hub,
		"storage", cfg.Storage.Driver,
		"sources", len(cfg.Sources))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := open.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Storage.Driver, err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	bus := engine.NewEventBus()
	eng, err := engine.New(engineConfig(cfg),
		engine.WithStore(store),
		engine.WithLogger(logger.With("component", "engine")),
		engine.WithRegisterer(reg),
		engine.WithEventBus(bus),
	)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer eng.Stop()

	sseHub := hub.New(logger.With("component", "hub"))
	go sseHub.Run(ctx)

	events := make(chan engine.Event, 256)
	bus.Subscribe(events)
	defer bus.Unsubscribe(events)
	go hub.Forward(ctx, sseHub, events)

	registry := adapter.NewRegistry(func(_ context.Context, conns []domain.Connection) error {
		if !eng.Submit(conns) {
			logger.Debug("snapshot throttled", "connections", len(conns))
		}
		return nil
	}, logger.With("component", "adapters"))
	for _, src := range cfg.Sources {
		a, ac, err := adapter.FromConfig(src, logger)
		if err != nil {
			return fmt.Errorf("configuring source: %w", err)
		}
		if err := registry.Register(a, ac); err != nil {
			return fmt.Errorf("registering source: %w", err)
		}
	}

	h := handler.NewGraphHandler(eng, logger.With("component", "http"))
	h.SetAdapters(registry)
	h.SetEvents(sseHub)
	h.SetMetrics(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	renderer, err := render.New(ctx)
	if err != nil {
		logger.Warn("SVG rendering disabled", "error", err)
	} else {
		defer renderer.Close()
		h.SetRenderer(renderer)
	}

	mux := http.NewServeMux()
	h.Routes(mux)

	server := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: handler.Chain(mux,
			handler.Recover(logger),
			handler.CORS,
			handler.Logger(logger),
		),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- eng.Run(ctx)
	}()
	go func() {
		logger.Info("server listening", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if err := registry.Start(ctx); err != nil {
		return fmt.Errorf("starting sources: %w", err)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	stop()
	logger.Info("shutting down")

	if err := registry.Stop(); err != nil {
		logger.Warn("source shutdown error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", "error", err)
	}

	eng.Stop()
	logger.Info("server stopped")

	return runErr
}
