// forecast-run evaluates the configured predictors on every location, window
// and feature filter and writes the full and summary result tables.
//
// Usage:
//
//	forecast-run -config configs/pvforecast.yaml
//	forecast-run -config configs/first_run_uq.yaml -listen :8080 -workers 4
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"pv_forecast/internal/config"
	"pv_forecast/internal/logging"
	"pv_forecast/internal/metrics"
	"pv_forecast/internal/runner"
	"pv_forecast/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to run configuration (YAML)")
	listen := flag.String("listen", "", "serve /ws, /metrics and /health on this address (overrides server.listen)")
	workers := flag.Int("workers", 1, "rows evaluated in parallel")
	keepServing := flag.Bool("keep-serving", false, "keep the server running after the run until interrupted")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *workers, *keepServing, log); err != nil {
		log.Fatal().Err(err).Msg("run failed")
	}
}

func run(ctx context.Context, cfg *config.Config, workers int, keepServing bool, log zerolog.Logger) error {
	models, err := runner.ModelsFromConfig(cfg.Models)
	if err != nil {
		return err
	}
	windows, err := cfg.ParsedWindows()
	if err != nil {
		return err
	}

	locations, err := runner.LoadLocations(ctx, cfg.Source, log)
	if err != nil {
		return fmt.Errorf("loading locations: %w", err)
	}
	if len(locations) == 0 {
		return errors.New("no location could be loaded")
	}
	log.Info().Int("locations", len(locations)).Int("windows", len(windows)).Msg("data loaded")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := runner.Options{
		Locations: locations,
		Windows:   windows,
		Filters:   cfg.ParsedFilters(),
		Models:    models,
		Metrics:   cfg.Metrics,
		Scaling:   cfg.Scaling,
		Strict:    cfg.Strict,
		Workers:   workers,
		Log:       log,
	}

	var srv *http.Server
	if cfg.Server.Listen != "" {
		hub := ws.NewHub(log)
		rec := metrics.NewRecorder()
		opts.Observers = append(opts.Observers, ws.NewBridge(hub), runner.ObserveMetrics(rec))
		r := runner.New(opts)

		srv = &http.Server{
			Addr:              cfg.Server.Listen,
			Handler:           newMux(ws.NewHandler(hub, r, cancel), rec),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info().Str("addr", srv.Addr).Msg("starting server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("server stopped")
			}
		}()
		defer shutdown(srv, hub, log)

		if err := execute(ctx, r, cfg, log); err != nil {
			return err
		}
		if keepServing {
			log.Info().Msg("run complete, serving results until interrupted")
			<-ctx.Done()
		}
		return nil
	}

	return execute(ctx, runner.New(opts), cfg, log)
}

func execute(ctx context.Context, r *runner.Runner, cfg *config.Config, log zerolog.Logger) error {
	res, runErr := r.Run(ctx)
	if res == nil {
		return runErr
	}
	if runErr != nil {
		log.Warn().Err(runErr).Msg("run interrupted, saving partial results")
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	if err := res.Save(cfg.FullPath(), cfg.QuantilesPath(), cfg.Output.IndexName); err != nil {
		return err
	}
	log.Info().
		Str("full", cfg.FullPath()).
		Str("quantiles", cfg.QuantilesPath()).
		Int("cells", res.Cells).
		Int("failed", res.Failed).
		Msg("results written")
	return nil
}

func newMux(handler http.Handler, rec *metrics.Recorder) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.Handle("/ws", handler)
	mux.Handle("GET /metrics", rec.Handler())
	return mux
}

func shutdown(srv *http.Server, hub *ws.Hub, log zerolog.Logger) {
	hub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("server shutdown")
	}
}
