package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/LeJamon/xrplhist/internal/config"
	"github.com/LeJamon/xrplhist/internal/logging"
	"github.com/LeJamon/xrplhist/internal/metrics"
	"github.com/LeJamon/xrplhist/internal/pipeline"
	"github.com/LeJamon/xrplhist/internal/source"
	"github.com/LeJamon/xrplhist/internal/storage"
)

// runtime bundles the wired components every command starts from.
type runtime struct {
	cfg  *config.Config
	log  *zap.Logger
	met  *metrics.Metrics
	gw   storage.Gateway
	src  *source.Client
	pipe *pipeline.Pipeline
}

// newRuntime loads the configuration and opens the source and storage
// gateway. The caller owns the result and must close it.
func newRuntime() (*runtime, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if quiet {
		cfg.Log.Level = "error"
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	met := metrics.New()
	gw, err := storage.Open(&cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	src := source.NewClient(cfg.Source, log)
	pipe := pipeline.New(cfg.Pipeline, src, gw, nil, met, log)

	return &runtime{
		cfg:  cfg,
		log:  log,
		met:  met,
		gw:   gw,
		src:  src,
		pipe: pipe,
	}, nil
}

func (r *runtime) close() {
	if err := r.src.Close(); err != nil {
		r.log.Warn("source close failed", zap.Error(err))
	}
	if err := r.gw.Close(); err != nil {
		r.log.Warn("storage close failed", zap.Error(err))
	}
	_ = r.log.Sync()
}

// serveMetrics exposes /metrics until the context is done. It returns
// immediately when the endpoint is disabled.
func (r *runtime) serveMetrics(ctx context.Context) {
	if !r.cfg.Metrics.Enabled {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", r.met.Handler())
	srv := &http.Server{Addr: r.cfg.Metrics.Listen, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		r.log.Info("metrics endpoint listening", zap.String("addr", r.cfg.Metrics.Listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.log.Error("metrics endpoint failed", zap.Error(err))
		}
	}()
}
