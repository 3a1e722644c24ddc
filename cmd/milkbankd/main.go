// Command milkbankd serves the milk bank lifecycle engine over HTTP and runs
// the scheduled traceability archive.
package main

import (
	"context"
	"errors"
	"expvar"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httpadapter "milkbank/internal/adapters/http"
	"milkbank/internal/archive"
	"milkbank/internal/blob"
	"milkbank/internal/config"
	"milkbank/internal/core"
	"milkbank/internal/logging"
	"milkbank/internal/scheduler"
	"milkbank/pkg/domain"
)

const (
	serviceName     = "milkbankd"
	shutdownTimeout = 15 * time.Second
)

var exitFunc = os.Exit

func main() {
	code := cli(os.Args[1:], os.Stderr)
	exitFunc(code)
}

func cli(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		envFile string
		restore bool
	)
	fs.StringVar(&envFile, "env", "", "path to a .env file (defaults to ./.env when present)")
	fs.BoolVar(&restore, "restore-latest", false, "replace the store state with the newest archive before serving")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return 1
	}
	defer func() {
		if err := a.close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}()

	if restore {
		if _, err := a.archiver.Restore(ctx, ""); err != nil && !errors.Is(err, archive.ErrNoArchive) {
			logger.Error("restore failed", zap.Error(err))
			return 1
		}
	}
	if err := a.serve(ctx); err != nil {
		logger.Error("server stopped", zap.Error(err))
		return 1
	}
	return 0
}

type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     core.PersistentStore
	svc       *core.Service
	archiver  *archive.Archiver
	scheduler *scheduler.Scheduler
	handler   http.Handler
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	classifier := domain.NewClassifier(domain.ClassifierPolicy{
		BodyModificationWindowMonths: cfg.Lifecycle.BodyModificationWindowMonths,
	})
	store, err := core.OpenPersistentStore(ctx, cfg.Storage, core.NewDefaultRulesEngine(classifier))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, store: store}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		_ = a.close()
		return nil, err
	}
	expvarMetrics := core.NewExpvarMetricsRecorder("")

	a.svc = core.NewService(store,
		core.WithLogger(logging.NewSugared(logging.Named(logger, "core"))),
		core.WithMetricsRecorder(core.MultiMetricsRecorder{prom, expvarMetrics}),
		core.WithClassifier(classifier),
		core.WithExpirationPolicy(core.ShelfLife(time.Duration(cfg.Lifecycle.ShelfLifeDays)*24*time.Hour)),
	)

	source, ok := store.(core.StateArchiver)
	if !ok {
		_ = a.close()
		return nil, fmt.Errorf("storage driver %q cannot export state", cfg.Storage.Driver)
	}
	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		_ = a.close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	a.archiver, err = archive.New(source, blobs, archive.Options{
		Prefix: cfg.Archive.Prefix,
		Retain: cfg.Archive.Retain,
		Logger: logging.Named(logger, "archive"),
	})
	if err != nil {
		_ = a.close()
		return nil, err
	}

	a.scheduler = scheduler.New(logging.Named(logger, "scheduler"))
	if err := a.scheduler.Add("archive_snapshot", cfg.Archive.Schedule, func(ctx context.Context) error {
		_, err := a.archiver.Snapshot(ctx)
		return err
	}); err != nil {
		_ = a.close()
		return nil, fmt.Errorf("schedule archive: %w", err)
	}

	api := httpadapter.New(a.svc,
		httpadapter.WithArchive(a.archiver),
		httpadapter.WithMetrics(registry),
		httpadapter.WithLogger(logging.Named(logger, "http")),
	)
	r := chi.NewRouter()
	r.Handle("/debug/vars", expvar.Handler())
	r.Mount("/", api.Routes())
	a.handler = r

	logger.Info("milkbank ready",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("blob", string(blobs.Driver())),
		zap.String("archive_schedule", cfg.Archive.Schedule))
	return a, nil
}

// serve runs the HTTP server and scheduler until ctx is cancelled.
func (a *app) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.scheduler.Start()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	a.logger.Info("listening", zap.String("addr", a.cfg.Server.Addr))

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		serveErr = errors.Join(serveErr, err)
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		serveErr = errors.Join(serveErr, err)
	}
	return serveErr
}

func (a *app) close() error {
	if closer, ok := a.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
