package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/roach88/govsync/internal/config"
	"github.com/roach88/govsync/internal/engine"
	"github.com/roach88/govsync/internal/ledger"
	"github.com/roach88/govsync/internal/ogmios"
	"github.com/roach88/govsync/internal/store"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Database       string
	OgmiosURL      string
	MetricsAddr    string
	RollbackToSlot int64
	DebugSQL       bool

	// dial opens a chain-sync session. Defaults to dialOgmios.
	dial dialFunc
}

// chainFeed is an open chain-sync session.
type chainFeed interface {
	FindIntersection(ctx context.Context, points []ledger.Point) (*ledger.Point, error)
	Next(ctx context.Context) (ogmios.Event, error)
	Close() error
}

type dialFunc func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (chainFeed, error)

func dialOgmios(ctx context.Context, cfg *config.Config, logger *slog.Logger) (chainFeed, error) {
	return ogmios.Dial(ctx, cfg.OgmiosURL,
		ogmios.WithLogger(logger),
		ogmios.WithPipelineDepth(cfg.PipelineDepth))
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts, dial: dialOgmios}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Follow the chain and project governance state",
		Long: `Follow the chain through Ogmios and write the governance projection.

On start the indexer resumes from the stored tip, offering points at
several depths below it so a fork since the last run is resolved. An
empty store starts from the configured start point. Lost connections
are re-established; an invariant violation or store failure halts the
indexer with the offending block left unapplied.

Exit codes:
  0 - Stopped by signal
  1 - Ingestion halted
  2 - Command error (invalid config, database not writable, etc.)

Examples:
  govsync sync --config govsync.yaml
  govsync sync --db ./govsync.db --ogmios ws://localhost:1337
  govsync sync --rollback-to-slot 72316796 --metrics-addr :9102`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().StringVar(&opts.OgmiosURL, "ogmios", "", "Ogmios websocket URL (overrides config)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides config)")
	cmd.Flags().Int64Var(&opts.RollbackToSlot, "rollback-to-slot", -1, "delete every block above this slot before syncing")
	cmd.Flags().BoolVar(&opts.DebugSQL, "debug-sql", false, "log every SQL statement")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.OgmiosURL != "" {
		cfg.OgmiosURL = opts.OgmiosURL
	}
	if opts.MetricsAddr != "" {
		cfg.MetricsAddr = opts.MetricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitSetup, "invalid configuration", err)
	}
	env, err := cfg.Env(logger)
	if err != nil {
		return WrapExitError(ExitSetup, "invalid configuration", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database, store.WithLogger(logger), store.WithSQLDebug(opts.DebugSQL))
	if err != nil {
		return WrapExitError(ExitSetup, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ing, err := engine.New(ctx, st, env,
		engine.WithLogger(logger),
		engine.WithMetrics(engine.NewMetrics(reg)))
	if err != nil {
		return WrapExitError(ExitSetup, "failed to load tracked state", err)
	}

	if opts.RollbackToSlot >= 0 {
		if err := ing.RollbackToSlot(ctx, uint64(opts.RollbackToSlot)); err != nil {
			return WrapExitError(ExitHalted, "rollback failed", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.MetricsAddr, reg, logger)
		})
	}
	g.Go(func() error {
		return syncChain(gctx, cfg, st, ing, opts.dial, logger)
	})

	if err := g.Wait(); err != nil {
		var ie *engine.IngestError
		if errors.As(err, &ie) {
			return WrapExitError(ExitHalted, "ingestion halted", err)
		}
		return WrapExitError(ExitHalted, "sync failed", err)
	}
	logger.Info("sync stopped")
	return nil
}

// syncChain runs chain-sync sessions until ctx is cancelled or ingestion
// fails. Transport failures start a new session, at most one per
// reconnect interval.
func syncChain(ctx context.Context, cfg *config.Config, st *store.Store, ing *engine.Ingestor, dial dialFunc, logger *slog.Logger) error {
	fallback, err := cfg.FallbackPoint()
	if err != nil {
		return err
	}
	limiter := rate.NewLimiter(rate.Every(cfg.ReconnectInterval), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}

		err := syncSession(ctx, cfg, st, ing, dial, fallback, logger)
		switch {
		case ctx.Err() != nil:
			return nil
		case err == nil:
			continue
		case engine.IsTransportError(err):
			logger.Warn("chain sync connection lost, reconnecting", "url", cfg.OgmiosURL, "error", err,
				"interval", cfg.ReconnectInterval)
		default:
			return err
		}
	}
}

// syncSession connects, intersects at the best known point and applies
// events until the session fails.
func syncSession(ctx context.Context, cfg *config.Config, st *store.Store, ing *engine.Ingestor, dial dialFunc, fallback ledger.Point, logger *slog.Logger) error {
	feed, err := dial(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer feed.Close()

	points, err := st.ResumePoints(ctx, cfg.ResumeDepths)
	if err != nil {
		return err
	}
	points = append(points, fallback)

	intersection, err := feed.FindIntersection(ctx, points)
	if err != nil {
		return err
	}
	if intersection == nil {
		logger.Info("chain sync started", "from", "origin")
	} else {
		logger.Info("chain sync started", "from", intersection.String())
	}

	return ing.Run(ctx, feed)
}

// serveMetrics serves the registry on addr until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	server := &http.Server{Addr: addr, Handler: mux, ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
