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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	exdb "github.com/hakimelghazi/matching-core/db"
	"github.com/hakimelghazi/matching-core/internal/config"
	"github.com/hakimelghazi/matching-core/internal/engine"
	"github.com/hakimelghazi/matching-core/internal/httpapi"
	"github.com/hakimelghazi/matching-core/internal/logging"
	"github.com/hakimelghazi/matching-core/internal/marketdata"
	"github.com/hakimelghazi/matching-core/internal/server"
	"github.com/hakimelghazi/matching-core/internal/sink"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "matcher:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("MATCHER_CONFIG"), "path to a config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// 1) event sinks
	targets, closeTargets, err := buildTargets(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeTargets()

	disp := sink.NewDispatcher(logger.Named("sink"), targets...)
	dispatched := make(chan error, 1)
	go func() { dispatched <- disp.Run(context.WithoutCancel(ctx)) }()

	// 2) engine
	trades := marketdata.NewCache()
	eng := engine.New(sink.Fanout{disp, trades},
		engine.WithLogger(logger.Named("engine")),
		engine.WithMetrics(engine.NewMetrics(reg)),
		engine.WithCancelScope(cfg.CancelScope()),
	)

	// 3) client listener
	ln, err := server.Listen(cfg.Listen.Network, cfg.Listen.Address)
	if err != nil {
		return err
	}
	srv := server.New(eng, logger.Named("server"), reg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx, ln) })

	// 4) operational HTTP
	if cfg.HTTP.Address != "" {
		httpSrv := &http.Server{
			Addr: cfg.HTTP.Address,
			Handler: httpapi.NewRouter(httpapi.Deps{
				Books:    eng.Books(),
				Trades:   trades,
				Gatherer: reg,
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("http listening", zap.String("addr", cfg.HTTP.Address))
			if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Shutdown.Timeout)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	}

	if cfg.MarketData.ReportInterval > 0 {
		g.Go(func() error {
			marketdata.Report(gctx, trades, logger.Named("marketdata"), cfg.MarketData.ReportInterval)
			return nil
		})
	}

	err = g.Wait()
	logger.Info("shutting down", zap.Int("pending_events", disp.Pending()))

	// every session has returned, nothing publishes any more
	disp.Close()
	select {
	case derr := <-dispatched:
		err = errors.Join(err, derr)
	case <-time.After(cfg.Shutdown.Timeout):
		logger.Warn("event drain timed out", zap.Int("pending_events", disp.Pending()))
	}
	return err
}

// buildTargets opens every configured delivery target. The returned func
// releases resources the targets do not own.
func buildTargets(ctx context.Context, cfg *config.Config, logger *zap.Logger) ([]sink.Target, func(), error) {
	var targets []sink.Target
	cleanup := func() {}

	if cfg.Output.Stdout {
		targets = append(targets, sink.NewWriter("stdout", os.Stdout))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		targets = append(targets, sink.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		logger.Info("kafka sink enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	if cfg.Postgres.URL != "" || os.Getenv("DATABASE_URL") != "" {
		pool, err := exdb.NewPool(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, cleanup, err
		}
		if err := exdb.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, cleanup, err
		}
		targets = append(targets, sink.NewPostgres(pool))
		cleanup = pool.Close
		logger.Info("postgres journal enabled")
	}
	return targets, cleanup, nil
}
