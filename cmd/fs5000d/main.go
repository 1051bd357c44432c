// cmd/fs5000d/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/api"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/config"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/engine"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/logging"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/metrics"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/poller"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/source"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/writer"
)

func main() {
	var cfgPath string
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("fs5000d stopped", zap.Error(err))
	}
}

// loadConfig loads, validates, then normalizes.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)
	return cfg, nil
}

// pinger is implemented by mirrors that can check reachability up front.
type pinger interface {
	Ping(ctx context.Context) error
}

// checkMirrors warns about unreachable mirrors. Acquisition starts
// regardless; relays keep retrying.
func checkMirrors(ctx context.Context, writers []writer.Writer, logger *zap.Logger) {
	for _, w := range writers {
		p, ok := w.(pinger)
		if !ok {
			continue
		}
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := p.Ping(pctx)
		cancel()
		if err != nil {
			logger.Warn("mirror unreachable at startup", zap.String("sink", w.Name()), zap.Error(err))
		}
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// ---- source ----
	factory, err := source.NewFactory(sourceConfig(cfg.Source), logger.Named("source"))
	if err != nil {
		return err
	}

	// ---- engine (opens the source once, fail fast) ----
	eng, err := engine.New(engine.Config{
		Poll: poller.Config{
			Interval:      ms(cfg.Poll.IntervalMs),
			SoftThreshold: cfg.Poll.SoftThreshold,
			HardThreshold: cfg.Poll.HardThreshold,
			BackoffMin:    ms(cfg.Poll.BackoffMinMs),
			BackoffMax:    ms(cfg.Poll.BackoffMaxMs),
		},
		QueueCapacity:   cfg.Hub.QueueCapacity,
		HistoryCapacity: cfg.History.Capacity,
		ShutdownGrace:   ms(cfg.Poll.ShutdownGraceMs),
	}, factory, logger, m)
	if err != nil {
		return err
	}

	// ---- mirrors ----
	sinks, err := writer.Build(cfg.Mirror)
	if err != nil {
		return err
	}
	defer sinks.Close() //nolint:errcheck

	checkMirrors(ctx, sinks.Writers, logger.Named("mirror"))

	var wg sync.WaitGroup
	for _, w := range sinks.Writers {
		relay := writer.NewRelay(eng, w, logger.Named("mirror").With(zap.String("sink", w.Name())), m)
		wg.Add(1)
		go func() {
			defer wg.Done()
			relay.Run(ctx)
		}()
	}
	if sinks.Status != nil {
		loop := writer.NewStatusLoop(eng, sinks.Status, logger.Named("status"), m)
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop.Run(ctx)
		}()
	}

	// ---- surface ----
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.New(eng, api.Options{Metrics: m.Handler()}, logger.Named("api")).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	engErr := make(chan error, 1)
	go func() { engErr <- eng.Run(ctx) }()

	var runErr error
	select {
	case err, ok := <-serveErr:
		if ok {
			runErr = err
		}
		stop()
		if err := <-engErr; err != nil {
			logger.Warn("engine shutdown", zap.Error(err))
		}
	case err := <-engErr:
		// Run only returns early once ctx is done.
		if err != nil {
			logger.Warn("engine shutdown", zap.Error(err))
		}
	}

	st := eng.HubStats()
	logger.Info("shutting down",
		zap.Uint64("published", st.Published),
		zap.Uint64("delivered", st.Delivered),
		zap.Uint64("evicted", st.Evicted),
	)

	grace := ms(cfg.Poll.ShutdownGraceMs)
	if grace <= 0 {
		grace = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	wg.Wait()
	return runErr
}

func sourceConfig(sc config.SourceConfig) source.Config {
	return source.Config{
		UseMock: sc.UseMock,
		Hardware: source.HardwareConfig{
			Device:      sc.Device,
			BaudRate:    sc.BaudRate,
			ReadTimeout: ms(sc.ReadTimeoutMs),
			SetClock:    sc.SetClock,
		},
		Sim: source.SimConfig{
			Seed:      sc.Mock.Seed,
			Period:    ms(sc.Mock.PeriodMs),
			FailEvery: sc.Mock.FailEvery,
			MinRate:   sc.Mock.MinRate,
			MaxRate:   sc.Mock.MaxRate,
			AlarmRate: sc.Mock.AlarmRate,
		},
	}
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
