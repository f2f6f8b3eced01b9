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

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/structcalc/async-deflection-calculator/internal/api"
	"github.com/structcalc/async-deflection-calculator/internal/callback"
	"github.com/structcalc/async-deflection-calculator/internal/clock/system"
	"github.com/structcalc/async-deflection-calculator/internal/config"
	"github.com/structcalc/async-deflection-calculator/internal/dispatcher"
	"github.com/structcalc/async-deflection-calculator/internal/evaluator"
	"github.com/structcalc/async-deflection-calculator/internal/logging"
	"github.com/structcalc/async-deflection-calculator/internal/metrics"
	queueMemory "github.com/structcalc/async-deflection-calculator/internal/queue/memory"
	"github.com/structcalc/async-deflection-calculator/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// A local .env is optional; environment variables win either way.
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	clock := system.New()
	queue := queueMemory.NewQueue()
	lo, hi := cfg.DelayBounds()
	eval := evaluator.New(
		evaluator.Config{DelayMinSeconds: lo, DelayMaxSeconds: hi},
		nil,
		clock,
		logger.Named("evaluator"),
	)
	deliverer := callback.New(callback.Config{
		BaseURL:    cfg.Callback.BaseURL,
		ResultPath: cfg.Callback.ResultPath,
		AuthHeader: cfg.Callback.AuthHeader,
		AuthToken:  cfg.Callback.AuthToken,
		AuthScheme: cfg.Callback.AuthScheme,
		Timeout:    cfg.CallbackTimeout(),
		VerifyTLS:  cfg.Callback.VerifyTLS,
	}, logger.Named("callback"))

	workers := make([]*worker.Worker, 0, cfg.Jobs.Workers)
	for i := 0; i < cfg.Jobs.Workers; i++ {
		workers = append(workers, worker.New(
			queue,
			eval,
			deliverer,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	dispatch := dispatcher.New(queue, workers)

	apiServer := api.NewServer(dispatch, clock, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Workers get their own context: shutdown must drain the queue, so their
	// exit is driven by queue.Close, not the signal. The run context is
	// canceled only if the drain overruns the deadline.
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	dispatcherDone := make(chan struct{})
	go func() {
		logger.Info("dispatcher started", zap.Int("workers", cfg.Jobs.Workers))
		dispatch.Run(runCtx)
		close(dispatcherDone)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	select {
	case <-dispatcherDone:
	case <-shutdownCtx.Done():
		logger.Warn("dispatcher did not drain before deadline")
		cancelRun()
	}
	logger.Info("shutdown complete")
}
