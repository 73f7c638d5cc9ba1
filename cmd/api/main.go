package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/healthreport/internal/app"
	"github.com/hamed0406/healthreport/internal/config"
	"github.com/hamed0406/healthreport/internal/httpapi"
	apimw "github.com/hamed0406/healthreport/internal/httpapi/middleware"
	"github.com/hamed0406/healthreport/internal/logging"
	"github.com/hamed0406/healthreport/internal/metrics"
	"github.com/hamed0406/healthreport/internal/repo/memory"
)

func main() {
	rt := config.FromEnv()
	logger, err := logging.NewLogger(logging.Options{Dir: rt.LogDir, Level: rt.LogLevel})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	in, err := app.Load(rt.ConfigPath, rt.SecretsPath, rt.SecretsFromEnv)
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}

	for _, w := range in.Config.FlowWarnings(in.Secrets.Lookup) {
		logger.Warn("config_warning", zap.String("detail", w))
	}

	rec, err := metrics.New()
	if err != nil {
		logger.Fatal("metrics_error", zap.Error(err))
	}

	store := memory.New() // latest report only
	runner, err := app.NewRunner(logger, in, app.Options{
		Reports:  store,
		Metrics:  rec,
		Interval: rt.CheckInterval,
	})
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go runner.Run(ctx)

	api := httpapi.NewServer(logger, store, runner, rec.Handler())
	keys := apimw.Keys{Public: rt.PublicAPIKeys, Admin: rt.AdminAPIKeys}
	srv := &http.Server{
		Addr:              rt.Addr,
		Handler:           api.Router(keys, rt.RunPerMinute, 1),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("api_listen",
		zap.String("addr", rt.Addr),
		zap.Int("systems", len(in.Config.Systems)),
		zap.Duration("interval", rt.CheckInterval),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("api_listen_error", zap.Error(err))
	}
}
