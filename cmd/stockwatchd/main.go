package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"stockwatch/internal/scheduler"
	"stockwatch/pkg/utils"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (default $STOCKWATCH_CONFIG)")
	once := flag.Bool("once", false, "run one availability cycle for every chain and exit")
	flag.Parse()

	cfg, err := utils.LoadConfig(*configPath)
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := utils.NewLogger(cfg.Log)
	log := utils.Component(logger, "daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer a.close()

	if *once {
		scheduler.CycleJob(a.settings, a.engine, utils.Component(logger, "cycle"))(ctx)
		return
	}

	if err := run(ctx, a); err != nil {
		log.WithError(err).Error("daemon stopped with error")
		a.close()
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app) error {
	gin.SetMode(gin.ReleaseMode)
	httpSrv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 4)
	var wg sync.WaitGroup
	goRun := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				a.log.WithError(err).WithField("server", name).Error("server failed")
				errCh <- err
			}
		}()
	}

	// bind TCP and UDP first so address conflicts show up early
	goRun("tcp", func() error { return a.tcp.Run(ctx) })
	goRun("udp", func() error { return a.udp.Run(ctx) })
	goRun("http", func() error {
		a.log.WithField("addr", a.cfg.HTTPAddr).Info("HTTP API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if a.registry != nil {
		goRun("registry", func() error { return a.registry.Run(ctx) })
	}

	if err := a.startSchedule(ctx); err != nil {
		a.log.WithError(err).Error("start schedule")
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	a.log.Info("shutting down servers")
	cancel()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("http shutdown")
	}
	if err := a.tcp.Close(); err != nil {
		a.log.WithError(err).Warn("tcp shutdown")
	}

	wg.Wait()
	a.log.Info("servers stopped")
	return runErr
}
