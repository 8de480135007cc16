package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/BrandonDHaskell/labaccess/internal/config"
	"github.com/BrandonDHaskell/labaccess/internal/db"
	"github.com/BrandonDHaskell/labaccess/internal/grpcapi"
	"github.com/BrandonDHaskell/labaccess/internal/httpapi"
	"github.com/BrandonDHaskell/labaccess/internal/labaccess/service"
	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store/sqlite"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := log.New(os.Stdout, "labaccess-server ", log.LstdFlags|log.LUTC)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}

func run(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	// Storage
	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		return err
	}
	defer conn.Close()

	if cfg.Env == "dev" {
		if err := seed(ctx, conn, cfg.SeedFile); err != nil {
			return err
		}
	}

	writer := db.NewWorker(conn)
	defer writer.Close()
	st := sqlite.New(conn, writer)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics(reg)

	// Services
	clk := clock.WallClock
	doors := service.NewDoorService(st, clk, cfg.DoorPulseHold, logger)
	defer doors.Close()
	access := service.NewAccessService(st, doors, clk, logger, metrics)
	registry := service.NewRegistry(st, clk)
	ledger := service.NewLedgerService(st, clk, logger, metrics)

	// Reconciliation workers
	autoCheckout, err := service.NewAutoCheckout(service.AutoCheckoutConfig{
		Store:     st,
		Clock:     clk,
		Logger:    logger,
		Metrics:   metrics,
		Threshold: cfg.AutoCheckoutThreshold,
	})
	if err != nil {
		return err
	}
	penalty, err := service.NewDeadlinePenalty(service.DeadlinePenaltyConfig{
		Store:    st,
		Ledger:   ledger,
		Clock:    clk,
		Logger:   logger,
		Metrics:  metrics,
		Location: cfg.Location,
		Penalty:  service.DefaultPenalty,
	})
	if err != nil {
		return err
	}
	reset, err := service.NewMonthlyReset(service.MonthlyResetConfig{
		Store:    st,
		Clock:    clk,
		Logger:   logger,
		Metrics:  metrics,
		Location: cfg.Location,
	})
	if err != nil {
		return err
	}
	workers := []*service.Periodic{
		service.NewPeriodic(autoCheckout, cfg.AutoCheckoutInterval, clk, logger, metrics),
		service.NewPeriodic(penalty, cfg.PenaltyInterval, clk, logger, metrics),
		service.NewPeriodic(reset, cfg.ResetInterval, clk, logger, metrics),
	}
	for _, w := range workers {
		w.Start(ctx)
	}
	defer func() {
		for _, w := range workers {
			w.Stop()
		}
	}()

	// Transports
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:         logger,
		Addr:           cfg.HTTPAddr,
		AccessService:  access,
		DoorService:    doors,
		Registry:       registry,
		LedgerService:  ledger,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSOrigins:    cfg.CORSOrigins,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.GRPCAddr != "" {
		health := grpcapi.NewServer(cfg.GRPCAddr, logger)
		g.Go(func() error { return health.Run(gctx) })
	}

	return g.Wait()
}

func seed(ctx context.Context, conn *sql.DB, path string) error {
	opt := db.DefaultSeed()
	if path != "" {
		var err error
		if opt, err = db.LoadSeedFile(path); err != nil {
			return err
		}
	}
	return db.SeedDev(ctx, conn, opt)
}
