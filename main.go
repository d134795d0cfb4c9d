package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-savings-api/config"
	"go-savings-api/handler"
	"go-savings-api/posting"
	"go-savings-api/savings"
	"go-savings-api/storage"

	"github.com/go-kit/kit/log/level"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var flagConfigFile = flag.String("config", "", "Filepath for config file to load")

func main() {
	flag.Parse()

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*flagConfigFile)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := cfg.Logger

	// Initialize storage
	store, err := storage.NewPostgresStore(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		level.Error(logger).Log("msg", "failed to initialize database", "err", err)
		os.Exit(1)
	}
	defer store.Close()
	level.Info(logger).Log("msg", "database connection established and schema initialized")

	loc := cfg.Interest.Location()
	svc := savings.NewService(store, savings.Policy{
		PostAtPeriodEnd:             cfg.Interest.PostAtPeriodEnd,
		FinancialYearBeginningMonth: cfg.Interest.FinancialYearBeginningMonth,
	}, savings.WithLocation(loc), savings.WithLogger(logger))
	poster := posting.NewPoster(store, svc.Rules, cfg.Posting, logger)

	var scheduler *posting.Scheduler
	if cfg.Posting.Enabled {
		scheduler, err = posting.NewScheduler(ctx, cfg.Posting, loc, poster, svc, logger)
		if err != nil {
			level.Error(logger).Log("msg", "failed to schedule jobs", "err", err)
			os.Exit(1)
		}
		scheduler.Start()
		level.Info(logger).Log("msg", "scheduled jobs started", "schedule", cfg.Posting.Schedule,
			"maturity_schedule", cfg.Posting.MaturitySchedule, "charge_schedule", cfg.Posting.ChargeSchedule,
			"time_zone", loc.String())
	}

	// Setup router
	r := mux.NewRouter()
	handler.NewSavingsHandler(svc, logger).Register(r)
	handler.NewFixedDepositHandler(svc, logger).Register(r)
	handler.NewGSIMHandler(svc, logger).Register(r)
	handler.NewJobHandler(poster, svc, logger).Register(r)
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("PONG"))
	}).Methods("GET")

	// Create and start server
	server := &http.Server{
		Addr:    cfg.HTTP.BindAddress,
		Handler: r,
	}

	go func() {
		level.Info(logger).Log("msg", "starting server", "address", cfg.HTTP.BindAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			level.Error(logger).Log("msg", "ListenAndServe error", "err", err)
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	level.Info(logger).Log("msg", "shutting down server")

	// Create a context for shutdown with a timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if scheduler != nil {
		if err := scheduler.Stop(shutdownCtx); err != nil {
			level.Error(logger).Log("msg", "scheduled jobs did not stop", "err", err)
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		level.Error(logger).Log("msg", "server shutdown failed", "err", err)
		return
	}

	level.Info(logger).Log("msg", "server gracefully stopped")
}
