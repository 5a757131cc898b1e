package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/andygrunwald/adminis-scraper/internal/database"
	"github.com/andygrunwald/adminis-scraper/internal/http"
	"github.com/andygrunwald/adminis-scraper/internal/scheduler"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the continuous polling service",
		Long:  "Starts the scraper with an internal scheduler that polls every account at a fixed interval and serves /metrics, /status, /snapshot and /sensors.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()

			s, err := newScraper(logger, "")
			if err != nil {
				return err
			}

			logger.Info().
				Str("version", Version).
				Str("commit", Commit).
				Str("buildDate", BuildDate).
				Str("httpAddr", cfg.HTTPAddr).
				Dur("scanInterval", cfg.ScanInterval).
				Strs("accounts", s.GetAccounts()).
				Bool("database", cfg.PostgresDSN != "").
				Msg("starting adminis scraper")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			sched := scheduler.New(s, cfg.ScanInterval, logger)

			// The database is optional; without it payments are not persisted.
			var db *database.DB
			if cfg.PostgresDSN != "" {
				db, err = openDatabase(ctx, logger)
				if err != nil {
					return err
				}
				defer db.Close()
			}

			var counter http.PaymentCounter
			if db != nil {
				counter = db
			}

			httpServer := http.NewServer(cfg.HTTPAddr, s, sched, counter, reg, logger)
			s.SetPrometheusMetrics(httpServer.Metrics())
			if db != nil {
				s.SetPaymentStore(httpServer.Metrics().InstrumentStore(db), cfg.StoreRawResponse)
			}

			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				return httpServer.Start()
			})

			g.Go(func() error {
				if err := sched.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})

			g.Go(func() error {
				<-gctx.Done()
				logger.Info().Msg("shutting down")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			})

			if err := g.Wait(); err != nil {
				return err
			}

			logger.Info().Msg("shutdown complete")
			return nil
		},
	}

	cmd.Flags().DurationVar(&cfg.ScanInterval, "scan-interval", cfg.ScanInterval, "Time between two polls")
	cmd.Flags().StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address for /metrics, /status, /snapshot, /sensors")

	return cmd
}
