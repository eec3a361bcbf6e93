package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"lifeline/internal/platform/httpserver"
	"lifeline/internal/platform/postgres"
	httptransport "lifeline/internal/transport/http"
	"lifeline/pkg/platform/events"
	"lifeline/pkg/platform/events/relay"
)

func serveCommand() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the outbox relay and the expiry sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveRun(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply database migrations before serving")
	return cmd
}

func serveRun(ctx context.Context, migrate bool) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if migrate && a.db != nil {
		if err := postgres.Migrate(ctx, a.db); err != nil {
			return err
		}
		logger.InfoContext(ctx, "database migrations applied")
	}

	router := httptransport.NewRouter(a.handler(), httptransport.RouterConfig{
		Validator:      a.tokens,
		Logger:         logger,
		Metrics:        a.metrics,
		Gatherer:       a.registry,
		RequestTimeout: cfg.Server.RequestTimeout,
		Readiness:      a.readiness(),
	})
	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.InfoContext(gctx, "starting lifeline", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.InfoContext(shutdownCtx, "shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return ignoreCanceled(newSweeper(a).Run(gctx, cfg.Policy.SweepInterval))
	})

	if a.producer != nil && a.outbox != nil {
		if err := a.producer.EnsureTopics(ctx, cfg.Kafka.TopicPartitions, cfg.Kafka.TopicReplication,
			events.EntityUnit.Topic(), events.EntityRequest.Topic()); err != nil {
			logger.WarnContext(ctx, "failed to ensure event topics", "error", err)
		}
		worker := relay.NewWorker(a.outbox, a.producer,
			relay.WithLogger(logger),
			relay.WithBatchSize(cfg.Kafka.RelayBatchSize),
			relay.WithPollInterval(cfg.Kafka.RelayPollInterval),
		)
		g.Go(func() error {
			return ignoreCanceled(worker.Run(gctx))
		})
	} else if a.producer != nil {
		logger.WarnContext(ctx, "event relay disabled: the outbox requires a database")
	}

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
