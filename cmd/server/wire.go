package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	jwttoken "lifeline/internal/jwt_token"
	unit "lifeline/internal/ledger/models"
	ledger "lifeline/internal/ledger/service"
	ledgerstore "lifeline/internal/ledger/store"
	ledgermemory "lifeline/internal/ledger/store/memory"
	ledgerpg "lifeline/internal/ledger/store/postgres"
	"lifeline/internal/platform/config"
	"lifeline/internal/platform/kafka"
	"lifeline/internal/platform/metrics"
	"lifeline/internal/platform/postgres"
	redisclient "lifeline/internal/platform/redis"
	"lifeline/internal/request/latch"
	request "lifeline/internal/request/service"
	requeststore "lifeline/internal/request/store"
	requestmemory "lifeline/internal/request/store/memory"
	requestpg "lifeline/internal/request/store/postgres"
	"lifeline/internal/reservation"
	"lifeline/internal/screening"
	"lifeline/internal/separation"
	httptransport "lifeline/internal/transport/http"
	"lifeline/pkg/platform/events"
	eventsmemory "lifeline/pkg/platform/events/store/memory"
	eventspg "lifeline/pkg/platform/events/store/postgres"
	"lifeline/pkg/secrets"
)

// app holds the wired process. Memory stores are used when no database URL
// is configured; the outbox relay runs only on postgres.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	db       *sql.DB
	redis    *redisclient.Client
	producer *kafka.Producer
	outbox   *eventspg.Store

	ledger     *ledger.Service
	screening  *screening.Service
	separation *separation.Service
	engine     *reservation.Engine
	requests   *request.Service
	tokens     *jwttoken.JWTService
}

func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.NewWithRegisterer(a.registry)

	var (
		units    ledgerstore.Transactional
		reqs     requeststore.Transactional
		eventLog events.Store
	)
	if cfg.Database.URL == "" {
		logger.WarnContext(ctx, "no database configured, using in-memory stores")
		units = ledgermemory.New()
		reqs = requestmemory.New()
		eventLog = eventsmemory.NewInMemoryStore()
	} else {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.db = db
		units = ledgerpg.New(db, ledgerpg.WithTxTimeout(cfg.Database.TxTimeout))
		reqs = requestpg.New(db)
		a.outbox = eventspg.New(db)
		eventLog = a.outbox
	}

	rc, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		a.close()
		return nil, err
	}
	a.redis = rc

	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		a.close()
		return nil, err
	}
	a.producer = producer

	shelfLife, err := shelfLifePolicy(cfg.Policy.ShelfLife)
	if err != nil {
		a.close()
		return nil, err
	}

	publisher := events.NewPublisher(eventLog, events.WithLogger(logger))
	a.ledger = ledger.New(units,
		ledger.WithLogger(logger),
		ledger.WithMetrics(a.metrics),
		ledger.WithEventSink(publisher),
		ledger.WithPolicy(ledger.Policy{
			AllowPrescreened: cfg.Policy.AllowPrescreenedIntake,
			DefaultLocation:  cfg.Policy.DefaultLocation,
			DefaultVolumeML:  cfg.Policy.DefaultVolumeML,
		}),
	)
	a.screening = screening.New(a.ledger, screening.WithLogger(logger))
	a.separation = separation.New(a.ledger,
		separation.WithLogger(logger),
		separation.WithMetrics(a.metrics),
		separation.WithShelfLife(shelfLife),
	)
	a.engine = reservation.New(a.ledger,
		reservation.WithLogger(logger),
		reservation.WithMetrics(a.metrics),
		reservation.WithMaxAttempts(cfg.Policy.ReserveMaxAttempts),
	)

	var tracking request.TrackingLatch = latch.NewMemory()
	if a.redis != nil {
		tracking = latch.NewRedis(a.redis.Client)
	}
	a.requests = request.New(reqs, a.engine,
		request.WithLogger(logger),
		request.WithMetrics(a.metrics),
		request.WithEventSink(publisher),
		request.WithTrackingLatch(tracking),
		request.WithHasher(secrets.NewHasher(0)),
		request.WithReservationHoldTTL(cfg.Policy.ReservationHoldTTL),
	)
	a.tokens = jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer)
	return a, nil
}

// handler adapts the services to the HTTP transport.
func (a *app) handler() *httptransport.Handler {
	return httptransport.NewHandler(a.ledger, a.screening, a.separation, a.requests, a.logger)
}

// readiness has one check per configured backing service.
func (a *app) readiness() []httptransport.ReadinessCheck {
	var checks []httptransport.ReadinessCheck
	if a.db != nil {
		checks = append(checks, httptransport.ReadinessCheck{Name: "database", Check: a.db.PingContext})
	}
	if a.redis != nil {
		checks = append(checks, httptransport.ReadinessCheck{Name: "redis", Check: a.redis.Health})
	}
	if a.producer != nil {
		checks = append(checks, httptransport.ReadinessCheck{Name: "kafka", Check: a.producer.Health})
	}
	return checks
}

func (a *app) close() {
	if a.producer != nil {
		a.producer.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis client", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", "error", err)
		}
	}
}

// shelfLifePolicy converts the configured policy, rejecting unknown components.
func shelfLifePolicy(cfg config.ShelfLife) (separation.ShelfLife, error) {
	out := make(separation.ShelfLife, len(cfg))
	for name, d := range cfg {
		component := unit.Component(name)
		if !component.IsValid() {
			return nil, fmt.Errorf("shelf life policy: unknown component %q", name)
		}
		out[component] = d
	}
	return out, nil
}
