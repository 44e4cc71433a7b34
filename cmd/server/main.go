// Command server runs the classroom monitoring backend: the REST API,
// the websocket gateway, the session message bus, and the settlement
// engine behind them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/classpulse/classpulse-backend/config"
	"github.com/classpulse/classpulse-backend/internal/application/command"
	"github.com/classpulse/classpulse-backend/internal/application/query"
	"github.com/classpulse/classpulse-backend/internal/infrastructure/external/identity"
	"github.com/classpulse/classpulse-backend/internal/infrastructure/external/school"
	"github.com/classpulse/classpulse-backend/internal/infrastructure/messaging"
	"github.com/classpulse/classpulse-backend/internal/infrastructure/metrics"
	"github.com/classpulse/classpulse-backend/internal/infrastructure/persistence/postgres"
	"github.com/classpulse/classpulse-backend/internal/infrastructure/presence"
	httpiface "github.com/classpulse/classpulse-backend/internal/interface/http"
	"github.com/classpulse/classpulse-backend/internal/interface/ws"
	"github.com/classpulse/classpulse-backend/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.App.Name)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("starting",
		zap.String("version", cfg.App.Version),
		zap.String("environment", string(cfg.App.Environment)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Storage ────────────────────────────────────────────────────────────

	conn, err := connectPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	if cfg.Database.Migrate {
		if err := postgres.Migrate(ctx, conn); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	eventLog := postgres.NewEventLogRepository(conn)
	settlements := postgres.NewSettlementRepository(conn)
	participants := postgres.NewParticipantRepository(conn)
	levels := postgres.NewLevelRepository(conn)
	xpHistory := postgres.NewXPHistoryRepository(conn)
	classes := postgres.NewClassGroupRepository(conn)
	themes := postgres.NewThemeRepository(conn)
	directory := postgres.NewDirectory(conn, participants)

	// ─── Message bus ────────────────────────────────────────────────────────

	var bus messaging.Bus
	if cfg.Redis.Disabled {
		bus = messaging.NewInMemoryBus(log)
		log.Info("message bus: in-memory")
	} else {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: ping: %w", err)
		}
		bus, err = messaging.NewRedisBus(client, log)
		if err != nil {
			return fmt.Errorf("redis bus: %w", err)
		}
		log.Info("message bus: redis", zap.String("addr", cfg.Redis.Addr))
	}
	defer bus.Close()

	tracker := presence.NewTracker()
	m := metrics.New(prometheus.DefaultRegisterer)

	// ─── Application ────────────────────────────────────────────────────────

	ingest := command.NewIngestEventHandler(eventLog, directory, bus, log)
	awardXP := command.NewAwardXPHandler(participants, levels, xpHistory, log)
	settle := command.NewSettleSessionHandler(directory, eventLog, settlements, awardXP, log)
	createClass := command.NewCreateClassHandler(classes, log)
	joinClass := command.NewJoinClassHandler(classes, participants, log)
	setModes := command.NewSetClassModesHandler(classes, bus, log)

	deps := httpiface.Dependencies{
		IngestEvent:   ingest,
		SettleSession: settle,
		AwardXP:       awardXP,
		CreateClass:   createClass,
		JoinClass:     joinClass,
		SetClassModes: setModes,

		GetPresence:    query.NewGetPresenceHandler(tracker),
		GetStatistics:  query.NewGetStatisticsHandler(settlements),
		GetXP:          query.NewGetXPHandler(participants, xpHistory),
		GetThemes:      query.NewGetThemesHandler(participants, themes),
		GetClassReport: query.NewGetClassReportHandler(directory, settlements),

		PingStorage: conn.Ping,
		Metrics:     m,
		Logger:      log,
	}
	if cfg.Identity.BaseURL != "" {
		deps.Tokens = identity.NewClient(identity.ClientConfig{
			BaseURL: cfg.Identity.BaseURL,
			Timeout: cfg.Identity.Timeout,
		})
	} else {
		log.Warn("identity service not configured, auth disabled")
	}
	if cfg.School.BaseURL != "" {
		deps.School = school.NewClient(school.ClientConfig{
			BaseURL:         cfg.School.BaseURL,
			APIKey:          cfg.School.APIKey,
			Timeout:         cfg.School.Timeout,
			RetryMaxElapsed: cfg.School.RetryMaxElapsed,
		}, log)
	}

	// ─── Interfaces ─────────────────────────────────────────────────────────

	server := httpiface.NewServer(httpiface.Config{
		Host:           cfg.HTTP.Host,
		Port:           cfg.HTTP.Port,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		EnableMetrics:  cfg.HTTP.EnableMetrics,
	}, deps)

	gateway := ws.NewGateway(ingest, tracker, directory, bus, m, log)
	gateway.Register(server.Router())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func connectPostgres(ctx context.Context, cfg *config.Config) (*postgres.Connection, error) {
	if cfg.Database.URL != "" {
		return postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	}
	return postgres.NewConnection(ctx, postgres.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
		Pool: postgres.PoolConfig{
			MaxConns:          cfg.Database.MaxConns,
			MinConns:          cfg.Database.MinConns,
			MaxConnLifetime:   cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime:   cfg.Database.ConnMaxIdleTime,
			HealthCheckPeriod: postgres.DefaultPoolConfig().HealthCheckPeriod,
		},
	})
}
