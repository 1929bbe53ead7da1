// Command alertd polls the GPS tracking server, derives edge-triggered alerts
// for tracked school buses and fans them out to live viewers.
//
//	@title						School Transport Alert Engine
//	@version					1.0
//	@description				Real-time alert generation and fanout for tracked school buses.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/schooltrack/alert-engine/internal/api"
	"github.com/schooltrack/alert-engine/internal/core/ports"
	"github.com/schooltrack/alert-engine/internal/core/service"
	mongodb "github.com/schooltrack/alert-engine/internal/infrastructure/db/mongo"
	redisstore "github.com/schooltrack/alert-engine/internal/infrastructure/db/redis"
	"github.com/schooltrack/alert-engine/internal/infrastructure/messaging/rabbitmq"
	"github.com/schooltrack/alert-engine/internal/infrastructure/queue"
	"github.com/schooltrack/alert-engine/internal/infrastructure/telemetry"
	"github.com/schooltrack/alert-engine/internal/pkg/config"
	"github.com/schooltrack/alert-engine/pkg/logger"
)

const persistTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "alertd",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("alertd stopped")
	}
	log.Info().Msg("alertd stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	loc, err := cfg.Alerts.Location()
	if err != nil {
		return err
	}

	// --- Storage ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(dctx)
	}()

	rdb, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	alerts := mongodb.NewAlertRepository(db)
	if err := alerts.EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("alert indexes not ensured")
	}

	// --- Persistence and forwarding ---
	var publishers []ports.BatchPublisher
	if cfg.AMQP.URL != "" {
		conn, err := rabbitmq.Connect(cfg.AMQP.URL)
		if err != nil {
			return err
		}
		defer func() { _ = conn.Close() }()

		pub, err := rabbitmq.NewAlertPublisher(conn, cfg.AMQP.Exchange)
		if err != nil {
			return err
		}
		defer func() { _ = pub.Close() }()
		publishers = append(publishers, pub)
		log.Info().Str("exchange", cfg.AMQP.Exchange).Msg("forwarding alert batches to amqp")
	}
	writer := queue.NewBatchWriter(alerts, persistTimeout, log, publishers...)

	// --- Sources ---
	positions := telemetry.NewClient(telemetry.Config{
		URL:      cfg.Telemetry.URL,
		Username: cfg.Telemetry.Username,
		Password: cfg.Telemetry.Password,
		Timeout:  cfg.Telemetry.Timeout,
	}, log)
	geofences := service.NewGeofenceCache(mongodb.NewGeofenceRepository(db), log)
	preferences := service.NewPreferenceCache(mongodb.NewPreferenceRepository(db), log)
	if err := geofences.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("initial geofence load failed")
	}
	if err := preferences.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("initial preference load failed")
	}

	// --- Engine ---
	hub := service.NewHub(0, log)
	alertSvc := service.NewAlertService(
		positions,
		geofences,
		mongodb.NewRequestRepository(db),
		mongodb.NewAttendanceRepository(db),
		service.NewDiffer(service.DefaultDifferOptions()),
		redisstore.NewSuppressor(rdb, cfg.Alerts.SuppressWindow),
		writer,
		hub,
		loc,
		log,
	)
	etaSvc := service.NewEtaService(positions, geofences, service.NewEstimator(cfg.Eta.Cooldown, cfg.Eta.MinSpeed), log)

	e := api.NewRouter(api.Dependencies{
		JWTSecret:       cfg.JWTSecret,
		Mongo:           db,
		Redis:           rdb,
		Telemetry:       positions,
		TelemetryMaxAge: 3 * cfg.Telemetry.Interval,
		Scopes:          service.NewRoleScopeResolver(mongodb.NewDirectoryRepository(db)),
		Hub:             hub,
		Eta:             etaSvc,
		Preferences:     preferences,
		Log:             log,
	})

	// --- Loops ---
	loopCtx, stopLoops := context.WithCancel(ctx)
	defer stopLoops()

	writer.Start(loopCtx)

	var wg sync.WaitGroup
	for _, loop := range []func(){
		func() { positions.Run(loopCtx, cfg.Telemetry.Interval) },
		func() { geofences.Run(loopCtx, cfg.Alerts.GeofenceRefreshInterval) },
		func() { preferences.Run(loopCtx, cfg.Alerts.PreferenceRefreshInterval) },
		func() { alertSvc.Run(loopCtx, cfg.Alerts.TickInterval) },
		func() { etaSvc.Run(loopCtx, cfg.Eta.Interval) },
	} {
		wg.Add(1)
		go func(fn func()) {
			defer wg.Done()
			fn()
		}(loop)
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("http server failed")
		}
	}

	// --- Graceful shutdown: stop intake, then drain persistence ---
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}

	stopLoops()
	wg.Wait()

	if err := writer.Shutdown(cfg.ShutdownTimeout); err != nil {
		log.Warn().Err(err).Msg("alert queue not fully drained")
	}
	return nil
}
