package main

import (
	"context"
	crypto_rand "crypto/rand"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/telehealth/clinic/internal/config"
	"github.com/telehealth/clinic/internal/domain/clinical"
	"github.com/telehealth/clinic/internal/domain/identity"
	"github.com/telehealth/clinic/internal/domain/portal"
	"github.com/telehealth/clinic/internal/domain/referral"
	"github.com/telehealth/clinic/internal/domain/scheduling"
	"github.com/telehealth/clinic/internal/platform/auth"
	"github.com/telehealth/clinic/internal/platform/db"
	"github.com/telehealth/clinic/internal/platform/metrics"
	"github.com/telehealth/clinic/internal/platform/middleware"
	"github.com/telehealth/clinic/internal/platform/validation"
	"github.com/telehealth/clinic/pkg/lifecycle"
)

const (
	requestBodyLimit = "1M"
	requestTimeout   = 30 * time.Second
	poolStatsEvery   = 15 * time.Second
)

// stores holds one repository per aggregate, backed by whichever driver
// DATABASE_DRIVER selects.
type stores struct {
	appointments scheduling.AppointmentRepository
	diagnoses    clinical.DiagnosisRepository
	referrals    referral.ReferralRepository
	vitals       portal.VitalsRepository
	refills      portal.RefillRepository
	users        identity.UserRepository
	checker      db.Checker
}

// models are the tables AutoMigrate manages on MySQL.
func models() []interface{} {
	return []interface{}{
		&identity.User{},
		&scheduling.Appointment{},
		&clinical.Diagnosis{},
		&referral.HospitalReferral{},
		&portal.VitalsSubmission{},
		&portal.RefillRequest{},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).Level(cfg.Level()).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(cfg.Level()).With().Timestamp().Logger()
	}
	return logger
}

// openStores connects to the configured database. PostgreSQL is migrated
// from the embedded SQL files, MySQL with AutoMigrate.
func openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*stores, func(), error) {
	if cfg.DatabaseDriver == config.DriverMySQL {
		gdb, err := db.OpenMySQL(cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to mysql: %w", err)
		}
		if err := db.AutoMigrate(gdb, models()...); err != nil {
			return nil, nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, nil, err
		}
		return &stores{
			appointments: scheduling.NewAppointmentRepoGorm(gdb),
			diagnoses:    clinical.NewDiagnosisRepoGorm(gdb),
			referrals:    referral.NewReferralRepoGorm(gdb),
			vitals:       portal.NewVitalsRepoGorm(gdb),
			refills:      portal.NewRefillRepoGorm(gdb),
			users:        identity.NewUserRepoGorm(gdb),
			checker:      db.SQLChecker{DB: sqlDB},
		}, func() { sqlDB.Close() }, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	n, err := migrator(pool, "", cfg.MigrationsDir).Up(ctx)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	if n > 0 {
		logger.Info().Int("applied", n).Msg("applied migrations")
	}
	return &stores{
		appointments: scheduling.NewAppointmentRepoPG(pool),
		diagnoses:    clinical.NewDiagnosisRepoPG(pool),
		referrals:    referral.NewReferralRepoPG(pool),
		vitals:       portal.NewVitalsRepoPG(pool),
		refills:      portal.NewRefillRepoPG(pool),
		users:        identity.NewUserRepoPG(pool),
		checker:      db.PgxChecker{Pool: pool},
	}, pool.Close, nil
}

// resolveSigningKey returns the configured key. In development without one
// a random key is generated, so tokens do not survive a restart.
func resolveSigningKey(cfg *config.Config) ([]byte, bool, error) {
	key, err := cfg.SigningKey()
	if err != nil || key != nil {
		return key, false, err
	}
	if !cfg.IsDev() {
		return nil, false, fmt.Errorf("AUTH_SIGNING_KEY is required")
	}
	key = make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("failed to generate random signing key: %w", err)
	}
	return key, true, nil
}

// newRouter assembles the middleware chain and every route. collector may
// be nil when metrics are disabled.
func newRouter(cfg *config.Config, logger zerolog.Logger, st *stores, key []byte, collector *metrics.Collector) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(echomw.BodyLimit(requestBodyLimit))
	e.Use(echomw.ContextTimeout(requestTimeout))

	observers := []lifecycle.Observer{lifecycle.LogObserver(logger)}
	if collector != nil {
		e.Use(collector.Middleware())
		observers = append(observers, collector)
		e.GET("/metrics", echo.WrapHandler(collector.Handler()))
	}
	obs := lifecycle.Observers(observers...)

	jwtCfg := auth.JWTConfig{Issuer: cfg.AuthIssuer, SigningKey: key, Skipper: auth.AuthSkipper}
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}
	e.Use(middleware.Audit(logger))

	e.GET("/health", db.HealthHandler(st.checker))

	apiV1 := e.Group("/api/v1")
	tokens := auth.NewTokenIssuer(key, cfg.AuthIssuer, cfg.TokenTTL)
	identitySvc := identity.NewService(st.users, tokens)
	portalSvc := portal.NewService(st.vitals, st.refills, obs)
	portalSvc.SetPatientDirectory(identitySvc)

	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)
	scheduling.NewHandler(scheduling.NewService(st.appointments, obs)).RegisterRoutes(apiV1)
	clinical.NewHandler(clinical.NewService(st.diagnoses, obs)).RegisterRoutes(apiV1)
	referral.NewHandler(referral.NewService(st.referrals, obs)).RegisterRoutes(apiV1)
	portal.NewHandler(portalSvc).RegisterRoutes(apiV1)

	return e
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	key, generated, err := resolveSigningKey(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve signing key")
	}
	if generated {
		logger.Warn().Msg("AUTH_SIGNING_KEY not set; using a random key for this process")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	st, closeStores, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer closeStores()
	logger.Info().Str("driver", cfg.DatabaseDriver).Msg("connected to database")

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		collector = metrics.NewCollector()
		go reportPoolStats(ctx, st.checker, collector)
	}

	e := newRouter(cfg, logger, st, key, collector)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func reportPoolStats(ctx context.Context, check db.Checker, collector *metrics.Collector) {
	ticker := time.NewTicker(poolStatsEvery)
	defer ticker.Stop()
	for {
		publishPoolStats(check, collector)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func publishPoolStats(check db.Checker, collector *metrics.Collector) {
	s := check.Stats()
	collector.SetPoolConnections(int(s.TotalConns), int(s.IdleConns))
}
