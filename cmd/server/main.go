package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hotel-reservation-engine/internal/config"
	"github.com/iliyamo/hotel-reservation-engine/internal/database"
	"github.com/iliyamo/hotel-reservation-engine/internal/handler"
	"github.com/iliyamo/hotel-reservation-engine/internal/idempotency"
	"github.com/iliyamo/hotel-reservation-engine/internal/lifecycle"
	"github.com/iliyamo/hotel-reservation-engine/internal/lock"
	"github.com/iliyamo/hotel-reservation-engine/internal/queue"
	"github.com/iliyamo/hotel-reservation-engine/internal/repository"
	"github.com/iliyamo/hotel-reservation-engine/internal/router"
	"github.com/iliyamo/hotel-reservation-engine/internal/service"
)

func main() {
	_ = godotenv.Load() // a missing .env is fine outside development

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}

	cfg := config.Load() // Load environment config
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("database unavailable")
	}
	defer db.Close()

	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		log.WithError(err).Fatal("redis unavailable")
	}
	defer rdb.Close()

	lockCfg := config.LoadLockConfig()
	idemCfg := config.LoadIdempotencyConfig()

	opts := []lifecycle.Option{
		lifecycle.WithLogger(log),
		lifecycle.WithCardKey([]byte(cfg.CardKey)),
		lifecycle.WithLockTimeout(lockCfg.Timeout),
	}
	if cfg.EventsEnabled {
		pub := service.NewEventPublisher(cfg.RabbitURL, log)
		defer pub.Close()
		opts = append(opts, lifecycle.WithPublisher(pub))
	}
	if cfg.ConsumerEnabled {
		consumer := queue.NewConsumer(cfg.RabbitURL, cfg.EventLogPath, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("lifecycle-consumer stopped")
			}
		}()
	}

	locker := lock.New(rdb,
		lock.WithPrefix(lockCfg.Prefix),
		lock.WithRetry(lockCfg.Retry),
		lock.WithLease(lockCfg.Lease),
	)
	engine := lifecycle.NewEngine(repository.NewSQLStore(db), locker, opts...)
	idem := idempotency.New(rdb,
		idempotency.WithPrefix(idemCfg.Prefix),
		idempotency.WithTTL(idemCfg.TTL),
		idempotency.WithWait(idemCfg.Wait),
		idempotency.WithLogger(log),
	)
	svc := service.NewBookingService(engine, idem, log)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.RegisterRoutes(e, map[string]handler.Check{
		"database": db.PingContext,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})
	router.RegisterAPI(e, router.API{
		Reservations: handler.NewReservationHandler(svc, log),
		Points:       handler.NewPointsHandler(svc, log),
	}, cfg.JWTSecret, config.LoadRateLimitConfig(), rdb)

	addr := ":" + cfg.Port // Address string with port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "db": cfg.DBDriver}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown")
	}
}

// openDB connects to the configured driver and creates missing tables.
func openDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	var (
		db      *sql.DB
		err     error
		dialect = database.Dialect(cfg.DBDriver)
	)
	switch dialect {
	case database.SQLite:
		db, err = database.OpenSQLite(cfg.DBPath)
	default:
		db, err = database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	}
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
