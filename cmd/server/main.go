package main // Entry point package

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/resort-reservation/internal/config"
	"github.com/iliyamo/resort-reservation/internal/database"
	"github.com/iliyamo/resort-reservation/internal/gateway"
	"github.com/iliyamo/resort-reservation/internal/handler"
	"github.com/iliyamo/resort-reservation/internal/logger"
	"github.com/iliyamo/resort-reservation/internal/middleware"
	"github.com/iliyamo/resort-reservation/internal/queue"
	"github.com/iliyamo/resort-reservation/internal/repository"
	"github.com/iliyamo/resort-reservation/internal/router"
	"github.com/iliyamo/resort-reservation/internal/service"
)

func main() {
	config.LoadEnv()
	engineCfg, err := config.LoadEngineConfig()
	if err != nil {
		logrus.Fatal(err)
	}
	cfg := config.Load(engineCfg.StorageDriver)

	if rotator := logger.InitLoggers(logger.Options{File: cfg.LogFile, Level: cfg.LogLevel}); rotator != nil {
		defer rotator.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := openStore(ctx, cfg, engineCfg.StorageDriver)
	if err != nil {
		logger.ErrorLogger.WithError(err).Fatal("storage init failed")
	}
	defer closeStore.Close()

	payments, err := gateway.New(engineCfg.PaymentGateway, engineCfg.RazorpayKeyID, engineCfg.RazorpayKeySecret)
	if err != nil {
		logger.ErrorLogger.WithError(err).Fatal("payment gateway init failed")
	}

	// Events are optional; without a broker they are dropped.
	var events queue.Publisher = queue.NopPublisher{}
	if cfg.AMQPURL != "" {
		pub := queue.NewAMQPPublisher(cfg.AMQPURL)
		defer pub.Close()
		events = pub
		go func() {
			if err := queue.StartAuditConsumer(ctx, cfg.AMQPURL, cfg.AuditLog); err != nil && ctx.Err() == nil {
				logger.ErrorLogger.WithError(err).Error("audit consumer stopped")
			}
		}()
	}

	// Redis backs the rate limiter and the calendar cache; both degrade to
	// pass-through when it is unreachable.
	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		logger.WarnLogger.Warn("redis unavailable, rate limiting and calendar cache disabled")
	} else {
		defer rdb.Close()
	}
	cache := middleware.NewCalendarCache(config.LoadCacheConfig(), rdb)
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	svc := service.New(repo, payments, events, service.Policy{
		PendingTTL:            engineCfg.PendingTTL,
		AllowPaidCancellation: engineCfg.AllowPaidCancellation,
		Currency:              engineCfg.PaymentCurrency,
		CreateAttempts:        engineCfg.CreateAttempts,
		MaxStayNights:         engineCfg.MaxStayNights,
	}, service.WithCalendarInvalidator(cache))
	h := handler.NewReservationHandler(svc)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID(), echomw.Recover())
	router.RegisterRoutes(e)
	router.RegisterPublic(e, h, cache)
	router.RegisterCustomer(e, h, cfg.JWTSecret, limiter)
	router.RegisterAdmin(e, h, cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		logger.InfoLogger.WithFields(logrus.Fields{
			"addr":    addr,
			"env":     cfg.Env,
			"storage": engineCfg.StorageDriver,
			"gateway": payments.Name(),
		}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorLogger.WithError(err).Error("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.InfoLogger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.ErrorLogger.WithError(err).Error("forced shutdown")
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openStore selects the reservation store.  MySQL gets its schema applied
// on startup.
func openStore(ctx context.Context, cfg config.Config, driver string) (repository.Repository, io.Closer, error) {
	if driver == "memory" {
		logger.WarnLogger.Warn("using in-memory storage, reservations are lost on restart")
		return repository.NewMemoryRepo(), nopCloser{}, nil
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, nil, err
	}
	mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := database.Migrate(mctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return repository.NewReservationRepo(db), db, nil
}
