package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/cinema-management/internal/config"
	"github.com/iliyamo/cinema-management/internal/database"
	"github.com/iliyamo/cinema-management/internal/handler"
	"github.com/iliyamo/cinema-management/internal/mail"
	"github.com/iliyamo/cinema-management/internal/middleware"
	"github.com/iliyamo/cinema-management/internal/queue"
	"github.com/iliyamo/cinema-management/internal/repository"
	"github.com/iliyamo/cinema-management/internal/router"
	"github.com/iliyamo/cinema-management/internal/service"
	"github.com/iliyamo/cinema-management/internal/storage"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}

func setupLogging(cfg config.Config) {
	if cfg.Env == "prod" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.WithError(err).Warn("unknown LOG_LEVEL, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

func run(ctx context.Context, cfg config.Config) error {
	db, err := database.Open(database.Options{
		User:            cfg.DBUser,
		Pass:            cfg.DBPass,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLife,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// repositories
	users := repository.NewUserRepo(db)
	movies := repository.NewMovieRepo(db)
	rooms := repository.NewRoomRepo(db)
	showtimes := repository.NewShowtimeRepo(db)
	seats := repository.NewSeatRepo(db)
	invoices := repository.NewInvoiceRepo(db)
	reports := repository.NewReportRepo(db)

	accounts := service.NewAccounts(users, cfg.JWTSecret, cfg.JWTTTL, cfg.BcryptCost)
	if err := accounts.SeedAdmin(ctx, cfg.AdminPassword); err != nil {
		return err
	}

	// receipts: purchase -> RabbitMQ -> consumer -> SMTP
	broker := config.LoadBrokerConfig()
	mailCfg := config.LoadMailConfig()
	var receipts service.ReceiptPublisher
	var consumer *queue.Consumer
	if broker.URL != "" {
		publisher := queue.NewPublisher(broker.URL, broker.ReceiptQueue)
		defer publisher.Close()
		receipts = publisher
		consumer = queue.NewConsumer(queue.ConsumerOptions{
			URL:        broker.URL,
			Queue:      broker.ReceiptQueue,
			Currency:   mailCfg.Currency,
			Attachment: mailCfg.Attachment,
			MaxRetries: broker.MaxRetries,
		}, mail.NewSender(mailCfg))
	} else {
		logrus.Warn("RABBITMQ_URL not set, receipts will not be emailed")
	}

	loc := cfg.Location()
	scheduler := service.NewScheduler(movies, rooms, showtimes, loc)
	purchases := service.NewPurchases(showtimes, invoices, service.NewLedger(showtimes, seats), receipts, broker.PublishTimeout)

	assets, err := storage.NewLocalStore(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		return err
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb != nil {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger())
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dM", cfg.MaxUploadBytes>>20+1)))

	h := router.Handlers{
		Auth:      handler.NewAuthHandler(accounts, users, cfg.BcryptCost),
		Users:     handler.NewUserHandler(users, cfg.BcryptCost),
		Movies:    handler.NewMovieHandler(movies, assets, cfg.MaxUploadBytes),
		Rooms:     handler.NewRoomHandler(rooms),
		Showtimes: handler.NewShowtimeHandler(scheduler, showtimes, movies, seats, loc),
		Purchases: handler.NewPurchaseHandler(purchases, showtimes, invoices, seats),
		Reports:   handler.NewReportHandler(reports),
	}
	edge := router.Edge{
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	}
	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, h.Auth, edge, cfg.JWTSecret)
	router.RegisterPublic(e, h, edge)
	router.RegisterStaff(e, h, cfg.JWTSecret)

	g, runCtx := errgroup.WithContext(ctx)
	if consumer != nil {
		g.Go(func() error {
			return consumer.Run(runCtx)
		})
	}
	g.Go(func() error {
		addr := ":" + cfg.Port
		logrus.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("starting HTTP server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("starting http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logrus.Info("shutting down HTTP server")
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return nil
	})

	err = g.Wait()
	// let in-flight receipts reach the broker before its connection closes
	purchases.Wait()
	if err != nil {
		return err
	}
	logrus.Info("shutdown complete")
	return nil
}
