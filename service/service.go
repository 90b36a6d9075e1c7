package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"boxoffice/clock"
	"boxoffice/config"
	"boxoffice/http"
	"boxoffice/message"
	"boxoffice/postgres"
	"boxoffice/sale"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Service struct {
	msgRouter  *message.Router
	forwarder  *message.Forwarder
	httpRouter *echo.Echo
	httpAddr   string
}

func New(
	logger watermill.LoggerAdapter,
	redisClient *redis.Client,
	db *sqlx.DB,
	cfg config.Config,
) (*Service, error) {
	eventRepo := postgres.NewEventRepo(db, time.Duration(cfg.LockWaitSeconds)*time.Second)
	ticketRepo := postgres.NewTicketRepo(db)
	customerRepo := postgres.NewCustomerRepo(db)
	notificationRepo := postgres.NewNotificationRepo(db)

	allocator := sale.NewService(
		postgres.NewTxRunner(db),
		eventRepo,
		ticketRepo,
		customerRepo,
		message.NewOutboxPublisher(logger),
		clock.NewSystem(),
		sale.WithMaxPerPurchase(cfg.MaxPerPurchase),
	)

	msgRouter, err := message.NewRouter(message.RouterDeps{
		Logger:        logger,
		Notifications: notificationRepo,
		RedisClient:   redisClient,
	})
	if err != nil {
		return nil, fmt.Errorf("creating message router: %w", err)
	}

	fwd, err := message.NewForwarder(db, redisClient, logger)
	if err != nil {
		return nil, fmt.Errorf("creating forwarder: %w", err)
	}

	httpRouter := http.NewRouter(allocator, eventRepo, customerRepo, notificationRepo)

	return &Service{
		msgRouter:  msgRouter,
		forwarder:  fwd,
		httpRouter: httpRouter,
		httpAddr:   cfg.HTTPAddr,
	}, nil
}

func (s Service) Run(ctx context.Context) error {
	g, runCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.msgRouter.Run(runCtx); err != nil {
			return fmt.Errorf("running messaging router: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		if err := s.forwarder.Run(runCtx); err != nil {
			return fmt.Errorf("running forwarder: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		// Wait for message router
		<-s.msgRouter.Running()

		logrus.Info("Starting HTTP server...")
		err := s.httpRouter.Start(s.httpAddr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("starting http server: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-runCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		logrus.Info("Shutting down HTTP server...")
		if err := s.httpRouter.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("waiting for shutdown: %w", err)
	}
	logrus.Info("Shutdown complete.")

	return nil
}
