package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vehicle_parking/internal/api"
	"vehicle_parking/internal/api/handler"
	"vehicle_parking/internal/config"
	"vehicle_parking/internal/domain"
	"vehicle_parking/internal/events"
	"vehicle_parking/internal/metrics"
	"vehicle_parking/internal/service"
)

func newServeCmd() *cobra.Command {
	var autoMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if autoMigrate {
				if err := a.migrate(ctx); err != nil {
					return err
				}
			}
			return serve(ctx, a)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", true, "apply pending database migrations before serving")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	cfg, logger := a.cfg, a.logger

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	var wg sync.WaitGroup

	wsManager := handler.NewWebSocketManager(logger.Named("websocket"))
	wg.Add(1)
	go func() {
		defer wg.Done()
		wsManager.Run(workerCtx)
	}()

	publisher, closePublisher, err := buildPublisher(ctx, cfg, logger, m, wsManager)
	if err != nil {
		return err
	}
	defer closePublisher()

	dispatcher := events.NewDispatcher(publisher, 256, logger.Named("events"))
	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Run(workerCtx)
	}()

	allocator := service.NewSlotAllocator()
	authService := service.NewAuthService(a.store.Users(), cfg.JWTSecret, cfg.JWTExpiration())
	plotService := service.NewPlotService(a.store, allocator, logger.Named("plots"))
	reservationService := service.NewReservationService(a.store, allocator, dispatcher, m, logger.Named("reservations"))
	occupancyService := service.NewOccupancyService(a.store)
	reg.MustRegister(metrics.NewOccupancyCollector(occupancyService.PerPlot))

	if cfg.AdminEmail != "" {
		if err := ensureAdmin(ctx, authService, cfg.AdminEmail, cfg.AdminPassword, logger); err != nil {
			return err
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.SetupRouter(api.Deps{
		AuthService:        authService,
		PlotService:        plotService,
		ReservationService: reservationService,
		OccupancyService:   occupancyService,
		WSManager:          wsManager,
		Logger:             logger.Named("http"),
		Metrics:            m,
		Gatherer:           reg,
		CORSOrigin:         cfg.CORSOrigin,
		AuthRateLimit:      cfg.AuthRateLimit,
		AuthRateBurst:      cfg.AuthRateBurst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("port", cfg.ServerPort), zap.String("storage", cfg.Storage))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced server shutdown", zap.Error(err))
	}

	cancelWorkers()
	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn("background workers did not stop in time")
	}

	logger.Info("server stopped")
	return nil
}

// buildPublisher fans events out to websocket clients and, if configured, one
// message broker.
func buildPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics, ws *handler.WebSocketManager) (events.Publisher, func(), error) {
	multi := events.NewMulti(m).Add("websocket", ws)
	closeFn := func() {}

	switch cfg.EventsBackend {
	case config.EventsSQS:
		p, err := events.NewSQSPublisher(ctx, cfg.AWSRegion, cfg.SQSEventQueueURL, logger.Named("sqs"))
		if err != nil {
			return nil, nil, err
		}
		multi.Add("sqs", p)
		logger.Info("publishing reservation events to sqs", zap.String("queue_url", cfg.SQSEventQueueURL))
	case config.EventsAMQP:
		p, err := events.NewAMQPPublisher(ctx, cfg.AMQPURL, cfg.AMQPExchange, logger.Named("amqp"))
		if err != nil {
			return nil, nil, err
		}
		multi.Add("amqp", p)
		closeFn = func() {
			if err := p.Close(); err != nil {
				logger.Warn("closing rabbitmq connection", zap.Error(err))
			}
		}
	}
	return multi, closeFn, nil
}

func ensureAdmin(ctx context.Context, auth *service.AuthService, email, password string, logger *zap.Logger) error {
	_, err := auth.CreateAdmin(ctx, domain.RegisterUserDTO{FullName: "Administrator", Email: email, Password: password})
	switch {
	case err == nil:
		logger.Info("created bootstrap admin", zap.String("email", email))
	case errors.Is(err, service.ErrUserAlreadyExists):
	default:
		return err
	}
	return nil
}
