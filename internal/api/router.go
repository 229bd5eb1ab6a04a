package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"vehicle_parking/internal/api/handler"
	"vehicle_parking/internal/api/middleware"
	"vehicle_parking/internal/domain"
	"vehicle_parking/internal/metrics"
	"vehicle_parking/internal/service"
)

type Deps struct {
	AuthService        *service.AuthService
	PlotService        *service.PlotService
	ReservationService *service.ReservationService
	OccupancyService   *service.OccupancyService
	WSManager          *handler.WebSocketManager

	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	CORSOrigin    string
	AuthRateLimit float64
	AuthRateBurst int
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(d.Logger))
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
	}
	r.Use(middleware.CORS(d.CORSOrigin))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	if d.WSManager != nil {
		wsHandler := handler.NewWebSocketHandler(d.WSManager)
		r.GET("/ws", wsHandler.HandleWebSocket)
	}

	authHandler := handler.NewAuthHandler(d.AuthService)
	authRoutes := r.Group("/auth")
	if d.AuthRateLimit > 0 {
		authRoutes.Use(middleware.NewRateLimiter(d.AuthRateLimit, d.AuthRateBurst).Middleware())
	}
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/logout", authHandler.Logout)
	}

	authMw := middleware.NewAuthMiddleware(d.AuthService, d.Logger)
	adminOnly := authMw.AuthorizeRole(domain.RoleAdmin)

	v1 := r.Group("/api/v1")
	v1.Use(authMw.Authenticate())
	{
		userH := handler.NewUserHandler(d.AuthService, d.OccupancyService)
		v1.GET("/users/me", userH.Me)
		v1.GET("/users", adminOnly, userH.ListUsers)
		v1.GET("/admin/stats", adminOnly, userH.Stats)

		plotH := handler.NewPlotHandler(d.PlotService, d.OccupancyService)
		slotH := handler.NewSlotHandler(d.PlotService)
		resH := handler.NewReservationHandler(d.ReservationService)

		plotRoutes := v1.Group("/plots")
		{
			plotRoutes.POST("", adminOnly, plotH.CreatePlot)
			plotRoutes.GET("", plotH.ListPlots)
			plotRoutes.GET("/:id", plotH.GetPlot)
			plotRoutes.PUT("/:id", plotH.UpdatePlot)
			plotRoutes.DELETE("/:id", plotH.DeletePlot)
			plotRoutes.GET("/:id/occupancy", plotH.GetOccupancy)

			plotRoutes.GET("/:id/slots", slotH.ListSlots)
			plotRoutes.POST("/:id/slots", slotH.AddSlots)

			plotRoutes.GET("/:id/reservations", resH.ListByPlot)
			plotRoutes.POST("/:id/reservations", resH.Create)
		}

		slotRoutes := v1.Group("/slots")
		{
			slotRoutes.GET("/:slot_id", slotH.GetSlot)
			slotRoutes.DELETE("/:slot_id", slotH.DeleteSlot)
			slotRoutes.GET("/:slot_id/reservation", resH.GetBySlot)
		}

		resRoutes := v1.Group("/reservations")
		{
			resRoutes.GET("", adminOnly, resH.ListAll)
			resRoutes.GET("/user/:user_id", resH.ListByUser)
			resRoutes.GET("/:id", resH.Get)
			resRoutes.PATCH("/:id/complete", resH.Complete)
			resRoutes.PATCH("/:id/cancel", resH.Cancel)
		}
	}
	return r
}
