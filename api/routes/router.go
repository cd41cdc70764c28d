// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"bookingtms/internal/availability"
	"bookingtms/internal/bookings"
	"bookingtms/internal/embed"
	"bookingtms/internal/embedkey"
	"bookingtms/internal/notifications"
	"bookingtms/internal/payments"
	"bookingtms/internal/shared/config"
	"bookingtms/internal/shared/database"
	"bookingtms/internal/shared/middleware"
	"bookingtms/internal/widgetconfig"
	"bookingtms/pkg/cache"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Dependencies are the external collaborators built by main
type Dependencies struct {
	Events    notifications.Producer
	Payments  payments.Gateway
	Scheduler bookings.Scheduler
	Memo      availability.Memo
}

// Router holds all route dependencies
type Router struct {
	config *config.Config
	db     *database.DB
	deps   Dependencies

	widgetService  widgetconfig.Service
	resolver       embedkey.Resolver
	slotService    availability.Service
	bookingService bookings.Service
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, db *database.DB, deps Dependencies) *Router {
	return &Router{
		config: cfg,
		db:     db,
		deps:   deps,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check and basic info endpoints
	r.setupHealthRoutes(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	cacheService := cache.NewService(r.db.GetRedisClient())
	adminAuth := middleware.AdminChain(r.config)

	// API routes
	api := engine.Group(r.config.GetAPIBasePath())
	{
		// Widgets and embed keys come first: every public route resolves through them
		r.setupWidgetRoutes(api, cacheService, adminAuth)
		r.setupAvailabilityRoutes(api)
		r.setupBookingRoutes(api, adminAuth)
		r.setupEmbedRoutes(engine, api, adminAuth)
	}
}

// BookingService returns the booking service built by SetupRoutes
func (r *Router) BookingService() bookings.Service {
	return r.bookingService
}

func (r *Router) embedAuth() gin.HandlerFunc {
	return embedkey.RequireEmbedKey(r.resolver, "widgetKey")
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		// Perform health checks
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "bookingtms",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "bookingtms",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})
}

// setupWidgetRoutes configures widget config routes and the embed key resolver
func (r *Router) setupWidgetRoutes(rg *gin.RouterGroup, cacheService cache.Service, adminAuth []gin.HandlerFunc) {
	widgetRepo := widgetconfig.NewRepository(r.db.GetPostgreSQL())
	r.widgetService = widgetconfig.NewService(widgetRepo, cacheService)
	r.resolver = embedkey.NewResolver(widgetRepo, cacheService)

	widgetController := widgetconfig.NewController(r.widgetService)
	widgetconfig.SetupWidgetRoutes(rg, widgetController, r.embedAuth(), adminAuth...)
}

// setupAvailabilityRoutes configures the public availability endpoint
func (r *Router) setupAvailabilityRoutes(rg *gin.RouterGroup) {
	engine := availability.NewEngine(availability.CapacityPolicy{CountNoShows: r.config.Capacity.CountNoShows})
	reader := availability.NewSnapshotReader(r.db.GetPostgreSQL())
	r.slotService = availability.NewService(engine, reader, r.deps.Memo)

	availability.SetupAvailabilityRoutes(rg, availability.NewController(r.slotService), r.embedAuth())
}

// setupBookingRoutes configures booking submission and admin lifecycle routes
func (r *Router) setupBookingRoutes(rg *gin.RouterGroup, adminAuth []gin.HandlerFunc) {
	r.bookingService = bookings.NewService(bookings.Dependencies{
		Repo:      bookings.NewRepository(r.db.GetPostgreSQL()),
		Slots:     r.slotService,
		Widgets:   r.widgetService,
		Payments:  r.deps.Payments,
		Events:    r.deps.Events,
		Scheduler: r.deps.Scheduler,
		Policy:    availability.CapacityPolicy{CountNoShows: r.config.Capacity.CountNoShows},
	})

	bookings.SetupBookingRoutes(rg, bookings.NewController(r.bookingService), r.embedAuth(), adminAuth...)
}

// setupEmbedRoutes configures the iframe page, the loader script and embed code generation
func (r *Router) setupEmbedRoutes(engine *gin.Engine, rg *gin.RouterGroup, adminAuth []gin.HandlerFunc) {
	embedCfg := embed.Config{
		BaseURL:        r.config.Embed.BaseURL,
		LoaderPath:     r.config.Embed.LoaderPath,
		BundleURL:      r.config.Embed.BundleURL,
		APIBasePath:    r.config.GetAPIBasePath(),
		AllowedOrigins: r.config.Embed.AllowedOrigins,
		DefaultColor:   r.config.Embed.DefaultColor,
	}
	controller := embed.NewController(embedCfg, r.widgetService, r.resolver)
	embed.SetupEmbedRoutes(engine, rg, controller, embedCfg.LoaderPath, adminAuth...)
}
