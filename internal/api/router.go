package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/calebreid/mapweave/internal/app"
	iauth "github.com/calebreid/mapweave/internal/auth"
	"github.com/calebreid/mapweave/internal/handlers"
	"github.com/calebreid/mapweave/internal/middleware"
	"github.com/calebreid/mapweave/internal/services"
	"github.com/calebreid/mapweave/pkg/mail"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, mailer mail.Mailer) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	// Health endpoint (public)
	r.GET("/health", handlers.Health())

	auditService, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	userService, err := services.NewUserService(db, auditService)
	if err != nil {
		return nil, err
	}
	evaluator, err := services.NewAccessEvaluator(db)
	if err != nil {
		return nil, err
	}
	mapService, err := services.NewMapService(db, evaluator, auditService)
	if err != nil {
		return nil, err
	}
	sharingService, err := services.NewSharingService(db, evaluator, auditService, mailer,
		services.WithShareLinkBaseURL(cfg.Server.BaseURL),
		services.WithInviteExpiry(cfg.Sharing.InviteExpiry),
		services.WithInviteTokenSize(cfg.Sharing.InviteTokenBytes),
	)
	if err != nil {
		return nil, err
	}

	authHandler := handlers.NewAuthHandler(userService, jwt)

	// Public auth routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	requireAuth := middleware.Auth(jwt)

	api := r.Group("/api")
	api.Use(requireAuth)

	// Authenticated auth routes
	api.GET("/auth/me", authHandler.Me)
	api.PATCH("/auth/me", authHandler.UpdateProfile)
	api.POST("/auth/password", authHandler.ChangePassword)

	registerMapRoutes(api, handlers.NewMapHandler(mapService))
	registerSharingRoutes(api, handlers.NewSharingHandler(sharingService))

	// Audit
	auditHandler, err := handlers.NewAuditHandler(db)
	if err != nil {
		return nil, err
	}
	api.GET("/audit", auditHandler.List)
	api.GET("/audit/export", auditHandler.Export)

	// Metrics endpoint
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
