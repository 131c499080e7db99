package http

import (
	"log/slog"

	"github.com/geocoder89/apextrades/internal/config"
	"github.com/geocoder89/apextrades/internal/http/handlers"
	"github.com/geocoder89/apextrades/internal/http/middlewares"
	"github.com/geocoder89/apextrades/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Account is everything the routes need from the account service.
type Account interface {
	handlers.AccountService
	middlewares.Authenticator
}

type Deps struct {
	Accounts Account
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	Checks   map[string]handlers.Check
}

func NewRouter(log *slog.Logger, cfg config.Config, deps Deps) *gin.Engine {
	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.OTELServiceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders(cfg.Env == "prod"))
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(middlewares.DefaultMaxBodyBytes))

	// health
	h := handlers.NewHealthHandler(deps.Checks)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	authHandler := handlers.NewAuthHandler(deps.Accounts)
	userHandler := handlers.NewUserHandler(deps.Accounts)
	authMW := middlewares.NewAuthMiddleware(deps.Accounts)

	api := r.Group("/api")
	api.Use(middlewares.RequireJSON())
	{
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)

		api.GET("/plans", handlers.ListPlans)
		api.GET("/plans/:id", handlers.GetPlan)

		me := api.Group("/user", authMW.RequireAuth())
		me.GET("", userHandler.GetUser)
		me.PUT("", userHandler.UpdateUser)
		me.PUT("/password", userHandler.ChangePassword)
		me.PUT("/plan", userHandler.UpdatePlan)
	}

	return r
}
