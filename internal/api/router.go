// Package api wires the HTTP surface: health probes, the mailbox connect
// flow and manual pipeline triggers.
package api

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/inboxwrap/inboxwrap-backend/internal/api/handlers"
	"github.com/inboxwrap/inboxwrap-backend/internal/provider"
	"github.com/inboxwrap/inboxwrap-backend/internal/repository"
)

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	DB        *gorm.DB
	Microsoft *provider.Microsoft
	Users     repository.UserRepository
	Accounts  repository.AccountRepository
	Fetch     handlers.Trigger
	Dispatch  handlers.Trigger
	Logger    *slog.Logger
}

// NewRouter creates and configures the Echo router with all routes
func NewRouter(cfg *RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(Recover())
	if cfg.Logger != nil {
		e.Use(RequestLogger(cfg.Logger))
	}

	healthHandler := handlers.NewHealthHandler(cfg.DB)
	providerHandler := handlers.NewProviderHandler(cfg.Microsoft, cfg.Accounts, cfg.Users, cfg.Logger)
	jobsHandler := handlers.NewJobsHandler(cfg.Fetch, cfg.Dispatch)

	// Health routes
	e.GET("/health", healthHandler.Health)
	e.GET("/ready", healthHandler.Ready)

	api := e.Group("/api")

	// Mailbox connect flow
	providers := api.Group("/providers")
	providers.GET("/microsoft/connect", providerHandler.Connect)
	providers.GET("/microsoft/callback", providerHandler.Callback)
	providers.GET("/accounts", providerHandler.ListAccounts)

	// Manual pipeline triggers
	jobs := api.Group("/jobs")
	jobs.POST("/fetch", jobsHandler.TriggerFetch)
	jobs.POST("/dispatch", jobsHandler.TriggerDispatch)

	return e
}
