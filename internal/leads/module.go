// Package leads provides the lead lifecycle bounded context module.
// This file defines the module that encapsulates all leads setup and route registration.
package leads

import (
	"arealead_backend/internal/events"
	apphttp "arealead_backend/internal/http"
	"arealead_backend/internal/leads/handler"
	"arealead_backend/internal/leads/repository"
	"arealead_backend/internal/leads/service"
	"arealead_backend/internal/leads/sweeper"
	"arealead_backend/platform/config"
	"arealead_backend/platform/logger"
	"arealead_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	sweeper *sweeper.Sweeper
}

// NewModule creates and initializes the leads module with all its dependencies.
// The subscription reader comes from the billing module; the lifecycle engine
// only ever reads the flag.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, subs service.SubscriptionReader, val *validator.Validator, cfg config.ClaimConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, eventBus, subs, cfg, log)
	sw := sweeper.New(repo, svc, cfg, log)
	h := handler.New(svc, sw, val)

	return &Module{
		handler: h,
		service: svc,
		sweeper: sw,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the lifecycle engine for external callers such as the
// scheduler worker.
func (m *Module) Service() *service.Service {
	return m.service
}

// Sweeper returns the expiry sweeper for the scheduler worker and the
// startup hook.
func (m *Module) Sweeper() *sweeper.Sweeper {
	return m.sweeper
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	leadsGroup := ctx.Protected.Group("/leads")
	m.handler.RegisterRoutes(leadsGroup, ctx.Admin)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
