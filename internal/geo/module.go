package geo

import (
	apphttp "arealead_backend/internal/http"
	"arealead_backend/platform/config"
	"arealead_backend/platform/logger"
)

// Module wires the address search HTTP routes.
type Module struct {
	handler *Handler
}

func NewModule(cfg config.GeocodeConfig, log *logger.Logger) *Module {
	svc := NewService(cfg, log)
	h := NewHandler(svc)
	return &Module{handler: h}
}

func (m *Module) Name() string {
	return "geo"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/geo")
	group.GET("/address-search", m.handler.SearchAddress)
}

var _ apphttp.Module = (*Module)(nil)
