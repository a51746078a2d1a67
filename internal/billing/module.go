package billing

import (
	"net/http"

	apphttp "arealead_backend/internal/http"
	"arealead_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the billing bounded context implementing http.Module.
type Module struct {
	repo *Repository
}

// NewModule creates the billing module.
func NewModule(pool *pgxpool.Pool) *Module {
	return &Module{repo: NewRepository(pool)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "billing"
}

// Repository returns the subscription reader for the lead engine.
func (m *Module) Repository() *Repository {
	return m.repo
}

// RegisterRoutes mounts billing routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/billing/subscription", m.getSubscription)
}

// getSubscription lets an agent check their own flag. The UI uses it to
// decide whether to render the upgrade banner over masked contacts.
func (m *Module) getSubscription(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	subscribed, err := m.repo.IsSubscribed(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusOK, gin.H{"subscribed": subscribed})
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
