package handler

import (
	"net/http"

	"arealead_backend/internal/leads/domain"
	"arealead_backend/internal/leads/service"
	"arealead_backend/internal/leads/sweeper"
	"arealead_backend/internal/leads/transport"
	"arealead_backend/platform/httpkit"
	"arealead_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc   *service.Service
	sweep *sweeper.Sweeper
	val   *validator.Validator
}

func New(svc *service.Service, sweep *sweeper.Sweeper, val *validator.Validator) *Handler {
	return &Handler{svc: svc, sweep: sweep, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, admin *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("/open", h.ListOpen)
	rg.GET("/claimed", h.ListClaimed)
	rg.GET("/mine", h.ListMine)
	rg.GET("/:id", h.GetByID)
	rg.POST("/:id/accept", h.Accept)
	rg.POST("/:id/reject", h.Reject)
	rg.POST("/:id/complete", h.Complete)
	rg.POST("/:id/recall", h.Recall)
	// Client sessions call this on startup; cron drives the same sweep
	// through the scheduler worker.
	rg.POST("/sweep", h.Sweep)

	admin.POST("/leads/:id/reject-completed", h.RejectCompleted)
}

// Create handles POST /api/v1/leads. Generator-side intake.
func (h *Handler) Create(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.Create(c.Request.Context(), identity.UserID(), service.CreateParams{
		ServiceType:   domain.ServiceType(req.ServiceType),
		Address:       req.Address,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		CustomerPhone: req.CustomerPhone,
		CustomerName:  req.CustomerName,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	view, err := h.svc.GetFull(c.Request.Context(), lead.ID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, view)
}

// ListOpen handles GET /api/v1/leads/open. The claimable pool through the
// requesting agent's subscription gate.
func (h *Handler) ListOpen(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var q transport.OpenLeadsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(q); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.ListOpenForAgent(c.Request.Context(), identity.UserID(), service.OpenLeadsQuery{
		Latitude:  q.Latitude,
		Longitude: q.Longitude,
		RadiusKm:  q.RadiusKm,
		Page:      q.Page,
		PageSize:  q.PageSize,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// ListClaimed handles GET /api/v1/leads/claimed. The agent's held leads with
// expiry countdowns.
func (h *Handler) ListClaimed(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	views, err := h.svc.ListClaimedForAgent(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"leads": views})
}

// ListMine handles GET /api/v1/leads/mine. The generator's created leads.
func (h *Handler) ListMine(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	views, err := h.svc.ListForGenerator(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"leads": views})
}

// GetByID handles GET /api/v1/leads/:id. Creators and admins see the full
// row; everyone else goes through the subscription gate.
func (h *Handler) GetByID(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if identity.HasRole("admin") {
		view, err := h.svc.GetFull(c.Request.Context(), id)
		if httpkit.HandleError(c, err) {
			return
		}
		httpkit.OK(c, view)
		return
	}

	view, err := h.svc.GetForAgent(c.Request.Context(), id, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	if view.CreatedBy == identity.UserID() {
		full, err := h.svc.GetFull(c.Request.Context(), id)
		if httpkit.HandleError(c, err) {
			return
		}
		view = full
	}

	httpkit.OK(c, view)
}

// Accept handles POST /api/v1/leads/:id/accept. A lost race answers 409 with
// the current status, which the UI shows as "try another lead".
func (h *Handler) Accept(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	lead, err := h.svc.Accept(c.Request.Context(), id, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"id": lead.ID, "status": lead.Status, "claimedAt": lead.ClaimedAt})
}

// Reject handles POST /api/v1/leads/:id/reject.
func (h *Handler) Reject(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	lead, err := h.svc.Reject(c.Request.Context(), id, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"id": lead.ID, "status": lead.Status})
}

// Complete handles POST /api/v1/leads/:id/complete.
func (h *Handler) Complete(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.CompleteLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.Complete(c.Request.Context(), id, identity.UserID(), req.ProofRef, req.Notes)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"id": lead.ID, "status": lead.Status, "completedAt": lead.CompletedAt})
}

// Recall handles POST /api/v1/leads/:id/recall. Generator retrieves a
// claimed lead.
func (h *Handler) Recall(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	lead, err := h.svc.Recall(c.Request.Context(), id, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"id": lead.ID, "status": lead.Status})
}

// Sweep handles POST /api/v1/leads/sweep, the opportunistic client-session
// trigger. Idempotent; running it twice releases nothing the second time.
func (h *Handler) Sweep(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	released, err := h.sweep.Sweep(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.SweepResponse{Released: released})
}

// RejectCompleted handles POST /api/v1/admin/leads/:id/reject-completed.
func (h *Handler) RejectCompleted(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.RejectCompletedRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.RejectCompleted(c.Request.Context(), id, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"id": lead.ID, "status": lead.Status, "rejectedAt": lead.RejectedAt})
}
