// Package notification is the notification bounded context: it listens to
// lead lifecycle events and fans them out as in-app notifications, with
// live delivery over SSE for connected users. Dispatch is insert-only and
// runs on the async side of the event bus, so a failed or slow notification
// never holds up a lead transition.
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"arealead_backend/internal/events"
	apphttp "arealead_backend/internal/http"
	"arealead_backend/internal/leads/domain"
	"arealead_backend/internal/notification/handler"
	"arealead_backend/internal/notification/inapp"
	"arealead_backend/internal/notification/sse"
	"arealead_backend/platform/httpkit"
	"arealead_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Notification kinds. Each payload carries its kind as a discriminator so
// clients can switch on it without sniffing fields.
const (
	KindLeadAccepted           = "lead_accepted"
	KindLeadRejected           = "lead_rejected"
	KindLeadCompleted          = "lead_completed"
	KindLeadAutoRejected       = "lead_auto_rejected"
	KindLeadRecalled           = "lead_recalled"
	KindLeadCompletionRejected = "lead_completion_rejected"
)

// payload is the kind-tagged notification body persisted alongside the row.
// Optional fields stay absent for kinds that do not carry them.
type payload struct {
	Kind        string             `json:"kind"`
	LeadID      uuid.UUID          `json:"leadId"`
	ServiceType domain.ServiceType `json:"serviceType"`
	AgentID     *uuid.UUID         `json:"agentId,omitempty"`
	ProofRef    string             `json:"proofRef,omitempty"`
	Reason      string             `json:"reason,omitempty"`
}

// Sender is the slice of the in-app service the dispatcher needs.
type Sender interface {
	Send(ctx context.Context, p inapp.SendParams) error
}

// Module is the notification bounded context implementing http.Module.
type Module struct {
	inappSvc *inapp.Service
	sseSvc   *sse.Service
	handler  *handler.HTTPHandler
	sender   Sender
	log      *logger.Logger
}

// New creates and initializes the notification module.
func New(pool *pgxpool.Pool, log *logger.Logger) *Module {
	inappSvc := inapp.NewService(inapp.NewRepository(pool), log)
	sseSvc := sse.New(log)
	inappSvc.SetSSE(sseSvc)

	return &Module{
		inappSvc: inappSvc,
		sseSvc:   sseSvc,
		handler:  handler.NewHTTPHandler(inappSvc),
		sender:   inappSvc,
		log:      log,
	}
}

// SetSender overrides the dispatch target. Tests use this.
func (m *Module) SetSender(sender Sender) {
	m.sender = sender
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notification"
}

// Subscribe wires the dispatcher to the lead lifecycle events.
func (m *Module) Subscribe(bus events.Bus) {
	bus.Subscribe(events.LeadAccepted{}.EventName(), events.HandlerFunc(m.handleLeadAccepted))
	bus.Subscribe(events.LeadRejected{}.EventName(), events.HandlerFunc(m.handleLeadRejected))
	bus.Subscribe(events.LeadCompleted{}.EventName(), events.HandlerFunc(m.handleLeadCompleted))
	bus.Subscribe(events.LeadAutoRejected{}.EventName(), events.HandlerFunc(m.handleLeadAutoRejected))
	bus.Subscribe(events.LeadRecalled{}.EventName(), events.HandlerFunc(m.handleLeadRecalled))
	bus.Subscribe(events.LeadCompletionRejected{}.EventName(), events.HandlerFunc(m.handleLeadCompletionRejected))
}

// RegisterRoutes mounts notification routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/notifications")
	m.handler.RegisterRoutes(group)

	ctx.Protected.GET("/notifications/stream", m.sseSvc.Handler(func(c *gin.Context) (uuid.UUID, bool) {
		identity := httpkit.GetIdentity(c)
		if !identity.IsAuthenticated() {
			return uuid.Nil, false
		}
		return identity.UserID(), true
	}))
}

// Close shuts down live delivery.
func (m *Module) Close() {
	m.sseSvc.Close()
}

func (m *Module) handleLeadAccepted(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadAccepted)
	if !ok {
		return nil
	}
	agentID := e.AgentID
	return m.dispatch(ctx, e.GeneratorID, payload{
		Kind:        KindLeadAccepted,
		LeadID:      e.LeadID,
		ServiceType: e.ServiceType,
		AgentID:     &agentID,
	}, "Lead claimed", fmt.Sprintf("An agent picked up your %s lead.", e.ServiceType.Label()))
}

func (m *Module) handleLeadRejected(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadRejected)
	if !ok {
		return nil
	}
	agentID := e.AgentID
	return m.dispatch(ctx, e.GeneratorID, payload{
		Kind:        KindLeadRejected,
		LeadID:      e.LeadID,
		ServiceType: e.ServiceType,
		AgentID:     &agentID,
	}, "Lead returned", fmt.Sprintf("Your %s lead is back in the open pool.", e.ServiceType.Label()))
}

func (m *Module) handleLeadCompleted(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadCompleted)
	if !ok {
		return nil
	}
	agentID := e.AgentID
	return m.dispatch(ctx, e.GeneratorID, payload{
		Kind:        KindLeadCompleted,
		LeadID:      e.LeadID,
		ServiceType: e.ServiceType,
		AgentID:     &agentID,
		ProofRef:    e.ProofRef,
	}, "Lead completed", fmt.Sprintf("Your %s lead was completed with proof attached.", e.ServiceType.Label()))
}

// handleLeadAutoRejected notifies both sides: the generator learns the lead
// is claimable again, the agent learns the claim lapsed.
func (m *Module) handleLeadAutoRejected(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadAutoRejected)
	if !ok {
		return nil
	}
	agentID := e.AgentID
	p := payload{
		Kind:        KindLeadAutoRejected,
		LeadID:      e.LeadID,
		ServiceType: e.ServiceType,
		AgentID:     &agentID,
	}

	genErr := m.dispatch(ctx, e.GeneratorID, p, "Lead released",
		fmt.Sprintf("Your %s lead went unworked and is open again.", e.ServiceType.Label()))
	agentErr := m.dispatch(ctx, e.AgentID, p, "Claim expired",
		fmt.Sprintf("Your claim on a %s lead expired and was released.", e.ServiceType.Label()))
	if genErr != nil {
		return genErr
	}
	return agentErr
}

func (m *Module) handleLeadRecalled(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadRecalled)
	if !ok {
		return nil
	}
	agentID := e.AgentID
	return m.dispatch(ctx, e.AgentID, payload{
		Kind:        KindLeadRecalled,
		LeadID:      e.LeadID,
		ServiceType: e.ServiceType,
		AgentID:     &agentID,
	}, "Lead recalled", fmt.Sprintf("The generator recalled the %s lead you were holding.", e.ServiceType.Label()))
}

func (m *Module) handleLeadCompletionRejected(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadCompletionRejected)
	if !ok {
		return nil
	}
	p := payload{
		Kind:        KindLeadCompletionRejected,
		LeadID:      e.LeadID,
		ServiceType: e.ServiceType,
		AgentID:     e.AgentID,
		Reason:      e.Reason,
	}

	genErr := m.dispatch(ctx, e.GeneratorID, p, "Completion rejected",
		fmt.Sprintf("An admin rejected the completion of your %s lead.", e.ServiceType.Label()))
	if e.AgentID != nil {
		agentErr := m.dispatch(ctx, *e.AgentID, p, "Completion rejected",
			fmt.Sprintf("An admin rejected your completion of a %s lead.", e.ServiceType.Label()))
		if genErr == nil {
			genErr = agentErr
		}
	}
	return genErr
}

// dispatch persists one notification for one recipient. Errors are logged
// and surfaced to the bus for its own logging; nothing retries here.
func (m *Module) dispatch(ctx context.Context, userID uuid.UUID, p payload, title, content string) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}

	leadID := p.LeadID
	if err := m.sender.Send(ctx, inapp.SendParams{
		UserID:  userID,
		Kind:    p.Kind,
		Title:   title,
		Content: content,
		LeadID:  &leadID,
		Payload: raw,
	}); err != nil {
		m.log.DispatchError(p.Kind, userID.String(), err)
		return err
	}
	return nil
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
