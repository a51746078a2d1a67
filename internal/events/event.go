// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"arealead_backend/internal/leads/domain"
	"arealead_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Lifecycle Events
// =============================================================================

// LeadCreated is published when a generator submits a new lead.
type LeadCreated struct {
	BaseEvent
	LeadID      uuid.UUID          `json:"leadId"`
	GeneratorID uuid.UUID          `json:"generatorId"`
	ServiceType domain.ServiceType `json:"serviceType"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadAccepted is published when an agent wins the claim on an open lead.
type LeadAccepted struct {
	BaseEvent
	LeadID      uuid.UUID          `json:"leadId"`
	GeneratorID uuid.UUID          `json:"generatorId"`
	AgentID     uuid.UUID          `json:"agentId"`
	ServiceType domain.ServiceType `json:"serviceType"`
}

func (e LeadAccepted) EventName() string { return "leads.lead.accepted" }

// LeadRejected is published when the holding agent manually releases a claim.
type LeadRejected struct {
	BaseEvent
	LeadID      uuid.UUID          `json:"leadId"`
	GeneratorID uuid.UUID          `json:"generatorId"`
	AgentID     uuid.UUID          `json:"agentId"`
	ServiceType domain.ServiceType `json:"serviceType"`
}

func (e LeadRejected) EventName() string { return "leads.lead.rejected" }

// LeadCompleted is published when the holding agent delivers proof.
type LeadCompleted struct {
	BaseEvent
	LeadID      uuid.UUID          `json:"leadId"`
	GeneratorID uuid.UUID          `json:"generatorId"`
	AgentID     uuid.UUID          `json:"agentId"`
	ServiceType domain.ServiceType `json:"serviceType"`
	ProofRef    string             `json:"proofRef"`
}

func (e LeadCompleted) EventName() string { return "leads.lead.completed" }

// LeadAutoRejected is published when the sweeper force-releases a stale
// claim. Both the generator and the losing agent are interested parties.
type LeadAutoRejected struct {
	BaseEvent
	LeadID      uuid.UUID          `json:"leadId"`
	GeneratorID uuid.UUID          `json:"generatorId"`
	AgentID     uuid.UUID          `json:"agentId"`
	ServiceType domain.ServiceType `json:"serviceType"`
}

func (e LeadAutoRejected) EventName() string { return "leads.lead.auto_rejected" }

// LeadRecalled is published when the generator retrieves a claimed lead from
// the holding agent.
type LeadRecalled struct {
	BaseEvent
	LeadID      uuid.UUID          `json:"leadId"`
	GeneratorID uuid.UUID          `json:"generatorId"`
	AgentID     uuid.UUID          `json:"agentId"`
	ServiceType domain.ServiceType `json:"serviceType"`
}

func (e LeadRecalled) EventName() string { return "leads.lead.recalled" }

// LeadCompletionRejected is published on the admin completed -> rejected
// correction.
type LeadCompletionRejected struct {
	BaseEvent
	LeadID      uuid.UUID          `json:"leadId"`
	GeneratorID uuid.UUID          `json:"generatorId"`
	AgentID     *uuid.UUID         `json:"agentId,omitempty"`
	ServiceType domain.ServiceType `json:"serviceType"`
	Reason      string             `json:"reason,omitempty"`
}

func (e LeadCompletionRejected) EventName() string { return "leads.lead.completion_rejected" }
