// Package service implements the lead lifecycle engine: the single entry
// point through which every actor (agent, generator, admin, sweeper) drives
// a lead's state transitions. Interactive HTTP handlers and the scheduled
// sweeper both call into this package, so there is exactly one
// implementation of the claim protocol.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"arealead_backend/internal/events"
	"arealead_backend/internal/leads/domain"
	"arealead_backend/internal/leads/repository"
	"arealead_backend/platform/apperr"
	"arealead_backend/platform/config"
	"arealead_backend/platform/logger"
	"arealead_backend/platform/phone"
	"arealead_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	opCreate          = "leads.service.create"
	opAccept          = "leads.service.accept"
	opReject          = "leads.service.reject"
	opComplete        = "leads.service.complete"
	opRejectCompleted = "leads.service.reject_completed"
	opRecall          = "leads.service.recall"
	opGet             = "leads.service.get"
	opList            = "leads.service.list"
)

// SubscriptionReader is the read-only subscription flag supplied by the
// external billing collaborator. This engine never mutates it.
type SubscriptionReader interface {
	IsSubscribed(ctx context.Context, agentID uuid.UUID) (bool, error)
}

// Service is the lifecycle engine.
type Service struct {
	repo   repository.Store
	bus    events.Bus
	subs   SubscriptionReader
	window time.Duration
	now    func() time.Time
	log    *logger.Logger
}

// New creates the lifecycle engine. The claim window comes from config so
// operations can shorten it in staging.
func New(repo repository.Store, bus events.Bus, subs SubscriptionReader, cfg config.ClaimConfig, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		bus:    bus,
		subs:   subs,
		window: cfg.GetClaimWindow(),
		now:    time.Now,
		log:    log,
	}
}

// SetClock overrides the time source. Tests use this to drive expiry math
// deterministically.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Window returns the configured claim exclusivity window.
func (s *Service) Window() time.Duration {
	return s.window
}

// CreateParams describes a new lead submitted by a generator.
type CreateParams struct {
	ServiceType   domain.ServiceType
	Address       string
	Latitude      *float64
	Longitude     *float64
	CustomerPhone string
	CustomerName  string
}

// Create registers a new open lead on behalf of a generator.
func (s *Service) Create(ctx context.Context, generatorID uuid.UUID, params CreateParams) (repository.Lead, error) {
	if !params.ServiceType.Valid() {
		return repository.Lead{}, apperr.Validation("unknown service type").WithOp(opCreate).WithDetails(params.ServiceType)
	}
	address := sanitize.Text(params.Address)
	if address == "" {
		return repository.Lead{}, apperr.Validation("address is required").WithOp(opCreate)
	}
	if strings.TrimSpace(params.CustomerPhone) == "" {
		return repository.Lead{}, apperr.Validation("customer phone is required").WithOp(opCreate)
	}

	var name *string
	if cleaned := sanitize.Text(params.CustomerName); cleaned != "" {
		name = &cleaned
	}

	lead, err := s.repo.Create(ctx, repository.CreateLeadParams{
		ServiceType:   params.ServiceType,
		Address:       address,
		Latitude:      params.Latitude,
		Longitude:     params.Longitude,
		CreatedBy:     generatorID,
		CustomerPhone: phone.NormalizeE164(params.CustomerPhone),
		CustomerName:  name,
	})
	if err != nil {
		return repository.Lead{}, s.storeError(opCreate, err)
	}

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		GeneratorID: lead.CreatedBy,
		ServiceType: lead.ServiceType,
	})

	return lead, nil
}

// Accept claims an open lead for an agent. The underlying write carries the
// status precondition, so under N concurrent accepts exactly one returns the
// updated row; the rest come back here with a failed precondition and get an
// AlreadyClaimed conflict.
func (s *Service) Accept(ctx context.Context, leadID, agentID uuid.UUID) (repository.Lead, error) {
	lead, err := s.repo.Claim(ctx, leadID, agentID, s.now())
	if errors.Is(err, repository.ErrPreconditionFailed) {
		return repository.Lead{}, s.shapeConflict(ctx, leadID, domain.StatusOpen, domain.StatusClaimed, opAccept)
	}
	if err != nil {
		return repository.Lead{}, s.storeError(opAccept, err)
	}

	s.log.LeadTransition(lead.ID.String(), string(domain.StatusOpen), string(domain.StatusClaimed), agentID.String())
	s.bus.Publish(ctx, events.LeadAccepted{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		GeneratorID: lead.CreatedBy,
		AgentID:     agentID,
		ServiceType: lead.ServiceType,
	})

	return lead, nil
}

// Reject releases a claim held by agentID back to the open pool. Rejecting a
// lead that is not currently claimed is a reported success with no change.
func (s *Service) Reject(ctx context.Context, leadID, agentID uuid.UUID) (repository.Lead, error) {
	lead, err := s.repo.Release(ctx, leadID, &agentID, s.now())
	if errors.Is(err, repository.ErrPreconditionFailed) {
		return s.rejectNoop(ctx, leadID, agentID)
	}
	if err != nil {
		return repository.Lead{}, s.storeError(opReject, err)
	}

	s.log.LeadTransition(lead.ID.String(), string(domain.StatusClaimed), string(domain.StatusOpen), agentID.String())
	s.bus.Publish(ctx, events.LeadRejected{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		GeneratorID: lead.CreatedBy,
		AgentID:     agentID,
		ServiceType: lead.ServiceType,
	})

	return lead, nil
}

// rejectNoop distinguishes the idempotent success (lead not claimed) from a
// real failure (missing lead, or claimed by another agent).
func (s *Service) rejectNoop(ctx context.Context, leadID, agentID uuid.UUID) (repository.Lead, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Lead{}, apperr.NotFound("lead not found").WithOp(opReject)
	}
	if err != nil {
		return repository.Lead{}, s.storeError(opReject, err)
	}

	if lead.Status == domain.StatusClaimed && (lead.ClaimedBy == nil || *lead.ClaimedBy != agentID) {
		return repository.Lead{}, apperr.Forbidden("lead is claimed by another agent").WithOp(opReject)
	}

	// Already open (or beyond): reject is idempotent.
	return lead, nil
}

// Recall lets the generator retrieve a claimed lead from the holding agent.
// Only the lead's creator may recall it.
func (s *Service) Recall(ctx context.Context, leadID, generatorID uuid.UUID) (repository.Lead, error) {
	current, err := s.repo.GetByID(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Lead{}, apperr.NotFound("lead not found").WithOp(opRecall)
	}
	if err != nil {
		return repository.Lead{}, s.storeError(opRecall, err)
	}
	if current.CreatedBy != generatorID {
		return repository.Lead{}, apperr.Forbidden("only the lead's generator may recall it").WithOp(opRecall)
	}

	agentID := current.ClaimedBy

	lead, err := s.repo.Release(ctx, leadID, nil, s.now())
	if errors.Is(err, repository.ErrPreconditionFailed) {
		return repository.Lead{}, s.shapeConflict(ctx, leadID, domain.StatusClaimed, domain.StatusOpen, opRecall)
	}
	if err != nil {
		return repository.Lead{}, s.storeError(opRecall, err)
	}

	s.log.LeadTransition(lead.ID.String(), string(domain.StatusClaimed), string(domain.StatusOpen), generatorID.String())
	if agentID != nil {
		s.bus.Publish(ctx, events.LeadRecalled{
			BaseEvent:   events.NewBaseEvent(),
			LeadID:      lead.ID,
			GeneratorID: lead.CreatedBy,
			AgentID:     *agentID,
			ServiceType: lead.ServiceType,
		})
	}

	return lead, nil
}

// AutoRelease force-releases a stale claim on behalf of the sweeper. It uses
// the same conditional write as Reject, so a lead completed between the
// sweeper's scan and this call fails the precondition and is skipped.
func (s *Service) AutoRelease(ctx context.Context, leadID uuid.UUID) (repository.Lead, error) {
	current, err := s.repo.GetByID(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Lead{}, apperr.NotFound("lead not found").WithOp(opReject)
	}
	if err != nil {
		return repository.Lead{}, s.storeError(opReject, err)
	}
	agentID := current.ClaimedBy

	lead, err := s.repo.Release(ctx, leadID, nil, s.now())
	if errors.Is(err, repository.ErrPreconditionFailed) {
		return repository.Lead{}, apperr.Conflict("lead is no longer claimed").WithOp(opReject)
	}
	if err != nil {
		return repository.Lead{}, s.storeError(opReject, err)
	}

	s.log.LeadTransition(lead.ID.String(), string(domain.StatusClaimed), string(domain.StatusOpen), "sweeper")
	if agentID != nil {
		s.bus.Publish(ctx, events.LeadAutoRejected{
			BaseEvent:   events.NewBaseEvent(),
			LeadID:      lead.ID,
			GeneratorID: lead.CreatedBy,
			AgentID:     *agentID,
			ServiceType: lead.ServiceType,
		})
	}

	return lead, nil
}

// Complete records proof of completion for a lead claimed by agentID.
func (s *Service) Complete(ctx context.Context, leadID, agentID uuid.UUID, proofRef, notes string) (repository.Lead, error) {
	if strings.TrimSpace(proofRef) == "" {
		return repository.Lead{}, apperr.Validation("proof reference is required").WithOp(opComplete)
	}

	var notesPtr *string
	if cleaned := sanitize.Text(notes); cleaned != "" {
		notesPtr = &cleaned
	}

	lead, err := s.repo.Complete(ctx, leadID, agentID, strings.TrimSpace(proofRef), notesPtr, s.now())
	if errors.Is(err, repository.ErrPreconditionFailed) {
		return repository.Lead{}, s.shapeCompleteFailure(ctx, leadID, agentID)
	}
	if err != nil {
		return repository.Lead{}, s.storeError(opComplete, err)
	}

	s.log.LeadTransition(lead.ID.String(), string(domain.StatusClaimed), string(domain.StatusCompleted), agentID.String())
	s.bus.Publish(ctx, events.LeadCompleted{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		GeneratorID: lead.CreatedBy,
		AgentID:     agentID,
		ServiceType: lead.ServiceType,
		ProofRef:    strings.TrimSpace(proofRef),
	})

	return lead, nil
}

// RejectCompleted is the admin correction of a completed lead. Terminal.
func (s *Service) RejectCompleted(ctx context.Context, leadID uuid.UUID, reason string) (repository.Lead, error) {
	var reasonPtr *string
	if cleaned := sanitize.Text(reason); cleaned != "" {
		reasonPtr = &cleaned
	}

	lead, err := s.repo.RejectCompleted(ctx, leadID, reasonPtr, s.now())
	if errors.Is(err, repository.ErrPreconditionFailed) {
		return repository.Lead{}, s.shapeConflict(ctx, leadID, domain.StatusCompleted, domain.StatusRejected, opRejectCompleted)
	}
	if err != nil {
		return repository.Lead{}, s.storeError(opRejectCompleted, err)
	}

	s.log.LeadTransition(lead.ID.String(), string(domain.StatusCompleted), string(domain.StatusRejected), "admin")
	s.bus.Publish(ctx, events.LeadCompletionRejected{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		GeneratorID: lead.CreatedBy,
		AgentID:     lead.ClaimedBy,
		ServiceType: lead.ServiceType,
		Reason:      strings.TrimSpace(reason),
	})

	return lead, nil
}

// shapeConflict turns a failed precondition into the semantic error the
// caller expects: not found, AlreadyClaimed for lost accept races, NotClaimed
// for completes/releases of non-claimed leads, or a generic invalid
// transition naming current and requested status. The re-read here is error
// shaping only; correctness rests on the conditional write that failed.
func (s *Service) shapeConflict(ctx context.Context, leadID uuid.UUID, expected, requested domain.Status, op string) error {
	lead, err := s.repo.GetByID(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("lead not found").WithOp(op)
	}
	if err != nil {
		return s.storeError(op, err)
	}

	switch {
	case expected == domain.StatusOpen:
		return apperr.Conflict("lead already claimed").WithOp(op).WithDetails(transitionDetails(lead.Status, requested))
	case expected == domain.StatusClaimed && lead.Status != domain.StatusClaimed:
		return apperr.Conflict("lead is not claimed").WithOp(op).WithDetails(transitionDetails(lead.Status, requested))
	case domain.CanTransition(lead.Status, requested):
		// The row was legal again by the time we re-read it; the write still
		// lost its race. Report the conflict without inventing a transition.
		return apperr.Conflict("lead state changed concurrently").WithOp(op).WithDetails(transitionDetails(lead.Status, requested))
	default:
		invalid := &domain.InvalidTransitionError{From: lead.Status, To: requested}
		return apperr.Wrap(apperr.KindConflict, invalid.Error(), invalid).WithOp(op).WithDetails(transitionDetails(lead.Status, requested))
	}
}

// shapeCompleteFailure distinguishes wrong-holder from not-claimed after a
// failed complete write.
func (s *Service) shapeCompleteFailure(ctx context.Context, leadID, agentID uuid.UUID) error {
	lead, err := s.repo.GetByID(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("lead not found").WithOp(opComplete)
	}
	if err != nil {
		return s.storeError(opComplete, err)
	}

	if lead.Status == domain.StatusClaimed && (lead.ClaimedBy == nil || *lead.ClaimedBy != agentID) {
		return apperr.Forbidden("lead is claimed by another agent").WithOp(opComplete)
	}
	return apperr.Conflict("lead is not claimed").WithOp(opComplete).WithDetails(transitionDetails(lead.Status, domain.StatusCompleted))
}

func transitionDetails(current, requested domain.Status) map[string]string {
	return map[string]string{
		"currentStatus":   string(current),
		"requestedStatus": string(requested),
	}
}

// storeError classifies infrastructure failures as retryable, distinct from
// the semantic rejections above.
func (s *Service) storeError(op string, err error) error {
	s.log.DatabaseError(op, err)
	return apperr.Unavailable("lead store unavailable", err).WithOp(op)
}
