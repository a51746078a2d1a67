package service

import (
	"context"
	"errors"

	"arealead_backend/internal/geo"
	"arealead_backend/internal/leads/domain"
	"arealead_backend/internal/leads/repository"
	"arealead_backend/internal/leads/visibility"
	"arealead_backend/platform/apperr"

	"github.com/google/uuid"
)

// View is a lead as seen by a particular caller: customer contact gated by
// the subscription flag, claim expiry annotated for the holding agent, and
// distance annotated when the caller supplied a location.
type View struct {
	ID              uuid.UUID              `json:"id"`
	ServiceType     domain.ServiceType     `json:"serviceType"`
	ServiceLabel    string                 `json:"serviceLabel"`
	Status          domain.Status          `json:"status"`
	Contact         visibility.ContactView `json:"contact"`
	Latitude        *float64               `json:"latitude,omitempty"`
	Longitude       *float64               `json:"longitude,omitempty"`
	CreatedBy       uuid.UUID              `json:"createdBy"`
	ClaimedBy       *uuid.UUID             `json:"claimedBy,omitempty"`
	CreatedAt       string                 `json:"createdAt"`
	ClaimedAt       *string                `json:"claimedAt,omitempty"`
	CompletedAt     *string                `json:"completedAt,omitempty"`
	RejectedAt      *string                `json:"rejectedAt,omitempty"`
	ProofRef        *string                `json:"proofRef,omitempty"`
	CompletionNotes *string                `json:"completionNotes,omitempty"`
	RejectionReason *string                `json:"rejectionReason,omitempty"`
	DistanceKm      *float64               `json:"distanceKm,omitempty"`
	DaysRemaining   *int                   `json:"daysRemaining,omitempty"`
	AboutToExpire   *bool                  `json:"aboutToExpire,omitempty"`
}

// OpenLeadsQuery is the agent's browse request over the claimable pool.
type OpenLeadsQuery struct {
	Latitude  *float64
	Longitude *float64
	RadiusKm  *float64
	Page      int
	PageSize  int
}

// OpenLeadsResult pairs the views with the map zoom matching the search
// radius.
type OpenLeadsResult struct {
	Leads []View `json:"leads"`
	Zoom  *int   `json:"zoom,omitempty"`
}

// ListOpenForAgent returns the claimable pool as the requesting agent may
// see it. The subscription flag is read once per request, not per lead.
func (s *Service) ListOpenForAgent(ctx context.Context, agentID uuid.UUID, q OpenLeadsQuery) (OpenLeadsResult, error) {
	subscribed, err := s.subscribed(ctx, agentID)
	if err != nil {
		return OpenLeadsResult{}, err
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	leads, err := s.repo.ListOpen(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return OpenLeadsResult{}, s.storeError(opList, err)
	}

	result := OpenLeadsResult{Leads: make([]View, 0, len(leads))}
	if q.RadiusKm != nil {
		zoom := geo.ZoomForRadiusKm(*q.RadiusKm)
		result.Zoom = &zoom
	}

	for _, lead := range leads {
		view := s.project(lead, subscribed)
		if q.Latitude != nil && q.Longitude != nil && lead.Latitude != nil && lead.Longitude != nil {
			dist := geo.DistanceKm(*q.Latitude, *q.Longitude, *lead.Latitude, *lead.Longitude)
			if q.RadiusKm != nil && dist > *q.RadiusKm {
				continue
			}
			view.DistanceKm = &dist
		}
		result.Leads = append(result.Leads, view)
	}

	return result, nil
}

// ListClaimedForAgent returns the leads the agent currently holds, annotated
// with how long each claim has left before the sweeper takes it back.
func (s *Service) ListClaimedForAgent(ctx context.Context, agentID uuid.UUID) ([]View, error) {
	subscribed, err := s.subscribed(ctx, agentID)
	if err != nil {
		return nil, err
	}

	leads, err := s.repo.ListClaimedBy(ctx, agentID)
	if err != nil {
		return nil, s.storeError(opList, err)
	}

	views := make([]View, 0, len(leads))
	for _, lead := range leads {
		view := s.project(lead, subscribed)
		s.annotateExpiry(&view, lead)
		views = append(views, view)
	}
	return views, nil
}

// ListForGenerator returns every lead the generator created, ungated: the
// generator owns the customer data it submitted.
func (s *Service) ListForGenerator(ctx context.Context, generatorID uuid.UUID) ([]View, error) {
	leads, err := s.repo.ListByCreator(ctx, generatorID)
	if err != nil {
		return nil, s.storeError(opList, err)
	}

	views := make([]View, 0, len(leads))
	for _, lead := range leads {
		view := s.project(lead, true)
		s.annotateExpiry(&view, lead)
		views = append(views, view)
	}
	return views, nil
}

// GetForAgent returns one lead through the agent's subscription gate.
func (s *Service) GetForAgent(ctx context.Context, leadID, agentID uuid.UUID) (View, error) {
	subscribed, err := s.subscribed(ctx, agentID)
	if err != nil {
		return View{}, err
	}

	lead, err := s.repo.GetByID(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return View{}, apperr.NotFound("lead not found").WithOp(opGet)
	}
	if err != nil {
		return View{}, s.storeError(opGet, err)
	}

	view := s.project(lead, subscribed)
	s.annotateExpiry(&view, lead)
	return view, nil
}

// GetFull returns one lead with nothing masked. Generator and admin surface.
func (s *Service) GetFull(ctx context.Context, leadID uuid.UUID) (View, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return View{}, apperr.NotFound("lead not found").WithOp(opGet)
	}
	if err != nil {
		return View{}, s.storeError(opGet, err)
	}

	view := s.project(lead, true)
	s.annotateExpiry(&view, lead)
	return view, nil
}

func (s *Service) subscribed(ctx context.Context, agentID uuid.UUID) (bool, error) {
	subscribed, err := s.subs.IsSubscribed(ctx, agentID)
	if err != nil {
		// The gate fails closed: an unreadable flag masks the data.
		s.log.DatabaseError(opList, err)
		return false, nil
	}
	return subscribed, nil
}

func (s *Service) project(lead repository.Lead, subscribed bool) View {
	name := ""
	if lead.CustomerName != nil {
		name = *lead.CustomerName
	}

	return View{
		ID:              lead.ID,
		ServiceType:     lead.ServiceType,
		ServiceLabel:    lead.ServiceType.Label(),
		Status:          lead.Status,
		Contact:         visibility.Project(lead.CustomerPhone, name, lead.Address, subscribed),
		Latitude:        lead.Latitude,
		Longitude:       lead.Longitude,
		CreatedBy:       lead.CreatedBy,
		ClaimedBy:       lead.ClaimedBy,
		CreatedAt:       lead.CreatedAt.UTC().Format(timeLayout),
		ClaimedAt:       formatTime(lead.ClaimedAt),
		CompletedAt:     formatTime(lead.CompletedAt),
		RejectedAt:      formatTime(lead.RejectedAt),
		ProofRef:        lead.ProofRef,
		CompletionNotes: lead.CompletionNotes,
		RejectionReason: lead.RejectionReason,
	}
}

// annotateExpiry adds the claim countdown for currently claimed leads. Pure
// function of claimed_at and the injected clock; no side effects.
func (s *Service) annotateExpiry(view *View, lead repository.Lead) {
	if lead.Status != domain.StatusClaimed || lead.ClaimedAt == nil {
		return
	}
	now := s.now()
	remaining := domain.DaysRemaining(*lead.ClaimedAt, now, s.window)
	about := domain.AboutToExpire(*lead.ClaimedAt, now, s.window)
	view.DaysRemaining = &remaining
	view.AboutToExpire = &about
}
