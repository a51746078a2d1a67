package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"arealead_backend/internal/events"
	"arealead_backend/internal/leads/domain"
	"arealead_backend/internal/leads/repository"
	"arealead_backend/platform/apperr"
	"arealead_backend/platform/logger"

	"github.com/google/uuid"
)

// fakeStore is an in-memory Store whose transition writers hold a mutex for
// the whole check-and-set, giving the same exactly-once guarantee as the
// conditional SQL writes.
type fakeStore struct {
	mu      sync.Mutex
	leads   map[uuid.UUID]repository.Lead
	failAll error
}

func newFakeStore() *fakeStore {
	return &fakeStore{leads: make(map[uuid.UUID]repository.Lead)}
}

func (f *fakeStore) put(lead repository.Lead) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leads[lead.ID] = lead
}

func (f *fakeStore) Create(_ context.Context, params repository.CreateLeadParams) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return repository.Lead{}, f.failAll
	}
	lead := repository.Lead{
		ID:            uuid.New(),
		ServiceType:   params.ServiceType,
		Address:       params.Address,
		Latitude:      params.Latitude,
		Longitude:     params.Longitude,
		CreatedBy:     params.CreatedBy,
		CustomerPhone: params.CustomerPhone,
		CustomerName:  params.CustomerName,
		Status:        domain.StatusOpen,
		CreatedAt:     time.Now(),
	}
	f.leads[lead.ID] = lead
	return lead, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return repository.Lead{}, f.failAll
	}
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (f *fakeStore) ListOpen(_ context.Context, limit, offset int) ([]repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Lead
	for _, lead := range f.leads {
		if lead.Status == domain.StatusOpen {
			out = append(out, lead)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) ListClaimedBy(_ context.Context, agentID uuid.UUID) ([]repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Lead
	for _, lead := range f.leads {
		if lead.Status == domain.StatusClaimed && lead.ClaimedBy != nil && *lead.ClaimedBy == agentID {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (f *fakeStore) ListByCreator(_ context.Context, creatorID uuid.UUID) ([]repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Lead
	for _, lead := range f.leads {
		if lead.CreatedBy == creatorID {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (f *fakeStore) Claim(_ context.Context, id, agentID uuid.UUID, now time.Time) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return repository.Lead{}, f.failAll
	}
	lead, ok := f.leads[id]
	if !ok || lead.Status != domain.StatusOpen {
		return repository.Lead{}, repository.ErrPreconditionFailed
	}
	claimedAt := now
	lead.Status = domain.StatusClaimed
	lead.ClaimedBy = &agentID
	lead.ClaimedAt = &claimedAt
	f.leads[id] = lead
	return lead, nil
}

func (f *fakeStore) Release(_ context.Context, id uuid.UUID, holder *uuid.UUID, now time.Time) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return repository.Lead{}, f.failAll
	}
	lead, ok := f.leads[id]
	if !ok || lead.Status != domain.StatusClaimed {
		return repository.Lead{}, repository.ErrPreconditionFailed
	}
	if holder != nil && (lead.ClaimedBy == nil || *lead.ClaimedBy != *holder) {
		return repository.Lead{}, repository.ErrPreconditionFailed
	}
	rejectedAt := now
	lead.Status = domain.StatusOpen
	lead.ClaimedBy = nil
	lead.ClaimedAt = nil
	lead.RejectedAt = &rejectedAt
	f.leads[id] = lead
	return lead, nil
}

func (f *fakeStore) Complete(_ context.Context, id, agentID uuid.UUID, proofRef string, notes *string, now time.Time) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return repository.Lead{}, f.failAll
	}
	lead, ok := f.leads[id]
	if !ok || lead.Status != domain.StatusClaimed || lead.ClaimedBy == nil || *lead.ClaimedBy != agentID {
		return repository.Lead{}, repository.ErrPreconditionFailed
	}
	completedAt := now
	lead.Status = domain.StatusCompleted
	lead.ProofRef = &proofRef
	lead.CompletionNotes = notes
	lead.CompletedAt = &completedAt
	f.leads[id] = lead
	return lead, nil
}

func (f *fakeStore) RejectCompleted(_ context.Context, id uuid.UUID, reason *string, now time.Time) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return repository.Lead{}, f.failAll
	}
	lead, ok := f.leads[id]
	if !ok || lead.Status != domain.StatusCompleted {
		return repository.Lead{}, repository.ErrPreconditionFailed
	}
	rejectedAt := now
	lead.Status = domain.StatusRejected
	lead.RejectionReason = reason
	lead.RejectedAt = &rejectedAt
	f.leads[id] = lead
	return lead, nil
}

func (f *fakeStore) ListExpiredClaims(_ context.Context, cutoff time.Time) ([]repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	var out []repository.Lead
	for _, lead := range f.leads {
		if lead.Status == domain.StatusClaimed && lead.ClaimedAt != nil && lead.ClaimedAt.Before(cutoff) {
			out = append(out, lead)
		}
	}
	return out, nil
}

// recordingBus captures published events synchronously.
type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.EventName()
	}
	return out
}

type stubSubs struct {
	subscribed bool
	err        error
}

func (s stubSubs) IsSubscribed(context.Context, uuid.UUID) (bool, error) {
	return s.subscribed, s.err
}

type stubClaimConfig struct{ window time.Duration }

func (c stubClaimConfig) GetClaimWindow() time.Duration { return c.window }

func newTestService(store *fakeStore, bus *recordingBus) *Service {
	return New(store, bus, stubSubs{subscribed: true}, stubClaimConfig{window: 72 * time.Hour}, logger.New("development"))
}

func seedOpenLead(store *fakeStore, creator uuid.UUID) repository.Lead {
	lead := repository.Lead{
		ID:            uuid.New(),
		ServiceType:   domain.ServiceRentAgreement,
		Address:       "MG Road, Pune, MH",
		CreatedBy:     creator,
		CustomerPhone: "+919876543210",
		Status:        domain.StatusOpen,
		CreatedAt:     time.Now(),
	}
	store.put(lead)
	return lead
}

func TestCreateRejectsUnknownServiceType(t *testing.T) {
	svc := newTestService(newFakeStore(), &recordingBus{})

	_, err := svc.Create(context.Background(), uuid.New(), CreateParams{
		ServiceType:   domain.ServiceType("passport"),
		Address:       "MG Road, Pune",
		CustomerPhone: "9876543210",
	})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreatePublishesLeadCreated(t *testing.T) {
	store := newFakeStore()
	bus := &recordingBus{}
	svc := newTestService(store, bus)

	lead, err := svc.Create(context.Background(), uuid.New(), CreateParams{
		ServiceType:   domain.ServiceDomicile,
		Address:       "FC Road, Pune",
		CustomerPhone: "9876543210",
		CustomerName:  "Asha",
	})
	if err != nil {
		t.Fatalf("create returned error: %v", err)
	}
	if lead.Status != domain.StatusOpen {
		t.Fatalf("expected new lead open, got %s", lead.Status)
	}
	names := bus.names()
	if len(names) != 1 || names[0] != (events.LeadCreated{}).EventName() {
		t.Fatalf("expected a single LeadCreated event, got %v", names)
	}
}

func TestAcceptClaimsOpenLead(t *testing.T) {
	store := newFakeStore()
	bus := &recordingBus{}
	svc := newTestService(store, bus)
	lead := seedOpenLead(store, uuid.New())
	agentID := uuid.New()

	claimed, err := svc.Accept(context.Background(), lead.ID, agentID)
	if err != nil {
		t.Fatalf("accept returned error: %v", err)
	}
	if claimed.Status != domain.StatusClaimed {
		t.Fatalf("expected claimed status, got %s", claimed.Status)
	}
	if claimed.ClaimedBy == nil || *claimed.ClaimedBy != agentID {
		t.Fatal("expected claimedBy to be the accepting agent")
	}
	if claimed.ClaimedAt == nil {
		t.Fatal("expected claimedAt to be set")
	}
}

func TestAcceptLostRaceReturnsConflict(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &recordingBus{})
	lead := seedOpenLead(store, uuid.New())

	if _, err := svc.Accept(context.Background(), lead.ID, uuid.New()); err != nil {
		t.Fatalf("first accept returned error: %v", err)
	}

	_, err := svc.Accept(context.Background(), lead.ID, uuid.New())
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("expected conflict for second accept, got %v", err)
	}
}

func TestConcurrentAcceptsExactlyOneWinner(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &recordingBus{})
	lead := seedOpenLead(store, uuid.New())

	const attempts = 16
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Accept(context.Background(), lead.ID, uuid.New())
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		switch {
		case err == nil:
			winners++
		case apperr.GetKind(err) == apperr.KindConflict:
		default:
			t.Fatalf("unexpected loser error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winning accept, got %d", winners)
	}
}

func TestAcceptMissingLeadReturnsNotFound(t *testing.T) {
	svc := newTestService(newFakeStore(), &recordingBus{})

	_, err := svc.Accept(context.Background(), uuid.New(), uuid.New())
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRejectReleasesClaim(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &recordingBus{})
	lead := seedOpenLead(store, uuid.New())
	agentID := uuid.New()

	if _, err := svc.Accept(context.Background(), lead.ID, agentID); err != nil {
		t.Fatalf("accept returned error: %v", err)
	}

	released, err := svc.Reject(context.Background(), lead.ID, agentID)
	if err != nil {
		t.Fatalf("reject returned error: %v", err)
	}
	if released.Status != domain.StatusOpen {
		t.Fatalf("expected open after reject, got %s", released.Status)
	}
	if released.ClaimedBy != nil || released.ClaimedAt != nil {
		t.Fatal("expected claim fields cleared after reject")
	}
}

func TestRejectOpenLeadIsIdempotent(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &recordingBus{})
	lead := seedOpenLead(store, uuid.New())

	got, err := svc.Reject(context.Background(), lead.ID, uuid.New())
	if err != nil {
		t.Fatalf("reject of open lead should be a no-op success, got %v", err)
	}
	if got.Status != domain.StatusOpen {
		t.Fatalf("expected lead to remain open, got %s", got.Status)
	}
}

func TestRejectByNonHolderIsForbidden(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &recordingBus{})
	lead := seedOpenLead(store, uuid.New())

	if _, err := svc.Accept(context.Background(), lead.ID, uuid.New()); err != nil {
		t.Fatalf("accept returned error: %v", err)
	}

	_, err := svc.Reject(context.Background(), lead.ID, uuid.New())
	if apperr.GetKind(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden for non-holder reject, got %v", err)
	}
}

func TestClaimRejectClaimRoundTrip(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &recordingBus{})
	lead := seedOpenLead(store, uuid.New())
	first := uuid.New()
	second := uuid.New()

	if _, err := svc.Accept(context.Background(), lead.ID, first); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	if _, err := svc.Reject(context.Background(), lead.ID, first); err != nil {
		t.Fatalf("reject: %v", err)
	}
	got, err := svc.Accept(context.Background(), lead.ID, second)
	if err != nil {
		t.Fatalf("second accept after release: %v", err)
	}
	if got.ClaimedBy == nil || *got.ClaimedBy != second {
		t.Fatal("expected second agent to hold the re-released lead")
	}
}

func TestCompleteRequiresProofRef(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &recordingBus{})
	lead := seedOpenLead(store, uuid.New())
	agentID := uuid.New()

	if _, err := svc.Accept(context.Background(), lead.ID, agentID); err != nil {
		t.Fatalf("accept returned error: %v", err)
	}

	_, err := svc.Complete(context.Background(), lead.ID, agentID, "   ", "")
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for blank proofRef, got %v", err)
	}

	got, err := svc.GetFull(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	if got.Status != domain.StatusClaimed {
		t.Fatalf("expected lead to stay claimed after rejected complete, got %s", got.Status)
	}
}

func TestCompleteRecordsProof(t *testing.T) {
	store := newFakeStore()
	bus := &recordingBus{}
	svc := newTestService(store, bus)
	lead := seedOpenLead(store, uuid.New())
	agentID := uuid.New()

	if _, err := svc.Accept(context.Background(), lead.ID, agentID); err != nil {
		t.Fatalf("accept returned error: %v", err)
	}

	done, err := svc.Complete(context.Background(), lead.ID, agentID, "doc-ref-123", "delivered in person")
	if err != nil {
		t.Fatalf("complete returned error: %v", err)
	}
	if done.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if done.ProofRef == nil || *done.ProofRef != "doc-ref-123" {
		t.Fatal("expected proof reference persisted")
	}
	if done.CompletedAt == nil {
		t.Fatal("expected completedAt set")
	}
}

func TestCompleteUnclaimedLeadIsConflict(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &recordingBus{})
	lead := seedOpenLead(store, uuid.New())

	_, err := svc.Complete(context.Background(), lead.ID, uuid.New(), "doc-ref", "")
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("expected conflict for completing unclaimed lead, got %v", err)
	}
}

func TestCompleteByNonHolderIsForbidden(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &recordingBus{})
	lead := seedOpenLead(store, uuid.New())

	if _, err := svc.Accept(context.Background(), lead.ID, uuid.New()); err != nil {
		t.Fatalf("accept returned error: %v", err)
	}

	_, err := svc.Complete(context.Background(), lead.ID, uuid.New(), "doc-ref", "")
	if apperr.GetKind(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden for non-holder complete, got %v", err)
	}
}

func TestRejectCompletedIsTerminal(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &recordingBus{})
	lead := seedOpenLead(store, uuid.New())
	agentID := uuid.New()

	if _, err := svc.Accept(context.Background(), lead.ID, agentID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.Complete(context.Background(), lead.ID, agentID, "doc-ref", ""); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, err := svc.RejectCompleted(context.Background(), lead.ID, "proof invalid")
	if err != nil {
		t.Fatalf("rejectCompleted returned error: %v", err)
	}
	if got.Status != domain.StatusRejected {
		t.Fatalf("expected rejected, got %s", got.Status)
	}

	// Terminal: nothing moves a rejected lead.
	if _, err := svc.Accept(context.Background(), lead.ID, uuid.New()); apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("expected conflict accepting a rejected lead, got %v", err)
	}
	if _, err := svc.RejectCompleted(context.Background(), lead.ID, "again"); apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("expected conflict on repeated rejectCompleted, got %v", err)
	}
}

func TestRejectCompletedOnClaimedLeadIsConflict(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &recordingBus{})
	lead := seedOpenLead(store, uuid.New())

	if _, err := svc.Accept(context.Background(), lead.ID, uuid.New()); err != nil {
		t.Fatalf("accept: %v", err)
	}

	_, err := svc.RejectCompleted(context.Background(), lead.ID, "")
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRecallRequiresCreator(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &recordingBus{})
	creator := uuid.New()
	lead := seedOpenLead(store, creator)

	if _, err := svc.Accept(context.Background(), lead.ID, uuid.New()); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if _, err := svc.Recall(context.Background(), lead.ID, uuid.New()); apperr.GetKind(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden for non-creator recall, got %v", err)
	}

	got, err := svc.Recall(context.Background(), lead.ID, creator)
	if err != nil {
		t.Fatalf("creator recall returned error: %v", err)
	}
	if got.Status != domain.StatusOpen {
		t.Fatalf("expected open after recall, got %s", got.Status)
	}
}

func TestStoreFailureIsRetryable(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &recordingBus{})
	lead := seedOpenLead(store, uuid.New())

	store.failAll = errors.New("connection refused")

	_, err := svc.Accept(context.Background(), lead.ID, uuid.New())
	appErr, ok := err.(*apperr.Error)
	if !ok {
		t.Fatalf("expected *apperr.Error, got %T", err)
	}
	if !appErr.Retryable() {
		t.Fatalf("expected store failure to be retryable, got kind %v", appErr.Kind)
	}
}

func TestConflictDetailsNameStatuses(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &recordingBus{})
	lead := seedOpenLead(store, uuid.New())

	if _, err := svc.Accept(context.Background(), lead.ID, uuid.New()); err != nil {
		t.Fatalf("accept: %v", err)
	}

	_, err := svc.Accept(context.Background(), lead.ID, uuid.New())
	appErr, ok := err.(*apperr.Error)
	if !ok {
		t.Fatalf("expected *apperr.Error, got %T", err)
	}
	details, ok := appErr.Details.(map[string]string)
	if !ok {
		t.Fatalf("expected status details, got %#v", appErr.Details)
	}
	if details["currentStatus"] != string(domain.StatusClaimed) || details["requestedStatus"] != string(domain.StatusClaimed) {
		t.Fatalf("unexpected transition details: %v", details)
	}
}
