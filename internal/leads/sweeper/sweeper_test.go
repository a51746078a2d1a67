package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"arealead_backend/internal/leads/domain"
	"arealead_backend/internal/leads/repository"
	"arealead_backend/platform/apperr"
	"arealead_backend/platform/logger"

	"github.com/google/uuid"
)

type stubScanner struct {
	leads []repository.Lead
	err   error
	// cutoff observed by the last scan, for window math assertions
	cutoff time.Time
}

func (s *stubScanner) ListExpiredClaims(_ context.Context, cutoff time.Time) ([]repository.Lead, error) {
	s.cutoff = cutoff
	if s.err != nil {
		return nil, s.err
	}
	var out []repository.Lead
	for _, lead := range s.leads {
		if lead.Status == domain.StatusClaimed && lead.ClaimedAt != nil && lead.ClaimedAt.Before(cutoff) {
			out = append(out, lead)
		}
	}
	return out, nil
}

type stubEngine struct {
	mu       sync.Mutex
	released []uuid.UUID
	failWith map[uuid.UUID]error
}

func (e *stubEngine) AutoRelease(_ context.Context, leadID uuid.UUID) (repository.Lead, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err, ok := e.failWith[leadID]; ok {
		return repository.Lead{}, err
	}
	e.released = append(e.released, leadID)
	return repository.Lead{ID: leadID, Status: domain.StatusOpen}, nil
}

type stubClaimConfig struct{ window time.Duration }

func (c stubClaimConfig) GetClaimWindow() time.Duration { return c.window }

func claimedLead(claimedAt time.Time) repository.Lead {
	agentID := uuid.New()
	return repository.Lead{
		ID:        uuid.New(),
		Status:    domain.StatusClaimed,
		ClaimedBy: &agentID,
		ClaimedAt: &claimedAt,
	}
}

func newTestSweeper(scanner *stubScanner, engine *stubEngine, now time.Time) *Sweeper {
	s := New(scanner, engine, stubClaimConfig{window: 72 * time.Hour}, logger.New("development"))
	s.SetClock(func() time.Time { return now })
	return s
}

func TestSweepReleasesOnlyExpiredClaims(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fresh := claimedLead(now.Add(-71 * time.Hour))
	stale := claimedLead(now.Add(-73 * time.Hour))
	scanner := &stubScanner{leads: []repository.Lead{fresh, stale}}
	engine := &stubEngine{}

	released, err := newTestSweeper(scanner, engine, now).Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep returned error: %v", err)
	}
	if released != 1 {
		t.Fatalf("expected one release, got %d", released)
	}
	if len(engine.released) != 1 || engine.released[0] != stale.ID {
		t.Fatalf("expected only the stale claim released, got %v", engine.released)
	}
	if want := now.Add(-72 * time.Hour); !scanner.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %v, got %v", want, scanner.cutoff)
	}
}

func TestSweepSkipsCompletedCandidates(t *testing.T) {
	now := time.Now()
	stale := claimedLead(now.Add(-80 * time.Hour))
	scanner := &stubScanner{leads: []repository.Lead{stale}}
	engine := &stubEngine{failWith: map[uuid.UUID]error{
		stale.ID: apperr.Conflict("lead is no longer claimed"),
	}}

	released, err := newTestSweeper(scanner, engine, now).Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep returned error: %v", err)
	}
	if released != 0 {
		t.Fatalf("expected zero releases when lead completed mid-sweep, got %d", released)
	}
}

func TestSweepContinuesPastFailures(t *testing.T) {
	now := time.Now()
	broken := claimedLead(now.Add(-90 * time.Hour))
	healthy1 := claimedLead(now.Add(-90 * time.Hour))
	healthy2 := claimedLead(now.Add(-90 * time.Hour))
	scanner := &stubScanner{leads: []repository.Lead{broken, healthy1, healthy2}}
	engine := &stubEngine{failWith: map[uuid.UUID]error{
		broken.ID: apperr.Unavailable("lead store unavailable", errors.New("timeout")),
	}}

	released, err := newTestSweeper(scanner, engine, now).Sweep(context.Background())
	if err != nil {
		t.Fatalf("expected per-lead failure not to abort the batch, got %v", err)
	}
	if released != 2 {
		t.Fatalf("expected the two healthy releases, got %d", released)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	now := time.Now()
	stale := claimedLead(now.Add(-100 * time.Hour))
	scanner := &stubScanner{leads: []repository.Lead{stale}}
	engine := &stubEngine{}
	sw := newTestSweeper(scanner, engine, now)

	if _, err := sw.Sweep(context.Background()); err != nil {
		t.Fatalf("first sweep: %v", err)
	}

	// The first sweep released the claim; a rescan finds nothing.
	scanner.leads[0].Status = domain.StatusOpen
	scanner.leads[0].ClaimedAt = nil

	released, err := sw.Sweep(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if released != 0 {
		t.Fatalf("expected second sweep to release nothing, got %d", released)
	}
}

func TestSweepScanFailureIsRetryable(t *testing.T) {
	scanner := &stubScanner{err: errors.New("connection reset")}
	sw := newTestSweeper(scanner, &stubEngine{}, time.Now())

	_, err := sw.Sweep(context.Background())
	appErr, ok := err.(*apperr.Error)
	if !ok {
		t.Fatalf("expected *apperr.Error, got %T", err)
	}
	if !appErr.Retryable() {
		t.Fatalf("expected scan failure to be retryable, got kind %v", appErr.Kind)
	}
}
