package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Segregated interfaces so the engine, the sweeper, and tests depend only on
// the operations they exercise.

// LeadReader provides read-only access to lead data.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (Lead, error)
	ListOpen(ctx context.Context, limit, offset int) ([]Lead, error)
	ListClaimedBy(ctx context.Context, agentID uuid.UUID) ([]Lead, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]Lead, error)
}

// LeadIntake creates fresh leads on behalf of a generator.
type LeadIntake interface {
	Create(ctx context.Context, params CreateLeadParams) (Lead, error)
}

// TransitionWriter executes the conditional lifecycle writes. Every method is
// a single atomic statement with the expected current status in its WHERE
// clause; ErrPreconditionFailed means the row was in another state at
// mutation time.
type TransitionWriter interface {
	Claim(ctx context.Context, id, agentID uuid.UUID, now time.Time) (Lead, error)
	Release(ctx context.Context, id uuid.UUID, holder *uuid.UUID, now time.Time) (Lead, error)
	Complete(ctx context.Context, id, agentID uuid.UUID, proofRef string, notes *string, now time.Time) (Lead, error)
	RejectCompleted(ctx context.Context, id uuid.UUID, reason *string, now time.Time) (Lead, error)
}

// ExpiredClaimScanner finds claims past the exclusivity window.
type ExpiredClaimScanner interface {
	ListExpiredClaims(ctx context.Context, cutoff time.Time) ([]Lead, error)
}

// Store is the full contract the lifecycle engine needs.
type Store interface {
	LeadReader
	LeadIntake
	TransitionWriter
	ExpiredClaimScanner
}
