package repository

import (
	"context"
	"errors"
	"time"

	"arealead_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when the requested lead does not exist.
var ErrNotFound = errors.New("lead not found")

// ErrPreconditionFailed is returned when a conditional transition matched
// zero rows: the lead exists but its status changed under us. The caller
// re-reads the row to shape the semantic error.
var ErrPreconditionFailed = errors.New("lead state precondition failed")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Lead is the stored representation of a service request. Claim fields are
// non-null exactly while status is claimed; the conditional updates below
// maintain that invariant in a single statement each.
type Lead struct {
	ID              uuid.UUID
	ServiceType     domain.ServiceType
	Address         string
	Latitude        *float64
	Longitude       *float64
	CreatedBy       uuid.UUID
	ClaimedBy       *uuid.UUID
	CustomerPhone   string
	CustomerName    *string
	Status          domain.Status
	CreatedAt       time.Time
	ClaimedAt       *time.Time
	CompletedAt     *time.Time
	RejectedAt      *time.Time
	ProofRef        *string
	CompletionNotes *string
	RejectionReason *string
}

const leadColumns = `
	id, service_type, address, latitude, longitude, created_by, claimed_by,
	customer_phone, customer_name, status, created_at, claimed_at,
	completed_at, rejected_at, proof_ref, completion_notes, rejection_reason`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.ServiceType, &lead.Address, &lead.Latitude, &lead.Longitude,
		&lead.CreatedBy, &lead.ClaimedBy, &lead.CustomerPhone, &lead.CustomerName,
		&lead.Status, &lead.CreatedAt, &lead.ClaimedAt, &lead.CompletedAt,
		&lead.RejectedAt, &lead.ProofRef, &lead.CompletionNotes, &lead.RejectionReason,
	)
	return lead, err
}

type CreateLeadParams struct {
	ServiceType   domain.ServiceType
	Address       string
	Latitude      *float64
	Longitude     *float64
	CreatedBy     uuid.UUID
	CustomerPhone string
	CustomerName  *string
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		INSERT INTO leads (service_type, address, latitude, longitude, created_by, customer_phone, customer_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING`+leadColumns,
		params.ServiceType, params.Address, params.Latitude, params.Longitude,
		params.CreatedBy, params.CustomerPhone, params.CustomerName,
	))
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT`+leadColumns+`
		FROM leads
		WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// Claim transitions open -> claimed for exactly one caller. The WHERE clause
// carries the status precondition so that under concurrent accepts the store
// serializes the row and all but one update match zero rows. This is the
// load-bearing write of the whole system; it must never be split into a read
// followed by a write.
func (r *Repository) Claim(ctx context.Context, id, agentID uuid.UUID, now time.Time) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads
		SET status = $3, claimed_by = $2, claimed_at = $4
		WHERE id = $1 AND status = $5
		RETURNING`+leadColumns,
		id, agentID, domain.StatusClaimed, now, domain.StatusOpen,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrPreconditionFailed
	}
	return lead, err
}

// Release transitions claimed -> open, clearing the claim fields and stamping
// the audit marker. Used by manual rejects, generator recalls, and the expiry
// sweeper alike; the status precondition makes it safe to race against a
// concurrent completion. When holder is non-nil the write additionally
// requires claimed_by to match, so an agent can only release their own claim.
func (r *Repository) Release(ctx context.Context, id uuid.UUID, holder *uuid.UUID, now time.Time) (Lead, error) {
	var (
		lead Lead
		err  error
	)
	if holder != nil {
		lead, err = scanLead(r.pool.QueryRow(ctx, `
			UPDATE leads
			SET status = $2, claimed_by = NULL, claimed_at = NULL, rejected_at = $3
			WHERE id = $1 AND status = $4 AND claimed_by = $5
			RETURNING`+leadColumns,
			id, domain.StatusOpen, now, domain.StatusClaimed, *holder,
		))
	} else {
		lead, err = scanLead(r.pool.QueryRow(ctx, `
			UPDATE leads
			SET status = $2, claimed_by = NULL, claimed_at = NULL, rejected_at = $3
			WHERE id = $1 AND status = $4
			RETURNING`+leadColumns,
			id, domain.StatusOpen, now, domain.StatusClaimed,
		))
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrPreconditionFailed
	}
	return lead, err
}

// Complete transitions claimed -> completed for the holding agent, storing
// the proof artifact. Claim fields are kept so the completed row records who
// fulfilled it.
func (r *Repository) Complete(ctx context.Context, id, agentID uuid.UUID, proofRef string, notes *string, now time.Time) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads
		SET status = $3, completed_at = $4, proof_ref = $5, completion_notes = $6
		WHERE id = $1 AND status = $7 AND claimed_by = $2
		RETURNING`+leadColumns,
		id, agentID, domain.StatusCompleted, now, proofRef, notes, domain.StatusClaimed,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrPreconditionFailed
	}
	return lead, err
}

// RejectCompleted is the admin correction completed -> rejected. Terminal.
func (r *Repository) RejectCompleted(ctx context.Context, id uuid.UUID, reason *string, now time.Time) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads
		SET status = $2, rejected_at = $3, rejection_reason = $4
		WHERE id = $1 AND status = $5
		RETURNING`+leadColumns,
		id, domain.StatusRejected, now, reason, domain.StatusCompleted,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrPreconditionFailed
	}
	return lead, err
}

// ListExpiredClaims returns leads whose claim has outlived the window. The
// completed_at guard is redundant with the status check but keeps the
// predicate aligned with the release precondition it feeds.
func (r *Repository) ListExpiredClaims(ctx context.Context, cutoff time.Time) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+leadColumns+`
		FROM leads
		WHERE status = $1 AND claimed_at < $2 AND completed_at IS NULL
		ORDER BY claimed_at ASC
	`, domain.StatusClaimed, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLeads(rows)
}

// ListOpen returns the claimable pool, newest first.
func (r *Repository) ListOpen(ctx context.Context, limit, offset int) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+leadColumns+`
		FROM leads
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, domain.StatusOpen, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLeads(rows)
}

// ListClaimedBy returns the leads an agent currently holds.
func (r *Repository) ListClaimedBy(ctx context.Context, agentID uuid.UUID) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+leadColumns+`
		FROM leads
		WHERE status = $1 AND claimed_by = $2
		ORDER BY claimed_at ASC
	`, domain.StatusClaimed, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLeads(rows)
}

// ListByCreator returns every lead a generator has created, newest first.
func (r *Repository) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+leadColumns+`
		FROM leads
		WHERE created_by = $1
		ORDER BY created_at DESC
	`, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLeads(rows)
}

func collectLeads(rows pgx.Rows) ([]Lead, error) {
	items := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}
