// Package billing exposes the subscription flag the lead engine gates
// contact visibility on. Subscriptions are administered by an external
// billing system; this module only reads the resulting state.
package billing

import (
	"context"
	"fmt"

	"arealead_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const opIsSubscribed = "billing.repository.is_subscribed"

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// IsSubscribed reports whether the agent holds an active subscription right
// now. Expired rows count as unsubscribed without any cleanup pass.
func (r *Repository) IsSubscribed(ctx context.Context, agentID uuid.UUID) (bool, error) {
	if r == nil || r.pool == nil {
		return false, apperr.Internal("billing repository not configured").WithOp(opIsSubscribed)
	}
	if agentID == uuid.Nil {
		return false, apperr.Validation("agentId is required").WithOp(opIsSubscribed)
	}

	var subscribed bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM agent_subscriptions
			WHERE agent_id = $1
			  AND active = TRUE
			  AND (expires_at IS NULL OR expires_at > now())
		)
	`, agentID).Scan(&subscribed)
	if err != nil {
		return false, apperr.Internal(fmt.Sprintf("subscription lookup failed: %v", err)).WithOp(opIsSubscribed)
	}

	return subscribed, nil
}
