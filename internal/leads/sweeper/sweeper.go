// Package sweeper force-releases claims that outlived the exclusivity
// window. The periodic job and the client-session startup hook both call the
// same Sweep entry point, which in turn drives releases through the same
// lifecycle engine as interactive rejects. There is no second write path.
package sweeper

import (
	"context"
	"sync/atomic"
	"time"

	"arealead_backend/internal/leads/repository"
	"arealead_backend/platform/apperr"
	"arealead_backend/platform/config"
	"arealead_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// releaseConcurrency bounds how many stale claims are released in parallel.
// Each release is an independent single-row write.
const releaseConcurrency = 4

// Engine is the slice of the lifecycle engine the sweeper drives.
type Engine interface {
	AutoRelease(ctx context.Context, leadID uuid.UUID) (repository.Lead, error)
}

// Sweeper scans for expired claims and releases them.
type Sweeper struct {
	scanner repository.ExpiredClaimScanner
	engine  Engine
	window  time.Duration
	now     func() time.Time
	log     *logger.Logger
}

// New creates a sweeper. The window must match the engine's claim window.
func New(scanner repository.ExpiredClaimScanner, engine Engine, cfg config.ClaimConfig, log *logger.Logger) *Sweeper {
	return &Sweeper{
		scanner: scanner,
		engine:  engine,
		window:  cfg.GetClaimWindow(),
		now:     time.Now,
		log:     log,
	}
}

// SetClock overrides the time source for tests.
func (s *Sweeper) SetClock(now func() time.Time) {
	s.now = now
}

// Sweep releases every claim older than the window and returns how many it
// released. Per-lead failures never abort the batch: a lead completed
// between the scan and the release simply fails the release precondition
// inside the engine and is skipped. Only a failed candidate scan returns an
// error.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.window)

	stale, err := s.scanner.ListExpiredClaims(ctx, cutoff)
	if err != nil {
		s.log.DatabaseError("leads.sweeper.scan", err)
		return 0, apperr.Unavailable("expired claim scan failed", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	var released atomic.Int64

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(releaseConcurrency)
	for _, lead := range stale {
		leadID := lead.ID
		grp.Go(func() error {
			if _, err := s.engine.AutoRelease(grpCtx, leadID); err != nil {
				if apperr.Is(err, apperr.KindConflict) || apperr.Is(err, apperr.KindNotFound) {
					// Completed or removed since the scan; nothing to do.
					s.log.Debug("sweeper skipped lead", "leadId", leadID, "reason", err.Error())
					return nil
				}
				s.log.Warn("sweeper failed to release lead", "leadId", leadID, "error", err)
				return nil
			}
			released.Add(1)
			return nil
		})
	}
	_ = grp.Wait()

	count := int(released.Load())
	s.log.Info("expiry sweep finished", "candidates", len(stale), "released", count)
	return count, nil
}
