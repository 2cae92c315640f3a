package services

import (
	"context"
	"fmt"
	"time"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/storage"
)

// ContributionProcessor applies the automatic contributions configured on
// active goals whose frequency says one is owed.
type ContributionProcessor struct {
	base
}

func NewContributionProcessor(store storage.Store, opts ...Option) *ContributionProcessor {
	return &ContributionProcessor{base: newBase(store, log.ComponentContribution, opts)}
}

// ProcessDue contributes to every goal that is due at now and returns how
// many contributions were applied. A failing goal is logged and skipped.
func (p *ContributionProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	goals, err := retryRead(ctx, p.retry, func() ([]core.Goal, error) {
		return p.store.ListAutoContributionGoals(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list auto-contribution goals: %w", err)
	}

	p.logger.InfoContext(ctx, "Processing automatic contributions",
		"total_active", len(goals),
		"processing_date", now.Format("2006-01-02"))

	processed := 0
	for _, g := range goals {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}

		applied, err := p.contribute(ctx, g, now)
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to apply automatic contribution",
				log.FieldOwnerID, g.OwnerID,
				log.FieldGoalID, g.ID,
				log.FieldErrorKind, string(core.KindOf(err)),
				log.FieldError, err)
			continue
		}
		if !applied {
			continue
		}

		processed++
		p.logger.InfoContext(ctx, "Applied automatic contribution",
			log.FieldOwnerID, g.OwnerID,
			log.FieldGoalID, g.ID,
			log.FieldDeltaCents, g.AutoContribution.Cents,
			"frequency", g.Frequency)
		p.committed(ctx, g.OwnerID, core.NewChangeEvent(core.TableGoals, core.OpUpdate, g.OwnerID, g.ID))
	}

	p.logger.InfoContext(ctx, "Automatic contribution processing complete",
		"processed", processed,
		"total_checked", len(goals))
	return processed, nil
}

// contribute locks the goal row and re-checks dueness inside the unit, so two
// processors running at once apply a given period's contribution only once.
func (p *ContributionProcessor) contribute(ctx context.Context, listed core.Goal, now time.Time) (bool, error) {
	checker, err := GetDuenessChecker(listed.Frequency)
	if err != nil {
		return false, core.Validationf("%v", err)
	}

	applied := false
	err = p.atomic(ctx, "auto contribution", func(tx storage.Tx) error {
		g, err := tx.GetGoalForUpdate(ctx, listed.OwnerID, listed.ID)
		if err != nil {
			return err
		}
		if !g.Active || !g.AutoContribution.IsPositive() || g.Completed() {
			return nil
		}

		var last time.Time
		if g.LastAutoContributionAt != nil {
			last = *g.LastAutoContributionAt
		}
		if !checker.IsDue(last, now, core.DateOf(g.CreatedAt)) {
			return nil
		}

		if _, ok, err := tx.AdjustGoalProgress(ctx, g.OwnerID, g.ID, g.AutoContribution.Cents); err != nil {
			return err
		} else if !ok {
			return core.ErrNegativeProgress
		}
		if err := tx.MarkAutoContribution(ctx, g.OwnerID, g.ID, now); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}
