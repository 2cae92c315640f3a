package services

import (
	"context"
	"sort"
	"strings"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/storage"
)

type (
	GoalInput struct {
		Title            string
		TargetAmount     core.Money
		TargetDate       *core.Date
		Frequency        core.Frequency
		AutoContribution core.Money
	}

	// GoalPatch lists the editable descriptive fields; nil leaves a field as is.
	GoalPatch struct {
		Title            *string
		TargetAmount     *core.Money
		TargetDate       *core.Date
		ClearTargetDate  bool
		Frequency        *core.Frequency
		AutoContribution *core.Money
	}
)

// GoalService manages savings goals. New goals start at zero; progress only
// moves through Contribute or through transactions linked to the goal.
type GoalService struct {
	base
}

func NewGoalService(store storage.Store, opts ...Option) *GoalService {
	return &GoalService{base: newBase(store, log.ComponentGoals, opts)}
}

func (s *GoalService) CreateGoal(ctx context.Context, ownerID string, in GoalInput) (core.Goal, error) {
	now := s.now()
	g := core.Goal{
		ID:               s.newID(),
		OwnerID:          ownerID,
		Title:            strings.TrimSpace(in.Title),
		TargetAmount:     in.TargetAmount,
		TargetDate:       in.TargetDate,
		Frequency:        in.Frequency,
		AutoContribution: in.AutoContribution,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}

	err := s.atomic(ctx, "create goal", func(tx storage.Tx) error {
		return tx.InsertGoal(ctx, g)
	})
	if err != nil {
		return core.Goal{}, err
	}

	s.logger.InfoContext(ctx, "Goal created",
		log.FieldOwnerID, ownerID,
		log.FieldGoalID, g.ID,
		log.FieldAmountCents, g.TargetAmount.Cents)
	s.committed(ctx, ownerID, core.NewChangeEvent(core.TableGoals, core.OpInsert, ownerID, g.ID))
	return g, nil
}

func (s *GoalService) UpdateGoal(ctx context.Context, ownerID, id string, patch GoalPatch) (core.Goal, error) {
	if err := requireOwner(ownerID); err != nil {
		return core.Goal{}, err
	}

	var updated core.Goal
	err := s.atomic(ctx, "update goal", func(tx storage.Tx) error {
		g, err := tx.GetGoalForUpdate(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if patch.Title != nil {
			g.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.TargetAmount != nil {
			g.TargetAmount = *patch.TargetAmount
		}
		if patch.ClearTargetDate {
			g.TargetDate = nil
		} else if patch.TargetDate != nil {
			d := *patch.TargetDate
			g.TargetDate = &d
		}
		if patch.Frequency != nil {
			g.Frequency = *patch.Frequency
		}
		if patch.AutoContribution != nil {
			g.AutoContribution = *patch.AutoContribution
		}
		if err := g.Validate(); err != nil {
			return err
		}
		if err := tx.UpdateGoalDetails(ctx, g); err != nil {
			return err
		}
		updated, err = tx.GetGoal(ctx, ownerID, id)
		return err
	})
	if err != nil {
		return core.Goal{}, err
	}

	s.committed(ctx, ownerID, core.NewChangeEvent(core.TableGoals, core.OpUpdate, ownerID, id))
	return updated, nil
}

// DeactivateGoal retires a goal. Linked transactions keep their link; new
// contributions are rejected.
func (s *GoalService) DeactivateGoal(ctx context.Context, ownerID, id string) error {
	if err := requireOwner(ownerID); err != nil {
		return err
	}
	err := s.atomic(ctx, "deactivate goal", func(tx storage.Tx) error {
		return tx.DeactivateGoal(ctx, ownerID, id)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Goal deactivated", log.FieldOwnerID, ownerID, log.FieldGoalID, id)
	s.committed(ctx, ownerID, core.NewChangeEvent(core.TableGoals, core.OpUpdate, ownerID, id))
	return nil
}

// Contribute adds a signed amount to an active goal's progress. The increment
// is a single conditional update, so concurrent contributions never lose
// each other and progress never drops below zero.
func (s *GoalService) Contribute(ctx context.Context, ownerID, goalID string, amount core.Money) (core.Goal, error) {
	if err := requireOwner(ownerID); err != nil {
		return core.Goal{}, err
	}
	if amount.IsZero() {
		return core.Goal{}, core.ErrInvalidAmount
	}

	var g core.Goal
	err := s.atomic(ctx, "contribute", func(tx storage.Tx) error {
		current, err := tx.GetGoal(ctx, ownerID, goalID)
		if err != nil {
			return err
		}
		if !current.Active {
			return core.ErrGoalInactive
		}
		var applied bool
		g, applied, err = tx.AdjustGoalProgress(ctx, ownerID, goalID, amount.Cents)
		if err != nil {
			return err
		}
		if !applied {
			return core.ErrNegativeProgress
		}
		return nil
	})
	if err != nil {
		return core.Goal{}, err
	}

	s.logger.InfoContext(ctx, "Goal contribution applied",
		log.FieldOwnerID, ownerID,
		log.FieldGoalID, goalID,
		log.FieldOperation, log.OpContribute,
		log.FieldDeltaCents, amount.Cents,
		log.FieldAmountCents, g.CurrentAmount.Cents)
	s.committed(ctx, ownerID, core.NewChangeEvent(core.TableGoals, core.OpUpdate, ownerID, goalID))
	return g, nil
}

func (s *GoalService) GetGoal(ctx context.Context, ownerID, id string) (core.Goal, error) {
	if err := requireOwner(ownerID); err != nil {
		return core.Goal{}, err
	}
	return retryRead(ctx, s.retry, func() (core.Goal, error) {
		return s.store.GetGoal(ctx, ownerID, id)
	})
}

func (s *GoalService) ListGoals(ctx context.Context, ownerID string, activeOnly bool) ([]core.Goal, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	return retryRead(ctx, s.retry, func() ([]core.Goal, error) {
		return s.store.ListGoals(ctx, ownerID, activeOnly)
	})
}

// ActiveGoals returns progress for every active goal, closest to done first.
func (s *GoalService) ActiveGoals(ctx context.Context, ownerID string) ([]core.GoalProgress, error) {
	goals, err := s.ListGoals(ctx, ownerID, true)
	if err != nil {
		return nil, err
	}
	out := make([]core.GoalProgress, 0, len(goals))
	for _, g := range goals {
		out = append(out, core.NewGoalProgress(g))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Percent > out[j].Percent })
	return out, nil
}

func (s *GoalService) Progress(ctx context.Context, ownerID, id string) (core.GoalProgress, error) {
	g, err := s.GetGoal(ctx, ownerID, id)
	if err != nil {
		return core.GoalProgress{}, err
	}
	return core.NewGoalProgress(g), nil
}

// GoalsStats aggregates over all of the owner's goals, including inactive ones.
func (s *GoalService) GoalsStats(ctx context.Context, ownerID string) (core.GoalsStats, error) {
	goals, err := s.ListGoals(ctx, ownerID, false)
	if err != nil {
		return core.GoalsStats{}, err
	}
	return core.NewGoalsStats(goals), nil
}
