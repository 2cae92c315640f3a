package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"carteira/internal/cache"
	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/storage"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	dashboardGoals  = 3
	dashboardRecent = 5
)

// ReportService serves the read-side aggregates. Results are cached per
// owner and dropped by InvalidateOwner whenever that owner writes, either in
// this process or, through HandleChange, anywhere that publishes changes.
type ReportService struct {
	base
	wallets *WalletService
	goals   *GoalService
	ledger  *LedgerService

	summaries  cache.Cache[core.MonthSummary]
	stats      cache.Cache[core.GoalsStats]
	dashboards cache.Cache[core.Dashboard]
	group      singleflight.Group

	// generations counts invalidations per owner; a load only fills the
	// cache when none happened while it ran.
	generations sync.Map
}

// NewReportService builds a report service. A ttl of zero disables caching.
func NewReportService(store storage.Store, ttl time.Duration, opts ...Option) *ReportService {
	s := &ReportService{
		base:    newBase(store, log.ComponentReports, opts),
		wallets: NewWalletService(store, opts...),
		goals:   NewGoalService(store, opts...),
		ledger:  NewLedgerService(store, opts...),
	}
	if ttl > 0 {
		s.summaries = cache.NewLRUCache[core.MonthSummary](1000, ttl)
		s.stats = cache.NewLRUCache[core.GoalsStats](1000, ttl)
		s.dashboards = cache.NewLRUCache[core.Dashboard](1000, ttl)
	}
	return s
}

// Caches exposes the underlying caches so a cache.Manager can expire them.
func (s *ReportService) Caches() []cache.Cleaner {
	var out []cache.Cleaner
	for _, c := range []any{s.summaries, s.stats, s.dashboards} {
		if cl, ok := c.(cache.Cleaner); ok {
			out = append(out, cl)
		}
	}
	return out
}

func (s *ReportService) generation(ownerID string) *atomic.Uint64 {
	v, _ := s.generations.LoadOrStore(ownerID, new(atomic.Uint64))
	return v.(*atomic.Uint64)
}

func (s *ReportService) InvalidateOwner(ownerID string) {
	if s.summaries == nil {
		return
	}
	s.generation(ownerID).Add(1)
	prefix := cache.OwnerPrefix(ownerID)
	s.summaries.DeletePrefix(prefix)
	s.stats.DeletePrefix(prefix)
	s.dashboards.DeletePrefix(prefix)
}

// HandleChange drops the owner's cached aggregates for a change committed
// by any writer. It fits amqp.ChangeHandler.
func (s *ReportService) HandleChange(ctx context.Context, e core.ChangeEvent) error {
	if e.OwnerID == "" {
		return nil
	}
	s.InvalidateOwner(e.OwnerID)
	s.logger.DebugContext(ctx, "Report cache invalidated by change event",
		log.FieldOwnerID, e.OwnerID,
		log.FieldTable, e.Table)
	return nil
}

// MonthlySummary totals income and expense in [from, to]. Transfers are not
// counted on either side.
func (s *ReportService) MonthlySummary(ctx context.Context, ownerID string, from, to core.Date) (core.MonthSummary, error) {
	if err := validateRange(ownerID, from, to); err != nil {
		return core.MonthSummary{}, err
	}
	key := cache.Key(ownerID, "summary", from.String(), to.String())
	if s.summaries != nil {
		if v, ok := s.summaries.Get(key); ok {
			return v, nil
		}
	}

	gen := s.generation(ownerID).Load()
	v, err, _ := s.group.Do(key, func() (any, error) {
		return retryRead(ctx, s.retry, func() (core.MonthSummary, error) {
			income, expense, err := s.store.SumByType(ctx, ownerID, from, to)
			if err != nil {
				return core.MonthSummary{}, err
			}
			return core.NewMonthSummary(from, to, income, expense), nil
		})
	})
	if err != nil {
		return core.MonthSummary{}, err
	}
	summary := v.(core.MonthSummary)
	if s.summaries != nil && s.generation(ownerID).Load() == gen {
		s.summaries.Set(key, summary)
	}
	return summary, nil
}

// CurrentMonthSummary is MonthlySummary over the calendar month containing today.
func (s *ReportService) CurrentMonthSummary(ctx context.Context, ownerID string) (core.MonthSummary, error) {
	from, to := s.today().MonthBounds()
	return s.MonthlySummary(ctx, ownerID, from, to)
}

func (s *ReportService) GoalsStats(ctx context.Context, ownerID string) (core.GoalsStats, error) {
	if err := requireOwner(ownerID); err != nil {
		return core.GoalsStats{}, err
	}
	key := cache.Key(ownerID, "goal-stats")
	if s.stats != nil {
		if v, ok := s.stats.Get(key); ok {
			return v, nil
		}
	}

	gen := s.generation(ownerID).Load()
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.goals.GoalsStats(ctx, ownerID)
	})
	if err != nil {
		return core.GoalsStats{}, err
	}
	stats := v.(core.GoalsStats)
	if s.stats != nil && s.generation(ownerID).Load() == gen {
		s.stats.Set(key, stats)
	}
	return stats, nil
}

// Dashboard gathers the overview figures concurrently. Identical concurrent
// requests for one owner share a single load.
func (s *ReportService) Dashboard(ctx context.Context, ownerID string) (core.Dashboard, error) {
	if err := requireOwner(ownerID); err != nil {
		return core.Dashboard{}, err
	}
	key := cache.Key(ownerID, "dashboard")
	if s.dashboards != nil {
		if v, ok := s.dashboards.Get(key); ok {
			return v, nil
		}
	}

	gen := s.generation(ownerID).Load()
	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.loadDashboard(ctx, ownerID)
	})
	if err != nil {
		return core.Dashboard{}, err
	}
	if shared {
		s.logger.DebugContext(ctx, "Dashboard load shared", log.FieldOwnerID, ownerID)
	}
	d := v.(core.Dashboard)
	if s.dashboards != nil && s.generation(ownerID).Load() == gen {
		s.dashboards.Set(key, d)
	}
	return d, nil
}

func (s *ReportService) loadDashboard(ctx context.Context, ownerID string) (core.Dashboard, error) {
	var d core.Dashboard
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		total, err := s.wallets.TotalBalance(gctx, ownerID)
		d.TotalBalance = total
		return err
	})
	g.Go(func() error {
		from, to := s.today().MonthBounds()
		return retryErr(gctx, s.retry, func() error {
			income, expense, err := s.store.SumByType(gctx, ownerID, from, to)
			d.Month = core.NewMonthSummary(from, to, income, expense)
			return err
		})
	})
	g.Go(func() error {
		goals, err := s.goals.ActiveGoals(gctx, ownerID)
		if len(goals) > dashboardGoals {
			goals = goals[:dashboardGoals]
		}
		d.ActiveGoals = goals
		return err
	})
	g.Go(func() error {
		recent, err := s.ledger.RecentTransactions(gctx, ownerID, dashboardRecent)
		d.RecentTransactions = recent
		return err
	})
	g.Go(func() error {
		snap, err := retryRead(gctx, s.retry, func() (core.BudgetSnapshot, error) {
			return s.store.LatestBudgetSnapshot(gctx, ownerID)
		})
		if errors.Is(err, core.ErrSnapshotNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		d.LatestSnapshot = &snap
		return nil
	})

	if err := g.Wait(); err != nil {
		return core.Dashboard{}, err
	}
	return d, nil
}

func retryErr(ctx context.Context, p RetryPolicy, fn func() error) error {
	_, err := retryRead(ctx, p, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
