package services

import (
	"fmt"
	"sync"
	"time"

	"carteira/internal/core"
)

// DuenessChecker decides whether a goal's automatic contribution should run.
// Each contribution frequency has its own checker.
type DuenessChecker interface {
	// IsDue reports whether a contribution is owed given the last automatic
	// contribution (zero when there was none) and the goal's start date.
	IsDue(lastContribution, now time.Time, startDate core.Date) bool
}

// WeeklyChecker is due once seven days have passed.
type WeeklyChecker struct{}

func (WeeklyChecker) IsDue(lastContribution, now time.Time, _ core.Date) bool {
	if lastContribution.IsZero() {
		return true
	}
	return now.Sub(lastContribution) >= 7*24*time.Hour
}

// MonthlyChecker is due once per calendar month, on or after the day of
// the month the goal started. Short months clamp to their last day.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(lastContribution, now time.Time, startDate core.Date) bool {
	if lastContribution.IsZero() {
		return true
	}
	if lastContribution.Year() == now.Year() && lastContribution.Month() == now.Month() {
		return false
	}

	day := startDate.Day()
	if last := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day(); day > last {
		day = last
	}
	return now.Day() >= day
}

// OneTimeChecker is due only until the first contribution lands.
type OneTimeChecker struct{}

func (OneTimeChecker) IsDue(lastContribution, _ time.Time, _ core.Date) bool {
	return lastContribution.IsZero()
}

var (
	duenessMu         sync.RWMutex
	duenessStrategies = map[core.Frequency]DuenessChecker{
		core.Weekly:  WeeklyChecker{},
		core.Monthly: MonthlyChecker{},
		core.OneTime: OneTimeChecker{},
	}
)

// GetDuenessChecker returns the checker for a contribution frequency.
func GetDuenessChecker(frequency core.Frequency) (DuenessChecker, error) {
	duenessMu.RLock()
	defer duenessMu.RUnlock()
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown contribution frequency: %q", frequency)
	}
	return checker, nil
}

// RegisterDuenessChecker installs or replaces the checker for a frequency.
func RegisterDuenessChecker(frequency core.Frequency, checker DuenessChecker) {
	duenessMu.Lock()
	defer duenessMu.Unlock()
	duenessStrategies[frequency] = checker
}
