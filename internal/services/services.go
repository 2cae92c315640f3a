// Package services implements the Ledger Consistency Service: every write
// that touches a transaction, wallet balance, goal progress or budget
// snapshot runs as one atomic unit against the store, and change events are
// published only after the unit commits.
package services

import (
	"context"
	"time"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/storage"

	"github.com/google/uuid"
)

// EventPublisher receives change notifications after a unit commits.
type EventPublisher interface {
	PublishChange(ctx context.Context, e core.ChangeEvent) error
}

// Invalidator drops cached aggregates for an owner after a write.
type Invalidator interface {
	InvalidateOwner(ownerID string)
}

// Option configures the shared dependencies of a service.
type Option func(*base)

func WithPublisher(p EventPublisher) Option {
	return func(b *base) { b.events = p }
}

func WithInvalidator(inv Invalidator) Option {
	return func(b *base) { b.invalidator = inv }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(b *base) { b.retry = p }
}

func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(b *base) { b.logger = l }
}

func WithCurrency(code string) Option {
	return func(b *base) {
		if code != "" {
			b.currency = code
		}
	}
}

// base carries what every service needs.
type base struct {
	store       storage.Store
	events      EventPublisher
	invalidator Invalidator
	retry       RetryPolicy
	logger      *log.Logger
	now         func() time.Time
	newID       func() string
	currency    string
}

func newBase(store storage.Store, component string, opts []Option) base {
	b := base{
		store:    store,
		retry:    DefaultRetryPolicy(),
		logger:   log.ForComponent(component),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.NewString() },
		currency: core.DefaultCurrency,
	}
	for _, opt := range opts {
		opt(&b)
	}
	if b.logger.Component() != component {
		b.logger = b.logger.WithComponent(component)
	}
	return b
}

// atomic runs fn as one store transaction. Failures that are not already
// tagged are reported as consistency errors: the unit was rolled back.
func (b *base) atomic(ctx context.Context, op string, fn func(tx storage.Tx) error) error {
	err := b.store.WithTx(ctx, fn)
	if err == nil {
		return nil
	}
	if core.KindOf(err) != "" {
		return err
	}
	b.logger.ErrorContext(ctx, "Atomic unit rolled back", log.FieldOperation, op, log.FieldError, err)
	return core.Consistency(op, err)
}

// committed publishes events and drops cached aggregates for the owner.
// Publishing is best effort: the write already happened.
func (b *base) committed(ctx context.Context, ownerID string, events ...core.ChangeEvent) {
	if b.invalidator != nil {
		b.invalidator.InvalidateOwner(ownerID)
	}
	if b.events == nil {
		return
	}
	for _, e := range events {
		if err := b.events.PublishChange(ctx, e); err != nil {
			b.logger.WarnContext(ctx, "Failed to publish change event",
				log.FieldTable, e.Table,
				log.FieldOwnerID, e.OwnerID,
				log.FieldError, err)
		}
	}
}

func (b *base) today() core.Date {
	return core.DateOf(b.now())
}

func requireOwner(ownerID string) error {
	if ownerID == "" {
		return core.ErrMissingOwner
	}
	return nil
}
