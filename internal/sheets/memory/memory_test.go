package memory

import (
	"context"
	"testing"

	"carteira/internal/core"
)

func tx(id string, cents int64) core.Transaction {
	return core.Transaction{
		ID:       id,
		OwnerID:  "owner-1",
		Amount:   core.Cents(cents),
		Category: "Food",
		Type:     core.Expense,
		Date:     core.NewDate(2025, 1, 2),
	}
}

func TestMirrorUpsertAndRemove(t *testing.T) {
	m := New()
	ctx := context.Background()

	ref, err := m.Upsert(ctx, tx("a", 100))
	if err != nil || ref != "mem:1" {
		t.Fatalf("Upsert() = %q, %v, want mem:1", ref, err)
	}
	ref, err = m.Upsert(ctx, tx("b", 200))
	if err != nil || ref != "mem:2" {
		t.Fatalf("Upsert() = %q, %v, want mem:2", ref, err)
	}

	ref, err = m.Upsert(ctx, tx("a", 999))
	if err != nil || ref != "mem:1" {
		t.Errorf("re-Upsert() = %q, %v, want stable mem:1", ref, err)
	}
	if got, _ := m.Get("a"); got.Amount.Cents != 999 {
		t.Errorf("Get(a).Amount = %d, want 999", got.Amount.Cents)
	}

	if err := m.Remove(ctx, "a"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := m.Remove(ctx, "missing"); err != nil {
		t.Errorf("Remove(missing) error = %v, want nil", err)
	}
	if ids := m.IDs(); len(ids) != 1 || ids[0] != "b" {
		t.Errorf("IDs() = %v, want [b]", ids)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

func TestMirrorRejectsInvalid(t *testing.T) {
	m := New()
	if _, err := m.Upsert(context.Background(), tx("a", 0)); err == nil {
		t.Error("Upsert() error = nil, want validation error")
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}
