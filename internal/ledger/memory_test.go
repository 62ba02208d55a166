package ledger

import (
	"context"
	"errors"
	"testing"
	"time"
)

func entry(id, account string, status Status, at time.Time) Entry {
	return Entry{
		ID:        id,
		AccountID: account,
		Type:      TypeTopUp,
		Amount:    100,
		Currency:  "PKR",
		Status:    status,
		CreatedAt: at,
	}
}

func TestAppendAndGet(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	e := entry("e1", "acc1", StatusPending, time.Now().UTC())
	if err := repo.Append(ctx, e); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := repo.Get(ctx, "e1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AccountID != "acc1" || got.Status != StatusPending {
		t.Fatalf("unexpected entry %+v", got)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
}

func TestListByAccountNewestFirstWithLimit(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	base := time.Now().UTC()

	repo.Append(ctx, entry("e1", "acc1", StatusCompleted, base))
	repo.Append(ctx, entry("e2", "acc1", StatusCompleted, base.Add(time.Second)))
	repo.Append(ctx, entry("e3", "acc2", StatusCompleted, base.Add(2*time.Second)))
	repo.Append(ctx, entry("e4", "acc1", StatusCompleted, base.Add(3*time.Second)))

	got, err := repo.ListByAccount(ctx, "acc1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries got %d", len(got))
	}
	if got[0].ID != "e4" || got[1].ID != "e2" {
		t.Fatalf("expected newest first [e4 e2], got [%s %s]", got[0].ID, got[1].ID)
	}
}

func TestUpdateStatusGuardsFromState(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	repo.Append(ctx, entry("e1", "acc1", StatusOnHold, time.Now().UTC()))

	// Wrong from-status must not transition.
	if err := repo.UpdateStatus(ctx, "e1", StatusPending, StatusCompleted); !errors.Is(err, ErrTerminalStatus) {
		t.Fatalf("expected ErrTerminalStatus got %v", err)
	}

	if err := repo.UpdateStatus(ctx, "e1", StatusOnHold, StatusRefunded); err != nil {
		t.Fatalf("valid transition: %v", err)
	}

	got, _ := repo.Get(ctx, "e1")
	if got.Status != StatusRefunded {
		t.Fatalf("expected refunded got %s", got.Status)
	}
}

func TestTerminalEntriesAreImmutable(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for _, terminal := range []Status{StatusCompleted, StatusRefunded, StatusFailed} {
		id := "e-" + string(terminal)
		repo.Append(ctx, entry(id, "acc1", terminal, time.Now().UTC()))
		if err := repo.UpdateStatus(ctx, id, terminal, StatusPending); !errors.Is(err, ErrTerminalStatus) {
			t.Fatalf("%s: expected ErrTerminalStatus got %v", terminal, err)
		}
	}
}

func TestUpdateStatusMissingEntry(t *testing.T) {
	repo := NewMemoryRepository()
	if err := repo.UpdateStatus(context.Background(), "missing", StatusPending, StatusCompleted); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
}
