package history

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"tokendesk/internal/models"
)

func newOp(ref string, kind models.Action) models.Operation {
	return models.Operation{
		Kind:        kind,
		Amount:      big.NewInt(100),
		AmountText:  "100",
		SubmittedAt: time.Now(),
		Status:      models.OperationStatusPending,
		Message:     "Minting tokens...",
		ExternalRef: ref,
	}
}

func TestLogAppendAndList(t *testing.T) {
	log := NewLog()

	for i, ref := range []string{"0xa", "0xb", "0xc"} {
		if err := log.Append(newOp(ref, models.ActionMint)); err != nil {
			t.Fatalf("Append(%d) unexpected error: %v", i, err)
		}
	}

	got := log.List()
	if len(got) != 3 {
		t.Fatalf("List() len = %d, want 3", len(got))
	}
	for i, ref := range []string{"0xa", "0xb", "0xc"} {
		if got[i].ExternalRef != ref {
			t.Errorf("List()[%d] = %s, want %s", i, got[i].ExternalRef, ref)
		}
	}
}

func TestLogAppendRejectsDuplicatesAndMissingRefs(t *testing.T) {
	log := NewLog()

	if err := log.Append(newOp("0xabc", models.ActionMint)); err != nil {
		t.Fatalf("Append() unexpected error: %v", err)
	}
	err := log.Append(newOp("0xabc", models.ActionBurn))
	if !errors.Is(err, ErrDuplicateReference) {
		t.Errorf("Append() duplicate error = %v, want ErrDuplicateReference", err)
	}
	if err := log.Append(newOp("", models.ActionMint)); !errors.Is(err, ErrMissingReference) {
		t.Errorf("Append() empty ref error = %v, want ErrMissingReference", err)
	}

	if log.Len() != 1 {
		t.Errorf("Len() = %d, want 1", log.Len())
	}
	entry, _ := log.Get("0xabc")
	if entry.Kind != models.ActionMint {
		t.Errorf("duplicate append changed kind to %s", entry.Kind)
	}
}

func TestLogUpdateStatus(t *testing.T) {
	log := NewLog()
	original := newOp("0x1", models.ActionTransfer)
	_ = log.Append(original)
	_ = log.Append(newOp("0x2", models.ActionBurn))

	updated, err := log.UpdateStatus("0x1", models.OperationStatusSuccess, "done")
	if err != nil {
		t.Fatalf("UpdateStatus() unexpected error: %v", err)
	}
	if updated.Status != models.OperationStatusSuccess || updated.Message != "done" {
		t.Errorf("UpdateStatus() = %+v", updated)
	}

	list := log.List()
	if list[0].ExternalRef != "0x1" {
		t.Errorf("update moved entry, first is %s", list[0].ExternalRef)
	}
	if list[0].Kind != original.Kind || !list[0].SubmittedAt.Equal(original.SubmittedAt) {
		t.Error("update changed immutable fields")
	}

	if _, err := log.UpdateStatus("0xmissing", models.OperationStatusError, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateStatus() missing error = %v, want ErrNotFound", err)
	}
	if log.Len() != 2 {
		t.Errorf("UpdateStatus() created an entry, Len() = %d", log.Len())
	}
}

func TestLogSnapshotIsolation(t *testing.T) {
	log := NewLog()
	_ = log.Append(newOp("0x1", models.ActionMint))

	snap := log.List()
	snap[0].Status = models.OperationStatusError
	snap[0].Amount.SetInt64(1)

	entry, _ := log.Get("0x1")
	if entry.Status != models.OperationStatusPending {
		t.Error("mutating snapshot changed stored status")
	}
	if entry.Amount.Int64() != 100 {
		t.Error("mutating snapshot changed stored amount")
	}
}

func TestLogStats(t *testing.T) {
	log := NewLog()
	_ = log.Append(newOp("0x1", models.ActionMint))
	_ = log.Append(newOp("0x2", models.ActionMint))
	_ = log.Append(newOp("0x3", models.ActionMint))
	_, _ = log.UpdateStatus("0x2", models.OperationStatusSuccess, "ok")
	_, _ = log.UpdateStatus("0x3", models.OperationStatusError, "reverted")

	s := log.Stats()
	if s.Total != 3 || s.Pending != 1 || s.Success != 1 || s.Error != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestLogConcurrentReadsSeeConsistentPrefix(t *testing.T) {
	log := NewLog()
	const n = 200

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			ref := fmt.Sprintf("0x%d", i)
			_ = log.Append(newOp(ref, models.ActionMint))
			_, _ = log.UpdateStatus(ref, models.OperationStatusSuccess, "ok")
		}
	}()

	prev := 0
	for i := 0; i < n; i++ {
		snap := log.List()
		if len(snap) < prev {
			t.Fatalf("snapshot shrank from %d to %d", prev, len(snap))
		}
		for j, op := range snap {
			if op.ExternalRef != fmt.Sprintf("0x%d", j) {
				t.Fatalf("snapshot[%d] = %s, out of order", j, op.ExternalRef)
			}
		}
		prev = len(snap)
	}
	wg.Wait()

	if log.Len() != n {
		t.Errorf("Len() = %d, want %d", log.Len(), n)
	}
}
