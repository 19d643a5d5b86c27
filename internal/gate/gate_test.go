package gate

import (
	"sync"
	"sync/atomic"
	"testing"

	"tokendesk/internal/models"
)

func TestGateTryAcquire(t *testing.T) {
	g := NewGate()

	if !g.TryAcquire(models.ActionMint, "Minting tokens...") {
		t.Fatal("TryAcquire() on idle gate should be granted")
	}

	state := g.Current()
	if !state.Busy || state.ActiveKind != models.ActionMint ||
		state.DisplayStatus != models.DisplayStatusPending || state.Message != "Minting tokens..." {
		t.Errorf("state after acquire = %+v", state)
	}

	if g.TryAcquire(models.ActionBurn, "Burning tokens...") {
		t.Fatal("TryAcquire() while busy should be denied")
	}
	if after := g.Current(); after != state {
		t.Errorf("denied acquire changed state: %+v -> %+v", state, after)
	}
}

func TestGateIsBusyForIsGlobal(t *testing.T) {
	g := NewGate()
	g.TryAcquire(models.ActionMint, "Minting tokens...")

	for _, kind := range []models.Action{
		models.ActionMint, models.ActionMintTo, models.ActionTransfer,
		models.ActionApprove, models.ActionBurn, models.ActionCheckAllowance,
	} {
		if !g.IsBusyFor(kind) {
			t.Errorf("IsBusyFor(%s) = false while another action is in flight", kind)
		}
	}

	g.Release(models.DisplayStatusSuccess, "done")
	if g.IsBusyFor(models.ActionMint) {
		t.Error("IsBusyFor() = true after release")
	}
}

func TestGateReleaseKeepsActiveKind(t *testing.T) {
	g := NewGate()
	g.TryAcquire(models.ActionTransfer, "Transferring tokens...")
	g.Release(models.DisplayStatusError, "reverted")

	state := g.Current()
	if state.Busy {
		t.Error("Release() left gate busy")
	}
	if state.ActiveKind != models.ActionTransfer {
		t.Errorf("ActiveKind = %q, want transfer until cleared", state.ActiveKind)
	}
	if state.DisplayStatus != models.DisplayStatusError || state.Message != "reverted" {
		t.Errorf("display = %s %q", state.DisplayStatus, state.Message)
	}
}

func TestGateShowErrorDoesNotTouchBusy(t *testing.T) {
	g := NewGate()
	g.ShowError("Please enter a valid mint amount")
	if g.Current().Busy {
		t.Error("ShowError() on idle gate made it busy")
	}

	g.TryAcquire(models.ActionMint, "Minting tokens...")
	g.ShowError("Please enter a valid burn amount")
	state := g.Current()
	if !state.Busy {
		t.Error("ShowError() released an in-flight action")
	}
	if state.DisplayStatus != models.DisplayStatusError {
		t.Errorf("DisplayStatus = %s, want error", state.DisplayStatus)
	}
}

func TestGateClearIfCurrent(t *testing.T) {
	g := NewGate()
	g.TryAcquire(models.ActionMint, "Minting tokens...")

	gen := g.Generation()
	if g.ClearIfCurrent(gen) {
		t.Fatal("ClearIfCurrent() cleared an in-flight display")
	}

	g.Release(models.DisplayStatusSuccess, "ok")
	stale := gen
	gen = g.Generation()
	if g.ClearIfCurrent(stale) {
		t.Fatal("ClearIfCurrent() accepted a stale generation")
	}
	if !g.ClearIfCurrent(gen) {
		t.Fatal("ClearIfCurrent() refused the current generation")
	}

	state := g.Current()
	if state.DisplayStatus != models.DisplayStatusNone || state.ActiveKind != "" || state.Message != "" {
		t.Errorf("state after clear = %+v", state)
	}
}

func TestGateConcurrentAcquireAdmitsOne(t *testing.T) {
	g := NewGate()
	var granted int32
	var wg sync.WaitGroup

	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryAcquire(models.ActionMint, "Minting tokens...") {
				atomic.AddInt32(&granted, 1)
			}
		}()
	}
	wg.Wait()

	if granted != 1 {
		t.Errorf("granted = %d, want exactly 1", granted)
	}
}
