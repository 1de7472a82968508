package sqlite

import (
	"context"
	"os"
	"testing"
	"time"

	"tokentrader/internal/domain/model"
)

func openTestRepo(t *testing.T, path string) *Repo {
	t.Helper()
	repo, err := New(path)
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
		os.Remove(path)
	})
	return repo
}

func openEntry(address, symbol string) *model.LedgerEntry {
	return &model.LedgerEntry{
		TokenAddress: address,
		Symbol:       symbol,
		EntryPrice:   0.0003,
		Quantity:     500000,
		AmountBase:   0.15,
		EntryTime:    time.Now(),
		Mode:         model.ModePaper,
		OpenRef:      "paper-test",
	}
}

func TestLedgerOpenClose(t *testing.T) {
	repo := openTestRepo(t, "test_ledger.db")
	lr := NewLedgerRepo(repo.GetDB())
	ctx := context.Background()

	if err := lr.RecordOpen(ctx, openEntry("0xabc", "TEST")); err != nil {
		t.Fatalf("RecordOpen failed: %v", err)
	}

	open, err := lr.OpenAddresses(ctx)
	if err != nil {
		t.Fatalf("OpenAddresses failed: %v", err)
	}
	if len(open) != 1 || open[0] != "0xabc" {
		t.Fatalf("expected [0xabc] open, got %v", open)
	}

	if err := lr.RecordClose(ctx, "0xabc", 28.4, "trailing tier 2", "0xclose"); err != nil {
		t.Fatalf("RecordClose failed: %v", err)
	}

	open, _ = lr.OpenAddresses(ctx)
	if len(open) != 0 {
		t.Fatalf("expected no open rows, got %v", open)
	}

	e, err := lr.GetEntry(ctx, "0xabc")
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if e.Open() {
		t.Error("entry should be closed")
	}
	if e.ProfitPercent == nil || *e.ProfitPercent != 28.4 {
		t.Errorf("profit expected 28.4, got %v", e.ProfitPercent)
	}
	if e.ExitReason != "trailing tier 2" || e.CloseRef != "0xclose" {
		t.Errorf("close fields lost: %+v", e)
	}
}

func TestLedgerCloseWithoutOpenRow(t *testing.T) {
	repo := openTestRepo(t, "test_ledger_missing.db")
	lr := NewLedgerRepo(repo.GetDB())

	if err := lr.RecordClose(context.Background(), "0xnone", 1.0, "stop loss (-5.0%)", "ref"); err == nil {
		t.Fatal("closing a token with no open row must fail")
	}
}

func TestLedgerCloseMutatesExactlyOnce(t *testing.T) {
	repo := openTestRepo(t, "test_ledger_once.db")
	lr := NewLedgerRepo(repo.GetDB())
	ctx := context.Background()

	if err := lr.RecordOpen(ctx, openEntry("0xabc", "TEST")); err != nil {
		t.Fatalf("RecordOpen failed: %v", err)
	}
	if err := lr.RecordClose(ctx, "0xabc", 10, "max time (73h, +10.0%)", "ref1"); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	// The row is no longer open, so a second close has nothing to mutate.
	if err := lr.RecordClose(ctx, "0xabc", 20, "stagnation (25h, +2.0%)", "ref2"); err == nil {
		t.Fatal("second close must fail")
	}

	e, _ := lr.GetEntry(ctx, "0xabc")
	if *e.ProfitPercent != 10 || e.CloseRef != "ref1" {
		t.Errorf("first close must win: %+v", e)
	}
}

func TestLedgerTierStats(t *testing.T) {
	repo := openTestRepo(t, "test_tier_stats.db")
	lr := NewLedgerRepo(repo.GetDB())

	if err := lr.RecordTierStats(context.Background(), "0xabc", 2, 1.35, 1.2825); err != nil {
		t.Fatalf("RecordTierStats failed: %v", err)
	}
}
