package composite

import (
	"context"
	"errors"
	"testing"
	"time"

	"tokentrader/internal/domain/model"
)

type MockLedger struct {
	name     string
	openErr  error
	closeErr error

	opens  int
	closes int
}

func (m *MockLedger) RecordOpen(ctx context.Context, e *model.LedgerEntry) error {
	m.opens++
	return m.openErr
}

func (m *MockLedger) RecordClose(ctx context.Context, address string, profitPct float64, reason, closeRef string) error {
	m.closes++
	return m.closeErr
}

func (m *MockLedger) OpenAddresses(ctx context.Context) ([]string, error) {
	return []string{m.name}, nil
}

func (m *MockLedger) RecordTierStats(ctx context.Context, address string, tier int, highestPrice, stopPrice float64) error {
	return nil
}

func entry() *model.LedgerEntry {
	return &model.LedgerEntry{TokenAddress: "0xabc", Symbol: "TEST", EntryTime: time.Now()}
}

func TestCompositeFansOutWrites(t *testing.T) {
	primary := &MockLedger{name: "primary"}
	mirror := &MockLedger{name: "mirror"}
	c := New(primary, mirror)
	ctx := context.Background()

	if err := c.RecordOpen(ctx, entry()); err != nil {
		t.Fatalf("RecordOpen failed: %v", err)
	}
	if primary.opens != 1 || mirror.opens != 1 {
		t.Errorf("both ledgers must receive the write: %d/%d", primary.opens, mirror.opens)
	}
}

func TestCompositeKeepsFirstError(t *testing.T) {
	errPrimary := errors.New("primary down")
	primary := &MockLedger{name: "primary", closeErr: errPrimary}
	mirror := &MockLedger{name: "mirror", closeErr: errors.New("mirror down")}
	c := New(primary, mirror)

	err := c.RecordClose(context.Background(), "0xabc", 5, "stop loss (-5.0%)", "ref")
	if !errors.Is(err, errPrimary) {
		t.Fatalf("first error must surface, got %v", err)
	}
	if mirror.closes != 1 {
		t.Error("a primary failure must not skip the mirror write")
	}
}

func TestCompositeReadsFromPrimary(t *testing.T) {
	c := New(&MockLedger{name: "primary"}, &MockLedger{name: "mirror"})

	open, err := c.OpenAddresses(context.Background())
	if err != nil {
		t.Fatalf("OpenAddresses failed: %v", err)
	}
	if len(open) != 1 || open[0] != "primary" {
		t.Fatalf("reads must go to the primary alone, got %v", open)
	}
}

func TestCompositeSkipsNilLedgers(t *testing.T) {
	primary := &MockLedger{name: "primary"}
	c := New(primary, nil)

	if err := c.RecordOpen(context.Background(), entry()); err != nil {
		t.Fatalf("RecordOpen failed: %v", err)
	}
	if primary.opens != 1 {
		t.Error("primary must still be written")
	}
}
