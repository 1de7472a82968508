package trade

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tokentrader/internal/application/port"
	"tokentrader/internal/application/service"
	"tokentrader/internal/domain/model"
)

type MockOracle struct {
	prices map[string]float64
	err    error
}

func NewMockOracle() *MockOracle {
	return &MockOracle{prices: make(map[string]float64)}
}

func (m *MockOracle) Name() string { return "mock" }

func (m *MockOracle) Price(ctx context.Context, address string) (port.Quote, error) {
	if m.err != nil {
		return port.Quote{}, m.err
	}
	return port.Quote{Address: address, PriceUSD: m.prices[address]}, nil
}

type MockVenue struct{}

func (MockVenue) Open(ctx context.Context, address string, amountBase float64) (port.Fill, error) {
	return port.Fill{Quantity: 1000, SettlementRef: "0xopen"}, nil
}

func (MockVenue) Approve(ctx context.Context, address string) error { return nil }

func (MockVenue) Close(ctx context.Context, address string, quantity float64) (port.Fill, error) {
	return port.Fill{Quantity: quantity, SettlementRef: "0xclose"}, nil
}

type closeRecord struct {
	address string
	reason  string
}

type MockLedger struct {
	opens  []*model.LedgerEntry
	closes []closeRecord
}

func (m *MockLedger) RecordOpen(ctx context.Context, e *model.LedgerEntry) error {
	m.opens = append(m.opens, e)
	return nil
}

func (m *MockLedger) RecordClose(ctx context.Context, address string, profitPct float64, reason, closeRef string) error {
	m.closes = append(m.closes, closeRecord{address: address, reason: reason})
	return nil
}

func (m *MockLedger) OpenAddresses(ctx context.Context) ([]string, error) {
	closed := make(map[string]struct{})
	for _, c := range m.closes {
		closed[c.address] = struct{}{}
	}
	var out []string
	for _, e := range m.opens {
		if _, ok := closed[e.TokenAddress]; !ok {
			out = append(out, e.TokenAddress)
		}
	}
	return out, nil
}

func (m *MockLedger) RecordTierStats(ctx context.Context, address string, tier int, highestPrice, stopPrice float64) error {
	return nil
}

type MockSnapshots struct {
	saved map[string]model.Position // by value: recovery must not alias
}

func NewMockSnapshots() *MockSnapshots {
	return &MockSnapshots{saved: make(map[string]model.Position)}
}

func (m *MockSnapshots) Save(ctx context.Context, p *model.Position) error {
	m.saved[p.TokenAddress] = *p
	return nil
}

func (m *MockSnapshots) Delete(ctx context.Context, address string) error {
	delete(m.saved, address)
	return nil
}

func (m *MockSnapshots) LoadAll(ctx context.Context) ([]*model.Position, error) {
	out := make([]*model.Position, 0, len(m.saved))
	for _, p := range m.saved {
		cp := p
		out = append(out, &cp)
	}
	return out, nil
}

type MockCandidates struct {
	queue []*model.Candidate
}

func (m *MockCandidates) Next(ctx context.Context) (*model.Candidate, error) {
	if len(m.queue) == 0 {
		return nil, nil
	}
	c := m.queue[0]
	m.queue = m.queue[1:]
	return c, nil
}

type fixture struct {
	svc    *Service
	oracle *MockOracle
	ledger *MockLedger
	snaps  *MockSnapshots
	cands  *MockCandidates
	book   *Book
}

func testTrailing() model.TrailingConfig {
	return model.TrailingConfig{
		ActivationThreshold: 12,
		Bands: []model.TierBand{
			{MinProfit: 12, MaxProfit: 30, Distance: 3},
			{MinProfit: 30, MaxProfit: 100, Distance: 5},
			{MinProfit: 100, MaxProfit: 300, Distance: 10},
			{MinProfit: 300, MaxProfit: 99999, Distance: 30},
		},
	}
}

func newFixture() *fixture {
	oracle := NewMockOracle()
	ledger := &MockLedger{}
	snaps := NewMockSnapshots()
	cands := &MockCandidates{}
	book := NewBook()

	deps := ServiceDeps{
		Book:       book,
		Feed:       service.NewPriceFeed(oracle, 3, time.Millisecond),
		Exec:       service.NewExecutor(MockVenue{}, ledger, snaps, nil),
		Candidates: cands,
		Snapshots:  snaps,

		Policy: service.TimeExitPolicy{
			StagnationHours:      24,
			StagnationMinProfit:  5,
			LowMomentumHours:     48,
			LowMomentumMinProfit: 20,
			MaximumHours:         72,
			EmergencyHours:       120,
		},
		Trailing:    testTrailing(),
		StopLossPct: 5,

		MaxPositions:     2,
		MaxTradesPerDay:  3,
		PositionSizeBase: 0.15,
		TickInterval:     time.Millisecond,
		StatusEveryTicks: 10,
	}
	return &fixture{svc: NewService(deps), oracle: oracle, ledger: ledger, snaps: snaps, cands: cands, book: book}
}

func (f *fixture) openAt(t *testing.T, address, symbol string, entry float64, entryTime time.Time) *model.Position {
	t.Helper()
	p := model.NewPosition(address, symbol, entry, 1000, 0.15, 5, testTrailing(), entryTime)
	f.book.Add(p)
	f.oracle.prices[address] = entry
	return p
}

func TestTickAdmitsCandidate(t *testing.T) {
	f := newFixture()
	f.cands.queue = append(f.cands.queue, &model.Candidate{Address: "0xabc", Symbol: "NEW", Score: 90, PriceUSD: 0.001})

	f.svc.tick(context.Background())

	if f.book.Len() != 1 {
		t.Fatalf("expected 1 open position, got %d", f.book.Len())
	}
	if len(f.ledger.opens) != 1 {
		t.Error("admission must write an open ledger row")
	}
	if _, ok := f.snaps.saved["0xabc"]; !ok {
		t.Error("admission must write a snapshot")
	}
}

func TestTickRespectsPositionCap(t *testing.T) {
	f := newFixture()
	now := time.Now()
	f.openAt(t, "0xaaa", "AAA", 1.0, now)
	f.openAt(t, "0xbbb", "BBB", 1.0, now)
	f.cands.queue = append(f.cands.queue, &model.Candidate{Address: "0xccc", Symbol: "CCC", PriceUSD: 0.001})

	f.svc.tick(context.Background())

	if f.book.Len() != 2 {
		t.Fatalf("position cap breached: %d open", f.book.Len())
	}
	if len(f.cands.queue) != 1 {
		t.Error("candidate must remain queued while the book is full")
	}
}

func TestDailyTradeCap(t *testing.T) {
	f := newFixture()
	f.svc.deps.MaxTradesPerDay = 1
	for _, a := range []string{"0x111", "0x222"} {
		f.cands.queue = append(f.cands.queue, &model.Candidate{Address: a, Symbol: "TK" + a[3:], PriceUSD: 0.001})
	}

	f.svc.tick(context.Background())
	// The first admission exhausts today's budget; cap holds even with room
	// in the book.
	f.svc.tick(context.Background())

	if f.book.Len() != 1 {
		t.Fatalf("daily cap breached: %d open", f.book.Len())
	}

	// A new day resets the budget.
	f.svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	f.svc.tick(context.Background())
	if f.book.Len() != 2 {
		t.Fatalf("new day must reset the trade budget, got %d open", f.book.Len())
	}
}

func TestTimeExitPrecedesStopLoss(t *testing.T) {
	f := newFixture()
	// 73 hours held at -8%: both max-time and stop-loss are true. One exit,
	// time wins.
	p := f.openAt(t, "0xaaa", "OLD", 1.0, time.Now().Add(-73*time.Hour))
	f.oracle.prices[p.TokenAddress] = 0.92

	f.svc.tick(context.Background())

	if f.book.Len() != 0 {
		t.Fatal("position should be closed")
	}
	if len(f.ledger.closes) != 1 {
		t.Fatalf("expected exactly one close, got %d", len(f.ledger.closes))
	}
	if !strings.HasPrefix(f.ledger.closes[0].reason, "max time") {
		t.Errorf("time exit must win precedence, got %q", f.ledger.closes[0].reason)
	}
}

func TestStopLossExit(t *testing.T) {
	f := newFixture()
	p := f.openAt(t, "0xaaa", "DIP", 1.0, time.Now())
	f.oracle.prices[p.TokenAddress] = 0.94

	f.svc.tick(context.Background())

	if f.book.Len() != 0 {
		t.Fatal("position should be closed at -6%")
	}
	if !strings.HasPrefix(f.ledger.closes[0].reason, "stop loss") {
		t.Errorf("expected stop loss reason, got %q", f.ledger.closes[0].reason)
	}
}

func TestTrailingScenario(t *testing.T) {
	f := newFixture()
	p := f.openAt(t, "0xaaa", "RUN", 1.00, time.Now())

	f.oracle.prices[p.TokenAddress] = 1.13
	f.svc.tick(context.Background())
	if p.Tier != 1 || !p.TrailingActive {
		t.Fatalf("tier 1 expected after +13%%, got tier %d active %v", p.Tier, p.TrailingActive)
	}

	f.oracle.prices[p.TokenAddress] = 1.35
	f.svc.tick(context.Background())
	if p.Tier != 2 {
		t.Fatalf("tier 2 expected after +35%%, got %d", p.Tier)
	}
	saved := f.snaps.saved[p.TokenAddress]
	if saved.Tier != 2 {
		t.Errorf("snapshot must carry the promoted tier, got %d", saved.Tier)
	}

	f.oracle.prices[p.TokenAddress] = 1.20
	f.svc.tick(context.Background())
	if f.book.Len() != 0 {
		t.Fatal("pullback through the stop should close the position")
	}
	if f.ledger.closes[0].reason != "trailing tier 2" {
		t.Errorf("expected trailing tier 2, got %q", f.ledger.closes[0].reason)
	}
}

func TestPriceFailureFreezesPosition(t *testing.T) {
	f := newFixture()
	p := f.openAt(t, "0xaaa", "GONE", 1.0, time.Now().Add(-80*time.Hour))
	p.StopPrice = 0.95
	f.oracle.err = errors.New("feed down")

	f.svc.tick(context.Background())

	// Even an overdue time exit must wait for a usable price.
	if f.book.Len() != 1 {
		t.Fatal("position must stay open without a price")
	}
	if p.StopPrice != 0.95 || p.Tier != 0 {
		t.Error("risk fields must be untouched on fetch failure")
	}

	f.oracle.err = nil
	f.oracle.prices[p.TokenAddress] = 1.0
	f.svc.tick(context.Background())
	if f.book.Len() != 0 {
		t.Fatal("next successful tick must resume evaluation")
	}
}
