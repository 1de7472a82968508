package port

import "context"

// Fill is the all-or-nothing settlement outcome of a venue operation.
type Fill struct {
	Quantity      float64 // tokens bought (open) or sold (close)
	ProceedsBase  float64 // base currency received on close
	SettlementRef string  // venue transaction reference
}

// ExecutionVenue swaps base currency for a token and back. Open is a single
// settlement; Close is two-phase: Approve must succeed before Close is
// attempted, and an Approve-ok/Close-fail sequence leaves the caller's
// position untouched.
type ExecutionVenue interface {
	Open(ctx context.Context, address string, amountBase float64) (Fill, error)
	Approve(ctx context.Context, address string) error
	Close(ctx context.Context, address string, quantity float64) (Fill, error)
}
