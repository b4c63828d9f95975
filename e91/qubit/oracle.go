package qubit

import (
	"context"
	"fmt"
)

// A Request asks the oracle to measure one round's pair.
type Request struct {
	Round int
	Alice Basis
	Bob   Basis

	// Collapsed is set iff the pair was measured by an eavesdropper before
	// this request, so the oracle must use its post-collapse state.
	Collapsed bool
}

// An Outcome holds the bits observed for one round.
type Outcome struct {
	Round int
	Alice Bit
	Bob   Bit
}

// A Source prepares batches of entangled pairs. Sources keep no state between
// batches.
type Source interface {
	// Prepare returns a Batch of n freshly entangled pairs, numbered 0..n-1.
	Prepare(ctx context.Context, n int) (Batch, error)
}

// A Batch is a set of prepared pairs awaiting measurement.
type Batch interface {
	// Settings returns the angle tables the batch measures against.
	Settings() Settings

	// Intercept measures every pair in the eavesdropper's basis and returns
	// her observations, one per round in order. Each pair collapses to the
	// state she observed.
	Intercept(ctx context.Context) ([]Outcome, error)

	// Measure resolves one Outcome per request, in request order.
	Measure(ctx context.Context, reqs []Request) ([]Outcome, error)
}

// checkRequest validates req against a batch of n pairs whose interception
// state is given by collapsed.
func checkRequest(req Request, n int, collapsed bool) error {
	if req.Round < 0 || req.Round >= n {
		return fmt.Errorf("%w: %d of %d", ErrUnknownRound, req.Round, n)
	}
	if err := CheckBasis("alice", req.Round, req.Alice); err != nil {
		return err
	}
	if err := CheckBasis("bob", req.Round, req.Bob); err != nil {
		return err
	}
	if req.Collapsed != collapsed {
		return fmt.Errorf("%w: round %d requested collapsed=%v", ErrCollapseMismatch, req.Round, req.Collapsed)
	}
	return nil
}
