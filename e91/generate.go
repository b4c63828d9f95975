package e91

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/alan-christopher/e91/e91/qubit"
	"github.com/google/uuid"
)

// A Pending holds prepared, possibly intercepted, pairs which have not yet
// been measured by Alice and Bob.
type Pending struct {
	id       uuid.UUID
	batch    qubit.Batch
	n        int
	eve      []qubit.Outcome
	measured bool
}

// Generate prepares n entangled pairs from src. If eavesdrop is set, every
// pair is first intercepted, and Alice and Bob will measure the states the
// eavesdropper resent rather than the original pairs.
func Generate(ctx context.Context, src qubit.Source, n int, eavesdrop bool) (*Pending, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRounds, n)
	}
	batch, err := src.Prepare(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("preparing pairs: %w", err)
	}
	p := &Pending{id: uuid.New(), batch: batch, n: n}
	if !eavesdrop {
		return p, nil
	}
	eve, err := batch.Intercept(ctx)
	if err != nil {
		return nil, fmt.Errorf("intercepting pairs: %w", err)
	}
	if len(eve) != n {
		return nil, fmt.Errorf("%w: %d interceptions for %d pairs", ErrOracle, len(eve), n)
	}
	for i, o := range eve {
		if o.Round != i {
			return nil, fmt.Errorf("%w: interception %d answers round %d", ErrOracle, i, o.Round)
		}
	}
	p.eve = eve
	return p, nil
}

// Len returns the number of pairs in p.
func (p *Pending) Len() int {
	return p.n
}

// Intercepted reports whether p was intercepted.
func (p *Pending) Intercepted() bool {
	return p.eve != nil
}

// SelectBases draws each party's basis for n rounds, independently and
// uniformly from NumBases choices.
func SelectBases(r *rand.Rand, n int) (alice, bob []qubit.Basis) {
	alice = make([]qubit.Basis, n)
	for i := range alice {
		alice[i] = qubit.Basis(r.Intn(qubit.NumBases))
	}
	bob = make([]qubit.Basis, n)
	for i := range bob {
		bob[i] = qubit.Basis(r.Intn(qubit.NumBases))
	}
	return alice, bob
}

// Measure resolves every pair of p in the bases chosen by Alice and Bob and
// returns the resulting Session. A Pending can only be measured once.
func (p *Pending) Measure(ctx context.Context, alice, bob []qubit.Basis) (Session, error) {
	if p.measured {
		return Session{}, ErrAlreadyMeasured
	}
	if len(alice) != p.n || len(bob) != p.n {
		return Session{}, fmt.Errorf("%w: %d/%d choices for %d rounds", ErrBasisCount, len(alice), len(bob), p.n)
	}
	reqs := make([]qubit.Request, p.n)
	for i := range reqs {
		if err := qubit.CheckBasis("alice", i, alice[i]); err != nil {
			return Session{}, err
		}
		if err := qubit.CheckBasis("bob", i, bob[i]); err != nil {
			return Session{}, err
		}
		reqs[i] = qubit.Request{Round: i, Alice: alice[i], Bob: bob[i], Collapsed: p.Intercepted()}
	}
	p.measured = true

	out, err := p.batch.Measure(ctx, reqs)
	if err != nil {
		return Session{}, fmt.Errorf("measuring pairs: %w", err)
	}
	if len(out) != p.n {
		return Session{}, fmt.Errorf("%w: %d outcomes for %d pairs", ErrOracle, len(out), p.n)
	}
	rounds := make([]Round, p.n)
	for i, o := range out {
		if o.Round != i {
			return Session{}, fmt.Errorf("%w: outcome %d answers round %d", ErrOracle, i, o.Round)
		}
		rounds[i] = Round{
			Index:    i,
			Alice:    alice[i],
			Bob:      bob[i],
			AliceBit: o.Alice,
			BobBit:   o.Bob,
		}
		if p.eve != nil {
			rounds[i].Eve = Interception{Alice: p.eve[i].Alice, Bob: p.eve[i].Bob}
			rounds[i].Intercepted = true
		}
	}
	return Session{
		id:           p.id,
		rounds:       rounds,
		settings:     p.batch.Settings(),
		eavesdropped: p.eve != nil,
	}, nil
}
