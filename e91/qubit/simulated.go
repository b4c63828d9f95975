package qubit

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"golang.org/x/sync/errgroup"
)

// An Interceptor chooses the axis along which an eavesdropper measures each
// pair she intercepts.
type Interceptor interface {
	Axis(r *rand.Rand) Vector
}

type computational struct{}

func (computational) Axis(*rand.Rand) Vector { return Z }

// Computational returns an Interceptor which measures both qubits along Z.
// Every later equatorial measurement of the resent pair is a fair coin, so the
// CHSH value collapses to 0 and half of Eve's key bits are wrong.
func Computational() Interceptor {
	return computational{}
}

type equatorial []Angle

func (e equatorial) Axis(r *rand.Rand) Vector {
	return e[r.Intn(len(e))].Direction()
}

// Equatorial returns an Interceptor which measures along an angle drawn
// uniformly from angles, defaulting to the conjugate pair {0, π/2}. Against
// the E91 tables this drives the CHSH value to -√2 and leaves Eve wrong on
// about a fifth of the sifted key.
func Equatorial(angles ...Angle) Interceptor {
	if len(angles) == 0 {
		angles = []Angle{0, 2}
	}
	return equatorial(append([]Angle(nil), angles...))
}

// SimulatedOpts packages the arguments to NewSimulated.
type SimulatedOpts struct {
	// Settings gives the angle tables of both parties. Defaults to E91.
	Settings Settings

	// Noise mixes the singlet with white noise: the prepared state has
	// visibility 1-Noise. Must lie in [0, 1].
	Noise float64

	// Interceptor decides the eavesdropper's measurement axis. Defaults to
	// Equatorial().
	Interceptor Interceptor

	// Rand provides the randomness behind every outcome. Must be non-nil.
	Rand *rand.Rand

	// Workers bounds the number of goroutines resolving a Measure call. Zero
	// or one resolves serially.
	Workers int
}

// Simulated is a Source whose pairs follow a closed-form singlet model. For
// unit measurement directions a and b the prepared state gives
//
//	E(a, b) = -V a·b
//
// where V = 1-Noise is the visibility, so ideal matching bases are perfectly
// anti-correlated and the E91 tables reach |S| = 2√2. An intercepted pair is
// replaced by the product state Eve observed, and each party's outcome then
// depends only on their own qubit.
//
// A Simulated is not safe for concurrent use.
type Simulated struct {
	settings    Settings
	visibility  float64
	interceptor Interceptor
	rand        *rand.Rand
	workers     int
}

// NewSimulated returns a Simulated configured per opts.
func NewSimulated(opts SimulatedOpts) (*Simulated, error) {
	if opts.Rand == nil {
		return nil, errors.New("must provide Rand")
	}
	if opts.Noise < 0 || opts.Noise > 1 {
		return nil, fmt.Errorf("noise must lie in [0, 1], got %v", opts.Noise)
	}
	settings := opts.Settings
	if settings.IsZero() {
		settings = E91
	}
	interceptor := opts.Interceptor
	if interceptor == nil {
		interceptor = Equatorial()
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	return &Simulated{
		settings:    settings,
		visibility:  1 - opts.Noise,
		interceptor: interceptor,
		rand:        opts.Rand,
		workers:     workers,
	}, nil
}

// Prepare implements the Source interface.
func (s *Simulated) Prepare(ctx context.Context, n int) (Batch, error) {
	if n < 0 {
		return nil, fmt.Errorf("preparing %d pairs", n)
	}
	return &simBatch{sim: s, n: n}, nil
}

// collapse holds the product state an intercepted pair was resent in.
type collapse struct {
	alice, bob Vector
}

type simBatch struct {
	sim       *Simulated
	n         int
	collapsed []collapse
}

func (b *simBatch) Settings() Settings {
	return b.sim.settings
}

func (b *simBatch) Intercept(ctx context.Context) ([]Outcome, error) {
	if b.collapsed != nil {
		return nil, errors.New("qubit: batch already intercepted")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := b.sim.rand
	out := make([]Outcome, b.n)
	b.collapsed = make([]collapse, b.n)
	for i := range out {
		axis := b.sim.interceptor.Axis(r)
		// Along a shared axis the singlet anti-correlates with strength V.
		eA := Bit(r.Intn(2))
		eB := eA.Flip()
		if r.Float64() >= (1+b.sim.visibility)/2 {
			eB = eA
		}
		out[i] = Outcome{Round: i, Alice: eA, Bob: eB}
		b.collapsed[i] = collapse{alice: spin(axis, eA), bob: spin(axis, eB)}
	}
	return out, nil
}

func (b *simBatch) Measure(ctx context.Context, reqs []Request) ([]Outcome, error) {
	for _, req := range reqs {
		if err := checkRequest(req, b.n, b.collapsed != nil); err != nil {
			return nil, err
		}
	}
	out := make([]Outcome, len(reqs))
	workers := b.sim.workers
	if workers == 1 || len(reqs) < 2*workers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.resolve(b.sim.rand, reqs, out)
		return out, nil
	}

	chunk := (len(reqs) + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < len(reqs); lo += chunk {
		lo := lo
		hi := min(lo+chunk, len(reqs))
		// Seeds are drawn serially so results depend only on the seed and
		// the worker count.
		seed := b.sim.rand.Int63()
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b.resolve(rand.New(rand.NewSource(seed)), reqs[lo:hi], out[lo:hi])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *simBatch) resolve(r *rand.Rand, reqs []Request, out []Outcome) {
	for i, req := range reqs {
		a, c := b.sim.settings.Angles(req.Alice, req.Bob)
		mA, mB := a.Direction(), c.Direction()
		o := Outcome{Round: req.Round}
		if req.Collapsed {
			st := b.collapsed[req.Round]
			o.Alice = project(r, mA, st.alice)
			o.Bob = project(r, mB, st.bob)
		} else {
			e := -b.sim.visibility * mA.Dot(mB)
			o.Alice = Bit(r.Intn(2))
			o.Bob = o.Alice
			if r.Float64() >= (1+e)/2 {
				o.Bob = o.Alice.Flip()
			}
		}
		out[i] = o
	}
}

// spin returns the Bloch vector of a qubit observed as bit along axis.
func spin(axis Vector, bit Bit) Vector {
	if bit == One {
		return axis.Neg()
	}
	return axis
}

// project measures a qubit in state s along m, returning 0 with probability
// (1 + m·s)/2.
func project(r *rand.Rand, m, s Vector) Bit {
	if r.Float64() < (1+m.Dot(s))/2 {
		return Zero
	}
	return One
}
