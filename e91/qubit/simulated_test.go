package qubit

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func newSim(t *testing.T, opts SimulatedOpts) *Simulated {
	t.Helper()
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(42))
	}
	s, err := NewSimulated(opts)
	require.NoError(t, err)
	return s
}

func uniformRequests(n int, a, b Basis, collapsed bool) []Request {
	reqs := make([]Request, n)
	for i := range reqs {
		reqs[i] = Request{Round: i, Alice: a, Bob: b, Collapsed: collapsed}
	}
	return reqs
}

func correlation(out []Outcome) float64 {
	var sum float64
	for _, o := range out {
		if o.Alice == o.Bob {
			sum++
		} else {
			sum--
		}
	}
	return sum / float64(len(out))
}

func TestNewSimulatedValidation(t *testing.T) {
	_, err := NewSimulated(SimulatedOpts{})
	require.Error(t, err, "missing Rand")

	_, err = NewSimulated(SimulatedOpts{Rand: rand.New(rand.NewSource(1)), Noise: 1.5})
	require.Error(t, err, "noise above 1")

	s, err := NewSimulated(SimulatedOpts{Rand: rand.New(rand.NewSource(1))})
	require.NoError(t, err)
	b, err := s.Prepare(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, E91, b.Settings())
}

func TestMatchingBasesAntiCorrelate(t *testing.T) {
	ctx := context.Background()
	s := newSim(t, SimulatedOpts{})
	const n = 2000
	b, err := s.Prepare(ctx, n)
	require.NoError(t, err)

	// Under E91, Alice's basis 1 and Bob's basis 0 are both π/4.
	require.True(t, E91.Match(1, 0))
	out, err := b.Measure(ctx, uniformRequests(n, 1, 0, false))
	require.NoError(t, err)
	for i, o := range out {
		require.Equal(t, i, o.Round)
		require.Equal(t, o.Alice.Flip(), o.Bob, "round %d", i)
	}
}

func TestSingletCorrelations(t *testing.T) {
	ctx := context.Background()
	const n = 20000
	tcs := []struct {
		name  string
		noise float64
		a, b  Basis
	}{
		{"ideal (0,0)", 0, 0, 0},
		{"ideal (0,2)", 0, 0, 2},
		{"ideal (2,2)", 0, 2, 2},
		{"noisy (0,2)", 0.3, 0, 2},
		{"noisy matching", 0.3, 2, 1},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			s := newSim(t, SimulatedOpts{Noise: tc.noise})
			b, err := s.Prepare(ctx, n)
			require.NoError(t, err)
			out, err := b.Measure(ctx, uniformRequests(n, tc.a, tc.b, false))
			require.NoError(t, err)

			aAngle, bAngle := E91.Angles(tc.a, tc.b)
			want := -(1 - tc.noise) * math.Cos(aAngle.Radians()-bAngle.Radians())
			require.InDelta(t, want, correlation(out), 0.04)
		})
	}
}

func TestComputationalIntercept(t *testing.T) {
	ctx := context.Background()
	const n = 20000
	s := newSim(t, SimulatedOpts{Interceptor: Computational()})
	b, err := s.Prepare(ctx, n)
	require.NoError(t, err)

	eve, err := b.Intercept(ctx)
	require.NoError(t, err)
	require.Len(t, eve, n)
	for i, o := range eve {
		require.Equal(t, i, o.Round)
		require.Equal(t, o.Alice.Flip(), o.Bob, "ideal singlet must anti-correlate along Z")
	}

	out, err := b.Measure(ctx, uniformRequests(n, 1, 0, true))
	require.NoError(t, err)
	require.InDelta(t, 0, correlation(out), 0.04, "resent Z states carry no equatorial correlation")

	var wrong int
	for i, o := range out {
		if o.Alice != eve[i].Alice {
			wrong++
		}
	}
	require.InDelta(t, 0.5, float64(wrong)/n, 0.03)
}

func TestEquatorialIntercept(t *testing.T) {
	ctx := context.Background()
	const n = 20000
	s := newSim(t, SimulatedOpts{Interceptor: Equatorial(2)})
	b, err := s.Prepare(ctx, n)
	require.NoError(t, err)
	eve, err := b.Intercept(ctx)
	require.NoError(t, err)

	// Eve always measures at π/2, which is Alice's basis 2: no disturbance on
	// Alice's side.
	out, err := b.Measure(ctx, uniformRequests(n, 2, 1, true))
	require.NoError(t, err)
	for i, o := range out {
		require.Equal(t, eve[i].Alice, o.Alice)
		require.Equal(t, eve[i].Bob, o.Bob)
	}
}

func TestInterceptTwice(t *testing.T) {
	ctx := context.Background()
	b, err := newSim(t, SimulatedOpts{}).Prepare(ctx, 3)
	require.NoError(t, err)
	_, err = b.Intercept(ctx)
	require.NoError(t, err)
	_, err = b.Intercept(ctx)
	require.Error(t, err)
}

func TestMeasureRejectsBadRequests(t *testing.T) {
	ctx := context.Background()
	b, err := newSim(t, SimulatedOpts{}).Prepare(ctx, 4)
	require.NoError(t, err)

	_, err = b.Measure(ctx, []Request{{Round: 0, Alice: 3}})
	require.ErrorIs(t, err, ErrBasisOutOfRange)

	_, err = b.Measure(ctx, []Request{{Round: 0, Bob: 7}})
	require.ErrorIs(t, err, ErrBasisOutOfRange)

	_, err = b.Measure(ctx, []Request{{Round: 4}})
	require.ErrorIs(t, err, ErrUnknownRound)

	_, err = b.Measure(ctx, []Request{{Round: 1, Collapsed: true}})
	require.ErrorIs(t, err, ErrCollapseMismatch)
}

func TestParallelMeasureIsDeterministic(t *testing.T) {
	ctx := context.Background()
	const n = 5000
	run := func(workers int) []Outcome {
		s := newSim(t, SimulatedOpts{
			Rand:    rand.New(rand.NewSource(7)),
			Workers: workers,
		})
		b, err := s.Prepare(ctx, n)
		require.NoError(t, err)
		out, err := b.Measure(ctx, uniformRequests(n, 1, 0, false))
		require.NoError(t, err)
		return out
	}
	first := run(4)
	require.Equal(t, first, run(4))
	for i, o := range first {
		require.Equal(t, i, o.Round)
		require.Equal(t, o.Alice.Flip(), o.Bob)
	}
}

func TestParallelMeasureHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newSim(t, SimulatedOpts{Workers: 4})
	b, err := s.Prepare(context.Background(), 100)
	require.NoError(t, err)
	_, err = b.Measure(ctx, uniformRequests(100, 0, 0, false))
	require.ErrorIs(t, err, context.Canceled)
}
