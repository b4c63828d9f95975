package e91

import (
	"math"
	"testing"

	"github.com/alan-christopher/e91/e91/qubit"
)

// rounds builds count copies of a round with the given bases and bits.
func rounds(count int, a, b qubit.Basis, aBit, bBit qubit.Bit) []Round {
	r := make([]Round, count)
	for i := range r {
		r[i] = Round{Alice: a, Bob: b, AliceBit: aBit, BobBit: bBit}
	}
	return r
}

func concat(parts ...[]Round) []Round {
	var r []Round
	for _, p := range parts {
		r = append(r, p...)
	}
	return r
}

func TestEstimate(t *testing.T) {
	tcs := []struct {
		name   string
		rounds []Round
		eout   float64
	}{
		{
			name: "perfect correlations",
			rounds: concat(
				rounds(3, 0, 0, 1, 1), // E(0,0) = +1
				rounds(2, 0, 2, 0, 1), // E(0,2) = -1
				rounds(4, 2, 0, 0, 0), // E(2,0) = +1
				rounds(1, 2, 2, 1, 1), // E(2,2) = +1
			),
			eout: 4,
		}, {
			name: "mixed bucket",
			rounds: concat(
				rounds(3, 0, 0, 0, 0),
				rounds(1, 0, 0, 0, 1), // E(0,0) = (3-1)/4
			),
			eout: 0.5,
		}, {
			name: "basis 1 excluded",
			rounds: concat(
				rounds(5, 1, 0, 1, 1),
				rounds(5, 0, 1, 1, 1),
				rounds(5, 2, 1, 0, 1),
				rounds(2, 2, 2, 0, 1), // E(2,2) = -1
			),
			eout: -1,
		}, {
			name:   "nothing binned",
			rounds: rounds(10, 1, 2, 0, 0),
			eout:   0,
		}, {
			name: "empty",
			eout: 0,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			st := Estimate(tc.rounds)
			if math.IsNaN(st.Value) || math.IsInf(st.Value, 0) {
				t.Fatalf("Estimate == %v, want finite", st.Value)
			}
			if math.Abs(st.Value-tc.eout) > 1e-12 {
				t.Errorf("Estimate == %v, want %v", st.Value, tc.eout)
			}
		})
	}
}

func TestEstimateEmptyBucket(t *testing.T) {
	// No (2,0) observations at all.
	st := Estimate(concat(
		rounds(4, 0, 0, 1, 0),
		rounds(4, 0, 2, 1, 0),
		rounds(4, 2, 2, 1, 1),
	))
	if got := st.Observations(2, 0); got != 0 {
		t.Fatalf("Observations(2,0) == %d, want 0", got)
	}
	e, ok := st.Expectation(2, 0)
	if !ok || e != 0 {
		t.Errorf("Expectation(2,0) == (%v, %v), want (0, true)", e, ok)
	}
	// -1 - (-1) + 0 + 1
	if st.Value != 1 {
		t.Errorf("Value == %v, want 1", st.Value)
	}
	if math.IsNaN(st.StdErr()) {
		t.Errorf("StdErr is NaN")
	}
	if st.Binned() != 12 {
		t.Errorf("Binned == %d, want 12", st.Binned())
	}
}

func TestExpectationLookup(t *testing.T) {
	st := Estimate(rounds(2, 2, 0, 1, 1))
	if e, ok := st.Expectation(2, 0); !ok || e != 1 {
		t.Errorf("Expectation(2,0) == (%v, %v), want (1, true)", e, ok)
	}
	for _, p := range [][2]qubit.Basis{{1, 0}, {0, 1}, {1, 1}, {3, 0}} {
		if _, ok := st.Expectation(p[0], p[1]); ok {
			t.Errorf("Expectation(%d,%d) reported as a CHSH pair", p[0], p[1])
		}
	}
}

func TestViolates(t *testing.T) {
	if !(CHSHStatistic{Value: -2.5}).Violates() {
		t.Errorf("|S| = 2.5 should violate the classical bound")
	}
	if (CHSHStatistic{Value: 1.9}).Violates() {
		t.Errorf("|S| = 1.9 should not violate the classical bound")
	}
}
