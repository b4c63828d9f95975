package e91

import (
	"math"

	"github.com/alan-christopher/e91/e91/qubit"
)

const (
	// ClassicalBound is the largest |S| a local hidden variable model, and
	// hence any intercept-resend attack, can produce.
	ClassicalBound = 2.0

	// QuantumBound is the largest |S| reachable with entangled pairs.
	QuantumBound = 2 * math.Sqrt2
)

// The CHSH test draws on Alice's and Bob's bases 0 and 2 only. Basis 1 is
// reserved for key generation.
var (
	bucketPairs = [4][2]qubit.Basis{{0, 0}, {0, 2}, {2, 0}, {2, 2}}
	bucketSigns = [4]float64{1, -1, 1, 1}

	// bucketOf maps (alice, bob) to an index into bucketPairs, or -1.
	bucketOf = [qubit.NumBases][qubit.NumBases]int{
		{0, -1, 1},
		{-1, -1, -1},
		{2, -1, 3},
	}
)

// A CHSHStatistic summarises the correlations observed across the four CHSH
// basis pairs (0,0), (0,2), (2,0) and (2,2).
type CHSHStatistic struct {
	// Counts[b][o] counts rounds in bucket b whose outcome was o, where
	// o = aliceBit + 2*bobBit.
	Counts [4][4]int

	// Expectations holds the correlation of each bucket, or 0 for an empty
	// bucket.
	Expectations [4]float64

	// Value is E(0,0) - E(0,2) + E(2,0) + E(2,2). Singlet pairs
	// anti-correlate, so an ideal run lands near -QuantumBound; compare
	// |Value| against the bounds.
	Value float64
}

// Estimate computes the CHSH statistic over the mismatched-basis rounds of a
// session, as returned by Partition. Rounds outside the four CHSH pairs are
// ignored. An empty bucket contributes 0 rather than failing, so the result
// is always finite.
//
// Estimate only reports the statistic; deciding whether it is low enough to
// abort is up to the caller.
func Estimate(mismatched []Round) CHSHStatistic {
	var st CHSHStatistic
	for _, r := range mismatched {
		if !r.Alice.Valid() || !r.Bob.Valid() {
			continue
		}
		b := bucketOf[r.Alice][r.Bob]
		if b < 0 {
			continue
		}
		st.Counts[b][int(r.AliceBit&1)+2*int(r.BobBit&1)]++
	}
	for b, c := range st.Counts {
		total := c[0] + c[1] + c[2] + c[3]
		if total == 0 {
			continue
		}
		st.Expectations[b] = float64(c[0]+c[3]-c[1]-c[2]) / float64(total)
		st.Value += bucketSigns[b] * st.Expectations[b]
	}
	return st
}

// Expectation returns the correlation observed for Alice's basis a and Bob's
// basis b, and false if (a, b) is not one of the CHSH pairs.
func (st CHSHStatistic) Expectation(a, b qubit.Basis) (float64, bool) {
	if !a.Valid() || !b.Valid() || bucketOf[a][b] < 0 {
		return 0, false
	}
	return st.Expectations[bucketOf[a][b]], true
}

// Observations returns the number of rounds binned for the pair (a, b).
func (st CHSHStatistic) Observations(a, b qubit.Basis) int {
	if !a.Valid() || !b.Valid() || bucketOf[a][b] < 0 {
		return 0
	}
	c := st.Counts[bucketOf[a][b]]
	return c[0] + c[1] + c[2] + c[3]
}

// Binned returns the number of rounds that contributed to the statistic.
func (st CHSHStatistic) Binned() int {
	var n int
	for _, p := range bucketPairs {
		n += st.Observations(p[0], p[1])
	}
	return n
}

// StdErr estimates the sampling error of Value, treating each bucket as an
// independent ±1 average. Empty buckets contribute nothing.
func (st CHSHStatistic) StdErr() float64 {
	var v float64
	for b, e := range st.Expectations {
		p := bucketPairs[b]
		if n := st.Observations(p[0], p[1]); n > 0 {
			v += (1 - e*e) / float64(n)
		}
	}
	return math.Sqrt(v)
}

// Violates reports whether |Value| exceeds the classical bound.
func (st CHSHStatistic) Violates() bool {
	return math.Abs(st.Value) > ClassicalBound
}
