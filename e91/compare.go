package e91

import (
	"fmt"

	"github.com/alan-christopher/e91/e91/bitmap"
)

// A Comparison counts the positions at which the parties' keys disagree.
type Comparison struct {
	AliceBob  int
	AliceEve  int
	BobEve    int
	KeyLength int
}

// Compare counts pairwise disagreements between the sequences of k. Eve's
// counts are zero when k carries no Eve key.
func Compare(k KeySet) (Comparison, error) {
	n := k.Alice.Size()
	if k.Bob.Size() != n || (k.HasEve && k.Eve.Size() != n) {
		return Comparison{}, fmt.Errorf("%w: alice %d, bob %d, eve %d",
			ErrLengthMismatch, n, k.Bob.Size(), k.Eve.Size())
	}
	c := Comparison{
		AliceBob:  bitmap.Hamming(k.Alice, k.Bob),
		KeyLength: n,
	}
	if k.HasEve {
		c.AliceEve = bitmap.Hamming(k.Alice, k.Eve)
		c.BobEve = bitmap.Hamming(k.Bob, k.Eve)
	}
	return c, nil
}

// QBER returns the fraction of key bits on which Alice and Bob disagree, or 0
// for an empty key.
func (c Comparison) QBER() float64 {
	if c.KeyLength == 0 {
		return 0
	}
	return float64(c.AliceBob) / float64(c.KeyLength)
}
