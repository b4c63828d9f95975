package e91

import (
	"github.com/alan-christopher/e91/e91/bitmap"
	"github.com/alan-christopher/e91/e91/qubit"
)

// A KeySet holds the raw key each party derives from the matching-basis
// rounds of a Session. The three sequences are parallel: entry i of each
// comes from round Rounds[i].
type KeySet struct {
	Alice bitmap.Dense
	Bob   bitmap.Dense

	// Eve is populated iff HasEve.
	Eve    bitmap.Dense
	HasEve bool

	Rounds []int
}

// Len returns the number of key bits.
func (k KeySet) Len() int {
	return k.Alice.Size()
}

// Partition splits the rounds of s into those whose bases match, which carry
// key material, and the rest, which feed the CHSH test. Every round lands in
// exactly one of the two.
func Partition(s Session) (matched, mismatched []Round) {
	for _, r := range s.rounds {
		if s.Matches(r) {
			matched = append(matched, r)
		} else {
			mismatched = append(mismatched, r)
		}
	}
	return matched, mismatched
}

// Sift derives the parties' raw keys from the matching-basis rounds of s.
// Matching bases yield anti-correlated outcomes, so Bob inverts his bit; Eve
// keeps what she saw on Alice's side.
func Sift(s Session) KeySet {
	n := len(s.rounds)
	match := make([]uint8, n)
	alice := make([]qubit.Bit, n)
	bob := make([]qubit.Bit, n)
	eve := make([]qubit.Bit, n)
	k := KeySet{HasEve: s.eavesdropped, Rounds: make([]int, 0, n)}
	for i, r := range s.rounds {
		if s.Matches(r) {
			match[i] = 1
			k.Rounds = append(k.Rounds, r.Index)
		}
		alice[i], bob[i], eve[i] = r.AliceBit, r.BobBit, r.Eve.Alice
	}

	mask := bitmap.FromBits(match)
	k.Alice = bitmap.Select(bitmap.FromBits(alice), mask)
	k.Bob = bitmap.Select(bitmap.Not(bitmap.FromBits(bob)), mask)
	if k.HasEve {
		k.Eve = bitmap.Select(bitmap.FromBits(eve), mask)
	}
	return k
}
