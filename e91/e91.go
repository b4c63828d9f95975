// Package e91 provides utilities for negotiating a shared secret with the
// entanglement-based E91 protocol, and for detecting an eavesdropper through
// the CHSH correlations of the rounds that cannot contribute to the key.
//
// A run proceeds as a strict pipeline: Generate prepares the pairs (running
// an eavesdropper's intercept pass if asked), SelectBases draws each party's
// settings, Pending.Measure resolves the outcomes into an immutable Session,
// and Sift, Estimate and Compare project the Session into a key, a CHSH
// statistic and a disagreement count. Run strings these together.
package e91

import (
	"errors"
	"fmt"

	"github.com/alan-christopher/e91/e91/qubit"
	"github.com/google/uuid"
)

// DefaultRounds is the number of pairs exchanged by Run when Opts.Rounds is
// zero.
var DefaultRounds = 100

var (
	// ErrInvalidRounds is returned when asked to generate a non-positive
	// number of rounds.
	ErrInvalidRounds = errors.New("e91: round count must be positive")

	// ErrBasisCount is returned when the basis choices handed to Measure do
	// not cover the batch exactly.
	ErrBasisCount = errors.New("e91: basis choices do not match round count")

	// ErrAlreadyMeasured is returned when a Pending batch is measured twice.
	ErrAlreadyMeasured = errors.New("e91: batch already measured")

	// ErrLengthMismatch signals that the key sequences of a KeySet have
	// diverged. Sift never produces such a KeySet; seeing this error is a bug.
	ErrLengthMismatch = errors.New("e91: key sequences differ in length")

	// ErrOracle is returned when the oracle answers out of order.
	ErrOracle = errors.New("e91: inconsistent oracle response")
)

// An Interception records what an eavesdropper observed for one round.
type Interception struct {
	Alice qubit.Bit
	Bob   qubit.Bit
}

// A Round is one measured pair.
type Round struct {
	Index    int
	Alice    qubit.Basis
	Bob      qubit.Basis
	AliceBit qubit.Bit
	BobBit   qubit.Bit

	// Eve is meaningful iff Intercepted.
	Eve         Interception
	Intercepted bool
}

// A Session is the immutable, ordered record of one protocol run.
type Session struct {
	id           uuid.UUID
	rounds       []Round
	settings     qubit.Settings
	eavesdropped bool
}

// NewSession assembles a Session from already measured rounds, e.g. ones
// recorded elsewhere. Rounds must be indexed 0..n-1 in order, use valid bases,
// and either all or none of them must be intercepted. Zero settings default to
// qubit.E91.
func NewSession(settings qubit.Settings, rounds []Round) (Session, error) {
	if settings.IsZero() {
		settings = qubit.E91
	}
	eavesdropped := len(rounds) > 0 && rounds[0].Intercepted
	for i, r := range rounds {
		if r.Index != i {
			return Session{}, fmt.Errorf("round %d carries index %d", i, r.Index)
		}
		if err := qubit.CheckBasis("alice", i, r.Alice); err != nil {
			return Session{}, err
		}
		if err := qubit.CheckBasis("bob", i, r.Bob); err != nil {
			return Session{}, err
		}
		if r.Intercepted != eavesdropped {
			return Session{}, fmt.Errorf("round %d: interception must cover every round or none", i)
		}
	}
	return Session{
		id:           uuid.New(),
		rounds:       append([]Round(nil), rounds...),
		settings:     settings,
		eavesdropped: eavesdropped,
	}, nil
}

// ID identifies the session in logs.
func (s Session) ID() uuid.UUID {
	return s.id
}

// Len returns the number of rounds in s.
func (s Session) Len() int {
	return len(s.rounds)
}

// Round returns the i-th round of s.
func (s Session) Round(i int) Round {
	return s.rounds[i]
}

// Rounds returns a copy of the rounds of s.
func (s Session) Rounds() []Round {
	return append([]Round(nil), s.rounds...)
}

// Settings returns the angle tables s was measured against.
func (s Session) Settings() qubit.Settings {
	return s.settings
}

// Eavesdropped reports whether every pair of s was intercepted.
func (s Session) Eavesdropped() bool {
	return s.eavesdropped
}

// Matches reports whether the parties' bases agree in r.
func (s Session) Matches(r Round) bool {
	return s.settings.Match(r.Alice, r.Bob)
}
