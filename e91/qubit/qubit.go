// Package qubit models the entangled qubit pairs shared by the two legitimate
// parties of an E91 key exchange, and the oracle that resolves their
// measurements.
package qubit

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrBasisOutOfRange is returned when a basis index falls outside a
	// party's set of NumBases settings.
	ErrBasisOutOfRange = errors.New("qubit: basis out of range")

	// ErrCollapseMismatch is returned when a measurement request disagrees
	// with the batch about whether its pair was intercepted.
	ErrCollapseMismatch = errors.New("qubit: collapse mode does not match batch state")

	// ErrUnknownRound is returned for requests naming a round the batch does
	// not hold.
	ErrUnknownRound = errors.New("qubit: unknown round")

	// ErrNotPrepared is returned when a remote oracle is asked to act on a
	// batch before one has been prepared.
	ErrNotPrepared = errors.New("qubit: no prepared batch")

	// ErrProtocol is returned for malformed frames on the oracle wire.
	ErrProtocol = errors.New("qubit: protocol violation")

	// ErrRemote wraps oracle failures reported by the far end of a stream
	// which do not map onto a known sentinel.
	ErrRemote = errors.New("qubit: remote oracle failure")
)

// A Bit is a single measurement outcome.
type Bit uint8

const (
	Zero Bit = 0
	One  Bit = 1
)

// Flip returns the complement of b.
func (b Bit) Flip() Bit {
	return 1 - b
}

// NumBases is the number of measurement settings available to each party.
const NumBases = 3

// A Basis is a party-local index into that party's measurement settings.
type Basis uint8

// Valid reports whether b names one of the NumBases settings.
func (b Basis) Valid() bool {
	return b < NumBases
}

// CheckBasis returns ErrBasisOutOfRange, annotated with the party and round,
// if b is not a valid basis.
func CheckBasis(party string, round int, b Basis) error {
	if !b.Valid() {
		return fmt.Errorf("%w: %s basis %d in round %d", ErrBasisOutOfRange, party, b, round)
	}
	return nil
}

// An Angle is a measurement direction in the equatorial plane of the Bloch
// sphere, in units of π/4. Keeping angles integral makes basis comparison
// exact.
type Angle int

// Radians returns a in radians.
func (a Angle) Radians() float64 {
	return float64(a) * math.Pi / 4
}

// Direction returns the unit Bloch vector for a measurement along a.
func (a Angle) Direction() Vector {
	r := a.Radians()
	return Vector{math.Cos(r), math.Sin(r), 0}
}

// A Vector is a point in (or on) the Bloch sphere.
type Vector [3]float64

// Z is the computational basis axis.
var Z = Vector{0, 0, 1}

// Dot returns the inner product of v and w.
func (v Vector) Dot(w Vector) float64 {
	return v[0]*w[0] + v[1]*w[1] + v[2]*w[2]
}

// Neg returns -v.
func (v Vector) Neg() Vector {
	return Vector{-v[0], -v[1], -v[2]}
}

// Settings holds the measurement angle tables of both parties. Two chosen
// bases match iff they name the same angle.
type Settings struct {
	Alice [NumBases]Angle
	Bob   [NumBases]Angle
}

var (
	// E91 is the canonical setting: Alice measures at {0, π/4, π/2} and Bob at
	// {π/4, π/2, 3π/4}. Bases match for (1,0) and (2,1); the CHSH pairs
	// drawn from indices {0,2} never match.
	E91 = Settings{
		Alice: [NumBases]Angle{0, 1, 2},
		Bob:   [NumBases]Angle{1, 2, 3},
	}

	// Aligned gives both parties the same table, so bases match iff their
	// indices do.
	Aligned = Settings{
		Alice: [NumBases]Angle{0, 1, 2},
		Bob:   [NumBases]Angle{0, 1, 2},
	}
)

// Match reports whether Alice's basis a and Bob's basis b name the same
// measurement. Both must be valid.
func (s Settings) Match(a, b Basis) bool {
	return s.Alice[a] == s.Bob[b]
}

// Angles returns the angles selected by a and b.
func (s Settings) Angles(a, b Basis) (Angle, Angle) {
	return s.Alice[a], s.Bob[b]
}

// IsZero reports whether s is the zero Settings.
func (s Settings) IsZero() bool {
	return s == Settings{}
}
