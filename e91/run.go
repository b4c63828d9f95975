package e91

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"

	"github.com/alan-christopher/e91/e91/qubit"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/alan-christopher/e91/e91")

// Opts packages together the arguments to Run.
type Opts struct {
	// Source prepares and measures the entangled pairs. Must be non-nil.
	Source qubit.Source

	// Rand drives basis selection. A seeded pRNG makes runs reproducible.
	// Must be non-nil.
	Rand *rand.Rand

	// Rounds specifies the number of pairs to exchange. Defaults to
	// DefaultRounds.
	Rounds int

	// Eavesdrop places an intercept-resend attacker between source and
	// parties.
	Eavesdrop bool

	// Logger receives progress records. Defaults to discarding them.
	Logger *slog.Logger
}

// Stats packages together bookkeeping about a run.
type Stats struct {
	Rounds int
	Sifted int
	Tested int
	Binned int
	QBER   float64
}

// Result is everything a run produced.
type Result struct {
	Session    Session
	Keys       KeySet
	CHSH       CHSHStatistic
	Comparison Comparison
	Stats      Stats
}

// Run performs one full exchange: pair generation (and interception), basis
// selection, measurement, sifting, CHSH estimation and key comparison.
func Run(ctx context.Context, opts Opts) (res Result, err error) {
	if opts.Source == nil {
		return Result{}, errors.New("must provide Source")
	}
	if opts.Rand == nil {
		return Result{}, errors.New("must provide Rand")
	}
	n := opts.Rounds
	if n == 0 {
		n = DefaultRounds
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ctx, span := tracer.Start(ctx, "e91.Run", trace.WithAttributes(
		attribute.Int("e91.rounds", n),
		attribute.Bool("e91.eavesdrop", opts.Eavesdrop),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	gctx, gspan := tracer.Start(ctx, "e91.Generate")
	pending, err := Generate(gctx, opts.Source, n, opts.Eavesdrop)
	gspan.End()
	if err != nil {
		return Result{}, err
	}
	log.Debug("Prepared pairs", "rounds", n, "intercepted", pending.Intercepted())

	alice, bob := SelectBases(opts.Rand, n)

	mctx, mspan := tracer.Start(ctx, "e91.Measure")
	session, err := pending.Measure(mctx, alice, bob)
	mspan.End()
	if err != nil {
		return Result{}, err
	}
	log = log.With("session", session.ID().String())

	matched, mismatched := Partition(session)
	keys := Sift(session)
	chsh := Estimate(mismatched)
	cmp, err := Compare(keys)
	if err != nil {
		return Result{}, err
	}

	res = Result{
		Session:    session,
		Keys:       keys,
		CHSH:       chsh,
		Comparison: cmp,
		Stats: Stats{
			Rounds: n,
			Sifted: len(matched),
			Tested: len(mismatched),
			Binned: chsh.Binned(),
			QBER:   cmp.QBER(),
		},
	}
	span.SetAttributes(
		attribute.Int("e91.sifted", res.Stats.Sifted),
		attribute.Float64("e91.chsh", chsh.Value),
	)
	log.Info("Exchange complete",
		"rounds", n,
		"sifted", res.Stats.Sifted,
		"binned", res.Stats.Binned,
		"chsh", chsh.Value,
		"qber", res.Stats.QBER,
	)
	return res, nil
}
