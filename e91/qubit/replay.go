package qubit

import (
	"context"
	"fmt"
)

// Replay is a deterministic Source which serves recorded outcomes instead of
// sampling them, e.g. results captured from a hardware backend. Outcomes[i]
// answers any request for round i regardless of the requested bases.
type Replay struct {
	// Settings defaults to E91.
	Settings Settings

	// Outcomes holds the final measurement of each round.
	Outcomes []Outcome

	// Interceptions holds the eavesdropper's observations of each round.
	// Leave nil if no eavesdropper was recorded.
	Interceptions []Outcome
}

// Prepare implements the Source interface.
func (rp *Replay) Prepare(ctx context.Context, n int) (Batch, error) {
	if n < 0 {
		return nil, fmt.Errorf("preparing %d pairs", n)
	}
	if n > len(rp.Outcomes) {
		return nil, fmt.Errorf("replay holds %d rounds, %d requested", len(rp.Outcomes), n)
	}
	settings := rp.Settings
	if settings.IsZero() {
		settings = E91
	}
	return &replayBatch{rp: rp, n: n, settings: settings}, nil
}

type replayBatch struct {
	rp          *Replay
	n           int
	settings    Settings
	intercepted bool
}

func (b *replayBatch) Settings() Settings {
	return b.settings
}

func (b *replayBatch) Intercept(ctx context.Context) ([]Outcome, error) {
	if len(b.rp.Interceptions) < b.n {
		return nil, fmt.Errorf("replay holds %d interceptions, %d needed", len(b.rp.Interceptions), b.n)
	}
	b.intercepted = true
	out := make([]Outcome, b.n)
	for i := range out {
		out[i] = b.rp.Interceptions[i]
		out[i].Round = i
	}
	return out, nil
}

func (b *replayBatch) Measure(ctx context.Context, reqs []Request) ([]Outcome, error) {
	out := make([]Outcome, 0, len(reqs))
	for _, req := range reqs {
		if err := checkRequest(req, b.n, b.intercepted); err != nil {
			return nil, err
		}
		o := b.rp.Outcomes[req.Round]
		o.Round = req.Round
		out = append(out, o)
	}
	return out, nil
}
