package qubit

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// MaxFrameBytes bounds the size of a single envelope on the oracle wire.
const MaxFrameBytes = 64 << 20

// MaxBatch bounds the pairs in a batch served over the wire, so that a full
// set of outcomes fits in one frame.
const MaxBatch = MaxFrameBytes / 16

// A framer reads and writes framed envelopes to the wire. The structure of the
// frame is trivial:  envelope-length | envelope
type framer struct {
	rw io.ReadWriter
}

func (f *framer) Write(e *envelope) error {
	marshalled := e.marshal()
	if len(marshalled) > MaxFrameBytes {
		return fmt.Errorf("%w: frame of %d bytes", ErrProtocol, len(marshalled))
	}
	if err := binary.Write(f.rw, binary.LittleEndian, int32(len(marshalled))); err != nil {
		return err
	}
	if _, err := f.rw.Write(marshalled); err != nil {
		return err
	}
	return nil
}

func (f *framer) Read(e *envelope) error {
	var mLen int32
	if err := binary.Read(f.rw, binary.LittleEndian, &mLen); err != nil {
		return err
	}
	if mLen < 0 || mLen > MaxFrameBytes {
		return fmt.Errorf("%w: frame of %d bytes", ErrProtocol, mLen)
	}
	marshalled := make([]byte, mLen)
	if _, err := io.ReadFull(f.rw, marshalled); err != nil {
		return err
	}
	return e.unmarshal(marshalled)
}

// Remote is a Source backed by an oracle on the far side of a stream, e.g. a
// hardware backend driver running Serve. Only one batch is live at a time:
// preparing a new batch discards the previous one on both ends.
type Remote struct {
	mu sync.Mutex
	f  *framer
}

// Dial returns a Remote speaking the oracle protocol over rw.
func Dial(rw io.ReadWriter) *Remote {
	return &Remote{f: &framer{rw: rw}}
}

// Prepare implements the Source interface.
func (r *Remote) Prepare(ctx context.Context, n int) (Batch, error) {
	if n > MaxBatch {
		return nil, fmt.Errorf("%w: batch of %d pairs exceeds %d", ErrProtocol, n, MaxBatch)
	}
	resp, err := r.call(ctx, &envelope{kind: kindPrepare, count: n}, kindSettings)
	if err != nil {
		return nil, fmt.Errorf("preparing %d pairs: %w", n, err)
	}
	return &remoteBatch{r: r, n: n, settings: resp.settings}, nil
}

// call writes req and waits for a response of the wanted kind.
func (r *Remote) call(ctx context.Context, req *envelope, want kind) (*envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.f.Write(req); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	resp := new(envelope)
	if err := r.f.Read(resp); err != nil {
		return nil, fmt.Errorf("receiving response: %w", err)
	}
	switch resp.kind {
	case want:
		return resp, nil
	case kindError:
		return nil, remoteError(resp.err)
	default:
		return nil, fmt.Errorf("%w: got envelope kind %d, want %d", ErrProtocol, resp.kind, want)
	}
}

type remoteBatch struct {
	r        *Remote
	n        int
	settings Settings
}

func (b *remoteBatch) Settings() Settings {
	return b.settings
}

func (b *remoteBatch) Intercept(ctx context.Context) ([]Outcome, error) {
	resp, err := b.r.call(ctx, &envelope{kind: kindIntercept}, kindOutcomes)
	if err != nil {
		return nil, fmt.Errorf("intercepting: %w", err)
	}
	if len(resp.outcomes) != b.n {
		return nil, fmt.Errorf("%w: %d interceptions for %d pairs", ErrProtocol, len(resp.outcomes), b.n)
	}
	return resp.outcomes, nil
}

func (b *remoteBatch) Measure(ctx context.Context, reqs []Request) ([]Outcome, error) {
	resp, err := b.r.call(ctx, &envelope{kind: kindMeasure, requests: reqs}, kindOutcomes)
	if err != nil {
		return nil, fmt.Errorf("measuring: %w", err)
	}
	if len(resp.outcomes) != len(reqs) {
		return nil, fmt.Errorf("%w: %d outcomes for %d requests", ErrProtocol, len(resp.outcomes), len(reqs))
	}
	return resp.outcomes, nil
}

var knownErrors = []error{
	ErrBasisOutOfRange,
	ErrCollapseMismatch,
	ErrUnknownRound,
	ErrNotPrepared,
	ErrProtocol,
}

// remoteError maps an error message received over the wire back onto the
// sentinel it was built from, if any.
func remoteError(msg string) error {
	for _, known := range knownErrors {
		if strings.HasPrefix(msg, known.Error()) {
			return fmt.Errorf("%w (remote: %s)", known, msg)
		}
	}
	return fmt.Errorf("%w: %s", ErrRemote, msg)
}

// Serve answers oracle requests arriving on rw using src, until rw reaches
// EOF or ctx is done. Failures of src are reported to the peer and do not
// end the session; transport and framing failures do.
func Serve(ctx context.Context, rw io.ReadWriter, src Source) error {
	f := &framer{rw: rw}
	var batch Batch
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		req := new(envelope)
		if err := f.Read(req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		resp, err := handle(ctx, src, &batch, req)
		if err != nil {
			resp = &envelope{kind: kindError, err: err.Error()}
		}
		if err := f.Write(resp); err != nil {
			return err
		}
	}
}

func handle(ctx context.Context, src Source, batch *Batch, req *envelope) (*envelope, error) {
	switch req.kind {
	case kindPrepare:
		*batch = nil
		if req.count <= 0 || req.count > MaxBatch {
			return nil, fmt.Errorf("%w: batch of %d pairs", ErrProtocol, req.count)
		}
		b, err := src.Prepare(ctx, req.count)
		if err != nil {
			return nil, err
		}
		*batch = b
		return &envelope{kind: kindSettings, settings: b.Settings()}, nil
	case kindIntercept:
		if *batch == nil {
			return nil, ErrNotPrepared
		}
		out, err := (*batch).Intercept(ctx)
		if err != nil {
			return nil, err
		}
		return &envelope{kind: kindOutcomes, outcomes: out}, nil
	case kindMeasure:
		if *batch == nil {
			return nil, ErrNotPrepared
		}
		out, err := (*batch).Measure(ctx, req.requests)
		if err != nil {
			return nil, err
		}
		return &envelope{kind: kindOutcomes, outcomes: out}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected envelope kind %d", ErrProtocol, req.kind)
	}
}
