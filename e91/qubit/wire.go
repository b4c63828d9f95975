package qubit

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// kind identifies the purpose of an envelope on the oracle wire.
type kind uint64

const (
	kindPrepare kind = iota + 1
	kindSettings
	kindIntercept
	kindMeasure
	kindOutcomes
	kindError
)

// Field numbers of an envelope. The layout is protobuf wire compatible with
//
//	message Envelope {
//	  uint64 kind = 1;
//	  uint64 count = 2;
//	  repeated Request requests = 3;
//	  repeated Outcome outcomes = 4;
//	  repeated sint64 alice_angles = 5 [packed = true];
//	  repeated sint64 bob_angles = 6 [packed = true];
//	  string error = 7;
//	}
//	message Request { uint64 round = 1; uint64 alice = 2; uint64 bob = 3; bool collapsed = 4; }
//	message Outcome { uint64 round = 1; uint64 alice = 2; uint64 bob = 3; }
const (
	fieldKind        protowire.Number = 1
	fieldCount       protowire.Number = 2
	fieldRequests    protowire.Number = 3
	fieldOutcomes    protowire.Number = 4
	fieldAliceAngles protowire.Number = 5
	fieldBobAngles   protowire.Number = 6
	fieldError       protowire.Number = 7
)

type envelope struct {
	kind     kind
	count    int
	requests []Request
	outcomes []Outcome
	settings Settings
	err      string
}

func (e *envelope) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.kind))
	if e.count != 0 {
		b = protowire.AppendTag(b, fieldCount, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(e.count))
	}
	for _, r := range e.requests {
		b = protowire.AppendTag(b, fieldRequests, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalRequest(r))
	}
	for _, o := range e.outcomes {
		b = protowire.AppendTag(b, fieldOutcomes, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalOutcome(o))
	}
	if e.kind == kindSettings {
		b = appendAngles(b, fieldAliceAngles, e.settings.Alice)
		b = appendAngles(b, fieldBobAngles, e.settings.Bob)
	}
	if e.err != "" {
		b = protowire.AppendTag(b, fieldError, protowire.BytesType)
		b = protowire.AppendString(b, e.err)
	}
	return b
}

func appendAngles(b []byte, num protowire.Number, angles [NumBases]Angle) []byte {
	var packed []byte
	for _, a := range angles {
		packed = protowire.AppendVarint(packed, protowire.EncodeZigZag(int64(a)))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}

func marshalRequest(r Request) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Round))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Alice))
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Bob))
	b = protowire.AppendTag(b, 4, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(r.Collapsed))
	return b
}

func marshalOutcome(o Outcome) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(o.Round))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(o.Alice))
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(o.Bob))
	return b
}

func (e *envelope) unmarshal(b []byte) error {
	*e = envelope{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrProtocol, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("%w: kind: %v", ErrProtocol, protowire.ParseError(n))
			}
			e.kind = kind(v)
			b = b[n:]
		case num == fieldCount && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("%w: count: %v", ErrProtocol, protowire.ParseError(n))
			}
			e.count = int(v)
			b = b[n:]
		case num == fieldRequests && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("%w: request: %v", ErrProtocol, protowire.ParseError(n))
			}
			vals, err := consumeVarints(v, 4)
			if err != nil {
				return err
			}
			e.requests = append(e.requests, Request{
				Round:     int(vals[0]),
				Alice:     Basis(vals[1]),
				Bob:       Basis(vals[2]),
				Collapsed: protowire.DecodeBool(vals[3]),
			})
			b = b[n:]
		case num == fieldOutcomes && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("%w: outcome: %v", ErrProtocol, protowire.ParseError(n))
			}
			vals, err := consumeVarints(v, 3)
			if err != nil {
				return err
			}
			e.outcomes = append(e.outcomes, Outcome{
				Round: int(vals[0]),
				Alice: Bit(vals[1] & 1),
				Bob:   Bit(vals[2] & 1),
			})
			b = b[n:]
		case (num == fieldAliceAngles || num == fieldBobAngles) && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("%w: angles: %v", ErrProtocol, protowire.ParseError(n))
			}
			dst := &e.settings.Alice
			if num == fieldBobAngles {
				dst = &e.settings.Bob
			}
			for i := 0; len(v) > 0; i++ {
				a, m := protowire.ConsumeVarint(v)
				if m < 0 || i >= NumBases {
					return fmt.Errorf("%w: malformed angle table", ErrProtocol)
				}
				dst[i] = Angle(protowire.DecodeZigZag(a))
				v = v[m:]
			}
			b = b[n:]
		case num == fieldError && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return fmt.Errorf("%w: error: %v", ErrProtocol, protowire.ParseError(n))
			}
			e.err = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrProtocol, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

// consumeVarints decodes a nested message whose fields 1..k are all varints.
// Missing fields read as zero and unknown fields are skipped.
func consumeVarints(b []byte, k int) ([]uint64, error) {
	vals := make([]uint64, k)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrProtocol, protowire.ParseError(n))
		}
		b = b[n:]
		if typ != protowire.VarintType || num < 1 || int(num) > k {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrProtocol, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrProtocol, protowire.ParseError(n))
		}
		vals[num-1] = v
		b = b[n:]
	}
	return vals, nil
}
