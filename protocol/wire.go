package protocol

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/gogpu/gpuactor/id"
)

// Wire codec errors.
var (
	// ErrMalformed is returned when a payload cannot be decoded.
	ErrMalformed = errors.New("protocol: malformed message")

	// ErrUnknownOp is returned when a payload names an operation outside
	// the closed request set.
	ErrUnknownOp = errors.New("protocol: unknown operation")
)

// encoder appends protobuf-compatible fields. Scalar zero values are
// omitted, matching proto3 semantics.
type encoder struct {
	b []byte
}

func (e *encoder) uint(f protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, f, protowire.VarintType)
	e.b = protowire.AppendVarint(e.b, v)
}

func (e *encoder) sint(f protowire.Number, v int64) {
	e.uint(f, protowire.EncodeZigZag(v))
}

func (e *encoder) bool(f protowire.Number, v bool) {
	if v {
		e.uint(f, 1)
	}
}

func (e *encoder) str(f protowire.Number, s string) {
	if s == "" {
		return
	}
	e.b = protowire.AppendTag(e.b, f, protowire.BytesType)
	e.b = protowire.AppendString(e.b, s)
}

func (e *encoder) bytes(f protowire.Number, p []byte) {
	if len(p) == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, f, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, p)
}

func (e *encoder) id(f protowire.Number, i id.ID) {
	e.uint(f, i.Pack())
}

func (e *encoder) float(f protowire.Number, v float64) {
	if v == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, f, protowire.Fixed64Type)
	e.b = protowire.AppendFixed64(e.b, math.Float64bits(v))
}

// msg emits a nested message. It is always emitted so that repeated
// messages keep their position even when empty.
func (e *encoder) msg(f protowire.Number, fn func(*encoder)) {
	var sub encoder
	fn(&sub)
	e.b = protowire.AppendTag(e.b, f, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, sub.b)
}

// ids emits a repeated identifier field, keeping zero entries.
func (e *encoder) ids(f protowire.Number, ids []id.ID) {
	for _, i := range ids {
		e.b = protowire.AppendTag(e.b, f, protowire.VarintType)
		e.b = protowire.AppendVarint(e.b, i.Pack())
	}
}

// u32s emits a packed repeated uint32 field.
func (e *encoder) u32s(f protowire.Number, vs []uint32) {
	if len(vs) == 0 {
		return
	}
	var p []byte
	for _, v := range vs {
		p = protowire.AppendVarint(p, uint64(v))
	}
	e.b = protowire.AppendTag(e.b, f, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, p)
}

// field is one decoded wire field.
type field struct {
	num protowire.Number
	typ protowire.Type
	v   uint64
	b   []byte
}

func (f field) u32() uint32    { return uint32(f.v) }
func (f field) bool() bool     { return f.v != 0 }
func (f field) str() string    { return string(f.b) }
func (f field) id() id.ID      { return id.Unpack(f.v) }
func (f field) float() float64 { return math.Float64frombits(f.v) }
func (f field) sint() int64    { return protowire.DecodeZigZag(f.v) }

func (f field) bytes() []byte {
	if len(f.b) == 0 {
		return nil
	}
	return append([]byte(nil), f.b...)
}

func (f field) u32s() ([]uint32, error) {
	var out []uint32
	b := f.b
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, malformed(protowire.ParseError(n))
		}
		out = append(out, uint32(v))
		b = b[n:]
	}
	return out, nil
}

// walk calls fn for every field of b in order. Unknown fields are passed
// to fn as well; callers ignore numbers they do not know.
func walk(b []byte, fn func(field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return malformed(protowire.ParseError(n))
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.v, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			f.v, n = protowire.ConsumeFixed64(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.v = uint64(v)
		case protowire.BytesType:
			f.b, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return malformed(protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func malformed(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformed, err)
}
