// Package valuesource produces bin values for write operations: a tagged
// variant over int/string/byte-slice payloads, generated either once at
// startup (fixed_value) or fresh on every call from the caller's own RNG.
package valuesource

import "github.com/kvbench/kvbench/internal/rng"

// Kind discriminates the payload carried by a Value.
type Kind int

const (
	KindInt Kind = iota
	KindStr
	KindBytes
)

// Value is a tagged variant; Kind reports which accessor carries the payload.
type Value struct {
	kind  Kind
	i     int64
	s     string
	bytes []byte
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) Int() int64 { return v.i }
func (v Value) Str() string { return v.s }
func (v Value) Bytes() []byte { return v.bytes }

// Source produces bin values according to configuration.
type Source struct {
	kind       Kind
	size       int
	fixed      bool
	fixedValue Value
}

// New builds a Source. kind selects the payload type, size is the string/
// byte length (ignored for KindInt), and fixed pins a single value generated
// once from seedRNG at construction time.
func New(kind Kind, size int, fixed bool, seedRNG *rng.FastRNG) *Source {
	s := &Source{kind: kind, size: size, fixed: fixed}
	if fixed {
		s.fixedValue = generate(kind, size, seedRNG)
	}
	return s
}

// Next returns the next bin value, using r for any random draws required.
func (s *Source) Next(r *rng.FastRNG) Value {
	if s.fixed {
		return s.fixedValue
	}
	return generate(s.kind, s.size, r)
}

func generate(kind Kind, size int, r *rng.FastRNG) Value {
	switch kind {
	case KindInt:
		return Value{kind: KindInt, i: r.Next()}
	case KindStr:
		buf := make([]byte, size)
		for i := range buf {
			buf[i] = r.PrintableASCII()
		}
		return Value{kind: KindStr, s: string(buf)}
	case KindBytes:
		buf := make([]byte, size)
		r.NextBytes(buf)
		return Value{kind: KindBytes, bytes: buf}
	default:
		panic("valuesource: unknown kind")
	}
}
