package kvp

import (
	"slices"
	"unicode/utf16"

	"github.com/shopspring/decimal"
)

// Value is a sealed interface over the frame value types.
type Value interface {
	kvpValue()
}

// String is a text value.
type String string

func (String) kvpValue() {}

// Int is an integer value. Always int64.
type Int int64

func (Int) kvpValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) kvpValue() {}

// Numeric is an exact decimal value, used for amounts and prices.
type Numeric struct {
	decimal.Decimal
}

func (Numeric) kvpValue() {}

// NewNumeric wraps a decimal.
func NewNumeric(d decimal.Decimal) Numeric {
	return Numeric{Decimal: d}
}

// List is an ordered sequence of values.
type List []Value

func (List) kvpValue() {}

// Frame maps slot names to values. A nil Frame is an empty frame.
// Use SortedKeys() for deterministic iteration.
type Frame map[string]Value

func (Frame) kvpValue() {}

// Pair is a key-value pair for typed Frame construction.
type Pair struct {
	Key   string
	Value Value
}

// P is shorthand for Pair.
func P(key string, value Value) Pair {
	return Pair{Key: key, Value: value}
}

// NewFrame builds a Frame from pairs. Later pairs overwrite earlier ones.
func NewFrame(pairs ...Pair) Frame {
	f := make(Frame, len(pairs))
	for _, p := range pairs {
		f[p.Key] = p.Value
	}
	return f
}

// Get returns the value stored under key.
func (f Frame) Get(key string) (Value, bool) {
	v, ok := f[key]
	return v, ok
}

// Len returns the number of slots.
func (f Frame) Len() int {
	return len(f)
}

// Clone returns a deep copy of f. Cloning a nil frame yields nil.
func (f Frame) Clone() Frame {
	if f == nil {
		return nil
	}
	out := make(Frame, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v Value) Value {
	switch val := v.(type) {
	case List:
		out := make(List, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	case Frame:
		return val.Clone()
	default:
		// String, Int, Bool and Numeric are immutable values.
		return val
	}
}

// SortedKeys returns keys in canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 byte order, which differs for
// supplementary-plane characters.
func (f Frame) SortedKeys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysUTF16)
	return keys
}

func compareKeysUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
