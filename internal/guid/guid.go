// Package guid provides the 128-bit identifiers that key splits and
// transactions within a book.
//
// A GUID is a value type. The zero value is Null and never identifies an
// entity. Ordering is bytewise, which is what the ledger's stable
// tie-breaks rely on.
package guid

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
)

// GUID is a 16-byte entity identifier.
type GUID [16]byte

// Null is the unset identifier.
var Null GUID

// New returns a fresh random-ordered GUID (UUIDv7).
//
// Panics if UUID generation fails (should never happen in practice).
func New() GUID {
	return GUID(uuid.Must(uuid.NewV7()))
}

// Parse decodes the canonical hyphenated form or 32 hex digits.
func Parse(s string) (GUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Null, fmt.Errorf("parse guid %q: %w", s, err)
	}
	return GUID(u), nil
}

// MustParse is Parse that panics on error. Intended for tests and fixtures.
func MustParse(s string) GUID {
	g, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return g
}

// IsNull reports whether g is the unset identifier.
func (g GUID) IsNull() bool {
	return g == Null
}

// String returns the hyphenated lowercase form.
func (g GUID) String() string {
	return uuid.UUID(g).String()
}

// Compare orders two GUIDs bytewise, returning -1, 0 or +1.
func Compare(a, b GUID) int {
	return bytes.Compare(a[:], b[:])
}

// MarshalText implements encoding.TextMarshaler.
func (g GUID) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *GUID) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
