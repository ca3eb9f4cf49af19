package kvp

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainFrame is the hash domain for metadata frames.
const DomainFrame = "splitledger/kvp/v1"

// Compare orders two frames by their canonical encodings.
// nil and empty frames compare equal.
//
// Panics if a frame holds a value that cannot be encoded, which can only
// happen if a caller smuggles a nil Value into a slot.
func Compare(a, b Frame) int {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	return bytes.Compare(mustCanonical(a), mustCanonical(b))
}

// Equal reports whether two frames hold the same slots and values.
func Equal(a, b Frame) bool {
	return Compare(a, b) == 0
}

// Hash returns the domain-separated SHA-256 of the frame's canonical form.
func Hash(f Frame) (string, error) {
	if f == nil {
		f = Frame{}
	}
	data, err := MarshalCanonical(f)
	if err != nil {
		return "", fmt.Errorf("hash frame: %w", err)
	}
	return hashWithDomain(DomainFrame, data), nil
}

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func mustCanonical(f Frame) []byte {
	if f == nil {
		f = Frame{}
	}
	data, err := MarshalCanonical(f)
	if err != nil {
		panic(fmt.Sprintf("kvp: frame not encodable: %v", err))
	}
	return data
}
