package store

import (
	"fmt"

	"github.com/roach88/splitledger/internal/engine"
	"github.com/roach88/splitledger/internal/kvp"
)

// marshalSnapshot converts a transaction snapshot to canonical JSON TEXT
// for storage.
func marshalSnapshot(snap engine.TransactionSnapshot) (string, error) {
	data, err := kvp.MarshalCanonical(snap.Document())
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return string(data), nil
}

// unmarshalPayload parses a stored payload back into a frame. Amounts
// come back as exact decimals, never floats.
func unmarshalPayload(data string) (kvp.Frame, error) {
	if data == "" || data == "{}" {
		return kvp.Frame{}, nil
	}
	f, err := kvp.UnmarshalFrame([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return f, nil
}
