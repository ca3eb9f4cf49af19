package testutil

import (
	"io"
	"log/slog"

	"github.com/roach88/splitledger/internal/engine"
	"github.com/roach88/splitledger/internal/guid"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewBook creates a book whose observable output is reproducible:
// GUIDs count up from ...001, the wall clock is frozen at Epoch, logging
// is discarded and the journal is kept in memory.
//
// The same sequence of operations against two such books produces
// byte-identical snapshots and journals. opts are applied last and may
// override any of the defaults.
func NewBook(opts ...engine.BookOption) (*engine.Book, *engine.MemoryJournal) {
	journal := engine.NewMemoryJournal()
	base := []engine.BookOption{
		engine.WithGUIDGenerator(guid.NewSequenceGenerator(1)),
		engine.WithWallClock(NewFrozenClock(Epoch).Now),
		engine.WithLogger(DiscardLogger()),
		engine.WithJournal(journal),
	}
	return engine.NewBook(append(base, opts...)...), journal
}
