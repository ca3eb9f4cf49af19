package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/splitledger/internal/account"
	"github.com/roach88/splitledger/internal/commodity"
	"github.com/roach88/splitledger/internal/engine"
	"github.com/roach88/splitledger/internal/guid"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// createTestBook returns a deterministic book journaling to and backed by s.
func createTestBook(s *Store) *engine.Book {
	return engine.NewBook(
		engine.WithLogger(discardLogger()),
		engine.WithGUIDGenerator(guid.NewSequenceGenerator(1)),
		engine.WithWallClock(func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }),
		engine.WithJournal(s),
		engine.WithBackend(s),
	)
}

// commitTransfer commits amount from Checking to Groceries.
func commitTransfer(t *testing.T, b *engine.Book, g *account.Group, amount string) (*engine.Transaction, *engine.Split) {
	t.Helper()
	ctx := context.Background()

	from, ok := g.Lookup("Checking")
	if !ok {
		var err error
		if from, err = g.NewAccount("Checking", commodity.MustISO("USD"), nil); err != nil {
			t.Fatalf("NewAccount: %v", err)
		}
	}
	to, ok := g.Lookup("Groceries")
	if !ok {
		var err error
		if to, err = g.NewAccount("Groceries", commodity.MustISO("USD"), nil); err != nil {
			t.Fatalf("NewAccount: %v", err)
		}
	}

	tx := b.NewTransaction()
	mustNoErr(t, tx.BeginEdit(ctx, false))
	src, dst := b.NewSplit(), b.NewSplit()
	mustNoErr(t, src.SetAccount(from))
	mustNoErr(t, dst.SetAccount(to))
	mustNoErr(t, tx.AppendSplit(src))
	mustNoErr(t, tx.AppendSplit(dst))
	mustNoErr(t, src.SetValue(decimal.RequireFromString(amount)))
	mustNoErr(t, tx.CommitEdit(ctx))
	return tx, src
}

func mustNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// journalKinds concatenates the kinds of every stored journal row.
func journalKinds(t *testing.T, s *Store) string {
	t.Helper()
	recs, err := s.ReadJournal(context.Background(), JournalFilter{})
	if err != nil {
		t.Fatalf("ReadJournal() failed: %v", err)
	}
	out := make([]byte, len(recs))
	for i, r := range recs {
		out[i] = byte(r.Kind)
	}
	return string(out)
}

// verifyPragma checks a connection setting against its expected value.
func (s *Store) verifyPragma(name, want string) error {
	var got string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if got != want {
		return fmt.Errorf("pragma %s is %q, want %q", name, got, want)
	}
	return nil
}
