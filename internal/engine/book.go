package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/splitledger/internal/guid"
	"github.com/roach88/splitledger/internal/registry"
)

// DoubleEntryPolicy controls how strictly the book enforces double entry.
type DoubleEntryPolicy int

const (
	// DoubleEntryUnchecked allows loose splits with no account.
	DoubleEntryUnchecked DoubleEntryPolicy = 0

	// DoubleEntryMirror requires accounts and balances a lone split by
	// creating a mirror split in the same account.
	DoubleEntryMirror DoubleEntryPolicy = 1

	// DoubleEntryStrict requires accounts. Lone splits are not mirrored
	// at commit.
	DoubleEntryStrict DoubleEntryPolicy = 2
)

// Book is the context every ledger operation runs against: policy,
// identity registry, and the optional backend, journal and observer.
//
// Books are independent. Tests can run books with different policies in
// parallel.
type Book struct {
	force    DoubleEntryPolicy
	registry *registry.Registry
	backend  Backend
	journal  Journal
	observer Observer
	logger   *slog.Logger
	now      WallClock
	guids    guid.Generator
	seq      *Clock

	panicOnViolation bool
}

// BookOption configures a Book.
type BookOption func(*Book)

// WithForceDoubleEntry sets the double-entry policy. Out-of-range values
// are clamped to DoubleEntryUnchecked; use SetForceDoubleEntry to get an
// error instead.
func WithForceDoubleEntry(p DoubleEntryPolicy) BookOption {
	return func(b *Book) {
		if p < DoubleEntryUnchecked || p > DoubleEntryStrict {
			p = DoubleEntryUnchecked
		}
		b.force = p
	}
}

// WithBackend registers the persistence backend.
func WithBackend(be Backend) BookOption {
	return func(b *Book) {
		b.backend = be
	}
}

// WithJournal sets the edit journal. Default: an in-memory journal.
func WithJournal(j Journal) BookOption {
	return func(b *Book) {
		b.journal = j
	}
}

// WithObserver sets the operation observer (metrics).
func WithObserver(o Observer) BookOption {
	return func(b *Book) {
		b.observer = o
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) BookOption {
	return func(b *Book) {
		b.logger = l
	}
}

// WithWallClock sets the time source for defaulted dates.
func WithWallClock(now WallClock) BookOption {
	return func(b *Book) {
		b.now = now
	}
}

// WithGUIDGenerator sets the identifier source for new entities.
func WithGUIDGenerator(g guid.Generator) BookOption {
	return func(b *Book) {
		b.guids = g
	}
}

// WithJournalClock sets the logical clock stamping journal entries.
// Used to resume after the last persisted sequence number.
func WithJournalClock(c *Clock) BookOption {
	return func(b *Book) {
		b.seq = c
	}
}

// WithPanicOnViolation makes protocol violations panic after logging
// instead of returning an error.
func WithPanicOnViolation() BookOption {
	return func(b *Book) {
		b.panicOnViolation = true
	}
}

// NewBook creates a book with an empty registry.
func NewBook(opts ...BookOption) *Book {
	b := &Book{
		registry: registry.New(),
		journal:  NewMemoryJournal(),
		observer: noopObserver{},
		logger:   slog.Default(),
		now:      time.Now,
		guids:    guid.UUIDv7Generator{},
		seq:      NewClock(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ForceDoubleEntry returns the book's double-entry policy as an int.
func (b *Book) ForceDoubleEntry() int {
	return int(b.force)
}

// SetForceDoubleEntry changes the policy. Valid values are 0, 1 and 2.
func (b *Book) SetForceDoubleEntry(force int) error {
	p := DoubleEntryPolicy(force)
	if p < DoubleEntryUnchecked || p > DoubleEntryStrict {
		return &LedgerError{
			Code:    ErrCodeInvalidPolicy,
			Message: fmt.Sprintf("force_double_entry must be 0, 1 or 2, got %d", force),
		}
	}
	b.force = p
	return nil
}

// strict reports whether every split must have an account.
func (b *Book) strict() bool {
	return b.force != DoubleEntryUnchecked
}

// Registry returns the book's entity registry.
func (b *Book) Registry() *registry.Registry {
	return b.registry
}

// Logger returns the book's logger.
func (b *Book) Logger() *slog.Logger {
	return b.logger
}

// Journal returns the book's edit journal.
func (b *Book) Journal() Journal {
	return b.journal
}

// NewTransaction creates an empty, closed transaction and registers it.
func (b *Book) NewTransaction() *Transaction {
	t := &Transaction{
		book: b,
		guid: b.guids.Generate(),
	}
	b.store(t, t.guid, registry.TagTransaction)
	return t
}

// NewSplit creates an empty split with no account or parent and
// registers it. It must be appended to a transaction before use.
func (b *Book) NewSplit() *Split {
	s := &Split{
		book:      b,
		guid:      b.guids.Generate(),
		reconcile: NotReconciled,
	}
	b.store(s, s.guid, registry.TagSplit)
	return s
}

// LookupTransaction resolves a transaction GUID.
func (b *Book) LookupTransaction(id guid.GUID) *Transaction {
	e, ok := b.registry.LookupTag(id, registry.TagTransaction)
	if !ok {
		return nil
	}
	return e.(*Transaction)
}

// LookupSplit resolves a split GUID.
func (b *Book) LookupSplit(id guid.GUID) *Split {
	e, ok := b.registry.LookupTag(id, registry.TagSplit)
	if !ok {
		return nil
	}
	return e.(*Split)
}

func (b *Book) store(entity any, id guid.GUID, tag registry.Tag) {
	if err := b.registry.Store(entity, id, tag); err != nil {
		// Only the null GUID or a nil entity fail, both engine bugs.
		panic(err)
	}
}

// checkGUIDFree fails when id is registered to an entity other than self.
func (b *Book) checkGUIDFree(id guid.GUID, self any) *LedgerError {
	e, ok := b.registry.Lookup(id)
	if !ok || e == self {
		return nil
	}
	tag, _ := b.registry.TagOf(id)
	return &LedgerError{
		Code:    ErrCodeDuplicateGUID,
		Message: fmt.Sprintf("guid %s already registered to a %s", id, tag),
	}
}

// violation reports a protocol violation: logged at error level, then
// returned (or panicked, under WithPanicOnViolation).
func (b *Book) violation(err *LedgerError) error {
	b.logger.Error("protocol violation",
		"code", err.Code,
		"message", err.Message,
		"transaction", err.Transaction.String(),
	)
	if b.panicOnViolation {
		panic(err)
	}
	return err
}

// writeJournal appends an entry. Journal failures are logged, not
// returned: the journal is an audit trail and never gates an edit.
func (b *Book) writeJournal(ctx context.Context, t *Transaction, kind JournalKind) {
	entry := JournalEntry{
		Seq:         b.seq.Next(),
		Kind:        kind,
		Transaction: t.guid,
		Snapshot:    t.Snapshot(),
	}
	if err := b.journal.Append(ctx, entry); err != nil {
		b.logger.Error("journal append failed",
			"kind", kind.String(),
			"transaction", t.guid.String(),
			"seq", entry.Seq,
			"error", err,
		)
	}
}

func (b *Book) observe(ctx context.Context, op string, start time.Time, err error) {
	b.observer.Observe(ctx, op, err == nil, time.Since(start))
}
