package engine

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/splitledger/internal/commodity"
	"github.com/roach88/splitledger/internal/guid"
)

// Account is the collaborator that owns a date-ordered list of splits and
// their cached running balances. The engine never computes balances; it
// only tells the account when they are stale.
type Account interface {
	Name() string

	// Currency is the commodity split values are expressed in.
	Currency() *commodity.Commodity

	// Security is the commodity split quantities are expressed in. nil
	// means the account holds its currency.
	Security() *commodity.Commodity

	InsertSplit(s *Split)
	RemoveSplit(s *Split)
	FixSplitDateOrder(s *Split)
	RecomputeBalance()

	// MarkDirty flags the balance and sort caches stale and propagates
	// "not saved" to the account's container.
	MarkDirty()
}

// EditLeveler is implemented by accounts that can be under their own
// edit session. Splits of an account with a positive edit level are not
// rebalanced.
type EditLeveler interface {
	EditLevel() int
}

// Backend is the optional persistence collaborator notified at edit
// protocol transitions. At most one is registered per book.
type Backend interface {
	// TransBeginEdit is called once when a transaction enters an edit session.
	TransBeginEdit(ctx context.Context, t *Transaction, deferred bool) error

	// TransCommitEdit receives the new state and the pre-edit snapshot.
	// A non-nil error rolls the edit back.
	TransCommitEdit(ctx context.Context, t *Transaction, orig *TransactionSnapshot) error
}

// TransactionDestroyer is an optional Backend extension notified when a
// commit deletes a transaction instead of persisting it.
type TransactionDestroyer interface {
	TransDestroyed(ctx context.Context, id guid.GUID, orig *TransactionSnapshot) error
}

// JournalKind tags an edit journal entry.
type JournalKind byte

const (
	JournalBegin    JournalKind = 'B'
	JournalCommit   JournalKind = 'C'
	JournalRollback JournalKind = 'R'
	JournalDelete   JournalKind = 'D'
)

// String returns the single-letter tag.
func (k JournalKind) String() string {
	return string(rune(k))
}

// Valid reports whether k is one of the four journal kinds.
func (k JournalKind) Valid() bool {
	switch k {
	case JournalBegin, JournalCommit, JournalRollback, JournalDelete:
		return true
	}
	return false
}

// JournalEntry is one edit event. Seq comes from the book's logical clock.
type JournalEntry struct {
	Seq         int64
	Kind        JournalKind
	Transaction guid.GUID
	Snapshot    TransactionSnapshot
}

// Journal is the append-only audit trail of edit events. The engine never
// reads it back.
type Journal interface {
	Append(ctx context.Context, entry JournalEntry) error
}

// Observer receives one call per engine operation.
type Observer interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Operation names reported to the Observer.
const (
	OpBeginEdit    = "begin_edit"
	OpCommitEdit   = "commit_edit"
	OpRollbackEdit = "rollback_edit"
	OpDestroy      = "destroy"
	OpRebalance    = "rebalance"
)

type noopObserver struct{}

func (noopObserver) Observe(context.Context, string, bool, time.Duration) {}

// MemoryJournal keeps journal entries in memory. Used when no durable
// journal is configured, and in tests.
//
// Thread-safety: MemoryJournal is safe for concurrent use.
type MemoryJournal struct {
	mu      sync.Mutex
	entries []JournalEntry
}

// NewMemoryJournal creates an empty journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// Append records entry.
func (j *MemoryJournal) Append(_ context.Context, entry JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
	return nil
}

// Entries returns a copy of all entries in append order.
func (j *MemoryJournal) Entries() []JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]JournalEntry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Kinds returns the entry tags concatenated, e.g. "BCBRD".
func (j *MemoryJournal) Kinds() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	b := make([]byte, len(j.entries))
	for i, e := range j.entries {
		b[i] = byte(e.Kind)
	}
	return string(b)
}
