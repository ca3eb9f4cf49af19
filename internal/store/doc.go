// Package store provides SQLite-backed durable storage for ledger edits.
//
// The store keeps two tables:
//   - journal: append-only edit events (B begin, C commit, R rollback,
//     D delete), each carrying the transaction snapshot at that point
//   - transactions: the last committed snapshot of every live transaction
//
// A Store implements engine.Journal, engine.Backend and
// engine.TransactionDestroyer, so one file gives a Book both its audit
// trail and its persistence.
//
// # Ordering
//
// Journal rows are keyed by the Book's logical sequence number and every
// query orders by seq ASC, never by wall time. A process reopening an
// existing file resumes the sequence with JournalClock.
//
// # Payloads
//
// Snapshots are stored as canonical JSON (sorted keys, NFC strings, exact
// decimals), so identical ledger states always produce identical bytes.
//
// # Connection
//
// Every store runs in WAL mode with synchronous=NORMAL, so journal
// readers (the journal command, FindInterruptedEdits) never block a
// committing Book. Lock contention waits up to five seconds before
// SQLITE_BUSY surfaces, and foreign keys are enforced. A ReadOnly store
// still reads the journal but refuses backend commits and deletes.
package store
