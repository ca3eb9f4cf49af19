package store

import (
	"context"
	"fmt"

	"github.com/roach88/splitledger/internal/engine"
	"github.com/roach88/splitledger/internal/guid"
)

// Append writes a journal entry. Implements engine.Journal.
// Uses ON CONFLICT(seq) DO NOTHING for idempotency - a duplicate seq is
// silently ignored. Other constraint violations (e.g. an unknown kind)
// still return errors.
func (s *Store) Append(ctx context.Context, entry engine.JournalEntry) error {
	payload, err := marshalSnapshot(entry.Snapshot)
	if err != nil {
		return fmt.Errorf("append journal: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO journal (seq, kind, transaction_guid, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		entry.Seq,
		entry.Kind.String(),
		entry.Transaction.String(),
		payload,
	)
	if err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}

// TransBeginEdit implements engine.Backend. Nothing is locked; the begin
// is only logged.
func (s *Store) TransBeginEdit(_ context.Context, t *engine.Transaction, deferred bool) error {
	s.logger.Debug("store begin edit",
		"transaction", t.GUID().String(),
		"deferred", deferred,
	)
	return nil
}

// TransCommitEdit implements engine.Backend: the transaction's committed
// state replaces any stored one and its revision is bumped.
func (s *Store) TransCommitEdit(ctx context.Context, t *engine.Transaction, _ *engine.TransactionSnapshot) error {
	if s.readOnly {
		return fmt.Errorf("commit %s: %w", t.GUID(), ErrReadOnly)
	}

	payload, err := marshalSnapshot(t.Snapshot())
	if err != nil {
		return fmt.Errorf("commit %s: %w", t.GUID(), err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit %s: begin tx: %w", t.GUID(), err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (guid, payload, split_count)
		VALUES (?, ?, ?)
		ON CONFLICT(guid) DO UPDATE SET
			payload     = excluded.payload,
			split_count = excluded.split_count,
			revision    = transactions.revision + 1
	`,
		t.GUID().String(),
		payload,
		t.SplitCount(),
	)
	if err != nil {
		return fmt.Errorf("commit %s: upsert: %w", t.GUID(), err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", t.GUID(), err)
	}

	s.logger.Debug("store commit",
		"transaction", t.GUID().String(),
		"splits", t.SplitCount(),
	)
	return nil
}

// TransDestroyed implements engine.TransactionDestroyer: the stored
// transaction is removed. Deleting an unknown transaction is a no-op.
func (s *Store) TransDestroyed(ctx context.Context, id guid.GUID, _ *engine.TransactionSnapshot) error {
	if s.readOnly {
		return fmt.Errorf("delete %s: %w", id, ErrReadOnly)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE guid = ?`, id.String()); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}

	s.logger.Debug("store delete", "transaction", id.String())
	return nil
}
