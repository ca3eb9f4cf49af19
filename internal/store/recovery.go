package store

import (
	"context"
	"fmt"

	"github.com/roach88/splitledger/internal/engine"
	"github.com/roach88/splitledger/internal/guid"
)

// TransactionHistory is the journal of one transaction with an analysis
// of how its last edit session ended.
type TransactionHistory struct {
	Transaction guid.GUID
	Entries     []JournalRecord
	LastSeq     int64
	LastKind    engine.JournalKind

	// Interrupted is true when the last event is a begin with no
	// matching commit, rollback or delete: the process stopped mid-edit.
	Interrupted bool

	// Deleted is true when the last event is a delete.
	Deleted bool

	// Committed is true when the store holds a committed snapshot.
	Committed bool
}

// GetHistory retrieves the journal of one transaction for recovery
// analysis.
func (s *Store) GetHistory(ctx context.Context, id guid.GUID) (TransactionHistory, error) {
	h := TransactionHistory{Transaction: id}

	entries, err := s.ReadJournal(ctx, JournalFilter{Transaction: id})
	if err != nil {
		return h, fmt.Errorf("get history: %w", err)
	}
	h.Entries = entries

	if n := len(entries); n > 0 {
		last := entries[n-1]
		h.LastSeq = last.Seq
		h.LastKind = last.Kind
		h.Interrupted = last.Kind == engine.JournalBegin
		h.Deleted = last.Kind == engine.JournalDelete
	}

	var count int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE guid = ?`, id.String()).Scan(&count)
	if err != nil {
		return h, fmt.Errorf("get history: %w", err)
	}
	h.Committed = count > 0

	return h, nil
}

// FindInterruptedEdits returns the histories of every transaction whose
// last journal event is a begin. The committed snapshot of such a
// transaction is still its pre-edit state.
func (s *Store) FindInterruptedEdits(ctx context.Context) ([]TransactionHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT j.transaction_guid
		FROM journal j
		JOIN (
			SELECT transaction_guid, MAX(seq) AS last_seq
			FROM journal
			GROUP BY transaction_guid
		) m ON j.transaction_guid = m.transaction_guid AND j.seq = m.last_seq
		WHERE j.kind = 'B'
		ORDER BY j.transaction_guid COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("find interrupted edits: %w", err)
	}
	defer rows.Close()

	var ids []guid.GUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan transaction guid: %w", err)
		}
		id, err := guid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("scan transaction guid: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction guids: %w", err)
	}
	rows.Close()

	histories := []TransactionHistory{}
	for _, id := range ids {
		h, err := s.GetHistory(ctx, id)
		if err != nil {
			return nil, err
		}
		histories = append(histories, h)
	}
	return histories, nil
}
