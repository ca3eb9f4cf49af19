package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/splitledger/internal/engine"
	"github.com/roach88/splitledger/internal/guid"
	"github.com/roach88/splitledger/internal/kvp"
)

// JournalRecord is one stored journal row.
type JournalRecord struct {
	Seq         int64
	Kind        engine.JournalKind
	Transaction guid.GUID

	// Payload is the canonical JSON snapshot as stored.
	Payload string

	// Document is Payload parsed back into a frame.
	Document kvp.Frame
}

// JournalFilter narrows ReadJournal and CountJournal. Zero values match
// everything.
type JournalFilter struct {
	Transaction guid.GUID
	Kinds       []engine.JournalKind
	AfterSeq    int64
	Limit       int
}

// where renders the filter as a WHERE clause with its arguments.
func (f JournalFilter) where() (string, []any) {
	var conds []string
	var args []any

	if !f.Transaction.IsNull() {
		conds = append(conds, "transaction_guid = ?")
		args = append(args, f.Transaction.String())
	}
	if len(f.Kinds) > 0 {
		marks := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			marks[i] = "?"
			args = append(args, k.String())
		}
		conds = append(conds, "kind IN ("+strings.Join(marks, ", ")+")")
	}
	if f.AfterSeq > 0 {
		conds = append(conds, "seq > ?")
		args = append(args, f.AfterSeq)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ReadJournal returns journal rows matching filter, ordered by seq ASC.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadJournal(ctx context.Context, filter JournalFilter) ([]JournalRecord, error) {
	where, args := filter.where()
	query := `SELECT seq, kind, transaction_guid, payload FROM journal` + where + ` ORDER BY seq ASC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	records := []JournalRecord{}
	for rows.Next() {
		rec, err := scanJournal(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}

	return records, nil
}

// CountJournal counts journal rows matching filter. Limit is ignored.
func (s *Store) CountJournal(ctx context.Context, filter JournalFilter) (int, error) {
	where, args := filter.where()
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM journal`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count journal: %w", err)
	}
	return n, nil
}

func scanJournal(rows *sql.Rows) (JournalRecord, error) {
	var rec JournalRecord
	var kind, id string

	if err := rows.Scan(&rec.Seq, &kind, &id, &rec.Payload); err != nil {
		return JournalRecord{}, fmt.Errorf("scan journal: %w", err)
	}

	if len(kind) != 1 || !engine.JournalKind(kind[0]).Valid() {
		return JournalRecord{}, fmt.Errorf("scan journal seq %d: bad kind %q", rec.Seq, kind)
	}
	rec.Kind = engine.JournalKind(kind[0])

	g, err := guid.Parse(id)
	if err != nil {
		return JournalRecord{}, fmt.Errorf("scan journal seq %d: %w", rec.Seq, err)
	}
	rec.Transaction = g

	doc, err := unmarshalPayload(rec.Payload)
	if err != nil {
		return JournalRecord{}, fmt.Errorf("scan journal seq %d: %w", rec.Seq, err)
	}
	rec.Document = doc

	return rec, nil
}

// CommittedTransaction is the stored committed state of a transaction.
type CommittedTransaction struct {
	GUID       guid.GUID
	SplitCount int
	Revision   int64
	Payload    string
	Document   kvp.Frame
}

// ReadCommitted retrieves the committed state of one transaction.
// Returns an error wrapping sql.ErrNoRows if not found.
func (s *Store) ReadCommitted(ctx context.Context, id guid.GUID) (CommittedTransaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT guid, split_count, revision, payload
		FROM transactions
		WHERE guid = ?
	`, id.String())

	ct, err := scanCommitted(row)
	if err != nil {
		return CommittedTransaction{}, fmt.Errorf("read committed %s: %w", id, err)
	}
	return ct, nil
}

// ReadAllCommitted returns every committed transaction ordered by GUID.
func (s *Store) ReadAllCommitted(ctx context.Context) ([]CommittedTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guid, split_count, revision, payload
		FROM transactions
		ORDER BY guid COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query committed: %w", err)
	}
	defer rows.Close()

	out := []CommittedTransaction{}
	for rows.Next() {
		ct, err := scanCommitted(rows)
		if err != nil {
			return nil, fmt.Errorf("scan committed: %w", err)
		}
		out = append(out, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate committed: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommitted(row rowScanner) (CommittedTransaction, error) {
	var ct CommittedTransaction
	var id string

	if err := row.Scan(&id, &ct.SplitCount, &ct.Revision, &ct.Payload); err != nil {
		return CommittedTransaction{}, err
	}

	g, err := guid.Parse(id)
	if err != nil {
		return CommittedTransaction{}, err
	}
	ct.GUID = g

	doc, err := unmarshalPayload(ct.Payload)
	if err != nil {
		return CommittedTransaction{}, err
	}
	ct.Document = doc

	return ct, nil
}
