package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/splitledger/internal/guid"
	"github.com/roach88/splitledger/internal/kvp"
)

// TransactionSnapshot is an immutable copy of a transaction's state.
//
// Snapshots reuse the GUIDs of the entities they copy but are never
// registered: they are shadows used for rollback and for handing the
// pre-edit state to a backend, never first-class entities.
type TransactionSnapshot struct {
	GUID        guid.GUID
	Num         string
	Description string
	DateEntered time.Time
	DatePosted  time.Time
	Slots       kvp.Frame
	Splits      []SplitSnapshot
}

// SplitSnapshot is an immutable copy of a split's state. Account is the
// same (non-owned) account the split pointed at.
type SplitSnapshot struct {
	GUID           guid.GUID
	Account        Account
	Memo           string
	Action         string
	Reconcile      ReconcileState
	Value          decimal.Decimal
	Quantity       decimal.Decimal
	DateReconciled time.Time
	Slots          kvp.Frame
}

// Snapshot copies the transaction's current state, splits included.
func (t *Transaction) Snapshot() TransactionSnapshot {
	snap := TransactionSnapshot{
		GUID:        t.guid,
		Num:         t.num,
		Description: t.description,
		DateEntered: t.dateEntered,
		DatePosted:  t.datePosted,
		Slots:       t.slots.Clone(),
		Splits:      make([]SplitSnapshot, len(t.splits)),
	}
	for i, s := range t.splits {
		snap.Splits[i] = s.Snapshot()
	}
	return snap
}

// Snapshot copies the split's current state.
func (s *Split) Snapshot() SplitSnapshot {
	return SplitSnapshot{
		GUID:           s.guid,
		Account:        s.account,
		Memo:           s.memo,
		Action:         s.action,
		Reconcile:      s.reconcile,
		Value:          s.value,
		Quantity:       s.quantity,
		DateReconciled: s.dateReconciled,
		Slots:          s.slots.Clone(),
	}
}

// restore copies the snapshot's editable fields into the live split.
// Identity, parent and account are left alone.
func (s *Split) restore(so *SplitSnapshot) {
	s.memo = so.Memo
	s.action = so.Action
	s.reconcile = so.Reconcile
	s.quantity = so.Quantity
	s.value = so.Value
	s.dateReconciled = so.DateReconciled
	s.slots = so.Slots.Clone()
}

// Document renders the snapshot as a metadata frame, the form used for
// journal payloads, persisted commits and golden files. Dates are RFC 3339
// in UTC; an unset date is the empty string.
func (ts TransactionSnapshot) Document() kvp.Frame {
	splits := make(kvp.List, len(ts.Splits))
	for i, s := range ts.Splits {
		splits[i] = s.Document()
	}
	slots := ts.Slots
	if slots == nil {
		slots = kvp.Frame{}
	}
	return kvp.NewFrame(
		kvp.P("guid", kvp.String(ts.GUID.String())),
		kvp.P("num", kvp.String(ts.Num)),
		kvp.P("description", kvp.String(ts.Description)),
		kvp.P("date_entered", kvp.String(formatDate(ts.DateEntered))),
		kvp.P("date_posted", kvp.String(formatDate(ts.DatePosted))),
		kvp.P("slots", slots.Clone()),
		kvp.P("splits", splits),
	)
}

// Document renders the split snapshot as a metadata frame.
func (ss SplitSnapshot) Document() kvp.Frame {
	account := ""
	if ss.Account != nil {
		account = ss.Account.Name()
	}
	slots := ss.Slots
	if slots == nil {
		slots = kvp.Frame{}
	}
	return kvp.NewFrame(
		kvp.P("guid", kvp.String(ss.GUID.String())),
		kvp.P("account", kvp.String(account)),
		kvp.P("memo", kvp.String(ss.Memo)),
		kvp.P("action", kvp.String(ss.Action)),
		kvp.P("reconcile", kvp.String(ss.Reconcile.String())),
		kvp.P("value", kvp.NewNumeric(ss.Value)),
		kvp.P("quantity", kvp.NewNumeric(ss.Quantity)),
		kvp.P("date_reconciled", kvp.String(formatDate(ss.DateReconciled))),
		kvp.P("slots", slots.Clone()),
	)
}

// dateUnset reports whether ts carries no date: the zero time or the
// Unix epoch.
func dateUnset(ts time.Time) bool {
	return ts.IsZero() || ts.Unix() == 0
}

func formatDate(ts time.Time) string {
	if dateUnset(ts) {
		return ""
	}
	return ts.UTC().Format(time.RFC3339Nano)
}
