package engine

import (
	"fmt"
	"slices"
	"time"

	"github.com/roach88/splitledger/internal/guid"
	"github.com/roach88/splitledger/internal/kvp"
	"github.com/roach88/splitledger/internal/registry"
)

// editFlags is the transaction's open state; zero means closed.
type editFlags uint8

const (
	flagBeginEdit editFlags = 1 << iota
	flagDeferRebalance
	flagBeingDestroyed
)

// Transaction is an ordered group of splits sharing a date and
// description whose values balance in a common currency.
//
// INVARIANTS:
//   - every split in splits has parent == this transaction
//   - orig is non-nil exactly while the transaction is open
type Transaction struct {
	book *Book
	guid guid.GUID

	num         string
	description string
	splits      []*Split
	dateEntered time.Time
	datePosted  time.Time
	slots       kvp.Frame

	open editFlags
	orig *TransactionSnapshot

	freed bool
}

// GUID returns the transaction's identifier.
func (t *Transaction) GUID() guid.GUID { return t.guid }

// Book returns the book the transaction belongs to.
func (t *Transaction) Book() *Book { return t.book }

func (t *Transaction) Num() string { return t.num }
func (t *Transaction) Description() string { return t.description }
func (t *Transaction) DateEntered() time.Time { return t.dateEntered }
func (t *Transaction) DatePosted() time.Time { return t.datePosted }

// Slots returns a copy of the transaction's metadata frame.
func (t *Transaction) Slots() kvp.Frame { return t.slots.Clone() }

// Splits returns the splits in order. The slice is a copy.
func (t *Transaction) Splits() []*Split {
	return slices.Clone(t.splits)
}

// SplitCount returns the number of splits.
func (t *Transaction) SplitCount() int {
	return len(t.splits)
}

// Split returns the i-th split, or nil if i is out of range.
func (t *Transaction) Split(i int) *Split {
	if i < 0 || i >= len(t.splits) {
		return nil
	}
	return t.splits[i]
}

// IsOpen reports whether an edit session is in progress.
func (t *Transaction) IsOpen() bool {
	return t.open&flagBeginEdit != 0
}

// IsDeferred reports whether rebalancing is deferred until commit.
func (t *Transaction) IsDeferred() bool {
	return t.open&flagDeferRebalance != 0
}

// IsBeingDestroyed reports whether Destroy has been called in this session.
func (t *Transaction) IsBeingDestroyed() bool {
	return t.open&flagBeingDestroyed != 0
}

// IsFreed reports whether a commit deleted the transaction.
func (t *Transaction) IsFreed() bool {
	return t.freed
}

// Original returns the pre-edit snapshot while open, else nil.
func (t *Transaction) Original() *TransactionSnapshot {
	return t.orig
}

// SetGUID re-keys the transaction, keeping the registry consistent. A GUID
// registered to any other entity is refused. RollbackEdit restores the
// GUID the session began with.
func (t *Transaction) SetGUID(id guid.GUID) error {
	if id.IsNull() {
		return fmt.Errorf("transaction set guid: null guid")
	}
	if id == t.guid {
		return nil
	}
	if err := t.book.checkGUIDFree(id, t); err != nil {
		err.Transaction = t.guid
		return err
	}
	t.book.registry.Remove(t.guid)
	t.guid = id
	t.book.store(t, t.guid, registry.TagTransaction)
	return nil
}

func (t *Transaction) checkOpen(op string) error {
	if t.freed {
		return t.book.violation(&LedgerError{
			Code:        ErrCodeAlreadyDestroyed,
			Message:     fmt.Sprintf("%s on freed transaction", op),
			Transaction: t.guid,
		})
	}
	if !t.IsOpen() {
		return t.book.violation(newNotOpenError(t, op))
	}
	return nil
}

// markChanged flags every split's account as changed.
func (t *Transaction) markChanged() {
	for _, s := range t.splits {
		s.markDirty()
	}
}

// SetNum sets the check/reference number.
func (t *Transaction) SetNum(num string) error {
	if err := t.checkOpen("SetNum"); err != nil {
		return err
	}
	t.num = num
	t.markChanged()
	return nil
}

// SetDescription sets the description.
func (t *Transaction) SetDescription(desc string) error {
	if err := t.checkOpen("SetDescription"); err != nil {
		return err
	}
	t.description = desc
	t.markChanged()
	return nil
}

// SetDatePosted sets the posted date. Split date order in accounts is
// fixed up at commit, not here.
func (t *Transaction) SetDatePosted(ts time.Time) error {
	if err := t.checkOpen("SetDatePosted"); err != nil {
		return err
	}
	t.datePosted = ts
	return nil
}

// SetDatePostedSecs sets the posted date to whole seconds.
func (t *Transaction) SetDatePostedSecs(secs int64) error {
	return t.SetDatePosted(time.Unix(secs, 0))
}

// SetDateEntered sets the entry date. The zero time and the Unix epoch
// both mean unset; CommitEdit replaces an unset entry date with now.
func (t *Transaction) SetDateEntered(ts time.Time) error {
	if err := t.checkOpen("SetDateEntered"); err != nil {
		return err
	}
	t.dateEntered = ts
	return nil
}

// SetDateEnteredSecs sets the entry date to whole seconds.
func (t *Transaction) SetDateEnteredSecs(secs int64) error {
	return t.SetDateEntered(time.Unix(secs, 0))
}

// SetDate sets the posted date to local midnight of day/month/year.
func (t *Transaction) SetDate(day, month, year int) error {
	return t.SetDatePosted(time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local))
}

// SetDateToday sets the posted date to the book's current wall-clock time.
func (t *Transaction) SetDateToday() error {
	return t.SetDatePosted(t.book.now())
}

// SetSlot stores v under key in the transaction's metadata frame.
func (t *Transaction) SetSlot(key string, v kvp.Value) error {
	if err := t.checkOpen("SetSlot"); err != nil {
		return err
	}
	if t.slots == nil {
		t.slots = make(kvp.Frame)
	}
	t.slots[key] = v
	return nil
}

// DeleteSlot removes key from the transaction's metadata frame.
func (t *Transaction) DeleteSlot(key string) error {
	if err := t.checkOpen("DeleteSlot"); err != nil {
		return err
	}
	delete(t.slots, key)
	return nil
}

// AppendSplit appends s, relocating it out of any previous transaction.
// Both transactions must be open. s is rebalanced into this transaction
// and the previous one is rebalanced without it. If balancing this
// transaction fails the relocation is undone.
func (t *Transaction) AppendSplit(s *Split) error {
	if s == nil {
		return nil
	}
	if err := t.checkOpen("AppendSplit"); err != nil {
		return err
	}
	if s.destroyed {
		return t.book.violation(&LedgerError{
			Code:        ErrCodeAlreadyDestroyed,
			Message:     "append of destroyed split",
			Transaction: t.guid,
			Split:       s.guid,
		})
	}
	old := s.parent
	if old != nil && old != t && !old.IsOpen() {
		e := newNotOpenError(old, "AppendSplit")
		e.Split = s.guid
		return t.book.violation(e)
	}

	oldIdx := -1
	if old != nil {
		oldIdx = old.indexOf(s)
		old.removeSplit(s)
	}
	s.parent = t
	t.splits = append(t.splits, s)

	if err := t.rebalanceSplit(s); err != nil {
		t.splits = t.splits[:len(t.splits)-1]
		s.parent = old
		if old != nil && oldIdx >= 0 {
			old.splits = slices.Insert(old.splits, oldIdx, s)
		}
		t.book.logger.Error("append refused",
			"split", s.guid.String(),
			"transaction", t.guid.String(),
			"error", err,
		)
		return err
	}

	if old != nil && old != t {
		if err := old.rebalance(); err != nil {
			t.book.logger.Warn("previous transaction left unbalanced",
				"transaction", old.guid.String(),
				"error", err,
			)
		}
	}
	return nil
}

// attachSplit appends s without rebalancing. Used when the engine itself
// synthesizes a balancing split whose amounts are already final.
func (t *Transaction) attachSplit(s *Split) {
	s.parent = t
	t.splits = append(t.splits, s)
}

func (t *Transaction) indexOf(s *Split) int {
	return slices.Index(t.splits, s)
}

// removeSplit unlinks s without rebalancing.
func (t *Transaction) removeSplit(s *Split) {
	if i := t.indexOf(s); i >= 0 {
		t.splits = slices.Delete(t.splits, i, i+1)
	}
}

// mirrorSplit creates a split in src's account that exactly negates it,
// copying memo and action, and attaches it without rebalancing.
func (t *Transaction) mirrorSplit(src *Split) *Split {
	m := t.book.NewSplit()
	m.memo = src.memo
	m.action = src.action
	m.value = src.value.Neg()
	m.quantity = src.quantity.Neg()
	t.attachSplit(m)
	if src.account != nil {
		m.account = src.account
		src.account.InsertSplit(m)
		m.markDirty()
		src.account.RecomputeBalance()
	}
	t.book.logger.Debug("mirror split created",
		"transaction", t.guid.String(),
		"source", src.guid.String(),
		"mirror", m.guid.String(),
	)
	return m
}

// free releases the transaction after a deleting commit.
func (t *Transaction) free() {
	for _, s := range t.splits {
		s.free()
	}
	t.splits = nil
	t.orig = nil
	t.open = 0
	t.freed = true
}
