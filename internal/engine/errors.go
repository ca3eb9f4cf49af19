package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/splitledger/internal/guid"
)

// LedgerError represents an error detected by the ledger engine.
//
// Ledger errors fall into three groups:
//   - Protocol violations: mutating a closed transaction, double destroy
//   - Balancing failures: no common currency, missing account in strict mode
//   - Backend failures: a backend hook rejected begin or commit
//
// LedgerError unwraps to the sentinel for its code and to the underlying
// cause, so both errors.Is(err, ErrNotOpen) and errors.As work.
type LedgerError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Transaction identifies the affected transaction, if any.
	Transaction guid.GUID

	// Split identifies the affected split, if any.
	Split guid.GUID

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause (e.g. the backend's error).
	Err error
}

// ErrorCode categorizes ledger errors.
type ErrorCode string

const (
	// ErrCodeNotOpen indicates a mutation on a transaction with no open edit session.
	ErrCodeNotOpen ErrorCode = "NOT_OPEN"

	// ErrCodeAlreadyDestroyed indicates use of a destroyed transaction or split.
	ErrCodeAlreadyDestroyed ErrorCode = "ALREADY_DESTROYED"

	// ErrCodeNotMember indicates a split that is not part of the transaction.
	ErrCodeNotMember ErrorCode = "NOT_MEMBER"

	// ErrCodeNoCommonCurrency indicates the splits' accounts share no currency or security.
	ErrCodeNoCommonCurrency ErrorCode = "NO_COMMON_CURRENCY"

	// ErrCodeMissingAccount indicates a split without an account under a strict policy.
	ErrCodeMissingAccount ErrorCode = "MISSING_ACCOUNT"

	// ErrCodeInconsistentCurrency indicates a split whose account matches neither side of the base.
	ErrCodeInconsistentCurrency ErrorCode = "INCONSISTENT_CURRENCY"

	// ErrCodeBackendRejected indicates a backend hook refused the edit.
	ErrCodeBackendRejected ErrorCode = "BACKEND_REJECTED"

	// ErrCodeInvalidPolicy indicates an unknown force-double-entry policy.
	ErrCodeInvalidPolicy ErrorCode = "INVALID_POLICY"

	// ErrCodeInvalidReconcile indicates an unknown reconciled state.
	ErrCodeInvalidReconcile ErrorCode = "INVALID_RECONCILE"

	// ErrCodeDuplicateGUID indicates a re-key onto a GUID another entity holds.
	ErrCodeDuplicateGUID ErrorCode = "DUPLICATE_GUID"
)

// Sentinels matched by errors.Is against a LedgerError of the same code.
var (
	ErrNotOpen               = errors.New("transaction not open for editing")
	ErrAlreadyDestroyed      = errors.New("entity already destroyed")
	ErrNotMember             = errors.New("split not in transaction")
	ErrNoCommonCurrency      = errors.New("no common currency")
	ErrMissingAccount        = errors.New("split has no account")
	ErrInconsistentCurrency  = errors.New("inconsistent currencies")
	ErrBackendRejected       = errors.New("backend rejected edit")
	ErrInvalidPolicy         = errors.New("invalid double-entry policy")
	ErrInvalidReconcileState = errors.New("invalid reconciled state")
	ErrDuplicateGUID         = errors.New("guid already registered")
)

var sentinels = map[ErrorCode]error{
	ErrCodeNotOpen:              ErrNotOpen,
	ErrCodeAlreadyDestroyed:     ErrAlreadyDestroyed,
	ErrCodeNotMember:            ErrNotMember,
	ErrCodeNoCommonCurrency:     ErrNoCommonCurrency,
	ErrCodeMissingAccount:       ErrMissingAccount,
	ErrCodeInconsistentCurrency: ErrInconsistentCurrency,
	ErrCodeBackendRejected:      ErrBackendRejected,
	ErrCodeInvalidPolicy:        ErrInvalidPolicy,
	ErrCodeInvalidReconcile:     ErrInvalidReconcileState,
	ErrCodeDuplicateGUID:        ErrDuplicateGUID,
}

// Error implements the error interface.
func (e *LedgerError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case !e.Transaction.IsNull() && !e.Split.IsNull():
		msg = fmt.Sprintf("%s (trans=%s, split=%s)", msg, e.Transaction, e.Split)
	case !e.Transaction.IsNull():
		msg = fmt.Sprintf("%s (trans=%s)", msg, e.Transaction)
	case !e.Split.IsNull():
		msg = fmt.Sprintf("%s (split=%s)", msg, e.Split)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the code sentinel and the underlying cause.
func (e *LedgerError) Unwrap() []error {
	var out []error
	if s, ok := sentinels[e.Code]; ok {
		out = append(out, s)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// CodeOf returns the code of the first LedgerError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// IsProtocolError reports whether err is a programming error against the
// edit protocol (mutate-while-closed, double destroy, foreign split).
func IsProtocolError(err error) bool {
	switch CodeOf(err) {
	case ErrCodeNotOpen, ErrCodeAlreadyDestroyed, ErrCodeNotMember:
		return true
	}
	return false
}

// IsBalanceError reports whether err is a recoverable balancing failure.
func IsBalanceError(err error) bool {
	switch CodeOf(err) {
	case ErrCodeNoCommonCurrency, ErrCodeMissingAccount, ErrCodeInconsistentCurrency:
		return true
	}
	return false
}

// IsBackendError reports whether err is a backend rejection.
func IsBackendError(err error) bool {
	return CodeOf(err) == ErrCodeBackendRejected
}

func newNotOpenError(t *Transaction, op string) *LedgerError {
	return &LedgerError{
		Code:        ErrCodeNotOpen,
		Message:     fmt.Sprintf("%s requires an open edit session", op),
		Transaction: t.guid,
		Details:     map[string]string{"op": op},
	}
}

func newNoCommonCurrencyError(t *Transaction, changed *Split) *LedgerError {
	e := &LedgerError{
		Code:        ErrCodeNoCommonCurrency,
		Message:     "no common split currencies",
		Transaction: t.guid,
		Details:     make(map[string]string),
	}
	if changed != nil {
		e.Split = changed.guid
	}
	for i, s := range t.splits {
		key := fmt.Sprintf("split[%d]", i)
		if s.account == nil {
			e.Details[key] = "no account"
			continue
		}
		e.Details[key] = fmt.Sprintf("account=%s currency=%s security=%s",
			s.account.Name(), s.account.Currency(), securityOf(s.account))
	}
	return e
}

func newMissingAccountError(t *Transaction, s *Split) *LedgerError {
	return &LedgerError{
		Code:        ErrCodeMissingAccount,
		Message:     "split must have an account under a strict double-entry policy",
		Transaction: t.guid,
		Split:       s.guid,
	}
}
