// Package engine implements the double-entry ledger engine.
//
// A Book owns the policy and collaborators (registry, backend, journal,
// logger) that every operation runs against. Splits are grouped into
// Transactions whose values must sum to zero in a common currency.
//
// EDIT PROTOCOL:
//
// Transactions are mutated in place inside an edit session:
//
//  1. BeginEdit snapshots the committed state into an unregistered
//     TransactionSnapshot and opens the transaction.
//  2. Setters on the transaction and its splits run; each value-affecting
//     mutation rebalances unless the session was opened deferred.
//  3. CommitEdit validates, rebalances once, hands the new state and the
//     snapshot to the Backend, and notifies accounts.
//     RollbackEdit restores the snapshot instead.
//
// Mutating a closed transaction is a protocol violation: the operation
// returns a LedgerError with code NOT_OPEN and leaves state untouched.
//
// REBALANCING:
//
// The first split of a transaction is the source, the rest are
// destinations. A change to the source is absorbed by the first
// destination; a change to a destination is absorbed by the source.
// Both directions work in the common currency of the changed split's
// account (see FindCommonCurrency).
//
// CONCURRENCY:
//
// The engine does no locking. One logical caller owns an edit session
// from BeginEdit to CommitEdit/RollbackEdit. Transactions sharing an
// account must be serialized by the caller.
package engine
