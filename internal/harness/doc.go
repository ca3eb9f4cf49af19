// Package harness runs ledger scenarios against a deterministic book.
//
// A scenario declares accounts, drives transactions and splits through a
// flow of edit operations, and checks the outcome with assertions.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: simple_transfer
//	description: "Two-split transfer between USD accounts"
//	force_double_entry: 0
//	accounts:
//	  - name: Checking
//	    currency: USD
//	  - name: Brokerage
//	    currency: USD
//	    security: { namespace: NASDAQ, mnemonic: AAPL, fraction: 10000 }
//	flow:
//	  - op: new_transaction
//	    args: { tx: t1 }
//	  - op: begin
//	    args: { tx: t1 }
//	  - op: new_split
//	    args: { tx: t1, split: s1 }
//	  - op: set_account
//	    args: { split: s1, account: Checking }
//	  - op: set_value
//	    args: { split: s1, amount: "42.50" }
//	  - op: commit
//	    args: { tx: t1 }
//	    expect: { error: NO_COMMON_CURRENCY }
//	assertions:
//	  - type: balanced
//	    tx: t1
//	  - type: split_value
//	    split: s1
//	    value: "42.5"
//
// Transactions and splits are referred to by scenario-local aliases. A
// flow step without an expect clause must succeed; a step with one must
// fail with exactly that error code.
//
// # Assertion Types
//
//   - balanced: the transaction's imbalance is zero
//   - split_value, split_quantity, split_memo: a split field equals value
//   - split_count: the transaction has count splits
//   - registered: the entity is (or, with expect: false, is not) in the book registry
//   - open: the transaction is (or is not) in an edit session
//   - journal_kinds: the journal tags so far, e.g. "BCBR"
//   - account_balance: an account's running balance equals value
//
// # Deterministic Testing
//
// Every run uses a fresh book from testutil.NewBook: sequential GUIDs, a
// frozen wall clock and an in-memory journal. The same scenario always
// produces the same trace, journal and final state, which is what the
// golden files under testdata/golden record.
package harness
