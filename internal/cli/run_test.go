package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitledger/internal/config"
	"github.com/roach88/splitledger/internal/store"
)

const transferScenario = `name: transfer
description: "Checking pays Groceries"
accounts:
  - { name: Checking, currency: USD }
  - { name: Groceries, currency: USD }
flow:
  - { op: new_transaction, args: { tx: t1 } }
  - { op: begin, args: { tx: t1 } }
  - { op: new_split, args: { tx: t1, split: s1 } }
  - { op: set_account, args: { split: s1, account: Checking } }
  - { op: new_split, args: { tx: t1, split: s2 } }
  - { op: set_account, args: { split: s2, account: Groceries } }
  - { op: set_value, args: { split: s1, amount: "10" } }
  - { op: commit, args: { tx: t1 } }
assertions:
  - { type: balanced, tx: t1 }
  - { type: journal_kinds, value: BC }
`

// looseSplitScenario appends a split with no account, which only a
// strict book rejects.
const looseSplitScenario = `name: loose
description: "A split without an account"
flow:
  - { op: new_transaction, args: { tx: t1 } }
  - { op: begin, args: { tx: t1 } }
  - { op: new_split, args: { tx: t1, split: s1 } }
assertions:
  - { type: split_count, tx: t1, count: 1 }
`

const failingScenario = `name: failing
description: "Asserts a balance the flow never produces"
accounts:
  - { name: Checking, currency: USD }
flow:
  - { op: new_transaction, args: { tx: t1 } }
assertions:
  - { type: account_balance, account: Checking, value: "5" }
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func executeRun(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRunCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRunMissingArgs(t *testing.T) {
	_, err := executeRun(t, &RootOptions{Format: "text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestRunScenarioNotFound(t *testing.T) {
	_, err := executeRun(t, &RootOptions{Format: "text"}, "/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load scenario")
}

func TestRunPassText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "transfer.yaml", transferScenario)

	out, err := executeRun(t, &RootOptions{Format: "text"}, path)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS transfer")
	assert.Contains(t, out, "[7] set_value s1 -> ok")
	assert.Contains(t, out, "[8] commit t1 -> ok")
	assert.Contains(t, out, "Journal: BC")
	assert.Contains(t, out, `"balance":-10`)
	assert.NotContains(t, out, "=== Metrics ===")
}

func TestRunPassJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "transfer.yaml", transferScenario)

	out, err := executeRun(t, &RootOptions{Format: "json"}, path)
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Pass)
	assert.Equal(t, "transfer", resp.Data.Scenario)
	assert.Equal(t, "BC", resp.Data.Journal)
	assert.Len(t, resp.Data.Trace, 8)
	assert.Contains(t, string(resp.Data.State), `"transactions"`)
}

func TestRunFailingScenario(t *testing.T) {
	path := writeFile(t, t.TempDir(), "failing.yaml", failingScenario)

	out, err := executeRun(t, &RootOptions{Format: "text"}, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL failing")
	assert.Contains(t, out, "=== Errors ===")
	assert.Contains(t, out, "Assertion failed: account_balance")
}

func TestRunFailingScenarioJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "failing.yaml", failingScenario)

	out, err := executeRun(t, &RootOptions{Format: "json"}, path)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeScenario, resp.Error.Code)
}

func TestRunWithDatabase(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "transfer.yaml", transferScenario)
	dbPath := filepath.Join(dir, "ledger.db")

	for i := 0; i < 2; i++ {
		_, err := executeRun(t, &RootOptions{Format: "text"}, "--db", dbPath, path)
		require.NoError(t, err)
	}

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	records, err := st.ReadJournal(ctx, store.JournalFilter{})
	require.NoError(t, err)
	require.Len(t, records, 4)
	for i, rec := range records {
		assert.Equal(t, int64(i+1), rec.Seq, "journal sequence continues across runs")
	}

	committed, err := st.ReadAllCommitted(ctx)
	require.NoError(t, err)
	require.Len(t, committed, 1)
	assert.Equal(t, 2, committed[0].SplitCount)
}

func TestRunJournalPathFromConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "transfer.yaml", transferScenario)
	cfgPath := writeFile(t, dir, "splitledger.yaml", "journal:\n  path: ledger.db\n")

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	_, err = executeRun(t, &RootOptions{Format: "text", cfg: cfg}, path)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "ledger.db"))
}

func TestRunWithMetrics(t *testing.T) {
	path := writeFile(t, t.TempDir(), "transfer.yaml", transferScenario)
	cfg, err := config.Parse([]byte("metrics:\n  enabled: true\n"))
	require.NoError(t, err)

	out, err := executeRun(t, &RootOptions{Format: "text", cfg: cfg}, path)
	require.NoError(t, err)
	assert.Contains(t, out, "=== Metrics ===")
	assert.Regexp(t, `commit_edit\s+success\s+1`, out)
	assert.Regexp(t, `begin_edit\s+success\s+1`, out)
}

func TestRunConfigPolicyApplies(t *testing.T) {
	path := writeFile(t, t.TempDir(), "loose.yaml", looseSplitScenario)

	_, err := executeRun(t, &RootOptions{Format: "text"}, path)
	require.NoError(t, err)

	cfg, err := config.Parse([]byte("force_double_entry: 2\n"))
	require.NoError(t, err)

	out, err := executeRun(t, &RootOptions{Format: "text", cfg: cfg}, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "[3] new_split s1 -> MISSING_ACCOUNT")
}
