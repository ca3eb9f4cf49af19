package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/splitledger/internal/guid"
)

func TestLedgerError_Error(t *testing.T) {
	tx := guid.MustParse("00000000-0000-0000-0000-000000000001")
	sp := guid.MustParse("00000000-0000-0000-0000-000000000002")

	tests := []struct {
		name string
		err  *LedgerError
		want string
	}{
		{
			name: "bare",
			err:  &LedgerError{Code: ErrCodeInvalidPolicy, Message: "bad policy"},
			want: "INVALID_POLICY: bad policy",
		},
		{
			name: "transaction",
			err:  &LedgerError{Code: ErrCodeNotOpen, Message: "closed", Transaction: tx},
			want: "NOT_OPEN: closed (trans=00000000-0000-0000-0000-000000000001)",
		},
		{
			name: "split",
			err:  &LedgerError{Code: ErrCodeAlreadyDestroyed, Message: "gone", Split: sp},
			want: "ALREADY_DESTROYED: gone (split=00000000-0000-0000-0000-000000000002)",
		},
		{
			name: "both with cause",
			err: &LedgerError{
				Code: ErrCodeBackendRejected, Message: "refused",
				Transaction: tx, Split: sp, Err: errors.New("disk full"),
			},
			want: "BACKEND_REJECTED: refused (trans=00000000-0000-0000-0000-000000000001, split=00000000-0000-0000-0000-000000000002): disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestLedgerError_Is(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("commit: %w", &LedgerError{Code: ErrCodeBackendRejected, Err: cause})

	assert.ErrorIs(t, err, ErrBackendRejected)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotOpen)
	assert.Equal(t, ErrCodeBackendRejected, CodeOf(err))
	assert.True(t, IsBackendError(err))
	assert.False(t, IsProtocolError(err))
}

func TestLedgerError_Categories(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		protocol bool
		balance  bool
	}{
		{ErrCodeNotOpen, true, false},
		{ErrCodeAlreadyDestroyed, true, false},
		{ErrCodeNotMember, true, false},
		{ErrCodeNoCommonCurrency, false, true},
		{ErrCodeMissingAccount, false, true},
		{ErrCodeInconsistentCurrency, false, true},
		{ErrCodeBackendRejected, false, false},
		{ErrCodeInvalidPolicy, false, false},
		{ErrCodeDuplicateGUID, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := &LedgerError{Code: tt.code}
			assert.Equal(t, tt.protocol, IsProtocolError(err))
			assert.Equal(t, tt.balance, IsBalanceError(err))
		})
	}
}

func TestCodeOf_NonLedgerError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}
