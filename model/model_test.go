package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAccountJSON tests JSON marshaling of the Account struct.
func TestAccountJSON(t *testing.T) {
	t.Run("balances keep their precision", func(t *testing.T) {
		// Arrange
		acc := Account{
			ID:          7,
			AccountNo:   "000000007",
			DepositType: DepositTypeSavings,
			Status:      StatusActive,
			SubmittedOn: Date(2024, time.January, 1),
			Summary: Summary{
				AccountBalance: decimal.New(150075, -2),
			},
		}

		// Act
		data, err := json.Marshal(acc)
		require.NoError(t, err)

		var decoded Account
		require.NoError(t, json.Unmarshal(data, &decoded))

		// Assert
		assert.Contains(t, string(data), `"account_balance":"1500.75"`)
		assert.Contains(t, string(data), `"status":300`)
		assert.True(t, acc.Summary.AccountBalance.Equal(decoded.Summary.AccountBalance))
		assert.Equal(t, acc.SubmittedOn, decoded.SubmittedOn)
	})

	t.Run("dirty flag never leaves the process", func(t *testing.T) {
		txn := Transaction{ID: 1, Dirty: true}
		data, err := json.Marshal(txn)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "Dirty")
		assert.NotContains(t, string(data), "dirty")
	})

	t.Run("unmarshal with invalid amount format", func(t *testing.T) {
		var req TransactionRequest
		err := json.Unmarshal([]byte(`{"date":"2024-01-01","amount":"not-a-number"}`), &req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "can't convert not-a-number to decimal")
	})
}

func TestParseDate(t *testing.T) {
	t.Run("valid date", func(t *testing.T) {
		d, err := ParseDate("2024-02-29")
		require.NoError(t, err)
		assert.Equal(t, Date(2024, time.February, 29), d)
	})

	t.Run("invalid date", func(t *testing.T) {
		_, err := ParseDate("29/02/2024")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid date")
	})

	t.Run("date of a wall clock time in another zone", func(t *testing.T) {
		loc := time.FixedZone("UTC+5", 5*3600)
		now := time.Date(2024, time.March, 31, 21, 30, 0, 0, time.UTC)
		assert.Equal(t, Date(2024, time.April, 1), DateOf(now, loc))
	})
}

func TestTransactionTypeClassification(t *testing.T) {
	tests := []struct {
		typ      TransactionType
		credit   bool
		debit    bool
		interest bool
	}{
		{TransactionDeposit, true, false, false},
		{TransactionWithdrawal, false, true, false},
		{TransactionInterestPosting, true, false, true},
		{TransactionOverdraftInterest, false, true, true},
		{TransactionWaiveCharges, false, false, false},
		{TransactionWithholdTax, false, true, false},
		{TransactionAnnualFee, false, true, false},
	}
	for _, tc := range tests {
		t.Run(tc.typ.String(), func(t *testing.T) {
			assert.Equal(t, tc.credit, tc.typ.IsCredit())
			assert.Equal(t, tc.debit, tc.typ.IsDebit())
			assert.Equal(t, tc.interest, tc.typ.IsInterest())
		})
	}
}

func TestAccountStatus(t *testing.T) {
	assert.True(t, StatusPrematureClosed.IsClosed())
	assert.True(t, StatusRejected.IsClosed())
	assert.False(t, StatusMatured.IsClosed())
	assert.False(t, StatusActive.IsClosed())
	assert.Equal(t, "submitted_and_pending_approval", StatusSubmittedAndPendingApproval.String())
	assert.Equal(t, "invalid", AccountStatus(1).String())
}
