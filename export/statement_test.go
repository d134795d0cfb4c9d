package export

import (
	"testing"

	"go-savings-api/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatement(t *testing.T) {
	activated := model.Date(2024, 1, 1)
	acc := &model.Account{
		ID:          7,
		AccountNo:   "000000007",
		ClientID:    3,
		DepositType: model.DepositTypeSavings,
		Status:      model.StatusActive,
		Terms:       model.Terms{Currency: "USD", Digits: 2, NominalAnnualInterestRate: decimal.NewFromInt(5)},
		SubmittedOn: activated,
		ActivatedOn: &activated,
		Summary:     model.Summary{AccountBalance: decimal.RequireFromString("1008.49")},
		Transactions: []model.Transaction{
			{Type: model.TransactionDeposit, Date: activated, Amount: decimal.NewFromInt(1000), RunningBalance: decimal.NewFromInt(1000), RefNo: "a"},
			{Type: model.TransactionInterestPosting, Date: model.Date(2024, 2, 1), Amount: decimal.RequireFromString("8.49"),
				RunningBalance: decimal.RequireFromString("1008.49"), RefNo: "b"},
		},
	}

	t.Run("account sheet holds the summary", func(t *testing.T) {
		// Act
		f, err := Statement(acc)
		require.NoError(t, err)

		// Assert
		rows, err := f.GetRows(AccountSheet)
		require.NoError(t, err)
		assert.Equal(t, []string{"Account no", "000000007"}, rows[0])

		var balance string
		for _, row := range rows {
			if len(row) == 2 && row[0] == "Account balance" {
				balance = row[1]
			}
		}
		assert.Equal(t, "1008.49", balance)
	})

	t.Run("transactions sheet lists every transaction after the header", func(t *testing.T) {
		// Act
		f, err := Statement(acc)
		require.NoError(t, err)

		// Assert
		rows, err := f.GetRows(TransactionsSheet)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "Date", rows[0][0])
		assert.Equal(t, []string{"2024-02-01", "interest_posting", "8.49", "1008.49", "", "0", "false", "b"}, rows[2])
	})

	t.Run("fixed deposits include the maturity details", func(t *testing.T) {
		// Arrange
		maturity := model.Date(2025, 1, 1)
		fd := *acc
		fd.DepositType = model.DepositTypeFixedDeposit
		fd.DepositTerm = &model.DepositTerm{DepositAmount: decimal.NewFromInt(1000), MaturityDate: &maturity}

		// Act
		f, err := Statement(&fd)
		require.NoError(t, err)

		// Assert
		rows, err := f.GetRows(AccountSheet)
		require.NoError(t, err)
		assert.Contains(t, rows, []string{"Maturity date", "2025-01-01"})
	})
}
