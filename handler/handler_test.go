package handler

import (
	"context"
	"testing"
	"time"

	"go-savings-api/model"
	"go-savings-api/savings"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// MockStore provides a mock implementation of the storage.Store for testing.
type MockStore struct {
	CreateAccountFunc      func(ctx context.Context, acc *model.Account) error
	GetAccountFunc         func(ctx context.Context, id int64) (*model.Account, error)
	ListAccountsFunc       func(ctx context.Context, filter model.AccountFilter) ([]model.Account, error)
	UpdateAccountFunc      func(ctx context.Context, id int64, fn func(*model.Account) error) (*model.Account, error)
	TransferBetweenFunc    func(ctx context.Context, fromID, toID int64, fn func(from, to *model.Account) error) (*model.Account, error)
	ReinvestDepositFunc    func(ctx context.Context, id int64, fn func(*model.Account) (*model.Account, error)) (*model.Account, *model.Account, error)
	CreateGSIMFunc         func(ctx context.Context, g *model.GSIM, children []*model.Account) error
	GetGSIMFunc            func(ctx context.Context, id int64) (*model.GSIM, error)
	ListGSIMByGroupFunc    func(ctx context.Context, groupID int64) ([]model.GSIM, error)
	UpdateGSIMFunc         func(ctx context.Context, id int64, fn func(*model.GSIM, []*model.Account) error) (*model.GSIM, error)
	ListJournalEntriesFunc func(ctx context.Context, accountID int64) ([]model.JournalEntry, error)
}

func (m *MockStore) CreateAccount(ctx context.Context, acc *model.Account) error {
	return m.CreateAccountFunc(ctx, acc)
}

func (m *MockStore) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	return m.GetAccountFunc(ctx, id)
}

func (m *MockStore) ListAccounts(ctx context.Context, filter model.AccountFilter) ([]model.Account, error) {
	return m.ListAccountsFunc(ctx, filter)
}

func (m *MockStore) UpdateAccount(ctx context.Context, id int64, fn func(*model.Account) error) (*model.Account, error) {
	return m.UpdateAccountFunc(ctx, id, fn)
}

func (m *MockStore) TransferBetween(ctx context.Context, fromID, toID int64, fn func(from, to *model.Account) error) (*model.Account, error) {
	return m.TransferBetweenFunc(ctx, fromID, toID, fn)
}

func (m *MockStore) ReinvestDeposit(ctx context.Context, id int64, fn func(*model.Account) (*model.Account, error)) (*model.Account, *model.Account, error) {
	return m.ReinvestDepositFunc(ctx, id, fn)
}

func (m *MockStore) CreateGSIM(ctx context.Context, g *model.GSIM, children []*model.Account) error {
	return m.CreateGSIMFunc(ctx, g, children)
}

func (m *MockStore) GetGSIM(ctx context.Context, id int64) (*model.GSIM, error) {
	return m.GetGSIMFunc(ctx, id)
}

func (m *MockStore) ListGSIMByGroup(ctx context.Context, groupID int64) ([]model.GSIM, error) {
	return m.ListGSIMByGroupFunc(ctx, groupID)
}

func (m *MockStore) UpdateGSIM(ctx context.Context, id int64, fn func(*model.GSIM, []*model.Account) error) (*model.GSIM, error) {
	return m.UpdateGSIMFunc(ctx, id, fn)
}

func (m *MockStore) ListJournalEntries(ctx context.Context, accountID int64) ([]model.JournalEntry, error) {
	return m.ListJournalEntriesFunc(ctx, accountID)
}

var today = model.Date(2024, time.March, 15)

func newService(store *MockStore) *savings.Service {
	return savings.NewService(store, savings.Policy{FinancialYearBeginningMonth: 1},
		savings.WithClock(func() time.Time { return today }))
}

// newRouter wires every handler over store the way main does.
func newRouter(store *MockStore) *mux.Router {
	svc := newService(store)
	logger := log.NewNopLogger()
	r := mux.NewRouter()
	NewSavingsHandler(svc, logger).Register(r)
	NewFixedDepositHandler(svc, logger).Register(r)
	NewGSIMHandler(svc, logger).Register(r)
	return r
}

func terms() model.Terms {
	return model.Terms{
		Currency:                  "USD",
		Digits:                    2,
		NominalAnnualInterestRate: decimal.NewFromInt(5),
		MinRequiredOpeningBalance: decimal.NewFromInt(1000),
	}
}

// activeAccount is a savings account opened on January 1st with 1000.
func activeAccount(t *testing.T, id int64) *model.Account {
	t.Helper()
	r := savings.Rules{Policy: savings.Policy{FinancialYearBeginningMonth: 1}, Today: today}
	acc, err := r.NewAccount(model.SubmitAccountRequest{ClientID: 1, SubmittedOn: "2024-01-01", Terms: terms()})
	require.NoError(t, err)
	acc.ID = id
	require.NoError(t, r.Approve(acc, model.Date(2024, time.January, 1)))
	require.NoError(t, r.Activate(acc, model.Date(2024, time.January, 1)))
	for i := range acc.Transactions {
		acc.Transactions[i].ID = int64(i + 1)
	}
	return acc
}

// updating returns an UpdateAccountFunc applying fn to acc.
func updating(acc *model.Account) func(ctx context.Context, id int64, fn func(*model.Account) error) (*model.Account, error) {
	return func(ctx context.Context, id int64, fn func(*model.Account) error) (*model.Account, error) {
		if err := fn(acc); err != nil {
			return nil, err
		}
		return acc, nil
	}
}
