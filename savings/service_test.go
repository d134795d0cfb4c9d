package savings

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"go-savings-api/model"
	"go-savings-api/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory storage.Store. Updates run fn on copies and keep
// them only when fn succeeds, like the database transactions they stand in
// for.
type memStore struct {
	nextID   int64
	nextRow  int64
	accounts map[int64]*model.Account
	gsims    map[int64]*model.GSIM
}

func newMemStore() *memStore {
	return &memStore{accounts: map[int64]*model.Account{}, gsims: map[int64]*model.GSIM{}}
}

func (m *memStore) save(acc *model.Account) {
	for i := range acc.Charges {
		if acc.Charges[i].ID == 0 {
			m.nextRow++
			acc.Charges[i].ID = m.nextRow
		}
		acc.Charges[i].AccountID = acc.ID
	}
	for i := range acc.Transactions {
		if acc.Transactions[i].ID == 0 {
			m.nextRow++
			acc.Transactions[i].ID = m.nextRow
		}
		acc.Transactions[i].AccountID = acc.ID
		acc.Transactions[i].Dirty = false
	}
	acc.Version++
	m.accounts[acc.ID] = copyAccount(acc)
	m.refreshGSIM(acc.GSIMID)
}

// refreshGSIM derives the parent totals of a gsim from its stored children.
func (m *memStore) refreshGSIM(id int64) {
	g, ok := m.gsims[id]
	if !ok {
		return
	}
	children, _ := m.ListAccounts(context.Background(), model.AccountFilter{GSIMID: id})
	if len(children) == 0 {
		return
	}
	g.ParentDeposit = decimal.Zero
	for _, c := range children {
		g.ParentDeposit = g.ParentDeposit.Add(c.Summary.AccountBalance)
	}
	g.ChildCount = len(children)
	g.Status = children[0].Status
}

func (m *memStore) insert(acc *model.Account) {
	m.nextID++
	acc.ID = m.nextID
	acc.Version = 0
	m.save(acc)
}

func (m *memStore) CreateAccount(ctx context.Context, acc *model.Account) error {
	m.insert(acc)
	return nil
}

func (m *memStore) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	acc, ok := m.accounts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyAccount(acc), nil
}

func (m *memStore) ListAccounts(ctx context.Context, filter model.AccountFilter) ([]model.Account, error) {
	var out []model.Account
	for _, acc := range m.accounts {
		if filter.Status != 0 && acc.Status != filter.Status ||
			filter.DepositType != 0 && acc.DepositType != filter.DepositType ||
			filter.GSIMID != 0 && acc.GSIMID != filter.GSIMID {
			continue
		}
		out = append(out, *copyAccount(acc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpdateAccount(ctx context.Context, id int64, fn func(*model.Account) error) (*model.Account, error) {
	acc, err := m.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(acc); err != nil {
		return nil, err
	}
	m.save(acc)
	return acc, nil
}

func (m *memStore) TransferBetween(ctx context.Context, fromID, toID int64, fn func(from, to *model.Account) error) (*model.Account, error) {
	from, err := m.GetAccount(ctx, fromID)
	if err != nil {
		return nil, err
	}
	to, err := m.GetAccount(ctx, toID)
	if err != nil {
		return nil, err
	}
	if err := fn(from, to); err != nil {
		return nil, err
	}
	m.save(from)
	m.save(to)
	return from, nil
}

func (m *memStore) ReinvestDeposit(ctx context.Context, id int64, fn func(*model.Account) (*model.Account, error)) (*model.Account, *model.Account, error) {
	acc, err := m.GetAccount(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	next, err := fn(acc)
	if err != nil {
		return nil, nil, err
	}
	m.save(acc)
	if next != nil {
		m.insert(next)
	}
	return acc, next, nil
}

func (m *memStore) CreateGSIM(ctx context.Context, g *model.GSIM, children []*model.Account) error {
	m.nextID++
	g.ID = m.nextID
	g.Children = nil
	for _, c := range children {
		c.GSIMID = g.ID
		m.insert(c)
		g.Children = append(g.Children, *c)
	}
	g.ChildCount = len(children)
	stored := *g
	m.gsims[g.ID] = &stored
	return nil
}

func (m *memStore) GetGSIM(ctx context.Context, id int64) (*model.GSIM, error) {
	g, ok := m.gsims[id]
	if !ok {
		return nil, storage.ErrGSIMNotFound
	}
	out := *g
	children, _ := m.ListAccounts(ctx, model.AccountFilter{GSIMID: id})
	out.Children = children
	return &out, nil
}

func (m *memStore) ListGSIMByGroup(ctx context.Context, groupID int64) ([]model.GSIM, error) {
	var out []model.GSIM
	for _, g := range m.gsims {
		if g.GroupID == groupID {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (m *memStore) UpdateGSIM(ctx context.Context, id int64, fn func(*model.GSIM, []*model.Account) error) (*model.GSIM, error) {
	g, err := m.GetGSIM(ctx, id)
	if err != nil {
		return nil, err
	}
	var children []*model.Account
	for _, c := range g.Children {
		children = append(children, copyAccount(&c))
	}
	if err := fn(g, children); err != nil {
		return nil, err
	}
	g.Children = nil
	for _, c := range children {
		m.save(c)
		g.Children = append(g.Children, *c)
	}
	stored := *g
	m.gsims[id] = &stored
	return g, nil
}

func (m *memStore) ListJournalEntries(ctx context.Context, accountID int64) ([]model.JournalEntry, error) {
	return nil, nil
}

func newTestService(store storage.Store) *Service {
	return NewService(store, Policy{FinancialYearBeginningMonth: 1}, WithClock(func() time.Time { return today }))
}

func submitted(t *testing.T, svc *Service, req model.SubmitAccountRequest) *model.Account {
	t.Helper()
	if req.ClientID == 0 {
		req.ClientID = 1
	}
	if req.SubmittedOn == "" {
		req.SubmittedOn = "2024-01-01"
	}
	req.Terms = monthlyTerms()
	acc, err := svc.SubmitApplication(context.Background(), req)
	require.NoError(t, err)
	return acc
}

// opened submits, approves and activates an account on January 1st.
func opened(t *testing.T, svc *Service, term *model.DepositTerm) *model.Account {
	t.Helper()
	ctx := context.Background()
	acc := submitted(t, svc, model.SubmitAccountRequest{DepositTerm: term})
	_, err := svc.Approve(ctx, acc.ID, model.StateRequest{Date: "2024-01-01"})
	require.NoError(t, err)
	acc, err = svc.Activate(ctx, acc.ID, model.StateRequest{Date: "2024-01-01"})
	require.NoError(t, err)
	return acc
}

func monthDeposit() *model.DepositTerm {
	return &model.DepositTerm{DepositAmount: dec("1000"), DepositPeriod: 1, DepositPeriodFrequency: model.FrequencyMonths}
}

func TestServiceToday(t *testing.T) {
	t.Run("business date in the configured zone", func(t *testing.T) {
		// Arrange
		kolkata, err := time.LoadLocation("Asia/Kolkata")
		require.NoError(t, err)
		svc := NewService(newMemStore(), Policy{}, WithLocation(kolkata),
			WithClock(func() time.Time { return time.Date(2024, time.March, 14, 20, 0, 0, 0, time.UTC) }))

		// Act
		got := svc.Today()

		// Assert
		assert.Equal(t, model.Date(2024, time.March, 15), got)
	})

	t.Run("request dates must parse", func(t *testing.T) {
		svc := newTestService(newMemStore())

		_, err := svc.Approve(context.Background(), 1, model.StateRequest{Date: "15/03/2024"})

		assertCode(t, "error.msg.date.invalid", err)
	})
}

func TestServiceAccountCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("submit stores the application", func(t *testing.T) {
		store := newMemStore()
		svc := newTestService(store)

		acc := submitted(t, svc, model.SubmitAccountRequest{})

		assert.Equal(t, int64(1), acc.ID)
		assert.Contains(t, store.accounts, acc.ID)
		assert.Equal(t, model.StatusSubmittedAndPendingApproval, store.accounts[acc.ID].Status)
	})

	t.Run("deposit returns the stored transaction", func(t *testing.T) {
		// Arrange
		store := newMemStore()
		svc := newTestService(store)
		acc := opened(t, svc, nil)

		// Act
		txn, err := svc.Deposit(ctx, acc.ID, model.TransactionRequest{Date: "2024-02-01", Amount: dec("100")})

		// Assert
		require.NoError(t, err)
		assert.NotZero(t, txn.ID)
		assert.Equal(t, acc.ID, txn.AccountID)
		assertDecimal(t, "1100", txn.RunningBalance)
		assertDecimal(t, "1100", store.accounts[acc.ID].Summary.AccountBalance)
	})

	t.Run("a rejected withdrawal is not stored", func(t *testing.T) {
		// Arrange
		store := newMemStore()
		svc := newTestService(store)
		acc := opened(t, svc, nil)
		version := store.accounts[acc.ID].Version

		// Act
		_, err := svc.Withdraw(ctx, acc.ID, model.TransactionRequest{Amount: dec("5000")})

		// Assert
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Len(t, store.accounts[acc.ID].Transactions, 1)
		assert.Equal(t, version, store.accounts[acc.ID].Version)
	})

	t.Run("unknown account", func(t *testing.T) {
		svc := newTestService(newMemStore())
		_, err := svc.Deposit(ctx, 42, model.TransactionRequest{Amount: dec("1")})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("post interest without a date uses the business date", func(t *testing.T) {
		store := newMemStore()
		svc := newTestService(store)
		acc := opened(t, svc, nil)

		got, err := svc.PostInterest(ctx, acc.ID, model.StateRequest{})

		require.NoError(t, err)
		assertDecimal(t, "1008.24", got.Summary.AccountBalance)
	})

	t.Run("calculate interest stores nothing", func(t *testing.T) {
		store := newMemStore()
		svc := newTestService(store)
		acc := opened(t, svc, nil)

		got, err := svc.CalculateInterest(ctx, acc.ID, model.StateRequest{})

		require.NoError(t, err)
		assertDecimal(t, "10.31", got.Summary.TotalInterestEarned)
		assert.True(t, store.accounts[acc.ID].Summary.TotalInterestEarned.IsZero())
	})

	t.Run("add then pay a charge", func(t *testing.T) {
		// Arrange
		store := newMemStore()
		svc := newTestService(store)
		acc := opened(t, svc, nil)

		// Act
		c, err := svc.AddCharge(ctx, acc.ID, model.ChargeRequest{
			Name: "Statement", TimeType: model.ChargeSpecifiedDueDate, Calculation: model.ChargeFlat, Value: dec("10"), DueDate: "2024-03-01",
		})
		require.NoError(t, err)
		txn, err := svc.PayCharge(ctx, acc.ID, c.ID, model.TransactionRequest{Amount: dec("10")})

		// Assert
		require.NoError(t, err)
		assert.NotZero(t, c.ID)
		assert.Equal(t, c.ID, txn.ChargeID)
		assertDecimal(t, "990", store.accounts[acc.ID].Summary.AccountBalance)
	})

	t.Run("pay due charges across accounts", func(t *testing.T) {
		// Arrange
		store := newMemStore()
		svc := newTestService(store)
		charged := opened(t, svc, nil)
		idle := opened(t, svc, nil)
		_, err := svc.AddCharge(ctx, charged.ID, model.ChargeRequest{
			Name: "Maintenance", TimeType: model.ChargeMonthlyFee, Calculation: model.ChargeFlat, Value: dec("5"),
		})
		require.NoError(t, err)
		idleVersion := store.accounts[idle.ID].Version

		// Act
		paid, err := svc.PayDueCharges(ctx)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 2, paid)
		assertDecimal(t, "990", store.accounts[charged.ID].Summary.AccountBalance)
		assert.Equal(t, model.Date(2024, time.April, 1), *store.accounts[charged.ID].Charges[0].DueDate)
		assert.Equal(t, idleVersion, store.accounts[idle.ID].Version)

		again, err := svc.PayDueCharges(ctx)
		require.NoError(t, err)
		assert.Zero(t, again)
	})
}

func TestServiceFixedDeposits(t *testing.T) {
	ctx := context.Background()

	t.Run("mature deposits past their maturity date", func(t *testing.T) {
		// Arrange
		store := newMemStore()
		svc := newTestService(store)
		due := opened(t, svc, monthDeposit())
		yearly := monthDeposit()
		yearly.DepositPeriod = 12
		running := opened(t, svc, yearly)
		opened(t, svc, nil)

		// Act
		n, err := svc.MatureDeposits(ctx)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, model.StatusMatured, store.accounts[due.ID].Status)
		assertDecimal(t, "1004.25", store.accounts[due.ID].Summary.AccountBalance)
		assert.Equal(t, model.StatusActive, store.accounts[running.ID].Status)
	})

	t.Run("close matured and reinvest", func(t *testing.T) {
		// Arrange
		store := newMemStore()
		svc := newTestService(store)
		term := monthDeposit()
		term.OnClosure = model.ClosureReinvest
		fd := opened(t, svc, term)
		_, err := svc.MatureDeposits(ctx)
		require.NoError(t, err)

		// Act
		closed, reinvested, err := svc.CloseMatured(ctx, fd.ID, model.CloseRequest{})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, model.StatusClosed, closed.Status)
		require.NotNil(t, reinvested)
		assert.NotEqual(t, fd.ID, reinvested.ID)
		assert.Equal(t, model.StatusActive, store.accounts[reinvested.ID].Status)
		assertDecimal(t, "1004.25", store.accounts[reinvested.ID].Summary.AccountBalance)
	})

	t.Run("premature close into the linked savings account", func(t *testing.T) {
		// Arrange
		store := newMemStore()
		svc := newTestService(store)
		savingsAcc := opened(t, svc, nil)
		term := monthDeposit()
		term.DepositPeriod = 12
		term.OnClosure = model.ClosureTransferToSavings
		term.TransferToSavingsID = savingsAcc.ID
		fd := opened(t, svc, term)

		// Act
		closed, err := svc.PrematureClose(ctx, fd.ID, model.CloseRequest{Action: model.ClosureTransferToSavings})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, model.StatusPrematureClosed, closed.Status)
		assert.True(t, store.accounts[fd.ID].Summary.AccountBalance.IsZero())
		balance := store.accounts[savingsAcc.ID].Summary.AccountBalance
		assert.True(t, balance.GreaterThan(dec("2000")), "savings balance %s", balance)
	})

	t.Run("premature transfer needs a savings account", func(t *testing.T) {
		store := newMemStore()
		svc := newTestService(store)
		term := monthDeposit()
		term.DepositPeriod = 12
		fd := opened(t, svc, term)

		_, err := svc.PrematureClose(ctx, fd.ID, model.CloseRequest{Action: model.ClosureTransferToSavings})

		assertCode(t, "error.msg.fixeddepositaccount.transfer.to.savings.account.required", err)
	})

	t.Run("interest calculator", func(t *testing.T) {
		svc := newTestService(newMemStore())

		resp, err := svc.InterestCalculator(model.InterestCalculatorRequest{
			Principal: dec("1000"), AnnualInterestRate: dec("12"), TenureMonths: 12, CompoundingMonths: 3,
		})

		require.NoError(t, err)
		assert.Equal(t, "1125.51", resp.MaturityAmount.StringFixed(2))
		assert.Equal(t, "125.51", resp.Interest.StringFixed(2))
	})

	t.Run("interest calculator rejects a zero tenure", func(t *testing.T) {
		svc := newTestService(newMemStore())

		_, err := svc.InterestCalculator(model.InterestCalculatorRequest{
			Principal: dec("1000"), AnnualInterestRate: dec("12"), CompoundingMonths: 3,
		})

		assertCode(t, "error.msg.fixeddepositaccount.calculator.tenure.invalid", err)
	})
}

func TestServiceGSIM(t *testing.T) {
	ctx := context.Background()
	template := model.SubmitAccountRequest{SubmittedOn: "2024-01-01", Terms: monthlyTerms()}

	t.Run("submit and approve every child", func(t *testing.T) {
		// Arrange
		store := newMemStore()
		svc := newTestService(store)
		g, err := svc.SubmitGSIM(ctx, model.GSIMRequest{GroupID: 5, ClientIDs: []int64{11, 12}, Template: template})
		require.NoError(t, err)

		// Act
		approved, err := svc.ApproveGSIM(ctx, g.ID, model.StateRequest{Date: "2024-01-02"})
		require.NoError(t, err)
		activated, err := svc.ActivateGSIM(ctx, g.ID, model.StateRequest{Date: "2024-01-03"})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, model.StatusApproved, approved.Status)
		assert.Equal(t, model.StatusActive, activated.Status)
		assert.Equal(t, 2, activated.ChildCount)
		assertDecimal(t, "2000", activated.ParentDeposit)
		for _, c := range activated.Children {
			assert.Equal(t, int64(5), c.GroupID)
			assert.Equal(t, model.StatusActive, store.accounts[c.ID].Status)
		}
	})

	t.Run("child movements update the parent deposit", func(t *testing.T) {
		// Arrange
		svc := newTestService(newMemStore())
		g, err := svc.SubmitGSIM(ctx, model.GSIMRequest{GroupID: 5, ClientIDs: []int64{11, 12}, Template: template})
		require.NoError(t, err)
		_, err = svc.ApproveGSIM(ctx, g.ID, model.StateRequest{Date: "2024-01-02"})
		require.NoError(t, err)
		_, err = svc.ActivateGSIM(ctx, g.ID, model.StateRequest{Date: "2024-01-03"})
		require.NoError(t, err)

		// Act
		_, err = svc.Deposit(ctx, g.Children[0].ID, model.TransactionRequest{Date: "2024-02-01", Amount: dec("500")})
		require.NoError(t, err)
		got, err := svc.GetGSIM(ctx, g.ID)

		// Assert
		require.NoError(t, err)
		assertDecimal(t, "2500", got.ParentDeposit)
		assert.Equal(t, 2, got.ChildCount)
		assert.Equal(t, model.StatusActive, got.Status)
	})

	t.Run("clients must be distinct", func(t *testing.T) {
		svc := newTestService(newMemStore())
		_, err := svc.SubmitGSIM(ctx, model.GSIMRequest{GroupID: 5, ClientIDs: []int64{11, 11}, Template: template})
		assertCode(t, "error.msg.gsim.client.invalid", err)
	})

	t.Run("one failing child leaves the group untouched", func(t *testing.T) {
		// Arrange
		store := newMemStore()
		svc := newTestService(store)
		g, err := svc.SubmitGSIM(ctx, model.GSIMRequest{GroupID: 5, ClientIDs: []int64{11, 12}, Template: template})
		require.NoError(t, err)
		second := g.Children[1].ID
		_, err = svc.Approve(ctx, second, model.StateRequest{Date: "2024-01-02"})
		require.NoError(t, err)

		// Act
		_, err = svc.ApproveGSIM(ctx, g.ID, model.StateRequest{Date: "2024-01-02"})

		// Assert
		var v *ValidationError
		require.True(t, errors.As(err, &v))
		assert.Equal(t, model.StatusSubmittedAndPendingApproval, store.accounts[g.Children[0].ID].Status)
		assert.Equal(t, model.StatusSubmittedAndPendingApproval, store.gsims[g.ID].Status)
	})

	t.Run("unknown gsim", func(t *testing.T) {
		svc := newTestService(newMemStore())
		_, err := svc.ApproveGSIM(ctx, 9, model.StateRequest{})
		assert.ErrorIs(t, err, storage.ErrGSIMNotFound)
	})
}

var _ storage.Store = (*memStore)(nil)

func TestStatement(t *testing.T) {
	// Arrange
	store := newMemStore()
	svc := newTestService(store)
	acc := opened(t, svc, nil)

	// Act
	f, err := svc.Statement(context.Background(), acc.ID)

	// Assert
	require.NoError(t, err)
	defer f.Close()
	assert.NotEmpty(t, f.GetSheetList())
}

