package savings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-savings-api/export"
	"go-savings-api/interest"
	"go-savings-api/model"
	"go-savings-api/storage"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/xuri/excelize/v2"
)

// Service applies account commands to stored accounts. Every command runs
// against a locked copy of the account and is persisted only when it
// succeeds.
type Service struct {
	store  storage.Store
	policy Policy
	loc    *time.Location
	now    func() time.Time
	logger log.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock the business date is taken from.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the time zone the business date is taken in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a Service over store.
func NewService(store storage.Store, policy Policy, opts ...Option) *Service {
	s := &Service{
		store:  store,
		policy: policy,
		loc:    time.UTC,
		now:    time.Now,
		logger: log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.With(s.logger, "component", "savings")
	return s
}

// Today is the business date.
func (s *Service) Today() time.Time {
	return model.DateOf(s.now(), s.loc)
}

// Rules returns the account rules as of the business date.
func (s *Service) Rules() Rules {
	return Rules{Policy: s.policy, Today: s.Today()}
}

// date parses a request date. An empty date is the business date.
func (s *Service) date(value string) (time.Time, error) {
	if value == "" {
		return s.Today(), nil
	}
	d, err := model.ParseDate(value)
	if err != nil {
		return time.Time{}, invalid("error.msg.date.invalid", "date", "%v", err)
	}
	return d, nil
}

func (s *Service) update(ctx context.Context, id int64, op string, fn func(r Rules, acc *model.Account) error) (*model.Account, error) {
	r := s.Rules()
	acc, err := s.store.UpdateAccount(ctx, id, func(acc *model.Account) error {
		return fn(r, acc)
	})
	if err != nil {
		return nil, fmt.Errorf("%s account %d: %w", op, id, err)
	}
	level.Info(s.logger).Log("msg", op, "account", id, "status", acc.Status.String())
	return acc, nil
}

// SubmitApplication validates and stores a new savings or fixed deposit
// application.
func (s *Service) SubmitApplication(ctx context.Context, req model.SubmitAccountRequest) (*model.Account, error) {
	acc, err := s.Rules().NewAccount(req)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateAccount(ctx, acc); err != nil {
		return nil, fmt.Errorf("submit application: %w", err)
	}
	level.Info(s.logger).Log("msg", "application submitted", "account", acc.ID,
		"account_no", acc.AccountNo, "deposit_type", acc.DepositType.String())
	return acc, nil
}

// GetAccount returns an account with its transactions and charges.
func (s *Service) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	return s.store.GetAccount(ctx, id)
}

// ListAccounts returns the accounts matching filter.
func (s *Service) ListAccounts(ctx context.Context, filter model.AccountFilter) ([]model.Account, error) {
	return s.store.ListAccounts(ctx, filter)
}

// Approve approves a submitted application.
func (s *Service) Approve(ctx context.Context, id int64, req model.StateRequest) (*model.Account, error) {
	date, err := s.date(req.Date)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, id, "approve", func(r Rules, acc *model.Account) error {
		return r.Approve(acc, date)
	})
}

// UndoApproval returns an approved application to the submitted state.
func (s *Service) UndoApproval(ctx context.Context, id int64) (*model.Account, error) {
	return s.update(ctx, id, "undo approval", func(r Rules, acc *model.Account) error {
		return r.UndoApproval(acc)
	})
}

// Reject rejects a submitted application.
func (s *Service) Reject(ctx context.Context, id int64, req model.StateRequest) (*model.Account, error) {
	date, err := s.date(req.Date)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, id, "reject", func(r Rules, acc *model.Account) error {
		return r.Reject(acc, date)
	})
}

// WithdrawApplication closes a submitted application on the applicant's
// request.
func (s *Service) WithdrawApplication(ctx context.Context, id int64, req model.StateRequest) (*model.Account, error) {
	date, err := s.date(req.Date)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, id, "withdraw application", func(r Rules, acc *model.Account) error {
		return r.WithdrawApplication(acc, date)
	})
}

// Activate activates an approved account.
func (s *Service) Activate(ctx context.Context, id int64, req model.StateRequest) (*model.Account, error) {
	date, err := s.date(req.Date)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, id, "activate", func(r Rules, acc *model.Account) error {
		return r.Activate(acc, date)
	})
}

// Deposit credits an active savings account.
func (s *Service) Deposit(ctx context.Context, id int64, req model.TransactionRequest) (*model.Transaction, error) {
	date, err := s.date(req.Date)
	if err != nil {
		return nil, err
	}
	var txn *model.Transaction
	acc, err := s.update(ctx, id, "deposit", func(r Rules, acc *model.Account) error {
		var err error
		txn, err = r.Deposit(acc, date, req.Amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return byRef(acc, txn.RefNo), nil
}

// Withdraw debits an active savings account.
func (s *Service) Withdraw(ctx context.Context, id int64, req model.TransactionRequest) (*model.Transaction, error) {
	date, err := s.date(req.Date)
	if err != nil {
		return nil, err
	}
	var txn *model.Transaction
	acc, err := s.update(ctx, id, "withdraw", func(r Rules, acc *model.Account) error {
		var err error
		txn, err = r.Withdraw(acc, date, req.Amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return byRef(acc, txn.RefNo), nil
}

// UndoTransaction reverses a deposit or a withdrawal.
func (s *Service) UndoTransaction(ctx context.Context, id, txnID int64) (*model.Account, error) {
	return s.update(ctx, id, "undo transaction", func(r Rules, acc *model.Account) error {
		return r.UndoTransaction(acc, txnID)
	})
}

// AddCharge attaches a new charge to an account.
func (s *Service) AddCharge(ctx context.Context, id int64, req model.ChargeRequest) (*model.Charge, error) {
	c, err := NewCharge(req)
	if err != nil {
		return nil, err
	}
	acc, err := s.update(ctx, id, "add charge", func(r Rules, acc *model.Account) error {
		_, err := r.AddCharge(acc, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	added := acc.Charges[len(acc.Charges)-1]
	return &added, nil
}

// PayCharge pays towards an outstanding charge.
func (s *Service) PayCharge(ctx context.Context, id, chargeID int64, req model.TransactionRequest) (*model.Transaction, error) {
	date, err := s.date(req.Date)
	if err != nil {
		return nil, err
	}
	var txn *model.Transaction
	acc, err := s.update(ctx, id, "pay charge", func(r Rules, acc *model.Account) error {
		var err error
		txn, err = r.PayCharge(acc, chargeID, date, req.Amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return byRef(acc, txn.RefNo), nil
}

// WaiveCharge writes off what is outstanding on a charge.
func (s *Service) WaiveCharge(ctx context.Context, id, chargeID int64) (*model.Transaction, error) {
	var txn *model.Transaction
	acc, err := s.update(ctx, id, "waive charge", func(r Rules, acc *model.Account) error {
		var err error
		txn, err = r.WaiveCharge(acc, chargeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return byRef(acc, txn.RefNo), nil
}

// CalculateInterest returns the account with the interest earned up to the
// requested date. Nothing is stored.
func (s *Service) CalculateInterest(ctx context.Context, id int64, req model.StateRequest) (*model.Account, error) {
	date, err := s.date(req.Date)
	if err != nil {
		return nil, err
	}
	acc, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.Rules().CalculateInterest(acc, date); err != nil {
		return nil, err
	}
	return acc, nil
}

// PostInterest posts the interest due up to the business date, or up to
// the day before the requested date when one is given.
func (s *Service) PostInterest(ctx context.Context, id int64, req model.StateRequest) (*model.Account, error) {
	if req.Date == "" {
		return s.update(ctx, id, "post interest", func(r Rules, acc *model.Account) error {
			return r.PostInterest(acc, r.Today)
		})
	}
	date, err := s.date(req.Date)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, id, "post interest as on", func(r Rules, acc *model.Account) error {
		return r.PostInterestAsOn(acc, date)
	})
}

// Close closes a savings account.
func (s *Service) Close(ctx context.Context, id int64, req model.CloseRequest) (*model.Account, error) {
	date, err := s.date(req.Date)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, id, "close", func(r Rules, acc *model.Account) error {
		return r.Close(acc, req, date)
	})
}

// PrematureAmount returns what closing a fixed deposit on the requested date
// would pay out.
func (s *Service) PrematureAmount(ctx context.Context, id int64, req model.StateRequest) (*model.PrematureAmountResponse, error) {
	date, err := s.date(req.Date)
	if err != nil {
		return nil, err
	}
	acc, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Rules().PrematureAmount(acc, date)
}

// PrematureClose closes a fixed deposit before maturity.
func (s *Service) PrematureClose(ctx context.Context, id int64, req model.CloseRequest) (*model.Account, error) {
	date, err := s.date(req.Date)
	if err != nil {
		return nil, err
	}
	if req.Action != model.ClosureTransferToSavings {
		return s.update(ctx, id, "premature close", func(r Rules, acc *model.Account) error {
			return r.PrematureClose(acc, req, date, nil)
		})
	}
	return s.closeWithTransfer(ctx, id, req, "premature close", func(r Rules, from, to *model.Account) error {
		return r.PrematureClose(from, req, date, to)
	})
}

// CloseMatured closes a matured fixed deposit. When the deposit is
// reinvested the new deposit is returned as well.
func (s *Service) CloseMatured(ctx context.Context, id int64, req model.CloseRequest) (closed, reinvested *model.Account, err error) {
	date, err := s.date(req.Date)
	if err != nil {
		return nil, nil, err
	}
	action := req.Action
	if action == 0 {
		acc, err := s.store.GetAccount(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if acc.DepositTerm != nil {
			action = acc.DepositTerm.OnClosure
		}
	}

	switch action {
	case model.ClosureReinvest:
		r := s.Rules()
		closed, reinvested, err = s.store.ReinvestDeposit(ctx, id, func(acc *model.Account) (*model.Account, error) {
			return r.CloseMatured(acc, req, date, nil)
		})
		if err != nil {
			return nil, nil, fmt.Errorf("close matured account %d: %w", id, err)
		}
		level.Info(s.logger).Log("msg", "deposit reinvested", "account", id, "reinvested", reinvested.ID)
		return closed, reinvested, nil
	case model.ClosureTransferToSavings:
		req.Action = action
		closed, err = s.closeWithTransfer(ctx, id, req, "close matured", func(r Rules, from, to *model.Account) error {
			_, err := r.CloseMatured(from, req, date, to)
			return err
		})
		return closed, nil, err
	}
	closed, err = s.update(ctx, id, "close matured", func(r Rules, acc *model.Account) error {
		_, err := r.CloseMatured(acc, req, date, nil)
		return err
	})
	return closed, nil, err
}

// closeWithTransfer runs a closure that moves the balance of a deposit into
// a savings account, locking both.
func (s *Service) closeWithTransfer(ctx context.Context, id int64, req model.CloseRequest, op string,
	fn func(r Rules, from, to *model.Account) error) (*model.Account, error) {
	toID := req.ToSavingsAccountID
	if toID == 0 {
		acc, err := s.store.GetAccount(ctx, id)
		if err != nil {
			return nil, err
		}
		if acc.DepositTerm != nil {
			toID = acc.DepositTerm.TransferToSavingsID
		}
	}
	if toID == 0 {
		return nil, invalid(fdCode+".transfer.to.savings.account.required", "to_savings_account_id", "transfer needs a savings account")
	}

	r := s.Rules()
	acc, err := s.store.TransferBetween(ctx, id, toID, func(from, to *model.Account) error {
		return fn(r, from, to)
	})
	if err != nil {
		return nil, fmt.Errorf("%s account %d: %w", op, id, err)
	}
	level.Info(s.logger).Log("msg", op, "account", id, "to_account", toID, "status", acc.Status.String())
	return acc, nil
}

// MatureDeposits marks every active fixed deposit whose maturity date has
// passed as matured. It returns how many deposits matured.
func (s *Service) MatureDeposits(ctx context.Context) (int, error) {
	deposits, err := s.store.ListAccounts(ctx, model.AccountFilter{
		Status:      model.StatusActive,
		DepositType: model.DepositTypeFixedDeposit,
	})
	if err != nil {
		return 0, err
	}

	today := s.Today()
	matured := 0
	var errs *multierror.Error
	for _, d := range deposits {
		if d.DepositTerm == nil || d.DepositTerm.MaturityDate == nil || d.DepositTerm.MaturityDate.After(today) {
			continue
		}
		if _, err := s.update(ctx, d.ID, "mature", func(r Rules, acc *model.Account) error {
			return r.Mature(acc)
		}); err != nil {
			level.Error(s.logger).Log("msg", "could not mature deposit", "account", d.ID, "err", err)
			errs = multierror.Append(errs, err)
			continue
		}
		matured++
	}
	return matured, errs.ErrorOrNil()
}

// PayDueCharges pays the fees that have fallen due on every active account.
// An account that cannot pay is left unchanged and reported. It returns the
// number of payments made.
func (s *Service) PayDueCharges(ctx context.Context) (int, error) {
	accounts, err := s.store.ListAccounts(ctx, model.AccountFilter{Status: model.StatusActive})
	if err != nil {
		return 0, err
	}

	r := s.Rules()
	paid := 0
	var errs *multierror.Error
	for _, a := range accounts {
		n := 0
		_, err := s.store.UpdateAccount(ctx, a.ID, func(acc *model.Account) error {
			var err error
			if n, err = r.PayDueCharges(acc); err == nil && n == 0 {
				return errNothingDue
			}
			return err
		})
		switch {
		case errors.Is(err, errNothingDue):
		case err != nil:
			level.Error(s.logger).Log("msg", "could not pay due charges", "account", a.ID, "err", err)
			errs = multierror.Append(errs, fmt.Errorf("pay due charges account %d: %w", a.ID, err))
		default:
			level.Info(s.logger).Log("msg", "due charges paid", "account", a.ID, "payments", n)
			paid += n
		}
	}
	return paid, errs.ErrorOrNil()
}

// InterestCalculator computes the maturity amount of a principal with the
// compound interest formula.
func (s *Service) InterestCalculator(req model.InterestCalculatorRequest) (*model.InterestCalculatorResponse, error) {
	if req.AnnualInterestRate.IsNegative() {
		return nil, invalid(fdCode+".calculator.rate.negative", "annual_interest_rate", "interest rate cannot be negative")
	}
	amount, earned, err := interest.MaturityAmount(req.Principal, req.AnnualInterestRate, req.TenureMonths, req.CompoundingMonths, 2)
	switch {
	case errors.Is(err, interest.ErrInvalidTenure):
		return nil, invalid(fdCode+".calculator.tenure.invalid", "tenure_months", "%v", err)
	case errors.Is(err, interest.ErrInvalidCompounding):
		return nil, invalid(fdCode+".calculator.compounding.invalid", "compounding_months", "%v", err)
	case errors.Is(err, interest.ErrNegativePrincipal):
		return nil, invalid(fdCode+".calculator.principal.negative", "principal", "%v", err)
	case err != nil:
		return nil, err
	}
	return &model.InterestCalculatorResponse{MaturityAmount: amount, Interest: earned}, nil
}

// JournalEntries returns the journal entries booked for an account.
func (s *Service) JournalEntries(ctx context.Context, id int64) ([]model.JournalEntry, error) {
	if _, err := s.store.GetAccount(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListJournalEntries(ctx, id)
}

// Statement renders the account and its transactions as a workbook.
func (s *Service) Statement(ctx context.Context, id int64) (*excelize.File, error) {
	acc, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	return export.Statement(acc)
}
