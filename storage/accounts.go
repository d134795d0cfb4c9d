package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-savings-api/model"

	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, COALESCE(account_no, ''), COALESCE(external_id, ''),
	COALESCE(client_id, 0), COALESCE(group_id, 0), COALESCE(gsim_id, 0),
	deposit_type, status, terms, deposit_term,
	submitted_on, approved_on, rejected_on, withdrawn_on, activated_on, closed_on, locked_in_until,
	total_deposits, total_withdrawals, total_withdrawal_fees, total_annual_fees,
	total_fee_charge, total_penalty_charge, total_interest_earned, total_interest_posted,
	total_overdraft_interest, total_withhold_tax, account_balance,
	last_interest_calculation_date, interest_posted_till_date, version`

const transactionColumns = `id, account_id, type, transaction_date, amount,
	running_balance, cumulative_balance, balance_end_date, balance_days,
	reversed, manual, ref_no, COALESCE(charge_id, 0), COALESCE(linked_ref_no, '')`

const chargeColumns = `id, account_id, name, time_type, calculation, value,
	amount, amount_paid, amount_waived, amount_outstanding, due_date,
	fee_on_month, fee_on_day, fee_interval, penalty, active`

func scanAccount(row pgx.Row) (*model.Account, error) {
	acc := &model.Account{}
	s := &acc.Summary
	err := row.Scan(
		&acc.ID, &acc.AccountNo, &acc.ExternalID,
		&acc.ClientID, &acc.GroupID, &acc.GSIMID,
		&acc.DepositType, &acc.Status, &acc.Terms, &acc.DepositTerm,
		&acc.SubmittedOn, &acc.ApprovedOn, &acc.RejectedOn, &acc.WithdrawnOn, &acc.ActivatedOn, &acc.ClosedOn, &acc.LockedInUntil,
		&s.TotalDeposits, &s.TotalWithdrawals, &s.TotalWithdrawalFees, &s.TotalAnnualFees,
		&s.TotalFeeCharge, &s.TotalPenaltyCharge, &s.TotalInterestEarned, &s.TotalInterestPosted,
		&s.TotalOverdraftInterest, &s.TotalWithholdTax, &s.AccountBalance,
		&s.LastInterestCalculationDate, &s.InterestPostedTillDate, &acc.Version,
	)
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// loadAccount reads an account with its charges and transactions. suffix is
// appended to the account query, for row locking.
func loadAccount(ctx context.Context, q querier, id int64, suffix string) (*model.Account, error) {
	acc, err := scanAccount(q.QueryRow(ctx, "SELECT "+accountColumns+" FROM savings_accounts WHERE id = $1"+suffix, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("could not load account %d: %w", id, err)
	}

	if acc.Charges, err = loadCharges(ctx, q, id); err != nil {
		return nil, err
	}
	if acc.Transactions, err = loadTransactions(ctx, q, id); err != nil {
		return nil, err
	}
	return acc, nil
}

func loadCharges(ctx context.Context, q querier, accountID int64) ([]model.Charge, error) {
	rows, err := q.Query(ctx, "SELECT "+chargeColumns+" FROM savings_charges WHERE account_id = $1 ORDER BY id", accountID)
	if err != nil {
		return nil, fmt.Errorf("could not query charges: %w", err)
	}
	defer rows.Close()

	var charges []model.Charge
	for rows.Next() {
		var c model.Charge
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Name, &c.TimeType, &c.Calculation, &c.Value,
			&c.Amount, &c.AmountPaid, &c.AmountWaived, &c.AmountOutstanding, &c.DueDate,
			&c.FeeOnMonth, &c.FeeOnDay, &c.FeeInterval, &c.Penalty, &c.Active); err != nil {
			return nil, fmt.Errorf("could not scan charge row: %w", err)
		}
		charges = append(charges, c)
	}
	return charges, rows.Err()
}

func loadTransactions(ctx context.Context, q querier, accountID int64) ([]model.Transaction, error) {
	rows, err := q.Query(ctx, "SELECT "+transactionColumns+" FROM savings_transactions WHERE account_id = $1 ORDER BY transaction_date, id", accountID)
	if err != nil {
		return nil, fmt.Errorf("could not query transactions: %w", err)
	}
	defer rows.Close()

	var txns []model.Transaction
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Type, &t.Date, &t.Amount,
			&t.RunningBalance, &t.CumulativeBalance, &t.BalanceEndDate, &t.BalanceDays,
			&t.Reversed, &t.Manual, &t.RefNo, &t.ChargeID, &t.LinkedRefNo); err != nil {
			return nil, fmt.Errorf("could not scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// CreateAccount inserts a new account with its charges and transactions.
// An empty account number is replaced by the zero padded id.
func (s *PostgresStore) CreateAccount(ctx context.Context, acc *model.Account) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // Rollback is a no-op if the transaction has been committed.

	if err := insertAccount(ctx, tx, acc); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertAccount(ctx context.Context, tx pgx.Tx, acc *model.Account) error {
	query := `
		INSERT INTO savings_accounts (account_no, external_id, client_id, group_id, gsim_id,
			deposit_type, status, terms, deposit_term, submitted_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	err := tx.QueryRow(ctx, query,
		nullString(acc.AccountNo), nullString(acc.ExternalID), nullID(acc.ClientID), nullID(acc.GroupID), nullID(acc.GSIMID),
		acc.DepositType, acc.Status, acc.Terms, acc.DepositTerm, acc.SubmittedOn,
	).Scan(&acc.ID)
	if err != nil {
		return fmt.Errorf("could not insert account: %w", mapError(err))
	}

	if acc.AccountNo == "" {
		err := tx.QueryRow(ctx,
			"UPDATE savings_accounts SET account_no = lpad(id::text, 9, '0') WHERE id = $1 RETURNING account_no",
			acc.ID).Scan(&acc.AccountNo)
		if err != nil {
			return fmt.Errorf("could not assign account number: %w", mapError(err))
		}
	}
	acc.Version = 0
	return saveAccount(ctx, tx, acc)
}

// saveAccount writes the mutable state of a loaded account: the account row,
// charges, new and changed transactions and the journal entries of new and
// reversed interest postings.
func saveAccount(ctx context.Context, tx pgx.Tx, acc *model.Account) error {
	s := acc.Summary
	query := `
		UPDATE savings_accounts SET
			status = $3, terms = $4, deposit_term = $5,
			approved_on = $6, rejected_on = $7, withdrawn_on = $8, activated_on = $9, closed_on = $10, locked_in_until = $11,
			total_deposits = $12, total_withdrawals = $13, total_withdrawal_fees = $14, total_annual_fees = $15,
			total_fee_charge = $16, total_penalty_charge = $17, total_interest_earned = $18, total_interest_posted = $19,
			total_overdraft_interest = $20, total_withhold_tax = $21, account_balance = $22,
			last_interest_calculation_date = $23, interest_posted_till_date = $24,
			version = version + 1
		WHERE id = $1 AND version = $2`
	tag, err := tx.Exec(ctx, query, acc.ID, acc.Version,
		acc.Status, acc.Terms, acc.DepositTerm,
		acc.ApprovedOn, acc.RejectedOn, acc.WithdrawnOn, acc.ActivatedOn, acc.ClosedOn, acc.LockedInUntil,
		s.TotalDeposits, s.TotalWithdrawals, s.TotalWithdrawalFees, s.TotalAnnualFees,
		s.TotalFeeCharge, s.TotalPenaltyCharge, s.TotalInterestEarned, s.TotalInterestPosted,
		s.TotalOverdraftInterest, s.TotalWithholdTax, s.AccountBalance,
		s.LastInterestCalculationDate, s.InterestPostedTillDate,
	)
	if err != nil {
		return fmt.Errorf("could not update account %d: %w", acc.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	acc.Version++

	if err := saveCharges(ctx, tx, acc); err != nil {
		return err
	}
	return saveTransactions(ctx, tx, acc)
}

func saveCharges(ctx context.Context, tx pgx.Tx, acc *model.Account) error {
	for i := range acc.Charges {
		c := &acc.Charges[i]
		c.AccountID = acc.ID
		if c.ID == 0 {
			query := `
				INSERT INTO savings_charges (account_id, name, time_type, calculation, value,
					amount, amount_paid, amount_waived, amount_outstanding, due_date,
					fee_on_month, fee_on_day, fee_interval, penalty, active)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
				RETURNING id`
			if err := tx.QueryRow(ctx, query, c.AccountID, c.Name, c.TimeType, c.Calculation, c.Value,
				c.Amount, c.AmountPaid, c.AmountWaived, c.AmountOutstanding, c.DueDate,
				c.FeeOnMonth, c.FeeOnDay, c.FeeInterval, c.Penalty, c.Active).Scan(&c.ID); err != nil {
				return fmt.Errorf("could not insert charge: %w", err)
			}
			continue
		}
		query := `
			UPDATE savings_charges SET amount = $2, amount_paid = $3, amount_waived = $4,
				amount_outstanding = $5, due_date = $6, active = $7
			WHERE id = $1`
		if _, err := tx.Exec(ctx, query, c.ID, c.Amount, c.AmountPaid, c.AmountWaived,
			c.AmountOutstanding, c.DueDate, c.Active); err != nil {
			return fmt.Errorf("could not update charge %d: %w", c.ID, err)
		}
	}
	return nil
}

const insertTransactionSQL = `
	INSERT INTO savings_transactions (account_id, type, transaction_date, amount,
		running_balance, cumulative_balance, balance_end_date, balance_days,
		reversed, manual, ref_no, charge_id, linked_ref_no)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

const updateTransactionSQL = `
	UPDATE savings_transactions SET running_balance = $2, cumulative_balance = $3,
		balance_end_date = $4, balance_days = $5, reversed = $6, manual = $7
	WHERE id = $1`

func insertTransactionArgs(t *model.Transaction) []any {
	return []any{t.AccountID, t.Type, t.Date, t.Amount,
		t.RunningBalance, t.CumulativeBalance, t.BalanceEndDate, t.BalanceDays,
		t.Reversed, t.Manual, t.RefNo, nullID(t.ChargeID), nullString(t.LinkedRefNo)}
}

func updateTransactionArgs(t *model.Transaction) []any {
	return []any{t.ID, t.RunningBalance, t.CumulativeBalance,
		t.BalanceEndDate, t.BalanceDays, t.Reversed, t.Manual}
}

func saveTransactions(ctx context.Context, tx pgx.Tx, acc *model.Account) error {
	var posted []model.Transaction
	for i := range acc.Transactions {
		t := &acc.Transactions[i]
		t.AccountID = acc.ID
		switch {
		case t.ID == 0:
			if err := tx.QueryRow(ctx, insertTransactionSQL+" RETURNING id", insertTransactionArgs(t)...).Scan(&t.ID); err != nil {
				return fmt.Errorf("could not insert transaction %s: %w", t.RefNo, err)
			}
			posted = append(posted, *t)
		case t.Dirty:
			if _, err := tx.Exec(ctx, updateTransactionSQL, updateTransactionArgs(t)...); err != nil {
				return fmt.Errorf("could not update transaction %d: %w", t.ID, err)
			}
			if cancelsJournalEntries(*t) {
				if _, err := tx.Exec(ctx, reverseJournalEntriesSQL, reverseJournalEntriesArgs(*t)...); err != nil {
					return fmt.Errorf("could not reverse journal entries of transaction %d: %w", t.ID, err)
				}
			}
		}
		t.Dirty = false
	}

	for _, t := range posted {
		for _, je := range interestJournalEntries(acc, t) {
			if _, err := tx.Exec(ctx, insertJournalEntrySQL, journalEntryArgs(je)...); err != nil {
				return fmt.Errorf("could not insert journal entry for transaction %d: %w", t.ID, err)
			}
		}
	}
	return nil
}

// GetAccount retrieves a single account with its charges and transactions.
func (s *PostgresStore) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	return loadAccount(ctx, s.db, id, "")
}

// ListAccounts returns the accounts matching filter, without charges and
// transactions.
func (s *PostgresStore) ListAccounts(ctx context.Context, filter model.AccountFilter) ([]model.Account, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.ClientID != 0 {
		add("client_id = $%d", filter.ClientID)
	}
	if filter.GroupID != 0 {
		add("group_id = $%d", filter.GroupID)
	}
	if filter.GSIMID != 0 {
		add("gsim_id = $%d", filter.GSIMID)
	}
	if filter.Status != 0 {
		add("status = $%d", filter.Status)
	}
	if filter.DepositType != 0 {
		add("deposit_type = $%d", filter.DepositType)
	}

	query := "SELECT " + accountColumns + " FROM savings_accounts"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan account row: %w", err)
		}
		accounts = append(accounts, *acc)
	}
	return accounts, rows.Err()
}

// UpdateAccount locks an account, applies fn and persists the result. The
// gsim parent of a child account is refreshed in the same transaction.
func (s *PostgresStore) UpdateAccount(ctx context.Context, id int64, fn func(*model.Account) error) (*model.Account, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	acc, err := loadAccount(ctx, tx, id, " FOR UPDATE")
	if err != nil {
		return nil, err
	}
	if err := fn(acc); err != nil {
		return nil, err
	}
	if err := saveAccount(ctx, tx, acc); err != nil {
		return nil, err
	}
	if err := refreshGSIMs(ctx, tx, acc); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("could not commit transaction: %w", err)
	}
	return acc, nil
}

// lockAccounts locks the given accounts in a consistent order (by ID) to
// prevent deadlocks.
func lockAccounts(ctx context.Context, tx pgx.Tx, ids ...int64) error {
	rows, err := tx.Query(ctx, "SELECT id FROM savings_accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE", ids)
	if err != nil {
		return fmt.Errorf("could not query accounts for update: %w", err)
	}
	defer rows.Close()

	found := map[int64]bool{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("could not scan account row: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, id := range ids {
		if !found[id] {
			return ErrNotFound
		}
	}
	return nil
}

// TransferBetween locks both accounts, applies fn and persists both. It
// returns the source account.
func (s *PostgresStore) TransferBetween(ctx context.Context, fromID, toID int64, fn func(from, to *model.Account) error) (*model.Account, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockAccounts(ctx, tx, fromID, toID); err != nil {
		return nil, err
	}
	from, err := loadAccount(ctx, tx, fromID, "")
	if err != nil {
		return nil, err
	}
	to, err := loadAccount(ctx, tx, toID, "")
	if err != nil {
		return nil, err
	}
	if err := fn(from, to); err != nil {
		return nil, err
	}
	if err := saveAccount(ctx, tx, from); err != nil {
		return nil, err
	}
	if err := saveAccount(ctx, tx, to); err != nil {
		return nil, err
	}
	if err := refreshGSIMs(ctx, tx, from, to); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("could not commit transaction: %w", err)
	}
	return from, nil
}

// ReinvestDeposit locks a deposit, applies fn and persists both the closed
// deposit and the new one fn returns.
func (s *PostgresStore) ReinvestDeposit(ctx context.Context, id int64, fn func(*model.Account) (*model.Account, error)) (*model.Account, *model.Account, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	acc, err := loadAccount(ctx, tx, id, " FOR UPDATE")
	if err != nil {
		return nil, nil, err
	}
	next, err := fn(acc)
	if err != nil {
		return nil, nil, err
	}
	if err := saveAccount(ctx, tx, acc); err != nil {
		return nil, nil, err
	}
	if err := refreshGSIMs(ctx, tx, acc); err != nil {
		return nil, nil, err
	}
	if next != nil {
		if err := insertAccount(ctx, tx, next); err != nil {
			return nil, nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("could not commit transaction: %w", err)
	}
	return acc, next, nil
}
