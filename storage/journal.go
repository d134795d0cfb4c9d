package storage

import (
	"context"
	"fmt"
	"strconv"

	"go-savings-api/model"
)

const insertJournalEntrySQL = `
	INSERT INTO journal_entries (gl_account_id, account_id, savings_transaction_id,
		transaction_id, currency, type, amount, entry_date)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func journalEntryArgs(je model.JournalEntry) []any {
	return []any{je.GLAccountID, je.AccountID, je.SavingsTransactionID,
		je.TransactionID, je.Currency, je.Type, je.Amount, je.EntryDate}
}

// reverseJournalEntriesSQL cancels the entries of a reversed posting with
// opposite entries on the same GL accounts. Both sides are left marked
// reversed, so a posting is only ever cancelled once.
const reverseJournalEntriesSQL = `
	WITH cancelled AS (
		UPDATE journal_entries SET reversed = TRUE
		WHERE savings_transaction_id = $1 AND NOT reversed
		RETURNING gl_account_id, account_id, savings_transaction_id, transaction_id,
			currency, type, amount, entry_date
	)
	INSERT INTO journal_entries (gl_account_id, account_id, savings_transaction_id,
		transaction_id, currency, type, amount, entry_date, reversed)
	SELECT gl_account_id, account_id, savings_transaction_id, transaction_id, currency,
		CASE type WHEN $2::smallint THEN $3::smallint ELSE $2::smallint END, amount, entry_date, TRUE
	FROM cancelled`

func reverseJournalEntriesArgs(t model.Transaction) []any {
	return []any{t.ID, model.JournalCredit, model.JournalDebit}
}

// cancelsJournalEntries reports whether t is a persisted interest posting
// that has been reversed.
func cancelsJournalEntries(t model.Transaction) bool {
	return t.ID != 0 && t.Reversed && t.Type == model.TransactionInterestPosting
}

// interestJournalEntries books an interest posting: a credit to the savings
// control account and a debit to interest on savings. Accounts without GL
// accounts configured are not booked.
func interestJournalEntries(acc *model.Account, t model.Transaction) []model.JournalEntry {
	if t.Type != model.TransactionInterestPosting || t.Reversed || t.ID == 0 {
		return nil
	}
	control, expense := acc.Terms.SavingsControlGLAccountID, acc.Terms.InterestOnSavingsGLAccountID
	if control == 0 || expense == 0 {
		return nil
	}
	entry := model.JournalEntry{
		AccountID:            acc.ID,
		SavingsTransactionID: t.ID,
		TransactionID:        "S" + strconv.FormatInt(t.ID, 10),
		Currency:             acc.Terms.Currency,
		Amount:               t.Amount,
		EntryDate:            t.Date,
	}
	credit, debit := entry, entry
	credit.GLAccountID, credit.Type = control, model.JournalCredit
	debit.GLAccountID, debit.Type = expense, model.JournalDebit
	return []model.JournalEntry{credit, debit}
}

// ListJournalEntries returns the journal entries booked for an account.
func (s *PostgresStore) ListJournalEntries(ctx context.Context, accountID int64) ([]model.JournalEntry, error) {
	query := `
		SELECT id, gl_account_id, account_id, savings_transaction_id, transaction_id,
			currency, type, amount, entry_date, reversed
		FROM journal_entries WHERE account_id = $1 ORDER BY id`
	rows, err := s.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("could not query journal entries: %w", err)
	}
	defer rows.Close()

	var entries []model.JournalEntry
	for rows.Next() {
		var je model.JournalEntry
		if err := rows.Scan(&je.ID, &je.GLAccountID, &je.AccountID, &je.SavingsTransactionID, &je.TransactionID,
			&je.Currency, &je.Type, &je.Amount, &je.EntryDate, &je.Reversed); err != nil {
			return nil, fmt.Errorf("could not scan journal entry row: %w", err)
		}
		entries = append(entries, je)
	}
	return entries, rows.Err()
}
