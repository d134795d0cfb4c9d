package storage

import (
	"context"
	"fmt"

	"go-savings-api/model"

	"github.com/jackc/pgx/v5"
)

// PostingStore is the storage the scheduled interest poster works against.
type PostingStore interface {
	// ActiveAccountIDs pages through active accounts in id order.
	ActiveAccountIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)
	// BeginPosting opens the transaction one group of accounts is posted in.
	BeginPosting(ctx context.Context) (PostingBatch, error)
}

// PostingBatch writes the interest postings of a group of accounts in one
// database transaction.
type PostingBatch interface {
	// Load locks and reads an account. A failed load leaves the batch usable.
	Load(ctx context.Context, id int64) (*model.Account, error)
	// Apply writes the summaries and new or changed transactions of
	// accounts, then books journal entries for the new interest postings and
	// cancels those of reversed ones.
	Apply(ctx context.Context, accounts []*model.Account) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ActiveAccountIDs pages through active accounts in id order.
func (s *PostgresStore) ActiveAccountIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	rows, err := s.db.Query(ctx,
		"SELECT id FROM savings_accounts WHERE status = $1 AND id > $2 ORDER BY id LIMIT $3",
		model.StatusActive, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("could not query active accounts: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("could not scan account row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// BeginPosting opens a read uncommitted transaction for a posting batch.
func (s *PostgresStore) BeginPosting(ctx context.Context) (PostingBatch, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadUncommitted})
	if err != nil {
		return nil, fmt.Errorf("could not begin posting transaction: %w", err)
	}
	return &postingBatch{tx: tx}, nil
}

type postingBatch struct {
	tx pgx.Tx
}

// Load reads the account inside a savepoint so that a lock failure does not
// abort the surrounding transaction.
func (b *postingBatch) Load(ctx context.Context, id int64) (*model.Account, error) {
	sp, err := b.tx.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not create savepoint: %w", err)
	}
	acc, err := loadAccount(ctx, sp, id, " FOR UPDATE NOWAIT")
	if err != nil {
		_ = sp.Rollback(ctx)
		return nil, err
	}
	if err := sp.Commit(ctx); err != nil {
		return nil, fmt.Errorf("could not release savepoint: %w", err)
	}
	return acc, nil
}

const updateSummarySQL = `
	UPDATE savings_accounts SET
		total_deposits = $2, total_withdrawals = $3, total_withdrawal_fees = $4, total_annual_fees = $5,
		total_fee_charge = $6, total_penalty_charge = $7, total_interest_earned = $8, total_interest_posted = $9,
		total_overdraft_interest = $10, total_withhold_tax = $11, account_balance = $12,
		last_interest_calculation_date = $13, interest_posted_till_date = $14,
		version = version + 1
	WHERE id = $1`

// Apply sends every write of the group in one round trip, then reads back
// the ids of the inserted transactions by reference number to book their
// journal entries.
func (b *postingBatch) Apply(ctx context.Context, accounts []*model.Account) error {
	batch := &pgx.Batch{}
	var refs []string
	for _, acc := range accounts {
		s := acc.Summary
		batch.Queue(updateSummarySQL, acc.ID,
			s.TotalDeposits, s.TotalWithdrawals, s.TotalWithdrawalFees, s.TotalAnnualFees,
			s.TotalFeeCharge, s.TotalPenaltyCharge, s.TotalInterestEarned, s.TotalInterestPosted,
			s.TotalOverdraftInterest, s.TotalWithholdTax, s.AccountBalance,
			s.LastInterestCalculationDate, s.InterestPostedTillDate)
		for i := range acc.Transactions {
			t := &acc.Transactions[i]
			t.AccountID = acc.ID
			switch {
			case t.ID == 0:
				batch.Queue(insertTransactionSQL, insertTransactionArgs(t)...)
				refs = append(refs, t.RefNo)
			case t.Dirty:
				batch.Queue(updateTransactionSQL, updateTransactionArgs(t)...)
				if cancelsJournalEntries(*t) {
					batch.Queue(reverseJournalEntriesSQL, reverseJournalEntriesArgs(*t)...)
				}
			}
		}
	}

	for _, id := range gsimIDs(accounts) {
		batch.Queue(refreshGSIMSQL, id)
	}

	br := b.tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("could not apply posting batch: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("could not apply posting batch: %w", err)
	}
	for _, acc := range accounts {
		acc.Version++
		for i := range acc.Transactions {
			acc.Transactions[i].Dirty = false
		}
	}
	if len(refs) == 0 {
		return nil
	}

	ids, err := b.idsByRef(ctx, refs)
	if err != nil {
		return err
	}
	journal := &pgx.Batch{}
	for _, acc := range accounts {
		for i := range acc.Transactions {
			t := &acc.Transactions[i]
			if t.ID != 0 {
				continue
			}
			t.ID = ids[t.RefNo]
			for _, je := range interestJournalEntries(acc, *t) {
				journal.Queue(insertJournalEntrySQL, journalEntryArgs(je)...)
			}
		}
	}
	if journal.Len() == 0 {
		return nil
	}
	if err := b.tx.SendBatch(ctx, journal).Close(); err != nil {
		return fmt.Errorf("could not insert journal entries: %w", err)
	}
	return nil
}

func (b *postingBatch) idsByRef(ctx context.Context, refs []string) (map[string]int64, error) {
	rows, err := b.tx.Query(ctx, "SELECT id, ref_no FROM savings_transactions WHERE ref_no = ANY($1)", refs)
	if err != nil {
		return nil, fmt.Errorf("could not read back posted transactions: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]int64, len(refs))
	for rows.Next() {
		var id int64
		var ref string
		if err := rows.Scan(&id, &ref); err != nil {
			return nil, fmt.Errorf("could not scan transaction row: %w", err)
		}
		ids[ref] = id
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) != len(refs) {
		return nil, fmt.Errorf("read back %d of %d posted transactions", len(ids), len(refs))
	}
	return ids, nil
}

func (b *postingBatch) Commit(ctx context.Context) error {
	return b.tx.Commit(ctx)
}

func (b *postingBatch) Rollback(ctx context.Context) error {
	return b.tx.Rollback(ctx)
}
