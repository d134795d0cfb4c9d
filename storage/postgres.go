// storage/postgres.go

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-savings-api/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Custom errors for the storage layer.
var (
	ErrNotFound               = errors.New("account not found")
	ErrGSIMNotFound           = errors.New("gsim not found")
	ErrDuplicateAccountNo     = errors.New("account number already exists")
	ErrDuplicateExternalID    = errors.New("external id already exists")
	ErrDuplicateGSIMAccountNo = errors.New("gsim account number already exists")
	ErrVersionConflict        = errors.New("account was modified concurrently")
)

// Store defines the interface for database operations.
//
// The Update, Transfer and Reinvest methods lock the rows they load for the
// life of one database transaction and persist whatever fn leaves on the
// accounts. An error from fn rolls everything back.
type Store interface {
	CreateAccount(ctx context.Context, acc *model.Account) error
	GetAccount(ctx context.Context, id int64) (*model.Account, error)
	ListAccounts(ctx context.Context, filter model.AccountFilter) ([]model.Account, error)
	UpdateAccount(ctx context.Context, id int64, fn func(*model.Account) error) (*model.Account, error)
	TransferBetween(ctx context.Context, fromID, toID int64, fn func(from, to *model.Account) error) (*model.Account, error)
	ReinvestDeposit(ctx context.Context, id int64, fn func(*model.Account) (*model.Account, error)) (closed, reinvested *model.Account, err error)

	CreateGSIM(ctx context.Context, g *model.GSIM, children []*model.Account) error
	GetGSIM(ctx context.Context, id int64) (*model.GSIM, error)
	ListGSIMByGroup(ctx context.Context, groupID int64) ([]model.GSIM, error)
	UpdateGSIM(ctx context.Context, id int64, fn func(*model.GSIM, []*model.Account) error) (*model.GSIM, error)

	ListJournalEntries(ctx context.Context, accountID int64) ([]model.JournalEntry, error)
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements the Store interface for PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore, connects to the database, and initializes the schema.
func NewPostgresStore(ctx context.Context, connString string, maxConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("could not parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	var pool *pgxpool.Pool

	// Retry connecting to the database for a few seconds
	for i := 0; i < 5; i++ {
		pool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		time.Sleep(1 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("could not connect to database after retries: %w", err)
	}

	store := &PostgresStore{db: pool}
	if err := store.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}

	return store, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// initSchema creates the necessary tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	query := `
    CREATE TABLE IF NOT EXISTS gsim_accounts (
        id BIGSERIAL PRIMARY KEY,
        group_id BIGINT NOT NULL,
        account_no VARCHAR(20),
        status SMALLINT NOT NULL,
        parent_deposit NUMERIC(19, 6) NOT NULL DEFAULT 0,
        child_count INT NOT NULL DEFAULT 0,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        CONSTRAINT gsim_account_no_key UNIQUE (account_no)
    );

    CREATE TABLE IF NOT EXISTS savings_accounts (
        id BIGSERIAL PRIMARY KEY,
        account_no VARCHAR(20),
        external_id VARCHAR(100),
        client_id BIGINT,
        group_id BIGINT,
        gsim_id BIGINT REFERENCES gsim_accounts (id),
        deposit_type SMALLINT NOT NULL,
        status SMALLINT NOT NULL,
        terms JSONB NOT NULL,
        deposit_term JSONB,
        submitted_on DATE NOT NULL,
        approved_on DATE,
        rejected_on DATE,
        withdrawn_on DATE,
        activated_on DATE,
        closed_on DATE,
        locked_in_until DATE,
        total_deposits NUMERIC(19, 6) NOT NULL DEFAULT 0,
        total_withdrawals NUMERIC(19, 6) NOT NULL DEFAULT 0,
        total_withdrawal_fees NUMERIC(19, 6) NOT NULL DEFAULT 0,
        total_annual_fees NUMERIC(19, 6) NOT NULL DEFAULT 0,
        total_fee_charge NUMERIC(19, 6) NOT NULL DEFAULT 0,
        total_penalty_charge NUMERIC(19, 6) NOT NULL DEFAULT 0,
        total_interest_earned NUMERIC(19, 6) NOT NULL DEFAULT 0,
        total_interest_posted NUMERIC(19, 6) NOT NULL DEFAULT 0,
        total_overdraft_interest NUMERIC(19, 6) NOT NULL DEFAULT 0,
        total_withhold_tax NUMERIC(19, 6) NOT NULL DEFAULT 0,
        account_balance NUMERIC(19, 6) NOT NULL DEFAULT 0,
        last_interest_calculation_date DATE,
        interest_posted_till_date DATE,
        version INT NOT NULL DEFAULT 0,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        CONSTRAINT savings_account_no_key UNIQUE (account_no),
        CONSTRAINT savings_external_id_key UNIQUE (external_id)
    );
    CREATE INDEX IF NOT EXISTS savings_accounts_status_idx ON savings_accounts (status, id);

    CREATE TABLE IF NOT EXISTS savings_charges (
        id BIGSERIAL PRIMARY KEY,
        account_id BIGINT NOT NULL REFERENCES savings_accounts (id),
        name VARCHAR(100) NOT NULL,
        time_type SMALLINT NOT NULL,
        calculation SMALLINT NOT NULL,
        value NUMERIC(19, 6) NOT NULL,
        amount NUMERIC(19, 6) NOT NULL DEFAULT 0,
        amount_paid NUMERIC(19, 6) NOT NULL DEFAULT 0,
        amount_waived NUMERIC(19, 6) NOT NULL DEFAULT 0,
        amount_outstanding NUMERIC(19, 6) NOT NULL DEFAULT 0,
        due_date DATE,
        fee_on_month INT NOT NULL DEFAULT 0,
        fee_on_day INT NOT NULL DEFAULT 0,
        fee_interval INT NOT NULL DEFAULT 0,
        penalty BOOLEAN NOT NULL DEFAULT FALSE,
        active BOOLEAN NOT NULL DEFAULT TRUE
    );

    CREATE TABLE IF NOT EXISTS savings_transactions (
        id BIGSERIAL PRIMARY KEY,
        account_id BIGINT NOT NULL REFERENCES savings_accounts (id),
        type SMALLINT NOT NULL,
        transaction_date DATE NOT NULL,
        amount NUMERIC(19, 6) NOT NULL,
        running_balance NUMERIC(19, 6) NOT NULL DEFAULT 0,
        cumulative_balance NUMERIC(19, 6) NOT NULL DEFAULT 0,
        balance_end_date DATE,
        balance_days INT NOT NULL DEFAULT 0,
        reversed BOOLEAN NOT NULL DEFAULT FALSE,
        manual BOOLEAN NOT NULL DEFAULT FALSE,
        ref_no VARCHAR(64) NOT NULL,
        charge_id BIGINT REFERENCES savings_charges (id),
        linked_ref_no VARCHAR(64),
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        CONSTRAINT savings_transaction_ref_no_key UNIQUE (ref_no)
    );
    CREATE INDEX IF NOT EXISTS savings_transactions_account_idx ON savings_transactions (account_id, transaction_date, id);

    CREATE TABLE IF NOT EXISTS journal_entries (
        id BIGSERIAL PRIMARY KEY,
        gl_account_id BIGINT NOT NULL,
        account_id BIGINT NOT NULL REFERENCES savings_accounts (id),
        savings_transaction_id BIGINT NOT NULL REFERENCES savings_transactions (id),
        transaction_id VARCHAR(50) NOT NULL,
        currency VARCHAR(3) NOT NULL,
        type SMALLINT NOT NULL,
        amount NUMERIC(19, 6) NOT NULL,
        entry_date DATE NOT NULL,
        reversed BOOLEAN NOT NULL DEFAULT FALSE,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );
    CREATE INDEX IF NOT EXISTS journal_entries_account_idx ON journal_entries (account_id, id);
    CREATE INDEX IF NOT EXISTS journal_entries_transaction_idx ON journal_entries (savings_transaction_id);`
	_, err := s.db.Exec(ctx, query)
	return err
}

// mapError translates unique violations into the storage sentinel errors.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch pgErr.ConstraintName {
	case "savings_account_no_key":
		return ErrDuplicateAccountNo
	case "savings_external_id_key":
		return ErrDuplicateExternalID
	case "gsim_account_no_key":
		return ErrDuplicateGSIMAccountNo
	}
	return fmt.Errorf("unknown data integrity violation on %s: %w", pgErr.ConstraintName, err)
}

// IsRetryable reports whether err is a lock or serialization failure that
// may succeed on a later attempt.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "55P03", "40P01", "40001":
		return true
	}
	return false
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
