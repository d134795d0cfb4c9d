package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go-savings-api/model"

	"github.com/jackc/pgx/v5"
)

const gsimColumns = `id, group_id, COALESCE(account_no, ''), status, parent_deposit, child_count`

func scanGSIM(row pgx.Row) (*model.GSIM, error) {
	g := &model.GSIM{}
	if err := row.Scan(&g.ID, &g.GroupID, &g.AccountNo, &g.Status, &g.ParentDeposit, &g.ChildCount); err != nil {
		return nil, err
	}
	return g, nil
}

// CreateGSIM inserts a group savings parent and its child applications in
// one transaction.
func (s *PostgresStore) CreateGSIM(ctx context.Context, g *model.GSIM, children []*model.Account) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO gsim_accounts (group_id, account_no, status)
		VALUES ($1, $2, $3)
		RETURNING id`
	if err := tx.QueryRow(ctx, query, g.GroupID, nullString(g.AccountNo), g.Status).Scan(&g.ID); err != nil {
		return fmt.Errorf("could not insert gsim: %w", mapError(err))
	}
	if g.AccountNo == "" {
		err := tx.QueryRow(ctx,
			"UPDATE gsim_accounts SET account_no = 'G' || lpad(id::text, 9, '0') WHERE id = $1 RETURNING account_no",
			g.ID).Scan(&g.AccountNo)
		if err != nil {
			return fmt.Errorf("could not assign gsim account number: %w", mapError(err))
		}
	}

	g.Children = g.Children[:0]
	for _, child := range children {
		child.GSIMID = g.ID
		if err := insertAccount(ctx, tx, child); err != nil {
			return err
		}
		g.Children = append(g.Children, *child)
	}
	g.ChildCount = len(children)
	if err := saveGSIM(ctx, tx, g); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func saveGSIM(ctx context.Context, tx pgx.Tx, g *model.GSIM) error {
	query := "UPDATE gsim_accounts SET status = $2, parent_deposit = $3, child_count = $4 WHERE id = $1"
	if _, err := tx.Exec(ctx, query, g.ID, g.Status, g.ParentDeposit, g.ChildCount); err != nil {
		return fmt.Errorf("could not update gsim %d: %w", g.ID, err)
	}
	return nil
}

// refreshGSIMSQL derives the parent deposit, child count and status of a
// gsim from its children. The status is that of the first child.
const refreshGSIMSQL = `
	UPDATE gsim_accounts g SET
		parent_deposit = c.total, child_count = c.n, status = c.status
	FROM (
		SELECT COALESCE(SUM(account_balance), 0) AS total, COUNT(*) AS n,
			(array_agg(status ORDER BY id))[1] AS status
		FROM savings_accounts WHERE gsim_id = $1
	) c
	WHERE g.id = $1 AND c.n > 0`

// gsimIDs returns the distinct gsim parents of accounts in id order.
func gsimIDs(accounts []*model.Account) []int64 {
	seen := map[int64]bool{}
	var ids []int64
	for _, acc := range accounts {
		if acc == nil || acc.GSIMID == 0 || seen[acc.GSIMID] {
			continue
		}
		seen[acc.GSIMID] = true
		ids = append(ids, acc.GSIMID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// refreshGSIMs brings the gsim rows of accounts in line with their children.
// Child rows are always locked before their parent.
func refreshGSIMs(ctx context.Context, tx pgx.Tx, accounts ...*model.Account) error {
	for _, id := range gsimIDs(accounts) {
		if _, err := tx.Exec(ctx, refreshGSIMSQL, id); err != nil {
			return fmt.Errorf("could not refresh gsim %d: %w", id, err)
		}
	}
	return nil
}

// GetGSIM retrieves a group savings parent with its child accounts.
func (s *PostgresStore) GetGSIM(ctx context.Context, id int64) (*model.GSIM, error) {
	g, err := scanGSIM(s.db.QueryRow(ctx, "SELECT "+gsimColumns+" FROM gsim_accounts WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGSIMNotFound
		}
		return nil, fmt.Errorf("could not load gsim %d: %w", id, err)
	}
	if g.Children, err = s.ListAccounts(ctx, model.AccountFilter{GSIMID: id}); err != nil {
		return nil, err
	}
	return g, nil
}

// ListGSIMByGroup returns the group savings parents of a group.
func (s *PostgresStore) ListGSIMByGroup(ctx context.Context, groupID int64) ([]model.GSIM, error) {
	rows, err := s.db.Query(ctx, "SELECT "+gsimColumns+" FROM gsim_accounts WHERE group_id = $1 ORDER BY id", groupID)
	if err != nil {
		return nil, fmt.Errorf("could not list gsim: %w", err)
	}
	defer rows.Close()

	var out []model.GSIM
	for rows.Next() {
		g, err := scanGSIM(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan gsim row: %w", err)
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// UpdateGSIM locks all children of a group savings parent and then the
// parent, applies fn and persists every account and the parent.
func (s *PostgresStore) UpdateGSIM(ctx context.Context, id int64, fn func(*model.GSIM, []*model.Account) error) (*model.GSIM, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ids, err := childIDs(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	g, err := scanGSIM(tx.QueryRow(ctx, "SELECT "+gsimColumns+" FROM gsim_accounts WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGSIMNotFound
		}
		return nil, fmt.Errorf("could not load gsim %d: %w", id, err)
	}
	children := make([]*model.Account, 0, len(ids))
	for _, childID := range ids {
		child, err := loadAccount(ctx, tx, childID, "")
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	if err := fn(g, children); err != nil {
		return nil, err
	}
	g.Children = g.Children[:0]
	for _, child := range children {
		if err := saveAccount(ctx, tx, child); err != nil {
			return nil, err
		}
		g.Children = append(g.Children, *child)
	}
	g.ChildCount = len(children)
	if err := saveGSIM(ctx, tx, g); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("could not commit transaction: %w", err)
	}
	return g, nil
}

// childIDs locks the children of a gsim in id order.
func childIDs(ctx context.Context, tx pgx.Tx, gsimID int64) ([]int64, error) {
	rows, err := tx.Query(ctx, "SELECT id FROM savings_accounts WHERE gsim_id = $1 ORDER BY id FOR UPDATE", gsimID)
	if err != nil {
		return nil, fmt.Errorf("could not query gsim children for update: %w", err)
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
