package savings

import (
	"context"
	"fmt"

	"go-savings-api/model"

	"github.com/go-kit/kit/log/level"
	"github.com/shopspring/decimal"
)

const gsimCode = "error.msg.gsim"

// SubmitGSIM stores a group savings application with one child savings
// application per client, all built from the same template.
func (s *Service) SubmitGSIM(ctx context.Context, req model.GSIMRequest) (*model.GSIM, error) {
	if req.GroupID <= 0 {
		return nil, invalid(gsimCode+".group.required", "group_id", "a group savings account needs a group")
	}
	if len(req.ClientIDs) == 0 {
		return nil, invalid(gsimCode+".clients.required", "client_ids", "a group savings account needs at least one client")
	}
	if req.Template.DepositTerm != nil {
		return nil, invalid(gsimCode+".fixed.deposit.not.allowed", "deposit_term", "group savings children are savings accounts")
	}

	r := s.Rules()
	seen := make(map[int64]bool, len(req.ClientIDs))
	children := make([]*model.Account, 0, len(req.ClientIDs))
	for _, clientID := range req.ClientIDs {
		if clientID <= 0 || seen[clientID] {
			return nil, invalid(gsimCode+".client.invalid", "client_ids", "client %d is invalid or listed twice", clientID)
		}
		seen[clientID] = true

		app := req.Template
		app.ClientID = clientID
		app.GroupID = req.GroupID
		app.AccountNo = ""
		app.ExternalID = ""
		child, err := r.NewAccount(app)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	g := &model.GSIM{GroupID: req.GroupID, Status: model.StatusSubmittedAndPendingApproval}
	if err := s.store.CreateGSIM(ctx, g, children); err != nil {
		return nil, fmt.Errorf("submit gsim: %w", err)
	}
	level.Info(s.logger).Log("msg", "gsim submitted", "gsim", g.ID, "group", g.GroupID, "children", g.ChildCount)
	return g, nil
}

// GetGSIM returns a group savings account with its children.
func (s *Service) GetGSIM(ctx context.Context, id int64) (*model.GSIM, error) {
	return s.store.GetGSIM(ctx, id)
}

// ListGSIM returns the group savings accounts of a group.
func (s *Service) ListGSIM(ctx context.Context, groupID int64) ([]model.GSIM, error) {
	return s.store.ListGSIMByGroup(ctx, groupID)
}

// ApproveGSIM approves every child application.
func (s *Service) ApproveGSIM(ctx context.Context, id int64, req model.StateRequest) (*model.GSIM, error) {
	date, err := s.date(req.Date)
	if err != nil {
		return nil, err
	}
	return s.updateGSIM(ctx, id, "approve gsim", func(r Rules, acc *model.Account) error {
		return r.Approve(acc, date)
	})
}

// UndoApprovalGSIM returns every child application to the submitted state.
func (s *Service) UndoApprovalGSIM(ctx context.Context, id int64) (*model.GSIM, error) {
	return s.updateGSIM(ctx, id, "undo approval gsim", func(r Rules, acc *model.Account) error {
		return r.UndoApproval(acc)
	})
}

// RejectGSIM rejects every child application.
func (s *Service) RejectGSIM(ctx context.Context, id int64, req model.StateRequest) (*model.GSIM, error) {
	date, err := s.date(req.Date)
	if err != nil {
		return nil, err
	}
	return s.updateGSIM(ctx, id, "reject gsim", func(r Rules, acc *model.Account) error {
		return r.Reject(acc, date)
	})
}

// ActivateGSIM activates every child account.
func (s *Service) ActivateGSIM(ctx context.Context, id int64, req model.StateRequest) (*model.GSIM, error) {
	date, err := s.date(req.Date)
	if err != nil {
		return nil, err
	}
	return s.updateGSIM(ctx, id, "activate gsim", func(r Rules, acc *model.Account) error {
		return r.Activate(acc, date)
	})
}

// CloseGSIM closes every child account.
func (s *Service) CloseGSIM(ctx context.Context, id int64, req model.CloseRequest) (*model.GSIM, error) {
	date, err := s.date(req.Date)
	if err != nil {
		return nil, err
	}
	return s.updateGSIM(ctx, id, "close gsim", func(r Rules, acc *model.Account) error {
		return r.Close(acc, req, date)
	})
}

// updateGSIM applies fn to every child. A failure on any child leaves the
// whole group untouched.
func (s *Service) updateGSIM(ctx context.Context, id int64, op string, fn func(r Rules, acc *model.Account) error) (*model.GSIM, error) {
	r := s.Rules()
	g, err := s.store.UpdateGSIM(ctx, id, func(g *model.GSIM, children []*model.Account) error {
		if len(children) == 0 {
			return invalid(gsimCode+".no.children", "id", "gsim %d has no child accounts", g.ID)
		}
		for _, child := range children {
			if err := fn(r, child); err != nil {
				return fmt.Errorf("child account %d: %w", child.ID, err)
			}
		}
		refreshGSIM(g, children)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s %d: %w", op, id, err)
	}
	level.Info(s.logger).Log("msg", op, "gsim", id, "status", g.Status.String())
	return g, nil
}

// refreshGSIM derives the parent status and deposit total from the
// children.
func refreshGSIM(g *model.GSIM, children []*model.Account) {
	total := decimal.Zero
	for _, c := range children {
		total = total.Add(c.Summary.AccountBalance)
	}
	g.Status = children[0].Status
	g.ParentDeposit = total
	g.ChildCount = len(children)
}
