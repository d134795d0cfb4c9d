package handler

import (
	"net/http"
	"strconv"

	"go-savings-api/model"
	"go-savings-api/savings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/gorilla/mux"
)

// SavingsHandler holds dependencies for savings account handlers.
type SavingsHandler struct {
	svc    *savings.Service
	logger log.Logger
}

// NewSavingsHandler creates a new SavingsHandler.
func NewSavingsHandler(svc *savings.Service, logger log.Logger) *SavingsHandler {
	return &SavingsHandler{svc: svc, logger: logger}
}

// Register adds the savings account routes to r.
func (h *SavingsHandler) Register(r *mux.Router) {
	r.HandleFunc("/savingsaccounts", h.SubmitHandler).Methods("POST")
	r.HandleFunc("/savingsaccounts", h.ListHandler).Methods("GET")
	r.HandleFunc("/savingsaccounts/{id}", h.GetHandler).Methods("GET")
	r.HandleFunc("/savingsaccounts/{id}", h.CommandHandler).Methods("POST")
	r.HandleFunc("/savingsaccounts/{id}/transactions", h.TransactionHandler).Methods("POST")
	r.HandleFunc("/savingsaccounts/{id}/transactions/export", h.ExportHandler).Methods("GET")
	r.HandleFunc("/savingsaccounts/{id}/transactions/{txId}", h.UndoTransactionHandler).Methods("POST")
	r.HandleFunc("/savingsaccounts/{id}/charges", h.AddChargeHandler).Methods("POST")
	r.HandleFunc("/savingsaccounts/{id}/charges/{chargeId}", h.ChargeCommandHandler).Methods("POST")
	r.HandleFunc("/savingsaccounts/{id}/journalentries", h.JournalEntriesHandler).Methods("GET")
}

// SubmitHandler stores a new savings account application.
//
// Method: POST
// Path: /savingsaccounts
// Success: 201 Created
// Error: 400 Bad Request (for invalid JSON or a rejected application)
// Error: 409 Conflict (for a duplicate account number or external id)
func (h *SavingsHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitAccountRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if req.DepositTerm != nil {
		badRequest(w, "Fixed deposit applications are submitted to /fixeddepositaccounts")
		return
	}
	acc, err := h.svc.SubmitApplication(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, acc)
}

// GetHandler returns an account with its transactions and charges.
//
// Method: GET
// Path: /savingsaccounts/{id}
func (h *SavingsHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "Invalid account ID format")
		return
	}
	acc, err := h.svc.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, acc)
}

// ListHandler lists accounts filtered by client_id, group_id and status.
//
// Method: GET
// Path: /savingsaccounts
func (h *SavingsHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	var filter model.AccountFilter
	var err error
	if filter.ClientID, err = queryID(r, "client_id"); err != nil {
		badRequest(w, "Invalid client_id")
		return
	}
	if filter.GroupID, err = queryID(r, "group_id"); err != nil {
		badRequest(w, "Invalid group_id")
		return
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status, err := strconv.Atoi(v)
		if err != nil {
			badRequest(w, "Invalid status")
			return
		}
		filter.Status = model.AccountStatus(status)
	}
	accounts, err := h.svc.ListAccounts(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if accounts == nil {
		accounts = []model.Account{}
	}
	writeJSON(w, h.logger, http.StatusOK, accounts)
}

// CommandHandler runs a lifecycle or interest command on an account.
//
// Method: POST
// Path: /savingsaccounts/{id}?command=approve|undoapproval|reject|withdrawnByApplicant|activate|close|postInterest|calculateInterest
// Success: 200 OK
// Error: 400 Bad Request (for an unknown command or a rejected command)
// Error: 404 Not Found (if the account does not exist)
func (h *SavingsHandler) CommandHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "Invalid account ID format")
		return
	}

	command := r.URL.Query().Get("command")
	var (
		acc *model.Account
		err error
	)
	switch command {
	case "close":
		var req model.CloseRequest
		if err := decode(r, &req); err != nil {
			badRequest(w, "Invalid request body")
			return
		}
		acc, err = h.svc.Close(r.Context(), id, req)
	case "approve", "undoapproval", "reject", "withdrawnByApplicant", "activate", "postInterest", "calculateInterest":
		var req model.StateRequest
		if err := decode(r, &req); err != nil {
			badRequest(w, "Invalid request body")
			return
		}
		acc, err = h.stateCommand(r, command, id, req)
	default:
		badRequest(w, "Unrecognized command "+strconv.Quote(command))
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, acc)
}

// stateCommand runs the commands shared by savings and fixed deposit
// accounts.
func (h *SavingsHandler) stateCommand(r *http.Request, command string, id int64, req model.StateRequest) (*model.Account, error) {
	ctx := r.Context()
	switch command {
	case "approve":
		return h.svc.Approve(ctx, id, req)
	case "undoapproval":
		return h.svc.UndoApproval(ctx, id)
	case "reject":
		return h.svc.Reject(ctx, id, req)
	case "withdrawnByApplicant":
		return h.svc.WithdrawApplication(ctx, id, req)
	case "activate":
		return h.svc.Activate(ctx, id, req)
	case "postInterest":
		return h.svc.PostInterest(ctx, id, req)
	default:
		return h.svc.CalculateInterest(ctx, id, req)
	}
}

// TransactionHandler deposits to or withdraws from an account.
//
// Method: POST
// Path: /savingsaccounts/{id}/transactions?command=deposit|withdrawal
// Success: 200 OK
// Error: 400 Bad Request (for invalid JSON or a rejected transaction)
// Error: 422 Unprocessable Entity (for insufficient funds or a locked account)
func (h *SavingsHandler) TransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "Invalid account ID format")
		return
	}
	var req model.TransactionRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}

	var (
		txn *model.Transaction
		err error
	)
	switch command := r.URL.Query().Get("command"); command {
	case "deposit":
		txn, err = h.svc.Deposit(r.Context(), id, req)
	case "withdrawal":
		txn, err = h.svc.Withdraw(r.Context(), id, req)
	default:
		badRequest(w, "Unrecognized command "+strconv.Quote(command))
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, txn)
}

// UndoTransactionHandler reverses a deposit or withdrawal.
//
// Method: POST
// Path: /savingsaccounts/{id}/transactions/{txId}?command=undo
func (h *SavingsHandler) UndoTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "Invalid account ID format")
		return
	}
	txnID, ok := pathID(r, "txId")
	if !ok {
		badRequest(w, "Invalid transaction ID format")
		return
	}
	if command := r.URL.Query().Get("command"); command != "undo" {
		badRequest(w, "Unrecognized command "+strconv.Quote(command))
		return
	}
	acc, err := h.svc.UndoTransaction(r.Context(), id, txnID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, acc)
}

// ExportHandler writes the account statement as an xlsx workbook.
//
// Method: GET
// Path: /savingsaccounts/{id}/transactions/export
func (h *SavingsHandler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "Invalid account ID format")
		return
	}
	f, err := h.svc.Statement(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=\"statement-"+strconv.FormatInt(id, 10)+".xlsx\"")
	if _, err := f.WriteTo(w); err != nil {
		level.Error(h.logger).Log("msg", "could not write statement", "account", id, "err", err)
	}
}

// AddChargeHandler adds a charge to an account.
//
// Method: POST
// Path: /savingsaccounts/{id}/charges
// Success: 201 Created
func (h *SavingsHandler) AddChargeHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "Invalid account ID format")
		return
	}
	var req model.ChargeRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	charge, err := h.svc.AddCharge(r.Context(), id, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, charge)
}

// ChargeCommandHandler pays or waives a charge.
//
// Method: POST
// Path: /savingsaccounts/{id}/charges/{chargeId}?command=paycharge|waive
func (h *SavingsHandler) ChargeCommandHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "Invalid account ID format")
		return
	}
	chargeID, ok := pathID(r, "chargeId")
	if !ok {
		badRequest(w, "Invalid charge ID format")
		return
	}

	var (
		txn *model.Transaction
		err error
	)
	switch command := r.URL.Query().Get("command"); command {
	case "paycharge":
		var req model.TransactionRequest
		if err := decode(r, &req); err != nil {
			badRequest(w, "Invalid request body")
			return
		}
		txn, err = h.svc.PayCharge(r.Context(), id, chargeID, req)
	case "waive":
		txn, err = h.svc.WaiveCharge(r.Context(), id, chargeID)
	default:
		badRequest(w, "Unrecognized command "+strconv.Quote(command))
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, txn)
}

// JournalEntriesHandler lists the journal entries booked for an account.
//
// Method: GET
// Path: /savingsaccounts/{id}/journalentries
func (h *SavingsHandler) JournalEntriesHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "Invalid account ID format")
		return
	}
	entries, err := h.svc.JournalEntries(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if entries == nil {
		entries = []model.JournalEntry{}
	}
	writeJSON(w, h.logger, http.StatusOK, entries)
}
