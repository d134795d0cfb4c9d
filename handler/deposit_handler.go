package handler

import (
	"net/http"
	"strconv"

	"go-savings-api/model"
	"go-savings-api/savings"
	"go-savings-api/storage"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
)

// FixedDepositHandler holds dependencies for fixed deposit handlers.
type FixedDepositHandler struct {
	svc     *savings.Service
	logger  log.Logger
	savings *SavingsHandler
}

// NewFixedDepositHandler creates a new FixedDepositHandler.
func NewFixedDepositHandler(svc *savings.Service, logger log.Logger) *FixedDepositHandler {
	return &FixedDepositHandler{svc: svc, logger: logger, savings: NewSavingsHandler(svc, logger)}
}

// Register adds the fixed deposit routes to r.
func (h *FixedDepositHandler) Register(r *mux.Router) {
	r.HandleFunc("/fixeddepositaccounts", h.SubmitHandler).Methods("POST")
	r.HandleFunc("/fixeddepositaccounts/interestcalculator", h.InterestCalculatorHandler).Methods("POST")
	r.HandleFunc("/fixeddepositaccounts/{id}", h.GetHandler).Methods("GET")
	r.HandleFunc("/fixeddepositaccounts/{id}", h.CommandHandler).Methods("POST")
}

// MaturedCloseResponse is the result of closing a matured deposit.
// Reinvested is set when the proceeds opened a new deposit.
type MaturedCloseResponse struct {
	Closed     *model.Account `json:"closed"`
	Reinvested *model.Account `json:"reinvested,omitempty"`
}

// SubmitHandler stores a new fixed deposit application.
//
// Method: POST
// Path: /fixeddepositaccounts
// Success: 201 Created
// Error: 400 Bad Request (for invalid JSON or a rejected application)
func (h *FixedDepositHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitAccountRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if req.DepositTerm == nil {
		badRequest(w, "Fixed deposit applications need a deposit_term")
		return
	}
	acc, err := h.svc.SubmitApplication(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, acc)
}

// GetHandler returns a fixed deposit account.
//
// Method: GET
// Path: /fixeddepositaccounts/{id}
// Error: 404 Not Found (if the account does not exist or is not a fixed deposit)
func (h *FixedDepositHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "Invalid account ID format")
		return
	}
	acc, err := h.svc.GetAccount(r.Context(), id)
	if err == nil && !acc.IsFixedDeposit() {
		err = storage.ErrNotFound
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, acc)
}

// CommandHandler runs a lifecycle command on a fixed deposit.
//
// Method: POST
// Path: /fixeddepositaccounts/{id}?command=approve|undoapproval|reject|withdrawnByApplicant|activate|postInterest|calculateInterest|prematureClose|calculatePrematureAmount|close
// Success: 200 OK
func (h *FixedDepositHandler) CommandHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "Invalid account ID format")
		return
	}

	switch command := r.URL.Query().Get("command"); command {
	case "prematureClose":
		var req model.CloseRequest
		if err := decode(r, &req); err != nil {
			badRequest(w, "Invalid request body")
			return
		}
		acc, err := h.svc.PrematureClose(r.Context(), id, req)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, h.logger, http.StatusOK, acc)
	case "calculatePrematureAmount":
		var req model.StateRequest
		if err := decode(r, &req); err != nil {
			badRequest(w, "Invalid request body")
			return
		}
		amount, err := h.svc.PrematureAmount(r.Context(), id, req)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, h.logger, http.StatusOK, amount)
	case "close":
		var req model.CloseRequest
		if err := decode(r, &req); err != nil {
			badRequest(w, "Invalid request body")
			return
		}
		closed, reinvested, err := h.svc.CloseMatured(r.Context(), id, req)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, h.logger, http.StatusOK, MaturedCloseResponse{Closed: closed, Reinvested: reinvested})
	case "approve", "undoapproval", "reject", "withdrawnByApplicant", "activate", "postInterest", "calculateInterest":
		var req model.StateRequest
		if err := decode(r, &req); err != nil {
			badRequest(w, "Invalid request body")
			return
		}
		acc, err := h.savings.stateCommand(r, command, id, req)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, h.logger, http.StatusOK, acc)
	default:
		badRequest(w, "Unrecognized command "+strconv.Quote(command))
	}
}

// InterestCalculatorHandler computes a compound maturity amount.
//
// Method: POST
// Path: /fixeddepositaccounts/interestcalculator
func (h *FixedDepositHandler) InterestCalculatorHandler(w http.ResponseWriter, r *http.Request) {
	var req model.InterestCalculatorRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	resp, err := h.svc.InterestCalculator(req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}
