// Package handler exposes the savings service over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go-savings-api/savings"
	"go-savings-api/storage"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/gorilla/mux"
)

// decode reads a JSON request body into v. An empty body leaves v unchanged.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// pathID parses the int64 path variable name.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func queryID(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func writeJSON(w http.ResponseWriter, logger log.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		level.Error(logger).Log("msg", "could not write JSON response", "err", err)
	}
}

// writeError maps a service error to its HTTP status. Validation errors are
// returned as JSON so clients can match on their code.
func writeError(w http.ResponseWriter, logger log.Logger, err error) {
	if v, ok := savings.AsValidation(err); ok {
		writeJSON(w, logger, http.StatusBadRequest, v)
		return
	}
	switch {
	case errors.Is(err, savings.ErrInsufficientFunds):
		http.Error(w, "Insufficient funds", http.StatusUnprocessableEntity)
	case errors.Is(err, savings.ErrAccountLocked):
		http.Error(w, "Account is locked in", http.StatusUnprocessableEntity)
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "Account not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrGSIMNotFound):
		http.Error(w, "Group savings account not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrDuplicateAccountNo),
		errors.Is(err, storage.ErrDuplicateExternalID),
		errors.Is(err, storage.ErrDuplicateGSIMAccountNo):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, storage.ErrVersionConflict):
		http.Error(w, "Account was modified concurrently", http.StatusConflict)
	default:
		level.Error(logger).Log("msg", "request failed", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	http.Error(w, msg, http.StatusBadRequest)
}
