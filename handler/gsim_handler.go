package handler

import (
	"net/http"
	"strconv"

	"go-savings-api/model"
	"go-savings-api/savings"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
)

// GSIMHandler holds dependencies for group savings handlers.
type GSIMHandler struct {
	svc    *savings.Service
	logger log.Logger
}

// NewGSIMHandler creates a new GSIMHandler.
func NewGSIMHandler(svc *savings.Service, logger log.Logger) *GSIMHandler {
	return &GSIMHandler{svc: svc, logger: logger}
}

// Register adds the group savings routes to r.
func (h *GSIMHandler) Register(r *mux.Router) {
	r.HandleFunc("/gsim", h.SubmitHandler).Methods("POST")
	r.HandleFunc("/gsim/{id}", h.GetHandler).Methods("GET")
	r.HandleFunc("/gsim/{id}", h.CommandHandler).Methods("POST")
	r.HandleFunc("/groups/{groupId}/gsim", h.ListHandler).Methods("GET")
}

// SubmitHandler stores a group savings application with one child per client.
//
// Method: POST
// Path: /gsim
// Success: 201 Created
func (h *GSIMHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	var req model.GSIMRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	g, err := h.svc.SubmitGSIM(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, g)
}

// GetHandler returns a group savings account with its children.
//
// Method: GET
// Path: /gsim/{id}
func (h *GSIMHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "Invalid GSIM ID format")
		return
	}
	g, err := h.svc.GetGSIM(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, g)
}

// ListHandler returns the group savings accounts of a group.
//
// Method: GET
// Path: /groups/{groupId}/gsim
func (h *GSIMHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(r, "groupId")
	if !ok {
		badRequest(w, "Invalid group ID format")
		return
	}
	list, err := h.svc.ListGSIM(r.Context(), groupID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []model.GSIM{}
	}
	writeJSON(w, h.logger, http.StatusOK, list)
}

// CommandHandler runs a lifecycle command on every child account.
//
// Method: POST
// Path: /gsim/{id}?command=approve|undoapproval|reject|activate|close
func (h *GSIMHandler) CommandHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "Invalid GSIM ID format")
		return
	}

	var (
		g   *model.GSIM
		err error
	)
	ctx := r.Context()
	switch command := r.URL.Query().Get("command"); command {
	case "close":
		var req model.CloseRequest
		if err := decode(r, &req); err != nil {
			badRequest(w, "Invalid request body")
			return
		}
		g, err = h.svc.CloseGSIM(ctx, id, req)
	case "approve", "undoapproval", "reject", "activate":
		var req model.StateRequest
		if err := decode(r, &req); err != nil {
			badRequest(w, "Invalid request body")
			return
		}
		switch command {
		case "approve":
			g, err = h.svc.ApproveGSIM(ctx, id, req)
		case "undoapproval":
			g, err = h.svc.UndoApprovalGSIM(ctx, id)
		case "reject":
			g, err = h.svc.RejectGSIM(ctx, id, req)
		default:
			g, err = h.svc.ActivateGSIM(ctx, id, req)
		}
	default:
		badRequest(w, "Unrecognized command "+strconv.Quote(command))
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, g)
}
