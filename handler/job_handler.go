package handler

import (
	"context"
	"errors"
	"net/http"

	"go-savings-api/posting"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
)

// PostingRunner runs the interest posting job.
type PostingRunner interface {
	Run(ctx context.Context) (posting.Result, error)
}

// AccountJobs matures fixed deposits past their maturity date and pays
// charges that have fallen due.
type AccountJobs interface {
	MatureDeposits(ctx context.Context) (int, error)
	PayDueCharges(ctx context.Context) (int, error)
}

// JobHandler triggers the scheduled jobs on demand.
type JobHandler struct {
	poster PostingRunner
	jobs   AccountJobs
	logger log.Logger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(poster PostingRunner, jobs AccountJobs, logger log.Logger) *JobHandler {
	return &JobHandler{poster: poster, jobs: jobs, logger: logger}
}

// Register adds the job routes to r.
func (h *JobHandler) Register(r *mux.Router) {
	r.HandleFunc("/jobs/interestposting", h.InterestPostingHandler).Methods("POST")
	r.HandleFunc("/jobs/maturity", h.MaturityHandler).Methods("POST")
	r.HandleFunc("/jobs/duecharges", h.DueChargesHandler).Methods("POST")
}

// JobResponse reports the outcome of a job run.
type JobResponse struct {
	Posted  int      `json:"posted"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped,omitempty"`
	Groups  int      `json:"groups,omitempty"`
	Matured int      `json:"matured,omitempty"`
	Charges int      `json:"charges,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// InterestPostingHandler posts interest on every active account now.
//
// Method: POST
// Path: /jobs/interestposting
// Success: 200 OK, or 207 Multi-Status when some groups failed
func (h *JobHandler) InterestPostingHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.poster.Run(r.Context())
	resp := JobResponse{Posted: res.Posted, Failed: res.Failed, Skipped: res.Skipped, Groups: res.Groups}
	status := http.StatusOK
	if err != nil {
		status = http.StatusMultiStatus
		resp.Errors = errorList(err)
	}
	writeJSON(w, h.logger, status, resp)
}

// MaturityHandler matures every fixed deposit past its maturity date now.
//
// Method: POST
// Path: /jobs/maturity
func (h *JobHandler) MaturityHandler(w http.ResponseWriter, r *http.Request) {
	n, err := h.jobs.MatureDeposits(r.Context())
	resp := JobResponse{Matured: n}
	status := http.StatusOK
	if err != nil {
		status = http.StatusMultiStatus
		resp.Errors = errorList(err)
	}
	writeJSON(w, h.logger, status, resp)
}

// DueChargesHandler pays every charge that has fallen due now.
//
// Method: POST
// Path: /jobs/duecharges
// Success: 200 OK, or 207 Multi-Status when some accounts could not pay
func (h *JobHandler) DueChargesHandler(w http.ResponseWriter, r *http.Request) {
	n, err := h.jobs.PayDueCharges(r.Context())
	resp := JobResponse{Charges: n}
	status := http.StatusOK
	if err != nil {
		status = http.StatusMultiStatus
		resp.Errors = errorList(err)
	}
	writeJSON(w, h.logger, status, resp)
}

// errorList flattens a multierror into its messages.
func errorList(err error) []string {
	var me *multierror.Error
	if errors.As(err, &me) {
		var out []string
		for _, e := range me.Errors {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
