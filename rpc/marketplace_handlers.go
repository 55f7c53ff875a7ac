package rpc

import (
	"math/big"
	"net/http"

	"workledger/native/jobs"
	"workledger/native/registry"
)

const (
	methodRegister        = "marketplace_register"
	methodDeposit         = "marketplace_deposit"
	methodCreateJob       = "marketplace_createJob"
	methodAcceptJob       = "marketplace_acceptJob"
	methodCompleteJob     = "marketplace_completeJob"
	methodReleasePayment  = "marketplace_releasePayment"
	methodInitiateDispute = "marketplace_initiateDispute"
	methodResolveDispute  = "marketplace_resolveDispute"
	methodSubmitRating    = "marketplace_submitRating"
	methodGetJob          = "marketplace_getJob"
	methodListJobs        = "marketplace_listJobs"
	methodGetReputation   = "marketplace_getReputation"
	methodGetBalance      = "marketplace_getBalance"
)

type addressParams struct {
	Address string `json:"address"`
}

type depositParams struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type createJobParams struct {
	Employer    string `json:"employer"`
	Description string `json:"description"`
	Deadline    int64  `json:"deadline"`
	Payment     string `json:"payment"`
}

type jobCallParams struct {
	Caller string `json:"caller"`
	JobID  uint64 `json:"jobId"`
}

type resolveDisputeParams struct {
	Caller string `json:"caller"`
	JobID  uint64 `json:"jobId"`
	Winner string `json:"winner"`
}

type submitRatingParams struct {
	Caller string `json:"caller"`
	JobID  uint64 `json:"jobId"`
	Rating uint8  `json:"rating"`
}

type jobIDParams struct {
	JobID uint64 `json:"jobId"`
}

// JobResult is the wire representation of a job snapshot. Payments travel as
// decimal strings to keep exact amounts intact.
type JobResult struct {
	ID            uint64 `json:"id"`
	Employer      string `json:"employer"`
	Employee      string `json:"employee,omitempty"`
	Description   string `json:"description"`
	Payment       string `json:"payment"`
	Deadline      int64  `json:"deadline"`
	CreatedAt     int64  `json:"createdAt"`
	Status        string `json:"status"`
	Paid          bool   `json:"paid"`
	Winner        string `json:"winner,omitempty"`
	EmployerRated bool   `json:"employerRated"`
	EmployeeRated bool   `json:"employeeRated"`
}

// ProfileResult is the wire representation of a registry profile.
type ProfileResult struct {
	Address     string `json:"address"`
	Reputation  uint64 `json:"reputation"`
	TotalJobs   uint64 `json:"totalJobs"`
	RatingCount uint64 `json:"ratingCount"`
}

func jobResult(job *jobs.Job) JobResult {
	result := JobResult{
		ID:            job.ID,
		Employer:      job.Employer,
		Employee:      job.Employee,
		Description:   job.Description,
		Payment:       "0",
		Deadline:      job.Deadline,
		CreatedAt:     job.CreatedAt,
		Status:        job.Status.String(),
		Paid:          job.Paid,
		Winner:        job.Winner,
		EmployerRated: job.EmployerRated,
		EmployeeRated: job.EmployeeRated,
	}
	if job.Payment != nil {
		result.Payment = job.Payment.String()
	}
	return result
}

func profileResult(p *registry.Profile) ProfileResult {
	return ProfileResult{
		Address:     p.Address,
		Reputation:  p.Reputation,
		TotalJobs:   p.TotalJobs,
		RatingCount: p.RatingCount,
	}
}

func parseAmount(raw string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(raw, 10)
	return amount, ok
}

func (s *Server) handleRegister(w http.ResponseWriter, req *RPCRequest) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	profile, err := s.node.RegisterUser(params.Address)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, profileResult(profile))
}

func (s *Server) handleDeposit(w http.ResponseWriter, req *RPCRequest) {
	var params depositParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, ok := parseAmount(params.Amount)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "amount must be a decimal string", nil)
		return
	}
	if err := s.node.Deposit(params.Address, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": "credited"})
}

func (s *Server) handleCreateJob(w http.ResponseWriter, req *RPCRequest) {
	var params createJobParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	payment, ok := parseAmount(params.Payment)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "payment must be a decimal string", nil)
		return
	}
	job, err := s.node.CreateJob(params.Employer, params.Description, params.Deadline, payment)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, jobResult(job))
}

func (s *Server) handleAcceptJob(w http.ResponseWriter, req *RPCRequest) {
	var params jobCallParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	job, err := s.node.AcceptJob(params.Caller, params.JobID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, jobResult(job))
}

func (s *Server) handleCompleteJob(w http.ResponseWriter, req *RPCRequest) {
	var params jobCallParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	job, err := s.node.CompleteJob(params.Caller, params.JobID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, jobResult(job))
}

func (s *Server) handleReleasePayment(w http.ResponseWriter, req *RPCRequest) {
	var params jobCallParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	job, err := s.node.ReleasePayment(params.Caller, params.JobID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, jobResult(job))
}

func (s *Server) handleInitiateDispute(w http.ResponseWriter, req *RPCRequest) {
	var params jobCallParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	job, err := s.node.InitiateDispute(params.Caller, params.JobID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, jobResult(job))
}

func (s *Server) handleResolveDispute(w http.ResponseWriter, req *RPCRequest) {
	var params resolveDisputeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	job, err := s.node.ResolveDispute(params.Caller, params.JobID, params.Winner)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, jobResult(job))
}

func (s *Server) handleSubmitRating(w http.ResponseWriter, req *RPCRequest) {
	var params submitRatingParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.SubmitRating(params.Caller, params.JobID, params.Rating); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": "recorded"})
}

func (s *Server) handleGetJob(w http.ResponseWriter, req *RPCRequest) {
	var params jobIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	job, err := s.node.JobDetails(params.JobID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, jobResult(job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, req *RPCRequest) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	listed, err := s.node.JobsByParticipant(params.Address)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	results := make([]JobResult, 0, len(listed))
	for _, job := range listed {
		results = append(results, jobResult(job))
	}
	writeResult(w, req.ID, results)
}

func (s *Server) handleGetReputation(w http.ResponseWriter, req *RPCRequest) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	profile, err := s.node.UserProfile(params.Address)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, profileResult(profile))
}

func (s *Server) handleGetBalance(w http.ResponseWriter, req *RPCRequest) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	balance, err := s.node.Balance(params.Address)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{
		"address": params.Address,
		"balance": balance.String(),
	})
}
