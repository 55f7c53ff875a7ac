package jobs

import (
	"errors"
	"math/big"
)

// Status enumerates the job lifecycle states. Completed carries an auxiliary
// Paid flag on the job record; Resolved carries the dispute winner.
type Status uint8

const (
	StatusOpen Status = iota
	StatusAssigned
	StatusCompleted
	StatusDisputed
	StatusResolved
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusAssigned, StatusCompleted, StatusDisputed, StatusResolved:
		return true
	default:
		return false
	}
}

// String returns the canonical lowercase name used in events and RPC
// responses.
func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusAssigned:
		return "assigned"
	case StatusCompleted:
		return "completed"
	case StatusDisputed:
		return "disputed"
	case StatusResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

var (
	// ErrNotFound is returned when no job exists for the id.
	ErrNotFound = errors.New("jobs: job not found")
	// ErrInvalidState is returned when an operation is not valid for the
	// job's current status.
	ErrInvalidState = errors.New("jobs: operation not valid in current status")
	// ErrUnauthorized is returned when the caller is not the party required
	// for the transition.
	ErrUnauthorized = errors.New("jobs: caller not authorized")
	// ErrSelfAcceptance is returned when an employer tries to accept their
	// own job.
	ErrSelfAcceptance = errors.New("jobs: employer cannot accept own job")
)

// Job is the ledger record for a single posting. Employer, payment and
// deadline are immutable after creation; the remaining fields track the state
// machine.
type Job struct {
	ID            uint64   `json:"id"`
	Employer      string   `json:"employer"`
	Employee      string   `json:"employee,omitempty"`
	Description   string   `json:"description"`
	Payment       *big.Int `json:"payment"`
	Deadline      int64    `json:"deadline"`
	CreatedAt     int64    `json:"createdAt"`
	Status        Status   `json:"status"`
	Paid          bool     `json:"paid"`
	Winner        string   `json:"winner,omitempty"`
	EmployerRated bool     `json:"employerRated"`
	EmployeeRated bool     `json:"employeeRated"`
}

// Clone returns a deep copy of the job so callers can safely mutate the copy
// without affecting the stored instance.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	clone := *j
	if j.Payment != nil {
		clone.Payment = new(big.Int).Set(j.Payment)
	} else {
		clone.Payment = big.NewInt(0)
	}
	return &clone
}

// Terminal reports whether the job has reached a paid or resolved terminal
// state; only terminal jobs accept ratings.
func (j *Job) Terminal() bool {
	if j == nil {
		return false
	}
	if j.Status == StatusResolved {
		return true
	}
	return j.Status == StatusCompleted && j.Paid
}

// Party reports whether addr is the employer or the assigned employee.
func (j *Job) Party(addr string) bool {
	if j == nil {
		return false
	}
	return addr == j.Employer || (j.Employee != "" && addr == j.Employee)
}
