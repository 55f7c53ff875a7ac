package reputation

import (
	"errors"

	"workledger/core/events"
	"workledger/native/jobs"
	"workledger/native/registry"
)

var (
	errNilState    = errors.New("reputation engine: state not configured")
	errNilRegistry = errors.New("reputation engine: registry not configured")

	// ErrAlreadyRated is returned when a party has already rated the job.
	ErrAlreadyRated = errors.New("reputation: party already rated this job")
)

type ledgerState interface {
	JobPut(*jobs.Job) error
	JobGet(id uint64) (*jobs.Job, bool)
}

type participantRegistry interface {
	ApplyRating(addr string, rating uint8) error
}

// Engine records peer ratings on terminal jobs. Each party may rate exactly
// once per job; the rating lands on the other party's registry profile.
type Engine struct {
	state    ledgerState
	registry participantRegistry
	emitter  events.Emitter
}

// NewEngine creates a reputation tracker with a no-op emitter. State and
// registry must be configured before use.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the job ledger backend.
func (e *Engine) SetState(state ledgerState) { e.state = state }

// SetRegistry configures the registry the ratings fold into.
func (e *Engine) SetRegistry(reg participantRegistry) { e.registry = reg }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SubmitRating records caller's 1..5 rating of the other party on a terminal
// job. The job must be paid or resolved, the caller must be one of its
// parties, and each party rates at most once.
func (e *Engine) SubmitRating(caller string, jobID uint64, rating uint8) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.registry == nil {
		return errNilRegistry
	}
	if rating < registry.MinRating || rating > registry.MaxRating {
		return registry.ErrInvalidRating
	}
	addr, err := registry.NormalizeAddress(caller)
	if err != nil {
		return err
	}
	job, ok := e.state.JobGet(jobID)
	if !ok {
		return jobs.ErrNotFound
	}
	if !job.Terminal() {
		return jobs.ErrInvalidState
	}
	if !job.Party(addr) {
		return jobs.ErrUnauthorized
	}
	var subject string
	switch addr {
	case job.Employer:
		if job.EmployerRated {
			return ErrAlreadyRated
		}
		job.EmployerRated = true
		subject = job.Employee
	default:
		if job.EmployeeRated {
			return ErrAlreadyRated
		}
		job.EmployeeRated = true
		subject = job.Employer
	}
	if err := e.registry.ApplyRating(subject, rating); err != nil {
		return err
	}
	if err := e.state.JobPut(job); err != nil {
		return err
	}
	e.emit(newRatingEvent(job, addr, subject, rating))
	return nil
}

func (e *Engine) emit(evt ratingEvent) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}
