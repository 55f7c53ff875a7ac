package jobs

import (
	"errors"
	"math/big"
	"time"

	"workledger/core/events"
	"workledger/native/escrow"
	"workledger/native/registry"
)

var (
	errNilState    = errors.New("jobs engine: state not configured")
	errNilRegistry = errors.New("jobs engine: registry not configured")
	errNilVault    = errors.New("jobs engine: vault not configured")
)

type ledgerState interface {
	JobPut(*Job) error
	JobGet(id uint64) (*Job, bool)
	JobsByParticipant(addr string) []*Job
	NextJobID() (uint64, error)
}

type participantRegistry interface {
	IsRegistered(addr string) bool
	RecordCompletedJob(addr string) error
}

type paymentVault interface {
	Lock(jobID uint64, payer string, amount *big.Int) error
	Payout(jobID uint64, recipient string, feeBps uint32) (*big.Int, *big.Int, error)
}

// Engine owns the job records and the lifecycle state machine. It validates
// participants against the registry and moves funds through the escrow vault
// on lifecycle transitions; it never touches account balances directly.
type Engine struct {
	state    ledgerState
	registry participantRegistry
	vault    paymentVault
	emitter  events.Emitter
	feeBps   uint32
	nowFn    func() int64
}

// NewEngine creates a job ledger with a no-op emitter. State, registry and
// vault must be configured before use.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the ledger.
func (e *Engine) SetState(state ledgerState) { e.state = state }

// SetRegistry configures the participant registry consulted on transitions.
func (e *Engine) SetRegistry(reg participantRegistry) { e.registry = reg }

// SetVault configures the escrow vault funds move through.
func (e *Engine) SetVault(vault paymentVault) { e.vault = vault }

// SetFeeBps configures the platform fee charged on payout, in basis points.
func (e *Engine) SetFeeBps(bps uint32) { e.feeBps = bps }

// FeeBps returns the configured platform fee rate in basis points.
func (e *Engine) FeeBps() uint32 { return e.feeBps }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt jobEvent) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.registry == nil:
		return errNilRegistry
	case e.vault == nil:
		return errNilVault
	}
	return nil
}

func (e *Engine) loadJob(id uint64) (*Job, error) {
	job, ok := e.state.JobGet(id)
	if !ok {
		return nil, ErrNotFound
	}
	return job, nil
}

// CreateJob validates the employer and payment, locks the payment into
// escrow under a freshly allocated id and stores the job in Open. A failed
// lock leaves no job record behind; whether the allocated id is reclaimed is
// up to the state backend.
func (e *Engine) CreateJob(employer, description string, deadline int64, payment *big.Int) (*Job, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	caller, err := registry.NormalizeAddress(employer)
	if err != nil {
		return nil, err
	}
	if !e.registry.IsRegistered(caller) {
		return nil, registry.ErrNotRegistered
	}
	if payment == nil || payment.Sign() <= 0 {
		return nil, escrow.ErrInvalidAmount
	}
	id, err := e.state.NextJobID()
	if err != nil {
		return nil, err
	}
	if err := e.vault.Lock(id, caller, payment); err != nil {
		return nil, err
	}
	job := &Job{
		ID:          id,
		Employer:    caller,
		Description: description,
		Payment:     new(big.Int).Set(payment),
		Deadline:    deadline,
		CreatedAt:   e.nowFn(),
		Status:      StatusOpen,
	}
	if err := e.state.JobPut(job); err != nil {
		return nil, err
	}
	e.emit(newCreatedEvent(job))
	return job.Clone(), nil
}

// AcceptJob assigns an Open job to a registered employee other than the
// employer.
func (e *Engine) AcceptJob(employee string, jobID uint64) (*Job, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	caller, err := registry.NormalizeAddress(employee)
	if err != nil {
		return nil, err
	}
	job, err := e.loadJob(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != StatusOpen {
		return nil, ErrInvalidState
	}
	if !e.registry.IsRegistered(caller) {
		return nil, registry.ErrNotRegistered
	}
	if caller == job.Employer {
		return nil, ErrSelfAcceptance
	}
	job.Employee = caller
	job.Status = StatusAssigned
	if err := e.state.JobPut(job); err != nil {
		return nil, err
	}
	e.emit(newAcceptedEvent(job))
	return job.Clone(), nil
}

// CompleteJob marks an Assigned job as Completed. Only the assigned employee
// may invoke the transition; payment stays locked until release.
func (e *Engine) CompleteJob(employee string, jobID uint64) (*Job, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	caller, err := registry.NormalizeAddress(employee)
	if err != nil {
		return nil, err
	}
	job, err := e.loadJob(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != StatusAssigned {
		return nil, ErrInvalidState
	}
	if caller != job.Employee {
		return nil, ErrUnauthorized
	}
	job.Status = StatusCompleted
	if err := e.state.JobPut(job); err != nil {
		return nil, err
	}
	e.emit(newCompletedEvent(job))
	return job.Clone(), nil
}

// ReleasePayment disburses the escrowed payment for a Completed job: the
// employee receives the amount net of the platform fee, the remainder accrues
// to the treasury, and both parties' completed-job counters advance. Only the
// employer may release, exactly once.
func (e *Engine) ReleasePayment(employer string, jobID uint64) (*Job, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	caller, err := registry.NormalizeAddress(employer)
	if err != nil {
		return nil, err
	}
	job, err := e.loadJob(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != StatusCompleted {
		return nil, ErrInvalidState
	}
	if caller != job.Employer {
		return nil, ErrUnauthorized
	}
	if job.Paid {
		return nil, escrow.ErrAlreadyDisbursed
	}
	payout, fee, err := e.vault.Payout(jobID, job.Employee, e.feeBps)
	if err != nil {
		return nil, err
	}
	job.Paid = true
	if err := e.state.JobPut(job); err != nil {
		return nil, err
	}
	if err := e.registry.RecordCompletedJob(job.Employer); err != nil {
		return nil, err
	}
	if err := e.registry.RecordCompletedJob(job.Employee); err != nil {
		return nil, err
	}
	e.emit(newReleasedEvent(job, payout, fee))
	return job.Clone(), nil
}

// InitiateDispute moves an Assigned or unpaid Completed job into Disputed.
// Funds stay locked in escrow untouched. Only the job's parties may dispute.
func (e *Engine) InitiateDispute(caller string, jobID uint64) (*Job, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	addr, err := registry.NormalizeAddress(caller)
	if err != nil {
		return nil, err
	}
	job, err := e.loadJob(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != StatusAssigned && job.Status != StatusCompleted {
		return nil, ErrInvalidState
	}
	if job.Paid {
		return nil, ErrInvalidState
	}
	if !job.Party(addr) {
		return nil, ErrUnauthorized
	}
	job.Status = StatusDisputed
	if err := e.state.JobPut(job); err != nil {
		return nil, err
	}
	e.emit(newDisputedEvent(job, addr))
	return job.Clone(), nil
}

// Job returns a snapshot of the stored record.
func (e *Engine) Job(jobID uint64) (*Job, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	job, ok := e.state.JobGet(jobID)
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}

// JobsByParticipant returns snapshots of every job the address appears on as
// employer or employee.
func (e *Engine) JobsByParticipant(addr string) ([]*Job, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	normalized, err := registry.NormalizeAddress(addr)
	if err != nil {
		return nil, err
	}
	stored := e.state.JobsByParticipant(normalized)
	out := make([]*Job, 0, len(stored))
	for _, job := range stored {
		out = append(out, job.Clone())
	}
	return out, nil
}
