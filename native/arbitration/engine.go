package arbitration

import (
	"errors"
	"math/big"

	"workledger/core/events"
	"workledger/native/jobs"
	"workledger/native/registry"
)

var (
	errNilState   = errors.New("arbitration engine: state not configured")
	errNilVault   = errors.New("arbitration engine: vault not configured")
	errNilArbiter = errors.New("arbitration engine: arbiter not configured")

	// ErrUnauthorized is returned when the caller is not the configured
	// arbiter identity.
	ErrUnauthorized = errors.New("arbitration: caller is not the arbiter")
	// ErrInvalidWinner is returned when the winner is neither party of the
	// disputed job.
	ErrInvalidWinner = errors.New("arbitration: winner must be a party to the job")
)

type ledgerState interface {
	JobPut(*jobs.Job) error
	JobGet(id uint64) (*jobs.Job, bool)
}

type paymentVault interface {
	Payout(jobID uint64, recipient string, feeBps uint32) (*big.Int, *big.Int, error)
	Refund(jobID uint64, recipient string) (*big.Int, error)
}

type participantRegistry interface {
	RecordCompletedJob(addr string) error
}

// Engine resolves disputes on behalf of the single configured arbiter
// identity. It is the only path that can move escrowed funds without the job
// having reached Completed through the normal flow.
type Engine struct {
	state    ledgerState
	vault    paymentVault
	registry participantRegistry
	emitter  events.Emitter
	arbiter  string
	feeBps   uint32
}

// NewEngine creates a dispute arbiter with a no-op emitter. State, vault and
// the arbiter identity must be configured before use.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the job ledger backend.
func (e *Engine) SetState(state ledgerState) { e.state = state }

// SetVault configures the escrow vault funds move through.
func (e *Engine) SetVault(vault paymentVault) { e.vault = vault }

// SetRegistry configures the registry used to advance completed-job counters.
func (e *Engine) SetRegistry(reg participantRegistry) { e.registry = reg }

// SetArbiter configures the privileged arbiter identity. The value is set
// once at engine initialisation and never mutated afterwards.
func (e *Engine) SetArbiter(addr string) { e.arbiter = addr }

// SetFeeBps configures the platform fee applied on employee-favoured
// resolutions, mirroring normal release.
func (e *Engine) SetFeeBps(bps uint32) { e.feeBps = bps }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// ResolveDispute settles a Disputed job according to the arbiter's verdict.
// An employee win pays out net of the platform fee, exactly like a normal
// release; an employer win refunds the full amount with no fee. The job moves
// to Resolved and both parties' completed-job counters advance.
func (e *Engine) ResolveDispute(caller string, jobID uint64, winner string) (*jobs.Job, error) {
	switch {
	case e == nil || e.state == nil:
		return nil, errNilState
	case e.vault == nil:
		return nil, errNilVault
	case e.arbiter == "":
		return nil, errNilArbiter
	}
	addr, err := registry.NormalizeAddress(caller)
	if err != nil {
		return nil, err
	}
	if addr != e.arbiter {
		return nil, ErrUnauthorized
	}
	job, ok := e.state.JobGet(jobID)
	if !ok {
		return nil, jobs.ErrNotFound
	}
	if job.Status != jobs.StatusDisputed {
		return nil, jobs.ErrInvalidState
	}
	verdict, err := registry.NormalizeAddress(winner)
	if err != nil {
		return nil, err
	}
	var payout, fee *big.Int
	switch verdict {
	case job.Employee:
		payout, fee, err = e.vault.Payout(jobID, job.Employee, e.feeBps)
	case job.Employer:
		payout, err = e.vault.Refund(jobID, job.Employer)
	default:
		return nil, ErrInvalidWinner
	}
	if err != nil {
		return nil, err
	}
	job.Status = jobs.StatusResolved
	job.Winner = verdict
	job.Paid = verdict == job.Employee
	if err := e.state.JobPut(job); err != nil {
		return nil, err
	}
	if e.registry != nil {
		if err := e.registry.RecordCompletedJob(job.Employer); err != nil {
			return nil, err
		}
		if err := e.registry.RecordCompletedJob(job.Employee); err != nil {
			return nil, err
		}
	}
	e.emit(newResolvedEvent(job, payout, fee))
	return job.Clone(), nil
}

func (e *Engine) emit(evt arbitrationEvent) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}
