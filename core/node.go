package core

import (
	"log/slog"
	"math/big"
	"sync"

	"workledger/config"
	"workledger/core/events"
	"workledger/core/state"
	"workledger/core/types"
	"workledger/native/arbitration"
	"workledger/native/escrow"
	"workledger/native/jobs"
	"workledger/native/registry"
	"workledger/native/reputation"
	"workledger/observability/metrics"
)

// Node owns the state manager and the native engines and exposes the full
// marketplace operation surface. All mutating operations are serialized
// behind a single lock so state-machine transitions and escrow balance
// changes never interleave; queries take the read lock and observe a
// consistent snapshot. Each mutating operation runs inside one state batch,
// so a failure at any point leaves every record exactly as it was.
type Node struct {
	mu      sync.RWMutex
	state   *state.Manager
	users   *registry.Engine
	vault   *escrow.Engine
	ledger  *jobs.Engine
	arbiter *arbitration.Engine
	ratings *reputation.Engine
	emitter events.Emitter
	metrics *metrics.MarketplaceMetrics
	logger  *slog.Logger
}

// NewNode wires the engines against the shared state manager according to
// the supplied configuration. Passing a nil emitter discards events; passing
// a nil logger uses the process default.
func NewNode(cfg *config.Config, st *state.Manager, emitter events.Emitter, logger *slog.Logger) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	users := registry.NewEngine()
	users.SetState(st)
	users.SetEmitter(emitter)

	vault := escrow.NewEngine()
	vault.SetState(st)
	vault.SetFeeTreasury(cfg.FeeTreasuryAddress)

	ledger := jobs.NewEngine()
	ledger.SetState(st)
	ledger.SetRegistry(users)
	ledger.SetVault(vault)
	ledger.SetFeeBps(cfg.PlatformFeeBps)
	ledger.SetEmitter(emitter)

	arbiter := arbitration.NewEngine()
	arbiter.SetState(st)
	arbiter.SetVault(vault)
	arbiter.SetRegistry(users)
	arbiter.SetArbiter(cfg.ArbiterAddress)
	arbiter.SetFeeBps(cfg.PlatformFeeBps)
	arbiter.SetEmitter(emitter)

	ratings := reputation.NewEngine()
	ratings.SetState(st)
	ratings.SetRegistry(users)
	ratings.SetEmitter(emitter)

	return &Node{
		state:   st,
		users:   users,
		vault:   vault,
		ledger:  ledger,
		arbiter: arbiter,
		ratings: ratings,
		emitter: emitter,
		metrics: metrics.Marketplace(),
		logger:  logger,
	}, nil
}

// finish closes the state batch for one operation: the staged writes commit
// when the operation succeeded and are discarded otherwise, so the ledger
// never holds a partial mutation. The outcome lands on the operation counter.
func (n *Node) finish(method string, err error) error {
	if err != nil {
		n.state.Rollback()
	} else {
		err = n.state.Commit()
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	n.metrics.RecordOperation(method, result)
	return err
}

// gaugeUnits renders a ledger amount for the escrow gauge. The float64
// conversion loses precision above 2^53 units; the gauge is an operational
// signal only, ledger math never goes through here.
func gaugeUnits(amount *big.Int) float64 {
	if amount == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(amount).Float64()
	return f
}

// RegisterUser creates a participant profile with the baseline reputation.
func (n *Node) RegisterUser(addr string) (*registry.Profile, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.Begin()
	profile, err := n.users.Register(addr)
	if err = n.finish("registerUser", err); err != nil {
		return nil, err
	}
	n.logger.Info("user registered", "address", profile.Address)
	return profile, nil
}

// Deposit credits a registered participant's available balance. It models
// the external payment rail confirming an inbound settlement; the engine
// itself never creates value elsewhere.
func (n *Node) Deposit(addr string, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.Begin()
	normalized, err := n.applyDeposit(addr, amount)
	if err = n.finish("deposit", err); err != nil {
		return err
	}
	n.emitter.Emit(newDepositEvent(normalized, amount))
	n.logger.Info("deposit credited", "address", normalized, "amount", amount.String())
	return nil
}

func (n *Node) applyDeposit(addr string, amount *big.Int) (string, error) {
	normalized, err := registry.NormalizeAddress(addr)
	if err != nil {
		return "", err
	}
	if !n.users.IsRegistered(normalized) {
		return "", registry.ErrNotRegistered
	}
	if amount == nil || amount.Sign() <= 0 {
		return "", escrow.ErrInvalidAmount
	}
	account, err := n.state.GetAccount(normalized)
	if err != nil {
		return "", err
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	if err := n.state.PutAccount(normalized, account); err != nil {
		return "", err
	}
	return normalized, nil
}

// Balance returns the participant's available (non-escrowed) balance.
func (n *Node) Balance(addr string) (*big.Int, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	normalized, err := registry.NormalizeAddress(addr)
	if err != nil {
		return nil, err
	}
	if !n.users.IsRegistered(normalized) {
		return nil, registry.ErrNotRegistered
	}
	account, err := n.state.GetAccount(normalized)
	if err != nil {
		return nil, err
	}
	return account.Balance, nil
}

// CreateJob locks the payment into escrow and opens a job for the employer.
func (n *Node) CreateJob(employer, description string, deadline int64, payment *big.Int) (*jobs.Job, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.Begin()
	job, err := n.ledger.CreateJob(employer, description, deadline, payment)
	if err = n.finish("createJob", err); err != nil {
		return nil, err
	}
	n.metrics.AddOpenJobs(1)
	n.metrics.AddLockedEscrow(gaugeUnits(job.Payment))
	n.logger.Info("job created", "jobId", job.ID, "employer", job.Employer, "payment", job.Payment.String())
	return job, nil
}

// AcceptJob assigns an open job to the employee.
func (n *Node) AcceptJob(employee string, jobID uint64) (*jobs.Job, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.Begin()
	job, err := n.ledger.AcceptJob(employee, jobID)
	if err = n.finish("acceptJob", err); err != nil {
		return nil, err
	}
	n.metrics.AddOpenJobs(-1)
	n.logger.Info("job accepted", "jobId", job.ID, "employee", job.Employee)
	return job, nil
}

// CompleteJob marks an assigned job as completed by its employee.
func (n *Node) CompleteJob(employee string, jobID uint64) (*jobs.Job, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.Begin()
	job, err := n.ledger.CompleteJob(employee, jobID)
	if err = n.finish("completeJob", err); err != nil {
		return nil, err
	}
	n.logger.Info("job completed", "jobId", job.ID)
	return job, nil
}

// ReleasePayment disburses the escrowed payment for a completed job. The
// payout, the paid flag and both completed-job counters land in the same
// batch, so a failed release leaves the escrow untouched and retryable.
func (n *Node) ReleasePayment(employer string, jobID uint64) (*jobs.Job, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.Begin()
	job, err := n.ledger.ReleasePayment(employer, jobID)
	if err = n.finish("releasePayment", err); err != nil {
		return nil, err
	}
	n.metrics.AddLockedEscrow(-gaugeUnits(job.Payment))
	n.logger.Info("payment released", "jobId", job.ID, "employee", job.Employee)
	return job, nil
}

// InitiateDispute flags a job as disputed by one of its parties.
func (n *Node) InitiateDispute(caller string, jobID uint64) (*jobs.Job, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.Begin()
	job, err := n.ledger.InitiateDispute(caller, jobID)
	if err = n.finish("initiateDispute", err); err != nil {
		return nil, err
	}
	n.logger.Info("dispute opened", "jobId", job.ID)
	return job, nil
}

// ResolveDispute settles a disputed job according to the arbiter's verdict.
func (n *Node) ResolveDispute(caller string, jobID uint64, winner string) (*jobs.Job, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.Begin()
	job, err := n.arbiter.ResolveDispute(caller, jobID, winner)
	if err = n.finish("resolveDispute", err); err != nil {
		return nil, err
	}
	n.metrics.AddLockedEscrow(-gaugeUnits(job.Payment))
	n.logger.Info("dispute resolved", "jobId", job.ID, "winner", job.Winner)
	return job, nil
}

// SubmitRating records a party's rating of the other party on a terminal job.
// The rated flag and the profile update commit together, so a failure cannot
// leave a party able to rate twice.
func (n *Node) SubmitRating(caller string, jobID uint64, rating uint8) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.Begin()
	err := n.ratings.SubmitRating(caller, jobID, rating)
	if err = n.finish("submitRating", err); err != nil {
		return err
	}
	n.logger.Info("rating submitted", "jobId", jobID, "rater", caller, "rating", rating)
	return nil
}

// JobDetails returns a snapshot of the job record.
func (n *Node) JobDetails(jobID uint64) (*jobs.Job, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.ledger.Job(jobID)
}

// JobsByParticipant returns snapshots of every job the address appears on.
func (n *Node) JobsByParticipant(addr string) ([]*jobs.Job, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.ledger.JobsByParticipant(addr)
}

// UserReputation returns the participant's current reputation score.
func (n *Node) UserReputation(addr string) (uint64, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.users.Reputation(addr)
}

// UserProfile returns the participant's full registry profile.
func (n *Node) UserProfile(addr string) (*registry.Profile, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.users.Profile(addr)
}

type depositEvent struct {
	evt *types.Event
}

func (e depositEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e depositEvent) Event() *types.Event { return e.evt }

// EventTypeDeposit is emitted when the payment rail confirms an inbound
// settlement.
const EventTypeDeposit = "marketplace.deposit"

func newDepositEvent(addr string, amount *big.Int) depositEvent {
	return depositEvent{evt: &types.Event{
		Type: EventTypeDeposit,
		Attributes: map[string]string{
			"address": addr,
			"amount":  amount.String(),
		},
	}}
}
