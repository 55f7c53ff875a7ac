package jobs

import (
	"errors"
	"math/big"
	"testing"

	"workledger/core/types"
	"workledger/native/escrow"
	"workledger/native/registry"
)

// marketState backs the registry, vault and ledger engines with one shared
// in-memory store, mirroring how the node wires them in production.
type marketState struct {
	users    map[string]*registry.Profile
	accounts map[string]*types.Account
	records  map[uint64]*escrow.Record
	jobs     map[uint64]*Job
	nextID   uint64
}

func newMarketState() *marketState {
	return &marketState{
		users:    make(map[string]*registry.Profile),
		accounts: make(map[string]*types.Account),
		records:  make(map[uint64]*escrow.Record),
		jobs:     make(map[uint64]*Job),
	}
}

func (m *marketState) UserPut(p *registry.Profile) error {
	m.users[p.Address] = p.Clone()
	return nil
}

func (m *marketState) UserGet(addr string) (*registry.Profile, bool) {
	profile, ok := m.users[addr]
	if !ok {
		return nil, false
	}
	return profile.Clone(), true
}

func (m *marketState) GetAccount(addr string) (*types.Account, error) {
	return m.accounts[addr].Clone(), nil
}

func (m *marketState) PutAccount(addr string, account *types.Account) error {
	m.accounts[addr] = account.Clone()
	return nil
}

func (m *marketState) EscrowPut(r *escrow.Record) error {
	m.records[r.JobID] = r.Clone()
	return nil
}

func (m *marketState) EscrowGet(jobID uint64) (*escrow.Record, bool) {
	record, ok := m.records[jobID]
	if !ok {
		return nil, false
	}
	return record.Clone(), true
}

func (m *marketState) JobPut(job *Job) error {
	m.jobs[job.ID] = job.Clone()
	return nil
}

func (m *marketState) JobGet(id uint64) (*Job, bool) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

func (m *marketState) JobsByParticipant(addr string) []*Job {
	var out []*Job
	for _, job := range m.jobs {
		if job.Party(addr) {
			out = append(out, job.Clone())
		}
	}
	return out
}

func (m *marketState) NextJobID() (uint64, error) {
	id := m.nextID
	m.nextID++
	return id, nil
}

func (m *marketState) balance(addr string) *big.Int {
	acc, ok := m.accounts[addr]
	if !ok {
		return big.NewInt(0)
	}
	return acc.Balance
}

type harness struct {
	state  *marketState
	users  *registry.Engine
	vault  *escrow.Engine
	ledger *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	state := newMarketState()

	users := registry.NewEngine()
	users.SetState(state)
	users.SetNowFunc(func() int64 { return 1_700_000_000 })

	vault := escrow.NewEngine()
	vault.SetState(state)
	vault.SetFeeTreasury("treasury")
	vault.SetNowFunc(func() int64 { return 1_700_000_000 })

	ledger := NewEngine()
	ledger.SetState(state)
	ledger.SetRegistry(users)
	ledger.SetVault(vault)
	ledger.SetFeeBps(100)
	ledger.SetNowFunc(func() int64 { return 1_700_000_000 })

	return &harness{state: state, users: users, vault: vault, ledger: ledger}
}

func (h *harness) register(t *testing.T, addr string, balance int64) {
	t.Helper()
	if _, err := h.users.Register(addr); err != nil {
		t.Fatalf("register %s: %v", addr, err)
	}
	h.state.accounts[addr] = &types.Account{Balance: big.NewInt(balance)}
}

func (h *harness) createAssigned(t *testing.T, employer, employee string, payment int64) *Job {
	t.Helper()
	job, err := h.ledger.CreateJob(employer, "deliver the thing", 1_700_086_400, big.NewInt(payment))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.ledger.AcceptJob(employee, job.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	return job
}

func TestCreateJobLocksPayment(t *testing.T) {
	h := newHarness(t)
	h.register(t, "employer", 1_000)

	job, err := h.ledger.CreateJob("employer", "build the site", 1_700_086_400, big.NewInt(100))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.ID != 0 {
		t.Fatalf("first job id = %d, want 0", job.ID)
	}
	if job.Status != StatusOpen {
		t.Fatalf("status = %v, want open", job.Status)
	}
	if got := h.state.balance("employer"); got.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("employer balance = %s, want 900", got)
	}
	locked, ok := h.vault.Locked(job.ID)
	if !ok || locked.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("locked = %v, want 100", locked)
	}

	second, err := h.ledger.CreateJob("employer", "second", 1_700_086_400, big.NewInt(50))
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if second.ID != 1 {
		t.Fatalf("second job id = %d, want 1", second.ID)
	}
}

func TestCreateJobValidation(t *testing.T) {
	h := newHarness(t)
	h.register(t, "employer", 100)

	if _, err := h.ledger.CreateJob("ghost", "x", 0, big.NewInt(10)); !errors.Is(err, registry.ErrNotRegistered) {
		t.Fatalf("unregistered: err = %v", err)
	}
	if _, err := h.ledger.CreateJob("employer", "x", 0, big.NewInt(0)); !errors.Is(err, escrow.ErrInvalidAmount) {
		t.Fatalf("zero payment: err = %v", err)
	}
	if _, err := h.ledger.CreateJob("employer", "x", 0, big.NewInt(500)); !errors.Is(err, escrow.ErrInsufficientFunds) {
		t.Fatalf("insufficient: err = %v", err)
	}
	if got := h.state.balance("employer"); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("failed create mutated balance: %s", got)
	}
	if len(h.state.jobs) != 0 {
		t.Fatalf("failed create stored a job record")
	}
}

func TestAcceptJobTransitions(t *testing.T) {
	h := newHarness(t)
	h.register(t, "employer", 1_000)
	h.register(t, "worker", 0)

	job, err := h.ledger.CreateJob("employer", "x", 0, big.NewInt(100))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := h.ledger.AcceptJob("employer", job.ID); !errors.Is(err, ErrSelfAcceptance) {
		t.Fatalf("self acceptance: err = %v", err)
	}
	if _, err := h.ledger.AcceptJob("ghost", job.ID); !errors.Is(err, registry.ErrNotRegistered) {
		t.Fatalf("unregistered: err = %v", err)
	}
	if _, err := h.ledger.AcceptJob("worker", 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing job: err = %v", err)
	}

	accepted, err := h.ledger.AcceptJob("worker", job.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != StatusAssigned || accepted.Employee != "worker" {
		t.Fatalf("accepted = %+v", accepted)
	}

	if _, err := h.ledger.AcceptJob("worker", job.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second accept: err = %v", err)
	}
}

func TestCompleteJobRequiresAssignedEmployee(t *testing.T) {
	h := newHarness(t)
	h.register(t, "employer", 1_000)
	h.register(t, "worker", 0)
	h.register(t, "other", 0)
	job := h.createAssigned(t, "employer", "worker", 100)

	if _, err := h.ledger.CompleteJob("other", job.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("outsider: err = %v", err)
	}
	if _, err := h.ledger.CompleteJob("employer", job.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("employer: err = %v", err)
	}

	completed, err := h.ledger.CompleteJob("worker", job.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != StatusCompleted || completed.Paid {
		t.Fatalf("completed = %+v", completed)
	}
	if _, err := h.ledger.CompleteJob("worker", job.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second complete: err = %v", err)
	}
}

func TestReleasePaymentHappyPath(t *testing.T) {
	h := newHarness(t)
	h.register(t, "employer", 1_000)
	h.register(t, "worker", 0)
	job := h.createAssigned(t, "employer", "worker", 100)
	if _, err := h.ledger.CompleteJob("worker", job.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	released, err := h.ledger.ReleasePayment("employer", job.ID)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if !released.Paid || released.Status != StatusCompleted {
		t.Fatalf("released = %+v", released)
	}
	if got := h.state.balance("worker"); got.Cmp(big.NewInt(99)) != 0 {
		t.Fatalf("worker balance = %s, want 99", got)
	}
	if got := h.state.balance("treasury"); got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("treasury balance = %s, want 1", got)
	}
	for _, addr := range []string{"employer", "worker"} {
		profile, err := h.users.Profile(addr)
		if err != nil {
			t.Fatalf("profile %s: %v", addr, err)
		}
		if profile.TotalJobs != 1 {
			t.Fatalf("%s totalJobs = %d, want 1", addr, profile.TotalJobs)
		}
	}
}

func TestReleasePaymentGuards(t *testing.T) {
	h := newHarness(t)
	h.register(t, "employer", 1_000)
	h.register(t, "worker", 0)
	job := h.createAssigned(t, "employer", "worker", 100)

	if _, err := h.ledger.ReleasePayment("employer", job.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("release before complete: err = %v", err)
	}
	if _, err := h.ledger.CompleteJob("worker", job.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := h.ledger.ReleasePayment("worker", job.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("employee release: err = %v", err)
	}
	if _, err := h.ledger.ReleasePayment("employer", job.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := h.ledger.ReleasePayment("employer", job.ID); !errors.Is(err, escrow.ErrAlreadyDisbursed) {
		t.Fatalf("double release: err = %v", err)
	}
	if got := h.state.balance("worker"); got.Cmp(big.NewInt(99)) != 0 {
		t.Fatalf("double release moved funds: %s", got)
	}
}

func TestInitiateDispute(t *testing.T) {
	h := newHarness(t)
	h.register(t, "employer", 1_000)
	h.register(t, "worker", 0)
	h.register(t, "other", 0)
	job := h.createAssigned(t, "employer", "worker", 100)

	if _, err := h.ledger.InitiateDispute("other", job.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("outsider: err = %v", err)
	}
	disputed, err := h.ledger.InitiateDispute("worker", job.ID)
	if err != nil {
		t.Fatalf("dispute: %v", err)
	}
	if disputed.Status != StatusDisputed {
		t.Fatalf("status = %v, want disputed", disputed.Status)
	}
	// Funds stay locked untouched.
	locked, ok := h.vault.Locked(job.ID)
	if !ok || locked.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("locked = %v, want 100", locked)
	}
	if _, err := h.ledger.InitiateDispute("worker", job.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second dispute: err = %v", err)
	}
}

func TestInitiateDisputeAfterPaymentFails(t *testing.T) {
	h := newHarness(t)
	h.register(t, "employer", 1_000)
	h.register(t, "worker", 0)
	job := h.createAssigned(t, "employer", "worker", 100)
	if _, err := h.ledger.CompleteJob("worker", job.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := h.ledger.InitiateDispute("employer", job.ID); err != nil {
		t.Fatalf("dispute on completed: %v", err)
	}

	paid := h.createAssigned(t, "employer", "worker", 100)
	if _, err := h.ledger.CompleteJob("worker", paid.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := h.ledger.ReleasePayment("employer", paid.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := h.ledger.InitiateDispute("employer", paid.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("dispute after payment: err = %v", err)
	}
}

func TestJobSnapshotIsolation(t *testing.T) {
	h := newHarness(t)
	h.register(t, "employer", 1_000)

	created, err := h.ledger.CreateJob("employer", "x", 0, big.NewInt(100))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	snapshot, err := h.ledger.Job(created.ID)
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	snapshot.Status = StatusResolved
	snapshot.Payment.SetInt64(0)

	reread, err := h.ledger.Job(created.ID)
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if reread.Status != StatusOpen || reread.Payment.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("snapshot mutation leaked into ledger: %+v", reread)
	}
}

func TestJobsByParticipant(t *testing.T) {
	h := newHarness(t)
	h.register(t, "employer", 1_000)
	h.register(t, "worker", 0)
	first := h.createAssigned(t, "employer", "worker", 100)
	second, err := h.ledger.CreateJob("employer", "open one", 0, big.NewInt(50))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	mine, err := h.ledger.JobsByParticipant("worker")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != first.ID {
		t.Fatalf("worker jobs = %+v", mine)
	}
	theirs, err := h.ledger.JobsByParticipant("employer")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(theirs) != 2 {
		t.Fatalf("employer jobs = %d, want 2", len(theirs))
	}
	if theirs[0].ID == theirs[1].ID || second.ID == first.ID {
		t.Fatalf("duplicate job ids listed")
	}
}
