package core

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"workledger/config"
	"workledger/core/events"
	"workledger/core/state"
	"workledger/native/arbitration"
	"workledger/native/escrow"
	"workledger/native/jobs"
	"workledger/native/registry"
	"workledger/native/reputation"
)

type captureEmitter struct {
	types []string
}

func (c *captureEmitter) Emit(evt events.Event) {
	c.types = append(c.types, evt.EventType())
}

func testConfig() *config.Config {
	return &config.Config{
		RPCAddress:         "127.0.0.1:0",
		NetworkName:        "workledger-test",
		ArbiterAddress:     "arbiter",
		FeeTreasuryAddress: "treasury",
		PlatformFeeBps:     100,
	}
}

func newTestNode(t *testing.T) (*Node, *captureEmitter) {
	t.Helper()
	emitter := &captureEmitter{}
	node, err := NewNode(testConfig(), state.NewManager(), emitter, nil)
	require.NoError(t, err)
	return node, emitter
}

func register(t *testing.T, node *Node, addr string, balance int64) {
	t.Helper()
	_, err := node.RegisterUser(addr)
	require.NoError(t, err)
	if balance > 0 {
		require.NoError(t, node.Deposit(addr, big.NewInt(balance)))
	}
}

func TestHappyPathLifecycle(t *testing.T) {
	node, emitter := newTestNode(t)
	register(t, node, "employer", 1_000)
	register(t, node, "worker", 0)

	job, err := node.CreateJob("employer", "build the landing page", 1_700_086_400, big.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, uint64(0), job.ID)
	require.Equal(t, jobs.StatusOpen, job.Status)

	_, err = node.AcceptJob("worker", job.ID)
	require.NoError(t, err)
	_, err = node.CompleteJob("worker", job.ID)
	require.NoError(t, err)

	released, err := node.ReleasePayment("employer", job.ID)
	require.NoError(t, err)
	require.True(t, released.Paid)

	// Worker nets 99% of the escrowed payment.
	balance, err := node.Balance("worker")
	require.NoError(t, err)
	require.Equal(t, int64(99), balance.Int64())

	for _, addr := range []string{"employer", "worker"} {
		profile, err := node.UserProfile(addr)
		require.NoError(t, err)
		require.Equal(t, uint64(1), profile.TotalJobs)
	}

	require.Equal(t, []string{
		registry.EventTypeUserRegistered,
		EventTypeDeposit,
		registry.EventTypeUserRegistered,
		jobs.EventTypeJobCreated,
		jobs.EventTypeJobAccepted,
		jobs.EventTypeJobCompleted,
		jobs.EventTypeJobReleased,
	}, emitter.types)
}

func TestDisputeLifecycle(t *testing.T) {
	node, emitter := newTestNode(t)
	register(t, node, "employer", 1_000)
	register(t, node, "worker", 0)

	first, err := node.CreateJob("employer", "first", 0, big.NewInt(100))
	require.NoError(t, err)
	_, err = node.AcceptJob("worker", first.ID)
	require.NoError(t, err)
	_, err = node.InitiateDispute("worker", first.ID)
	require.NoError(t, err)

	resolved, err := node.ResolveDispute("arbiter", first.ID, "worker")
	require.NoError(t, err)
	require.Equal(t, jobs.StatusResolved, resolved.Status)

	balance, err := node.Balance("worker")
	require.NoError(t, err)
	require.Equal(t, int64(99), balance.Int64())

	second, err := node.CreateJob("employer", "second", 0, big.NewInt(100))
	require.NoError(t, err)
	_, err = node.AcceptJob("worker", second.ID)
	require.NoError(t, err)
	_, err = node.InitiateDispute("employer", second.ID)
	require.NoError(t, err)

	employerBefore, err := node.Balance("employer")
	require.NoError(t, err)
	_, err = node.ResolveDispute("arbiter", second.ID, "employer")
	require.NoError(t, err)

	employerAfter, err := node.Balance("employer")
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Add(employerBefore, big.NewInt(100)), employerAfter)

	require.Contains(t, emitter.types, jobs.EventTypeJobDisputed)
	require.Contains(t, emitter.types, arbitration.EventTypeJobResolved)

	_, err = node.ResolveDispute("worker", second.ID, "worker")
	require.ErrorIs(t, err, arbitration.ErrUnauthorized)
}

func TestRatingsFoldIntoReputation(t *testing.T) {
	node, emitter := newTestNode(t)
	register(t, node, "employer", 1_000)
	register(t, node, "worker", 0)

	job, err := node.CreateJob("employer", "rated work", 0, big.NewInt(100))
	require.NoError(t, err)
	_, err = node.AcceptJob("worker", job.ID)
	require.NoError(t, err)
	_, err = node.CompleteJob("worker", job.ID)
	require.NoError(t, err)
	_, err = node.ReleasePayment("employer", job.ID)
	require.NoError(t, err)

	require.NoError(t, node.SubmitRating("employer", job.ID, 5))
	require.NoError(t, node.SubmitRating("worker", job.ID, 4))
	require.ErrorIs(t, node.SubmitRating("employer", job.ID, 1), reputation.ErrAlreadyRated)

	workerRep, err := node.UserReputation("worker")
	require.NoError(t, err)
	require.Equal(t, uint64(100), workerRep)

	employerRep, err := node.UserReputation("employer")
	require.NoError(t, err)
	require.Equal(t, uint64(80), employerRep)

	require.Contains(t, emitter.types, reputation.EventTypeRatingSubmitted)
}

func TestDepositRequiresRegistration(t *testing.T) {
	node, _ := newTestNode(t)
	err := node.Deposit("ghost", big.NewInt(10))
	require.ErrorIs(t, err, registry.ErrNotRegistered)

	register(t, node, "alice", 0)
	require.ErrorIs(t, node.Deposit("alice", big.NewInt(0)), escrow.ErrInvalidAmount)
}

func TestQueriesDoNotMutate(t *testing.T) {
	node, _ := newTestNode(t)
	register(t, node, "employer", 1_000)
	register(t, node, "worker", 0)
	job, err := node.CreateJob("employer", "snapshot", 0, big.NewInt(100))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		details, err := node.JobDetails(job.ID)
		require.NoError(t, err)
		require.Equal(t, jobs.StatusOpen, details.Status)

		rep, err := node.UserReputation("employer")
		require.NoError(t, err)
		require.Equal(t, uint64(100), rep)
	}

	_, err = node.JobDetails(42)
	require.ErrorIs(t, err, jobs.ErrNotFound)
	_, err = node.UserReputation("ghost")
	require.ErrorIs(t, err, registry.ErrNotRegistered)
}

func TestJobsByParticipant(t *testing.T) {
	node, _ := newTestNode(t)
	register(t, node, "employer", 1_000)
	register(t, node, "worker", 0)

	first, err := node.CreateJob("employer", "one", 0, big.NewInt(100))
	require.NoError(t, err)
	_, err = node.AcceptJob("worker", first.ID)
	require.NoError(t, err)
	_, err = node.CreateJob("employer", "two", 0, big.NewInt(100))
	require.NoError(t, err)

	mine, err := node.JobsByParticipant("worker")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	all, err := node.JobsByParticipant("employer")
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func newPersistentNode(t *testing.T) (*Node, *state.Manager) {
	t.Helper()
	st, err := state.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	node, err := NewNode(testConfig(), st, nil, nil)
	require.NoError(t, err)
	return node, st
}

func TestFailedReleaseLeavesEscrowUntouched(t *testing.T) {
	node, st := newPersistentNode(t)
	register(t, node, "employer", 1_000)
	register(t, node, "worker", 0)

	job, err := node.CreateJob("employer", "doomed release", 0, big.NewInt(100))
	require.NoError(t, err)
	_, err = node.AcceptJob("worker", job.ID)
	require.NoError(t, err)
	_, err = node.CompleteJob("worker", job.ID)
	require.NoError(t, err)

	// Fail the write path underneath the release.
	require.NoError(t, st.Close())
	_, err = node.ReleasePayment("employer", job.ID)
	require.Error(t, err)

	// Nothing moved: no credit landed, the job is unpaid and the escrow is
	// still held, so the release stays retryable rather than double-paying.
	balance, err := node.Balance("worker")
	require.NoError(t, err)
	require.Zero(t, balance.Sign())

	details, err := node.JobDetails(job.ID)
	require.NoError(t, err)
	require.Equal(t, jobs.StatusCompleted, details.Status)
	require.False(t, details.Paid)

	profile, err := node.UserProfile("employer")
	require.NoError(t, err)
	require.Zero(t, profile.TotalJobs)
}

func TestFailedRatingLeavesProfileUntouched(t *testing.T) {
	node, st := newPersistentNode(t)
	register(t, node, "employer", 1_000)
	register(t, node, "worker", 0)

	job, err := node.CreateJob("employer", "doomed rating", 0, big.NewInt(100))
	require.NoError(t, err)
	_, err = node.AcceptJob("worker", job.ID)
	require.NoError(t, err)
	_, err = node.CompleteJob("worker", job.ID)
	require.NoError(t, err)
	_, err = node.ReleasePayment("employer", job.ID)
	require.NoError(t, err)

	require.NoError(t, st.Close())
	require.Error(t, node.SubmitRating("employer", job.ID, 5))

	// The rated flag and the profile fold are discarded together, so the
	// failed attempt neither counts the rating nor burns the party's slot.
	profile, err := node.UserProfile("worker")
	require.NoError(t, err)
	require.Zero(t, profile.RatingCount)
	require.Equal(t, uint64(100), profile.Reputation)

	details, err := node.JobDetails(job.ID)
	require.NoError(t, err)
	require.False(t, details.EmployerRated)
}
