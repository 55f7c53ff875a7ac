package state

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"workledger/core/types"
	"workledger/native/escrow"
	"workledger/native/jobs"
	"workledger/native/registry"
)

var (
	bucketAccounts = []byte("accounts")
	bucketUsers    = []byte("users")
	bucketJobs     = []byte("jobs")
	bucketEscrows  = []byte("escrows")
	bucketMeta     = []byte("meta")

	keyNextJobID = []byte("nextJobId")
)

// pending stages the writes of one in-flight operation until Commit.
type pending struct {
	accounts  map[string]*types.Account
	users     map[string]*registry.Profile
	jobs      map[uint64]*jobs.Job
	escrows   map[uint64]*escrow.Record
	nextJobID *uint64
}

func newPending() *pending {
	return &pending{
		accounts: make(map[string]*types.Account),
		users:    make(map[string]*registry.Profile),
		jobs:     make(map[uint64]*jobs.Job),
		escrows:  make(map[uint64]*escrow.Record),
	}
}

// Manager is the single ledger store behind every engine. Records live in
// memory and are served as deep copies; when opened with a database path each
// mutation is written through to bbolt so the ledger survives restarts.
// Begin/Commit/Rollback stage the writes of a single operation: a mutation
// that touches several records applies entirely or not at all, and with a
// database attached the whole batch goes through one bbolt transaction.
// Mutating operations are serialized by the node, the manager's own lock only
// guards concurrent readers against partial-write visibility.
type Manager struct {
	mu        sync.RWMutex
	accounts  map[string]*types.Account
	users     map[string]*registry.Profile
	jobs      map[uint64]*jobs.Job
	escrows   map[uint64]*escrow.Record
	nextJobID uint64
	staged    *pending
	db        *bolt.DB
}

// NewManager creates a memory-only manager, primarily for tests and
// ephemeral deployments.
func NewManager() *Manager {
	return &Manager{
		accounts: make(map[string]*types.Account),
		users:    make(map[string]*registry.Profile),
		jobs:     make(map[uint64]*jobs.Job),
		escrows:  make(map[uint64]*escrow.Record),
	}
}

// Open creates a manager backed by the bbolt file at path, restoring any
// previously persisted records.
func Open(path string) (*Manager, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("state: open %s: %w", path, err)
	}
	m := NewManager()
	m.db = db
	if err := m.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

// Close releases the underlying database, if any.
func (m *Manager) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

func (m *Manager) load() error {
	return m.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketAccounts, bucketUsers, bucketJobs, bucketEscrows, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("state: create bucket %s: %w", name, err)
			}
		}
		if err := tx.Bucket(bucketAccounts).ForEach(func(k, v []byte) error {
			acc := &types.Account{}
			if err := json.Unmarshal(v, acc); err != nil {
				return err
			}
			m.accounts[string(k)] = acc
			return nil
		}); err != nil {
			return fmt.Errorf("state: load accounts: %w", err)
		}
		if err := tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
			profile := &registry.Profile{}
			if err := json.Unmarshal(v, profile); err != nil {
				return err
			}
			m.users[string(k)] = profile
			return nil
		}); err != nil {
			return fmt.Errorf("state: load users: %w", err)
		}
		if err := tx.Bucket(bucketJobs).ForEach(func(k, v []byte) error {
			job := &jobs.Job{}
			if err := json.Unmarshal(v, job); err != nil {
				return err
			}
			m.jobs[job.ID] = job
			return nil
		}); err != nil {
			return fmt.Errorf("state: load jobs: %w", err)
		}
		if err := tx.Bucket(bucketEscrows).ForEach(func(k, v []byte) error {
			record := &escrow.Record{}
			if err := json.Unmarshal(v, record); err != nil {
				return err
			}
			m.escrows[record.JobID] = record
			return nil
		}); err != nil {
			return fmt.Errorf("state: load escrows: %w", err)
		}
		if raw := tx.Bucket(bucketMeta).Get(keyNextJobID); len(raw) == 8 {
			m.nextJobID = binary.BigEndian.Uint64(raw)
		}
		return nil
	})
}

// Begin opens a staging batch: subsequent writes are held back until Commit
// and reads observe the staged records. The node serializes mutating
// operations, so at most one batch is open at a time.
func (m *Manager) Begin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staged = newPending()
}

// Rollback discards the staged writes without touching the ledger.
func (m *Manager) Rollback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staged = nil
}

// Commit applies the staged writes as one unit. With a database attached the
// whole batch is written in a single bbolt transaction first; if that
// transaction fails nothing reaches the in-memory maps either, so the ledger
// stays exactly as it was before Begin.
func (m *Manager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	staged := m.staged
	m.staged = nil
	if staged == nil {
		return nil
	}
	if m.db != nil {
		if err := m.db.Update(func(tx *bolt.Tx) error {
			for addr, acc := range staged.accounts {
				if err := putJSON(tx, bucketAccounts, []byte(addr), acc); err != nil {
					return err
				}
			}
			for addr, profile := range staged.users {
				if err := putJSON(tx, bucketUsers, []byte(addr), profile); err != nil {
					return err
				}
			}
			for id, job := range staged.jobs {
				if err := putJSON(tx, bucketJobs, jobKey(id), job); err != nil {
					return err
				}
			}
			for id, record := range staged.escrows {
				if err := putJSON(tx, bucketEscrows, jobKey(id), record); err != nil {
					return err
				}
			}
			if staged.nextJobID != nil {
				var raw [8]byte
				binary.BigEndian.PutUint64(raw[:], *staged.nextJobID)
				return tx.Bucket(bucketMeta).Put(keyNextJobID, raw[:])
			}
			return nil
		}); err != nil {
			return fmt.Errorf("state: commit batch: %w", err)
		}
	}
	for addr, acc := range staged.accounts {
		m.accounts[addr] = acc
	}
	for addr, profile := range staged.users {
		m.users[addr] = profile
	}
	for id, job := range staged.jobs {
		m.jobs[id] = job
	}
	for id, record := range staged.escrows {
		m.escrows[id] = record
	}
	if staged.nextJobID != nil {
		m.nextJobID = *staged.nextJobID
	}
	return nil
}

func putJSON(tx *bolt.Tx, bucket, key []byte, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %s/%s: %w", bucket, key, err)
	}
	return tx.Bucket(bucket).Put(key, encoded)
}

func (m *Manager) persist(bucket, key []byte, value any) error {
	if m.db == nil {
		return nil
	}
	return m.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx, bucket, key, value)
	})
}

func jobKey(id uint64) []byte {
	return []byte(strconv.FormatUint(id, 10))
}

// GetAccount returns the balance record for addr, creating an implicit empty
// account for unknown addresses.
func (m *Manager) GetAccount(addr string) (*types.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.staged != nil {
		if acc, ok := m.staged.accounts[addr]; ok {
			return acc.Clone(), nil
		}
	}
	return m.accounts[addr].Clone(), nil
}

// PutAccount stores the balance record for addr.
func (m *Manager) PutAccount(addr string, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := account.Clone()
	if m.staged != nil {
		m.staged.accounts[addr] = clone
		return nil
	}
	m.accounts[addr] = clone
	return m.persist(bucketAccounts, []byte(addr), clone)
}

// UserGet fetches the registry profile for addr.
func (m *Manager) UserGet(addr string) (*registry.Profile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.staged != nil {
		if profile, ok := m.staged.users[addr]; ok {
			return profile.Clone(), true
		}
	}
	profile, ok := m.users[addr]
	if !ok {
		return nil, false
	}
	return profile.Clone(), true
}

// UserPut stores the registry profile.
func (m *Manager) UserPut(profile *registry.Profile) error {
	if profile == nil {
		return fmt.Errorf("state: nil profile")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := profile.Clone()
	if m.staged != nil {
		m.staged.users[clone.Address] = clone
		return nil
	}
	m.users[clone.Address] = clone
	return m.persist(bucketUsers, []byte(clone.Address), clone)
}

// JobGet fetches the job record for id.
func (m *Manager) JobGet(id uint64) (*jobs.Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.staged != nil {
		if job, ok := m.staged.jobs[id]; ok {
			return job.Clone(), true
		}
	}
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// JobPut stores the job record.
func (m *Manager) JobPut(job *jobs.Job) error {
	if job == nil {
		return fmt.Errorf("state: nil job")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := job.Clone()
	if m.staged != nil {
		m.staged.jobs[clone.ID] = clone
		return nil
	}
	m.jobs[clone.ID] = clone
	return m.persist(bucketJobs, jobKey(clone.ID), clone)
}

// JobsByParticipant returns the stored jobs addr appears on, ordered by id.
// Staged records shadow their committed versions.
func (m *Manager) JobsByParticipant(addr string) []*jobs.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*jobs.Job
	for id, job := range m.jobs {
		if m.staged != nil {
			if _, ok := m.staged.jobs[id]; ok {
				continue
			}
		}
		if job.Party(addr) {
			out = append(out, job.Clone())
		}
	}
	if m.staged != nil {
		for _, job := range m.staged.jobs {
			if job.Party(addr) {
				out = append(out, job.Clone())
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NextJobID allocates the next monotonic job identifier, starting at zero.
// Identifiers are never reused for stored jobs, even across restarts; an id
// allocated inside a rolled-back batch is handed out again on the next
// attempt.
func (m *Manager) NextJobID() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.staged != nil {
		id := m.nextJobID
		if m.staged.nextJobID != nil {
			id = *m.staged.nextJobID
		}
		next := id + 1
		m.staged.nextJobID = &next
		return id, nil
	}
	id := m.nextJobID
	m.nextJobID++
	if m.db != nil {
		var raw [8]byte
		binary.BigEndian.PutUint64(raw[:], m.nextJobID)
		if err := m.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(bucketMeta).Put(keyNextJobID, raw[:])
		}); err != nil {
			return 0, fmt.Errorf("state: persist job counter: %w", err)
		}
	}
	return id, nil
}

// EscrowGet fetches the custody record for the job.
func (m *Manager) EscrowGet(jobID uint64) (*escrow.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.staged != nil {
		if record, ok := m.staged.escrows[jobID]; ok {
			return record.Clone(), true
		}
	}
	record, ok := m.escrows[jobID]
	if !ok {
		return nil, false
	}
	return record.Clone(), true
}

// EscrowPut stores the custody record.
func (m *Manager) EscrowPut(record *escrow.Record) error {
	if record == nil {
		return fmt.Errorf("state: nil escrow record")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := record.Clone()
	if m.staged != nil {
		m.staged.escrows[clone.JobID] = clone
		return nil
	}
	m.escrows[clone.JobID] = clone
	return m.persist(bucketEscrows, jobKey(clone.JobID), clone)
}
