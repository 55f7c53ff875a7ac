package registry

import (
	"errors"
	"time"

	"workledger/core/events"
)

var errNilState = errors.New("registry engine: state not configured")

type engineState interface {
	UserPut(*Profile) error
	UserGet(addr string) (*Profile, bool)
}

// Engine owns participant registration and the reputation bookkeeping other
// modules fold their results into.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a registry engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

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

func (e *Engine) emit(evt registryEvent) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

// Register creates a profile for the address with the baseline reputation.
func (e *Engine) Register(addr string) (*Profile, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	normalized, err := NormalizeAddress(addr)
	if err != nil {
		return nil, err
	}
	if _, ok := e.state.UserGet(normalized); ok {
		return nil, ErrAlreadyRegistered
	}
	profile := &Profile{
		Address:      normalized,
		Reputation:   BaselineReputation,
		RegisteredAt: e.nowFn(),
	}
	if err := e.state.UserPut(profile); err != nil {
		return nil, err
	}
	e.emit(newRegisteredEvent(profile))
	return profile.Clone(), nil
}

// IsRegistered reports whether the address has a profile.
func (e *Engine) IsRegistered(addr string) bool {
	if e == nil || e.state == nil {
		return false
	}
	normalized, err := NormalizeAddress(addr)
	if err != nil {
		return false
	}
	_, ok := e.state.UserGet(normalized)
	return ok
}

// Profile fetches the stored profile for the address.
func (e *Engine) Profile(addr string) (*Profile, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	normalized, err := NormalizeAddress(addr)
	if err != nil {
		return nil, err
	}
	profile, ok := e.state.UserGet(normalized)
	if !ok {
		return nil, ErrNotRegistered
	}
	return profile.Clone(), nil
}

// Reputation returns the current reputation score for the address.
func (e *Engine) Reputation(addr string) (uint64, error) {
	profile, err := e.Profile(addr)
	if err != nil {
		return 0, err
	}
	return profile.Reputation, nil
}

// RecordCompletedJob increments the participant's completed-and-paid counter.
// Callers invoke it once per party when a job reaches a terminal paid or
// resolved state.
func (e *Engine) RecordCompletedJob(addr string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	normalized, err := NormalizeAddress(addr)
	if err != nil {
		return err
	}
	profile, ok := e.state.UserGet(normalized)
	if !ok {
		return ErrNotRegistered
	}
	profile.TotalJobs++
	return e.state.UserPut(profile)
}

// ApplyRating folds a 1..5 rating into the participant's accumulators and
// recomputes the reputation score.
func (e *Engine) ApplyRating(addr string, rating uint8) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if rating < MinRating || rating > MaxRating {
		return ErrInvalidRating
	}
	normalized, err := NormalizeAddress(addr)
	if err != nil {
		return err
	}
	profile, ok := e.state.UserGet(normalized)
	if !ok {
		return ErrNotRegistered
	}
	profile.RatingSum += uint64(rating)
	profile.RatingCount++
	profile.Reputation = score(profile.RatingSum, profile.RatingCount)
	if err := e.state.UserPut(profile); err != nil {
		return err
	}
	e.emit(newReputationEvent(profile))
	return nil
}
