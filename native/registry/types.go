package registry

import (
	"errors"
	"strings"
)

const (
	// BaselineReputation is assigned to every participant at registration
	// and stands until the first rating arrives.
	BaselineReputation = 100

	// MinRating and MaxRating bound the accepted rating scale.
	MinRating = 1
	MaxRating = 5
)

var (
	// ErrAlreadyRegistered is returned when an address already has a profile.
	ErrAlreadyRegistered = errors.New("registry: address already registered")
	// ErrNotRegistered is returned when an operation references an unknown
	// address.
	ErrNotRegistered = errors.New("registry: address not registered")
	// ErrInvalidRating is returned when a rating falls outside [MinRating, MaxRating].
	ErrInvalidRating = errors.New("registry: rating out of range")
	// ErrInvalidAddress is returned when an address is empty after trimming.
	ErrInvalidAddress = errors.New("registry: address required")
)

// Profile captures a participant's registration record and the accumulators
// feeding their reputation score.
type Profile struct {
	Address      string `json:"address"`
	Reputation   uint64 `json:"reputation"`
	TotalJobs    uint64 `json:"totalJobs"`
	RatingSum    uint64 `json:"ratingSum"`
	RatingCount  uint64 `json:"ratingCount"`
	RegisteredAt int64  `json:"registeredAt"`
}

// Clone returns a copy of the profile safe for callers to mutate.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// NormalizeAddress canonicalises participant addresses for storage lookups.
// Addresses are opaque identifiers supplied by the external identity
// provider; the engine only trims surrounding whitespace.
func NormalizeAddress(addr string) (string, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return "", ErrInvalidAddress
	}
	return trimmed, nil
}

// score maps the accumulated ratings onto the reputation scale. The average
// rating (1..5) scales linearly onto 20..100 with integer division, so the
// score is monotonic in the average and bounded. Before the first rating the
// baseline applies.
func score(sum, count uint64) uint64 {
	if count == 0 {
		return BaselineReputation
	}
	return sum * 20 / count
}
