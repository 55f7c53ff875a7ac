package types

// Event is the canonical payload describing a single state change applied by
// the ledger. Attributes are flat string pairs so downstream consumers can
// index them without knowing module internals.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
