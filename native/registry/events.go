package registry

import (
	"strconv"

	"workledger/core/types"
)

const (
	EventTypeUserRegistered    = "marketplace.user.registered"
	EventTypeReputationUpdated = "marketplace.user.reputation_updated"
)

type registryEvent struct {
	evt *types.Event
}

func (e registryEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e registryEvent) Event() *types.Event { return e.evt }

func newRegisteredEvent(p *Profile) registryEvent {
	attrs := make(map[string]string)
	if p != nil {
		attrs["address"] = p.Address
		attrs["reputation"] = strconv.FormatUint(p.Reputation, 10)
		attrs["registeredAt"] = strconv.FormatInt(p.RegisteredAt, 10)
	}
	return registryEvent{evt: &types.Event{Type: EventTypeUserRegistered, Attributes: attrs}}
}

func newReputationEvent(p *Profile) registryEvent {
	attrs := make(map[string]string)
	if p != nil {
		attrs["address"] = p.Address
		attrs["reputation"] = strconv.FormatUint(p.Reputation, 10)
		attrs["ratingCount"] = strconv.FormatUint(p.RatingCount, 10)
	}
	return registryEvent{evt: &types.Event{Type: EventTypeReputationUpdated, Attributes: attrs}}
}
