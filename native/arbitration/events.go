package arbitration

import (
	"math/big"
	"strconv"

	"workledger/core/types"
	"workledger/native/jobs"
)

// EventTypeJobResolved is emitted when the arbiter settles a dispute.
const EventTypeJobResolved = "marketplace.job.resolved"

type arbitrationEvent struct {
	evt *types.Event
}

func (e arbitrationEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e arbitrationEvent) Event() *types.Event { return e.evt }

func newResolvedEvent(j *jobs.Job, payout, fee *big.Int) arbitrationEvent {
	attrs := make(map[string]string)
	if j != nil {
		attrs["jobId"] = strconv.FormatUint(j.ID, 10)
		attrs["employer"] = j.Employer
		attrs["employee"] = j.Employee
		attrs["winner"] = j.Winner
		attrs["status"] = j.Status.String()
	}
	if payout != nil {
		attrs["payout"] = payout.String()
	}
	if fee != nil {
		attrs["fee"] = fee.String()
	}
	return arbitrationEvent{evt: &types.Event{Type: EventTypeJobResolved, Attributes: attrs}}
}
