package jobs

import (
	"math/big"
	"strconv"

	"workledger/core/types"
)

const (
	EventTypeJobCreated   = "marketplace.job.created"
	EventTypeJobAccepted  = "marketplace.job.accepted"
	EventTypeJobCompleted = "marketplace.job.completed"
	EventTypeJobReleased  = "marketplace.job.released"
	EventTypeJobDisputed  = "marketplace.job.disputed"
)

type jobEvent struct {
	evt *types.Event
}

func (e jobEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e jobEvent) Event() *types.Event { return e.evt }

func baseAttributes(j *Job) map[string]string {
	attrs := make(map[string]string)
	if j == nil {
		return attrs
	}
	attrs["jobId"] = strconv.FormatUint(j.ID, 10)
	attrs["employer"] = j.Employer
	if j.Employee != "" {
		attrs["employee"] = j.Employee
	}
	if j.Payment != nil {
		attrs["payment"] = j.Payment.String()
	}
	attrs["status"] = j.Status.String()
	return attrs
}

func newCreatedEvent(j *Job) jobEvent {
	attrs := baseAttributes(j)
	if j != nil {
		attrs["deadline"] = strconv.FormatInt(j.Deadline, 10)
		attrs["createdAt"] = strconv.FormatInt(j.CreatedAt, 10)
	}
	return jobEvent{evt: &types.Event{Type: EventTypeJobCreated, Attributes: attrs}}
}

func newAcceptedEvent(j *Job) jobEvent {
	return jobEvent{evt: &types.Event{Type: EventTypeJobAccepted, Attributes: baseAttributes(j)}}
}

func newCompletedEvent(j *Job) jobEvent {
	return jobEvent{evt: &types.Event{Type: EventTypeJobCompleted, Attributes: baseAttributes(j)}}
}

func newReleasedEvent(j *Job, payout, fee *big.Int) jobEvent {
	attrs := baseAttributes(j)
	if payout != nil {
		attrs["payout"] = payout.String()
	}
	if fee != nil {
		attrs["fee"] = fee.String()
	}
	return jobEvent{evt: &types.Event{Type: EventTypeJobReleased, Attributes: attrs}}
}

func newDisputedEvent(j *Job, initiator string) jobEvent {
	attrs := baseAttributes(j)
	attrs["initiator"] = initiator
	return jobEvent{evt: &types.Event{Type: EventTypeJobDisputed, Attributes: attrs}}
}
