package reputation

import (
	"strconv"

	"workledger/core/types"
	"workledger/native/jobs"
)

// EventTypeRatingSubmitted is emitted when a party rates the other on a
// terminal job.
const EventTypeRatingSubmitted = "marketplace.rating.submitted"

type ratingEvent struct {
	evt *types.Event
}

func (e ratingEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e ratingEvent) Event() *types.Event { return e.evt }

func newRatingEvent(j *jobs.Job, rater, subject string, rating uint8) ratingEvent {
	attrs := map[string]string{
		"rater":   rater,
		"subject": subject,
		"rating":  strconv.FormatUint(uint64(rating), 10),
	}
	if j != nil {
		attrs["jobId"] = strconv.FormatUint(j.ID, 10)
	}
	return ratingEvent{evt: &types.Event{Type: EventTypeRatingSubmitted, Attributes: attrs}}
}
