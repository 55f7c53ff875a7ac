package rpc

import (
	"errors"
	"net/http"

	"workledger/native/arbitration"
	"workledger/native/escrow"
	"workledger/native/jobs"
	"workledger/native/registry"
	"workledger/native/reputation"
)

// reason maps an engine error onto the stable taxonomy name surfaced to the
// external adapter. Unknown errors report as internal.
func reason(err error) string {
	switch {
	case errors.Is(err, registry.ErrAlreadyRegistered):
		return "AlreadyRegistered"
	case errors.Is(err, registry.ErrNotRegistered):
		return "NotRegistered"
	case errors.Is(err, registry.ErrInvalidRating):
		return "InvalidRating"
	case errors.Is(err, registry.ErrInvalidAddress):
		return "InvalidAddress"
	case errors.Is(err, jobs.ErrSelfAcceptance):
		return "SelfAcceptanceForbidden"
	case errors.Is(err, jobs.ErrInvalidState):
		return "InvalidState"
	case errors.Is(err, jobs.ErrNotFound):
		return "NotFound"
	case errors.Is(err, jobs.ErrUnauthorized), errors.Is(err, arbitration.ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, arbitration.ErrInvalidWinner):
		return "InvalidWinner"
	case errors.Is(err, escrow.ErrAlreadyDisbursed):
		return "AlreadyDisbursed"
	case errors.Is(err, escrow.ErrInsufficientFunds):
		return "InsufficientFunds"
	case errors.Is(err, escrow.ErrInvalidAmount):
		return "InvalidAmount"
	case errors.Is(err, escrow.ErrNotFound):
		return "NotFound"
	case errors.Is(err, reputation.ErrAlreadyRated):
		return "AlreadyRated"
	default:
		return "Internal"
	}
}

func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	code := codeServerError
	status := http.StatusBadRequest
	switch reason(err) {
	case "Unauthorized":
		code = codeUnauthorized
		status = http.StatusForbidden
	case "NotFound":
		status = http.StatusNotFound
	case "Internal":
		status = http.StatusInternalServerError
	}
	writeError(w, status, id, code, err.Error(), map[string]string{"reason": reason(err)})
}
