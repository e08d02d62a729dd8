package transactions

type Status string

const (
	StatusPending           Status = "PENDING"
	StatusApproved          Status = "APPROVED"
	StatusDeclined          Status = "DECLINED"
	StatusVoided            Status = "VOIDED"
	StatusError             Status = "ERROR"
	StatusAuthorized        Status = "AUTHORIZED"
	StatusPendingValidation Status = "PENDING_VALIDATION"
)

// PENDING is the only non-terminal state; nothing re-polls the gateway, so
// every outcome it reports is final here.
var validNext = map[Status]map[Status]bool{
	StatusPending: {
		StatusApproved:          true,
		StatusDeclined:          true,
		StatusVoided:            true,
		StatusError:             true,
		StatusAuthorized:        true,
		StatusPendingValidation: true,
	},
	StatusApproved:          {},
	StatusDeclined:          {},
	StatusVoided:            {},
	StatusError:             {},
	StatusAuthorized:        {},
	StatusPendingValidation: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// StatusFromGateway narrows the gateway vocabulary to the local enum.
// Anything unrecognised becomes ERROR rather than leaking into storage.
func StatusFromGateway(s string) Status {
	st := Status(s)
	if _, ok := validNext[st]; ok {
		return st
	}
	return StatusError
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}
