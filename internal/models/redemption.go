package models

import "fmt"

// RedemptionOutcome is the closed set of results of a redemption attempt.
type RedemptionOutcome int

const (
	OutcomeSuccess RedemptionOutcome = iota
	OutcomeAlreadyUsed
	OutcomeExpired
	OutcomeNotFound
)

func (o RedemptionOutcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeAlreadyUsed:
		return "already_used"
	case OutcomeExpired:
		return "expired"
	case OutcomeNotFound:
		return "not_found"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Err maps a non-success outcome to its sentinel error.
func (o RedemptionOutcome) Err() error {
	switch o {
	case OutcomeSuccess:
		return nil
	case OutcomeAlreadyUsed:
		return ErrTicketAlreadyUsed
	case OutcomeExpired:
		return ErrTicketExpired
	case OutcomeNotFound:
		return ErrTicketNotFound
	default:
		return fmt.Errorf("unknown redemption outcome %d", int(o))
	}
}

func (o RedemptionOutcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// RedemptionResult is returned by a redemption attempt. Ticket is nil for
// OutcomeNotFound.
type RedemptionResult struct {
	Outcome RedemptionOutcome `json:"outcome"`
	Ticket  *Ticket           `json:"ticket,omitempty"`
}
