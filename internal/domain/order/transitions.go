package order

import (
	"slices"

	"github.com/example/ec-order-core/internal/model"
)

// validTransitions defines allowed state transitions. Statuses without an
// entry are terminal.
var validTransitions = map[model.Status][]model.Status{
	model.StatusPending:         {model.StatusProcessing, model.StatusCancelled},
	model.StatusProcessing:      {model.StatusShipped, model.StatusCancelled},
	model.StatusShipped:         {model.StatusDelivered},
	model.StatusDelivered:       {model.StatusReceived},
	model.StatusReturnRequested: {model.StatusReturnApproved, model.StatusReturnRejected},
}

// customerOnly marks edges that only the ordering customer may take, through
// ConfirmReceived.
var customerOnly = map[model.Status]bool{
	model.StatusReceived: true,
}

// AllowedTransitions returns the statuses reachable from current.
func AllowedTransitions(current model.Status) []model.Status {
	return slices.Clone(validTransitions[current])
}

// CanTransition checks if an order in from may move to to.
func CanTransition(from, to model.Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// adminTransitions returns the statuses an admin may set from current.
func adminTransitions(current model.Status) []model.Status {
	var out []model.Status
	for _, s := range validTransitions[current] {
		if !customerOnly[s] {
			out = append(out, s)
		}
	}
	return out
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s model.Status) bool {
	return len(validTransitions[s]) == 0
}
