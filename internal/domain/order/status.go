package order

import "fmt"

// Status is the fulfilment state of an order. The string values are stored
// verbatim and shown to customers.
type Status string

const (
	// StatusPending is a freshly placed COD order awaiting confirmation.
	StatusPending Status = "Pending"
	// StatusPendingPayment is an online order waiting on the gateway.
	StatusPendingPayment Status = "Pending Payment"
	// StatusProcessing is a confirmed order being prepared for shipment.
	StatusProcessing Status = "Processing"
	// StatusShipped means the carrier has picked the parcel up.
	StatusShipped Status = "Shipped"
	// StatusDelivered is the terminal success state.
	StatusDelivered Status = "Delivered"
	// StatusCancelled is the terminal-ish failure state; admins may still
	// revive a cancelled order.
	StatusCancelled Status = "Cancelled"
	// StatusShippingFailed marks a paid order whose shipment creation
	// failed and needs manual intervention.
	StatusShippingFailed Status = "Pending (Shipping Failed)"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// InvalidTransitionError reports a disallowed status change.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %q to %q", e.From, e.To)
}

// transitions is the allowed-move table. Delivered is terminal. Cancelled
// allows re-activation so admins can undo mistaken cancellations; the
// service re-deducts stock when leaving Cancelled.
var transitions = map[Status][]Status{
	StatusPending:        {StatusProcessing, StatusCancelled, StatusShippingFailed},
	StatusPendingPayment: {StatusProcessing, StatusCancelled},
	StatusProcessing:     {StatusShipped, StatusCancelled, StatusShippingFailed},
	StatusShipped:        {StatusDelivered, StatusCancelled},
	StatusShippingFailed: {StatusProcessing, StatusCancelled},
	StatusCancelled:      {StatusPending, StatusProcessing, StatusShipped, StatusShippingFailed},
	StatusDelivered:      {},
}

// CanTransition reports whether an order may move from one status to
// another. Same-state moves are allowed as no-ops.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
