package order

import "strings"

// PaymentStatus is the payment state of an order, owned by the checkout
// collaborator
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// FulfillmentStatus is the delivery lifecycle of an order
type FulfillmentStatus string

const (
	FulfillmentUnfulfilled FulfillmentStatus = "unfulfilled"
	FulfillmentProcessing  FulfillmentStatus = "processing"
	FulfillmentShipped     FulfillmentStatus = "shipped"
	FulfillmentDelivered   FulfillmentStatus = "delivered"
	FulfillmentCancelled   FulfillmentStatus = "cancelled"
	FulfillmentRefunded    FulfillmentStatus = "refunded"
)

// IsValid checks if the status is a valid FulfillmentStatus
func (s FulfillmentStatus) IsValid() bool {
	switch s {
	case FulfillmentUnfulfilled, FulfillmentProcessing, FulfillmentShipped,
		FulfillmentDelivered, FulfillmentCancelled, FulfillmentRefunded:
		return true
	}
	return false
}

// String returns the string representation of FulfillmentStatus
func (s FulfillmentStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is possible
func (s FulfillmentStatus) IsTerminal() bool {
	return s == FulfillmentDelivered || s == FulfillmentCancelled || s == FulfillmentRefunded
}

// IsOpen reports whether the order is with the supplier and awaiting delivery
func (s FulfillmentStatus) IsOpen() bool {
	return s == FulfillmentProcessing || s == FulfillmentShipped
}

// rank orders the forward path; terminal admin states sit outside it
func (s FulfillmentStatus) rank() int {
	switch s {
	case FulfillmentUnfulfilled:
		return 0
	case FulfillmentProcessing:
		return 1
	case FulfillmentShipped:
		return 2
	case FulfillmentDelivered:
		return 3
	}
	return -1
}

// CanTransitionTo checks if the status can move to target
func (s FulfillmentStatus) CanTransitionTo(target FulfillmentStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch target {
	case FulfillmentCancelled, FulfillmentRefunded:
		return true
	case FulfillmentProcessing:
		return s == FulfillmentUnfulfilled
	case FulfillmentShipped:
		return s == FulfillmentProcessing
	case FulfillmentDelivered:
		return s == FulfillmentProcessing || s == FulfillmentShipped
	}
	return false
}

// DefaultDeliveredIndicators are matched against the supplier status string
var DefaultDeliveredIndicators = []string{"delivered"}

// IsDeliveredStatus reports whether a supplier status string signals
// delivery (case-insensitive substring match).
func IsDeliveredStatus(status string, indicators []string) bool {
	if len(indicators) == 0 {
		indicators = DefaultDeliveredIndicators
	}
	s := strings.ToLower(status)
	for _, ind := range indicators {
		ind = strings.ToLower(strings.TrimSpace(ind))
		if ind != "" && strings.Contains(s, ind) {
			return true
		}
	}
	return false
}
