package enums

import "fmt"

// ReturnStatus tracks where a return request sits in its lifecycle.
type ReturnStatus string

const (
	ReturnStatusRequested      ReturnStatus = "requested"
	ReturnStatusApproved       ReturnStatus = "approved"
	ReturnStatusPickupAssigned ReturnStatus = "pickup_assigned"
	ReturnStatusPickedUp       ReturnStatus = "picked_up"
	ReturnStatusReceived       ReturnStatus = "received"
	ReturnStatusCompleted      ReturnStatus = "completed"
	ReturnStatusRejected       ReturnStatus = "rejected"
)

var validReturnStatuses = []ReturnStatus{
	ReturnStatusRequested,
	ReturnStatusApproved,
	ReturnStatusPickupAssigned,
	ReturnStatusPickedUp,
	ReturnStatusReceived,
	ReturnStatusCompleted,
	ReturnStatusRejected,
}

// String implements fmt.Stringer.
func (s ReturnStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReturnStatus.
func (s ReturnStatus) IsValid() bool {
	for _, candidate := range validReturnStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible from the status.
func (s ReturnStatus) IsTerminal() bool {
	return s == ReturnStatusCompleted || s == ReturnStatusRejected
}

// ParseReturnStatus converts raw input into a ReturnStatus.
func ParseReturnStatus(value string) (ReturnStatus, error) {
	for _, candidate := range validReturnStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid return status %q", value)
}
