package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateReturnRequest OutboxAggregateType = "return_request"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateReturnRequest,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventReturnRequested      OutboxEventType = "return_requested"
	EventReturnApproved       OutboxEventType = "return_approved"
	EventReturnRejected       OutboxEventType = "return_rejected"
	EventReturnPickupAssigned OutboxEventType = "return_pickup_assigned"
	EventReturnPickedUp       OutboxEventType = "return_picked_up"
	EventReturnReceived       OutboxEventType = "return_received"
	EventReturnCompleted      OutboxEventType = "return_completed"
	EventReturnRefundFailed   OutboxEventType = "return_refund_failed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventReturnRequested,
	EventReturnApproved,
	EventReturnRejected,
	EventReturnPickupAssigned,
	EventReturnPickedUp,
	EventReturnReceived,
	EventReturnCompleted,
	EventReturnRefundFailed,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
