package enums

import "fmt"

// SettlementOutcome records how a single refund attempt against the payment
// collaborator ended.
type SettlementOutcome string

const (
	SettlementOutcomeSucceeded   SettlementOutcome = "succeeded"
	SettlementOutcomeDeclined    SettlementOutcome = "declined"
	SettlementOutcomeUnreachable SettlementOutcome = "unreachable"
)

var validSettlementOutcomes = []SettlementOutcome{
	SettlementOutcomeSucceeded,
	SettlementOutcomeDeclined,
	SettlementOutcomeUnreachable,
}

// String implements fmt.Stringer.
func (o SettlementOutcome) String() string {
	return string(o)
}

// IsValid reports whether the value is a known SettlementOutcome.
func (o SettlementOutcome) IsValid() bool {
	for _, candidate := range validSettlementOutcomes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseSettlementOutcome converts raw input into a SettlementOutcome.
func ParseSettlementOutcome(value string) (SettlementOutcome, error) {
	for _, candidate := range validSettlementOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid settlement outcome %q", value)
}
