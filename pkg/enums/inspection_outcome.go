package enums

import "fmt"

// InspectionOutcome is the warehouse decision recorded when a returned item arrives.
type InspectionOutcome string

const (
	InspectionOutcomeAccept InspectionOutcome = "accept"
	InspectionOutcomeReject InspectionOutcome = "reject"
)

var validInspectionOutcomes = []InspectionOutcome{
	InspectionOutcomeAccept,
	InspectionOutcomeReject,
}

// String implements fmt.Stringer.
func (o InspectionOutcome) String() string {
	return string(o)
}

// IsValid reports whether the value is a known InspectionOutcome.
func (o InspectionOutcome) IsValid() bool {
	for _, candidate := range validInspectionOutcomes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseInspectionOutcome converts raw input into an InspectionOutcome.
func ParseInspectionOutcome(value string) (InspectionOutcome, error) {
	for _, candidate := range validInspectionOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inspection outcome %q", value)
}
