package enums

import "fmt"

// MemberRole identifies the caller's role as minted by the platform auth service.
type MemberRole string

const (
	MemberRoleCustomer MemberRole = "customer"
	MemberRoleOperator MemberRole = "operator"
	MemberRoleAgent    MemberRole = "agent"
)

var validMemberRoles = []MemberRole{
	MemberRoleCustomer,
	MemberRoleOperator,
	MemberRoleAgent,
}

// String implements fmt.Stringer.
func (r MemberRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known MemberRole.
func (r MemberRole) IsValid() bool {
	for _, candidate := range validMemberRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseMemberRole converts raw input into a MemberRole.
func ParseMemberRole(value string) (MemberRole, error) {
	for _, candidate := range validMemberRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid member role %q", value)
}
