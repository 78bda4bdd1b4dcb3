package enums

import (
	"fmt"
	"strings"
)

// MemberRole is a role name as issued by the MIS backend in the access token.
type MemberRole string

const (
	MemberRoleAdmin          MemberRole = "ADMIN"
	MemberRoleManager        MemberRole = "MANAGER"
	MemberRoleCashier        MemberRole = "CASHIER"
	MemberRoleReceivingClerk MemberRole = "RECEIVING_CLERK"
)

var validMemberRoles = []MemberRole{
	MemberRoleAdmin,
	MemberRoleManager,
	MemberRoleCashier,
	MemberRoleReceivingClerk,
}

// String implements fmt.Stringer.
func (m MemberRole) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MemberRole.
func (m MemberRole) IsValid() bool {
	for _, candidate := range validMemberRoles {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMemberRole converts raw input into a MemberRole. A ROLE_ prefix is tolerated.
func ParseMemberRole(value string) (MemberRole, error) {
	normalized := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(value)), "ROLE_")
	for _, candidate := range validMemberRoles {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid member role %q", value)
}
