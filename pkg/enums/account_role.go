package enums

import "fmt"

// AccountRole controls credit and quota enforcement for an account.
type AccountRole string

const (
	AccountRoleStandard AccountRole = "standard"
	AccountRoleAdmin    AccountRole = "admin"
)

var validAccountRoles = []AccountRole{
	AccountRoleStandard,
	AccountRoleAdmin,
}

// String returns the literal string for the role.
func (r AccountRole) String() string {
	return string(r)
}

// IsValid reports whether the role is known.
func (r AccountRole) IsValid() bool {
	for _, candidate := range validAccountRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseAccountRole converts raw input into an AccountRole.
func ParseAccountRole(value string) (AccountRole, error) {
	for _, candidate := range validAccountRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid account role %q", value)
}
