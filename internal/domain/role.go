package domain

import "fmt"

// Role is the closed set of principal roles.
type Role string

// Role constants define the allowed identity roles.
const (
	RoleStudent   Role = "student"
	RoleRecruiter Role = "recruiter"
	RoleAdmin     Role = "admin"
)

// ValidRoles returns the set of valid identity roles.
func ValidRoles() []Role {
	return []Role{RoleStudent, RoleRecruiter, RoleAdmin}
}

// ParseRole converts s to a Role, rejecting anything outside the closed set.
func ParseRole(s string) (Role, error) {
	for _, r := range ValidRoles() {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// SelfAssignable reports whether r may be chosen at public registration.
// Admins are only provisioned by an operator.
func (r Role) SelfAssignable() bool {
	return r == RoleStudent || r == RoleRecruiter
}

func (r Role) String() string { return string(r) }
