package auth

import (
	"fmt"
	"strings"
)

// Role is the closed set of account roles.
type Role string

const (
	RolePatient     Role = "patient"
	RoleTherapist   Role = "therapist"
	RoleAdmin       Role = "admin"
	RoleHealthCoach Role = "health_coach"
	RolePhysician   Role = "physician"
	RolePartner     Role = "partner"
)

// AllRoles lists every role in display order.
var AllRoles = []Role{RolePatient, RoleTherapist, RoleAdmin, RoleHealthCoach, RolePhysician, RolePartner}

// ParseRole converts s into a Role, rejecting anything outside the enumeration.
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(strings.ToLower(s)))
	if !r.Valid() {
		return "", fmt.Errorf("invalid role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleTherapist, RoleAdmin, RoleHealthCoach, RolePhysician, RolePartner:
		return true
	}
	return false
}

func (r Role) IsAdmin() bool { return r == RoleAdmin }

// IsProvider reports whether the role delivers care to patients.
func (r Role) IsProvider() bool {
	switch r {
	case RoleTherapist, RolePhysician, RoleHealthCoach:
		return true
	case RolePatient, RoleAdmin, RolePartner:
		return false
	}
	return false
}

func (r Role) String() string { return string(r) }

// ProviderRoles lists the roles for which IsProvider is true.
func ProviderRoles() []Role {
	var out []Role
	for _, r := range AllRoles {
		if r.IsProvider() {
			out = append(out, r)
		}
	}
	return out
}
