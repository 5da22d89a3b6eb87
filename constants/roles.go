package constants

import "strings"

// Role identifies an enrichment document attached alongside the primary
// drawing.
type Role string

// Stable values (these exact strings travel on the wire and in history rows).
const (
	RoleSecondaryProcess Role = "secondary-process"
	RoleMaterial         Role = "material"
	RoleCorrosion        Role = "corrosion"
)

var allRoles = []Role{
	RoleSecondaryProcess,
	RoleMaterial,
	RoleCorrosion,
}

// EnrichmentRoles returns all enrichment roles in canonical order.
func EnrichmentRoles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// ParseRole resolves a role string, tolerating case and surrounding space.
func ParseRole(input string) (Role, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	for _, r := range allRoles {
		if normalized == string(r) {
			return r, true
		}
	}
	return "", false
}
