package reconcile

import "github.com/tair/colporter/pkg/auth"

// Capability is what the signed-in operator may do in the workflow. It is
// evaluated once from the token role.
type Capability struct {
	edit bool
}

// CapabilityFor derives the capability of a role
func CapabilityFor(role auth.Role) Capability {
	return Capability{edit: role.CanReconcile()}
}

// CanEdit reports whether manual counts may be entered and confirmed
func (c Capability) CanEdit() bool {
	return c.edit
}
