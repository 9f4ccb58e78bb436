package types

import "github.com/google/uuid"

// Identity is the authenticated principal of a request, decoded from its session.
// Handlers pass it explicitly to services that enforce ownership.
type Identity struct {
	UserID uuid.UUID
	Role   Role
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// CanView reports whether the identity may see an order owned by owner.
func (i Identity) CanView(owner uuid.NullUUID) bool {
	if i.IsAdmin() {
		return true
	}
	return owner.Valid && owner.UUID == i.UserID
}
