package model

// Role names carried in the identity token's "role" claim.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Actor is the caller as asserted by the identity collaborator.  The engine
// trusts it and does not re-authenticate.
type Actor struct {
	UserID string
	Email  string
	Role   string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CanAccess reports whether the actor may read or act on r as its owner or
// as an admin.
func (a Actor) CanAccess(r *Reservation) bool {
	return a.IsAdmin() || r.IsOwnedBy(a.UserID)
}
