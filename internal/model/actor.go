package model

// Role is the authorization role carried in the access token's "role"
// claim.
type Role string

const (
	RoleClient       Role = "CLIENT"
	RoleReceptionist Role = "RECEPTIONIST"
	RoleManager      Role = "MANAGER"
	RoleAdmin        Role = "ADMIN"
	// RoleSystem is used by internal callers such as the payment gateway
	// adapter and schedulers.
	RoleSystem Role = "SYSTEM"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleReceptionist, RoleManager, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// staffRank orders the desk roles; higher ranks include lower ones.
var staffRank = map[Role]int{
	RoleReceptionist: 1,
	RoleManager:      2,
	RoleAdmin:        3,
}

// Actor is whoever asks for an operation.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// SystemActor is the identity used for automatic steps such as gateway
// auto-approval.
var SystemActor = Actor{ID: "system", Role: RoleSystem}

// HasRole reports whether actor holds role.  ADMIN includes MANAGER, which
// includes RECEPTIONIST; CLIENT and SYSTEM only match themselves.
func HasRole(actor Actor, role Role) bool {
	if actor.Role == role {
		return true
	}
	have, ok := staffRank[actor.Role]
	if !ok {
		return false
	}
	want, ok := staffRank[role]
	return ok && have >= want
}
