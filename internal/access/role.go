// Package access evaluates which producers, farms and consultants a caller
// may see or allocate.  Evaluation is a pure function of the caller's
// identity and the grants recorded for it; callers translate the resulting
// Predicate into SQL for reads and use Allows for writes.
package access

import "strings"

// Role is the closed set of caller roles.  The zero value is Anonymous and
// is what an absent or invalid credential resolves to.
type Role int

const (
	Anonymous Role = iota
	Admin
	Manager
	Consultant
)

// ParseRole maps a token role claim to a Role.  An authenticated token
// without a role claim is treated as a consultant; an unknown role resolves
// to Anonymous.
func ParseRole(claim string) Role {
	switch strings.ToLower(strings.TrimSpace(claim)) {
	case "admin":
		return Admin
	case "gestor", "manager":
		return Manager
	case "consultor", "consultant", "":
		return Consultant
	default:
		return Anonymous
	}
}

// String returns the claim value for r.
func (r Role) String() string {
	switch r {
	case Admin:
		return "admin"
	case Manager:
		return "gestor"
	case Consultant:
		return "consultor"
	default:
		return "anonymous"
	}
}

// Identity is what the access token says about the caller.
type Identity struct {
	Role           Role
	UserID         string
	ConsultantCode string
}

// Authenticated reports whether the identity came from a valid credential.
func (id Identity) Authenticated() bool { return id.Role != Anonymous }

// Grants are the explicit rows recorded for a user id: producers and farms
// granted directly, and for managers the consultants they manage.
type Grants struct {
	ProducerCodes          []string
	FarmIDs                []string
	ManagedConsultantCodes []string
}

// Empty reports whether no grant of any kind exists.
func (g Grants) Empty() bool {
	return len(g.ProducerCodes) == 0 && len(g.FarmIDs) == 0 && len(g.ManagedConsultantCodes) == 0
}
