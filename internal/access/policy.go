package access

// Predicate describes the rows a caller may see.  A resource is visible
// when AllowAll is set, or when its producer code, its farm id, or any of
// its consultant codes is in the matching set.  A predicate that is not
// AllowAll and has all three sets empty denies everything.
type Predicate struct {
	AllowAll        bool
	ProducerCodes   []string
	FarmIDs         []string
	ConsultantCodes []string
}

// DenyAll is the predicate that matches nothing.
var DenyAll = Predicate{}

// AllowEverything is the unrestricted predicate used for admins.
var AllowEverything = Predicate{AllowAll: true}

// Denies reports whether p can never match a resource.
func (p Predicate) Denies() bool {
	return !p.AllowAll && len(p.ProducerCodes) == 0 && len(p.FarmIDs) == 0 && len(p.ConsultantCodes) == 0
}

// Resource is the ownership data of something being read or written.
// ConsultantCodes carries the consultant code of the resource itself and
// of the farm and producer that own it; empty codes are ignored.
type Resource struct {
	ProducerCode    string
	FarmID          string
	ConsultantCodes []string
}

// Allows evaluates p against a single resource.  It is the in-memory
// counterpart of the SQL filter built from the same predicate.
func (p Predicate) Allows(r Resource) bool {
	if p.AllowAll {
		return true
	}
	if r.ProducerCode != "" && contains(p.ProducerCodes, r.ProducerCode) {
		return true
	}
	if r.FarmID != "" && contains(p.FarmIDs, r.FarmID) {
		return true
	}
	for _, code := range r.ConsultantCodes {
		if code != "" && contains(p.ConsultantCodes, code) {
			return true
		}
	}
	return false
}

// Evaluate builds the visibility predicate for id given its grants.
//
//   - Admin sees everything.
//   - Consultant sees resources carrying its consultant code, directly or
//     through the owning farm or producer, plus anything granted
//     explicitly.  Without a code and without grants it sees nothing.
//   - Manager sees the union of its producer grants, farm grants and the
//     codes of the consultants it manages.  A manager with no grants at
//     all is unrestricted; a manager without a user id sees nothing.
//   - Anonymous sees nothing.
func Evaluate(id Identity, g Grants) Predicate {
	switch id.Role {
	case Admin:
		return AllowEverything
	case Consultant:
		p := Predicate{
			ProducerCodes: dedupe(g.ProducerCodes),
			FarmIDs:       dedupe(g.FarmIDs),
		}
		if id.ConsultantCode != "" {
			p.ConsultantCodes = []string{id.ConsultantCode}
		}
		return p
	case Manager:
		if id.UserID == "" {
			return DenyAll
		}
		if g.Empty() {
			return AllowEverything
		}
		return Predicate{
			ProducerCodes:   dedupe(g.ProducerCodes),
			FarmIDs:         dedupe(g.FarmIDs),
			ConsultantCodes: dedupe(g.ManagedConsultantCodes),
		}
	default:
		return DenyAll
	}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
