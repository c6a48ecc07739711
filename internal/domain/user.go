package domain

import "time"

// Gender restricts event eligibility. "all" accepts any registrant.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// FamilyMember is a snapshot of a dependent the caller may register on behalf of.
type FamilyMember struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Gender   Gender     `json:"gender"`
	Birthday *time.Time `json:"birthday,omitempty"`
}

// UserSnapshot is the identity-layer view of the caller handed to the core by
// the external auth boundary. The core never fetches it itself.
type UserSnapshot struct {
	UID        string         `json:"uid"`
	Membership bool           `json:"membership"`
	Birthday   *time.Time     `json:"birthday,omitempty"`
	Gender     Gender         `json:"gender,omitempty"`
	Family     []FamilyMember `json:"family"`
}

// FamilyMemberByID looks up a family member snapshot by id.
func (u UserSnapshot) FamilyMemberByID(id string) (FamilyMember, bool) {
	for _, f := range u.Family {
		if f.ID == id {
			return f, true
		}
	}
	return FamilyMember{}, false
}

// Caller is the authenticated identity passed into every core operation:
// the uid, a snapshot of the user's profile/family, and whether the caller
// is acting with administrator privileges.
type Caller struct {
	UID     string
	User    UserSnapshot
	IsAdmin bool
}

// SelfPersonID is the sentinel person id used for the caller's own registration,
// as opposed to a family member id.
const SelfPersonID = "SELF"
