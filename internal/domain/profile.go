package domain

// Sex is the declared sex on a profile.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
	SexOther  Sex = "other"
)

// Preference describes which partners the profile owner is open to.
// An empty Genders slice means no preference.
type Preference struct {
	Genders []Sex `json:"gender"`
	AgeMin  int   `json:"age_min"`
	AgeMax  int   `json:"age_max"`
}

// Accepts reports whether s falls inside the preference's accepted set.
func (p Preference) Accepts(s Sex) bool {
	if len(p.Genders) == 0 {
		return true
	}
	for _, g := range p.Genders {
		if g == s {
			return true
		}
	}
	return false
}

// Device holds the long-lived local device identity that anchors
// ephemeral identity derivation. Only the stable install id persists;
// the derivation secret is regenerated every discovery session.
type Device struct {
	StableID  string `json:"stable_id"`
	CreatedAt int64  `json:"created_at"`
}

// Profile is the locally owned user profile. Only fingerprinted
// derivatives of it ever leave the device during discovery; the Handle
// is exchanged inside an encrypted session and shown to the peer only
// after mutual reveal consent.
type Profile struct {
	IDLocal    string     `json:"id_local"`
	Name       string     `json:"name"`
	Age        int        `json:"age"`
	Sex        Sex        `json:"sex"`
	Preference Preference `json:"preference"`
	Interests  []string   `json:"interests"`
	Bio        string     `json:"bio,omitempty"`
	Handle     string     `json:"handle,omitempty"`
}
