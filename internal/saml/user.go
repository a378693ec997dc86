package saml

// Realm identifies the backing store realm that authenticated a user.
type Realm struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// User is the principal resolved by the backing store. Fields other than
// Username and AuthenticationRealm are passed through untouched.
type User struct {
	Username            string         `json:"username"`
	Roles               []string       `json:"roles,omitempty"`
	FullName            string         `json:"full_name,omitempty"`
	Email               string         `json:"email,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
	Enabled             bool           `json:"enabled"`
	AuthenticationRealm Realm          `json:"authentication_realm"`
	LookupRealm         Realm          `json:"lookup_realm,omitempty"`
}

// SameIdentity reports whether u and other are the same user of the same realm.
func (u *User) SameIdentity(other *User) bool {
	if u == nil || other == nil {
		return false
	}
	return u.Username == other.Username &&
		u.AuthenticationRealm.Name == other.AuthenticationRealm.Name
}
