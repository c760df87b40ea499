package session

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Bundle is the set of credentials describing one authenticated identity,
// exactly as issued by the identity provider. It is only ever read from, or
// written to, the session record as a single serialized unit.
//
// ExpiresIn is the provider-reported seconds-to-live at issuance. It is
// informational: the session record's own expiry comes from the manager's
// fixed window, not from this value.
type Bundle struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	TokenType    string `json:"tokenType"`
	Scope        string `json:"scope"`
	Role         Role   `json:"role"`
}

// Valid reports whether the bundle carries a usable bearer credential
func (b Bundle) Valid() bool {
	return b.AccessToken != ""
}

// Role is the identity's authorization class. The provider has returned it
// as a string, a number, or null depending on the endpoint, so it accepts
// all three and normalizes to a string.
type Role string

// IsSet reports whether the provider assigned any role
func (r Role) IsSet() bool {
	return r != ""
}

func (r Role) String() string {
	return string(r)
}

// UnmarshalJSON accepts a string, a JSON number, or null
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = Role(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*r = Role(n.String())
		return nil
	}

	if string(data) == "null" {
		*r = ""
		return nil
	}

	return fmt.Errorf("role must be a string, number, or null, got %s", data)
}

// MarshalJSON emits the normalized string form (numbers stay numbers)
func (r Role) MarshalJSON() ([]byte, error) {
	if r == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(r), 10, 64); err == nil {
		return []byte(r), nil
	}
	return json.Marshal(string(r))
}
