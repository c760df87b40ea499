package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// UnmarshalJSON accepts either a literal string or an {"$env": "VAR"} reference
func (s *Secret) UnmarshalJSON(data []byte) error {
	value, err := resolveEnvRef(data)
	if err != nil {
		return err
	}
	*s = Secret(value)
	return nil
}

// EnvString is a plain string that may be provided as an {"$env": "VAR"} reference
type EnvString string

func (s *EnvString) UnmarshalJSON(data []byte) error {
	value, err := resolveEnvRef(data)
	if err != nil {
		return err
	}
	*s = EnvString(value)
	return nil
}

func resolveEnvRef(data []byte) (string, error) {
	var literal string
	if err := json.Unmarshal(data, &literal); err == nil {
		return literal, nil
	}

	var ref struct {
		Env string `json:"$env"`
	}
	if err := json.Unmarshal(data, &ref); err != nil || ref.Env == "" {
		return "", fmt.Errorf("expected string or {\"$env\": \"VAR\"} reference")
	}

	value, ok := os.LookupEnv(ref.Env)
	if !ok {
		return "", fmt.Errorf("environment variable %s is not set", ref.Env)
	}
	return value, nil
}

// Duration wraps time.Duration with string-based JSON parsing ("10h", "5m")
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"10h\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// SessionMode selects where session records are persisted
type SessionMode string

const (
	// SessionModeCookie stores the whole serialized bundle in the signed cookie
	SessionModeCookie SessionMode = "cookie"
	// SessionModeServer stores an opaque session ID in the cookie and the
	// bundle in a server-side backend
	SessionModeServer SessionMode = "server"
)

// StorageKind selects the server-side session backend
type StorageKind string

const (
	StorageKindMemory    StorageKind = "memory"
	StorageKindFirestore StorageKind = "firestore"
)

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Addr    string `json:"addr"`
	BaseURL string `json:"baseURL"`
}

// IdentityConfig points at the remote identity provider
type IdentityConfig struct {
	BaseURL EnvString `json:"baseURL"`
}

// BusinessConfig points at the remote business API
type BusinessConfig struct {
	BaseURL EnvString `json:"baseURL"`
}

// SessionConfig configures session persistence.
//
// Window is the fixed server-side expiry window, deliberately decoupled from
// the expires_in value the identity provider reports at issuance. The remote
// API's own 401 enforcement catches tokens that die earlier than the window.
type SessionConfig struct {
	Mode       SessionMode `json:"mode"`
	Window     Duration    `json:"window"`
	SigningKey Secret      `json:"signingKey"`

	Storage             StorageKind `json:"storage,omitempty"`
	GCPProject          string      `json:"gcpProject,omitempty"`
	FirestoreDatabase   string      `json:"firestoreDatabase,omitempty"`
	FirestoreCollection string      `json:"firestoreCollection,omitempty"`
	CleanupInterval     Duration    `json:"cleanupInterval,omitempty"`
}

// RoutesConfig configures the route access gate
type RoutesConfig struct {
	PublicPaths     []string `json:"publicPaths"`
	ExcludePatterns []string `json:"excludePatterns"`

	PublicEntry         string `json:"publicEntry"`
	CollaboratorRole    string `json:"collaboratorRole"`
	CollaboratorLanding string `json:"collaboratorLanding"`
	AdminLanding        string `json:"adminLanding"`
}

// AdminConfig configures basic auth for the operational status endpoint
type AdminConfig struct {
	Username     string `json:"username"`
	PasswordHash Secret `json:"passwordHash"` // bcrypt hash
}

// Config is the full dash-front configuration
type Config struct {
	Version  string         `json:"version"`
	Server   ServerConfig   `json:"server"`
	Identity IdentityConfig `json:"identity"`
	Business BusinessConfig `json:"business"`
	Session  SessionConfig  `json:"session"`
	Routes   RoutesConfig   `json:"routes"`
	Admin    *AdminConfig   `json:"admin,omitempty"`
}
