package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Defaults applied when the config file leaves fields unset. The session
// window default mirrors the 36000s constant the dashboard has always used.
const (
	DefaultAddr            = ":8080"
	DefaultSessionWindow   = 36000 * time.Second
	DefaultCleanupInterval = 5 * time.Minute

	DefaultPublicEntry         = "/registro"
	DefaultCollaboratorRole    = "colaborador"
	DefaultCollaboratorLanding = "/colaborador"
	DefaultAdminLanding        = "/administrador"
)

// DefaultPublicPaths are the routes reachable without a session
var DefaultPublicPaths = []string{
	"/registro",
	"/registro/colaborador",
	"/registro/negocio",
	"/public",
}

// DefaultExcludePatterns are paths the gate never inspects
// (static assets and API routes, which authenticate per call)
var DefaultExcludePatterns = []string{
	"/api/**",
	"/static/**",
	"/favicon.ico",
	"/robots.txt",
	"/healthz",
	"/admin/**",
}

// Load reads and validates the config file, resolving env references
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultAddr
	}
	if cfg.Session.Mode == "" {
		cfg.Session.Mode = SessionModeCookie
	}
	if cfg.Session.Window == 0 {
		cfg.Session.Window = Duration(DefaultSessionWindow)
	}
	if cfg.Session.Storage == "" {
		cfg.Session.Storage = StorageKindMemory
	}
	if cfg.Session.CleanupInterval == 0 {
		cfg.Session.CleanupInterval = Duration(DefaultCleanupInterval)
	}
	if cfg.Routes.PublicPaths == nil {
		cfg.Routes.PublicPaths = DefaultPublicPaths
	}
	if cfg.Routes.ExcludePatterns == nil {
		cfg.Routes.ExcludePatterns = DefaultExcludePatterns
	}
	if cfg.Routes.PublicEntry == "" {
		cfg.Routes.PublicEntry = DefaultPublicEntry
	}
	if cfg.Routes.CollaboratorRole == "" {
		cfg.Routes.CollaboratorRole = DefaultCollaboratorRole
	}
	if cfg.Routes.CollaboratorLanding == "" {
		cfg.Routes.CollaboratorLanding = DefaultCollaboratorLanding
	}
	if cfg.Routes.AdminLanding == "" {
		cfg.Routes.AdminLanding = DefaultAdminLanding
	}
}

// Validate checks the configuration for required fields and consistent modes
func Validate(cfg *Config) error {
	if cfg.Version == "" {
		return fmt.Errorf("config version is required")
	}
	if cfg.Identity.BaseURL == "" {
		return fmt.Errorf("identity.baseURL is required")
	}
	if cfg.Business.BaseURL == "" {
		return fmt.Errorf("business.baseURL is required")
	}
	if len(cfg.Session.SigningKey) < 32 {
		return fmt.Errorf("session.signingKey must be at least 32 bytes")
	}
	if time.Duration(cfg.Session.Window) <= 0 {
		return fmt.Errorf("session.window must be positive")
	}

	switch cfg.Session.Mode {
	case SessionModeCookie:
	case SessionModeServer:
		switch cfg.Session.Storage {
		case StorageKindMemory:
		case StorageKindFirestore:
			if cfg.Session.GCPProject == "" {
				return fmt.Errorf("session.gcpProject is required for firestore storage")
			}
		default:
			return fmt.Errorf("unknown session storage: %s", cfg.Session.Storage)
		}
	default:
		return fmt.Errorf("unknown session mode: %s", cfg.Session.Mode)
	}

	if cfg.Admin != nil {
		if cfg.Admin.Username == "" || cfg.Admin.PasswordHash == "" {
			return fmt.Errorf("admin.username and admin.passwordHash are both required when admin is configured")
		}
	}

	return nil
}
