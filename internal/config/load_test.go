package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `{
	"version": "v1",
	"identity": {"baseURL": "https://api.example.com/seguridad"},
	"business": {"baseURL": "https://api.example.com/negocios"},
	"session": {"signingKey": "0123456789abcdef0123456789abcdef"}
}`

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, SessionModeCookie, cfg.Session.Mode)
	assert.Equal(t, DefaultSessionWindow, time.Duration(cfg.Session.Window))
	assert.Equal(t, DefaultPublicPaths, cfg.Routes.PublicPaths)
	assert.Equal(t, DefaultPublicEntry, cfg.Routes.PublicEntry)
	assert.Equal(t, DefaultCollaboratorLanding, cfg.Routes.CollaboratorLanding)
	assert.Equal(t, DefaultAdminLanding, cfg.Routes.AdminLanding)
}

func TestLoad_ResolvesEnvReferences(t *testing.T) {
	t.Setenv("TEST_SIGNING_KEY", "0123456789abcdef0123456789abcdef")

	cfg, err := Load(writeConfig(t, `{
		"version": "v1",
		"identity": {"baseURL": "https://api.example.com/seguridad"},
		"business": {"baseURL": "https://api.example.com/negocios"},
		"session": {"signingKey": {"$env": "TEST_SIGNING_KEY"}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, Secret("0123456789abcdef0123456789abcdef"), cfg.Session.SigningKey)
}

func TestLoad_MissingEnvReference(t *testing.T) {
	_, err := Load(writeConfig(t, `{
		"version": "v1",
		"identity": {"baseURL": "https://api.example.com/seguridad"},
		"business": {"baseURL": "https://api.example.com/negocios"},
		"session": {"signingKey": {"$env": "DEFINITELY_NOT_SET_12345"}}
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFINITELY_NOT_SET_12345")
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing version",
			content: `{"identity": {"baseURL": "x"}, "business": {"baseURL": "y"}, "session": {"signingKey": "0123456789abcdef0123456789abcdef"}}`,
			wantErr: "version",
		},
		{
			name:    "short signing key",
			content: `{"version": "v1", "identity": {"baseURL": "x"}, "business": {"baseURL": "y"}, "session": {"signingKey": "short"}}`,
			wantErr: "signingKey",
		},
		{
			name:    "missing identity",
			content: `{"version": "v1", "business": {"baseURL": "y"}, "session": {"signingKey": "0123456789abcdef0123456789abcdef"}}`,
			wantErr: "identity.baseURL",
		},
		{
			name:    "firestore without project",
			content: `{"version": "v1", "identity": {"baseURL": "x"}, "business": {"baseURL": "y"}, "session": {"signingKey": "0123456789abcdef0123456789abcdef", "mode": "server", "storage": "firestore"}}`,
			wantErr: "gcpProject",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("super-secret-value")
	assert.Equal(t, "***", s.String())

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"***"`, string(data))
}

func TestDuration_Unmarshal(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"10h"`)))
	assert.Equal(t, 10*time.Hour, time.Duration(d))

	assert.Error(t, d.UnmarshalJSON([]byte(`"ten hours"`)))
	assert.Error(t, d.UnmarshalJSON([]byte(`36000`)))
}
