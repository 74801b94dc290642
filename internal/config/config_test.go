package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacsops/dcmmove/internal/uid"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, uid.DefaultOrgRoot, cfg.OrgUIDRoot)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 60, cfg.TimeoutSeconds)
	assert.Equal(t, 60*time.Second, cfg.Timeout())
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFrom(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := loadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
base_url: https://pacs.example.org:8443
aet: CUFVNAQUAA
org_uid_root: "1.2.840.99999."
default_issuer: JMS
concurrency: 8
timeout_seconds: 30
insecure: true
auth:
  token_endpoint: https://idp.example.org/token
  client_id: mover
  client_secret: s3cret
  scope: pacs
logging:
  level: debug
  format: json
`), 0600))

		cfg, err := loadFrom(path)
		require.NoError(t, err)
		assert.Equal(t, "https://pacs.example.org:8443", cfg.BaseURL)
		assert.Equal(t, "CUFVNAQUAA", cfg.AET)
		assert.Equal(t, "1.2.840.99999.", cfg.OrgUIDRoot)
		assert.Equal(t, "JMS", cfg.DefaultIssuer)
		assert.Equal(t, 8, cfg.Concurrency)
		assert.Equal(t, 30*time.Second, cfg.Timeout())
		assert.True(t, cfg.Insecure)
		assert.Equal(t, "mover", cfg.Auth.ClientID)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("partial file keeps remaining defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("aet: ARCHIVE\n"), 0600))

		cfg, err := loadFrom(path)
		require.NoError(t, err)
		assert.Equal(t, "ARCHIVE", cfg.AET)
		assert.Equal(t, 4, cfg.Concurrency)
		assert.Equal(t, uid.DefaultOrgRoot, cfg.OrgUIDRoot)
	})

	t.Run("invalid values fall back to defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("concurrency: -2\ntimeout_seconds: 0\n"), 0600))

		cfg, err := loadFrom(path)
		require.NoError(t, err)
		assert.Equal(t, 4, cfg.Concurrency)
		assert.Equal(t, 60, cfg.TimeoutSeconds)
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("base_url: [unclosed"), 0600))

		_, err := loadFrom(path)
		assert.Error(t, err)
	})
}

func TestPath(t *testing.T) {
	t.Run("env override wins", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "/etc/dcmmove/config.yaml")
		assert.Equal(t, "/etc/dcmmove/config.yaml", Path())
	})

	t.Run("defaults under home", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "")
		p := Path()
		if p != "" {
			assert.Contains(t, p, filepath.Join(".dcmmove", "config.yaml"))
		}
	})
}
