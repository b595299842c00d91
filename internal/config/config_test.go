package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("should fall back to defaults when file is missing", func(t *testing.T) {
		// when
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

		// then
		require.NoError(t, err)
		assert.Equal(t, 8181, cfg.Port)
		assert.Equal(t, "primary", cfg.Calendar.DefaultCalendarId)
		assert.Equal(t, 5*time.Minute, cfg.Contacts.CacheTtl)
		assert.Equal(t, 30*time.Second, cfg.Contacts.RefreshTimeout)
		assert.Equal(t, 30*time.Second, cfg.Google.BootstrapTimeout)
		assert.Equal(t, 1, cfg.Calendar.ListLookbackMonths)
		assert.Equal(t, "crmdesk", cfg.Database.Schema)
	})

	t.Run("should read yaml file", func(t *testing.T) {
		// given
		path := filepath.Join(t.TempDir(), "application.yaml")
		content := `
google:
  clientid: file-client
  apikey: file-key
contacts:
  cachettl: 2m
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))

		// when
		cfg, err := Load(path)

		// then
		require.NoError(t, err)
		assert.Equal(t, "file-client", cfg.Google.ClientId)
		assert.Equal(t, "file-key", cfg.Google.ApiKey)
		assert.Equal(t, 2*time.Minute, cfg.Contacts.CacheTtl)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		// given
		path := filepath.Join(t.TempDir(), "application.yaml")
		require.NoError(t, os.WriteFile(path, []byte("google:\n  clientid: file-client\n"), 0600))
		t.Setenv("CRMDESK_GOOGLE_CLIENTID", "env-client")
		t.Setenv("CRMDESK_DB_HOST", "db.internal")

		// when
		cfg, err := Load(path)

		// then
		require.NoError(t, err)
		assert.Equal(t, "env-client", cfg.Google.ClientId)
		assert.Equal(t, "db.internal", cfg.Database.Host)
	})

	t.Run("should fail on malformed yaml", func(t *testing.T) {
		// given
		path := filepath.Join(t.TempDir(), "application.yaml")
		require.NoError(t, os.WriteFile(path, []byte("google: [unclosed"), 0600))

		// when
		_, err := Load(path)

		// then
		assert.Error(t, err)
	})
}
