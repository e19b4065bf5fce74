package contactsync

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
	path := filepath.Join(t.TempDir(), "contactsync.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
socket_path = "/run/bridge.sock"
ask_delete = true
addrbook_choice = "default"
addrbook_folderpath = "#mh/Mailbox/addrbook"
allow_id_overwrite = true
idle_timeout = "90s"
store = "sqlite"
sqlite_path = "contacts.db"
metrics_addr = "127.0.0.1:9100"

[[source]]
name = "Work"
path = "#mh/Mailbox/work"

[[source]]
name = "Personal"
path = "#mh/Mailbox/personal"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/run/bridge.sock", cfg.SocketPath)
	assert.Equal(t, DefaultAppName, cfg.AppName)
	assert.False(t, cfg.AskAdd)
	assert.True(t, cfg.AskDelete)
	assert.Equal(t, AddressBookDefault, cfg.AddressBookChoice)
	assert.Equal(t, "#mh/Mailbox/addrbook", cfg.FolderPath)
	assert.True(t, cfg.AllowIDOverwrite)
	assert.Equal(t, 90*time.Second, cfg.IdleTimeout)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "contacts.db", cfg.SQLitePath)
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr)
	assert.Equal(t, []SourceConfig{
		{Name: "Work", Path: "#mh/Mailbox/work"},
		{Name: "Personal", Path: "#mh/Mailbox/personal"},
	}, cfg.Sources)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"syntax", `ask_add = `, "load config"},
		{"duration", `idle_timeout = "soon"`, "idle_timeout"},
		{"choice", `addrbook_choice = "sometimes"`, "addrbook_choice"},
		{"default without folder", `addrbook_choice = "default"`, "addrbook_folderpath"},
		{"store", `store = "ldap"`, "invalid store"},
		{"sqlite without path", `store = "sqlite"`, "sqlite_path"},
		{"line length", `max_line_length = 10`, "max_line_length"},
		{"source without path", "[[source]]\nname = \"Work\"\n", "source 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AskAdd = true
	cfg.AskModify = true
	cfg.AddressBookChoice = AddressBookDefault
	cfg.FolderPath = "#mh/Mailbox/addrbook"
	cfg.AlwaysEncodeName = true
	cfg.IdleTimeout = 5 * time.Minute
	cfg.Sources = []SourceConfig{{Name: "Work", Path: "#mh/Mailbox/work"}}

	path := filepath.Join(t.TempDir(), "saved.toml")
	require.NoError(t, SaveConfig(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSaveConfigWithoutTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.toml")
	require.NoError(t, SaveConfig(path, DefaultConfig()))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Zero(t, loaded.IdleTimeout)
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{}.WithDefaults()

	assert.Equal(t, DefaultAppName, cfg.AppName)
	assert.Equal(t, AddressBookIndividual, cfg.AddressBookChoice)
	assert.Equal(t, 8192, cfg.MaxLineLength)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, DefaultSocketPath(DefaultAppName), cfg.SocketPath)
	assert.NotNil(t, cfg.Confirmer)
	assert.NotNil(t, cfg.FolderResolver)

	custom := Config{AppName: "sylpheed", MaxLineLength: 1024}.WithDefaults()
	assert.Equal(t, DefaultSocketPath("sylpheed"), custom.SocketPath)
	assert.Equal(t, 1024, custom.MaxLineLength)
}

func TestConfigValidateIdleTimeout(t *testing.T) {
	err := Config{IdleTimeout: -time.Second}.Validate()
	assert.ErrorContains(t, err, "idle_timeout")
}
