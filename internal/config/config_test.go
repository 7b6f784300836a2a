package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              9080,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      10 * time.Second,
			PongTimeout:       time.Minute,
			MaxMessageBytes:   4096,
		},
		Directory: DirectoryConfig{
			Enabled:     true,
			URL:         "https://game-on.org/map/v1/sites",
			OwnerID:     "dummy.DevUser",
			Key:         "shared-secret",
			CallbackURL: "ws://simpleroom:9080/room",
			Timeout:     15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Room: RoomConfig{
			File: "content/rooms/simpleroom.yaml",
		},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestServerAddr(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "0.0.0.0:9080", cfg.Server.Addr())
}

func TestValidate_BadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidate_DirectoryRequiresCredentialsWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Directory.OwnerID = ""
	cfg.Directory.Key = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory.owner_id")
	assert.Contains(t, err.Error(), "directory.key")
}

func TestValidate_DirectoryDisabledSkipsChecks(t *testing.T) {
	cfg := validConfig()
	cfg.Directory = DirectoryConfig{Enabled: false}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "verbose"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestValidate_MissingRoomFile(t *testing.T) {
	cfg := validConfig()
	cfg.Room.File = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "room.file")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	err := os.WriteFile(path, []byte(`
server:
  host: 127.0.0.1
  port: 9081
directory:
  enabled: true
  url: http://map:9080/map/v1/sites
  owner_id: dummy.DevUser
  key: shared-secret
  callback_url: ws://simpleroom:9081/room
logging:
  level: debug
  format: console
room:
  file: content/rooms/simpleroom.yaml
`), 0o644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9081", cfg.Server.Addr())
	assert.Equal(t, "dummy.DevUser", cfg.Directory.OwnerID)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Defaults fill in what the file leaves unset.
	assert.Equal(t, 15*time.Second, cfg.Directory.Timeout)
	assert.Equal(t, int64(4096), cfg.Server.MaxMessageBytes)
	assert.False(t, cfg.Directory.InsecureSkipVerify)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadFromFile_InvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	err := os.WriteFile(path, []byte(`
server:
  port: -1
directory:
  enabled: false
room:
  file: content/rooms/simpleroom.yaml
`), 0o644)
	require.NoError(t, err)

	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestLoadFromViper_Nil(t *testing.T) {
	_, err := LoadFromViper(nil)
	assert.Error(t, err)
}

func TestPropertyPortValidation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := validConfig()
		port := rapid.IntRange(-1000, 70000).Draw(t, "port")
		cfg.Server.Port = port

		err := cfg.Validate()
		if port >= 1 && port <= 65535 {
			if err != nil {
				t.Fatalf("port %d should validate: %v", port, err)
			}
		} else if err == nil {
			t.Fatalf("port %d should be rejected", port)
		}
	})
}
