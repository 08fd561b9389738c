package main

import (
	"os"
	"path/filepath"
	"testing"

	"direct_chat_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.SetNewNop()
	os.Exit(m.Run())
}

func TestConfig_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(homeEnv, dir)

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, defaultServer, cfg.ServerURL(), "missing file is an empty config")

	require.NoError(t, setConfigValue(cfg, "server.url", "http://chat.local:9000/"))
	require.NoError(t, setConfigValue(cfg, "auth.token", "jwt"))
	require.NoError(t, setConfigValue(cfg, "auth.member_id", "alice"))
	require.NoError(t, saveConfig(cfg))

	_, err = os.Stat(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)

	loaded, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://chat.local:9000", loaded.ServerURL())
	assert.Equal(t, "jwt", loaded.Auth.Token)
	assert.Equal(t, "alice", loaded.Auth.MemberID)
}

func TestSetConfigValue_Errors(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, setConfigValue(cfg, "url", "x"))
	assert.Error(t, setConfigValue(cfg, "server.port", "x"))
	assert.Error(t, setConfigValue(cfg, "auth.password", "x"))
	assert.Error(t, setConfigValue(cfg, "default.url", "x"))
}

func TestLoadConfig_Broken(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(homeEnv, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[server\nurl="), 0o600))

	_, err := loadConfig()
	assert.Error(t, err)
}

func TestAuthedClient_NotLoggedIn(t *testing.T) {
	t.Setenv(homeEnv, t.TempDir())

	_, _, err := authedClient()
	assert.ErrorContains(t, err, "not logged in")
}
