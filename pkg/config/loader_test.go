package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chatYAML = `
port: "9090"
session_ttl: 2h
mongo:
  host: mongo
  port: 27017
  user: ${TEST_MONGO_USER}
  password: secret
  database: chat
delivery:
  require_online_receiver: true
kafka:
  enabled: true
  brokers: ["kafka:9092"]
`

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chat_service.yaml"), []byte(chatYAML), 0o644))
	t.Setenv("TEST_MONGO_USER", "chat_user")

	cfg, err := ReadConfig[Chat]("chat_service", dir)
	require.NoError(t, err)
	cfg.Defaults()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "chat_user", cfg.MongoSQL.User)
	assert.Equal(t, 27017, cfg.MongoSQL.Port)
	assert.True(t, cfg.Delivery.RequireOnlineReceiver)
	assert.False(t, cfg.Delivery.BroadcastConversationUpdates)
	assert.Equal(t, []string{"kafka:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "chat.message.lifecycle", cfg.Kafka.Topic)
	assert.Equal(t, 30*time.Second, cfg.Websocket.PingInterval)
	assert.Equal(t, 64, cfg.Websocket.EgressBuffer)
}

func TestReadConfig_Missing(t *testing.T) {
	_, err := ReadConfig[Chat]("chat_service", t.TempDir())
	assert.Error(t, err)
}

func TestGetRedisSetting(t *testing.T) {
	t.Setenv("REDIS_SENTINEL1_IP", "10.0.0.1")
	t.Setenv("REDIS_SENTINEL1_PORT", "26379")
	t.Setenv("REDIS_MASTER_NAME", "")

	master, addrs := GetRedisSetting()
	assert.Equal(t, "mymaster", master)
	assert.Contains(t, addrs, "10.0.0.1:26379")
}
