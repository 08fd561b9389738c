package config

import "time"

// Chat definition chat_service YAML structure
type Chat struct {
	Port       string        `mapstructure:"port"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`

	MongoSQL   DatabaseConfig `mapstructure:"mongo"`
	PostgreSQL DatabaseConfig `mapstructure:"pg"`
	Redis      RedisConfig    `mapstructure:"redis"`
	Kafka      KafkaConfig    `mapstructure:"kafka"`
	MinIO      MinIOConfig    `mapstructure:"minio"`

	Delivery  DeliveryConfig  `mapstructure:"delivery"`
	Websocket WebsocketConfig `mapstructure:"ws"`
}

// DeliveryConfig realtime delivery policy
type DeliveryConfig struct {
	// RequireOnlineReceiver only mark delivered when the receiver holds a live connection
	RequireOnlineReceiver bool `mapstructure:"require_online_receiver"`
	// BroadcastConversationUpdates send conversation_updated to every connection instead of the two participants
	BroadcastConversationUpdates bool `mapstructure:"broadcast_conversation_updates"`
	// PublishTimeout bound of one lifecycle publish, publishing runs off the realtime path
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
	// PublishBuffer lifecycle events waiting to be published, further events are dropped
	PublishBuffer int `mapstructure:"publish_buffer"`
}

// WebsocketConfig per connection settings
type WebsocketConfig struct {
	PingInterval time.Duration `mapstructure:"ping_interval"`
	EgressBuffer int           `mapstructure:"egress_buffer"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	RedisDB int `mapstructure:"redis_db"`
}

// KafkaConfig definition message lifecycle stream
type KafkaConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	RetryInterval int      `mapstructure:"retry_interval"`
	RetryCount    int      `mapstructure:"retry_count"`
}

// MinIOConfig definition avatar bucket
type MinIOConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Endpoint      string        `mapstructure:"endpoint"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	Bucket        string        `mapstructure:"bucket"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	URLExpiry     time.Duration `mapstructure:"url_expiry"`
	RetryInterval int           `mapstructure:"retry_interval"`
	RetryCount    int           `mapstructure:"retry_count"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// Defaults fill the zero values the yaml may leave out
func (c *Chat) Defaults() {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.SessionTTL == 0 {
		c.SessionTTL = 30 * 24 * time.Hour
	}
	if c.Websocket.PingInterval == 0 {
		c.Websocket.PingInterval = 30 * time.Second
	}
	if c.Websocket.EgressBuffer == 0 {
		c.Websocket.EgressBuffer = 64
	}
	if c.Delivery.PublishTimeout == 0 {
		c.Delivery.PublishTimeout = 5 * time.Second
	}
	if c.Delivery.PublishBuffer == 0 {
		c.Delivery.PublishBuffer = 256
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "chat.message.lifecycle"
	}
	if c.MinIO.Bucket == "" {
		c.MinIO.Bucket = "avatars"
	}
	if c.MinIO.URLExpiry == 0 {
		c.MinIO.URLExpiry = time.Hour
	}
}
