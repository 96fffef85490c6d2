package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Room      RoomConfig
	Upload    UploadConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type RoomConfig struct {
	// TTL is the unconditional room lifetime after creation.
	TTL time.Duration `mapstructure:"ttl"`
	// EmptyTTL is how long an empty room is kept before collection.
	EmptyTTL time.Duration `mapstructure:"empty_ttl"`
	// DefaultMaxUsers applies when a create request omits a capacity.
	DefaultMaxUsers int `mapstructure:"default_max_users"`
}

type UploadConfig struct {
	Dir     string        `mapstructure:"dir"`
	MaxSize int64         `mapstructure:"max_size"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads configuration from config.yaml and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 65536)
	v.SetDefault("room.ttl", "24h")
	v.SetDefault("room.empty_ttl", "5m")
	v.SetDefault("room.default_max_users", 50)
	v.SetDefault("upload.dir", "./uploads")
	v.SetDefault("upload.max_size", 8*1024*1024)
	v.SetDefault("upload.ttl", "24h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.BindEnv("server.port", "PORT")
	v.BindEnv("upload.dir", "UPLOAD_DIR")
	v.BindEnv("log.level", "LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file: defaults plus environment variables.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Room.TTL = parseDuration(v, "room.ttl", 24*time.Hour)
	cfg.Room.EmptyTTL = parseDuration(v, "room.empty_ttl", 5*time.Minute)
	cfg.Upload.TTL = parseDuration(v, "upload.ttl", 24*time.Hour)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return defaultVal
	}
	return d
}
