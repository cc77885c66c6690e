package configuration

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type MongoConfig struct {
	Uri                     string        `mapstructure:"uri"`
	Database                string        `mapstructure:"database"`
	ConversationsCollection string        `mapstructure:"conversations_collection"`
	MessagesCollection      string        `mapstructure:"messages_collection"`
	NotificationsCollection string        `mapstructure:"notifications_collection"`
	CallsCollection         string        `mapstructure:"calls_collection"`
	UsersCollection         string        `mapstructure:"users_collection"`
	ConnectTimeout          time.Duration `mapstructure:"connect_timeout"`
	MaxPoolSize             uint64        `mapstructure:"max_pool_size"`
}

type ServerConfig struct {
	AppPort     int    `mapstructure:"app_port"`
	SocketPort  int    `mapstructure:"socket_port"`
	SocketRoute string `mapstructure:"socket_route"`
}

type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type RealtimeConfig struct {
	RingTimeout  time.Duration `mapstructure:"ring_timeout"`
	OfflineGrace time.Duration `mapstructure:"offline_grace"`
}

type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	ChatDatabase MongoConfig    `mapstructure:"mongo"`
	Server       ServerConfig   `mapstructure:"server"`
	Auth         AuthConfig     `mapstructure:"auth"`
	Realtime     RealtimeConfig `mapstructure:"realtime"`
	Cors         CorsConfig     `mapstructure:"cors"`
	Log          LogConfig      `mapstructure:"log"`
}

// LoadConfig reads a JSON config file, then applies CIRCLET_* environment
// overrides (mongo.uri -> CIRCLET_MONGO_URI). An empty path searches
// ./config.json and ./shared/config.json; a missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./shared")
	}

	setDefaults(v)

	v.SetEnvPrefix("CIRCLET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("server.app_port", 8080)
	v.SetDefault("server.socket_port", 8081)
	v.SetDefault("server.socket_route", "ws")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "circlet")
	v.SetDefault("mongo.conversations_collection", "conversations")
	v.SetDefault("mongo.messages_collection", "messages")
	v.SetDefault("mongo.notifications_collection", "notifications")
	v.SetDefault("mongo.calls_collection", "calls")
	v.SetDefault("mongo.users_collection", "users")
	v.SetDefault("mongo.connect_timeout", "10s")
	v.SetDefault("mongo.max_pool_size", 100)

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.token_ttl", "24h")

	v.SetDefault("realtime.ring_timeout", "45s")
	v.SetDefault("realtime.offline_grace", "0s")

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:4200"})
}

func (c *Config) validate() error {
	if c.Auth.Secret == "" {
		return errors.New("config: auth.secret is required (set CIRCLET_AUTH_SECRET)")
	}
	if c.Realtime.RingTimeout <= 0 {
		return errors.New("config: realtime.ring_timeout must be positive")
	}
	if c.Realtime.OfflineGrace < 0 {
		return errors.New("config: realtime.offline_grace must not be negative")
	}
	return nil
}
