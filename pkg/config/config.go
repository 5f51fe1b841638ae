package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Session  SessionConfig  `mapstructure:"session"`
	Uploads  UploadsConfig  `mapstructure:"uploads"`
	Stats    StatsConfig    `mapstructure:"stats"`
}

type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	AuthToken string `mapstructure:"auth_token"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type GatewayConfig struct {
	URL               string        `mapstructure:"url"`
	Token             string        `mapstructure:"token"`
	Model             string        `mapstructure:"model"`
	AssistantLabel    string        `mapstructure:"assistant_label"`
	OperatorLabel     string        `mapstructure:"operator_label"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	StreamIdleTimeout time.Duration `mapstructure:"stream_idle_timeout"`
}

type RealtimeConfig struct {
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffMax  time.Duration `mapstructure:"backoff_max"`
}

type SessionConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type UploadsConfig struct {
	Dir     string `mapstructure:"dir"`
	BaseURL string `mapstructure:"base_url"`
}

type StatsConfig struct {
	Schedule string `mapstructure:"schedule"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("gateway.url", "http://127.0.0.1:18789")
	v.SetDefault("gateway.model", "openclaw:main")
	v.SetDefault("gateway.assistant_label", "Titus")
	v.SetDefault("gateway.operator_label", "Cody")
	v.SetDefault("gateway.request_timeout", 120*time.Second)
	v.SetDefault("gateway.stream_idle_timeout", 60*time.Second)
	v.SetDefault("realtime.backoff_base", time.Second)
	v.SetDefault("realtime.backoff_max", 30*time.Second)
	v.SetDefault("session.poll_interval", 5*time.Second)
	v.SetDefault("uploads.dir", "uploads")
	v.SetDefault("uploads.base_url", "/uploads")
	v.SetDefault("stats.schedule", "@every 1m")

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
	}

	// Get other environment variables
	if gwURL := v.GetString("GATEWAY_URL"); gwURL != "" {
		config.Gateway.URL = gwURL
	}

	if token := v.GetString("GATEWAY_TOKEN"); token != "" {
		config.Gateway.Token = token
	}

	if token := v.GetString("SERVER_AUTH_TOKEN"); token != "" {
		config.Server.AuthToken = token
	}

	return &config, nil
}
