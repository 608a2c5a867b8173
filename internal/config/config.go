package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Admin    AdminConfig
	Log      LogConfig
	Gateway  GatewayConfig
	Platform PlatformConfig
	Settings SettingsConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	Mode         string // debug, release, test
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Issuer          string
}

// AdminConfig holds the dashboard administrator credential. The password is
// stored as a bcrypt hash, never in the clear.
type AdminConfig struct {
	Username     string
	PasswordHash string
}

type LogConfig struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	OutputPath string
}

// GatewayConfig configures the platform event gateway connection.
type GatewayConfig struct {
	URL           string
	Token         string
	BotIdentityID string
	DialTimeout   time.Duration
	ReconnectWait time.Duration
}

// PlatformConfig configures the platform REST API client. The gateway bot
// token authenticates REST calls as well.
type PlatformConfig struct {
	APIURL         string
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
}

// SettingsConfig points at the hot-reloadable runtime settings file.
type SettingsConfig struct {
	Path string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("WARDEN")
	viper.AutomaticEnv()

	setDefaults()

	// Config file is optional; env vars and defaults cover everything.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVariables()

	cfg := &Config{
		Server: ServerConfig{
			Host:         viper.GetString("server.host"),
			Port:         viper.GetInt("server.port"),
			Mode:         viper.GetString("server.mode"),
			ReadTimeout:  viper.GetDuration("server.read_timeout"),
			WriteTimeout: viper.GetDuration("server.write_timeout"),
		},
		Database: DatabaseConfig{
			Host:            viper.GetString("database.host"),
			Port:            viper.GetInt("database.port"),
			User:            viper.GetString("database.user"),
			Password:        viper.GetString("database.password"),
			DBName:          viper.GetString("database.dbname"),
			SSLMode:         viper.GetString("database.sslmode"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: viper.GetDuration("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("redis.host"),
			Port:     viper.GetInt("redis.port"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
			PoolSize: viper.GetInt("redis.pool_size"),
		},
		JWT: JWTConfig{
			Secret:          viper.GetString("jwt.secret"),
			AccessTokenTTL:  viper.GetDuration("jwt.access_token_ttl"),
			RefreshTokenTTL: viper.GetDuration("jwt.refresh_token_ttl"),
			Issuer:          viper.GetString("jwt.issuer"),
		},
		Admin: AdminConfig{
			Username:     viper.GetString("admin.username"),
			PasswordHash: viper.GetString("admin.password_hash"),
		},
		Log: LogConfig{
			Level:      viper.GetString("log.level"),
			Format:     viper.GetString("log.format"),
			OutputPath: viper.GetString("log.output_path"),
		},
		Gateway: GatewayConfig{
			URL:           viper.GetString("gateway.url"),
			Token:         viper.GetString("gateway.token"),
			BotIdentityID: viper.GetString("gateway.bot_identity_id"),
			DialTimeout:   viper.GetDuration("gateway.dial_timeout"),
			ReconnectWait: viper.GetDuration("gateway.reconnect_wait"),
		},
		Platform: PlatformConfig{
			APIURL:         viper.GetString("platform.api_url"),
			Timeout:        viper.GetDuration("platform.timeout"),
			RequestsPerSec: viper.GetFloat64("platform.requests_per_sec"),
			Burst:          viper.GetInt("platform.burst"),
		},
		Settings: SettingsConfig{
			Path: viper.GetString("settings.path"),
		},
	}

	return cfg, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "warden")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)

	// JWT defaults
	viper.SetDefault("jwt.secret", "your-secret-key-change-in-production")
	viper.SetDefault("jwt.access_token_ttl", "15m")
	viper.SetDefault("jwt.refresh_token_ttl", "168h") // 7 days
	viper.SetDefault("jwt.issuer", "voice-warden")

	// Admin defaults, replace in production
	viper.SetDefault("admin.username", "admin")
	viper.SetDefault("admin.password_hash", "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output_path", "stdout")

	// Gateway defaults
	viper.SetDefault("gateway.url", "wss://localhost:9443/gateway")
	viper.SetDefault("gateway.dial_timeout", "10s")
	viper.SetDefault("gateway.reconnect_wait", "5s")

	// Platform defaults
	viper.SetDefault("platform.api_url", "https://localhost:9443/api")
	viper.SetDefault("platform.timeout", "10s")
	viper.SetDefault("platform.requests_per_sec", 25)
	viper.SetDefault("platform.burst", 10)

	// Settings defaults
	viper.SetDefault("settings.path", "settings.yaml")
}

func bindEnvVariables() {
	// Server
	_ = viper.BindEnv("server.host", "SERVER_HOST")
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.mode", "SERVER_MODE")

	// Database
	_ = viper.BindEnv("database.host", "DB_HOST")
	_ = viper.BindEnv("database.port", "DB_PORT")
	_ = viper.BindEnv("database.user", "DB_USER")
	_ = viper.BindEnv("database.password", "DB_PASSWORD")
	_ = viper.BindEnv("database.dbname", "DB_NAME")
	_ = viper.BindEnv("database.sslmode", "DB_SSLMODE")

	// Redis
	_ = viper.BindEnv("redis.host", "REDIS_HOST")
	_ = viper.BindEnv("redis.port", "REDIS_PORT")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// JWT
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Admin
	_ = viper.BindEnv("admin.username", "ADMIN_USERNAME")
	_ = viper.BindEnv("admin.password_hash", "ADMIN_PASSWORD_HASH")

	// Gateway
	_ = viper.BindEnv("gateway.url", "GATEWAY_URL")
	_ = viper.BindEnv("gateway.token", "GATEWAY_TOKEN")
	_ = viper.BindEnv("gateway.bot_identity_id", "GATEWAY_BOT_ID")

	// Log
	_ = viper.BindEnv("log.level", "LOG_LEVEL")

	// Platform
	_ = viper.BindEnv("platform.api_url", "PLATFORM_API_URL")

	// Settings
	_ = viper.BindEnv("settings.path", "SETTINGS_PATH")
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// GetAddr returns Redis address
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAddr returns server address
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
