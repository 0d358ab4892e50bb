package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm/logger"
)

// DBConfig holds database configuration
type DBConfig struct {
	Driver          string        `yaml:"driver"`
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"name"`
	SSLMode         string        `yaml:"ssl_mode"`
	Path            string        `yaml:"path"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	LogLevel        string        `yaml:"log_level"`
}

// GetDSN returns the PostgreSQL connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GormLogLevel maps the configured level onto gorm's logger levels
func (c *DBConfig) GormLogLevel() logger.LogLevel {
	switch c.LogLevel {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	default:
		return logger.Info
	}
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string `yaml:"port"`
	Env  string `yaml:"env"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningKey      string `yaml:"signing_key"`
	ExpirationHours int    `yaml:"expiration_hours"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Prefix string `yaml:"prefix"`
}

// BrokerConfig holds RabbitMQ configuration for work-order events.
// An empty Host disables publishing.
type BrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
	Exchange string `yaml:"exchange"`
	UseTLS   bool   `yaml:"use_tls"`
}

// Enabled reports whether a broker is configured
func (b *BrokerConfig) Enabled() bool {
	return b.Host != ""
}

// Config holds all configuration
type Config struct {
	ServiceName string        `yaml:"service_name"`
	DB          DBConfig      `yaml:"db"`
	Server      ServerConfig  `yaml:"server"`
	JWT         JWTConfig     `yaml:"jwt"`
	Log         LogConfig     `yaml:"log"`
	Metrics     MetricsConfig `yaml:"metrics"`
	Broker      BrokerConfig  `yaml:"broker"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		ServiceName: "crm-service",
		DB: DBConfig{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Password:        "password",
			DBName:          "crm",
			SSLMode:         "disable",
			Path:            "crm.db",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: 1 * time.Hour,
			LogLevel:        "info",
		},
		Server: ServerConfig{
			Port: "8080",
			Env:  "development",
		},
		JWT: JWTConfig{
			SigningKey:      "crmservicesecretkey",
			ExpirationHours: 24,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Metrics: MetricsConfig{
			Prefix: "crm",
		},
		Broker: BrokerConfig{
			Port:     5672,
			User:     "guest",
			Password: "guest",
			VHost:    "/",
			Exchange: "work_orders",
		},
	}
}

// Load loads configuration from an optional YAML file and environment variables.
// Environment variables win over the file, the file wins over defaults.
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Not returning error as .env file is optional
		fmt.Printf("Warning: .env file not found, using environment variables\n")
	}

	config := Default()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := loadFile(path, config); err != nil {
			return nil, err
		}
	}

	config.ServiceName = getEnv("SERVICE_NAME", config.ServiceName)
	config.DB = DBConfig{
		Driver:          getEnv("DB_DRIVER", config.DB.Driver),
		Host:            getEnv("DB_HOST", config.DB.Host),
		Port:            getEnv("DB_PORT", config.DB.Port),
		User:            getEnv("DB_USER", config.DB.User),
		Password:        getEnv("DB_PASSWORD", config.DB.Password),
		DBName:          getEnv("DB_NAME", config.DB.DBName),
		SSLMode:         getEnv("DB_SSL_MODE", config.DB.SSLMode),
		Path:            getEnv("DB_PATH", config.DB.Path),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", config.DB.MaxIdleConns),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", config.DB.MaxOpenConns),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", config.DB.ConnMaxLifetime),
		LogLevel:        getEnv("DB_LOG_LEVEL", config.DB.LogLevel),
	}
	config.Server = ServerConfig{
		Port: getEnv("SERVER_PORT", config.Server.Port),
		Env:  getEnv("APP_ENV", config.Server.Env),
	}
	config.JWT = JWTConfig{
		SigningKey:      getEnv("JWT_SIGNING_KEY", config.JWT.SigningKey),
		ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", config.JWT.ExpirationHours),
	}
	config.Log = LogConfig{
		Level:      getEnv("LOG_LEVEL", config.Log.Level),
		File:       getEnv("LOG_FILE", config.Log.File),
		MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", config.Log.MaxSizeMB),
		MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", config.Log.MaxBackups),
		MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", config.Log.MaxAgeDays),
	}
	config.Metrics = MetricsConfig{
		Prefix: getEnv("METRICS_PREFIX", config.Metrics.Prefix),
	}
	config.Broker = BrokerConfig{
		Host:     getEnv("RABBITMQ_HOST", config.Broker.Host),
		Port:     getEnvAsInt("RABBITMQ_PORT", config.Broker.Port),
		User:     getEnv("RABBITMQ_USER", config.Broker.User),
		Password: getEnv("RABBITMQ_PASSWORD", config.Broker.Password),
		VHost:    getEnv("RABBITMQ_VHOST", config.Broker.VHost),
		Exchange: getEnv("RABBITMQ_EXCHANGE", config.Broker.Exchange),
		UseTLS:   getEnvAsBool("RABBITMQ_TLS", config.Broker.UseTLS),
	}

	return config, nil
}

func loadFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// LogConfig returns the configuration as a zap logger-friendly format
func (c *Config) LogConfig() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
	}
}

// Fields returns the non-secret settings for the startup log line
func (c *Config) Fields() []zap.Field {
	return []zap.Field{
		zap.String("db_driver", c.DB.Driver),
		zap.String("db_host", c.DB.Host),
		zap.String("db_port", c.DB.Port),
		zap.String("db_user", c.DB.User),
		zap.String("db_name", c.DB.DBName),
		zap.String("server_port", c.Server.Port),
		zap.Bool("broker_enabled", c.Broker.Enabled()),
	}
}

// Helper function to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as integers
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as durations
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
