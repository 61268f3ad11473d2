package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"logLevel"`
	Server      struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	Database struct {
		PostgresDSN         string `mapstructure:"postgresDSN"`
		PostgresAutoMigrate bool   `mapstructure:"postgresAutoMigrate"`
	} `mapstructure:"database"`
	WhatsApp WhatsAppConfig `mapstructure:"whatsapp"`
	Mail     MailConfig     `mapstructure:"mail"`
	Report struct {
		IntervalMinutes int `mapstructure:"intervalMinutes"`
	} `mapstructure:"report"`
	Admin struct {
		Username          string        `mapstructure:"username"`
		PasswordHash      string        `mapstructure:"passwordHash"` // bcrypt hash
		SecretKey         string        `mapstructure:"secretKey"`
		AccessTokenExpiry time.Duration `mapstructure:"accessTokenExpiry"`
	} `mapstructure:"admin"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
	WorkerPools struct {
		Events EventWorkerPoolConfig `mapstructure:"events"`
	} `mapstructure:"workerPools"`
}

// WhatsAppConfig holds credentials and endpoints for the messaging channel
type WhatsAppConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Token       string        `mapstructure:"token"`
	PhoneID     string        `mapstructure:"phoneID"`
	VerifyToken string        `mapstructure:"verifyToken"`
	GraphURL    string        `mapstructure:"graphURL"` // Base URL of the Graph API, overridable for tests
	Timeout     time.Duration `mapstructure:"timeout"`
}

// MailConfig holds SMTP settings for report delivery
type MailConfig struct {
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	FromName string   `mapstructure:"fromName"`
	To       []string `mapstructure:"to"`
}

// EventWorkerPoolConfig holds configuration for the inbound event worker pool
type EventWorkerPoolConfig struct {
	PoolSize   int           `mapstructure:"poolSize"`   // Number of workers
	QueueSize  int           `mapstructure:"queueSize"`  // Task queue buffer size
	ExpiryTime time.Duration `mapstructure:"expiryTime"` // Idle worker expiry time
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (*Config, error) {
	// Create new viper instance
	v := viper.New()

	// Set defaults
	v.SetDefault("environment", "development")
	v.SetDefault("logLevel", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("metrics.enabled", true)

	v.SetDefault("whatsapp.enabled", false)
	v.SetDefault("whatsapp.graphURL", "https://graph.facebook.com/v17.0")
	v.SetDefault("whatsapp.timeout", 15*time.Second)

	v.SetDefault("mail.port", 587)
	v.SetDefault("report.intervalMinutes", 1440) // Daily by default

	v.SetDefault("admin.accessTokenExpiry", 30*time.Minute)

	// Worker pool defaults
	v.SetDefault("workerPools.events.poolSize", 10)
	v.SetDefault("workerPools.events.queueSize", 1000)
	v.SetDefault("workerPools.events.expiryTime", time.Minute)

	// Config file settings
	v.SetConfigName("default") // name of config file (without extension)
	v.SetConfigType("yaml")

	// Add lookup paths
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("/etc/station-feedback-service")

	// Try to read from config file
	if err := v.ReadInConfig(); err != nil {
		// It's ok if config file is not found, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map environment variables to config fields
	bindEnvs(v, Config{})

	// Read directly from ENV for critical values
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		v.Set("database.postgresDSN", dsn)
	}
	if lgLevel := os.Getenv("LOG_LEVEL"); lgLevel != "" {
		v.Set("logLevel", lgLevel)
	}
	if token := os.Getenv("WHATSAPP_TOKEN"); token != "" {
		v.Set("whatsapp.token", token)
	}
	if phoneID := os.Getenv("WHATSAPP_PHONE_ID"); phoneID != "" {
		v.Set("whatsapp.phoneID", phoneID)
	}
	if pass := os.Getenv("SMTP_PASSWORD"); pass != "" {
		v.Set("mail.password", pass)
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &config, nil
}

// bindEnvs recursively binds environment variables to config struct fields
func bindEnvs(v *viper.Viper, cfg interface{}, parts ...string) {
	ifv := reflect.ValueOf(cfg)
	ift := reflect.TypeOf(cfg)
	for i := 0; i < ift.NumField(); i++ {
		fieldVal := ifv.Field(i)
		fieldType := ift.Field(i)

		// Get the field tag value (mapstructure)
		tag := fieldType.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		// Build the env var path
		path := append(parts, tag)
		key := strings.Join(path, ".")

		// If it's a struct, recursively bind its fields
		if fieldType.Type.Kind() == reflect.Struct {
			bindEnvs(v, fieldVal.Interface(), path...)
			continue
		}

		// Bind the env var
		_ = v.BindEnv(key)
	}
}
