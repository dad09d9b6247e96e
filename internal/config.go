package internal

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Environment   string              `mapstructure:"environment"`
	Server        ServerConfig        `mapstructure:"http_server"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	Onboarding    OnboardingConfig    `mapstructure:"onboarding"`
	Events        EventsConfig        `mapstructure:"events"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

const (
	StorageDriverJSON     = "json"
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"

	UpdateModeStrict = "strict"
	UpdateModeUpsert = "upsert"
)

type StorageConfig struct {
	Driver        string `mapstructure:"driver"`
	EmployeesFile string `mapstructure:"employees_file"`
	AdminsFile    string `mapstructure:"admins_file"`
	UpdateMode    string `mapstructure:"update_mode"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	AdminPassword string        `mapstructure:"admin_password"`
	BCryptCost    int           `mapstructure:"bcrypt_cost"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	SecureCookies bool          `mapstructure:"secure_cookies"`
}

type OnboardingConfig struct {
	MinimumAge      int    `mapstructure:"minimum_age"`
	WorkEmailDomain string `mapstructure:"work_email_domain"`
}

type EventsConfig struct {
	AMQPURL string `mapstructure:"amqp_url"`
	Queue   string `mapstructure:"queue"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig is the configuration used when a key is absent from both
// config.yml and the environment.
func DefaultConfig() Config {
	return Config{
		Environment: "development",
		Server: ServerConfig{
			Host:              "127.0.0.1",
			Port:              8080,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Driver:        StorageDriverJSON,
			EmployeesFile: "data/employees.json",
			AdminsFile:    "data/admins.json",
			UpdateMode:    UpdateModeStrict,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Security: SecurityConfig{
			BCryptCost: 12,
			SessionTTL: time.Hour,
		},
		Onboarding: OnboardingConfig{
			MinimumAge:      18,
			WorkEmailDomain: "avaya.com",
		},
		Events: EventsConfig{
			Queue: "employee.onboarded",
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{Level: "info", Format: "text"},
		},
	}
}

// LoadConfigFromEnv builds the configuration for container deployments
// where no config.yml is mounted.
func LoadConfigFromEnv() *Config {
	d := DefaultConfig()
	return &Config{
		Environment: getEnv("APP_ENV", d.Environment),
		Server: ServerConfig{
			Host:              getEnv("HTTP_HOST", "0.0.0.0"),
			Port:              getEnvAsInt("HTTP_PORT", d.Server.Port),
			BaseURL:           getEnv("HTTP_BASE_URL", d.Server.BaseURL),
			AllowedOrigins:    getEnv("HTTP_ALLOWED_ORIGINS", d.Server.AllowedOrigins),
			ReadHeaderTimeout: getEnvAsDuration("HTTP_READ_HEADER_TIMEOUT", d.Server.ReadHeaderTimeout),
			ReadTimeout:       getEnvAsDuration("HTTP_READ_TIMEOUT", d.Server.ReadTimeout),
			WriteTimeout:      getEnvAsDuration("HTTP_WRITE_TIMEOUT", d.Server.WriteTimeout),
			IdleTimeout:       getEnvAsDuration("HTTP_IDLE_TIMEOUT", d.Server.IdleTimeout),
			ShutdownTimeout:   getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", d.Server.ShutdownTimeout),
		},
		Storage: StorageConfig{
			Driver:        getEnv("STORAGE_DRIVER", d.Storage.Driver),
			EmployeesFile: getEnv("STORAGE_EMPLOYEES_FILE", d.Storage.EmployeesFile),
			AdminsFile:    getEnv("STORAGE_ADMINS_FILE", d.Storage.AdminsFile),
			UpdateMode:    getEnv("STORAGE_UPDATE_MODE", d.Storage.UpdateMode),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", d.Database.MaxOpenConns),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", d.Database.MaxIdleConns),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", d.Database.ConnMaxLifetime),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", d.Database.ConnMaxIdleTime),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Security: SecurityConfig{
			AdminPassword: getEnv("ADMIN_PASSWORD", ""),
			BCryptCost:    getEnvAsInt("BCRYPT_COST", d.Security.BCryptCost),
			SessionTTL:    getEnvAsDuration("SESSION_TTL", d.Security.SessionTTL),
			SecureCookies: getEnv("SECURE_COOKIES", "true") == "true",
		},
		Onboarding: OnboardingConfig{
			MinimumAge:      getEnvAsInt("ONBOARDING_MINIMUM_AGE", d.Onboarding.MinimumAge),
			WorkEmailDomain: getEnv("ONBOARDING_WORK_EMAIL_DOMAIN", d.Onboarding.WorkEmailDomain),
		},
		Events: EventsConfig{
			AMQPURL: getEnv("AMQP_URL", ""),
			Queue:   getEnv("EVENTS_QUEUE", d.Events.Queue),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", d.Observability.Logging.Level),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("storage config: %v", err))
	}

	if c.Storage.Driver == StorageDriverPostgres || c.Storage.Driver == StorageDriverSQLite {
		if err := c.Database.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("database config: %v", err))
		}
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Onboarding.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("onboarding config: %v", err))
	}

	if err := c.Events.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("events config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *StorageConfig) Validate() error {
	switch c.Driver {
	case StorageDriverJSON:
		if c.EmployeesFile == "" || c.AdminsFile == "" {
			return errors.New("employees_file and admins_file are required for the json driver")
		}
	case StorageDriverPostgres, StorageDriverSQLite:
	default:
		return fmt.Errorf("unknown driver %q", c.Driver)
	}
	if c.UpdateMode != UpdateModeStrict && c.UpdateMode != UpdateModeUpsert {
		return fmt.Errorf("update_mode must be %q or %q", UpdateModeStrict, UpdateModeUpsert)
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if c.BCryptCost < 4 || c.BCryptCost > 31 {
		return fmt.Errorf("bcrypt_cost %d out of range", c.BCryptCost)
	}
	if c.SessionTTL <= 0 {
		return errors.New("session_ttl must be positive")
	}
	return nil
}

func (c *OnboardingConfig) Validate() error {
	if c.MinimumAge < 0 {
		return errors.New("minimum_age cannot be negative")
	}
	if c.WorkEmailDomain == "" {
		return errors.New("work_email_domain is required")
	}
	if _, err := mail.ParseAddress("user@" + c.WorkEmailDomain); err != nil {
		return fmt.Errorf("invalid work_email_domain %s: %w", c.WorkEmailDomain, err)
	}
	return nil
}

func (c *EventsConfig) Validate() error {
	if c.AMQPURL == "" {
		return nil
	}
	if _, err := url.Parse(c.AMQPURL); err != nil {
		return fmt.Errorf("invalid amqp_url: %w", err)
	}
	if c.Queue == "" {
		return errors.New("queue is required when amqp_url is set")
	}
	return nil
}
