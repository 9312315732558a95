package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/utils"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
	Rental    RentalConfig    `yaml:"rental"`
	Fee       FeeConfig       `yaml:"fee"`
	Currency  CurrencyConfig  `yaml:"currency"`
	Alert     AlertConfig     `yaml:"alert"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Inventory InventoryConfig `yaml:"inventory"`
}

// ServerConfig contains the listen settings of both transports
type ServerConfig struct {
	Host     string `yaml:"host"`
	GRPCPort int    `yaml:"grpc_port"`
	HTTPPort int    `yaml:"http_port"`
}

// DatabaseConfig contains PostgreSQL connection settings. An empty host runs
// the service on in-memory stores.
type DatabaseConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Database       string `yaml:"database"`
	SSLMode        string `yaml:"ssl_mode"`
	MigrationsPath string `yaml:"migrations_path"`
}

// JWTConfig contains JWT token settings
type JWTConfig struct {
	Secret            string `yaml:"secret"`
	Issuer            string `yaml:"issuer"`
	AccessTokenExpiry int    `yaml:"access_token_expiry_minutes"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// RentalConfig contains the rental policy
type RentalConfig struct {
	MaxOpenPerUser    int     `yaml:"max_open_per_user"`
	MinBalanceCents   int64   `yaml:"min_balance_cents"`
	MaxSearchRadiusKm float64 `yaml:"max_search_radius_km"`
}

// FeeConfig contains the tariff, all amounts in minor currency units
type FeeConfig struct {
	BaseFee       int64 `yaml:"base_fee"`
	PerMinuteRate int64 `yaml:"per_minute_rate"`
	FreeMinutes   int64 `yaml:"free_minutes"`
	MaxFee        int64 `yaml:"max_fee"` // 0 leaves the fee uncapped
}

// CurrencyConfig controls how minor units are rendered
type CurrencyConfig struct {
	Code       string `yaml:"code"`
	MinorUnits int32  `yaml:"minor_units"`
}

// AlertConfig contains the operator alert settings. Without an API key
// alerts only go to the log.
type AlertConfig struct {
	SendGridAPIKey string   `yaml:"sendgrid_api_key"`
	FromEmail      string   `yaml:"from_email"`
	FromName       string   `yaml:"from_name"`
	Recipients     []string `yaml:"recipients"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	Enabled              bool   `yaml:"enabled"`
	RetryReconciliations string `yaml:"retry_reconciliations"`
	AuditInventory       string `yaml:"audit_inventory"`
}

// InventoryConfig points at the station seed file used by the memory backend
type InventoryConfig struct {
	SeedFile string `yaml:"seed_file"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document, applies environment overrides and validates
// the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("GRPC_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.GRPCPort)
	}
	if val := os.Getenv("HTTP_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.HTTPPort)
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Alerts
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.Alert.SendGridAPIKey = val
	}
	if val := os.Getenv("ALERT_RECIPIENTS"); val != "" {
		c.Alert.Recipients = strings.Split(val, ",")
	}

	// Rental
	if val := os.Getenv("RENTAL_MIN_BALANCE_CENTS"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.Rental.MinBalanceCents = n
		}
	}

	// Inventory
	if val := os.Getenv("INVENTORY_SEED_FILE"); val != "" {
		c.Inventory.SeedFile = val
	}
}

// Validate fills defaults and checks if the configuration is valid
func (c *Config) Validate() error {
	// Server
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = 50051
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc port: %d", c.Server.GRPCPort)
	}
	if c.Server.HTTPPort < 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port: %d", c.Server.HTTPPort)
	}
	if c.Server.GRPCPort == c.Server.HTTPPort {
		return fmt.Errorf("grpc and http ports must differ: %d", c.Server.GRPCPort)
	}

	// Database
	if c.UseDatabase() {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
		if c.Database.MigrationsPath == "" {
			c.Database.MigrationsPath = "migrations"
		}
	}

	// JWT
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "battery-rental"
	}
	if c.JWT.AccessTokenExpiry == 0 {
		c.JWT.AccessTokenExpiry = 60
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	// Rental
	if c.Rental.MaxOpenPerUser == 0 {
		c.Rental.MaxOpenPerUser = 1
	}
	if c.Rental.MaxOpenPerUser < 0 {
		return fmt.Errorf("invalid max open rentals per user: %d", c.Rental.MaxOpenPerUser)
	}
	if c.Rental.MinBalanceCents == 0 {
		c.Rental.MinBalanceCents = 1000
	}
	if c.Rental.MinBalanceCents < 0 {
		return fmt.Errorf("invalid minimum balance: %d", c.Rental.MinBalanceCents)
	}
	if c.Rental.MaxSearchRadiusKm == 0 {
		c.Rental.MaxSearchRadiusKm = 50
	}

	// Fee
	if c.Fee == (FeeConfig{}) {
		c.Fee = FeeConfig{BaseFee: 100, PerMinuteRate: 10, FreeMinutes: 10, MaxFee: 2000}
	}
	if err := utils.ValidatePolicy(c.FeePolicy()); err != nil {
		return err
	}

	// Currency
	if c.Currency.Code == "" {
		c.Currency.Code = "EUR"
		c.Currency.MinorUnits = 2
	}
	if c.Currency.MinorUnits < 0 || c.Currency.MinorUnits > 4 {
		return fmt.Errorf("invalid currency minor units: %d", c.Currency.MinorUnits)
	}

	// Alerts
	if c.Alert.SendGridAPIKey != "" && c.Alert.FromEmail == "" {
		return fmt.Errorf("alert from_email is required when SendGrid is configured")
	}
	if c.Alert.FromName == "" {
		c.Alert.FromName = "Battery Rental Ops"
	}

	// Scheduler defaults
	if c.Scheduler.RetryReconciliations == "" {
		c.Scheduler.RetryReconciliations = "0 */5 * * * *" // every 5 minutes
	}
	if c.Scheduler.AuditInventory == "" {
		c.Scheduler.AuditInventory = "0 0 * * * *" // hourly
	}

	if !c.UseDatabase() && c.Inventory.SeedFile == "" {
		return fmt.Errorf("inventory seed file is required without a database")
	}

	return nil
}

// UseDatabase reports whether the PostgreSQL backend is configured
func (c *Config) UseDatabase() bool {
	return c.Database.Host != ""
}

// FeePolicy returns the configured tariff
func (c *Config) FeePolicy() domain.FeePolicy {
	return domain.FeePolicy{
		BaseFee:       c.Fee.BaseFee,
		PerMinuteRate: c.Fee.PerMinuteRate,
		FreeMinutes:   c.Fee.FreeMinutes,
		MaxFee:        c.Fee.MaxFee,
	}
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetGRPCAddress returns the gRPC listen address
func (c *Config) GetGRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

// GetHTTPAddress returns the REST listen address
func (c *Config) GetHTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HTTPPort)
}
