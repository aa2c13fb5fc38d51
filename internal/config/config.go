package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logger   LoggerConfig
	Payment  PaymentConfig
	Checkout CheckoutConfig
	Kafka    KafkaConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// PaymentConfig holds external payment gateway configuration.
type PaymentConfig struct {
	GatewayURL string
	Currency   string
	Secret     string // shared HMAC secret for signature verification
}

// CheckoutConfig holds pricing knobs applied at checkout.
type CheckoutConfig struct {
	ShippingFee   string // decimal string, e.g. "5.00"
	BuyNowTaxRate string // flat rate applied on the buy-now path, e.g. "0.05"
	OrderNumFloor int    // minimum order number; also fixes the padded width
	OrderNumRetry int    // insert retries after a number collision
}

// KafkaConfig holds event publishing configuration. Empty brokers disable
// publishing entirely.
type KafkaConfig struct {
	Brokers    string // comma-separated
	CartTopic  string
	OrderTopic string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "shopkart"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Payment: PaymentConfig{
			GatewayURL: getEnv("PAYMENT_GATEWAY_URL", ""),
			Currency:   getEnv("PAYMENT_CURRENCY", "USD"),
			Secret:     getEnv("PAYMENT_SECRET", ""),
		},
		Checkout: CheckoutConfig{
			ShippingFee:   getEnv("CHECKOUT_SHIPPING_FEE", "5.00"),
			BuyNowTaxRate: getEnv("CHECKOUT_BUYNOW_TAX_RATE", "0.05"),
			OrderNumFloor: getEnvAsInt("CHECKOUT_ORDER_NUM_FLOOR", 100000),
			OrderNumRetry: getEnvAsInt("CHECKOUT_ORDER_NUM_RETRY", 1),
		},
		Kafka: KafkaConfig{
			Brokers:    getEnv("KAFKA_BROKERS", ""),
			CartTopic:  getEnv("KAFKA_CART_TOPIC", "cart-updated"),
			OrderTopic: getEnv("KAFKA_ORDER_TOPIC", "order-confirmed"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}

	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Database.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	if c.Payment.Secret == "" {
		return fmt.Errorf("payment HMAC secret is required")
	}

	if c.Checkout.OrderNumFloor < 1 {
		return fmt.Errorf("order number floor must be positive")
	}

	if c.Checkout.OrderNumRetry < 0 {
		return fmt.Errorf("order number retry count cannot be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
