package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Tron        TronConfig     `mapstructure:"tron"`
	Deposit     DepositConfig  `mapstructure:"deposit"`
	Scanner     ScannerConfig  `mapstructure:"scanner"`
	Sweeper     SweeperConfig  `mapstructure:"sweeper"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	Host            string   `mapstructure:"host"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	WriteTimeout    int      `mapstructure:"write_timeout"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	RateLimitPerMin int      `mapstructure:"rate_limit_per_min"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// TronConfig contains TRON indexer and wallet configuration. The wallet
// address is a single service-wide TRC20 address; deposits are attributed
// by payable amount, not by per-user addresses.
type TronConfig struct {
	APIBaseURL          string `mapstructure:"api_base_url"`
	APIKey              string `mapstructure:"api_key"`
	WalletAddress       string `mapstructure:"wallet_address"`
	USDTContractAddress string `mapstructure:"usdt_contract_address"`
	RequestTimeout      int    `mapstructure:"request_timeout"`
	PageSize            int    `mapstructure:"page_size"`
}

// DepositConfig contains deposit ledger limits
type DepositConfig struct {
	MinAmount            string `mapstructure:"min_amount"`
	MaxAmount            string `mapstructure:"max_amount"`
	ExpiryMinutes        int    `mapstructure:"expiry_minutes"`
	MaxPendingPerUser    int    `mapstructure:"max_pending_per_user"`
	AllocatorMaxAttempts int    `mapstructure:"allocator_max_attempts"`
}

// ScannerConfig contains chain scanner configuration
type ScannerConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	IntervalSecs int  `mapstructure:"interval_secs"`
	LockTTLSecs  int  `mapstructure:"lock_ttl_secs"`
}

// SweeperConfig contains expiry sweeper configuration
type SweeperConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Schedule  string `mapstructure:"schedule"`
	BatchSize int    `mapstructure:"batch_size"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	// Read from config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Build database URL if not provided
	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.rate_limit_per_min", 100)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "tronpay_service")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)

	// Tron defaults
	viper.SetDefault("tron.api_base_url", "https://api.trongrid.io")
	viper.SetDefault("tron.usdt_contract_address", "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t")
	viper.SetDefault("tron.request_timeout", 15)
	viper.SetDefault("tron.page_size", 200)

	// Deposit defaults
	viper.SetDefault("deposit.min_amount", "30")
	viper.SetDefault("deposit.max_amount", "20000")
	viper.SetDefault("deposit.expiry_minutes", 10)
	viper.SetDefault("deposit.max_pending_per_user", 3)
	viper.SetDefault("deposit.allocator_max_attempts", 8)

	// Scanner defaults
	viper.SetDefault("scanner.enabled", true)
	viper.SetDefault("scanner.interval_secs", 30)
	viper.SetDefault("scanner.lock_ttl_secs", 120)

	// Sweeper defaults
	viper.SetDefault("sweeper.enabled", true)
	viper.SetDefault("sweeper.schedule", "@every 30s")
	viper.SetDefault("sweeper.batch_size", 100)
}

func overrideFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("server.port", p)
		}
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}

	if redisURL := os.Getenv("REDIS_HOST"); redisURL != "" {
		viper.Set("redis.host", redisURL)
	}

	if apiKey := os.Getenv("TRONGRID_API_KEY"); apiKey != "" {
		viper.Set("tron.api_key", apiKey)
	}
	if baseURL := os.Getenv("TRONGRID_BASE_URL"); baseURL != "" {
		viper.Set("tron.api_base_url", baseURL)
	}
	if wallet := os.Getenv("TRON_WALLET_ADDRESS"); wallet != "" {
		viper.Set("tron.wallet_address", wallet)
	}
	if contract := os.Getenv("TRON_USDT_CONTRACT"); contract != "" {
		viper.Set("tron.usdt_contract_address", contract)
	}
}

func validate(config *Config) error {
	if config.Database.URL == "" && (config.Database.Host == "" || config.Database.Name == "") {
		return fmt.Errorf("database configuration is incomplete")
	}

	if config.Tron.WalletAddress == "" {
		return fmt.Errorf("tron wallet address is required")
	}

	if config.Deposit.MaxPendingPerUser <= 0 {
		return fmt.Errorf("deposit.max_pending_per_user must be positive")
	}

	if config.Deposit.AllocatorMaxAttempts <= 0 {
		return fmt.Errorf("deposit.allocator_max_attempts must be positive")
	}

	return nil
}
