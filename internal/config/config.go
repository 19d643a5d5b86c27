package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Ledger backends
const (
	BackendEVM    = "evm"
	BackendCosmos = "cosmos"
)

// Config holds all configuration for the service
type Config struct {
	Env         string
	Server      ServerConfig
	Database    DatabaseConfig
	Ledger      LedgerConfig
	EVM         EVMConfig
	Cosmos      CosmosConfig
	Coordinator CoordinatorConfig
	Token       TokenConfig
	Explorer    ExplorerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration for the audit mirror.
// An empty Host disables the mirror.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Enabled reports whether the audit mirror is configured
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// LedgerConfig selects the ledger backend
type LedgerConfig struct {
	Backend string // "evm" or "cosmos"
}

// EVMConfig holds configuration for the ERC20 token backend
type EVMConfig struct {
	RPCEndpoint         string
	TokenAddress        string
	PrivateKey          string // signer for write actions
	ReceiptPollInterval time.Duration
}

// CosmosConfig holds configuration for the CW20 token backend
type CosmosConfig struct {
	RPCEndpoint   string
	RESTEndpoint  string // REST/LCD API endpoint for queries
	TokenContract string // CW20 contract address
	Mnemonic      string
	Bech32Prefix  string
	FeeDenom      string
	GasLimit      uint64
	GasPrice      float64
	PollInterval  time.Duration
}

// CoordinatorConfig holds action coordinator settings
type CoordinatorConfig struct {
	StatusClearDelay time.Duration
	DefaultDecimals  uint8
}

// TokenConfig holds read model settings
type TokenConfig struct {
	RefreshInterval time.Duration
}

// ExplorerConfig holds the block explorer link base
type ExplorerConfig struct {
	TxURL string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Env: getEnv("ENV", "development"),
		Server: ServerConfig{
			Port:            getEnvInt("SERVER_PORT", 8080),
			AllowedOrigins:  splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "*"), ","),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "tokendesk"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Ledger: LedgerConfig{
			Backend: strings.ToLower(getEnv("LEDGER_BACKEND", BackendEVM)),
		},
		EVM: EVMConfig{
			RPCEndpoint:         getEnv("EVM_RPC_ENDPOINT", ""),
			TokenAddress:        getEnv("EVM_TOKEN_ADDRESS", "0x29c028b68b0d558618226454c600c4cfe9360ef2"),
			PrivateKey:          getEnv("EVM_PRIVATE_KEY", ""),
			ReceiptPollInterval: getEnvDuration("EVM_RECEIPT_POLL_INTERVAL", 2*time.Second),
		},
		Cosmos: CosmosConfig{
			RPCEndpoint:   getEnv("COSMOS_RPC_ENDPOINT", ""),
			RESTEndpoint:  getEnv("COSMOS_REST_ENDPOINT", ""),
			TokenContract: getEnv("COSMOS_TOKEN_CONTRACT", ""),
			Mnemonic:      getEnv("COSMOS_MNEMONIC", ""),
			Bech32Prefix:  getEnv("COSMOS_BECH32_PREFIX", "neutron"),
			FeeDenom:      getEnv("COSMOS_FEE_DENOM", "untrn"),
			GasLimit:      uint64(getEnvInt("COSMOS_GAS_LIMIT", 500000)),
			GasPrice:      getEnvFloat("COSMOS_GAS_PRICE", 0.025),
			PollInterval:  getEnvDuration("COSMOS_TX_POLL_INTERVAL", 2*time.Second),
		},
		Coordinator: CoordinatorConfig{
			StatusClearDelay: getEnvDuration("STATUS_CLEAR_DELAY", 5*time.Second),
			DefaultDecimals:  uint8(getEnvInt("DEFAULT_DECIMALS", 18)),
		},
		Token: TokenConfig{
			RefreshInterval: getEnvDuration("TOKEN_REFRESH_INTERVAL", 30*time.Second),
		},
		Explorer: ExplorerConfig{
			TxURL: getEnv("EXPLORER_TX_URL", "https://sepolia.arbiscan.io/tx/"),
		},
	}

	// REST endpoint falls back to the standard port layout
	if cfg.Cosmos.RESTEndpoint == "" && cfg.Cosmos.RPCEndpoint != "" {
		cfg.Cosmos.RESTEndpoint = strings.Replace(cfg.Cosmos.RPCEndpoint, ":26657", ":1317", 1)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Ledger.Backend {
	case BackendEVM:
		if c.EVM.RPCEndpoint == "" {
			return fmt.Errorf("EVM_RPC_ENDPOINT is required for the evm backend")
		}
		if c.EVM.TokenAddress == "" {
			return fmt.Errorf("EVM_TOKEN_ADDRESS is required for the evm backend")
		}
		if c.EVM.PrivateKey == "" {
			return fmt.Errorf("EVM_PRIVATE_KEY is required for the evm backend")
		}
		if c.EVM.ReceiptPollInterval <= 0 {
			return fmt.Errorf("invalid receipt poll interval: %s", c.EVM.ReceiptPollInterval)
		}
	case BackendCosmos:
		if c.Cosmos.RPCEndpoint == "" {
			return fmt.Errorf("COSMOS_RPC_ENDPOINT is required for the cosmos backend")
		}
		if c.Cosmos.TokenContract == "" {
			return fmt.Errorf("COSMOS_TOKEN_CONTRACT is required for the cosmos backend")
		}
		if c.Cosmos.Mnemonic == "" {
			return fmt.Errorf("COSMOS_MNEMONIC is required for the cosmos backend")
		}
		if c.Cosmos.Bech32Prefix == "" {
			return fmt.Errorf("bech32 prefix is required for the cosmos backend")
		}
	default:
		return fmt.Errorf("unknown ledger backend: %q", c.Ledger.Backend)
	}

	if c.Coordinator.StatusClearDelay <= 0 {
		return fmt.Errorf("invalid status clear delay: %s", c.Coordinator.StatusClearDelay)
	}

	if c.Token.RefreshInterval <= 0 {
		return fmt.Errorf("invalid token refresh interval: %s", c.Token.RefreshInterval)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("5s") or plain milliseconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

// splitAndTrim splits a separated string and drops empty parts
func splitAndTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
