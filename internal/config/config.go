package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Approval policies for the allowance-gated executor
const (
	ApprovalMax   = "max"
	ApprovalExact = "exact"
)

// Config holds all configuration for swapdesk
type Config struct {
	RPC       RPCConfig
	Wallet    WalletConfig
	Contracts ContractsConfig
	Executor  ExecutorConfig
	Quote     QuoteConfig
	Feed      FeedConfig
	Notify    NotifyConfig
	Logging   LoggingConfig
}

// RPCConfig holds Ethereum RPC configuration
type RPCConfig struct {
	URL            string
	WSUrl          string
	RetryAttempts  int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
}

// WalletConfig holds the signing key source
type WalletConfig struct {
	PrivateKey       string
	KeystorePath     string
	KeystorePassword string
	// ChainPollInterval controls how often the node's chain id is re-checked
	ChainPollInterval time.Duration
}

// ContractsConfig holds the deployed contract addresses and token metadata
type ContractsConfig struct {
	Pool         string
	Manager      string
	Quoter       string
	Token0       string
	Token1       string
	Token0Symbol string
	Token1Symbol string
	Decimals0    uint8
	Decimals1    uint8
}

// ExecutorConfig holds allowance-gated executor settings
type ExecutorConfig struct {
	ApprovalPolicy string        // "max" or "exact"
	ConfirmTimeout time.Duration // zero waits forever
}

// QuoteConfig holds quote engine settings
type QuoteConfig struct {
	Debounce time.Duration
	Timeout  time.Duration // zero waits forever
}

// FeedConfig holds event feed settings
type FeedConfig struct {
	FromBlock          uint64
	ResubscribeBackoff time.Duration
}

// NotifyConfig holds notification settings
type NotifyConfig struct {
	DiscordWebhook string
	Events         []string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "console"
}

// Load reads configuration from environment and config file. An explicit
// path overrides the default search locations.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("rpc.url", "http://127.0.0.1:8545")
	v.SetDefault("rpc.ws_url", "ws://127.0.0.1:8545")
	v.SetDefault("rpc.retry_attempts", 3)
	v.SetDefault("rpc.retry_delay", "1s")
	v.SetDefault("rpc.request_timeout", "30s")

	v.SetDefault("wallet.private_key", "")
	v.SetDefault("wallet.keystore_path", "")
	v.SetDefault("wallet.keystore_password", "")
	v.SetDefault("wallet.chain_poll_interval", "10s")

	v.SetDefault("contracts.pool", "")
	v.SetDefault("contracts.manager", "")
	v.SetDefault("contracts.quoter", "")
	v.SetDefault("contracts.token0", "")
	v.SetDefault("contracts.token1", "")
	v.SetDefault("contracts.token0_symbol", "WETH")
	v.SetDefault("contracts.token1_symbol", "USDC")
	v.SetDefault("contracts.decimals0", 18)
	v.SetDefault("contracts.decimals1", 18)

	v.SetDefault("executor.approval_policy", ApprovalMax)
	v.SetDefault("executor.confirm_timeout", "5m")

	v.SetDefault("quote.debounce", "100ms")
	v.SetDefault("quote.timeout", "15s")

	v.SetDefault("feed.from_block", 0)
	v.SetDefault("feed.resubscribe_backoff", "30s")

	v.SetDefault("notify.discord_webhook", "")
	v.SetDefault("notify.events", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	// Environment variable support
	v.SetEnvPrefix("SWAPDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file support
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.swapdesk")

		// Read config file (optional)
		_ = v.ReadInConfig()
	}

	cfg := &Config{
		RPC: RPCConfig{
			URL:            v.GetString("rpc.url"),
			WSUrl:          v.GetString("rpc.ws_url"),
			RetryAttempts:  v.GetInt("rpc.retry_attempts"),
			RetryDelay:     v.GetDuration("rpc.retry_delay"),
			RequestTimeout: v.GetDuration("rpc.request_timeout"),
		},
		Wallet: WalletConfig{
			PrivateKey:        v.GetString("wallet.private_key"),
			KeystorePath:      v.GetString("wallet.keystore_path"),
			KeystorePassword:  v.GetString("wallet.keystore_password"),
			ChainPollInterval: v.GetDuration("wallet.chain_poll_interval"),
		},
		Contracts: ContractsConfig{
			Pool:         v.GetString("contracts.pool"),
			Manager:      v.GetString("contracts.manager"),
			Quoter:       v.GetString("contracts.quoter"),
			Token0:       v.GetString("contracts.token0"),
			Token1:       v.GetString("contracts.token1"),
			Token0Symbol: v.GetString("contracts.token0_symbol"),
			Token1Symbol: v.GetString("contracts.token1_symbol"),
			Decimals0:    uint8(v.GetUint("contracts.decimals0")),
			Decimals1:    uint8(v.GetUint("contracts.decimals1")),
		},
		Executor: ExecutorConfig{
			ApprovalPolicy: strings.ToLower(v.GetString("executor.approval_policy")),
			ConfirmTimeout: v.GetDuration("executor.confirm_timeout"),
		},
		Quote: QuoteConfig{
			Debounce: v.GetDuration("quote.debounce"),
			Timeout:  v.GetDuration("quote.timeout"),
		},
		Feed: FeedConfig{
			FromBlock:          v.GetUint64("feed.from_block"),
			ResubscribeBackoff: v.GetDuration("feed.resubscribe_backoff"),
		},
		Notify: NotifyConfig{
			DiscordWebhook: v.GetString("notify.discord_webhook"),
			Events:         v.GetStringSlice("notify.events"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}

	return cfg, nil
}

// Validate checks the settings every command depends on
func (c *Config) Validate() error {
	if c.RPC.URL == "" {
		return fmt.Errorf("rpc.url is required")
	}
	if c.RPC.RetryAttempts < 1 {
		return fmt.Errorf("rpc.retry_attempts must be at least 1")
	}

	addresses := map[string]string{
		"contracts.pool":    c.Contracts.Pool,
		"contracts.manager": c.Contracts.Manager,
		"contracts.quoter":  c.Contracts.Quoter,
		"contracts.token0":  c.Contracts.Token0,
		"contracts.token1":  c.Contracts.Token1,
	}
	for key, addr := range addresses {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("%s: invalid address %q", key, addr)
		}
	}

	if c.Quote.Debounce <= 0 {
		return fmt.Errorf("quote.debounce must be positive, got %s", c.Quote.Debounce)
	}

	switch c.Executor.ApprovalPolicy {
	case ApprovalMax, ApprovalExact:
	default:
		return fmt.Errorf("executor.approval_policy must be %q or %q, got %q", ApprovalMax, ApprovalExact, c.Executor.ApprovalPolicy)
	}

	return nil
}
