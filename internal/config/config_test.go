package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

// chdir moves into dir so no config.yaml from the working tree is picked up
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8545", cfg.RPC.URL)
	assert.Equal(t, 3, cfg.RPC.RetryAttempts)
	assert.Equal(t, time.Second, cfg.RPC.RetryDelay)
	assert.Equal(t, ApprovalMax, cfg.Executor.ApprovalPolicy)
	assert.Equal(t, 15*time.Second, cfg.Quote.Timeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Quote.Debounce)
	assert.Equal(t, uint8(18), cfg.Contracts.Decimals0)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SWAPDESK_RPC_URL", "http://node:8545")
	t.Setenv("SWAPDESK_EXECUTOR_APPROVAL_POLICY", "EXACT")
	t.Setenv("SWAPDESK_QUOTE_DEBOUNCE", "250ms")
	t.Setenv("SWAPDESK_CONTRACTS_DECIMALS1", "6")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://node:8545", cfg.RPC.URL)
	assert.Equal(t, ApprovalExact, cfg.Executor.ApprovalPolicy)
	assert.Equal(t, 250*time.Millisecond, cfg.Quote.Debounce)
	assert.Equal(t, uint8(6), cfg.Contracts.Decimals1)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swapdesk.yaml")
	content := `
contracts:
  pool: "` + testAddr + `"
  token0_symbol: "DAI"
feed:
  from_block: 1200
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, testAddr, cfg.Contracts.Pool)
	assert.Equal(t, "DAI", cfg.Contracts.Token0Symbol)
	assert.Equal(t, uint64(1200), cfg.Feed.FromBlock)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			RPC: RPCConfig{URL: "http://127.0.0.1:8545", RetryAttempts: 1},
			Contracts: ContractsConfig{
				Pool: testAddr, Manager: testAddr, Quoter: testAddr, Token0: testAddr, Token1: testAddr,
			},
			Executor: ExecutorConfig{ApprovalPolicy: ApprovalMax},
			Quote:    QuoteConfig{Debounce: 100 * time.Millisecond},
		}
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Contracts.Quoter = "not-an-address"
	assert.ErrorContains(t, cfg.Validate(), "contracts.quoter")

	cfg = valid()
	cfg.Executor.ApprovalPolicy = "sometimes"
	assert.ErrorContains(t, cfg.Validate(), "approval_policy")

	cfg = valid()
	cfg.Quote.Debounce = 0
	assert.ErrorContains(t, cfg.Validate(), "quote.debounce")

	cfg = valid()
	cfg.RPC.RetryAttempts = 0
	assert.Error(t, cfg.Validate())
}
