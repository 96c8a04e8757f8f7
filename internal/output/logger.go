package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/devlongs/swapdesk/internal/config"
	"github.com/devlongs/swapdesk/internal/wallet"
	"github.com/devlongs/swapdesk/pkg/types"
	"github.com/devlongs/swapdesk/pkg/units"
)

// Setup configures the global zerolog logger
func Setup(cfg config.LoggingConfig) {
	switch cfg.Format {
	case "json":
		// Default JSON output
	case "console":
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		})
	}

	switch cfg.Level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	}
}

// Stats counts what a run has shown
type Stats struct {
	Mints     uint64
	Swaps     uint64
	StartTime time.Time
}

// Printer renders pool state for the terminal
type Printer struct {
	out  io.Writer
	pool types.Pool

	mu    sync.Mutex
	stats Stats
}

// NewPrinter creates a printer for pool writing to out
func NewPrinter(out io.Writer, pool types.Pool) *Printer {
	return &Printer{
		out:   out,
		pool:  pool,
		stats: Stats{StartTime: time.Now()},
	}
}

// Event prints a single event line. Kinds other than Mint and Swap print nothing.
func (p *Printer) Event(ev types.ChainEvent) {
	line := RenderEvent(ev, p.pool)
	if line == "" {
		return
	}

	p.mu.Lock()
	switch ev.Kind {
	case types.EventMint:
		p.stats.Mints++
	case types.EventSwap:
		p.stats.Swaps++
	}
	p.mu.Unlock()

	fmt.Fprintln(p.out, line)
}

// Events prints a ledger, most recent first
func (p *Printer) Events(events []types.ChainEvent) {
	for _, ev := range events {
		p.Event(ev)
	}
}

// Status prints the wallet status line
func (p *Printer) Status(s wallet.Status) {
	fmt.Fprintln(p.out, RenderStatus(s))
}

// LogStats logs the counters of the run
func (p *Printer) LogStats() {
	p.mu.Lock()
	stats := p.stats
	p.mu.Unlock()

	log.Info().
		Uint64("mints", stats.Mints).
		Uint64("swaps", stats.Swaps).
		Dur("uptime", time.Since(stats.StartTime)).
		Msg("Event feed stats")
}

// GetStats returns current statistics
func (p *Printer) GetStats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// RenderEvent formats a Mint or Swap event. Other kinds render as "".
func RenderEvent(ev types.ChainEvent, pool types.Pool) string {
	bold := color.New(color.Bold).SprintFunc()

	switch {
	case ev.Kind == types.EventMint && ev.Mint != nil:
		return fmt.Sprintf("%s [range: [%d - %d], amounts: [%s, %s]]",
			bold("Mint"),
			ev.Mint.LowerTick, ev.Mint.UpperTick,
			units.FormatUnits(ev.Mint.Amount0, pool.Token0.Decimals),
			units.FormatUnits(ev.Mint.Amount1, pool.Token1.Decimals))
	case ev.Kind == types.EventSwap && ev.Swap != nil:
		return fmt.Sprintf("%s [amount0: %s, amount1: %s]",
			bold("Swap"),
			units.FormatUnits(ev.Swap.Amount0, pool.Token0.Decimals),
			units.FormatUnits(ev.Swap.Amount1, pool.Token1.Decimals))
	default:
		return ""
	}
}

// RenderStatus formats a wallet status for humans
func RenderStatus(s wallet.Status) string {
	switch s.State {
	case wallet.StateConnected:
		return fmt.Sprintf("Connected to %s as %s", ChainName(s.ChainID), ShortAddress(s.Account.Hex()))
	case wallet.StateNotConnected:
		return color.YellowString("Wallet is not connected.")
	default:
		return color.RedString("No wallet key is configured.")
	}
}

// ChainName names the chains the client knows about
func ChainName(chainID uint64) string {
	switch chainID {
	case 1:
		return "Mainnet"
	case 31337:
		return "Anvil"
	default:
		return "unknown chain"
	}
}

// ShortAddress abbreviates a hex address as 0xf39F...2266
func ShortAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
