package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/devlongs/swapdesk/internal/decoder"
	"github.com/devlongs/swapdesk/internal/events"
	"github.com/devlongs/swapdesk/internal/output"
	"github.com/devlongs/swapdesk/internal/session"
	"github.com/devlongs/swapdesk/internal/wallet"
	"github.com/devlongs/swapdesk/pkg/types"
)

var follow bool

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List the pool's Mint and Swap events",
	Long: `List the pool's Mint and Swap events, newest first.

With --follow the feed stays open for the connected session and prints
new events as they arrive. Switching chain or account resets the feed.`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new events")
}

func runEvents(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	pool := a.contracts.Pool
	opts := events.FeedOptions{
		FromBlock: cfg.Feed.FromBlock,
		Backoff:   cfg.Feed.ResubscribeBackoff,
	}

	if !follow {
		store := events.NewStore(nil)
		feed := events.NewFeed(a.client, decoder.NewDecoder(pool.Address), store, store.Epoch(), opts)
		defer feed.Close()

		if _, err := withSpinner("Loading events...", func() ([]types.ChainEvent, error) {
			return feed.LoadHistorical(ctx)
		}); err != nil {
			return err
		}

		list := store.Events(events.DisplayKinds)
		if len(list) == 0 {
			fmt.Println("No events yet.")
			return nil
		}
		a.printer.Events(list)
		return nil
	}

	status, err := a.model.Connect(ctx, a.wallet)
	if err != nil {
		return err
	}
	a.printer.Status(status)

	store := events.NewStore(nil)
	manager := session.NewManager(a.model, store, func(s wallet.Status, epoch uint64) session.Feed {
		log.Debug().
			Str("account", s.Account.Hex()).
			Uint64("epoch", epoch).
			Msg("Starting event feed")
		view := newLedgerView(store, epoch, a.printer)
		feedOpts := opts
		feedOpts.OnEvent = view.Event
		view.feed = events.NewFeed(a.client, decoder.NewDecoder(pool.Address), store, epoch, feedOpts)
		return view
	})
	manager.Run(ctx)
	defer manager.Close()

	unsubscribe := a.model.Subscribe(func(prev, next wallet.Status) {
		a.printer.Status(next)
	})
	defer unsubscribe()

	go a.model.WatchChain(ctx, a.client, cfg.Wallet.ChainPollInterval)

	color.Cyan("Following pool events, press Ctrl+C to stop\n")
	<-ctx.Done()

	fmt.Println()
	a.printer.LogStats()
	return nil
}

// ledgerView prints one session's ledger: the merged backfill once it is
// loaded, then every live event. Each event is printed at most once.
type ledgerView struct {
	feed    session.Feed
	store   *events.Store
	epoch   uint64
	printer *output.Printer

	mu     sync.Mutex
	loaded bool
	shown  map[types.EventKey]bool
}

func newLedgerView(store *events.Store, epoch uint64, printer *output.Printer) *ledgerView {
	return &ledgerView{
		store:   store,
		epoch:   epoch,
		printer: printer,
		shown:   make(map[types.EventKey]bool),
	}
}

// Start starts the feed and prints the ledger it loaded
func (v *ledgerView) Start(ctx context.Context) error {
	if err := v.feed.Start(ctx); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.loaded = true
	if v.store.Epoch() != v.epoch {
		return nil
	}
	for _, ev := range v.store.Events(events.DisplayKinds) {
		v.show(ev)
	}
	return nil
}

func (v *ledgerView) Close() {
	v.feed.Close()
}

// Event prints a live event once the backfill has been printed. Earlier
// events are part of the printed ledger.
func (v *ledgerView) Event(ev types.ChainEvent) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.loaded {
		v.show(ev)
	}
}

func (v *ledgerView) show(ev types.ChainEvent) {
	if v.shown[ev.Key()] {
		return
	}
	v.shown[ev.Key()] = true
	v.printer.Event(ev)
}
