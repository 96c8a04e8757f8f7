// Package notify delivers action outcomes to the operator. Notifications go to
// every registered sender and can be filtered by event type.
package notify

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"

	"github.com/devlongs/swapdesk/internal/config"
)

// Sender is one notification channel
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans notifications out to its senders
type Notifier struct {
	senders []Sender
	events  map[string]bool
}

// NewNotifier creates a notifier. Only the listed event types are forwarded;
// an empty list forwards everything.
func NewNotifier(senders []Sender, events []string) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{senders: senders, events: allowed}
}

// FromConfig builds the notifier described by cfg, writing console
// notifications to out
func FromConfig(cfg config.NotifyConfig, out io.Writer) *Notifier {
	senders := []Sender{NewConsoleSender(out)}
	if cfg.DiscordWebhook != "" {
		senders = append(senders, NewDiscordSender(cfg.DiscordWebhook))
	}
	return NewNotifier(senders, cfg.Events)
}

// Notify sends to every sender if event passes the filter. A failing sender
// does not stop delivery to the others.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		log.Debug().Str("event", event).Msg("Notification filtered out")
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			log.Error().Err(err).Str("sender", s.Name()).Msg("Notification sender failed")
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		log.Debug().Str("sender", s.Name()).Str("title", title).Msg("Notification sent")
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// ConsoleSender prints notifications to a terminal
type ConsoleSender struct {
	out io.Writer
}

// NewConsoleSender creates a console sender writing to out
func NewConsoleSender(out io.Writer) *ConsoleSender {
	return &ConsoleSender{out: out}
}

// Send prints the title in green, or red when it reports a failure
func (c *ConsoleSender) Send(_ context.Context, title, message string) error {
	paint := color.New(color.FgGreen, color.Bold)
	if strings.HasSuffix(title, "failed") {
		paint = color.New(color.FgRed, color.Bold)
	}
	_, err := fmt.Fprintf(c.out, "%s %s\n", paint.Sprint(title), message)
	return err
}

// Name returns the sender identifier
func (c *ConsoleSender) Name() string {
	return "console"
}
