package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/kiwari-pos/tabs/internal/events"
	"github.com/kiwari-pos/tabs/internal/service"
	"github.com/spf13/cobra"
)

var tailCmd = &cobra.Command{
	Use:   "tail [topic]",
	Short: "print tab and ticket events from NATS as they happen",
	Long: `
Subscribes to kitchen.tickets and tabs.events (or the single topic given)
and prints one line per event until interrupted. Requires NATS_URL.
`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.NATSURL == "" {
			return errors.New("NATS_URL is not set")
		}
		sub, err := events.NewNATSSubscriber(cfg.NATSURL)
		if err != nil {
			return errors.Wrap(err, "connect to NATS")
		}
		defer sub.Close()

		topics := []string{events.TopicTickets, events.TopicTabs}
		if len(args) == 1 {
			topics = args
		}

		ctx := cmd.Context()
		errc := make(chan error, len(topics))
		for _, topic := range topics {
			go func(topic string) {
				errc <- sub.Subscribe(ctx, topic, func(ctx context.Context, data []byte) error {
					return printEvent(os.Stdout, topic, data)
				})
			}(topic)
		}
		for range topics {
			if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
		}
		return nil
	},
}

func printEvent(w io.Writer, topic string, data []byte) error {
	var e service.Event
	if err := json.Unmarshal(data, &e); err != nil {
		fmt.Fprintf(w, "%s\t<undecodable: %v>\n", topic, err)
		return nil
	}
	payload, _ := json.Marshal(e.Payload)
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.OccurredAt.Format("15:04:05"), e.Type, e.Room, payload)
	return nil
}
