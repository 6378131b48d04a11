package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rollcall/internal/events"
	"github.com/alfredjeanlab/rollcall/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Tail registration and delivery events from NATS",
	GroupID: "registrations",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats-url")
		if natsURL == "" {
			return fmt.Errorf("no NATS URL (set --nats-url or ROLLCALL_NATS_URL)")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		sub, err := events.NewNATSSubscriber(natsURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Printf("nats: disconnected: %v", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				log.Printf("nats: reconnected")
			}),
		)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer sub.Close()

		topic, _ := cmd.Flags().GetString("topic")
		msgs, err := sub.Subscribe(ctx, topic)
		if err != nil {
			return err
		}

		for m := range msgs {
			if jsonOutput {
				fmt.Printf("{\"topic\":%q,\"event\":%s}\n", m.Topic, m.Data)
				continue
			}
			fmt.Println(formatEvent(time.Now(), m.Topic, m.Data))
		}
		return nil
	},
}

// formatEvent renders one event as a single human-readable line.
func formatEvent(at time.Time, topic string, data []byte) string {
	ts := ui.RenderMuted(at.Format("15:04:05"))

	switch topic {
	case events.TopicRegistrationRecorded:
		var e events.RegistrationRecorded
		if err := json.Unmarshal(data, &e); err == nil && e.Row != nil {
			return fmt.Sprintf("%s %s roll %s  %s  %s  %s", ts, ui.RenderAccent("recorded "),
				e.Row.Roll, e.Row.Name, e.Row.Phone, ui.RenderMuted(e.Row.PaymentID))
		}
	case events.TopicNotificationSent:
		var e events.NotificationSent
		if err := json.Unmarshal(data, &e); err == nil {
			return fmt.Sprintf("%s %s roll %s  %s  %d messages", ts, ui.RenderOK("sent     "),
				e.Roll, e.To, e.Messages)
		}
	case events.TopicNotificationFailed:
		var e events.NotificationFailed
		if err := json.Unmarshal(data, &e); err == nil {
			return fmt.Sprintf("%s %s roll %s  %s  %s", ts, ui.RenderFail("failed   "),
				e.Roll, e.To, e.Error)
		}
	case events.TopicEventIgnored:
		var e events.EventIgnored
		if err := json.Unmarshal(data, &e); err == nil {
			return fmt.Sprintf("%s %s %s  %s  %s", ts, ui.RenderMuted("ignored  "),
				e.Event, ui.RenderMuted(e.PaymentID), e.Reason)
		}
	}
	return fmt.Sprintf("%s %s %s", ts, topic, data)
}

func init() {
	watchCmd.Flags().String("nats-url", os.Getenv("ROLLCALL_NATS_URL"), "NATS server URL")
	watchCmd.Flags().String("topic", events.TopicAll, "NATS subject to follow (wildcards allowed)")
}
