package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ai-pdfchat/internal/service"
	"ai-pdfchat/pkg/events"
	pktNats "ai-pdfchat/pkg/nats"
)

func eventsCMD(envFile *string) *cobra.Command {
	var durable string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail the domain events published to NATS",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			if cfg.App.NatsURL == "" {
				return errors.New("NATS_URL is not set")
			}

			log := newLogger(cfg)
			defer log.Sync()

			sub, err := pktNats.NewSubscriber(cfg.App.NatsURL, log)
			if err != nil {
				return err
			}
			defer sub.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			subject := pktNats.Subject(">")
			consumer := service.NewConsumerService(sub, subject, durable, printEvent, log)
			if err := consumer.Consume(ctx); err != nil {
				return err
			}

			color.Green("Listening on %s (durable %q), Ctrl+C to stop", subject, durable)
			<-ctx.Done()

			for eventType, n := range consumer.Counts() {
				color.Yellow("%s: %d", eventType, n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&durable, "durable", "pdfchat-events-cli", "JetStream durable consumer name")
	return cmd
}

func printEvent(event events.Event) error {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return err
	}
	fmt.Printf("%s %s %s\n", event.Timestamp().Format("15:04:05"), color.CyanString(event.EventType()), payload)
	return nil
}
