package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ai-pdfchat/internal/bootstrap"
	"ai-pdfchat/internal/server"
	"ai-pdfchat/internal/tracer"
)

func serveCMD(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web UI and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}

			log := newLogger(cfg)
			defer log.Sync()

			shutdownTracer := tracer.InitTracer(cfg.Telemetry, log)
			defer shutdownTracer(context.Background())

			container, err := bootstrap.NewContainer(cfg, log)
			if err != nil {
				return err
			}
			defer container.Close()

			srv := server.New(cfg, container)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Run()
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-quit:
				log.Info("Main", "Shutting down", map[string]interface{}{"signal": sig.String()})
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		},
	}
}
