package main

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ai-pdfchat/internal/bootstrap"
	"ai-pdfchat/internal/pkg/logger"
	"ai-pdfchat/internal/tui"
)

const tuiSessionID = "terminal"

func tuiCMD(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tui [file.pdf ...]",
		Short: "Chat with local PDF files in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}

			log := logger.NewFileOnlyLogger(cfg.App.LogFilePath)
			defer log.Sync()

			container, err := bootstrap.NewContainer(cfg, log)
			if err != nil {
				return err
			}
			defer container.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			updates, err := container.Progress.Subscribe(ctx, tuiSessionID)
			if err != nil {
				return err
			}

			model := tui.New(container.ChatService, tuiSessionID, args, updates)
			_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
			return err
		},
	}
}
