package main

import (
	"errors"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ai-pdfchat/internal/config"
	"ai-pdfchat/internal/pkg/logger"
)

func main() {
	var envFile string

	root := &cobra.Command{
		Use:           "pdfchat",
		Short:         "Chat with your PDF documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&envFile, "env-file", "e", config.DefaultEnvFile, "KEY=VALUE configuration file")

	serve := serveCMD(&envFile)
	root.RunE = serve.RunE
	root.AddCommand(serve, tuiCMD(&envFile), eventsCMD(&envFile))

	if err := root.Execute(); err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			color.Red("Fatal: %s", cfgErr.Error())
		} else {
			color.Red("Error: %v", err)
		}
		os.Exit(1)
	}
}

func loadConfig(envFile string) (*config.Config, error) {
	return config.Load(envFile)
}

func newLogger(cfg *config.Config) *logger.ZapLogger {
	return logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
}
