package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/LeventeLantos/zenvia-go/internal/config"
)

var (
	version = "0.1.0"

	outputFormat string

	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "zenvia",
		Short:        "Zenvia messaging client and webhook receiver",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			loaded, err := config.LoadAll()
			if err != nil {
				return err
			}
			cfg = loaded
			logger = newLogger(cmd.ErrOrStderr(), cfg.Log)
			slog.SetDefault(logger)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "output format: json or yaml")

	root.AddCommand(serveCmd())
	root.AddCommand(sendCmd())
	root.AddCommand(subscriptionsCmd())
	return root
}

func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lc.Level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func checkOutputFormat() error {
	switch outputFormat {
	case "json", "yaml":
		return nil
	default:
		return fmt.Errorf("unsupported output format %q: want json or yaml", outputFormat)
	}
}
