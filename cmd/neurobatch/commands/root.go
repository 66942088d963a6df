// Package commands implements CLI command handlers for neurobatch.
package commands

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/synaptiq-labs/neurobatch/pkg/analysis"
	"github.com/synaptiq-labs/neurobatch/pkg/loaders"
)

var logLevel string

// RegisterGlobalFlags attaches the flags shared by every command.
func RegisterGlobalFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
}

// newLogger builds the command logger from the --log-level flag.
func newLogger() *slog.Logger {
	var level slog.Level

	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// defaultRegistries builds the loader and analysis registries with the
// built-in implementations installed.
func defaultRegistries() (*loaders.Registry, *analysis.Registry, error) {
	fnReg := analysis.NewRegistry()

	err := analysis.RegisterBuiltins(fnReg)
	if err != nil {
		return nil, nil, err
	}

	return loaders.NewRegistry(), fnReg, nil
}
