// Package cli implements dzcli, the thin command-line front-end for the
// local provisioning daemon. Its commands (config, provision) reach the
// daemon over its unix socket through unixDaemonClient (daemonclient.go),
// which uses pkg/facade's request types and framing. It never encodes
// borsh and has no ledger commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

func Run() ExitCode {
	rootCmd := &cobra.Command{
		Use:   "dzcli",
		Short: "Command-line client for the DoubleZero control plane.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var verbose bool
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "set debug logging level")

	var daemonSocket string
	rootCmd.PersistentFlags().StringVar(&daemonSocket, "daemon-sock", "", "path to the provisioning daemon's unix socket (defaults to $DOUBLEZERO_SOCK)")

	rootCmd.AddCommand(
		NewConfigCmd().Command(),
		NewProvisionCmd().Command(),
	)

	if err := rootCmd.Execute(); err != nil {
		return exitCodeError
	}
	return exitCodeSuccess
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

func resolveSocket(cmd *cobra.Command) (string, error) {
	sock, err := cmd.Root().PersistentFlags().GetString("daemon-sock")
	if err != nil {
		return "", fmt.Errorf("failed to get daemon-sock flag: %w", err)
	}
	if sock != "" {
		return sock, nil
	}
	return envOrDefault("DOUBLEZERO_SOCK", "/var/run/doublezerod/doublezerod.sock"), nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
