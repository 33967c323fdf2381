package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/track-market/internal/api"
	"github.com/rickgao/track-market/internal/auth"
	"github.com/rickgao/track-market/internal/model"
	"github.com/rickgao/track-market/internal/version"
)

// GlobalFlags holds the persistent flags shared by every command.
type GlobalFlags struct {
	Server  string
	Caller  string
	KeyID   string
	KeyPath string
	Timeout time.Duration
	Retries int
	JSON    bool
	Verbose bool
}

var globalFlags GlobalFlags

var rootCmd = &cobra.Command{
	Use:   "marketctl",
	Short: "Track marketplace command line client",
	Long: `marketctl talks to a marketd instance over its HTTP API.

Mutating commands act as the address given by --caller. When the server
requires signed requests, pass --key-id and --key-path.

Examples:
  marketctl mint --supply 100 --uri ipfs://track --price 50
  marketctl listings
  marketctl buy 1 --track 1 --quantity 2 --payment 100
  marketctl watch --since 0`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if globalFlags.Verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&globalFlags.Server, "server", envOr("MARKETCTL_SERVER", "http://localhost:8080"), "marketd base URL")
	flags.StringVar(&globalFlags.Caller, "caller", os.Getenv("MARKETCTL_CALLER"), "caller address sent with every request")
	flags.StringVar(&globalFlags.KeyID, "key-id", os.Getenv("MARKETCTL_KEY_ID"), "API key id for signed requests")
	flags.StringVar(&globalFlags.KeyPath, "key-path", os.Getenv("MARKETCTL_KEY_PATH"), "PEM private key for signed requests")
	flags.DurationVar(&globalFlags.Timeout, "timeout", 30*time.Second, "per-request timeout")
	flags.IntVar(&globalFlags.Retries, "retries", 3, "retries for read requests")
	flags.BoolVar(&globalFlags.JSON, "json", false, "print raw JSON instead of tables")
	flags.BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "log requests to stderr")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(mintCmd)
	rootCmd.AddCommand(mintBatchCmd)
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(listingsCmd)
	rootCmd.AddCommand(buyCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(watchCmd)
}

// newClient builds an API client from the global flags.
func newClient() (*api.Client, error) {
	opts := []api.ClientOption{
		api.WithTimeout(globalFlags.Timeout),
		api.WithRetries(globalFlags.Retries, time.Second),
		api.WithLogger(slog.Default()),
	}

	if globalFlags.Caller != "" {
		caller, err := model.ParseAddress(globalFlags.Caller)
		if err != nil {
			return nil, fmt.Errorf("--caller: %w", err)
		}
		opts = append(opts, api.WithCaller(caller))
	}

	creds, err := loadCredentials()
	if err != nil {
		return nil, err
	}
	if creds != nil {
		opts = append(opts, api.WithCredentials(creds))
	}

	return api.NewClient(globalFlags.Server, opts...), nil
}

// loadCredentials returns nil when no key is configured.
func loadCredentials() (*auth.Credentials, error) {
	if globalFlags.KeyID == "" && globalFlags.KeyPath == "" {
		return nil, nil
	}
	if globalFlags.KeyID == "" || globalFlags.KeyPath == "" {
		return nil, errors.New("--key-id and --key-path must be set together")
	}
	creds, err := auth.LoadCredentials(globalFlags.KeyID, globalFlags.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	return creds, nil
}

// requireCaller fails early for commands that act on behalf of an address.
func requireCaller() error {
	if globalFlags.Caller == "" {
		return errors.New("--caller is required for this command")
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// exitCode maps API failures onto distinct exit statuses for scripting.
func exitCode(err error) int {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		return 1
	}
	switch {
	case apiErr.StatusCode == 402:
		return 3
	case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
		return 4
	case apiErr.StatusCode == 404:
		return 5
	case apiErr.StatusCode == 409:
		return 6
	case apiErr.StatusCode >= 500:
		return 7
	default:
		return 2
	}
}
