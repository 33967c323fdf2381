package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/track-market/internal/connection"
)

var (
	eventsSince uint64
	eventsLimit int

	watchSince    uint64
	watchFeedPath string
	watchFeedURL  string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Page through the event history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		resp, err := client.GetEvents(commandContext(cmd), eventsSince, eventsLimit)
		if err != nil {
			return err
		}
		if globalFlags.JSON {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		for _, e := range resp.Events {
			fmt.Fprintln(cmd.OutOrStdout(), eventLine(e))
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "last_seq=%d\n", resp.LastSeq)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream events from the live feed until interrupted",
	Long: `Stream events over the websocket feed. The follower reconnects with
backoff and resumes after the last event it printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		feedURL := watchFeedURL
		if feedURL == "" {
			var err error
			if feedURL, err = deriveFeedURL(globalFlags.Server, watchFeedPath); err != nil {
				return err
			}
		}
		creds, err := loadCredentials()
		if err != nil {
			return err
		}

		cfg := connection.DefaultFollowerConfig()
		cfg.URL = feedURL
		cfg.Credentials = creds
		cfg.Since = watchSince

		ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		follower := connection.NewFollower(cfg, slog.Default())
		if err := follower.Start(ctx); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for e := range follower.Events() {
			fmt.Fprintln(out, eventLine(e))
		}

		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := follower.Stop(stopCtx); err != nil {
			return err
		}

		stats := follower.Stats()
		fmt.Fprintf(cmd.ErrOrStderr(), "received=%d duplicates=%d connects=%d last_seq=%d\n",
			stats.Received, stats.Duplicates, stats.Connects, stats.LastSeq)
		return nil
	},
}

func init() {
	eventsCmd.Flags().Uint64Var(&eventsSince, "since", 0, "return events after this seq")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 100, "maximum events to return")

	watchCmd.Flags().Uint64Var(&watchSince, "since", 0, "replay events after this seq before streaming")
	watchCmd.Flags().StringVar(&watchFeedPath, "feed-path", "/v1/feed", "feed path on the server")
	watchCmd.Flags().StringVar(&watchFeedURL, "feed-url", "", "full websocket URL (overrides --server and --feed-path)")
}

// deriveFeedURL turns an http(s) base URL into the ws(s) feed URL.
func deriveFeedURL(server, path string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parse --server: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = ""
	return u.String(), nil
}
