package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/track-market/internal/api"
	"github.com/rickgao/track-market/internal/model"
)

var (
	mintSupply    uint64
	mintURI       string
	mintName      string
	mintListPrice string
	mintPayment   string

	batchSupplies []string
	batchURIs     []string
	batchNames    []string
	batchPayment  string

	balanceHolder string
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show server status and ledger sequence",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		resp, err := client.Health(commandContext(cmd))
		if err != nil {
			return err
		}
		if globalFlags.JSON {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  version=%s  seq=%s\n", resp.Status, resp.Version, formatCount(resp.Seq))
		return nil
	},
}

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint a new track",
	Long: `Mint a new track with the caller as creator and initial holder.

The payment must cover supply x unit price. With --list-price the full
supply is listed on the marketplace in the same operation.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCaller(); err != nil {
			return err
		}
		payment, err := model.ParseAmount(mintPayment)
		if err != nil {
			return fmt.Errorf("--payment: %w", err)
		}
		req := api.MintRequest{Supply: mintSupply, URI: mintURI, TrackName: mintName}
		if mintListPrice != "" {
			price, err := model.ParseAmount(mintListPrice)
			if err != nil {
				return fmt.Errorf("--list-price: %w", err)
			}
			req.ListPrice = &price
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		resp, err := client.Mint(commandContext(cmd), req, payment)
		if err != nil {
			return err
		}
		if globalFlags.JSON {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		now := time.Now()
		if err := printTracks(cmd.OutOrStdout(), []model.Track{resp.Track}, now); err != nil {
			return err
		}
		if resp.Listing != nil {
			fmt.Fprintln(cmd.OutOrStdout())
			return printListings(cmd.OutOrStdout(), []model.Listing{*resp.Listing}, now)
		}
		return nil
	},
}

var mintBatchCmd = &cobra.Command{
	Use:   "mint-batch",
	Short: "Mint several tracks in one operation",
	Long: `Mint several tracks atomically. --supplies, --uris and --names are
comma separated and must have equal lengths (--names may be omitted).

Example:
  marketctl mint-batch --supplies 10,20 --uris ipfs://a,ipfs://b --payment 300`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCaller(); err != nil {
			return err
		}
		supplies, err := parseUints(batchSupplies)
		if err != nil {
			return fmt.Errorf("--supplies: %w", err)
		}
		payment, err := model.ParseAmount(batchPayment)
		if err != nil {
			return fmt.Errorf("--payment: %w", err)
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		tracks, err := client.MintBatch(commandContext(cmd), api.BatchMintRequest{
			Supplies:   supplies,
			URIs:       batchURIs,
			TrackNames: batchNames,
		}, payment)
		if err != nil {
			return err
		}
		if globalFlags.JSON {
			return printJSON(cmd.OutOrStdout(), tracks)
		}
		return printTracks(cmd.OutOrStdout(), tracks, time.Now())
	},
}

var trackCmd = &cobra.Command{
	Use:   "track <id>",
	Short: "Show a track",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		track, err := client.GetTrack(commandContext(cmd), id)
		if err != nil {
			return err
		}
		if globalFlags.JSON {
			return printJSON(cmd.OutOrStdout(), track)
		}
		return printTracks(cmd.OutOrStdout(), []model.Track{*track}, time.Now())
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance <track-id>",
	Short: "Show how many copies of a track an address holds",
	Long:  "Show the balance of --holder, or of --caller when --holder is not set.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		raw := balanceHolder
		if raw == "" {
			raw = globalFlags.Caller
		}
		if raw == "" {
			return fmt.Errorf("--holder or --caller is required")
		}
		holder, err := model.ParseAddress(raw)
		if err != nil {
			return fmt.Errorf("holder: %w", err)
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		balance, err := client.GetBalance(commandContext(cmd), id, holder)
		if err != nil {
			return err
		}
		if globalFlags.JSON {
			return printJSON(cmd.OutOrStdout(), api.BalanceResponse{TrackID: id, Holder: holder, Balance: balance})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s holds %s of track %d\n", holder.Hex(), formatCount(balance), id)
		return nil
	},
}

func init() {
	mintCmd.Flags().Uint64Var(&mintSupply, "supply", 0, "number of copies to mint")
	mintCmd.Flags().StringVar(&mintURI, "uri", "", "metadata URI")
	mintCmd.Flags().StringVar(&mintName, "name", "", "track name")
	mintCmd.Flags().StringVar(&mintListPrice, "list-price", "", "list the full supply at this unit price")
	mintCmd.Flags().StringVar(&mintPayment, "payment", "0", "payment attached to the mint")
	_ = mintCmd.MarkFlagRequired("supply")

	mintBatchCmd.Flags().StringSliceVar(&batchSupplies, "supplies", nil, "comma separated supplies")
	mintBatchCmd.Flags().StringSliceVar(&batchURIs, "uris", nil, "comma separated metadata URIs")
	mintBatchCmd.Flags().StringSliceVar(&batchNames, "names", nil, "comma separated track names")
	mintBatchCmd.Flags().StringVar(&batchPayment, "payment", "0", "payment attached to the mint")
	_ = mintBatchCmd.MarkFlagRequired("supplies")

	balanceCmd.Flags().StringVar(&balanceHolder, "holder", "", "holder address")
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func parseUints(values []string) ([]uint64, error) {
	out := make([]uint64, 0, len(values))
	for _, v := range values {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", v)
		}
		out = append(out, n)
	}
	return out, nil
}
