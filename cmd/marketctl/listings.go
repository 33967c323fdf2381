package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/track-market/internal/api"
	"github.com/rickgao/track-market/internal/model"
)

var (
	listTrackID   uint64
	listQuantity  uint64
	listUnitPrice string

	buyTrackID  uint64
	buyQuantity uint64
	buyPayment  string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List copies of a track for sale",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCaller(); err != nil {
			return err
		}
		price, err := model.ParseAmount(listUnitPrice)
		if err != nil {
			return fmt.Errorf("--price: %w", err)
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		listing, err := client.CreateListing(commandContext(cmd), api.CreateListingRequest{
			TrackID:   listTrackID,
			Quantity:  listQuantity,
			UnitPrice: price,
		})
		if err != nil {
			return err
		}
		if globalFlags.JSON {
			return printJSON(cmd.OutOrStdout(), listing)
		}
		return printListings(cmd.OutOrStdout(), []model.Listing{*listing}, time.Now())
	},
}

var listingsCmd = &cobra.Command{
	Use:   "listings [id]",
	Short: "Show active listings, or one listing by id",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx := commandContext(cmd)

		var listings []model.Listing
		if len(args) == 1 {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			listing, err := client.GetListing(ctx, id)
			if err != nil {
				return err
			}
			listings = []model.Listing{*listing}
		} else {
			listings, err = client.GetListings(ctx)
			if err != nil {
				return err
			}
		}

		if globalFlags.JSON {
			return printJSON(cmd.OutOrStdout(), listings)
		}
		if len(listings) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no active listings")
			return nil
		}
		return printListings(cmd.OutOrStdout(), listings, time.Now())
	},
}

var buyCmd = &cobra.Command{
	Use:   "buy <listing-id>",
	Short: "Buy copies from a listing",
	Long: `Buy copies from a listing. Without --payment the exact price
(quantity x unit price) is looked up and paid.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCaller(); err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx := commandContext(cmd)

		trackID := buyTrackID
		var payment model.Amount
		if buyPayment != "" {
			if payment, err = model.ParseAmount(buyPayment); err != nil {
				return fmt.Errorf("--payment: %w", err)
			}
		}
		if buyPayment == "" || trackID == 0 {
			listing, err := client.GetListing(ctx, id)
			if err != nil {
				return err
			}
			if trackID == 0 {
				trackID = listing.TrackID
			}
			if buyPayment == "" {
				if payment, err = model.MulAmount(buyQuantity, listing.UnitPrice); err != nil {
					return err
				}
			}
		}

		receipt, err := client.Buy(ctx, id, api.BuyRequest{TrackID: trackID, Quantity: buyQuantity}, payment)
		if err != nil {
			return err
		}
		if globalFlags.JSON {
			return printJSON(cmd.OutOrStdout(), receipt)
		}
		return printReceipt(cmd.OutOrStdout(), receipt)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <listing-id>",
	Short: "Cancel a listing and return unsold copies to the seller",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCaller(); err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		listing, err := client.Cancel(commandContext(cmd), id)
		if err != nil {
			return err
		}
		if globalFlags.JSON {
			return printJSON(cmd.OutOrStdout(), listing)
		}
		return printListings(cmd.OutOrStdout(), []model.Listing{*listing}, time.Now())
	},
}

func init() {
	listCmd.Flags().Uint64Var(&listTrackID, "track", 0, "track id")
	listCmd.Flags().Uint64Var(&listQuantity, "quantity", 0, "copies to list")
	listCmd.Flags().StringVar(&listUnitPrice, "price", "", "unit price in minor units")
	_ = listCmd.MarkFlagRequired("track")
	_ = listCmd.MarkFlagRequired("quantity")
	_ = listCmd.MarkFlagRequired("price")

	buyCmd.Flags().Uint64Var(&buyTrackID, "track", 0, "track id (looked up from the listing when omitted)")
	buyCmd.Flags().Uint64Var(&buyQuantity, "quantity", 1, "copies to buy")
	buyCmd.Flags().StringVar(&buyPayment, "payment", "", "payment to attach (defaults to the exact price)")
}
