package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rickgao/track-market/internal/market"
	"github.com/rickgao/track-market/internal/model"
)

// formatAmount renders minor units with thousands separators.
func formatAmount(a model.Amount) string {
	if uint64(a) > math.MaxInt64 {
		return strconv.FormatUint(uint64(a), 10)
	}
	return humanize.Comma(int64(a))
}

func formatCount(n uint64) string {
	if n > math.MaxInt64 {
		return strconv.FormatUint(n, 10)
	}
	return humanize.Comma(int64(n))
}

func formatAge(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printTracks(w io.Writer, tracks []model.Track, now time.Time) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tSUPPLY\tPRICE\tCREATOR\tURI\tMINTED")
	for _, t := range tracks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, orDash(t.Name), formatCount(t.TotalSupply), formatAmount(t.UnitPrice),
			t.Creator.Hex(), orDash(t.URI), formatAge(t.MintedAt, now))
	}
	return tw.Flush()
}

func printListings(w io.Writer, listings []model.Listing, now time.Time) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tTRACK\tSELLER\tPRICE\tLISTED\tSOLD\tREMAINING\tSTATE\tCREATED")
	for _, l := range listings {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			l.ID, l.TrackID, l.Seller.Hex(), formatAmount(l.UnitPrice),
			formatCount(l.QuantityListed), formatCount(l.QuantitySold), formatCount(l.Remaining()),
			l.State(), formatAge(l.CreatedAt, now))
	}
	return tw.Flush()
}

func printReceipt(w io.Writer, r *market.Receipt) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "listing\t%d\n", r.Listing.ID)
	fmt.Fprintf(tw, "track\t%d\n", r.Listing.TrackID)
	fmt.Fprintf(tw, "buyer\t%s\n", r.Buyer.Hex())
	fmt.Fprintf(tw, "quantity\t%s\n", formatCount(r.Quantity))
	fmt.Fprintf(tw, "payment\t%s\n", formatAmount(r.Payment))
	fmt.Fprintf(tw, "fee\t%s\n", formatAmount(r.Fee))
	fmt.Fprintf(tw, "proceeds\t%s\n", formatAmount(r.Proceeds))
	fmt.Fprintf(tw, "remaining\t%s\n", formatCount(r.Listing.Remaining()))
	return tw.Flush()
}

// eventLine renders one event as a single log-style line.
func eventLine(e model.Event) string {
	data, err := json.Marshal(e.Data)
	if err != nil {
		data = []byte("{}")
	}
	return fmt.Sprintf("%d\t%s\t%s\t%s", e.Seq, e.At.UTC().Format(time.RFC3339), e.Kind, data)
}
