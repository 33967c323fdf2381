package model

import (
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Registry Types
// -----------------------------------------------------------------------------

// Track is one mintable edition. Metadata is immutable after mint.
type Track struct {
	ID                 uint64    `json:"id"`
	Name               string    `json:"name"`   // Track title, may be empty
	Artist             string    `json:"artist"` // Registry-wide artist
	URI                string    `json:"uri"`    // Off-registry metadata pointer
	UnitPrice          Amount    `json:"unit_price"`
	TotalSupply        uint64    `json:"total_supply"`
	Creator            Address   `json:"creator"`
	RoyaltyBeneficiary Address   `json:"royalty_beneficiary"`
	MintedAt           time.Time `json:"minted_at"`
}

// MintItem is one entry of a batch mint.
type MintItem struct {
	Supply    uint64 `json:"supply"`
	URI       string `json:"uri"`
	TrackName string `json:"track_name"`
}

// ZipMintItems combines parallel batch arrays into records. names may be nil,
// in which case every track name defaults to "".
func ZipMintItems(supplies []uint64, uris []string, names []string) ([]MintItem, error) {
	if len(supplies) != len(uris) {
		return nil, fmt.Errorf("%w: %d supplies, %d uris", ErrArrayLengthMismatch, len(supplies), len(uris))
	}
	if names != nil && len(names) != len(supplies) {
		return nil, fmt.Errorf("%w: %d supplies, %d track names", ErrArrayLengthMismatch, len(supplies), len(names))
	}

	items := make([]MintItem, len(supplies))
	for i := range supplies {
		items[i] = MintItem{Supply: supplies[i], URI: uris[i]}
		if names != nil {
			items[i].TrackName = names[i]
		}
	}
	return items, nil
}

// -----------------------------------------------------------------------------
// Marketplace Types
// -----------------------------------------------------------------------------

// ListingState is the lifecycle position of a listing.
type ListingState string

const (
	ListingStateCreated       ListingState = "created"
	ListingStatePartiallySold ListingState = "partially_sold"
	ListingStateSoldOut       ListingState = "sold_out"
	ListingStateCancelled     ListingState = "cancelled"
)

// Listing is a fixed-price offer of a quantity of one track.
type Listing struct {
	ID             uint64    `json:"id"`
	TrackID        uint64    `json:"track_id"`
	Seller         Address   `json:"seller"`
	UnitPrice      Amount    `json:"unit_price"`
	QuantityListed uint64    `json:"quantity_listed"`
	QuantitySold   uint64    `json:"quantity_sold"`
	Cancelled      bool      `json:"cancelled"`
	CreatedAt      time.Time `json:"created_at"`
}

// Remaining returns the quantity still available for purchase.
func (l Listing) Remaining() uint64 {
	if l.Cancelled {
		return 0
	}
	return l.QuantityListed - l.QuantitySold
}

// Active reports whether the listing can still be bought from.
func (l Listing) Active() bool {
	return !l.Cancelled && l.QuantitySold < l.QuantityListed
}

// State derives the lifecycle state.
func (l Listing) State() ListingState {
	switch {
	case l.Cancelled:
		return ListingStateCancelled
	case l.QuantitySold >= l.QuantityListed:
		return ListingStateSoldOut
	case l.QuantitySold > 0:
		return ListingStatePartiallySold
	default:
		return ListingStateCreated
	}
}

// -----------------------------------------------------------------------------
// Settlement Types
// -----------------------------------------------------------------------------

// PayoutReason labels why value moves to a payee.
type PayoutReason string

const (
	PayoutRoyalty        PayoutReason = "royalty"
	PayoutPlatformFee    PayoutReason = "platform_fee"
	PayoutSellerProceeds PayoutReason = "seller_proceeds"
)

// Payout is one outbound value transfer scheduled by an operation.
type Payout struct {
	To     Address      `json:"to"`
	Amount Amount       `json:"amount"`
	Reason PayoutReason `json:"reason"`
}

// -----------------------------------------------------------------------------
// Snapshot Types
// -----------------------------------------------------------------------------

// SupplyAudit compares a track's total supply with the sum of its balances.
type SupplyAudit struct {
	TrackID     uint64 `json:"track_id"`
	TotalSupply uint64 `json:"total_supply"`
	Held        uint64 `json:"held"`    // Sum of all holder balances
	Holders     int    `json:"holders"` // Holders with a non-zero balance
}

// Balanced reports whether supply is conserved.
func (a SupplyAudit) Balanced() bool {
	return a.Held == a.TotalSupply
}

// Snapshot is a point-in-time view of marketplace and supply state.
type Snapshot struct {
	TakenAt        time.Time     `json:"taken_at"`
	Seq            uint64        `json:"seq"` // Last event seq covered
	ActiveListings []Listing     `json:"active_listings"`
	Supply         []SupplyAudit `json:"supply"`
}
