package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rickgao/track-market/internal/ledger"
	"github.com/rickgao/track-market/internal/model"
	"github.com/rickgao/track-market/internal/registry"
)

// Config holds marketplace configuration.
type Config struct {
	FeeBasisPoints uint32        // Platform fee, 0..10000
	FeeRecipient   model.Address // Receives the platform fee
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.FeeBasisPoints > model.BasisPointsDenominator {
		return fmt.Errorf("fee basis points %d exceeds %d", c.FeeBasisPoints, model.BasisPointsDenominator)
	}
	if c.FeeBasisPoints > 0 && c.FeeRecipient == model.ZeroAddress {
		return errors.New("fee recipient is required when a fee is charged")
	}
	return nil
}

// ListingRequest opens a listing. A zero UnitPrice lists at the track's
// mint price.
type ListingRequest struct {
	Seller    model.Address
	TrackID   uint64
	Quantity  uint64
	UnitPrice model.Amount
}

// SaleRequest buys Quantity copies from a listing. TrackID must match the
// listing's track.
type SaleRequest struct {
	Buyer     model.Address
	TrackID   uint64
	ListingID uint64
	Quantity  uint64
	Payment   model.Amount
}

// Receipt describes a settled sale.
type Receipt struct {
	Listing  model.Listing `json:"listing"` // Listing after the sale
	Buyer    model.Address `json:"buyer"`
	Quantity uint64        `json:"quantity"`
	Payment  model.Amount  `json:"payment"`
	Fee      model.Amount  `json:"fee"`
	Proceeds model.Amount  `json:"proceeds"`
}

// Marketplace lists track editions and settles purchases.
type Marketplace struct {
	cfg      Config
	ledger   *ledger.Ledger
	registry *registry.Registry
	logger   *slog.Logger

	book *listingBook
}

// New creates a Marketplace sharing the registry's ledger.
func New(cfg Config, l *ledger.Ledger, reg *registry.Registry, logger *slog.Logger) (*Marketplace, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("market config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Marketplace{
		cfg:      cfg,
		ledger:   l,
		registry: reg,
		logger:   logger,
		book:     newListingBook(),
	}, nil
}

// Config returns the construction parameters.
func (m *Marketplace) Config() Config {
	return m.cfg
}

// FetchActiveItems returns all listings that can still be bought from,
// ordered by listing id.
func (m *Marketplace) FetchActiveItems() []model.Listing {
	var result []model.Listing
	m.ledger.View(func() {
		result = m.book.activeLocked()
	})
	return result
}

// Listing returns a listing by id, active or not.
func (m *Marketplace) Listing(id uint64) (model.Listing, error) {
	var (
		l  model.Listing
		ok bool
	)
	m.ledger.View(func() {
		l, ok = m.book.getLocked(id)
	})
	if !ok {
		return model.Listing{}, fmt.Errorf("%w: %d", model.ErrUnknownListing, id)
	}
	return l, nil
}

// CreateListing opens a listing for part of the seller's balance.
func (m *Marketplace) CreateListing(ctx context.Context, req ListingRequest) (model.Listing, error) {
	var listing model.Listing
	err := m.ledger.Update(ctx, "create_listing", func(tx *ledger.Tx) error {
		var err error
		listing, err = m.CreateListingLocked(tx, req)
		return err
	})
	if err != nil {
		return model.Listing{}, err
	}

	m.logger.Info("listing created",
		"listing_id", listing.ID,
		"track_id", listing.TrackID,
		"seller", listing.Seller.Hex(),
		"quantity", listing.QuantityListed,
		"unit_price", listing.UnitPrice,
	)
	return listing, nil
}

// CreateListingLocked is CreateListing inside an existing ledger transaction.
func (m *Marketplace) CreateListingLocked(tx *ledger.Tx, req ListingRequest) (model.Listing, error) {
	if req.Seller == model.ZeroAddress {
		return model.Listing{}, fmt.Errorf("%w: seller", model.ErrInvalidAddress)
	}
	if req.Quantity == 0 {
		return model.Listing{}, fmt.Errorf("%w: zero listing quantity", model.ErrInvalidQuantity)
	}
	track, err := m.registry.TrackLocked(req.TrackID)
	if err != nil {
		// Nobody holds copies of a track that was never minted.
		return model.Listing{}, fmt.Errorf("%w: track %d has no holders", model.ErrInsufficientBalance, req.TrackID)
	}

	price := req.UnitPrice
	if price == 0 {
		price = track.UnitPrice
	}
	if _, err := model.MulAmount(req.Quantity, price); err != nil {
		return model.Listing{}, err
	}

	balance := m.registry.BalanceOfLocked(req.Seller, req.TrackID)
	committed := m.book.committedLocked(req.Seller, req.TrackID)
	if committed > balance || req.Quantity > balance-committed {
		return model.Listing{}, fmt.Errorf("%w: %s holds %d of track %d, %d already listed, %d requested",
			model.ErrInsufficientBalance, req.Seller.Hex(), balance, req.TrackID, committed, req.Quantity)
	}

	listing := m.book.insertLocked(tx, model.Listing{
		TrackID:        req.TrackID,
		Seller:         req.Seller,
		UnitPrice:      price,
		QuantityListed: req.Quantity,
		CreatedAt:      tx.Now(),
	})

	tx.Emit(model.EventListingCreated, &model.ListingCreated{
		ListingID: listing.ID,
		TrackID:   listing.TrackID,
		Seller:    listing.Seller,
		Quantity:  listing.QuantityListed,
		UnitPrice: listing.UnitPrice,
	})
	return listing, nil
}

// CreateMarketSale buys part or all of a listing. The balance transfer, the
// sold count and the payouts to seller and fee recipient commit together.
func (m *Marketplace) CreateMarketSale(ctx context.Context, req SaleRequest) (Receipt, error) {
	var receipt Receipt
	err := m.ledger.Update(ctx, "create_market_sale", func(tx *ledger.Tx) error {
		var err error
		receipt, err = m.CreateMarketSaleLocked(tx, req)
		return err
	})
	if err != nil {
		return Receipt{}, err
	}

	m.logger.Info("item sold",
		"listing_id", receipt.Listing.ID,
		"track_id", receipt.Listing.TrackID,
		"buyer", receipt.Buyer.Hex(),
		"quantity", receipt.Quantity,
		"payment", receipt.Payment,
		"fee", receipt.Fee,
		"remaining", receipt.Listing.Remaining(),
	)
	return receipt, nil
}

// CreateMarketSaleLocked is CreateMarketSale inside an existing ledger
// transaction.
func (m *Marketplace) CreateMarketSaleLocked(tx *ledger.Tx, req SaleRequest) (Receipt, error) {
	if req.Buyer == model.ZeroAddress {
		return Receipt{}, fmt.Errorf("%w: buyer", model.ErrInvalidAddress)
	}
	listing, ok := m.book.getLocked(req.ListingID)
	if !ok || !listing.Active() {
		return Receipt{}, fmt.Errorf("%w: %d", model.ErrListingInactive, req.ListingID)
	}
	if listing.TrackID != req.TrackID {
		return Receipt{}, fmt.Errorf("%w: listing %d is for track %d, not %d",
			model.ErrListingInactive, listing.ID, listing.TrackID, req.TrackID)
	}
	if req.Quantity == 0 {
		return Receipt{}, fmt.Errorf("%w: zero purchase quantity", model.ErrInvalidQuantity)
	}
	if req.Quantity > listing.Remaining() {
		return Receipt{}, fmt.Errorf("%w: %d requested, %d remaining",
			model.ErrQuantityExceedsAvailable, req.Quantity, listing.Remaining())
	}
	price, err := model.MulAmount(req.Quantity, listing.UnitPrice)
	if err != nil {
		return Receipt{}, err
	}
	if req.Payment != price {
		return Receipt{}, fmt.Errorf("%w: got %d, want %d", model.ErrIncorrectPayment, req.Payment, price)
	}

	if err := m.registry.TransferLocked(tx, listing.Seller, req.Buyer, listing.TrackID, req.Quantity); err != nil {
		return Receipt{}, err
	}
	listing = m.book.recordSaleLocked(tx, listing.ID, req.Quantity)

	fee, proceeds := model.SplitFee(req.Payment, m.cfg.FeeBasisPoints)
	tx.Pay(m.cfg.FeeRecipient, fee, model.PayoutPlatformFee)
	tx.Pay(listing.Seller, proceeds, model.PayoutSellerProceeds)

	tx.Emit(model.EventItemSold, &model.ItemSold{
		ListingID: listing.ID,
		Buyer:     req.Buyer,
		Quantity:  req.Quantity,
		TrackID:   listing.TrackID,
		Seller:    listing.Seller,
		Payment:   req.Payment,
		Fee:       fee,
	})

	return Receipt{
		Listing:  listing,
		Buyer:    req.Buyer,
		Quantity: req.Quantity,
		Payment:  req.Payment,
		Fee:      fee,
		Proceeds: proceeds,
	}, nil
}

// CancelListing withdraws an active listing. Only its seller may cancel.
func (m *Marketplace) CancelListing(ctx context.Context, caller model.Address, listingID uint64) (model.Listing, error) {
	var listing model.Listing
	err := m.ledger.Update(ctx, "cancel_listing", func(tx *ledger.Tx) error {
		l, ok := m.book.getLocked(listingID)
		if !ok || !l.Active() {
			return fmt.Errorf("%w: %d", model.ErrListingInactive, listingID)
		}
		if caller != l.Seller {
			return fmt.Errorf("%w: only the seller may cancel listing %d", model.ErrUnauthorized, listingID)
		}

		listing = m.book.cancelLocked(tx, listingID)
		tx.Emit(model.EventListingCancelled, &model.ListingCancelled{ListingID: listingID})
		return nil
	})
	if err != nil {
		return model.Listing{}, err
	}

	m.logger.Info("listing cancelled",
		"listing_id", listing.ID,
		"track_id", listing.TrackID,
		"unsold", listing.QuantityListed-listing.QuantitySold,
	)
	return listing, nil
}

// MintAndList mints a track and lists its whole supply at unitPrice in one
// ledger transaction.
func (m *Marketplace) MintAndList(ctx context.Context, req registry.MintRequest, unitPrice model.Amount) (model.Track, model.Listing, error) {
	var (
		track   model.Track
		listing model.Listing
	)
	err := m.ledger.Update(ctx, "mint_and_list", func(tx *ledger.Tx) error {
		var err error
		if track, err = m.registry.MintLocked(tx, req); err != nil {
			return err
		}
		listing, err = m.CreateListingLocked(tx, ListingRequest{
			Seller:    track.Creator,
			TrackID:   track.ID,
			Quantity:  track.TotalSupply,
			UnitPrice: unitPrice,
		})
		return err
	})
	if err != nil {
		return model.Track{}, model.Listing{}, err
	}

	m.logger.Info("track minted and listed",
		"track_id", track.ID,
		"listing_id", listing.ID,
		"supply", track.TotalSupply,
		"unit_price", listing.UnitPrice,
	)
	return track, listing, nil
}

// Snapshot captures active listings and the supply audit at one ledger seq.
func (m *Marketplace) Snapshot(ctx context.Context) (model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, err
	}
	var snap model.Snapshot
	m.ledger.View(func() {
		snap = model.Snapshot{
			Seq:            m.ledger.SeqLocked(),
			ActiveListings: m.book.activeLocked(),
			Supply:         m.registry.AuditLocked(),
		}
	})
	snap.TakenAt = m.ledger.Now()
	return snap, nil
}
