package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/rickgao/track-market/internal/ledger"
	"github.com/rickgao/track-market/internal/model"
)

// Config holds registry construction parameters. They are fixed for the
// lifetime of the registry.
type Config struct {
	UnitPrice          model.Amount  // Price per minted copy
	RoyaltyBeneficiary model.Address // Receives all mint proceeds
	Artist             string        // Artist stamped on every track
	Collection         string        // Collection title
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.UnitPrice == 0 {
		return errors.New("unit price must be > 0")
	}
	if c.RoyaltyBeneficiary == model.ZeroAddress {
		return errors.New("royalty beneficiary is required")
	}
	return nil
}

// MintRequest mints a single track.
type MintRequest struct {
	Creator   model.Address
	Supply    uint64
	URI       string
	TrackName string // Optional
	Payment   model.Amount
}

// BatchMintRequest mints several tracks in one operation.
type BatchMintRequest struct {
	Creator model.Address
	Items   []model.MintItem
	Payment model.Amount
}

// Registry owns tracks and balances. All state lives behind the ledger lock.
type Registry struct {
	cfg    Config
	ledger *ledger.Ledger
	logger *slog.Logger

	tracks   map[uint64]*model.Track
	balances map[uint64]map[model.Address]uint64
	nextID   uint64
}

// New creates a Registry.
func New(cfg Config, l *ledger.Ledger, logger *slog.Logger) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("registry config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Artist = model.CleanText(cfg.Artist)
	cfg.Collection = model.CleanText(cfg.Collection)

	return &Registry{
		cfg:      cfg,
		ledger:   l,
		logger:   logger,
		tracks:   make(map[uint64]*model.Track),
		balances: make(map[uint64]map[model.Address]uint64),
		nextID:   1,
	}, nil
}

// Config returns the construction parameters.
func (r *Registry) Config() Config {
	return r.cfg
}

// Mint creates one track, credits its whole supply to the creator and pays
// the mint price to the royalty beneficiary.
func (r *Registry) Mint(ctx context.Context, req MintRequest) (model.Track, error) {
	var track model.Track
	err := r.ledger.Update(ctx, "mint", func(tx *ledger.Tx) error {
		var err error
		track, err = r.MintLocked(tx, req)
		return err
	})
	if err != nil {
		return model.Track{}, err
	}

	r.logger.Info("track minted",
		"track_id", track.ID,
		"creator", track.Creator.Hex(),
		"supply", track.TotalSupply,
	)
	return track, nil
}

// MintLocked is Mint inside an existing ledger transaction.
func (r *Registry) MintLocked(tx *ledger.Tx, req MintRequest) (model.Track, error) {
	if req.Creator == model.ZeroAddress {
		return model.Track{}, fmt.Errorf("%w: creator", model.ErrInvalidAddress)
	}
	item := model.MintItem{Supply: req.Supply, URI: req.URI, TrackName: req.TrackName}
	cost, err := r.costOf([]model.MintItem{item})
	if err != nil {
		return model.Track{}, err
	}
	if err := checkPayment(req.Payment, cost); err != nil {
		return model.Track{}, err
	}

	track := r.createLocked(tx, req.Creator, item)
	tx.Pay(r.cfg.RoyaltyBeneficiary, req.Payment, model.PayoutRoyalty)
	tx.Emit(model.EventMinted, mintedEvent(track))
	return track, nil
}

// MintBatch creates one track per item. The batch is validated as a whole
// before anything is created; either every track is minted or none is.
func (r *Registry) MintBatch(ctx context.Context, req BatchMintRequest) ([]model.Track, error) {
	var tracks []model.Track
	err := r.ledger.Update(ctx, "mint_batch", func(tx *ledger.Tx) error {
		var err error
		tracks, err = r.MintBatchLocked(tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("batch minted",
		"first_track_id", tracks[0].ID,
		"count", len(tracks),
		"creator", req.Creator.Hex(),
	)
	return tracks, nil
}

// MintBatchLocked is MintBatch inside an existing ledger transaction.
func (r *Registry) MintBatchLocked(tx *ledger.Tx, req BatchMintRequest) ([]model.Track, error) {
	if req.Creator == model.ZeroAddress {
		return nil, fmt.Errorf("%w: creator", model.ErrInvalidAddress)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: empty batch", model.ErrInvalidQuantity)
	}
	cost, err := r.costOf(req.Items)
	if err != nil {
		return nil, err
	}
	if err := checkPayment(req.Payment, cost); err != nil {
		return nil, err
	}

	tracks := make([]model.Track, len(req.Items))
	ids := make([]uint64, len(req.Items))
	for i, item := range req.Items {
		tracks[i] = r.createLocked(tx, req.Creator, item)
		ids[i] = tracks[i].ID
		tx.Emit(model.EventMinted, mintedEvent(tracks[i]))
	}
	tx.Pay(r.cfg.RoyaltyBeneficiary, req.Payment, model.PayoutRoyalty)
	tx.Emit(model.EventBatchMinted, &model.BatchMinted{TrackIDs: ids, Creator: req.Creator})
	return tracks, nil
}

// costOf validates items and returns Σ supply*unitPrice.
func (r *Registry) costOf(items []model.MintItem) (model.Amount, error) {
	var total model.Amount
	for i, item := range items {
		if item.Supply == 0 {
			return 0, fmt.Errorf("%w: item %d has zero supply", model.ErrInvalidQuantity, i)
		}
		cost, err := model.MulAmount(item.Supply, r.cfg.UnitPrice)
		if err != nil {
			return 0, err
		}
		if total, err = model.AddAmount(total, cost); err != nil {
			return 0, err
		}
	}
	return total, nil
}

func checkPayment(got, want model.Amount) error {
	switch {
	case got < want:
		return fmt.Errorf("%w: got %d, want %d", model.ErrInsufficientPayment, got, want)
	case got > want:
		return fmt.Errorf("%w: got %d, want %d", model.ErrIncorrectPayment, got, want)
	}
	return nil
}

// createLocked assigns the next id and credits the creator.
func (r *Registry) createLocked(tx *ledger.Tx, creator model.Address, item model.MintItem) model.Track {
	id := r.nextID
	track := model.Track{
		ID:                 id,
		Name:               model.CleanText(item.TrackName),
		Artist:             r.cfg.Artist,
		URI:                model.CleanText(item.URI),
		UnitPrice:          r.cfg.UnitPrice,
		TotalSupply:        item.Supply,
		Creator:            creator,
		RoyaltyBeneficiary: r.cfg.RoyaltyBeneficiary,
		MintedAt:           tx.Now(),
	}

	r.nextID++
	r.tracks[id] = &track
	r.balances[id] = map[model.Address]uint64{creator: item.Supply}

	tx.OnRollback(func() {
		delete(r.tracks, id)
		delete(r.balances, id)
		r.nextID = id
	})
	return track
}

func mintedEvent(t model.Track) *model.Minted {
	return &model.Minted{
		TrackID:     t.ID,
		Creator:     t.Creator,
		TotalSupply: t.TotalSupply,
		URI:         t.URI,
		TrackName:   t.Name,
	}
}

// TransferLocked moves quantity copies of a track from one holder to
// another. Only the marketplace calls it, during settlement.
func (r *Registry) TransferLocked(tx *ledger.Tx, from, to model.Address, trackID, quantity uint64) error {
	if quantity == 0 {
		return fmt.Errorf("%w: zero transfer", model.ErrInvalidQuantity)
	}
	if to == model.ZeroAddress {
		return fmt.Errorf("%w: recipient", model.ErrInvalidAddress)
	}
	holders, ok := r.balances[trackID]
	if !ok {
		return fmt.Errorf("%w: %d", model.ErrUnknownTrack, trackID)
	}
	fromBal := holders[from]
	if fromBal < quantity {
		return fmt.Errorf("%w: %s holds %d of track %d, need %d",
			model.ErrInsufficientBalance, from.Hex(), fromBal, trackID, quantity)
	}
	if from == to {
		return nil
	}

	toBal, hadTo := holders[to]
	setBalance(holders, from, fromBal-quantity)
	holders[to] = toBal + quantity

	tx.OnRollback(func() {
		holders[from] = fromBal
		if hadTo {
			holders[to] = toBal
		} else {
			delete(holders, to)
		}
	})

	tx.Emit(model.EventTransferred, &model.Transferred{
		TrackID:  trackID,
		From:     from,
		To:       to,
		Quantity: quantity,
	})
	return nil
}

func setBalance(holders map[model.Address]uint64, addr model.Address, v uint64) {
	if v == 0 {
		delete(holders, addr)
		return
	}
	holders[addr] = v
}

// BalanceOf returns how many copies of a track holder owns. Unknown tracks
// have a zero balance.
func (r *Registry) BalanceOf(holder model.Address, trackID uint64) uint64 {
	var bal uint64
	r.ledger.View(func() {
		bal = r.BalanceOfLocked(holder, trackID)
	})
	return bal
}

// BalanceOfLocked is BalanceOf for callers holding the ledger lock.
func (r *Registry) BalanceOfLocked(holder model.Address, trackID uint64) uint64 {
	return r.balances[trackID][holder]
}

// Track returns a track's metadata.
func (r *Registry) Track(trackID uint64) (model.Track, error) {
	var (
		track model.Track
		err   error
	)
	r.ledger.View(func() {
		track, err = r.TrackLocked(trackID)
	})
	return track, err
}

// TrackLocked is Track for callers holding the ledger lock.
func (r *Registry) TrackLocked(trackID uint64) (model.Track, error) {
	t, ok := r.tracks[trackID]
	if !ok {
		return model.Track{}, fmt.Errorf("%w: %d", model.ErrUnknownTrack, trackID)
	}
	return *t, nil
}

// TrackNameOf returns the name a track was minted with.
func (r *Registry) TrackNameOf(trackID uint64) (string, error) {
	t, err := r.Track(trackID)
	if err != nil {
		return "", err
	}
	return t.Name, nil
}

// NextID returns the id the next minted track will receive.
func (r *Registry) NextID() uint64 {
	var id uint64
	r.ledger.View(func() {
		id = r.nextID
	})
	return id
}

// Audit returns a supply audit for every track, ordered by id.
func (r *Registry) Audit() []model.SupplyAudit {
	var audits []model.SupplyAudit
	r.ledger.View(func() {
		audits = r.AuditLocked()
	})
	return audits
}

// AuditLocked is Audit for callers holding the ledger lock.
func (r *Registry) AuditLocked() []model.SupplyAudit {
	audits := make([]model.SupplyAudit, 0, len(r.tracks))
	for id, t := range r.tracks {
		a := model.SupplyAudit{TrackID: id, TotalSupply: t.TotalSupply}
		for _, bal := range r.balances[id] {
			a.Held += bal
			if bal > 0 {
				a.Holders++
			}
		}
		audits = append(audits, a)
	}
	sort.Slice(audits, func(i, j int) bool {
		return audits[i].TrackID < audits[j].TrackID
	})
	return audits
}
