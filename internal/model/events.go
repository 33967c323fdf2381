package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind names an emitted event.
type EventKind string

const (
	EventMinted           EventKind = "minted"
	EventBatchMinted      EventKind = "batch_minted"
	EventTransferred      EventKind = "transferred"
	EventListingCreated   EventKind = "listing_created"
	EventItemSold         EventKind = "item_sold"
	EventListingCancelled EventKind = "listing_cancelled"
)

// Event is an observational record of a committed operation. Seq is assigned
// at commit and is strictly increasing across the ledger. Data holds a pointer
// to the payload struct matching Kind (*Minted, *ItemSold, ...).
type Event struct {
	ID    uuid.UUID `json:"id"`
	Seq   uint64    `json:"seq"`
	Kind  EventKind `json:"kind"`
	TxRef uuid.UUID `json:"tx_ref"` // Ledger transaction that produced the event
	At    time.Time `json:"at"`
	Data  any       `json:"data"`
}

// Minted is emitted once per newly minted track.
type Minted struct {
	TrackID     uint64  `json:"track_id"`
	Creator     Address `json:"creator"`
	TotalSupply uint64  `json:"total_supply"`
	URI         string  `json:"uri"`
	TrackName   string  `json:"track_name"`
}

// BatchMinted is emitted after the per-track Minted events of a batch.
type BatchMinted struct {
	TrackIDs []uint64 `json:"track_ids"`
	Creator  Address  `json:"creator"`
}

// Transferred is emitted when a balance moves between holders.
type Transferred struct {
	TrackID  uint64  `json:"track_id"`
	From     Address `json:"from"`
	To       Address `json:"to"`
	Quantity uint64  `json:"quantity"`
}

// ListingCreated is emitted when a listing is opened.
type ListingCreated struct {
	ListingID uint64  `json:"listing_id"`
	TrackID   uint64  `json:"track_id"`
	Seller    Address `json:"seller"`
	Quantity  uint64  `json:"quantity"`
	UnitPrice Amount  `json:"unit_price"`
}

// ItemSold is emitted for each settled purchase.
type ItemSold struct {
	ListingID uint64  `json:"listing_id"`
	Buyer     Address `json:"buyer"`
	Quantity  uint64  `json:"quantity"`
	TrackID   uint64  `json:"track_id"`
	Seller    Address `json:"seller"`
	Payment   Amount  `json:"payment"`
	Fee       Amount  `json:"fee"`
}

// ListingCancelled is emitted when a seller withdraws a listing.
type ListingCancelled struct {
	ListingID uint64 `json:"listing_id"`
}

// UnmarshalJSON decodes Data into the concrete payload type for Kind.
func (e *Event) UnmarshalJSON(b []byte) error {
	type envelope struct {
		ID    uuid.UUID       `json:"id"`
		Seq   uint64          `json:"seq"`
		Kind  EventKind       `json:"kind"`
		TxRef uuid.UUID       `json:"tx_ref"`
		At    time.Time       `json:"at"`
		Data  json.RawMessage `json:"data"`
	}
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}

	var data any
	switch env.Kind {
	case EventMinted:
		data = &Minted{}
	case EventBatchMinted:
		data = &BatchMinted{}
	case EventTransferred:
		data = &Transferred{}
	case EventListingCreated:
		data = &ListingCreated{}
	case EventItemSold:
		data = &ItemSold{}
	case EventListingCancelled:
		data = &ListingCancelled{}
	default:
		return fmt.Errorf("unknown event kind %q", env.Kind)
	}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, data); err != nil {
			return fmt.Errorf("decode %s data: %w", env.Kind, err)
		}
	}

	*e = Event{
		ID:    env.ID,
		Seq:   env.Seq,
		Kind:  env.Kind,
		TxRef: env.TxRef,
		At:    env.At,
		Data:  data,
	}
	return nil
}
