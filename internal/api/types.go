package api

import "github.com/rickgao/track-market/internal/model"

// Request headers.
const (
	HeaderCaller  = "X-Caller"
	HeaderPayment = "X-Payment"
)

// Transport error codes in addition to the model codes.
const (
	CodeBadRequest      = "bad_request"
	CodeUnauthenticated = "unauthenticated"
)

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

// MintRequest is the body of POST /v1/tracks. A non-nil ListPrice lists the
// whole supply right after minting.
type MintRequest struct {
	Supply    uint64        `json:"supply"`
	URI       string        `json:"uri"`
	TrackName string        `json:"track_name,omitempty"`
	ListPrice *model.Amount `json:"list_price,omitempty"`
}

// MintResponse is returned by POST /v1/tracks.
type MintResponse struct {
	Track   model.Track    `json:"track"`
	Listing *model.Listing `json:"listing,omitempty"`
}

// BatchMintRequest is the body of POST /v1/tracks/batch.
type BatchMintRequest struct {
	Supplies   []uint64 `json:"supplies"`
	URIs       []string `json:"uris"`
	TrackNames []string `json:"track_names,omitempty"`
}

// BatchMintResponse is returned by POST /v1/tracks/batch.
type BatchMintResponse struct {
	Tracks []model.Track `json:"tracks"`
}

// TrackNameResponse is returned by GET /v1/tracks/{id}/name.
type TrackNameResponse struct {
	TrackID uint64 `json:"track_id"`
	Name    string `json:"name"`
}

// BalanceResponse is returned by GET /v1/tracks/{id}/balances/{holder}.
type BalanceResponse struct {
	TrackID uint64        `json:"track_id"`
	Holder  model.Address `json:"holder"`
	Balance uint64        `json:"balance"`
}

// -----------------------------------------------------------------------------
// Marketplace
// -----------------------------------------------------------------------------

// CreateListingRequest is the body of POST /v1/listings. A zero UnitPrice
// lists at the track's mint price.
type CreateListingRequest struct {
	TrackID   uint64       `json:"track_id"`
	Quantity  uint64       `json:"quantity"`
	UnitPrice model.Amount `json:"unit_price"`
}

// BuyRequest is the body of POST /v1/listings/{id}/buy.
type BuyRequest struct {
	TrackID  uint64 `json:"track_id"`
	Quantity uint64 `json:"quantity"`
}

// ListingsResponse is returned by GET /v1/listings.
type ListingsResponse struct {
	Listings []model.Listing `json:"listings"`
}

// -----------------------------------------------------------------------------
// Events and health
// -----------------------------------------------------------------------------

// EventsResponse is returned by GET /v1/events.
type EventsResponse struct {
	Events  []model.Event `json:"events"`
	LastSeq uint64        `json:"last_seq"` // Ledger seq at read time
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Seq     uint64 `json:"seq"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps ErrorBody on the wire.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
