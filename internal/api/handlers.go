package api

import (
	"net/http"

	"github.com/rickgao/track-market/internal/market"
	"github.com/rickgao/track-market/internal/model"
	"github.com/rickgao/track-market/internal/registry"
	"github.com/rickgao/track-market/internal/version"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: version.Version,
		Seq:     s.ledger.Seq(),
	})
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	payment, err := paymentOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body MintRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	req := registry.MintRequest{
		Creator:   caller,
		Supply:    body.Supply,
		URI:       body.URI,
		TrackName: body.TrackName,
		Payment:   payment,
	}

	if body.ListPrice != nil {
		track, listing, err := s.market.MintAndList(r.Context(), req, *body.ListPrice)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, MintResponse{Track: track, Listing: &listing})
		return
	}

	track, err := s.registry.Mint(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, MintResponse{Track: track})
}

func (s *Server) handleMintBatch(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	payment, err := paymentOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body BatchMintRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	items, err := model.ZipMintItems(body.Supplies, body.URIs, body.TrackNames)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	tracks, err := s.registry.MintBatch(r.Context(), registry.BatchMintRequest{
		Creator: caller,
		Items:   items,
		Payment: payment,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, BatchMintResponse{Tracks: tracks})
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	track, err := s.registry.Track(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, track)
}

func (s *Server) handleTrackName(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name, err := s.registry.TrackNameOf(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TrackNameResponse{TrackID: id, Name: name})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	holder, err := model.ParseAddress(r.PathValue("holder"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{
		TrackID: id,
		Holder:  holder,
		Balance: s.registry.BalanceOf(holder, id),
	})
}

// -----------------------------------------------------------------------------
// Marketplace
// -----------------------------------------------------------------------------

func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	listings := s.market.FetchActiveItems()
	if listings == nil {
		listings = []model.Listing{}
	}
	writeJSON(w, http.StatusOK, ListingsResponse{Listings: listings})
}

func (s *Server) handleListing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	listing, err := s.market.Listing(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body CreateListingRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	listing, err := s.market.CreateListing(r.Context(), market.ListingRequest{
		Seller:    caller,
		TrackID:   body.TrackID,
		Quantity:  body.Quantity,
		UnitPrice: body.UnitPrice,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, listing)
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := callerOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	payment, err := paymentOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body BuyRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	receipt, err := s.market.CreateMarketSale(r.Context(), market.SaleRequest{
		Buyer:     caller,
		TrackID:   body.TrackID,
		ListingID: id,
		Quantity:  body.Quantity,
		Payment:   payment,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := callerOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	listing, err := s.market.CancelListing(r.Context(), caller, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// -----------------------------------------------------------------------------
// Events
// -----------------------------------------------------------------------------

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	since, err := queryUint(r, "since")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := queryUint(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if limit == 0 || limit > maxEventsPage {
		limit = maxEventsPage
	}

	events := s.ledger.History(since, int(limit))
	lastSeq := s.ledger.Seq()
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, EventsResponse{Events: events, LastSeq: lastSeq})
}

// maxEventsPage caps GET /v1/events.
const maxEventsPage = 1000
