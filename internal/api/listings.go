package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rickgao/track-market/internal/market"
	"github.com/rickgao/track-market/internal/model"
)

// GetListings fetches all active listings in id order.
func (c *Client) GetListings(ctx context.Context) ([]model.Listing, error) {
	var resp ListingsResponse
	if err := c.get(ctx, "/v1/listings", nil, &resp); err != nil {
		return nil, fmt.Errorf("get listings: %w", err)
	}
	return resp.Listings, nil
}

// GetListing fetches one listing, active or not.
func (c *Client) GetListing(ctx context.Context, listingID uint64) (*model.Listing, error) {
	var listing model.Listing
	if err := c.get(ctx, fmt.Sprintf("/v1/listings/%d", listingID), nil, &listing); err != nil {
		return nil, fmt.Errorf("get listing %d: %w", listingID, err)
	}
	return &listing, nil
}

// CreateListing opens a listing as the client's caller.
func (c *Client) CreateListing(ctx context.Context, req CreateListingRequest) (*model.Listing, error) {
	var listing model.Listing
	if err := c.post(ctx, "/v1/listings", req, nil, &listing); err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}
	return &listing, nil
}

// Buy purchases from a listing, attaching payment.
func (c *Client) Buy(ctx context.Context, listingID uint64, req BuyRequest, payment model.Amount) (*market.Receipt, error) {
	var receipt market.Receipt
	path := fmt.Sprintf("/v1/listings/%d/buy", listingID)
	if err := c.post(ctx, path, req, &payment, &receipt); err != nil {
		return nil, fmt.Errorf("buy listing %d: %w", listingID, err)
	}
	return &receipt, nil
}

// Cancel withdraws a listing owned by the client's caller.
func (c *Client) Cancel(ctx context.Context, listingID uint64) (*model.Listing, error) {
	var listing model.Listing
	path := fmt.Sprintf("/v1/listings/%d/cancel", listingID)
	if err := c.post(ctx, path, nil, nil, &listing); err != nil {
		return nil, fmt.Errorf("cancel listing %d: %w", listingID, err)
	}
	return &listing, nil
}

// GetEvents fetches retained events with seq > since. limit <= 0 uses the
// server maximum.
func (c *Client) GetEvents(ctx context.Context, since uint64, limit int) (*EventsResponse, error) {
	query := url.Values{}
	if since > 0 {
		query.Set("since", strconv.FormatUint(since, 10))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp EventsResponse
	if err := c.get(ctx, "/v1/events", query, &resp); err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	return &resp, nil
}
