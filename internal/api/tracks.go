package api

import (
	"context"
	"fmt"

	"github.com/rickgao/track-market/internal/model"
)

// Health fetches the server health status.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/health", nil, &resp); err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}
	return &resp, nil
}

// Mint mints a track as the client's caller, attaching payment.
func (c *Client) Mint(ctx context.Context, req MintRequest, payment model.Amount) (*MintResponse, error) {
	var resp MintResponse
	if err := c.post(ctx, "/v1/tracks", req, &payment, &resp); err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}
	return &resp, nil
}

// MintBatch mints several tracks in one operation.
func (c *Client) MintBatch(ctx context.Context, req BatchMintRequest, payment model.Amount) ([]model.Track, error) {
	var resp BatchMintResponse
	if err := c.post(ctx, "/v1/tracks/batch", req, &payment, &resp); err != nil {
		return nil, fmt.Errorf("mint batch: %w", err)
	}
	return resp.Tracks, nil
}

// GetTrack fetches a track's metadata.
func (c *Client) GetTrack(ctx context.Context, trackID uint64) (*model.Track, error) {
	var track model.Track
	if err := c.get(ctx, fmt.Sprintf("/v1/tracks/%d", trackID), nil, &track); err != nil {
		return nil, fmt.Errorf("get track %d: %w", trackID, err)
	}
	return &track, nil
}

// GetTrackName fetches the name a track was minted with.
func (c *Client) GetTrackName(ctx context.Context, trackID uint64) (string, error) {
	var resp TrackNameResponse
	if err := c.get(ctx, fmt.Sprintf("/v1/tracks/%d/name", trackID), nil, &resp); err != nil {
		return "", fmt.Errorf("get track name %d: %w", trackID, err)
	}
	return resp.Name, nil
}

// GetBalance fetches how many copies of a track holder owns.
func (c *Client) GetBalance(ctx context.Context, trackID uint64, holder model.Address) (uint64, error) {
	var resp BalanceResponse
	path := fmt.Sprintf("/v1/tracks/%d/balances/%s", trackID, holder.Hex())
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return 0, fmt.Errorf("get balance %d: %w", trackID, err)
	}
	return resp.Balance, nil
}
