package api

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rickgao/track-market/internal/auth"
	"github.com/rickgao/track-market/internal/ledger"
	"github.com/rickgao/track-market/internal/market"
	"github.com/rickgao/track-market/internal/model"
	"github.com/rickgao/track-market/internal/payment"
	"github.com/rickgao/track-market/internal/registry"
)

var (
	beneficiary  = model.Address{19: 0xbe}
	feeRecipient = model.Address{19: 0xfe}
	seller       = model.Address{19: 0x5e}
	buyer        = model.Address{19: 0xb0}
)

type testEnv struct {
	book   *payment.Book
	ledger *ledger.Ledger
	server *httptest.Server
}

func newTestEnv(t *testing.T, verifier *auth.Verifier) *testEnv {
	t.Helper()
	env := &testEnv{book: payment.NewBook(nil)}
	env.ledger = ledger.New(ledger.DefaultConfig(), env.book)

	reg, err := registry.New(registry.Config{
		UnitPrice:          1,
		RoyaltyBeneficiary: beneficiary,
		Artist:             "Dua Lipa",
		Collection:         "Dua in Hamburg",
	}, env.ledger, nil)
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}
	mkt, err := market.New(market.Config{FeeBasisPoints: 250, FeeRecipient: feeRecipient}, env.ledger, reg, nil)
	if err != nil {
		t.Fatalf("market.New() error = %v", err)
	}

	srv := NewServer(reg, mkt, env.ledger, verifier, nil)
	env.server = httptest.NewServer(srv.Handler())
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) client(caller model.Address, opts ...ClientOption) *Client {
	opts = append([]ClientOption{WithCaller(caller), WithRetries(0, time.Millisecond)}, opts...)
	return NewClient(e.server.URL, opts...)
}

func TestServer_MintListBuy(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	sellerClient := env.client(seller)
	buyerClient := env.client(buyer)

	minted, err := sellerClient.Mint(ctx, MintRequest{Supply: 10, URI: "abc", TrackName: "Levitating"}, 10)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	if minted.Track.ID != 1 {
		t.Errorf("Track.ID = %d, want 1", minted.Track.ID)
	}
	if minted.Listing != nil {
		t.Errorf("Listing = %+v, want nil", minted.Listing)
	}

	listing, err := sellerClient.CreateListing(ctx, CreateListingRequest{TrackID: 1, Quantity: 10, UnitPrice: 5})
	if err != nil {
		t.Fatalf("CreateListing() error = %v", err)
	}

	receipt, err := buyerClient.Buy(ctx, listing.ID, BuyRequest{TrackID: 1, Quantity: 10}, 50)
	if err != nil {
		t.Fatalf("Buy() error = %v", err)
	}
	if receipt.Fee != 1 {
		t.Errorf("Fee = %d, want 1", receipt.Fee)
	}
	if receipt.Proceeds != 49 {
		t.Errorf("Proceeds = %d, want 49", receipt.Proceeds)
	}
	if receipt.Listing.State() != model.ListingStateSoldOut {
		t.Errorf("State() = %q, want %q", receipt.Listing.State(), model.ListingStateSoldOut)
	}

	bal, err := buyerClient.GetBalance(ctx, 1, buyer)
	if err != nil {
		t.Fatalf("GetBalance() error = %v", err)
	}
	if bal != 10 {
		t.Errorf("buyer balance = %d, want 10", bal)
	}

	name, err := buyerClient.GetTrackName(ctx, 1)
	if err != nil {
		t.Fatalf("GetTrackName() error = %v", err)
	}
	if name != "Levitating" {
		t.Errorf("GetTrackName() = %q, want %q", name, "Levitating")
	}

	listings, err := buyerClient.GetListings(ctx)
	if err != nil {
		t.Fatalf("GetListings() error = %v", err)
	}
	if len(listings) != 0 {
		t.Errorf("len(listings) = %d, want 0", len(listings))
	}

	if got := env.book.Balance(feeRecipient); got != 1 {
		t.Errorf("fee recipient credited %d, want 1", got)
	}
	if got := env.book.Balance(seller); got != 49 {
		t.Errorf("seller credited %d, want 49", got)
	}
}

func TestServer_MintAndList(t *testing.T) {
	env := newTestEnv(t, nil)
	price := model.Amount(3)

	resp, err := env.client(seller).Mint(context.Background(), MintRequest{Supply: 4, URI: "abc", ListPrice: &price}, 4)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	if resp.Listing == nil {
		t.Fatal("Listing = nil, want listing")
	}
	if resp.Listing.QuantityListed != 4 || resp.Listing.UnitPrice != 3 {
		t.Errorf("Listing = %+v, want 4 @ 3", resp.Listing)
	}
}

func TestServer_MintBatch(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.client(seller)
	ctx := context.Background()

	tracks, err := c.MintBatch(ctx, BatchMintRequest{
		Supplies:   []uint64{4, 5, 6, 7},
		URIs:       []string{"abc", "def", "hef", "avd"},
		TrackNames: []string{"1111", "2222", "3333", "4444"},
	}, 22)
	if err != nil {
		t.Fatalf("MintBatch() error = %v", err)
	}
	if len(tracks) != 4 {
		t.Fatalf("len(tracks) = %d, want 4", len(tracks))
	}
	if tracks[3].Name != "4444" || tracks[3].TotalSupply != 7 {
		t.Errorf("tracks[3] = %+v, want 4444 x7", tracks[3])
	}

	_, err = c.MintBatch(ctx, BatchMintRequest{
		Supplies: []uint64{1, 2},
		URIs:     []string{"abc"},
	}, 3)
	if !errors.Is(err, model.ErrArrayLengthMismatch) {
		t.Errorf("MintBatch() error = %v, want %v", err, model.ErrArrayLengthMismatch)
	}
}

func TestServer_Errors(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	sellerClient := env.client(seller)
	if _, err := sellerClient.Mint(ctx, MintRequest{Supply: 10, URI: "abc"}, 10); err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	listing, err := sellerClient.CreateListing(ctx, CreateListingRequest{TrackID: 1, Quantity: 5, UnitPrice: 2})
	if err != nil {
		t.Fatalf("CreateListing() error = %v", err)
	}

	tests := []struct {
		name   string
		do     func() error
		want   error
		status int
	}{
		{
			name: "short mint payment",
			do: func() error {
				_, err := sellerClient.Mint(ctx, MintRequest{Supply: 10, URI: "abc"}, 9)
				return err
			},
			want:   model.ErrInsufficientPayment,
			status: http.StatusPaymentRequired,
		},
		{
			name: "unknown track",
			do: func() error {
				_, err := sellerClient.GetTrack(ctx, 99)
				return err
			},
			want:   model.ErrUnknownTrack,
			status: http.StatusNotFound,
		},
		{
			name: "unknown listing",
			do: func() error {
				_, err := sellerClient.GetListing(ctx, 99)
				return err
			},
			want:   model.ErrUnknownListing,
			status: http.StatusNotFound,
		},
		{
			name: "over listing",
			do: func() error {
				_, err := sellerClient.CreateListing(ctx, CreateListingRequest{TrackID: 1, Quantity: 6, UnitPrice: 2})
				return err
			},
			want:   model.ErrInsufficientBalance,
			status: http.StatusConflict,
		},
		{
			name: "list never minted track",
			do: func() error {
				_, err := sellerClient.CreateListing(ctx, CreateListingRequest{TrackID: 99, Quantity: 1, UnitPrice: 2})
				return err
			},
			want:   model.ErrInsufficientBalance,
			status: http.StatusConflict,
		},
		{
			name: "buy from unknown listing",
			do: func() error {
				_, err := env.client(buyer).Buy(ctx, 99, BuyRequest{TrackID: 1, Quantity: 1}, 2)
				return err
			},
			want:   model.ErrListingInactive,
			status: http.StatusConflict,
		},
		{
			name: "cancel by non-seller",
			do: func() error {
				_, err := env.client(buyer).Cancel(ctx, listing.ID)
				return err
			},
			want:   model.ErrUnauthorized,
			status: http.StatusForbidden,
		},
		{
			name: "missing caller",
			do: func() error {
				_, err := NewClient(env.server.URL).Mint(ctx, MintRequest{Supply: 1, URI: "abc"}, 1)
				return err
			},
			want:   model.ErrInvalidAddress,
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.do()
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error %T is not *APIError", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
			}
		})
	}

	got, err := sellerClient.GetListing(ctx, listing.ID)
	if err != nil {
		t.Fatalf("GetListing() error = %v", err)
	}
	if !got.Active() {
		t.Error("listing should still be active after rejected calls")
	}
}

func TestServer_BadRequests(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name    string
		method  string
		path    string
		payment string
		body    string
	}{
		{name: "non-numeric id", method: "GET", path: "/v1/tracks/abc"},
		{name: "invalid payment", method: "POST", path: "/v1/tracks", payment: "-1", body: `{"supply":1,"uri":"abc"}`},
		{name: "unknown field", method: "POST", path: "/v1/tracks", payment: "1", body: `{"supply":1,"uri":"abc","color":"red"}`},
		{name: "malformed body", method: "POST", path: "/v1/listings", body: `{`},
		{name: "invalid since", method: "GET", path: "/v1/events?since=x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, env.server.URL+tt.path, strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("NewRequest() error = %v", err)
			}
			req.Header.Set(HeaderCaller, seller.Hex())
			if tt.payment != "" {
				req.Header.Set(HeaderPayment, tt.payment)
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("Do() error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusBadRequest)
			}
			var er ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if er.Error.Code != CodeBadRequest {
				t.Errorf("Code = %q, want %q", er.Error.Code, CodeBadRequest)
			}
		})
	}
}

func TestServer_Events(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	c := env.client(seller)

	for i := 0; i < 3; i++ {
		if _, err := c.Mint(ctx, MintRequest{Supply: 1, URI: "abc"}, 1); err != nil {
			t.Fatalf("Mint() error = %v", err)
		}
	}

	resp, err := c.GetEvents(ctx, 0, 0)
	if err != nil {
		t.Fatalf("GetEvents() error = %v", err)
	}
	if len(resp.Events) != 3 {
		t.Fatalf("len(Events) = %d, want 3", len(resp.Events))
	}
	if resp.LastSeq != 3 {
		t.Errorf("LastSeq = %d, want 3", resp.LastSeq)
	}
	minted, ok := resp.Events[0].Data.(*model.Minted)
	if !ok {
		t.Fatalf("Data = %T, want *model.Minted", resp.Events[0].Data)
	}
	if minted.TrackID != 1 {
		t.Errorf("TrackID = %d, want 1", minted.TrackID)
	}

	resp, err = c.GetEvents(ctx, 1, 1)
	if err != nil {
		t.Fatalf("GetEvents() error = %v", err)
	}
	if len(resp.Events) != 1 || resp.Events[0].Seq != 2 {
		t.Errorf("GetEvents(1, 1) = %+v, want only seq 2", resp.Events)
	}
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := NewClient(env.server.URL).Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("Status = %q, want %q", resp.Status, "ok")
	}
}

func TestServer_Authentication(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	verifier := auth.NewVerifier(map[string]*rsa.PublicKey{"ops": &key.PublicKey}, time.Minute)
	env := newTestEnv(t, verifier)
	ctx := context.Background()

	t.Run("unsigned request rejected", func(t *testing.T) {
		_, err := env.client(seller).GetListings(ctx)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("error = %v, want *APIError", err)
		}
		if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Code != CodeUnauthenticated {
			t.Errorf("got %d %q, want %d %q", apiErr.StatusCode, apiErr.Code, http.StatusUnauthorized, CodeUnauthenticated)
		}
	})

	t.Run("signed request accepted", func(t *testing.T) {
		creds := &auth.Credentials{KeyID: "ops", PrivateKey: key}
		c := env.client(seller, WithCredentials(creds))
		if _, err := c.Mint(ctx, MintRequest{Supply: 1, URI: "abc"}, 1); err != nil {
			t.Fatalf("Mint() error = %v", err)
		}
	})

	t.Run("health is open", func(t *testing.T) {
		if _, err := NewClient(env.server.URL).Health(ctx); err != nil {
			t.Errorf("Health() error = %v", err)
		}
	})
}

func TestStatusForCode(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{model.CodeInsufficientPayment, http.StatusPaymentRequired},
		{model.CodeIncorrectPayment, http.StatusPaymentRequired},
		{model.CodePaymentFailed, http.StatusPaymentRequired},
		{model.CodeUnauthorized, http.StatusForbidden},
		{model.CodeUnknownTrack, http.StatusNotFound},
		{model.CodeUnknownListing, http.StatusNotFound},
		{model.CodeListingInactive, http.StatusConflict},
		{model.CodeQuantityExceedsAvailable, http.StatusConflict},
		{model.CodeInsufficientBalance, http.StatusConflict},
		{model.CodeInvalidQuantity, http.StatusBadRequest},
		{model.CodeArrayLengthMismatch, http.StatusBadRequest},
		{CodeUnauthenticated, http.StatusUnauthorized},
		{model.CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := StatusForCode(tt.code); got != tt.want {
				t.Errorf("StatusForCode(%q) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}
