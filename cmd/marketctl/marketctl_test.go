package main

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rickgao/track-market/internal/api"
	"github.com/rickgao/track-market/internal/model"
)

func TestDeriveFeedURL(t *testing.T) {
	tests := []struct {
		server  string
		path    string
		want    string
		wantErr bool
	}{
		{"http://localhost:8080", "/v1/feed", "ws://localhost:8080/v1/feed", false},
		{"https://market.example.com/", "/v1/feed", "wss://market.example.com/v1/feed", false},
		{"https://market.example.com/api", "v1/feed", "wss://market.example.com/api/v1/feed", false},
		{"ws://localhost:8080?x=1", "/feed", "ws://localhost:8080/feed", false},
		{"ftp://localhost", "/v1/feed", "", true},
	}

	for _, tt := range tests {
		got, err := deriveFeedURL(tt.server, tt.path)
		if tt.wantErr {
			if err == nil {
				t.Errorf("deriveFeedURL(%q) expected error", tt.server)
			}
			continue
		}
		if err != nil {
			t.Errorf("deriveFeedURL(%q) error = %v", tt.server, err)
			continue
		}
		if got != tt.want {
			t.Errorf("deriveFeedURL(%q, %q) = %q, want %q", tt.server, tt.path, got, tt.want)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   model.Amount
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1234567, "1,234,567"},
		{model.Amount(math.MaxUint64), "18446744073709551615"},
	}
	for _, tt := range tests {
		if got := formatAmount(tt.in); got != tt.want {
			t.Errorf("formatAmount(%d) = %q, want %q", uint64(tt.in), got, tt.want)
		}
	}
}

func TestParseUints(t *testing.T) {
	got, err := parseUints([]string{"1", " 20 ", "300"})
	if err != nil {
		t.Fatalf("parseUints error = %v", err)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 20 || got[2] != 300 {
		t.Errorf("parseUints = %v, want [1 20 300]", got)
	}

	if _, err := parseUints([]string{"1", "-2"}); err == nil {
		t.Error("parseUints with negative value expected error")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New("boom"), 1},
		{&api.APIError{StatusCode: 400}, 2},
		{&api.APIError{StatusCode: 402}, 3},
		{fmt.Errorf("wrapped: %w", &api.APIError{StatusCode: 403}), 4},
		{&api.APIError{StatusCode: 404}, 5},
		{&api.APIError{StatusCode: 409}, 6},
		{&api.APIError{StatusCode: 503}, 7},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestPrintListings(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seller := model.Address{0x01}
	listings := []model.Listing{{
		ID:             7,
		TrackID:        3,
		Seller:         seller,
		UnitPrice:      12500,
		QuantityListed: 10,
		QuantitySold:   4,
		CreatedAt:      now.Add(-2 * time.Hour),
	}}

	var buf bytes.Buffer
	if err := printListings(&buf, listings, now); err != nil {
		t.Fatalf("printListings error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"12,500", seller.Hex(), "2 hours ago", string(model.ListingStatePartiallySold)} {
		if !strings.Contains(out, want) {
			t.Errorf("printListings output missing %q:\n%s", want, out)
		}
	}
}

func TestEventLine(t *testing.T) {
	e := model.Event{
		Seq:  5,
		Kind: model.EventItemSold,
		At:   time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		Data: map[string]int{"quantity": 2},
	}
	want := "5\t2026-01-01T12:00:00Z\titem_sold\t{\"quantity\":2}"
	if got := eventLine(e); got != want {
		t.Errorf("eventLine = %q, want %q", got, want)
	}
}
