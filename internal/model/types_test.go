package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestZipMintItems(t *testing.T) {
	t.Run("aligned", func(t *testing.T) {
		items, err := ZipMintItems(
			[]uint64{4, 5, 6, 7},
			[]string{"abc", "def", "hef", "avd"},
			[]string{"1111", "2222", "3333", "4444"},
		)
		if err != nil {
			t.Fatalf("ZipMintItems() error = %v", err)
		}
		if len(items) != 4 {
			t.Fatalf("len(items) = %d, want 4", len(items))
		}
		if items[2].Supply != 6 || items[2].URI != "hef" || items[2].TrackName != "3333" {
			t.Errorf("items[2] = %+v, want {6 hef 3333}", items[2])
		}
	})

	t.Run("nil names default to empty", func(t *testing.T) {
		items, err := ZipMintItems([]uint64{1, 2}, []string{"a", "b"}, nil)
		if err != nil {
			t.Fatalf("ZipMintItems() error = %v", err)
		}
		for i, it := range items {
			if it.TrackName != "" {
				t.Errorf("items[%d].TrackName = %q, want empty", i, it.TrackName)
			}
		}
	})

	tests := []struct {
		name     string
		supplies []uint64
		uris     []string
		names    []string
	}{
		{"uris short", []uint64{4, 5, 6, 7}, []string{"abc", "def", "hef"}, nil},
		{"names short", []uint64{4, 5}, []string{"abc", "def"}, []string{"1111"}},
		{"names empty slice", []uint64{4}, []string{"abc"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ZipMintItems(tt.supplies, tt.uris, tt.names)
			if !errors.Is(err, ErrArrayLengthMismatch) {
				t.Errorf("error = %v, want ErrArrayLengthMismatch", err)
			}
		})
	}
}

func TestListing_State(t *testing.T) {
	tests := []struct {
		name      string
		listing   Listing
		state     ListingState
		active    bool
		remaining uint64
	}{
		{"created", Listing{QuantityListed: 10}, ListingStateCreated, true, 10},
		{"partially sold", Listing{QuantityListed: 10, QuantitySold: 4}, ListingStatePartiallySold, true, 6},
		{"sold out", Listing{QuantityListed: 10, QuantitySold: 10}, ListingStateSoldOut, false, 0},
		{"cancelled", Listing{QuantityListed: 10, QuantitySold: 3, Cancelled: true}, ListingStateCancelled, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.listing.State(); got != tt.state {
				t.Errorf("State() = %q, want %q", got, tt.state)
			}
			if got := tt.listing.Active(); got != tt.active {
				t.Errorf("Active() = %v, want %v", got, tt.active)
			}
			if got := tt.listing.Remaining(); got != tt.remaining {
				t.Errorf("Remaining() = %d, want %d", got, tt.remaining)
			}
		})
	}
}

func TestMulAmount(t *testing.T) {
	got, err := MulAmount(10, 25)
	if err != nil {
		t.Fatalf("MulAmount() error = %v", err)
	}
	if got != 250 {
		t.Errorf("MulAmount(10, 25) = %d, want 250", got)
	}

	if _, err := MulAmount(math.MaxUint64, 2); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("overflow error = %v, want ErrInvalidQuantity", err)
	}
}

func TestAddAmount(t *testing.T) {
	if _, err := AddAmount(math.MaxUint64, 1); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("overflow error = %v, want ErrInvalidQuantity", err)
	}
	got, err := AddAmount(40, 2)
	if err != nil || got != 42 {
		t.Errorf("AddAmount(40, 2) = %d, %v; want 42, nil", got, err)
	}
}

func TestSplitFee(t *testing.T) {
	tests := []struct {
		payment Amount
		bps     uint32
		fee     Amount
		rest    Amount
	}{
		{1000, 250, 25, 975},
		{999, 250, 24, 975}, // floor
		{1000, 0, 0, 1000},
		{1000, 10000, 1000, 0},
		{1000, 20000, 1000, 0}, // clamped
		{math.MaxUint64, 10000, math.MaxUint64, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d@%d", tt.payment, tt.bps), func(t *testing.T) {
			fee, rest := SplitFee(tt.payment, tt.bps)
			if fee != tt.fee || rest != tt.rest {
				t.Errorf("SplitFee() = (%d, %d), want (%d, %d)", fee, rest, tt.fee, tt.rest)
			}
			if fee+rest != tt.payment {
				t.Errorf("fee + rest = %d, want %d", fee+rest, tt.payment)
			}
		})
	}
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress(" 0x00000000000000000000000000000000000000aa ")
	if err != nil {
		t.Fatalf("ParseAddress() error = %v", err)
	}
	if addr[19] != 0xaa {
		t.Errorf("addr = %s, want ...aa", addr.Hex())
	}

	for _, in := range []string{"", "0x1234", "not-an-address", "0x0000000000000000000000000000000000000000"} {
		if _, err := ParseAddress(in); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("ParseAddress(%q) error = %v, want ErrInvalidAddress", in, err)
		}
	}
}

func TestCleanText(t *testing.T) {
	// "e" + combining acute composes to U+00E9 under NFC.
	if got := CleanText("  Cafe\u0301 "); got != "Caf\u00e9" {
		t.Errorf("CleanText() = %q, want %q", got, "Caf\u00e9")
	}
}

func TestErrorCode(t *testing.T) {
	wrapped := fmt.Errorf("listing 3: %w", ErrListingInactive)
	if got := ErrorCode(wrapped); got != CodeListingInactive {
		t.Errorf("ErrorCode() = %q, want %q", got, CodeListingInactive)
	}
	if got := ErrorCode(errors.New("boom")); got != CodeInternal {
		t.Errorf("ErrorCode() = %q, want %q", got, CodeInternal)
	}
	if got := ErrorForCode(CodeQuantityExceedsAvailable); got != ErrQuantityExceedsAvailable {
		t.Errorf("ErrorForCode() = %v, want ErrQuantityExceedsAvailable", got)
	}
	if got := ErrorForCode("nope"); got != nil {
		t.Errorf("ErrorForCode(unknown) = %v, want nil", got)
	}
}

func TestEvent_UnmarshalJSON(t *testing.T) {
	seller, _ := ParseAddress("0x00000000000000000000000000000000000000b1")
	in := Event{
		ID:    uuid.New(),
		Seq:   7,
		Kind:  EventListingCreated,
		TxRef: uuid.New(),
		At:    time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		Data: &ListingCreated{
			ListingID: 3,
			TrackID:   1,
			Seller:    seller,
			Quantity:  10,
			UnitPrice: 5,
		},
	}

	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var out Event
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	data, ok := out.Data.(*ListingCreated)
	if !ok {
		t.Fatalf("Data type = %T, want *ListingCreated", out.Data)
	}
	if data.Seller != seller || data.Quantity != 10 {
		t.Errorf("Data = %+v", data)
	}
	if out.Seq != 7 || out.ID != in.ID {
		t.Errorf("Seq/ID = %d/%s, want 7/%s", out.Seq, out.ID, in.ID)
	}

	if err := json.Unmarshal([]byte(`{"kind":"bogus"}`), &out); err == nil {
		t.Error("expected error for unknown kind")
	}
}
