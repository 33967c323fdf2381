package market

import (
	"sort"

	"github.com/rickgao/track-market/internal/ledger"
	"github.com/rickgao/track-market/internal/model"
)

// listingBook holds every listing ever opened. Callers hold the ledger lock.
type listingBook struct {
	// All listings indexed by id, terminal ones included.
	listings map[uint64]*model.Listing

	// Listings that can still be bought from.
	activeSet map[uint64]struct{}

	nextID uint64
}

func newListingBook() *listingBook {
	return &listingBook{
		listings:  make(map[uint64]*model.Listing),
		activeSet: make(map[uint64]struct{}),
		nextID:    1,
	}
}

// getLocked returns a copy of a listing.
func (b *listingBook) getLocked(id uint64) (model.Listing, bool) {
	l, ok := b.listings[id]
	if !ok {
		return model.Listing{}, false
	}
	return *l, true
}

// activeLocked returns copies of all active listings in id order.
func (b *listingBook) activeLocked() []model.Listing {
	result := make([]model.Listing, 0, len(b.activeSet))
	for id := range b.activeSet {
		if l, ok := b.listings[id]; ok {
			result = append(result, *l)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

// committedLocked sums the remaining quantity of seller's active listings
// for a track.
func (b *listingBook) committedLocked(seller model.Address, trackID uint64) uint64 {
	var total uint64
	for id := range b.activeSet {
		l := b.listings[id]
		if l.Seller == seller && l.TrackID == trackID {
			total += l.Remaining()
		}
	}
	return total
}

// insertLocked assigns the next id to l and stores it.
func (b *listingBook) insertLocked(tx *ledger.Tx, l model.Listing) model.Listing {
	id := b.nextID
	l.ID = id
	b.nextID++
	b.listings[id] = &l
	b.activeSet[id] = struct{}{}

	tx.OnRollback(func() {
		delete(b.listings, id)
		delete(b.activeSet, id)
		b.nextID = id
	})
	return l
}

// recordSaleLocked adds quantity to a listing's sold count and retires it
// when nothing remains.
func (b *listingBook) recordSaleLocked(tx *ledger.Tx, id, quantity uint64) model.Listing {
	l := b.listings[id]
	prevSold := l.QuantitySold
	l.QuantitySold += quantity
	if !l.Active() {
		delete(b.activeSet, id)
	}

	tx.OnRollback(func() {
		l.QuantitySold = prevSold
		b.activeSet[id] = struct{}{}
	})
	return *l
}

// cancelLocked marks a listing cancelled.
func (b *listingBook) cancelLocked(tx *ledger.Tx, id uint64) model.Listing {
	l := b.listings[id]
	l.Cancelled = true
	delete(b.activeSet, id)

	tx.OnRollback(func() {
		l.Cancelled = false
		b.activeSet[id] = struct{}{}
	})
	return *l
}
