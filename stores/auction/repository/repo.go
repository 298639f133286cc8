package repository

import (
	"sync"

	"golang.org/x/xerrors"

	"github.com/galleria/goapi/base/ctx"
	"github.com/galleria/goapi/domain"
	"github.com/galleria/goapi/domain/auction"
)

var ErrIndexOutOfRange = xerrors.Errorf("auction index out of range: %w", domain.ErrNotFound)

type impl struct {
	mu    sync.RWMutex
	arena []*auction.Auction
	slots map[domain.AssetId]int
}

// New returns the in-memory auction store: a dense arena of active records
// plus an asset-id to slot index. Removal swaps the last record into the
// freed slot, so enumeration by index is gap-free but unordered after
// removals.
func New() auction.Repo {
	return &impl{slots: map[domain.AssetId]int{}}
}

func (im *impl) Get(c ctx.Ctx, assetId domain.AssetId) (*auction.Auction, error) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	slot, ok := im.slots[assetId]
	if !ok {
		return nil, auction.ErrNotOnAuction
	}
	return im.arena[slot], nil
}

func (im *impl) Insert(c ctx.Ctx, a *auction.Auction) error {
	im.mu.Lock()
	defer im.mu.Unlock()
	if _, ok := im.slots[a.AssetId]; ok {
		return auction.ErrAlreadyOnAuction
	}
	im.arena = append(im.arena, a)
	im.slots[a.AssetId] = len(im.arena) - 1
	return nil
}

func (im *impl) Remove(c ctx.Ctx, assetId domain.AssetId) error {
	im.mu.Lock()
	defer im.mu.Unlock()
	slot, ok := im.slots[assetId]
	if !ok {
		return auction.ErrNotOnAuction
	}
	last := len(im.arena) - 1
	if slot != last {
		moved := im.arena[last]
		im.arena[slot] = moved
		im.slots[moved.AssetId] = slot
	}
	im.arena[last] = nil
	im.arena = im.arena[:last]
	delete(im.slots, assetId)
	return nil
}

func (im *impl) ByIndex(c ctx.Ctx, index int) (*auction.Auction, error) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	if index < 0 || index >= len(im.arena) {
		return nil, ErrIndexOutOfRange
	}
	return im.arena[index], nil
}

func (im *impl) Count(c ctx.Ctx) int {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return len(im.arena)
}

func (im *impl) CountBySeller(c ctx.Ctx, seller domain.Address) int {
	im.mu.RLock()
	defer im.mu.RUnlock()
	n := 0
	for _, a := range im.arena {
		if a.Seller.Equals(seller) {
			n++
		}
	}
	return n
}
