package usecase

import (
	"math/big"
	"sync"

	"github.com/galleria/goapi/base/ctx"
	"github.com/galleria/goapi/domain"
	"github.com/galleria/goapi/domain/bank"
)

type whitelistImpl struct {
	mu      sync.Mutex
	feed    *domain.EventFeed
	admin   domain.Address
	members map[domain.Address]bool
}

// NewWhitelist returns the membership-only withdraw authorization policy:
// a user may withdraw any amount of any asset iff whitelisted.
func NewWhitelist(admin domain.Address, feed *domain.EventFeed) bank.WhitelistUsecase {
	if feed == nil {
		feed = domain.NewEventFeed()
	}
	return &whitelistImpl{
		feed:    feed,
		admin:   admin.ToLower(),
		members: map[domain.Address]bool{},
	}
}

func (w *whitelistImpl) CanWithdraw(c ctx.Ctx, user domain.Address, assetType domain.Address, amount *big.Int) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.members[user.ToLower()], nil
}

func (w *whitelistImpl) AddToWhitelist(c ctx.Ctx, caller, user domain.Address) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !caller.Equals(w.admin) {
		return bank.ErrNotAdmin
	}
	if w.members[user.ToLower()] {
		return bank.ErrAlreadyWhitelisted
	}
	w.members[user.ToLower()] = true
	w.feed.Emit(bank.AddedToWhitelistEvent{User: user.ToLower()})
	return nil
}

func (w *whitelistImpl) RemoveFromWhitelist(c ctx.Ctx, caller, user domain.Address) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !caller.Equals(w.admin) {
		return bank.ErrNotAdmin
	}
	if !w.members[user.ToLower()] {
		return bank.ErrNotWhitelisted
	}
	delete(w.members, user.ToLower())
	w.feed.Emit(bank.RemovedFromWhitelistEvent{User: user.ToLower()})
	return nil
}

func (w *whitelistImpl) IsWhitelisted(c ctx.Ctx, user domain.Address) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.members[user.ToLower()], nil
}
