package usecase

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/galleria/goapi/base/clock"
	"github.com/galleria/goapi/base/ctx"
	"github.com/galleria/goapi/base/log"
	"github.com/galleria/goapi/base/metrics"
	"github.com/galleria/goapi/domain"
	"github.com/galleria/goapi/domain/auction"
	"github.com/galleria/goapi/domain/bank"
)

// EngineCfg carries the collaborators of the auction engine.
type EngineCfg struct {
	Repo   auction.Repo
	Assets domain.AssetRegistry
	Bank   bank.Usecase
	// Tokens is bound to the engine's own custody address; the accumulated
	// platform cut lands there and WithdrawCut sweeps it out.
	Tokens domain.TokenRegistry
	Feed   *domain.EventFeed
	Clock  clock.Clock
	Admin  domain.Address
	// Address under which the engine escrows assets and accumulates cuts.
	Address domain.Address
	// PaymentAsset is the token type auctions settle in.
	PaymentAsset domain.Address
	// Cuts in basis points. DelayedCancelCut applies to minting auctions.
	AuctioneerCut              int64
	AuctioneerDelayedCancelCut int64
}

type engineImpl struct {
	mu sync.Mutex

	repo    auction.Repo
	assets  domain.AssetRegistry
	bank    bank.Usecase
	tokens  domain.TokenRegistry
	feed    *domain.EventFeed
	clock   clock.Clock
	metrics metrics.Service

	admin        domain.Address
	address      domain.Address
	paymentAsset domain.Address

	auctioneerCut              int64
	auctioneerDelayedCancelCut int64
	paused                     bool
}

func NewEngine(cfg *EngineCfg) auction.Usecase {
	feed := cfg.Feed
	if feed == nil {
		feed = domain.NewEventFeed()
	}
	ck := cfg.Clock
	if ck == nil {
		ck = clock.WallClock{}
	}
	return &engineImpl{
		repo:                       cfg.Repo,
		assets:                     cfg.Assets,
		bank:                       cfg.Bank,
		tokens:                     cfg.Tokens,
		feed:                       feed,
		clock:                      ck,
		metrics:                    metrics.New("auction"),
		admin:                      cfg.Admin.ToLower(),
		address:                    cfg.Address.ToLower(),
		paymentAsset:               cfg.PaymentAsset.ToLower(),
		auctioneerCut:              cfg.AuctioneerCut,
		auctioneerDelayedCancelCut: cfg.AuctioneerDelayedCancelCut,
	}
}

func validListing(assetId domain.AssetId, startingPrice, endingPrice *big.Int, duration time.Duration) error {
	if assetId.IsEmpty() {
		return auction.ErrEmptyAssetId
	}
	if startingPrice == nil || endingPrice == nil || endingPrice.Sign() < 0 || startingPrice.Cmp(endingPrice) < 0 {
		return auction.ErrInvalidPriceRange
	}
	if duration < auction.MinDuration {
		return auction.ErrDurationTooShort
	}
	return nil
}

// list escrows the asset and records the listing. Caller must hold e.mu.
func (e *engineImpl) list(c ctx.Ctx, a *auction.Auction, escrowFrom domain.Address) error {
	if err := e.repo.Insert(c, a); err != nil {
		return err
	}
	if !escrowFrom.IsNull() {
		if err := e.assets.TransferCustody(c, a.AssetId, escrowFrom, e.address); err != nil {
			if rerr := e.repo.Remove(c, a.AssetId); rerr != nil {
				c.WithFields(log.Fields{"assetId": a.AssetId, "err": rerr}).Error("listing rollback failed")
			}
			return err
		}
	}
	e.feed.Emit(auction.CreatedEvent{
		AssetId:       a.AssetId,
		Seller:        a.Seller,
		StartingPrice: new(big.Int).Set(a.StartingPrice),
		EndingPrice:   new(big.Int).Set(a.EndingPrice),
		Duration:      a.Duration,
		DelayedCancel: a.DelayedCancel,
	})
	e.metrics.BumpSum("create", 1)
	return nil
}

func (e *engineImpl) CreateAuction(c ctx.Ctx, caller domain.Address, assetId domain.AssetId, startingPrice, endingPrice *big.Int, duration time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return auction.ErrPaused
	}
	if err := validListing(assetId, startingPrice, endingPrice, duration); err != nil {
		return err
	}
	owner, err := e.assets.OwnerOf(c, assetId)
	if err != nil {
		return err
	}
	if !owner.Equals(caller) {
		return auction.ErrNotAssetOwner
	}

	return e.list(c, &auction.Auction{
		AssetId:       assetId,
		Seller:        caller.ToLower(),
		StartingPrice: new(big.Int).Set(startingPrice),
		EndingPrice:   new(big.Int).Set(endingPrice),
		Duration:      duration,
		StartedAt:     e.clock.Now(),
	}, caller)
}

func (e *engineImpl) CreateMintingAuction(c ctx.Ctx, caller domain.Address, assetId domain.AssetId, startingPrice, endingPrice *big.Int, duration time.Duration, seller domain.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !caller.Equals(e.admin) {
		return auction.ErrNotAdmin
	}
	if e.paused {
		return auction.ErrPaused
	}
	if err := validListing(assetId, startingPrice, endingPrice, duration); err != nil {
		return err
	}
	if seller.IsNull() {
		return auction.ErrNullSeller
	}
	owner, err := e.assets.OwnerOf(c, assetId)
	if err != nil {
		return err
	}

	// a freshly minted asset may already sit in engine custody; otherwise it
	// is escrowed from the recorded seller
	escrowFrom := domain.Address("")
	if !owner.Equals(e.address) {
		if !owner.Equals(seller) {
			return auction.ErrNotAssetOwner
		}
		escrowFrom = seller
	}

	return e.list(c, &auction.Auction{
		AssetId:       assetId,
		Seller:        seller.ToLower(),
		StartingPrice: new(big.Int).Set(startingPrice),
		EndingPrice:   new(big.Int).Set(endingPrice),
		Duration:      duration,
		StartedAt:     e.clock.Now(),
		DelayedCancel: true,
	}, escrowFrom)
}

func (e *engineImpl) GetCurrentPrice(c ctx.Ctx, assetId domain.AssetId) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, err := e.repo.Get(c, assetId)
	if err != nil {
		return nil, err
	}
	return a.CurrentPrice(e.clock.Now()), nil
}

func (e *engineImpl) Bid(c ctx.Ctx, caller domain.Address, assetId domain.AssetId, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return auction.ErrPaused
	}
	a, err := e.repo.Get(c, assetId)
	if err != nil {
		return err
	}
	now := e.clock.Now()
	if a.DelayedCancel && a.Expired(now) {
		return auction.ErrBiddingClosed
	}
	price := a.CurrentPrice(now)
	if amount == nil || amount.Cmp(price) < 0 {
		return auction.ErrBidTooLow
	}

	cutBps := e.auctioneerCut
	if a.DelayedCancel {
		cutBps = e.auctioneerDelayedCancelCut
	}
	cut := domain.CutOf(price, cutBps)

	// the bidder pays the current price, not the bid amount
	if err := e.bank.SettleExchange(c, e.address, e.paymentAsset, price, cut, caller, a.Seller, e.address, "auction "+assetId.String()); err != nil {
		return err
	}
	if err := e.repo.Remove(c, assetId); err != nil {
		c.WithFields(log.Fields{"assetId": assetId, "err": err}).Error("settled auction removal failed")
		return err
	}
	e.feed.Emit(auction.SuccessfulEvent{
		AssetId:    assetId,
		Winner:     caller.ToLower(),
		TotalPrice: price,
	})
	e.metrics.BumpSum("settle", 1)

	if err := e.assets.TransferCustody(c, assetId, e.address, caller); err != nil {
		c.WithFields(log.Fields{"assetId": assetId, "winner": caller, "err": err}).Error("asset handover failed")
		return err
	}
	return nil
}

func (e *engineImpl) CancelAuction(c ctx.Ctx, caller domain.Address, assetId domain.AssetId) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return auction.ErrPaused
	}
	a, err := e.repo.Get(c, assetId)
	if err != nil {
		return err
	}
	if !a.Seller.Equals(caller) {
		return auction.ErrNotSeller
	}
	if a.DelayedCancel && !a.Expired(e.clock.Now()) {
		return auction.ErrCancelTooEarly
	}
	return e.cancel(c, a)
}

func (e *engineImpl) CancelAuctionWhenPaused(c ctx.Ctx, caller domain.Address, assetId domain.AssetId) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !caller.Equals(e.admin) {
		return auction.ErrNotAdmin
	}
	if !e.paused {
		return auction.ErrNotPaused
	}
	a, err := e.repo.Get(c, assetId)
	if err != nil {
		return err
	}
	return e.cancel(c, a)
}

// cancel removes the listing and returns the asset to its seller. Caller must
// hold e.mu.
func (e *engineImpl) cancel(c ctx.Ctx, a *auction.Auction) error {
	if err := e.repo.Remove(c, a.AssetId); err != nil {
		return err
	}
	e.feed.Emit(auction.CancelledEvent{AssetId: a.AssetId})
	e.metrics.BumpSum("cancel", 1)

	if err := e.assets.TransferCustody(c, a.AssetId, e.address, a.Seller); err != nil {
		c.WithFields(log.Fields{"assetId": a.AssetId, "seller": a.Seller, "err": err}).Error("asset return failed")
		return err
	}
	return nil
}

func (e *engineImpl) RemoveAuction(c ctx.Ctx, caller domain.Address, assetId domain.AssetId) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !caller.Equals(e.admin) {
		return auction.ErrNotAdmin
	}
	if !e.paused {
		return auction.ErrNotPaused
	}
	if err := e.repo.Remove(c, assetId); err != nil {
		return err
	}
	// custody intentionally stays with the engine
	e.feed.Emit(auction.RemovedEvent{AssetId: assetId})
	return nil
}

func (e *engineImpl) SetAuctioneerCut(c ctx.Ctx, caller domain.Address, bps int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !caller.Equals(e.admin) {
		return auction.ErrNotAdmin
	}
	if !domain.ValidBps(bps) {
		return auction.ErrInvalidCut
	}
	e.auctioneerCut = bps
	return nil
}

func (e *engineImpl) SetAuctioneerDelayedCancelCut(c ctx.Ctx, caller domain.Address, bps int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !caller.Equals(e.admin) {
		return auction.ErrNotAdmin
	}
	if !domain.ValidBps(bps) {
		return auction.ErrInvalidCut
	}
	e.auctioneerDelayedCancelCut = bps
	return nil
}

func (e *engineImpl) WithdrawCut(c ctx.Ctx, caller domain.Address, assetType domain.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !caller.Equals(e.admin) {
		return auction.ErrNotAdmin
	}
	accumulated, err := e.tokens.ExternalBalanceOf(c, assetType, e.address)
	if err != nil {
		return err
	}
	if accumulated.Sign() <= 0 {
		return nil
	}
	return e.tokens.Push(c, assetType, e.admin, accumulated)
}

func (e *engineImpl) IsOnAuction(c ctx.Ctx, assetId domain.AssetId) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.repo.Get(c, assetId); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (e *engineImpl) GetAuction(c ctx.Ctx, assetId domain.AssetId) (*auction.Auction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.repo.Get(c, assetId)
}

func (e *engineImpl) TotalAuctions(c ctx.Ctx) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.repo.Count(c), nil
}

func (e *engineImpl) TotalAuctionsBySeller(c ctx.Ctx, seller domain.Address) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.repo.CountBySeller(c, seller), nil
}

func (e *engineImpl) AuctionByIndex(c ctx.Ctx, index int) (*auction.Auction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.repo.ByIndex(c, index)
}

func (e *engineImpl) Pause(c ctx.Ctx, caller domain.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !caller.Equals(e.admin) {
		return auction.ErrNotAdmin
	}
	if e.paused {
		return auction.ErrPaused
	}
	e.paused = true
	return nil
}

func (e *engineImpl) Unpause(c ctx.Ctx, caller domain.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !caller.Equals(e.admin) {
		return auction.ErrNotAdmin
	}
	if !e.paused {
		return auction.ErrNotPaused
	}
	e.paused = false
	return nil
}

func (e *engineImpl) Paused(c ctx.Ctx) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}
