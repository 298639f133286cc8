package auction

import (
	"math/big"
	"time"

	"golang.org/x/xerrors"

	"github.com/galleria/goapi/base/ctx"
	"github.com/galleria/goapi/domain"
)

// MinDuration is the shortest allowed decay window.
const MinDuration = 60 * time.Second

// Auction is a descending-price listing. The price is derived from elapsed
// time, never stored; the record itself is immutable after creation.
type Auction struct {
	AssetId       domain.AssetId `json:"assetId"`
	Seller        domain.Address `json:"seller"`
	StartingPrice *big.Int       `json:"startingPrice"`
	EndingPrice   *big.Int       `json:"endingPrice"`
	Duration      time.Duration  `json:"duration"`
	StartedAt     time.Time      `json:"startedAt"`
	// DelayedCancel marks a first-sale listing: the seller may not reclaim
	// the asset before Duration has elapsed, and bids are rejected after.
	DelayedCancel bool `json:"delayedCancel"`
}

// Elapsed returns how long the auction has been running at the given time.
func (a *Auction) Elapsed(now time.Time) time.Duration {
	return now.Sub(a.StartedAt)
}

// Expired reports whether the dynamic pricing phase is over.
func (a *Auction) Expired(now time.Time) bool {
	return a.Elapsed(now) >= a.Duration
}

// CurrentPrice interpolates linearly between StartingPrice and EndingPrice
// during the dynamic phase and stays pinned at EndingPrice afterwards.
func (a *Auction) CurrentPrice(now time.Time) *big.Int {
	elapsed := a.Elapsed(now)
	if elapsed <= 0 {
		return new(big.Int).Set(a.StartingPrice)
	}
	if elapsed >= a.Duration {
		return new(big.Int).Set(a.EndingPrice)
	}
	// startingPrice - (startingPrice-endingPrice)*elapsed/duration, in
	// whole seconds
	span := new(big.Int).Sub(a.StartingPrice, a.EndingPrice)
	decayed := new(big.Int).Mul(span, big.NewInt(int64(elapsed/time.Second)))
	decayed.Div(decayed, big.NewInt(int64(a.Duration/time.Second)))
	return new(big.Int).Sub(a.StartingPrice, decayed)
}

type CreatedEvent struct {
	AssetId       domain.AssetId `json:"assetId"`
	Seller        domain.Address `json:"seller"`
	StartingPrice *big.Int       `json:"startingPrice"`
	EndingPrice   *big.Int       `json:"endingPrice"`
	Duration      time.Duration  `json:"duration"`
	DelayedCancel bool           `json:"delayedCancel"`
}

type SuccessfulEvent struct {
	AssetId    domain.AssetId `json:"assetId"`
	Winner     domain.Address `json:"winner"`
	TotalPrice *big.Int       `json:"totalPrice"`
}

type CancelledEvent struct {
	AssetId domain.AssetId `json:"assetId"`
}

type RemovedEvent struct {
	AssetId domain.AssetId `json:"assetId"`
}

var (
	ErrNotAssetOwner     = xerrors.Errorf("only owner of the asset can create auction: %w", domain.ErrUnauthorized)
	ErrNotSeller         = xerrors.Errorf("no rights to cancel this auction: %w", domain.ErrUnauthorized)
	ErrNotAdmin          = xerrors.Errorf("can be executed only by the administrator: %w", domain.ErrUnauthorized)
	ErrAlreadyOnAuction  = xerrors.Errorf("asset is already on auction: %w", domain.ErrInvalidState)
	ErrNotOnAuction      = xerrors.Errorf("asset is not on auction: %w", domain.ErrNotFound)
	ErrPaused            = xerrors.Errorf("engine is paused: %w", domain.ErrInvalidState)
	ErrNotPaused         = xerrors.Errorf("engine is not paused: %w", domain.ErrInvalidState)
	ErrEmptyAssetId      = xerrors.Errorf("empty asset id: %w", domain.ErrInvalidInput)
	ErrNullSeller        = xerrors.Errorf("null address cannot be seller: %w", domain.ErrInvalidInput)
	ErrInvalidPriceRange = xerrors.Errorf("starting price below ending price: %w", domain.ErrInvalidInput)
	ErrDurationTooShort  = xerrors.Errorf("duration below one minute: %w", domain.ErrInvalidInput)
	ErrInvalidCut        = xerrors.Errorf("cut outside [0, 10000] bps: %w", domain.ErrInvalidInput)
	ErrBidTooLow         = xerrors.Errorf("bid amount below the current price: %w", domain.ErrInvalidInput)
	ErrBiddingClosed     = xerrors.Errorf("delayed-cancel auction past its duration: %w", domain.ErrTemporalPolicyViolation)
	ErrCancelTooEarly    = xerrors.Errorf("delayed-cancel auction still in its duration: %w", domain.ErrTemporalPolicyViolation)
)

// Usecase is the auction engine. The acting identity is always passed
// explicitly; metatransaction variants resolve to the same entrypoints with
// the relay-attested address as caller.
type Usecase interface {
	CreateAuction(c ctx.Ctx, caller domain.Address, assetId domain.AssetId, startingPrice, endingPrice *big.Int, duration time.Duration) error
	// CreateMintingAuction lists an asset on behalf of seller with the
	// delayed-cancel policy. Admin only.
	CreateMintingAuction(c ctx.Ctx, caller domain.Address, assetId domain.AssetId, startingPrice, endingPrice *big.Int, duration time.Duration, seller domain.Address) error
	GetCurrentPrice(c ctx.Ctx, assetId domain.AssetId) (*big.Int, error)
	Bid(c ctx.Ctx, caller domain.Address, assetId domain.AssetId, amount *big.Int) error
	CancelAuction(c ctx.Ctx, caller domain.Address, assetId domain.AssetId) error
	// CancelAuctionWhenPaused returns the asset to its seller regardless of
	// the delayed-cancel policy. Admin only, engine must be paused.
	CancelAuctionWhenPaused(c ctx.Ctx, caller domain.Address, assetId domain.AssetId) error
	// RemoveAuction deletes the record without moving the asset. Admin
	// only, engine must be paused.
	RemoveAuction(c ctx.Ctx, caller domain.Address, assetId domain.AssetId) error

	SetAuctioneerCut(c ctx.Ctx, caller domain.Address, bps int64) error
	SetAuctioneerDelayedCancelCut(c ctx.Ctx, caller domain.Address, bps int64) error
	// WithdrawCut sweeps the engine's accumulated platform cut of assetType
	// to the administrator. Admin only.
	WithdrawCut(c ctx.Ctx, caller domain.Address, assetType domain.Address) error

	IsOnAuction(c ctx.Ctx, assetId domain.AssetId) (bool, error)
	GetAuction(c ctx.Ctx, assetId domain.AssetId) (*Auction, error)
	TotalAuctions(c ctx.Ctx) (int, error)
	TotalAuctionsBySeller(c ctx.Ctx, seller domain.Address) (int, error)
	AuctionByIndex(c ctx.Ctx, index int) (*Auction, error)

	Pause(c ctx.Ctx, caller domain.Address) error
	Unpause(c ctx.Ctx, caller domain.Address) error
	Paused(c ctx.Ctx) bool
}

// Repo stores active auctions keyed by asset id with gap-free index-based
// enumeration in insertion order.
type Repo interface {
	Get(c ctx.Ctx, assetId domain.AssetId) (*Auction, error)
	Insert(c ctx.Ctx, a *Auction) error
	Remove(c ctx.Ctx, assetId domain.AssetId) error
	ByIndex(c ctx.Ctx, index int) (*Auction, error)
	Count(c ctx.Ctx) int
	CountBySeller(c ctx.Ctx, seller domain.Address) int
}
