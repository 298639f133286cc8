package usecase

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/galleria/goapi/base/clock"
	"github.com/galleria/goapi/base/ctx"
	"github.com/galleria/goapi/domain"
	"github.com/galleria/goapi/domain/auction"
	"github.com/galleria/goapi/domain/bank"
	"github.com/galleria/goapi/service/custody"
	auction_repository "github.com/galleria/goapi/stores/auction/repository"
	bank_repository "github.com/galleria/goapi/stores/bank/repository"
	bank_usecase "github.com/galleria/goapi/stores/bank/usecase"
)

const (
	admin      = domain.Address("0xad")
	engineAddr = domain.Address("0xengine")
	bankAddr   = domain.Address("0xbank")
	seller     = domain.Address("0xse11er")
	bidder     = domain.Address("0xb1dder")
	weth       = domain.Address("0x00000000000000000000000000000000000weth")

	asset = domain.AssetId("marble-1")
)

type engineSuite struct {
	suite.Suite

	assets *custody.AssetLedger
	vault  *custody.TokenVault
	clock  *clock.FakeClock
	feed   *domain.EventFeed
	bank   bank.Usecase
	im     auction.Usecase
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(engineSuite))
}

func (s *engineSuite) SetupTest() {
	c := ctx.Background()

	s.assets = custody.NewAssetLedger()
	s.vault = custody.NewTokenVault()
	s.clock = clock.NewFakeClock(time.Unix(1_700_000_000, 0))
	s.feed = domain.NewEventFeed()

	s.bank = bank_usecase.NewBank(&bank_usecase.BankCfg{
		Repo:    bank_repository.NewLedger(),
		Tokens:  s.vault.Bound(bankAddr),
		Feed:    domain.NewEventFeed(),
		Admin:   admin,
		Address: bankAddr,
	})
	s.im = NewEngine(&EngineCfg{
		Repo:                       auction_repository.New(),
		Assets:                     s.assets,
		Bank:                       s.bank,
		Tokens:                     s.vault.Bound(engineAddr),
		Feed:                       s.feed,
		Clock:                      s.clock,
		Admin:                      admin,
		Address:                    engineAddr,
		PaymentAsset:               weth,
		AuctioneerCut:              2500,
		AuctioneerDelayedCancelCut: 5000,
	})
	s.Nil(s.bank.AddAffiliate(c, admin, engineAddr))

	s.Nil(s.assets.Mint(c, asset, seller))
}

func (s *engineSuite) fund(user domain.Address, amount int64) {
	c := ctx.Background()
	s.vault.Mint(c, weth, user, big.NewInt(amount))
	_, err := s.bank.Deposit(c, user, weth, big.NewInt(amount), user, "")
	s.Nil(err)
}

func (s *engineSuite) owner(id domain.AssetId) domain.Address {
	got, err := s.assets.OwnerOf(ctx.Background(), id)
	s.Nil(err)
	return got
}

func (s *engineSuite) TestPriceDecay() {
	c := ctx.Background()
	s.Nil(s.im.CreateAuction(c, seller, asset, big.NewInt(30), big.NewInt(10), 100*time.Second))

	price, err := s.im.GetCurrentPrice(c, asset)
	s.Nil(err)
	s.Equal(big.NewInt(30), price)

	s.clock.Advance(50 * time.Second)
	price, err = s.im.GetCurrentPrice(c, asset)
	s.Nil(err)
	s.Equal(big.NewInt(20), price)

	s.clock.Advance(49 * time.Second)
	price, err = s.im.GetCurrentPrice(c, asset)
	s.Nil(err)
	// 30 - 20*99/100
	s.Equal(big.NewInt(11), price)

	// pinned at the ending price once the dynamic phase is over
	s.clock.Advance(time.Second)
	price, err = s.im.GetCurrentPrice(c, asset)
	s.Nil(err)
	s.Equal(big.NewInt(10), price)

	s.clock.Advance(24 * time.Hour)
	price, err = s.im.GetCurrentPrice(c, asset)
	s.Nil(err)
	s.Equal(big.NewInt(10), price)
}

func (s *engineSuite) TestCreateValidation() {
	c := ctx.Background()

	s.ErrorIs(s.im.CreateAuction(c, seller, "", big.NewInt(2), big.NewInt(1), time.Minute), auction.ErrEmptyAssetId)
	s.ErrorIs(s.im.CreateAuction(c, seller, asset, big.NewInt(1), big.NewInt(2), time.Minute), auction.ErrInvalidPriceRange)
	s.ErrorIs(s.im.CreateAuction(c, seller, asset, big.NewInt(2), big.NewInt(1), 59*time.Second), auction.ErrDurationTooShort)
	s.ErrorIs(s.im.CreateAuction(c, bidder, asset, big.NewInt(2), big.NewInt(1), time.Minute), auction.ErrNotAssetOwner)
	s.ErrorIs(s.im.CreateAuction(c, seller, "ghost", big.NewInt(2), big.NewInt(1), time.Minute), domain.ErrNotFound)

	// escrow and exclusivity
	s.Nil(s.im.CreateAuction(c, seller, asset, big.NewInt(2), big.NewInt(1), time.Minute))
	s.Equal(engineAddr, s.owner(asset))
	s.ErrorIs(s.im.CreateAuction(c, seller, asset, big.NewInt(2), big.NewInt(1), time.Minute), auction.ErrNotAssetOwner)

	onAuction, err := s.im.IsOnAuction(c, asset)
	s.Nil(err)
	s.True(onAuction)
}

func (s *engineSuite) TestBidSettlement() {
	c := ctx.Background()
	s.fund(bidder, 512)
	s.Nil(s.im.CreateAuction(c, seller, asset, big.NewInt(512), big.NewInt(512), time.Minute))

	s.ErrorIs(s.im.Bid(c, bidder, asset, big.NewInt(511)), auction.ErrBidTooLow)
	s.Nil(s.im.Bid(c, bidder, asset, big.NewInt(512)))

	// 2500 bps cut: seller keeps 384 in the ledger, engine custody holds 128
	sellerBal, err := s.bank.UserBalance(c, weth, seller)
	s.Nil(err)
	s.Equal(big.NewInt(384), sellerBal)
	bidderBal, err := s.bank.UserBalance(c, weth, bidder)
	s.Nil(err)
	s.Equal(big.NewInt(0), bidderBal)
	s.Equal(big.NewInt(128), s.vault.BalanceOf(c, weth, engineAddr))

	s.Equal(bidder, s.owner(asset))
	onAuction, err := s.im.IsOnAuction(c, asset)
	s.Nil(err)
	s.False(onAuction)

	events := s.feed.List()
	s.Equal(auction.SuccessfulEvent{AssetId: asset, Winner: bidder, TotalPrice: big.NewInt(512)}, events[len(events)-1])
}

func (s *engineSuite) TestBidChargesCurrentPriceNotBidAmount() {
	c := ctx.Background()
	s.fund(bidder, 1000)
	s.Nil(s.im.CreateAuction(c, seller, asset, big.NewInt(100), big.NewInt(0), 100*time.Second))
	s.clock.Advance(50 * time.Second)

	s.Nil(s.im.Bid(c, bidder, asset, big.NewInt(1000)))

	bidderBal, err := s.bank.UserBalance(c, weth, bidder)
	s.Nil(err)
	// price was 50, cut 12, seller got 38
	s.Equal(big.NewInt(950), bidderBal)
	sellerBal, err := s.bank.UserBalance(c, weth, seller)
	s.Nil(err)
	s.Equal(big.NewInt(38), sellerBal)
	s.Equal(big.NewInt(12), s.vault.BalanceOf(c, weth, engineAddr))
}

func (s *engineSuite) TestBidInsufficientFundsLeavesAuctionIntact() {
	c := ctx.Background()
	s.fund(bidder, 100)
	s.Nil(s.im.CreateAuction(c, seller, asset, big.NewInt(512), big.NewInt(512), time.Minute))

	s.ErrorIs(s.im.Bid(c, bidder, asset, big.NewInt(512)), domain.ErrInsufficientFunds)

	onAuction, err := s.im.IsOnAuction(c, asset)
	s.Nil(err)
	s.True(onAuction)
	bidderBal, err := s.bank.UserBalance(c, weth, bidder)
	s.Nil(err)
	s.Equal(big.NewInt(100), bidderBal)
	s.Equal(engineAddr, s.owner(asset))
}

func (s *engineSuite) TestBidAtZeroPriceFromFreshAddress() {
	c := ctx.Background()
	s.Nil(s.im.CreateAuction(c, seller, asset, big.NewInt(30), big.NewInt(0), 100*time.Second))
	s.clock.Advance(100 * time.Second)

	// the bidder never touched the bank; its balance 0 covers the pinned
	// price 0
	s.Nil(s.im.Bid(c, bidder, asset, big.NewInt(0)))

	s.Equal(bidder, s.owner(asset))
	sellerBal, err := s.bank.UserBalance(c, weth, seller)
	s.Nil(err)
	s.Equal(big.NewInt(0), sellerBal)
}

func (s *engineSuite) TestBidUnknownAuction() {
	c := ctx.Background()
	s.ErrorIs(s.im.Bid(c, bidder, "ghost", big.NewInt(1)), auction.ErrNotOnAuction)
}

func (s *engineSuite) TestCancelAuction() {
	c := ctx.Background()
	s.Nil(s.im.CreateAuction(c, seller, asset, big.NewInt(2), big.NewInt(1), time.Minute))

	s.ErrorIs(s.im.CancelAuction(c, bidder, asset), auction.ErrNotSeller)
	s.Nil(s.im.CancelAuction(c, seller, asset))

	s.Equal(seller, s.owner(asset))
	onAuction, err := s.im.IsOnAuction(c, asset)
	s.Nil(err)
	s.False(onAuction)
}

func (s *engineSuite) TestMintingAuctionPolicy() {
	c := ctx.Background()
	minted := domain.AssetId("marble-fresh")
	s.Nil(s.assets.Mint(c, minted, engineAddr))

	s.ErrorIs(
		s.im.CreateMintingAuction(c, seller, minted, big.NewInt(100), big.NewInt(100), time.Minute, seller),
		auction.ErrNotAdmin,
	)
	s.ErrorIs(
		s.im.CreateMintingAuction(c, admin, minted, big.NewInt(100), big.NewInt(100), time.Minute, ""),
		auction.ErrNullSeller,
	)
	s.Nil(s.im.CreateMintingAuction(c, admin, minted, big.NewInt(100), big.NewInt(100), time.Minute, seller))

	a, err := s.im.GetAuction(c, minted)
	s.Nil(err)
	s.True(a.DelayedCancel)
	s.Equal(seller, a.Seller)

	// the seller may not reclaim the asset during the decay window
	s.ErrorIs(s.im.CancelAuction(c, seller, minted), auction.ErrCancelTooEarly)
	s.ErrorIs(s.im.CancelAuction(c, seller, minted), domain.ErrTemporalPolicyViolation)

	// and nobody may bid after it
	s.clock.Advance(time.Minute)
	s.fund(bidder, 100)
	s.ErrorIs(s.im.Bid(c, bidder, minted, big.NewInt(100)), auction.ErrBiddingClosed)

	s.Nil(s.im.CancelAuction(c, seller, minted))
	s.Equal(seller, s.owner(minted))
}

func (s *engineSuite) TestMintingAuctionUsesDelayedCancelCut() {
	c := ctx.Background()
	minted := domain.AssetId("marble-fresh")
	s.Nil(s.assets.Mint(c, minted, engineAddr))
	s.fund(bidder, 100)

	s.Nil(s.im.CreateMintingAuction(c, admin, minted, big.NewInt(100), big.NewInt(100), time.Minute, seller))
	s.Nil(s.im.Bid(c, bidder, minted, big.NewInt(100)))

	// 5000 bps
	sellerBal, err := s.bank.UserBalance(c, weth, seller)
	s.Nil(err)
	s.Equal(big.NewInt(50), sellerBal)
	s.Equal(big.NewInt(50), s.vault.BalanceOf(c, weth, engineAddr))
	s.Equal(bidder, s.owner(minted))
}

func (s *engineSuite) TestPauseGating() {
	c := ctx.Background()
	s.Nil(s.im.CreateAuction(c, seller, asset, big.NewInt(2), big.NewInt(1), time.Minute))

	s.ErrorIs(s.im.Pause(c, seller), auction.ErrNotAdmin)
	s.ErrorIs(s.im.CancelAuctionWhenPaused(c, admin, asset), auction.ErrNotPaused)
	s.ErrorIs(s.im.RemoveAuction(c, admin, asset), auction.ErrNotPaused)

	s.Nil(s.im.Pause(c, admin))
	s.True(s.im.Paused(c))

	s.ErrorIs(s.im.CreateAuction(c, seller, "other", big.NewInt(2), big.NewInt(1), time.Minute), auction.ErrPaused)
	s.ErrorIs(s.im.Bid(c, bidder, asset, big.NewInt(2)), auction.ErrPaused)
	s.ErrorIs(s.im.CancelAuction(c, seller, asset), auction.ErrPaused)

	// failed attempts leave no residue
	s.Nil(s.im.Unpause(c, admin))
	s.False(s.im.Paused(c))
	s.Equal(engineAddr, s.owner(asset))
	s.Nil(s.im.CancelAuction(c, seller, asset))
	s.Equal(seller, s.owner(asset))
}

func (s *engineSuite) TestCancelWhenPausedOverridesDelayedCancel() {
	c := ctx.Background()
	minted := domain.AssetId("marble-fresh")
	s.Nil(s.assets.Mint(c, minted, engineAddr))
	s.Nil(s.im.CreateMintingAuction(c, admin, minted, big.NewInt(100), big.NewInt(100), time.Minute, seller))

	s.Nil(s.im.Pause(c, admin))
	s.ErrorIs(s.im.CancelAuctionWhenPaused(c, seller, minted), auction.ErrNotAdmin)
	s.Nil(s.im.CancelAuctionWhenPaused(c, admin, minted))
	s.Equal(seller, s.owner(minted))
}

func (s *engineSuite) TestRemoveAuctionKeepsCustody() {
	c := ctx.Background()
	s.Nil(s.im.CreateAuction(c, seller, asset, big.NewInt(2), big.NewInt(1), time.Minute))
	s.Nil(s.im.Pause(c, admin))

	s.Nil(s.im.RemoveAuction(c, admin, asset))

	onAuction, err := s.im.IsOnAuction(c, asset)
	s.Nil(err)
	s.False(onAuction)
	// the record is gone but the asset stays escrowed
	s.Equal(engineAddr, s.owner(asset))
}

func (s *engineSuite) TestEnumeration() {
	c := ctx.Background()
	other := domain.AssetId("marble-2")
	s.Nil(s.assets.Mint(c, other, bidder))

	s.Nil(s.im.CreateAuction(c, seller, asset, big.NewInt(2), big.NewInt(1), time.Minute))
	s.Nil(s.im.CreateAuction(c, bidder, other, big.NewInt(2), big.NewInt(1), time.Minute))

	total, err := s.im.TotalAuctions(c)
	s.Nil(err)
	s.Equal(2, total)
	bySeller, err := s.im.TotalAuctionsBySeller(c, seller)
	s.Nil(err)
	s.Equal(1, bySeller)

	a, err := s.im.AuctionByIndex(c, 0)
	s.Nil(err)
	s.Equal(asset, a.AssetId)
	a, err = s.im.AuctionByIndex(c, 1)
	s.Nil(err)
	s.Equal(other, a.AssetId)
	_, err = s.im.AuctionByIndex(c, 2)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *engineSuite) TestSetCuts() {
	c := ctx.Background()

	s.ErrorIs(s.im.SetAuctioneerCut(c, seller, 100), auction.ErrNotAdmin)
	s.ErrorIs(s.im.SetAuctioneerCut(c, admin, 10001), auction.ErrInvalidCut)
	s.ErrorIs(s.im.SetAuctioneerDelayedCancelCut(c, admin, -1), auction.ErrInvalidCut)

	s.Nil(s.im.SetAuctioneerCut(c, admin, 0))
	s.fund(bidder, 100)
	s.Nil(s.im.CreateAuction(c, seller, asset, big.NewInt(100), big.NewInt(100), time.Minute))
	s.Nil(s.im.Bid(c, bidder, asset, big.NewInt(100)))

	sellerBal, err := s.bank.UserBalance(c, weth, seller)
	s.Nil(err)
	s.Equal(big.NewInt(100), sellerBal)
	s.Equal(big.NewInt(0), s.vault.BalanceOf(c, weth, engineAddr))
}

func (s *engineSuite) TestWithdrawCut() {
	c := ctx.Background()
	s.fund(bidder, 512)
	s.Nil(s.im.CreateAuction(c, seller, asset, big.NewInt(512), big.NewInt(512), time.Minute))
	s.Nil(s.im.Bid(c, bidder, asset, big.NewInt(512)))
	s.Equal(big.NewInt(128), s.vault.BalanceOf(c, weth, engineAddr))

	s.ErrorIs(s.im.WithdrawCut(c, seller, weth), auction.ErrNotAdmin)
	s.Nil(s.im.WithdrawCut(c, admin, weth))

	s.Equal(big.NewInt(0), s.vault.BalanceOf(c, weth, engineAddr))
	s.Equal(big.NewInt(128), s.vault.BalanceOf(c, weth, admin))

	// sweeping an empty balance is a no-op
	s.Nil(s.im.WithdrawCut(c, admin, weth))
}
