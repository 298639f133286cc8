package usecase

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"golang.org/x/xerrors"

	"github.com/galleria/goapi/base/ctx"
	"github.com/galleria/goapi/domain"
	"github.com/galleria/goapi/domain/bank"
	"github.com/galleria/goapi/domain/bank/mocks"
	"github.com/galleria/goapi/service/custody"
	bank_repository "github.com/galleria/goapi/stores/bank/repository"
	withdrawauth_usecase "github.com/galleria/goapi/stores/withdrawauth/usecase"
)

const (
	admin     = domain.Address("0xad")
	bankAddr  = domain.Address("0xbank")
	alice     = domain.Address("0xaaa")
	bob       = domain.Address("0xbbb")
	affiliate = domain.Address("0xaff")
	weth      = domain.Address("0x00000000000000000000000000000000000weth")
)

type bankSuite struct {
	suite.Suite

	vault *custody.TokenVault
	feed  *domain.EventFeed
	im    bank.Usecase
}

func TestBankSuite(t *testing.T) {
	suite.Run(t, new(bankSuite))
}

func (s *bankSuite) SetupTest() {
	c := ctx.Background()
	s.vault = custody.NewTokenVault()
	s.feed = domain.NewEventFeed()
	s.im = NewBank(&BankCfg{
		Repo:    bank_repository.NewLedger(),
		Tokens:  s.vault.Bound(bankAddr),
		Feed:    s.feed,
		Admin:   admin,
		Address: bankAddr,
	})
	s.Nil(s.im.AddAffiliate(c, admin, affiliate))
	s.vault.Mint(c, weth, alice, big.NewInt(1000))
}

func (s *bankSuite) balance(user domain.Address) *big.Int {
	got, err := s.im.UserBalance(ctx.Background(), weth, user)
	s.Nil(err)
	return got
}

func (s *bankSuite) TestDeposit() {
	c := ctx.Background()

	t, err := s.im.Deposit(c, alice, weth, big.NewInt(400), alice, "top up")
	s.Nil(err)
	s.Equal(uint64(1), t.Id)
	s.Equal(big.NewInt(400), s.balance(alice))
	s.Equal(big.NewInt(600), s.vault.BalanceOf(c, weth, alice))
	s.Equal(big.NewInt(400), s.vault.BalanceOf(c, weth, bankAddr))

	// deposit for a third-party beneficiary debits the caller's holdings
	_, err = s.im.Deposit(c, alice, weth, big.NewInt(100), bob, "gift")
	s.Nil(err)
	s.Equal(big.NewInt(100), s.balance(bob))
	s.Equal(big.NewInt(500), s.vault.BalanceOf(c, weth, alice))

	_, err = s.im.Deposit(c, alice, weth, big.NewInt(501), alice, "")
	s.ErrorIs(err, bank.ErrInsufficientExternal)

	_, err = s.im.Deposit(c, alice, weth, big.NewInt(1), domain.NullAddress, "")
	s.ErrorIs(err, bank.ErrNullRecipient)
}

func (s *bankSuite) TestWithdraw() {
	c := ctx.Background()
	_, err := s.im.Deposit(c, alice, weth, big.NewInt(400), alice, "")
	s.Nil(err)

	// no authorization policy configured
	_, err = s.im.Withdraw(c, alice, weth, big.NewInt(100), "")
	s.ErrorIs(err, bank.ErrWithdrawNotAuthorized)

	auth := withdrawauth_usecase.NewWhitelist(admin, nil)
	s.Nil(s.im.SetWithdrawAuthorization(c, admin, auth))

	_, err = s.im.Withdraw(c, alice, weth, big.NewInt(100), "")
	s.ErrorIs(err, bank.ErrWithdrawNotAuthorized)

	s.Nil(auth.AddToWhitelist(c, admin, alice))
	t, err := s.im.Withdraw(c, alice, weth, big.NewInt(100), "cash out")
	s.Nil(err)
	s.Equal(uint64(2), t.Id)
	s.Equal(big.NewInt(300), s.balance(alice))
	s.Equal(big.NewInt(700), s.vault.BalanceOf(c, weth, alice))

	_, err = s.im.Withdraw(c, alice, weth, big.NewInt(301), "")
	s.ErrorIs(err, domain.ErrInsufficientFunds)
}

func (s *bankSuite) TestWithdrawAuthorizationErrorLeavesNoEffects() {
	c := ctx.Background()
	_, err := s.im.Deposit(c, alice, weth, big.NewInt(400), alice, "")
	s.Nil(err)

	authErr := xerrors.New("policy backend unavailable")
	auth := &mocks.WithdrawAuthorization{}
	auth.On("CanWithdraw", mock.Anything, alice, weth, mock.Anything).Return(false, authErr)
	s.Nil(s.im.SetWithdrawAuthorization(c, admin, auth))

	_, err = s.im.Withdraw(c, alice, weth, big.NewInt(100), "")
	s.ErrorIs(err, authErr)
	s.Equal(big.NewInt(400), s.balance(alice))
	s.Equal(uint64(1), s.im.TransactionCount(c))
}

func (s *bankSuite) TestPayLeavesRecipientLedgerUntouched() {
	c := ctx.Background()
	_, err := s.im.Deposit(c, alice, weth, big.NewInt(400), alice, "")
	s.Nil(err)

	_, err = s.im.Pay(c, alice, weth, big.NewInt(150), bob, "invoice 7")
	s.Nil(err)

	s.Equal(big.NewInt(250), s.balance(alice))
	s.Equal(big.NewInt(150), s.vault.BalanceOf(c, weth, bob))
	// no implicit account creation for the recipient
	s.Equal(big.NewInt(0), s.balance(bob))

	_, err = s.im.Pay(c, alice, weth, big.NewInt(1), domain.NullAddress, "")
	s.ErrorIs(err, bank.ErrNullRecipient)
}

func (s *bankSuite) TestPayByAffiliate() {
	c := ctx.Background()
	_, err := s.im.Deposit(c, alice, weth, big.NewInt(400), alice, "")
	s.Nil(err)

	_, err = s.im.PayByAffiliate(c, bob, weth, big.NewInt(10), alice, bob, "")
	s.ErrorIs(err, bank.ErrNotAffiliate)

	_, err = s.im.PayByAffiliate(c, affiliate, weth, big.NewInt(10), domain.NullAddress, bob, "")
	s.ErrorIs(err, bank.ErrNoSuchAccount)

	t, err := s.im.PayByAffiliate(c, affiliate, weth, big.NewInt(10), alice, bob, "order 1")
	s.Nil(err)
	s.Equal(alice, t.From)
	s.Equal(bob, t.To)
	s.Equal(affiliate, t.AffiliateExecuted)
	s.Equal(big.NewInt(390), s.balance(alice))
	s.Equal(big.NewInt(10), s.vault.BalanceOf(c, weth, bob))
}

func (s *bankSuite) TestRejectsNegativeAmounts() {
	c := ctx.Background()
	_, err := s.im.Deposit(c, alice, weth, big.NewInt(100), alice, "")
	s.Nil(err)

	// a negative deposit would debit the beneficiary's ledger and hand the
	// caller external tokens
	_, err = s.im.Deposit(c, bob, weth, big.NewInt(-50), alice, "")
	s.ErrorIs(err, bank.ErrNegativeAmount)
	s.ErrorIs(err, domain.ErrInvalidInput)

	// a negative payment would mint ledger balance for the payer
	_, err = s.im.Pay(c, alice, weth, big.NewInt(-1000), bob, "")
	s.ErrorIs(err, bank.ErrNegativeAmount)
	_, err = s.im.Withdraw(c, alice, weth, big.NewInt(-1), "")
	s.ErrorIs(err, bank.ErrNegativeAmount)
	_, err = s.im.PayByAffiliate(c, affiliate, weth, big.NewInt(-10), alice, bob, "")
	s.ErrorIs(err, bank.ErrNegativeAmount)
	err = s.im.SettleExchange(c, affiliate, weth, big.NewInt(-1), big.NewInt(0), alice, bob, affiliate, "")
	s.ErrorIs(err, bank.ErrNegativeAmount)
	err = s.im.SettleExchange(c, affiliate, weth, big.NewInt(1), big.NewInt(-1), alice, bob, affiliate, "")
	s.ErrorIs(err, bank.ErrNegativeAmount)
	_, err = s.im.Deposit(c, alice, weth, nil, alice, "")
	s.ErrorIs(err, bank.ErrNegativeAmount)

	// nothing moved
	s.Equal(big.NewInt(100), s.balance(alice))
	s.Equal(big.NewInt(0), s.balance(bob))
	s.Equal(big.NewInt(900), s.vault.BalanceOf(c, weth, alice))
	s.Equal(big.NewInt(0), s.vault.BalanceOf(c, weth, bob))
	s.Equal(big.NewInt(100), s.vault.BalanceOf(c, weth, bankAddr))
	s.Equal(uint64(1), s.im.TransactionCount(c))
}

func (s *bankSuite) TestSettleExchange() {
	c := ctx.Background()
	_, err := s.im.Deposit(c, alice, weth, big.NewInt(512), alice, "")
	s.Nil(err)

	err = s.im.SettleExchange(c, bob, weth, big.NewInt(512), big.NewInt(128), alice, bob, affiliate, "")
	s.ErrorIs(err, bank.ErrNotAffiliate)

	err = s.im.SettleExchange(c, affiliate, weth, big.NewInt(100), big.NewInt(101), alice, bob, affiliate, "")
	s.ErrorIs(err, bank.ErrInvalidSettlement)

	// 2500 bps of 512 = 128
	err = s.im.SettleExchange(c, affiliate, weth, big.NewInt(512), big.NewInt(128), alice, bob, affiliate, "sale")
	s.Nil(err)

	s.Equal(big.NewInt(0), s.balance(alice))
	s.Equal(big.NewInt(384), s.balance(bob))
	s.Equal(big.NewInt(128), s.vault.BalanceOf(c, weth, affiliate))
	// the bank still custodies bob's tracked proceeds
	s.Equal(big.NewInt(384), s.vault.BalanceOf(c, weth, bankAddr))

	// one log entry per settlement leg
	t, err := s.im.GetTransaction(c, 2)
	s.Nil(err)
	s.Equal(bob, t.To)
	s.Equal("384", t.Amount)
	s.Equal(affiliate, t.AffiliateExecuted)
	t, err = s.im.GetTransaction(c, 3)
	s.Nil(err)
	s.Equal(affiliate, t.To)
	s.Equal("128", t.Amount)
	s.Equal(uint64(3), s.im.TransactionCount(c))
}

func (s *bankSuite) TestSettleExchangeInsufficientPayer() {
	c := ctx.Background()
	_, err := s.im.Deposit(c, alice, weth, big.NewInt(100), alice, "")
	s.Nil(err)

	err = s.im.SettleExchange(c, affiliate, weth, big.NewInt(101), big.NewInt(0), alice, bob, affiliate, "")
	s.ErrorIs(err, domain.ErrInsufficientFunds)
	s.Equal(big.NewInt(100), s.balance(alice))
	s.Equal(uint64(1), s.im.TransactionCount(c))
}

func (s *bankSuite) TestSequentialTransactionIds() {
	c := ctx.Background()

	for i := 0; i < 3; i++ {
		_, err := s.im.Deposit(c, alice, weth, big.NewInt(10), alice, "")
		s.Nil(err)
	}
	s.Equal(uint64(3), s.im.TransactionCount(c))
	for id := uint64(1); id <= 3; id++ {
		t, err := s.im.GetTransaction(c, id)
		s.Nil(err)
		s.Equal(id, t.Id)
	}
	_, err := s.im.GetTransaction(c, 4)
	s.ErrorIs(err, bank.ErrTransactionNotFound)
}

func (s *bankSuite) TestAffiliateAdministration() {
	c := ctx.Background()

	s.ErrorIs(s.im.AddAffiliate(c, alice, bob), bank.ErrNotAdmin)
	s.ErrorIs(s.im.AddAffiliate(c, admin, affiliate), bank.ErrAlreadyAffiliate)
	s.ErrorIs(s.im.AddAffiliate(c, admin, domain.NullAddress), bank.ErrNullAffiliate)
	s.ErrorIs(s.im.RemoveAffiliate(c, admin, bob), bank.ErrNotAffiliate)

	s.Nil(s.im.RemoveAffiliate(c, admin, affiliate))
	got, err := s.im.IsAffiliate(c, affiliate)
	s.Nil(err)
	s.False(got)
}

func (s *bankSuite) TestPauseGating() {
	c := ctx.Background()
	_, err := s.im.Deposit(c, alice, weth, big.NewInt(100), alice, "")
	s.Nil(err)

	s.ErrorIs(s.im.Pause(c, alice), bank.ErrNotAdmin)
	s.Nil(s.im.Pause(c, admin))
	s.ErrorIs(s.im.Pause(c, admin), bank.ErrPaused)
	s.True(s.im.Paused(c))

	_, err = s.im.Deposit(c, alice, weth, big.NewInt(1), alice, "")
	s.ErrorIs(err, bank.ErrPaused)
	_, err = s.im.Withdraw(c, alice, weth, big.NewInt(1), "")
	s.ErrorIs(err, bank.ErrPaused)
	_, err = s.im.Pay(c, alice, weth, big.NewInt(1), bob, "")
	s.ErrorIs(err, bank.ErrPaused)
	err = s.im.SettleExchange(c, affiliate, weth, big.NewInt(1), big.NewInt(0), alice, bob, affiliate, "")
	s.ErrorIs(err, bank.ErrPaused)
	s.ErrorIs(s.im.AddAffiliate(c, admin, bob), bank.ErrPaused)
	s.ErrorIs(s.im.RemoveAffiliate(c, admin, affiliate), bank.ErrPaused)

	// reads stay available while paused
	s.Equal(big.NewInt(100), s.balance(alice))

	s.Nil(s.im.Unpause(c, admin))
	s.ErrorIs(s.im.Unpause(c, admin), bank.ErrNotPaused)
	_, err = s.im.Deposit(c, alice, weth, big.NewInt(1), alice, "")
	s.Nil(err)
}

func (s *bankSuite) TestTransferToNewBank() {
	c := ctx.Background()
	_, err := s.im.Deposit(c, alice, weth, big.NewInt(250), alice, "")
	s.Nil(err)

	dest := NewBank(&BankCfg{
		Repo:    bank_repository.NewLedger(),
		Tokens:  s.vault.Bound("0xbank2"),
		Feed:    domain.NewEventFeed(),
		Admin:   admin,
		Address: "0xbank2",
	})

	s.ErrorIs(s.im.TransferToNewBank(c, admin, weth, alice, dest), bank.ErrNotPaused)
	s.Nil(s.im.Pause(c, admin))
	s.ErrorIs(s.im.TransferToNewBank(c, alice, weth, alice, dest), bank.ErrNotAdmin)
	s.ErrorIs(s.im.TransferToNewBank(c, admin, weth, bob, dest), bank.ErrZeroBalanceMigration)

	s.Nil(s.im.TransferToNewBank(c, admin, weth, alice, dest))

	s.Equal(big.NewInt(0), s.balance(alice))
	got, err := dest.UserBalance(c, weth, alice)
	s.Nil(err)
	s.Equal(big.NewInt(250), got)
	s.Equal(big.NewInt(0), s.vault.BalanceOf(c, weth, bankAddr))
	s.Equal(big.NewInt(250), s.vault.BalanceOf(c, weth, "0xbank2"))

	s.ErrorIs(s.im.TransferToNewBank(c, admin, weth, alice, dest), bank.ErrZeroBalanceMigration)
}

func (s *bankSuite) TestWithdrawByOwner() {
	c := ctx.Background()
	_, err := s.im.Deposit(c, alice, weth, big.NewInt(100), alice, "")
	s.Nil(err)

	s.ErrorIs(s.im.WithdrawByOwner(c, admin, weth), bank.ErrNotPaused)
	s.Nil(s.im.Pause(c, admin))

	// everything custodied is tracked, nothing to sweep
	s.ErrorIs(s.im.WithdrawByOwner(c, admin, weth), bank.ErrInsufficientExternal)

	// stray tokens sent straight to the bank's custody address
	s.vault.Mint(c, weth, bankAddr, big.NewInt(40))
	s.Nil(s.im.WithdrawByOwner(c, admin, weth))
	s.Equal(big.NewInt(40), s.vault.BalanceOf(c, weth, admin))
	// tracked balances stay fully backed
	s.Equal(big.NewInt(100), s.vault.BalanceOf(c, weth, bankAddr))
}
