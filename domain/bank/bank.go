package bank

import (
	"math/big"

	"golang.org/x/xerrors"

	"github.com/galleria/goapi/base/ctx"
	"github.com/galleria/goapi/domain"
)

// Transaction is one entry of the append-only ledger log. Ids are 1-based
// and strictly sequential; entries are immutable once appended.
type Transaction struct {
	Id                uint64         `json:"id" bson:"id"`
	From              domain.Address `json:"from" bson:"from"`
	To                domain.Address `json:"to" bson:"to"`
	AffiliateExecuted domain.Address `json:"affiliateExecuted" bson:"affiliateExecuted"`
	AssetType         domain.Address `json:"assetType" bson:"assetType"`
	Amount            string         `json:"amount" bson:"amount"`
	Note              string         `json:"note" bson:"note"`
}

type DepositEvent struct {
	TransactionId uint64         `json:"transactionId"`
	From          domain.Address `json:"from"`
	To            domain.Address `json:"to"`
	AssetType     domain.Address `json:"assetType"`
	Amount        *big.Int       `json:"amount"`
	Note          string         `json:"note"`
}

type WithdrawalEvent struct {
	TransactionId uint64         `json:"transactionId"`
	User          domain.Address `json:"user"`
	AssetType     domain.Address `json:"assetType"`
	Amount        *big.Int       `json:"amount"`
	Note          string         `json:"note"`
}

type PaymentEvent struct {
	TransactionId uint64         `json:"transactionId"`
	From          domain.Address `json:"from"`
	To            domain.Address `json:"to"`
	AssetType     domain.Address `json:"assetType"`
	Amount        *big.Int       `json:"amount"`
	Note          string         `json:"note"`
	Affiliate     domain.Address `json:"affiliate"`
}

type AffiliateAddedEvent struct {
	Affiliate domain.Address `json:"affiliate"`
}

type AffiliateRemovedEvent struct {
	Affiliate domain.Address `json:"affiliate"`
}

var (
	ErrNotAdmin              = xerrors.Errorf("can be executed only by the administrator: %w", domain.ErrUnauthorized)
	ErrNotAffiliate          = xerrors.Errorf("address is not affiliate: %w", domain.ErrUnauthorized)
	ErrWithdrawNotAuthorized = xerrors.Errorf("withdraw not authorized: %w", domain.ErrUnauthorized)
	ErrPaused                = xerrors.Errorf("bank is paused: %w", domain.ErrInvalidState)
	ErrNotPaused             = xerrors.Errorf("bank is not paused: %w", domain.ErrInvalidState)
	ErrAlreadyAffiliate      = xerrors.Errorf("address is already affiliate: %w", domain.ErrInvalidState)
	ErrNullRecipient         = xerrors.Errorf("transaction to null address: %w", domain.ErrInvalidInput)
	ErrNullAffiliate         = xerrors.Errorf("null address cannot be affiliate: %w", domain.ErrInvalidInput)
	ErrNoSuchAccount         = xerrors.Errorf("user account does not exist: %w", domain.ErrInvalidInput)
	ErrNegativeAmount        = xerrors.Errorf("amount must not be negative: %w", domain.ErrInvalidInput)
	ErrInsufficientFunds     = xerrors.Errorf("not enough tokens in the ledger: %w", domain.ErrInsufficientFunds)
	ErrInsufficientExternal  = xerrors.Errorf("not enough external tokens: %w", domain.ErrInsufficientFunds)
	ErrZeroBalanceMigration  = xerrors.Errorf("balance of the user is 0: %w", domain.ErrInvalidState)
	ErrTransactionNotFound   = xerrors.Errorf("transaction does not exist: %w", domain.ErrNotFound)
	ErrInvalidSettlement     = xerrors.Errorf("cut exceeds the settled price: %w", domain.ErrInvalidInput)
)

// Usecase is the ledger bank. Monetary operations are atomic: balance
// mutation, external-holdings movement and log append commit together or not
// at all.
type Usecase interface {
	// Deposit pulls amount of assetType from the caller's external holdings
	// into the bank's custody and credits beneficiary's ledger balance.
	Deposit(c ctx.Ctx, caller domain.Address, assetType domain.Address, amount *big.Int, beneficiary domain.Address, note string) (*Transaction, error)
	// Withdraw debits the caller and pushes the amount back to the caller's
	// external holdings. Gated by the withdraw authorization component.
	Withdraw(c ctx.Ctx, caller domain.Address, assetType domain.Address, amount *big.Int, note string) (*Transaction, error)
	// Pay debits the caller and pushes the amount directly to recipient's
	// external holdings; the recipient's ledger balance is untouched.
	Pay(c ctx.Ctx, caller domain.Address, assetType domain.Address, amount *big.Int, recipient domain.Address, note string) (*Transaction, error)
	// PayByAffiliate is Pay executed by an allow-listed affiliate out of
	// payer's ledger balance.
	PayByAffiliate(c ctx.Ctx, caller domain.Address, assetType domain.Address, amount *big.Int, payer, recipient domain.Address, note string) (*Transaction, error)
	// SettleExchange atomically debits payer by price, credits beneficiary
	// price-cut in the ledger and pushes cut out of the bank's custody to
	// cutRecipient. Affiliate only.
	SettleExchange(c ctx.Ctx, caller domain.Address, assetType domain.Address, price, cut *big.Int, payer, beneficiary, cutRecipient domain.Address, note string) error

	HasEnoughTokens(c ctx.Ctx, assetType domain.Address, amount *big.Int, user domain.Address) (bool, error)
	UserBalance(c ctx.Ctx, assetType domain.Address, user domain.Address) (*big.Int, error)
	GetTransaction(c ctx.Ctx, id uint64) (*Transaction, error)
	TransactionCount(c ctx.Ctx) uint64

	AddAffiliate(c ctx.Ctx, caller, affiliate domain.Address) error
	RemoveAffiliate(c ctx.Ctx, caller, affiliate domain.Address) error
	IsAffiliate(c ctx.Ctx, affiliate domain.Address) (bool, error)
	SetWithdrawAuthorization(c ctx.Ctx, caller domain.Address, auth WithdrawAuthorization) error

	// TransferToNewBank zeroes the user's balance here and credits it on the
	// destination ledger, moving the backing holdings along. Admin only,
	// bank must be paused.
	TransferToNewBank(c ctx.Ctx, caller domain.Address, assetType domain.Address, user domain.Address, dest Usecase) error
	// WithdrawByOwner sweeps custodied holdings of assetType not backed by
	// tracked ledger balances to the administrator. Admin only, paused.
	WithdrawByOwner(c ctx.Ctx, caller domain.Address, assetType domain.Address) error

	Pause(c ctx.Ctx, caller domain.Address) error
	Unpause(c ctx.Ctx, caller domain.Address) error
	Paused(c ctx.Ctx) bool

	// Address under which the bank holds external custody.
	Address() domain.Address
}

// Repo owns the per-(assetType, user) balances and the transaction log.
// Accounts are created implicitly on first credit and never destroyed.
type Repo interface {
	Balance(c ctx.Ctx, assetType, user domain.Address) *big.Int
	// HasAccount reports whether the user ever received a credit of assetType.
	HasAccount(c ctx.Ctx, assetType, user domain.Address) bool
	Credit(c ctx.Ctx, assetType, user domain.Address, amount *big.Int)
	// Debit fails with ErrInsufficientFunds without mutating anything.
	Debit(c ctx.Ctx, assetType, user domain.Address, amount *big.Int) error
	// TotalTracked returns the sum of all ledger balances of assetType.
	TotalTracked(c ctx.Ctx, assetType domain.Address) *big.Int

	// AppendTransaction assigns the next sequential id and stores the entry.
	AppendTransaction(c ctx.Ctx, t *Transaction) *Transaction
	GetTransaction(c ctx.Ctx, id uint64) (*Transaction, error)
	TransactionCount(c ctx.Ctx) uint64
}

// TransactionArchive mirrors committed log entries into durable storage. The
// in-memory log stays authoritative; archive failures must not fail the
// operation that produced the entry.
type TransactionArchive interface {
	Append(c ctx.Ctx, t *Transaction) error
	Get(c ctx.Ctx, id uint64) (*Transaction, error)
	FindByUser(c ctx.Ctx, user domain.Address, limit int) ([]*Transaction, error)
}
