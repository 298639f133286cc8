package bank

import (
	"math/big"

	"golang.org/x/xerrors"

	"github.com/galleria/goapi/base/ctx"
	"github.com/galleria/goapi/domain"
)

// WithdrawAuthorization answers "may user withdraw amount of assetType right
// now". The simplest policy is a membership-only gate that ignores assetType
// and amount, but the interface is kept general so richer policies (per-asset
// caps, rate limits) can be substituted without touching the bank.
type WithdrawAuthorization interface {
	CanWithdraw(c ctx.Ctx, user domain.Address, assetType domain.Address, amount *big.Int) (bool, error)
}

// WhitelistUsecase is the administrative surface of the membership-only
// authorization policy.
type WhitelistUsecase interface {
	WithdrawAuthorization
	AddToWhitelist(c ctx.Ctx, caller, user domain.Address) error
	RemoveFromWhitelist(c ctx.Ctx, caller, user domain.Address) error
	IsWhitelisted(c ctx.Ctx, user domain.Address) (bool, error)
}

type AddedToWhitelistEvent struct {
	User domain.Address `json:"user"`
}

type RemovedFromWhitelistEvent struct {
	User domain.Address `json:"user"`
}

var (
	ErrAlreadyWhitelisted = xerrors.Errorf("address is already whitelisted: %w", domain.ErrInvalidState)
	ErrNotWhitelisted     = xerrors.Errorf("address is not whitelisted: %w", domain.ErrInvalidState)
)
