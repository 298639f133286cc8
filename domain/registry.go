package domain

import (
	"math/big"

	"github.com/galleria/goapi/base/ctx"
)

// AssetRegistry is the external non-fungible asset collaborator. The core
// only queries ownership and moves custody; mint/burn/approval stay outside.
type AssetRegistry interface {
	OwnerOf(c ctx.Ctx, assetId AssetId) (Address, error)
	// TransferCustody fails if from is not the current custodian.
	TransferCustody(c ctx.Ctx, assetId AssetId, from, to Address) error
}

// TokenRegistry is the external fungible token collaborator, bound to the
// holding component's own address: Pull moves units from a third party into
// the component's custody, Push moves units out of it.
type TokenRegistry interface {
	Pull(c ctx.Ctx, assetType, from Address, amount *big.Int) error
	Push(c ctx.Ctx, assetType, to Address, amount *big.Int) error
	ExternalBalanceOf(c ctx.Ctx, assetType, holder Address) (*big.Int, error)
}
