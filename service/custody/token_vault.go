package custody

import (
	"math/big"
	"sync"

	"golang.org/x/xerrors"

	"github.com/galleria/goapi/base/ctx"
	"github.com/galleria/goapi/domain"
)

var ErrInsufficientHoldings = xerrors.Errorf("not enough external tokens: %w", domain.ErrInsufficientFunds)

// TokenVault is an in-process reference implementation of the external
// fungible token registry: holdings per (assetType, holder).
type TokenVault struct {
	mu       sync.Mutex
	balances map[domain.Address]map[domain.Address]*big.Int
}

func NewTokenVault() *TokenVault {
	return &TokenVault{balances: map[domain.Address]map[domain.Address]*big.Int{}}
}

func (v *TokenVault) holdings(assetType domain.Address) map[domain.Address]*big.Int {
	key := assetType.ToLower()
	if v.balances[key] == nil {
		v.balances[key] = map[domain.Address]*big.Int{}
	}
	return v.balances[key]
}

// Mint credits freshly issued units to a holder.
func (v *TokenVault) Mint(c ctx.Ctx, assetType, to domain.Address, amount *big.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	h := v.holdings(assetType)
	cur, ok := h[to.ToLower()]
	if !ok {
		cur = new(big.Int)
		h[to.ToLower()] = cur
	}
	cur.Add(cur, amount)
}

func (v *TokenVault) Transfer(c ctx.Ctx, assetType, from, to domain.Address, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	h := v.holdings(assetType)
	src, ok := h[from.ToLower()]
	if !ok || src.Cmp(amount) < 0 {
		return ErrInsufficientHoldings
	}
	dst, ok := h[to.ToLower()]
	if !ok {
		dst = new(big.Int)
		h[to.ToLower()] = dst
	}
	src.Sub(src, amount)
	dst.Add(dst, amount)
	return nil
}

func (v *TokenVault) BalanceOf(c ctx.Ctx, assetType, holder domain.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	cur, ok := v.holdings(assetType)[holder.ToLower()]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(cur)
}

// Bound returns the registry view of a custody-holding component: Pull moves
// units from a third party into holder's custody, Push moves them out.
func (v *TokenVault) Bound(holder domain.Address) domain.TokenRegistry {
	return &boundRegistry{vault: v, holder: holder.ToLower()}
}

type boundRegistry struct {
	vault  *TokenVault
	holder domain.Address
}

func (r *boundRegistry) Pull(c ctx.Ctx, assetType, from domain.Address, amount *big.Int) error {
	return r.vault.Transfer(c, assetType, from, r.holder, amount)
}

func (r *boundRegistry) Push(c ctx.Ctx, assetType, to domain.Address, amount *big.Int) error {
	return r.vault.Transfer(c, assetType, r.holder, to, amount)
}

func (r *boundRegistry) ExternalBalanceOf(c ctx.Ctx, assetType, holder domain.Address) (*big.Int, error) {
	return r.vault.BalanceOf(c, assetType, holder), nil
}

var _ domain.TokenRegistry = (*boundRegistry)(nil)
