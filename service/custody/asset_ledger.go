package custody

import (
	"sync"

	"golang.org/x/xerrors"

	"github.com/galleria/goapi/base/ctx"
	"github.com/galleria/goapi/domain"
)

var (
	ErrUnknownAsset  = xerrors.Errorf("asset does not exist: %w", domain.ErrNotFound)
	ErrAssetExists   = xerrors.Errorf("asset already exists: %w", domain.ErrInvalidState)
	ErrNotCustodian  = xerrors.Errorf("sender is not the current custodian: %w", domain.ErrUnauthorized)
	ErrNullCustodian = xerrors.Errorf("custody transfer to null address: %w", domain.ErrInvalidInput)
)

// AssetLedger is an in-process reference implementation of the external
// non-fungible asset registry, used by local deployments and tests.
type AssetLedger struct {
	mu     sync.Mutex
	owners map[domain.AssetId]domain.Address
}

func NewAssetLedger() *AssetLedger {
	return &AssetLedger{owners: map[domain.AssetId]domain.Address{}}
}

// Mint registers a new asset under owner.
func (l *AssetLedger) Mint(c ctx.Ctx, assetId domain.AssetId, owner domain.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.owners[assetId]; ok {
		return ErrAssetExists
	}
	if owner.IsNull() {
		return ErrNullCustodian
	}
	l.owners[assetId] = owner.ToLower()
	return nil
}

func (l *AssetLedger) OwnerOf(c ctx.Ctx, assetId domain.AssetId) (domain.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	owner, ok := l.owners[assetId]
	if !ok {
		return "", ErrUnknownAsset
	}
	return owner, nil
}

func (l *AssetLedger) TransferCustody(c ctx.Ctx, assetId domain.AssetId, from, to domain.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	owner, ok := l.owners[assetId]
	if !ok {
		return ErrUnknownAsset
	}
	if !owner.Equals(from) {
		return ErrNotCustodian
	}
	if to.IsNull() {
		return ErrNullCustodian
	}
	l.owners[assetId] = to.ToLower()
	return nil
}

var _ domain.AssetRegistry = (*AssetLedger)(nil)
