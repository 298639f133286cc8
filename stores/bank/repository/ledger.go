package repository

import (
	"math/big"
	"sync"

	"github.com/galleria/goapi/base/ctx"
	"github.com/galleria/goapi/domain"
	"github.com/galleria/goapi/domain/bank"
)

type ledger struct {
	mu sync.RWMutex
	// balances and account existence per asset type, keyed by user
	balances map[domain.Address]map[domain.Address]*big.Int
	log      []*bank.Transaction
}

// NewLedger returns the in-memory balance book and transaction log. Accounts
// come into existence on first credit and stay forever, even at balance 0.
func NewLedger() bank.Repo {
	return &ledger{balances: map[domain.Address]map[domain.Address]*big.Int{}}
}

func (l *ledger) book(assetType domain.Address) map[domain.Address]*big.Int {
	key := assetType.ToLower()
	if l.balances[key] == nil {
		l.balances[key] = map[domain.Address]*big.Int{}
	}
	return l.balances[key]
}

func (l *ledger) Balance(c ctx.Ctx, assetType, user domain.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cur, ok := l.balances[assetType.ToLower()][user.ToLower()]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(cur)
}

func (l *ledger) HasAccount(c ctx.Ctx, assetType, user domain.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.balances[assetType.ToLower()][user.ToLower()]
	return ok
}

func (l *ledger) Credit(c ctx.Ctx, assetType, user domain.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	book := l.book(assetType)
	cur, ok := book[user.ToLower()]
	if !ok {
		cur = new(big.Int)
		book[user.ToLower()] = cur
	}
	cur.Add(cur, amount)
}

func (l *ledger) Debit(c ctx.Ctx, assetType, user domain.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur, ok := l.balances[assetType.ToLower()][user.ToLower()]
	if !ok {
		// a never-credited account has balance 0, so a zero debit is fine
		if amount.Sign() == 0 {
			return nil
		}
		return bank.ErrInsufficientFunds
	}
	if cur.Cmp(amount) < 0 {
		return bank.ErrInsufficientFunds
	}
	cur.Sub(cur, amount)
	return nil
}

func (l *ledger) TotalTracked(c ctx.Ctx, assetType domain.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := new(big.Int)
	for _, cur := range l.balances[assetType.ToLower()] {
		total.Add(total, cur)
	}
	return total
}

func (l *ledger) AppendTransaction(c ctx.Ctx, t *bank.Transaction) *bank.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	t.Id = uint64(len(l.log)) + 1
	l.log = append(l.log, t)
	return t
}

func (l *ledger) GetTransaction(c ctx.Ctx, id uint64) (*bank.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if id < 1 || id > uint64(len(l.log)) {
		return nil, bank.ErrTransactionNotFound
	}
	return l.log[id-1], nil
}

func (l *ledger) TransactionCount(c ctx.Ctx) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.log))
}
