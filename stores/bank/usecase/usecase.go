package usecase

import (
	"math/big"
	"sync"

	"github.com/galleria/goapi/base/ctx"
	"github.com/galleria/goapi/base/log"
	"github.com/galleria/goapi/base/metrics"
	"github.com/galleria/goapi/domain"
	"github.com/galleria/goapi/domain/bank"
)

// BankCfg carries the collaborators of the ledger bank.
type BankCfg struct {
	Repo    bank.Repo
	Tokens  domain.TokenRegistry
	Archive bank.TransactionArchive
	Feed    *domain.EventFeed
	Admin   domain.Address
	// Address under which the bank holds external custody.
	Address domain.Address
}

type bankImpl struct {
	mu sync.Mutex

	repo    bank.Repo
	tokens  domain.TokenRegistry
	archive bank.TransactionArchive
	feed    *domain.EventFeed
	metrics metrics.Service

	admin   domain.Address
	address domain.Address

	auth       bank.WithdrawAuthorization
	affiliates map[domain.Address]bool
	paused     bool
}

func NewBank(cfg *BankCfg) bank.Usecase {
	feed := cfg.Feed
	if feed == nil {
		feed = domain.NewEventFeed()
	}
	return &bankImpl{
		repo:       cfg.Repo,
		tokens:     cfg.Tokens,
		archive:    cfg.Archive,
		feed:       feed,
		metrics:    metrics.New("bank"),
		admin:      cfg.Admin.ToLower(),
		address:    cfg.Address.ToLower(),
		affiliates: map[domain.Address]bool{},
	}
}

func (b *bankImpl) Address() domain.Address {
	return b.address
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return bank.ErrNegativeAmount
	}
	return nil
}

// commit appends the entry to the authoritative log and mirrors it into the
// archive. Archive failures are logged and swallowed.
func (b *bankImpl) commit(c ctx.Ctx, t *bank.Transaction) *bank.Transaction {
	t = b.repo.AppendTransaction(c, t)
	if b.archive != nil {
		if err := b.archive.Append(c, t); err != nil {
			c.WithFields(log.Fields{"txId": t.Id, "err": err}).Warn("transaction archive write failed")
		}
	}
	return t
}

func (b *bankImpl) Deposit(c ctx.Ctx, caller domain.Address, assetType domain.Address, amount *big.Int, beneficiary domain.Address, note string) (*bank.Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.paused {
		return nil, bank.ErrPaused
	}
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	if beneficiary.IsNull() {
		return nil, bank.ErrNullRecipient
	}
	external, err := b.tokens.ExternalBalanceOf(c, assetType, caller)
	if err != nil {
		return nil, err
	}
	if external.Cmp(amount) < 0 {
		return nil, bank.ErrInsufficientExternal
	}

	if err := b.tokens.Pull(c, assetType, caller, amount); err != nil {
		c.WithFields(log.Fields{"caller": caller, "err": err}).Error("deposit pull failed")
		return nil, err
	}
	b.repo.Credit(c, assetType, beneficiary, amount)

	t := b.commit(c, &bank.Transaction{
		From:      caller.ToLower(),
		To:        beneficiary.ToLower(),
		AssetType: assetType.ToLower(),
		Amount:    amount.String(),
		Note:      note,
	})
	b.feed.Emit(bank.DepositEvent{
		TransactionId: t.Id,
		From:          t.From,
		To:            t.To,
		AssetType:     t.AssetType,
		Amount:        new(big.Int).Set(amount),
		Note:          note,
	})
	b.metrics.BumpSum("deposit", 1)
	return t, nil
}

func (b *bankImpl) Withdraw(c ctx.Ctx, caller domain.Address, assetType domain.Address, amount *big.Int, note string) (*bank.Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.paused {
		return nil, bank.ErrPaused
	}
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	if b.auth == nil {
		return nil, bank.ErrWithdrawNotAuthorized
	}
	ok, err := b.auth.CanWithdraw(c, caller, assetType, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, bank.ErrWithdrawNotAuthorized
	}

	if err := b.repo.Debit(c, assetType, caller, amount); err != nil {
		return nil, err
	}
	if err := b.tokens.Push(c, assetType, caller, amount); err != nil {
		// keep the ledger consistent with custody
		b.repo.Credit(c, assetType, caller, amount)
		c.WithFields(log.Fields{"caller": caller, "err": err}).Error("withdraw push failed")
		return nil, err
	}

	t := b.commit(c, &bank.Transaction{
		From:      b.address,
		To:        caller.ToLower(),
		AssetType: assetType.ToLower(),
		Amount:    amount.String(),
		Note:      note,
	})
	b.feed.Emit(bank.WithdrawalEvent{
		TransactionId: t.Id,
		User:          t.To,
		AssetType:     t.AssetType,
		Amount:        new(big.Int).Set(amount),
		Note:          note,
	})
	b.metrics.BumpSum("withdraw", 1)
	return t, nil
}

func (b *bankImpl) Pay(c ctx.Ctx, caller domain.Address, assetType domain.Address, amount *big.Int, recipient domain.Address, note string) (*bank.Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pay(c, caller, assetType, amount, caller, recipient, note)
}

func (b *bankImpl) PayByAffiliate(c ctx.Ctx, caller domain.Address, assetType domain.Address, amount *big.Int, payer, recipient domain.Address, note string) (*bank.Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.affiliates[caller.ToLower()] {
		return nil, bank.ErrNotAffiliate
	}
	if payer.IsNull() {
		return nil, bank.ErrNoSuchAccount
	}
	return b.pay(c, caller, assetType, amount, payer, recipient, note)
}

// pay moves amount out of payer's ledger balance into recipient's external
// holdings. Caller must hold b.mu.
func (b *bankImpl) pay(c ctx.Ctx, caller domain.Address, assetType domain.Address, amount *big.Int, payer, recipient domain.Address, note string) (*bank.Transaction, error) {
	if b.paused {
		return nil, bank.ErrPaused
	}
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	if recipient.IsNull() {
		return nil, bank.ErrNullRecipient
	}

	if err := b.repo.Debit(c, assetType, payer, amount); err != nil {
		return nil, err
	}
	if err := b.tokens.Push(c, assetType, recipient, amount); err != nil {
		b.repo.Credit(c, assetType, payer, amount)
		c.WithFields(log.Fields{"payer": payer, "recipient": recipient, "err": err}).Error("payment push failed")
		return nil, err
	}

	affiliate := domain.Address("")
	if !caller.Equals(payer) {
		affiliate = caller.ToLower()
	}
	t := b.commit(c, &bank.Transaction{
		From:              payer.ToLower(),
		To:                recipient.ToLower(),
		AffiliateExecuted: affiliate,
		AssetType:         assetType.ToLower(),
		Amount:            amount.String(),
		Note:              note,
	})
	b.feed.Emit(bank.PaymentEvent{
		TransactionId: t.Id,
		From:          t.From,
		To:            t.To,
		AssetType:     t.AssetType,
		Amount:        new(big.Int).Set(amount),
		Note:          note,
		Affiliate:     affiliate,
	})
	b.metrics.BumpSum("pay", 1)
	return t, nil
}

func (b *bankImpl) SettleExchange(c ctx.Ctx, caller domain.Address, assetType domain.Address, price, cut *big.Int, payer, beneficiary, cutRecipient domain.Address, note string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.paused {
		return bank.ErrPaused
	}
	if !b.affiliates[caller.ToLower()] {
		return bank.ErrNotAffiliate
	}
	if err := validAmount(price); err != nil {
		return err
	}
	if err := validAmount(cut); err != nil {
		return err
	}
	if beneficiary.IsNull() {
		return bank.ErrNullRecipient
	}
	if cut.Cmp(price) > 0 {
		return bank.ErrInvalidSettlement
	}
	if cut.Sign() > 0 && cutRecipient.IsNull() {
		return bank.ErrNullRecipient
	}

	if err := b.repo.Debit(c, assetType, payer, price); err != nil {
		return err
	}
	proceeds := new(big.Int).Sub(price, cut)
	b.repo.Credit(c, assetType, beneficiary, proceeds)

	if cut.Sign() > 0 {
		if err := b.tokens.Push(c, assetType, cutRecipient, cut); err != nil {
			// unwind both ledger moves
			if derr := b.repo.Debit(c, assetType, beneficiary, proceeds); derr != nil {
				c.WithFields(log.Fields{"beneficiary": beneficiary, "err": derr}).Error("settlement unwind failed")
			}
			b.repo.Credit(c, assetType, payer, price)
			c.WithFields(log.Fields{"cutRecipient": cutRecipient, "err": err}).Error("settlement cut push failed")
			return err
		}
	}

	// one log entry per leg, so amounts across the log conserve
	t := b.commit(c, &bank.Transaction{
		From:              payer.ToLower(),
		To:                beneficiary.ToLower(),
		AffiliateExecuted: caller.ToLower(),
		AssetType:         assetType.ToLower(),
		Amount:            proceeds.String(),
		Note:              note,
	})
	b.feed.Emit(bank.PaymentEvent{
		TransactionId: t.Id,
		From:          t.From,
		To:            t.To,
		AssetType:     t.AssetType,
		Amount:        proceeds,
		Note:          note,
		Affiliate:     caller.ToLower(),
	})
	if cut.Sign() > 0 {
		tc := b.commit(c, &bank.Transaction{
			From:              payer.ToLower(),
			To:                cutRecipient.ToLower(),
			AffiliateExecuted: caller.ToLower(),
			AssetType:         assetType.ToLower(),
			Amount:            cut.String(),
			Note:              note,
		})
		b.feed.Emit(bank.PaymentEvent{
			TransactionId: tc.Id,
			From:          tc.From,
			To:            tc.To,
			AssetType:     tc.AssetType,
			Amount:        new(big.Int).Set(cut),
			Note:          note,
			Affiliate:     caller.ToLower(),
		})
	}
	b.metrics.BumpSum("settle_exchange", 1)
	return nil
}

func (b *bankImpl) HasEnoughTokens(c ctx.Ctx, assetType domain.Address, amount *big.Int, user domain.Address) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.repo.Balance(c, assetType, user).Cmp(amount) >= 0, nil
}

// UserBalance returns 0 for accounts that never received a credit; reads
// never create accounts.
func (b *bankImpl) UserBalance(c ctx.Ctx, assetType domain.Address, user domain.Address) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.repo.Balance(c, assetType, user), nil
}

func (b *bankImpl) GetTransaction(c ctx.Ctx, id uint64) (*bank.Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.repo.GetTransaction(c, id)
}

func (b *bankImpl) TransactionCount(c ctx.Ctx) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.repo.TransactionCount(c)
}

func (b *bankImpl) AddAffiliate(c ctx.Ctx, caller, affiliate domain.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !caller.Equals(b.admin) {
		return bank.ErrNotAdmin
	}
	if b.paused {
		return bank.ErrPaused
	}
	if affiliate.IsNull() {
		return bank.ErrNullAffiliate
	}
	if b.affiliates[affiliate.ToLower()] {
		return bank.ErrAlreadyAffiliate
	}
	b.affiliates[affiliate.ToLower()] = true
	b.feed.Emit(bank.AffiliateAddedEvent{Affiliate: affiliate.ToLower()})
	return nil
}

func (b *bankImpl) RemoveAffiliate(c ctx.Ctx, caller, affiliate domain.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !caller.Equals(b.admin) {
		return bank.ErrNotAdmin
	}
	if b.paused {
		return bank.ErrPaused
	}
	if !b.affiliates[affiliate.ToLower()] {
		return bank.ErrNotAffiliate
	}
	delete(b.affiliates, affiliate.ToLower())
	b.feed.Emit(bank.AffiliateRemovedEvent{Affiliate: affiliate.ToLower()})
	return nil
}

func (b *bankImpl) IsAffiliate(c ctx.Ctx, affiliate domain.Address) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.affiliates[affiliate.ToLower()], nil
}

func (b *bankImpl) SetWithdrawAuthorization(c ctx.Ctx, caller domain.Address, auth bank.WithdrawAuthorization) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !caller.Equals(b.admin) {
		return bank.ErrNotAdmin
	}
	if b.paused {
		return bank.ErrPaused
	}
	b.auth = auth
	return nil
}

func (b *bankImpl) TransferToNewBank(c ctx.Ctx, caller domain.Address, assetType domain.Address, user domain.Address, dest bank.Usecase) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !caller.Equals(b.admin) {
		return bank.ErrNotAdmin
	}
	if !b.paused {
		return bank.ErrNotPaused
	}
	balance := b.repo.Balance(c, assetType, user)
	if balance.Sign() == 0 {
		return bank.ErrZeroBalanceMigration
	}

	if err := b.repo.Debit(c, assetType, user, balance); err != nil {
		return err
	}
	// the destination pulls the backing holdings out of this bank's custody
	// and credits the user on its own ledger
	if _, err := dest.Deposit(c, b.address, assetType, balance, user, "bank migration"); err != nil {
		b.repo.Credit(c, assetType, user, balance)
		c.WithFields(log.Fields{"user": user, "err": err}).Error("bank migration deposit failed")
		return err
	}

	b.commit(c, &bank.Transaction{
		From:      user.ToLower(),
		To:        user.ToLower(),
		AssetType: assetType.ToLower(),
		Amount:    balance.String(),
		Note:      "bank migration",
	})
	b.metrics.BumpSum("migrate", 1)
	return nil
}

func (b *bankImpl) WithdrawByOwner(c ctx.Ctx, caller domain.Address, assetType domain.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !caller.Equals(b.admin) {
		return bank.ErrNotAdmin
	}
	if !b.paused {
		return bank.ErrNotPaused
	}

	external, err := b.tokens.ExternalBalanceOf(c, assetType, b.address)
	if err != nil {
		return err
	}
	surplus := new(big.Int).Sub(external, b.repo.TotalTracked(c, assetType))
	if surplus.Sign() <= 0 {
		return bank.ErrInsufficientExternal
	}
	// surplus is untracked by definition, so no log entry is written
	return b.tokens.Push(c, assetType, b.admin, surplus)
}

func (b *bankImpl) Pause(c ctx.Ctx, caller domain.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !caller.Equals(b.admin) {
		return bank.ErrNotAdmin
	}
	if b.paused {
		return bank.ErrPaused
	}
	b.paused = true
	return nil
}

func (b *bankImpl) Unpause(c ctx.Ctx, caller domain.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !caller.Equals(b.admin) {
		return bank.ErrNotAdmin
	}
	if !b.paused {
		return bank.ErrNotPaused
	}
	b.paused = false
	return nil
}

func (b *bankImpl) Paused(c ctx.Ctx) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.paused
}
