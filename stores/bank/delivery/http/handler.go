package http

import (
	"math/big"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	bCtx "github.com/galleria/goapi/base/ctx"
	"github.com/galleria/goapi/base/delivery"
	"github.com/galleria/goapi/domain"
	dBank "github.com/galleria/goapi/domain/bank"
	authMiddleware "github.com/galleria/goapi/stores/auth/delivery/http/middleware"
)

type handler struct {
	bank      dBank.Usecase
	whitelist dBank.WhitelistUsecase
	archive   dBank.TransactionArchive
}

func New(e *echo.Echo, bank dBank.Usecase, whitelist dBank.WhitelistUsecase, archive dBank.TransactionArchive, auth *authMiddleware.AuthMiddleware) {
	h := &handler{bank, whitelist, archive}

	g := e.Group("/bank")
	g.GET("/balances/:user", h.getBalance)
	g.GET("/transactions/:id", h.getTransaction)
	g.GET("/transactions", h.listTransactions)
	g.POST("/deposits", h.deposit, auth.Auth())
	g.POST("/withdrawals", h.withdraw, auth.Auth())
	g.POST("/payments", h.pay, auth.Auth())

	admin := e.Group("/admin/bank", auth.Auth(), auth.IsAdmin())
	admin.POST("/affiliates", h.addAffiliate)
	admin.DELETE("/affiliates/:address", h.removeAffiliate)
	admin.POST("/whitelist", h.addToWhitelist)
	admin.DELETE("/whitelist/:address", h.removeFromWhitelist)
	admin.POST("/pause", h.pause)
	admin.POST("/unpause", h.unpause)
}

// parseAmount accepts non-negative base-10 integers only.
func parseAmount(s string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}

func (h *handler) getBalance(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)
	type params struct {
		AssetType domain.Address `query:"assetType"`
	}

	p := &params{}
	if err := _ctx.Bind(p); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusBadRequest, "invalid params")
	}

	balance, err := h.bank.UserBalance(ctx, p.AssetType, domain.Address(_ctx.Param("user")))
	if err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusOK, map[string]interface{}{
		"assetType": p.AssetType.ToLower(),
		"balance":   balance.String(),
	})
}

func (h *handler) getTransaction(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)

	id, err := strconv.ParseUint(_ctx.Param("id"), 10, 64)
	if err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusBadRequest, "invalid transaction id")
	}

	res, err := h.bank.GetTransaction(ctx, id)
	if err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusOK, res)
}

// listTransactions serves durable per-user history out of the archive
func (h *handler) listTransactions(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)
	type params struct {
		User  domain.Address `query:"user"`
		Limit int            `query:"limit"`
	}

	p := &params{}
	if err := _ctx.Bind(p); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusBadRequest, "invalid params")
	}
	if h.archive == nil {
		return delivery.MakeJsonResp(_ctx, http.StatusOK, map[string]interface{}{
			"total": h.bank.TransactionCount(ctx),
		})
	}

	limit := p.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	res, err := h.archive.FindByUser(ctx, p.User, limit)
	if err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusOK, map[string]interface{}{
		"total":        h.bank.TransactionCount(ctx),
		"transactions": res,
	})
}

func (h *handler) deposit(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)
	caller := _ctx.Get("address").(domain.Address)

	type params struct {
		AssetType   domain.Address `json:"assetType"`
		Amount      string         `json:"amount"`
		Beneficiary domain.Address `json:"beneficiary"`
		Note        string         `json:"note"`
	}

	p := &params{}
	if err := _ctx.Bind(p); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusBadRequest, "invalid params")
	}
	amount, ok := parseAmount(p.Amount)
	if !ok {
		return delivery.MakeJsonResp(_ctx, http.StatusBadRequest, "invalid amount")
	}
	beneficiary := p.Beneficiary
	if beneficiary.IsNull() {
		beneficiary = caller
	}

	res, err := h.bank.Deposit(ctx, caller, p.AssetType, amount, beneficiary, p.Note)
	if err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusCreated, res)
}

func (h *handler) withdraw(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)
	caller := _ctx.Get("address").(domain.Address)

	type params struct {
		AssetType domain.Address `json:"assetType"`
		Amount    string         `json:"amount"`
		Note      string         `json:"note"`
	}

	p := &params{}
	if err := _ctx.Bind(p); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusBadRequest, "invalid params")
	}
	amount, ok := parseAmount(p.Amount)
	if !ok {
		return delivery.MakeJsonResp(_ctx, http.StatusBadRequest, "invalid amount")
	}

	res, err := h.bank.Withdraw(ctx, caller, p.AssetType, amount, p.Note)
	if err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusCreated, res)
}

func (h *handler) pay(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)
	caller := _ctx.Get("address").(domain.Address)

	type params struct {
		AssetType domain.Address `json:"assetType"`
		Amount    string         `json:"amount"`
		Recipient domain.Address `json:"recipient"`
		// Payer other than the caller requires affiliate membership
		Payer domain.Address `json:"payer"`
		Note  string         `json:"note"`
	}

	p := &params{}
	if err := _ctx.Bind(p); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusBadRequest, "invalid params")
	}
	amount, ok := parseAmount(p.Amount)
	if !ok {
		return delivery.MakeJsonResp(_ctx, http.StatusBadRequest, "invalid amount")
	}

	var res *dBank.Transaction
	var err error
	if p.Payer.IsNull() || p.Payer.Equals(caller) {
		res, err = h.bank.Pay(ctx, caller, p.AssetType, amount, p.Recipient, p.Note)
	} else {
		res, err = h.bank.PayByAffiliate(ctx, caller, p.AssetType, amount, p.Payer, p.Recipient, p.Note)
	}
	if err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusCreated, res)
}

func (h *handler) addAffiliate(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)
	caller := _ctx.Get("address").(domain.Address)

	type params struct {
		Affiliate domain.Address `json:"affiliate"`
	}
	p := &params{}
	if err := _ctx.Bind(p); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusBadRequest, "invalid params")
	}

	if err := h.bank.AddAffiliate(ctx, caller, p.Affiliate); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusCreated, p.Affiliate.ToLower())
}

func (h *handler) removeAffiliate(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)
	caller := _ctx.Get("address").(domain.Address)

	if err := h.bank.RemoveAffiliate(ctx, caller, domain.Address(_ctx.Param("address"))); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusOK, "removed")
}

func (h *handler) addToWhitelist(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)
	caller := _ctx.Get("address").(domain.Address)

	type params struct {
		User domain.Address `json:"user"`
	}
	p := &params{}
	if err := _ctx.Bind(p); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusBadRequest, "invalid params")
	}

	if err := h.whitelist.AddToWhitelist(ctx, caller, p.User); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusCreated, p.User.ToLower())
}

func (h *handler) removeFromWhitelist(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)
	caller := _ctx.Get("address").(domain.Address)

	if err := h.whitelist.RemoveFromWhitelist(ctx, caller, domain.Address(_ctx.Param("address"))); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusOK, "removed")
}

func (h *handler) pause(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)
	caller := _ctx.Get("address").(domain.Address)

	if err := h.bank.Pause(ctx, caller); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusOK, "paused")
}

func (h *handler) unpause(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)
	caller := _ctx.Get("address").(domain.Address)

	if err := h.bank.Unpause(ctx, caller); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusOK, "unpaused")
}
