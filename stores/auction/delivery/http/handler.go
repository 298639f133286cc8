package http

import (
	"math/big"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	bCtx "github.com/galleria/goapi/base/ctx"
	"github.com/galleria/goapi/base/delivery"
	"github.com/galleria/goapi/base/priceformat"
	"github.com/galleria/goapi/domain"
	dAuction "github.com/galleria/goapi/domain/auction"
	authMiddleware "github.com/galleria/goapi/stores/auth/delivery/http/middleware"
)

type handler struct {
	auction dAuction.Usecase
	// decimals of the payment asset, for display prices
	decimals int32
}

func New(e *echo.Echo, auction dAuction.Usecase, decimals int32, auth *authMiddleware.AuthMiddleware) {
	h := &handler{auction, decimals}

	g := e.Group("/auctions")
	g.GET("", h.list)
	g.GET("/:assetId", h.get)
	g.GET("/:assetId/price", h.getPrice)
	g.POST("", h.create, auth.Auth())
	g.POST("/minting", h.createMinting, auth.Auth(), auth.IsAdmin())
	g.POST("/:assetId/bids", h.bid, auth.Auth())
	g.DELETE("/:assetId", h.cancel, auth.Auth())

	admin := e.Group("/admin/auctions", auth.Auth(), auth.IsAdmin())
	admin.DELETE("/:assetId", h.cancelWhenPaused)
	admin.DELETE("/:assetId/record", h.remove)
	admin.PUT("/cut", h.setCut)
	admin.PUT("/delayedCancelCut", h.setDelayedCancelCut)
	admin.POST("/cut/withdrawals", h.withdrawCut)
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

func (h *handler) list(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)
	type params struct {
		Seller *domain.Address `query:"seller"`
		Offset int             `query:"offset"`
		Limit  int             `query:"limit"`
	}

	p := &params{}
	if err := _ctx.Bind(p); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusBadRequest, "invalid params")
	}

	if p.Seller != nil {
		total, err := h.auction.TotalAuctionsBySeller(ctx, *p.Seller)
		if err != nil {
			return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
		}
		return delivery.MakeJsonResp(_ctx, http.StatusOK, map[string]interface{}{"total": total})
	}

	total, err := h.auction.TotalAuctions(ctx)
	if err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	limit := p.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	auctions := []*dAuction.Auction{}
	for i := p.Offset; i < total && len(auctions) < limit; i++ {
		a, err := h.auction.AuctionByIndex(ctx, i)
		if err != nil {
			return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
		}
		auctions = append(auctions, a)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusOK, map[string]interface{}{
		"total":    total,
		"auctions": auctions,
	})
}

func (h *handler) get(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)

	res, err := h.auction.GetAuction(ctx, domain.AssetId(_ctx.Param("assetId")))
	if err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusOK, res)
}

func (h *handler) getPrice(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)

	price, err := h.auction.GetCurrentPrice(ctx, domain.AssetId(_ctx.Param("assetId")))
	if err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusOK, map[string]interface{}{
		"price":        price.String(),
		"displayPrice": priceformat.Display(price, h.decimals),
	})
}

func (h *handler) create(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)
	caller := _ctx.Get("address").(domain.Address)

	type params struct {
		AssetId         domain.AssetId `json:"assetId"`
		StartingPrice   string         `json:"startingPrice"`
		EndingPrice     string         `json:"endingPrice"`
		DurationSeconds int64          `json:"durationSeconds"`
	}

	p := &params{}
	if err := _ctx.Bind(p); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusBadRequest, "invalid params")
	}
	startingPrice, ok := parseAmount(p.StartingPrice)
	if !ok {
		return delivery.MakeJsonResp(_ctx, http.StatusBadRequest, "invalid startingPrice")
	}
	endingPrice, ok := parseAmount(p.EndingPrice)
	if !ok {
		return delivery.MakeJsonResp(_ctx, http.StatusBadRequest, "invalid endingPrice")
	}

	err := h.auction.CreateAuction(ctx, caller, p.AssetId, startingPrice, endingPrice, time.Duration(p.DurationSeconds)*time.Second)
	if err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusCreated, p.AssetId)
}

func (h *handler) createMinting(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)
	caller := _ctx.Get("address").(domain.Address)

	type params struct {
		AssetId         domain.AssetId `json:"assetId"`
		StartingPrice   string         `json:"startingPrice"`
		EndingPrice     string         `json:"endingPrice"`
		DurationSeconds int64          `json:"durationSeconds"`
		Seller          domain.Address `json:"seller"`
	}

	p := &params{}
	if err := _ctx.Bind(p); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusBadRequest, "invalid params")
	}
	startingPrice, ok := parseAmount(p.StartingPrice)
	if !ok {
		return delivery.MakeJsonResp(_ctx, http.StatusBadRequest, "invalid startingPrice")
	}
	endingPrice, ok := parseAmount(p.EndingPrice)
	if !ok {
		return delivery.MakeJsonResp(_ctx, http.StatusBadRequest, "invalid endingPrice")
	}

	err := h.auction.CreateMintingAuction(ctx, caller, p.AssetId, startingPrice, endingPrice, time.Duration(p.DurationSeconds)*time.Second, p.Seller)
	if err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusCreated, p.AssetId)
}

func (h *handler) bid(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)
	caller := _ctx.Get("address").(domain.Address)

	type params struct {
		Amount string `json:"amount"`
	}

	p := &params{}
	if err := _ctx.Bind(p); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusBadRequest, "invalid params")
	}
	amount, ok := parseAmount(p.Amount)
	if !ok {
		return delivery.MakeJsonResp(_ctx, http.StatusBadRequest, "invalid amount")
	}

	if err := h.auction.Bid(ctx, caller, domain.AssetId(_ctx.Param("assetId")), amount); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusOK, "settled")
}

func (h *handler) cancel(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)
	caller := _ctx.Get("address").(domain.Address)

	if err := h.auction.CancelAuction(ctx, caller, domain.AssetId(_ctx.Param("assetId"))); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusOK, "cancelled")
}

func (h *handler) cancelWhenPaused(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)
	caller := _ctx.Get("address").(domain.Address)

	if err := h.auction.CancelAuctionWhenPaused(ctx, caller, domain.AssetId(_ctx.Param("assetId"))); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusOK, "cancelled")
}

func (h *handler) remove(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)
	caller := _ctx.Get("address").(domain.Address)

	if err := h.auction.RemoveAuction(ctx, caller, domain.AssetId(_ctx.Param("assetId"))); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusOK, "removed")
}

func (h *handler) setCut(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)
	caller := _ctx.Get("address").(domain.Address)

	type params struct {
		Bps int64 `json:"bps"`
	}
	p := &params{}
	if err := _ctx.Bind(p); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusBadRequest, "invalid params")
	}

	if err := h.auction.SetAuctioneerCut(ctx, caller, p.Bps); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusOK, p.Bps)
}

func (h *handler) setDelayedCancelCut(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)
	caller := _ctx.Get("address").(domain.Address)

	type params struct {
		Bps int64 `json:"bps"`
	}
	p := &params{}
	if err := _ctx.Bind(p); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusBadRequest, "invalid params")
	}

	if err := h.auction.SetAuctioneerDelayedCancelCut(ctx, caller, p.Bps); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusOK, p.Bps)
}

func (h *handler) withdrawCut(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)
	caller := _ctx.Get("address").(domain.Address)

	type params struct {
		AssetType domain.Address `json:"assetType"`
	}
	p := &params{}
	if err := _ctx.Bind(p); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusBadRequest, "invalid params")
	}

	if err := h.auction.WithdrawCut(ctx, caller, p.AssetType); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusOK, "withdrawn")
}

func (h *handler) pause(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)
	caller := _ctx.Get("address").(domain.Address)

	if err := h.auction.Pause(ctx, caller); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusOK, "paused")
}

func (h *handler) unpause(_ctx echo.Context) error {
	ctx := _ctx.Get("ctx").(bCtx.Ctx)
	caller := _ctx.Get("address").(domain.Address)

	if err := h.auction.Unpause(ctx, caller); err != nil {
		return delivery.MakeJsonResp(_ctx, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(_ctx, http.StatusOK, "unpaused")
}
