package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/galleria/goapi/base/ctx"
	"github.com/galleria/goapi/base/delivery"
	"github.com/galleria/goapi/base/validator"
	"github.com/galleria/goapi/domain"
)

type authHandler struct {
	auth        domain.AuthUsecase
	relaySecret string
}

// New registers the token endpoint the relay calls to obtain an attestation
// token for the address it vouches for.
func New(e *echo.Echo, auth domain.AuthUsecase, relaySecret string) {
	handler := &authHandler{
		auth:        auth,
		relaySecret: relaySecret,
	}
	g := e.Group("/auth")
	g.POST("/token", handler.token)
}

func (h *authHandler) token(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type params struct {
		RelaySecret string         `json:"relaySecret"`
		Address     domain.Address `json:"address"`
	}

	p := &params{}
	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("bind failed")
		return delivery.MakeJsonResp(c, http.StatusBadRequest, "invalid params")
	}
	if !validator.IsValidAddress(string(p.Address)) {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, "invalid address")
	}
	if subtle.ConstantTimeCompare([]byte(p.RelaySecret), []byte(h.relaySecret)) != 1 {
		return delivery.MakeJsonResp(c, http.StatusForbidden, "invalid relay secret")
	}

	tkn, err := h.auth.SignToken(ctx, p.Address)
	if err != nil {
		ctx.WithField("err", err).Error("auth.SignToken failed")
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusCreated, tkn)
}
