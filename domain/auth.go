package domain

import (
	"github.com/golang-jwt/jwt"

	"github.com/galleria/goapi/base/ctx"
)

// JwtCustomClaims attest the address a relayed request acts on behalf of.
type JwtCustomClaims struct {
	Address string `json:"address"`
	jwt.StandardClaims
}

// AuthUsecase issues and verifies relay attestation tokens. The settlement
// core trusts the attested address completely; verifying the end-user's
// intent is the relay's job.
type AuthUsecase interface {
	SignToken(c ctx.Ctx, address Address) (string, error)
	ParseToken(c ctx.Ctx, str string) (string, error)
}
