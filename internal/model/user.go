package model

import "github.com/golang-jwt/jwt/v5"

const RoleAdmin = "admin"

// AuthClaims are the claims carried by admin API tokens.
type AuthClaims struct {
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}
