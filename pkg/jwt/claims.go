package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims identifies an operator calling the admin API
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// RoleAdmin is the only role the admin API accepts
const RoleAdmin = "admin"
