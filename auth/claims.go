package auth

import "github.com/golang-jwt/jwt/v5"

// RoleAdmin is the only role the outreach API issues.
const RoleAdmin = "admin"

// Claims is the session token payload. Subject names the operator.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}
