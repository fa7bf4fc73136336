package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LegacyIssuer is stamped on first-party HMAC-signed tokens so they are
// never confused with Zitadel-issued ones.
const LegacyIssuer = "storyloom-api"

// LegacyClaims are the claims of first-party HMAC-signed tokens, still
// accepted for clients that predate Zitadel sign-in.
type LegacyClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// NewLegacyToken mints an HMAC-signed token for a user
func NewLegacyToken(userID, email, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := LegacyClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    LegacyIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ValidateLegacyToken checks the signature, expiry and issuer of an
// HMAC-signed token. Tokens signed with any other method or issued by
// anyone else are rejected outright.
func ValidateLegacyToken(tokenString, secret string) (*LegacyClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &LegacyClaims{},
		func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(LegacyIssuer),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*LegacyClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
