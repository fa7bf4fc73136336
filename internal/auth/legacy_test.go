package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestLegacyTokenRoundTrip(t *testing.T) {
	token, err := NewLegacyToken("user-1", "u@example.com", "secret", time.Hour)
	if err != nil {
		t.Fatalf("NewLegacyToken: %v", err)
	}

	claims, err := ValidateLegacyToken(token, "secret")
	if err != nil {
		t.Fatalf("ValidateLegacyToken: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "u@example.com" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Issuer != LegacyIssuer {
		t.Errorf("issuer = %q, want %q", claims.Issuer, LegacyIssuer)
	}
}

func TestValidateLegacyTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewLegacyToken("user-1", "", "secret", time.Hour)
	if err != nil {
		t.Fatalf("NewLegacyToken: %v", err)
	}
	if _, err := ValidateLegacyToken(token, "other-secret"); err == nil {
		t.Fatal("token forged with a different secret accepted")
	}
}

func TestValidateLegacyTokenRejectsExpired(t *testing.T) {
	token, err := NewLegacyToken("user-1", "", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("NewLegacyToken: %v", err)
	}
	if _, err := ValidateLegacyToken(token, "secret"); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestValidateLegacyTokenRejectsForeignIssuer(t *testing.T) {
	claims := LegacyClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ValidateLegacyToken(token, "secret"); err == nil {
		t.Fatal("token from a foreign issuer accepted")
	}
}
