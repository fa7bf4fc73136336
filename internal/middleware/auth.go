package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/storyloom/api/internal/auth"
	"github.com/storyloom/api/pkg/response"
)

// Context locals set by the auth middlewares and read through the Get*
// helpers below.
const (
	localUserID = "userId"
	localEmail  = "email"
	localName   = "name"
	localClaims = "claims"
)

// AuthMiddleware authenticates API requests in direct mode. Zitadel JWKS
// tokens are tried first; first-party HMAC tokens are accepted as a
// fallback while older clients migrate.
type AuthMiddleware struct {
	verifier  auth.TokenVerifier
	jwtSecret string
}

// NewAuthMiddleware creates auth middleware with Zitadel JWKS verification only
func NewAuthMiddleware(verifier auth.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

// NewAuthMiddlewareWithFallback creates auth middleware accepting both JWKS
// and first-party HMAC tokens
func NewAuthMiddlewareWithFallback(verifier auth.TokenVerifier, jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		verifier:  verifier,
		jwtSecret: jwtSecret,
	}
}

// NewLegacyAuthMiddleware creates auth middleware using only HMAC signing (for testing/dev)
func NewLegacyAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
	}
}

// Authenticate resolves the caller's identity from the Authorization header
// and stores it in the request locals. Every story, topic and upload route
// sits behind this; handlers read the owner id with GetUserID.
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c)
		if !ok {
			return response.Unauthorized(c, "A bearer token is required")
		}

		if m.verifier != nil {
			claims, err := m.verifier.Validate(tokenString)
			if err == nil {
				c.Locals(localUserID, claims.UserID)
				c.Locals(localEmail, claims.Email)
				c.Locals(localName, claims.Name)
				c.Locals(localClaims, claims)
				return c.Next()
			}
			if m.jwtSecret == "" {
				return response.Unauthorized(c, "Invalid or expired token")
			}
		}

		if m.jwtSecret != "" {
			claims, err := auth.ValidateLegacyToken(tokenString, m.jwtSecret)
			if err != nil {
				return response.Unauthorized(c, "Invalid or expired token")
			}
			c.Locals(localUserID, claims.UserID)
			c.Locals(localEmail, claims.Email)
			c.Locals(localClaims, claims)
			return c.Next()
		}

		return response.Unauthorized(c, "Authentication is not configured")
	}
}

// bearerToken extracts the token from the Authorization header
func bearerToken(c *fiber.Ctx) (string, bool) {
	parts := strings.SplitN(c.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetUserID extracts the authenticated user's id from context
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals(localUserID).(string); ok {
		return userID
	}
	return ""
}

// GetUserEmail extracts the authenticated user's email from context
func GetUserEmail(c *fiber.Ctx) string {
	if email, ok := c.Locals(localEmail).(string); ok {
		return email
	}
	return ""
}

// GetUserName extracts the authenticated user's display name from context
func GetUserName(c *fiber.Ctx) string {
	if name, ok := c.Locals(localName).(string); ok {
		return name
	}
	return ""
}
