package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/storyloom/api/internal/auth"
	"github.com/storyloom/api/internal/middleware"
)

// AuthHandler answers ForwardAuth checks from the edge proxy. The proxy
// forwards the client's Authorization header here; a 200 response carries
// the resolved identity in X-User-* headers, which the proxy copies onto
// the original request before it reaches the API.
type AuthHandler struct {
	verifier  auth.TokenVerifier
	jwtSecret string
}

func NewAuthHandler(verifier auth.TokenVerifier, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		verifier:  verifier,
		jwtSecret: jwtSecret,
	}
}

// Verify handles GET /auth/verify — called by Traefik ForwardAuth.
// Returns 200 with X-User-* headers on success, 401 on failure.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	parts := strings.SplitN(c.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return c.SendStatus(fiber.StatusUnauthorized)
	}
	tokenString := parts[1]

	if h.verifier != nil {
		if claims, err := h.verifier.Validate(tokenString); err == nil {
			c.Set(middleware.HeaderUserID, claims.UserID)
			c.Set(middleware.HeaderUserEmail, claims.Email)
			c.Set(middleware.HeaderUserName, claims.Name)
			return c.SendStatus(fiber.StatusOK)
		}
	}

	if h.jwtSecret != "" {
		if claims, err := auth.ValidateLegacyToken(tokenString, h.jwtSecret); err == nil {
			c.Set(middleware.HeaderUserID, claims.UserID)
			c.Set(middleware.HeaderUserEmail, claims.Email)
			return c.SendStatus(fiber.StatusOK)
		}
	}

	return c.SendStatus(fiber.StatusUnauthorized)
}
