package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/storyloom/api/pkg/response"
)

// Identity headers stamped by the edge proxy after ForwardAuth and echoed
// by the /auth/verify endpoint.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
)

// GatewayAuthMiddleware trusts the identity headers set by Traefik after a
// successful ForwardAuth round trip. Used only when the backend is deployed
// behind the gateway; it must never be enabled on a directly exposed port.
func GatewayAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get(HeaderUserID)
		if userID == "" {
			return response.Unauthorized(c, "Missing user identity headers")
		}

		c.Locals(localUserID, userID)
		c.Locals(localEmail, c.Get(HeaderUserEmail))
		c.Locals(localName, c.Get(HeaderUserName))

		return c.Next()
	}
}
