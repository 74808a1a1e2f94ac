package middleware

import (
	"net/http"
	"strings"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/auth"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/utils"
	"github.com/gofiber/fiber/v2"
)

const principalKey = "principal"

type TokenVerifier interface {
	Verify(token string) (auth.Principal, error)
}

// JWTAuth rejects requests without a valid bearer token and stores the
// principal in the request locals.
func JWTAuth(v TokenVerifier) fiber.Handler {
	return authenticate(v, true)
}

// OptionalJWTAuth resolves the principal when a token is sent. Requests
// without one continue anonymously; an invalid token is still rejected.
func OptionalJWTAuth(v TokenVerifier) fiber.Handler {
	return authenticate(v, false)
}

func authenticate(v TokenVerifier, required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			if required {
				return utils.JSONError(c, http.StatusUnauthorized, "missing authorization")
			}
			return c.Next()
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return utils.JSONError(c, http.StatusUnauthorized, "invalid authorization header")
		}
		p, err := v.Verify(parts[1])
		if err != nil {
			return utils.JSONError(c, http.StatusUnauthorized, "invalid token")
		}
		c.Locals(principalKey, p)
		return c.Next()
	}
}

// Principal returns the caller resolved by the auth middleware, or the zero
// principal for anonymous requests.
func Principal(c *fiber.Ctx) auth.Principal {
	p, _ := c.Locals(principalKey).(auth.Principal)
	return p
}
