package jwtware

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-course-auth"
)

// DefaultContextKey is the fiber locals key holding the *auth.Identity
const DefaultContextKey = "identity"

// Authenticator resolves the identity behind an Authorization header value
type Authenticator interface {
	Authenticate(ctx context.Context, authorization string) (*auth.Identity, error)
}

type Config struct {
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	ErrorHandler   fiber.ErrorHandler
	// Authenticator is required
	Authenticator Authenticator
	ContextKey    string
	// Roles, when set, restricts the route to identities holding one of them
	Roles []auth.Role
}

// New returns a middleware that authenticates the request and stores the
// identity in both fiber locals and the user context. A failed request
// never reaches the next handler.
func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		identity, err := cfg.Authenticator.Authenticate(c.UserContext(), c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if len(cfg.Roles) > 0 {
			if err := auth.Authorize(identity, cfg.Roles...); err != nil {
				return cfg.ErrorHandler(c, err)
			}
		}

		c.Locals(cfg.ContextKey, identity)
		c.SetUserContext(auth.WithIdentity(c.UserContext(), identity))

		return cfg.SuccessHandler(c)
	}
}

// RequireRoles returns a middleware that admits only identities attached
// by New and holding one of roles.
func RequireRoles(roles ...auth.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, _ := auth.IdentityFromContext(c.UserContext())
		if err := auth.Authorize(identity, roles...); err != nil {
			return err
		}
		return c.Next()
	}
}

// IdentityFromCtx returns the identity stored by New
func IdentityFromCtx(c *fiber.Ctx, key ...string) (*auth.Identity, bool) {
	contextKey := DefaultContextKey
	if len(key) > 0 && key[0] != "" {
		contextKey = key[0]
	}

	if identity, ok := c.Locals(contextKey).(*auth.Identity); ok && identity != nil {
		return identity, true
	}

	return auth.IdentityFromContext(c.UserContext())
}

func GetDefaultConfig(config ...Config) Config {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Authenticator == nil {
		panic("jwtware: Authenticator is required")
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			return err
		}
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	return cfg
}
