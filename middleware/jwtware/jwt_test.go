package jwtware_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-course-auth"
	"github.com/goliatone/go-course-auth/middleware/jwtware"
)

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, authorization string) (*auth.Identity, error) {
	args := m.Called(ctx, authorization)
	identity, _ := args.Get(0).(*auth.Identity)
	return identity, args.Error(1)
}

func newApp(t *testing.T, cfg jwtware.Config, handlers ...fiber.Handler) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			switch {
			case errors.Is(err, auth.ErrForbidden) || auth.HasTextCode(err, auth.TextCodeForbidden):
				return c.Status(fiber.StatusForbidden).SendString(err.Error())
			default:
				return c.Status(fiber.StatusUnauthorized).SendString(err.Error())
			}
		},
	})

	chain := append([]fiber.Handler{jwtware.New(cfg)}, handlers...)
	chain = append(chain, func(c *fiber.Ctx) error {
		identity, ok := jwtware.IdentityFromCtx(c)
		if !ok {
			return c.SendStatus(fiber.StatusTeapot)
		}
		return c.SendString(identity.ID + ":" + string(identity.Role))
	})

	app.Get("/protected", chain...)
	return app
}

func TestJWTWare_AttachesIdentity(t *testing.T) {
	authn := &MockAuthenticator{}
	authn.On("Authenticate", mock.Anything, "Bearer good").
		Return(&auth.Identity{ID: "u-1", Role: auth.RoleMember}, nil)

	app := newApp(t, jwtware.Config{Authenticator: authn})

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer good")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "u-1:member", string(body))
	authn.AssertExpectations(t)
}

func TestJWTWare_FailureStopsChain(t *testing.T) {
	authn := &MockAuthenticator{}
	authn.On("Authenticate", mock.Anything, "").
		Return(nil, auth.ErrAuthenticationRequired)

	called := false
	app := newApp(t, jwtware.Config{Authenticator: authn}, func(c *fiber.Ctx) error {
		called = true
		return c.Next()
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/protected", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.False(t, called)
}

func TestJWTWare_RolesInConfig(t *testing.T) {
	authn := &MockAuthenticator{}
	authn.On("Authenticate", mock.Anything, "Bearer member").
		Return(&auth.Identity{ID: "u-1", Role: auth.RoleMember}, nil)

	app := newApp(t, jwtware.Config{
		Authenticator: authn,
		Roles:         []auth.Role{auth.RoleAdmin},
	})

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer member")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestRequireRoles(t *testing.T) {
	authn := &MockAuthenticator{}
	authn.On("Authenticate", mock.Anything, "Bearer admin").
		Return(&auth.Identity{ID: "u-9", Role: auth.RoleAdmin}, nil)
	authn.On("Authenticate", mock.Anything, "Bearer trainer").
		Return(&auth.Identity{ID: "u-2", Role: auth.RoleTrainer}, nil)

	app := newApp(t, jwtware.Config{Authenticator: authn}, jwtware.RequireRoles(auth.RoleAdmin))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "admin allowed", header: "Bearer admin", status: fiber.StatusOK},
		{name: "trainer forbidden", header: "Bearer trainer", status: fiber.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
			req.Header.Set(fiber.HeaderAuthorization, tt.header)

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestJWTWare_Filter(t *testing.T) {
	authn := &MockAuthenticator{}

	app := newApp(t, jwtware.Config{
		Authenticator: authn,
		Filter:        func(*fiber.Ctx) bool { return true },
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/protected", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)
	authn.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything)
}

func TestGetDefaultConfig_RequiresAuthenticator(t *testing.T) {
	assert.Panics(t, func() {
		jwtware.GetDefaultConfig()
	})
}
