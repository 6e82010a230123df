package httpapi

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-course-auth"
	"github.com/goliatone/go-course-auth/middleware/jwtware"
	"github.com/goliatone/go-course-auth/realtime"
)

// Accounts registers users and exchanges credentials for tokens
type Accounts interface {
	Register(ctx context.Context, input auth.RegisterInput) (*auth.Session, error)
	Login(ctx context.Context, input auth.LoginInput) (*auth.Session, error)
}

// Controller serves the account and trainer application endpoints
type Controller struct {
	accounts    Accounts
	roles       auth.RoleTransitionAuthority
	broadcaster realtime.Broadcaster
	logger      auth.Logger
}

type ControllerOption func(*Controller)

// WithBroadcaster pushes role changes to live connections
func WithBroadcaster(b realtime.Broadcaster) ControllerOption {
	return func(ct *Controller) {
		ct.broadcaster = b
	}
}

func WithControllerLogger(logger auth.Logger) ControllerOption {
	return func(ct *Controller) {
		if logger != nil {
			ct.logger = logger
		}
	}
}

func NewController(accounts Accounts, roles auth.RoleTransitionAuthority, opts ...ControllerOption) *Controller {
	ct := &Controller{
		accounts: accounts,
		roles:    roles,
		logger:   auth.DefaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ct)
		}
	}
	return ct
}

// RegisterRoutes mounts the controller on r. Protected routes go through
// authn and, where listed, the role guard.
func RegisterRoutes(r fiber.Router, ct *Controller, authn jwtware.Authenticator) {
	protected := jwtware.New(jwtware.Config{Authenticator: authn})

	authGroup := r.Group("/auth")
	authGroup.Post("/register", ct.Register)
	authGroup.Post("/login", ct.Login)
	authGroup.Get("/me", protected, ct.Me)

	apps := r.Group("/trainer-applications", protected)
	apps.Post("/", jwtware.RequireRoles(auth.RoleMember), ct.SubmitApplication)
	apps.Get("/me", ct.MyApplication)

	admin := r.Group("/admin", protected, jwtware.RequireRoles(auth.RoleAdmin))
	admin.Get("/trainer-applications", ct.ListApplications)
	admin.Patch("/trainer-applications/:id", ct.DecideApplication)
}

func (ct *Controller) Register(c *fiber.Ctx) error {
	var input auth.RegisterInput
	if err := c.BodyParser(&input); err != nil {
		return malformedBody(err)
	}

	session, err := ct.accounts.Register(c.UserContext(), input)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(session)
}

func (ct *Controller) Login(c *fiber.Ctx) error {
	var input auth.LoginInput
	if err := c.BodyParser(&input); err != nil {
		return malformedBody(err)
	}

	session, err := ct.accounts.Login(c.UserContext(), input)
	if err != nil {
		return err
	}

	return c.JSON(session)
}

func (ct *Controller) Me(c *fiber.Ctx) error {
	identity, ok := jwtware.IdentityFromCtx(c)
	if !ok {
		return auth.ErrAuthenticationRequired
	}
	return c.JSON(fiber.Map{"user": identity})
}

// SubmitApplicationRequest is the body of a trainer application
type SubmitApplicationRequest struct {
	Justification string `json:"justification"`
}

func (ct *Controller) SubmitApplication(c *fiber.Ctx) error {
	identity, ok := jwtware.IdentityFromCtx(c)
	if !ok {
		return auth.ErrAuthenticationRequired
	}

	var req SubmitApplicationRequest
	if err := c.BodyParser(&req); err != nil {
		return malformedBody(err)
	}

	view, err := ct.roles.Submit(c.UserContext(), identity.ID, req.Justification)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"application": view})
}

func (ct *Controller) MyApplication(c *fiber.Ctx) error {
	identity, ok := jwtware.IdentityFromCtx(c)
	if !ok {
		return auth.ErrAuthenticationRequired
	}

	view, err := ct.roles.Get(c.UserContext(), identity.ID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"application": view})
}

func (ct *Controller) ListApplications(c *fiber.Ctx) error {
	status := auth.ApplicationStatus(c.Query("status"))

	views, err := ct.roles.List(c.UserContext(), status)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"applications": views})
}

func (ct *Controller) DecideApplication(c *fiber.Ctx) error {
	identity, ok := jwtware.IdentityFromCtx(c)
	if !ok {
		return auth.ErrAuthenticationRequired
	}

	var input auth.DecisionInput
	if err := c.BodyParser(&input); err != nil {
		return malformedBody(err)
	}
	input.RequestID = c.Params("id")
	input.ReviewerID = identity.ID

	view, err := ct.roles.Decide(c.UserContext(), input)
	if err != nil {
		return err
	}

	if view.Status == auth.ApplicationApproved {
		ct.pushRoleUpdate(c.UserContext(), view)
	}

	return c.JSON(fiber.Map{"application": view})
}

// pushRoleUpdate tells the requester's live connections about the new role.
// A failed push never fails the decision, which is already committed.
func (ct *Controller) pushRoleUpdate(ctx context.Context, view *auth.ApplicationView) {
	if ct.broadcaster == nil {
		return
	}

	err := realtime.PushToSubject(ctx, ct.broadcaster, view.UserID.String(), realtime.Message{
		Type: realtime.TypeRoleUpdated,
		Data: map[string]any{
			"role":           auth.RoleTrainer,
			"application_id": view.ID.String(),
		},
	})
	if err != nil {
		ct.logger.Warn("role update push failed", "user_id", view.UserID.String(), "error", err)
	}
}

func malformedBody(err error) error {
	return auth.ErrValidation.Clone().WithMetadata(map[string]any{
		"fields": map[string]any{"body": "malformed request body"},
		"cause":  err.Error(),
	})
}
