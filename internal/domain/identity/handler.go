package identity

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/telehealth/clinic/internal/platform/auth"
	"github.com/telehealth/clinic/internal/platform/validation"
	"github.com/telehealth/clinic/pkg/lifecycle"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts signup and login, which the auth skipper leaves
// public, and the dashboard for any signed-in user.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/auth/signup", h.Signup)
	api.POST("/auth/login", h.Login)
	api.GET("/me/dashboard", h.Dashboard)
}

type signupRequest struct {
	Name            string `json:"name" validate:"required,notblank,max=100"`
	Username        string `json:"username" validate:"required,notblank,max=50"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Signup(c echo.Context) error {
	var req signupRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}
	u, err := h.svc.Signup(c.Request().Context(), req.Name, req.Username, req.Password, req.ConfirmPassword)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}
	sess, err := h.svc.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	roles := auth.RolesFromContext(ctx)
	if len(roles) == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	return c.JSON(http.StatusOK, h.svc.Dashboard(auth.UserIDFromContext(ctx), auth.UserNameFromContext(ctx), roles))
}

func fail(err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, lifecycle.ErrUnknownValue):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrUsernameTaken), errors.Is(err, ErrPatientNameTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}
