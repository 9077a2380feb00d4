package referral

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/telehealth/clinic/internal/platform/auth"
	"github.com/telehealth/clinic/internal/platform/validation"
	"github.com/telehealth/clinic/pkg/dates"
	"github.com/telehealth/clinic/pkg/lifecycle"
	"github.com/telehealth/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleStaff))
	readGroup.GET("/referrals", h.ListReferrals)
	readGroup.GET("/referrals/:id", h.GetReferral)

	clinicGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleStaff))
	clinicGroup.GET("/referrals/overdue", h.ListOverdue)
	clinicGroup.GET("/referrals/:id/letter", h.Letter)
	clinicGroup.POST("/referrals/:id/confirm", h.Confirm)
	clinicGroup.POST("/referrals/:id/complete", h.Complete)
	clinicGroup.POST("/referrals/:id/cancel", h.Cancel)

	doctorGroup := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctorGroup.POST("/referrals", h.CreateReferral)

	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.POST("/referrals/:id/status", h.ForceStatus)
}

type createRequest struct {
	PatientName              string  `json:"patient_name" validate:"notblank,max=100"`
	ReferringDoctor          string  `json:"referring_doctor" validate:"max=100"`
	HospitalName             string  `json:"hospital_name" validate:"notblank,max=150"`
	Department               string  `json:"department" validate:"notblank,max=100"`
	SpecialtyRequired        string  `json:"specialty_required" validate:"max=100"`
	Reason                   string  `json:"reason" validate:"notblank"`
	UrgencyLevel             Urgency `json:"urgency_level"`
	PreferredAppointmentDate string  `json:"preferred_appointment_date"`
	ContactNumber            string  `json:"contact_number" validate:"max=30"`
	Notes                    string  `json:"notes"`
}

type statusRequest struct {
	Status Status `json:"status" validate:"required"`
}

func (h *Handler) CreateReferral(c echo.Context) error {
	var req createRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}
	preferred, err := dates.ParseOptional(req.PreferredAppointmentDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid preferred_appointment_date")
	}
	doctor := req.ReferringDoctor
	if strings.TrimSpace(doctor) == "" {
		doctor = auth.UserNameFromContext(c.Request().Context())
	}
	r := &HospitalReferral{
		PatientName:              req.PatientName,
		ReferringDoctor:          doctor,
		HospitalName:             req.HospitalName,
		Department:               req.Department,
		SpecialtyRequired:        req.SpecialtyRequired,
		Reason:                   req.Reason,
		UrgencyLevel:             req.UrgencyLevel,
		PreferredAppointmentDate: preferred,
		ContactNumber:            req.ContactNumber,
		Notes:                    req.Notes,
	}
	if err := h.svc.CreateReferral(c.Request().Context(), r); err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, NewView(r, h.svc.Today()))
}

func (h *Handler) GetReferral(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	r, err := h.svc.Get(ctx, id)
	if err != nil {
		return fail(err)
	}
	if auth.IsPatientOnly(ctx) && r.PatientName != auth.UserNameFromContext(ctx) {
		return echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	}
	return c.JSON(http.StatusOK, NewView(r, h.svc.Today()))
}

func (h *Handler) ListReferrals(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if auth.IsPatientOnly(ctx) {
		f.Patient = auth.UserNameFromContext(ctx)
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(ctx, f, pg.Limit, pg.Offset)
	if err != nil {
		return fail(err)
	}
	return h.page(c, items, total, pg)
}

func (h *Handler) ListOverdue(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListOverdue(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return fail(err)
	}
	return h.page(c, items, total, pg)
}

func (h *Handler) Letter(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	letter, err := h.svc.Letter(c.Request().Context(), id)
	if err != nil {
		return fail(err)
	}
	if c.QueryParam("format") == "text" {
		return c.String(http.StatusOK, letter)
	}
	return c.JSON(http.StatusOK, map[string]string{"letter": letter})
}

func (h *Handler) Confirm(c echo.Context) error {
	return h.transition(c, h.svc.Confirm)
}

func (h *Handler) Complete(c echo.Context) error {
	return h.transition(c, h.svc.Complete)
}

func (h *Handler) Cancel(c echo.Context) error {
	return h.transition(c, h.svc.Cancel)
}

func (h *Handler) ForceStatus(c echo.Context) error {
	if force, _ := strconv.ParseBool(c.QueryParam("force")); !force {
		return echo.NewHTTPError(http.StatusBadRequest, "force=true is required to override status")
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}
	r, err := h.svc.ForceStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, NewView(r, h.svc.Today()))
}

func (h *Handler) transition(c echo.Context, fn func(ctx context.Context, id int64) (*HospitalReferral, error)) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	r, err := fn(c.Request().Context(), id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, NewView(r, h.svc.Today()))
}

func (h *Handler) page(c echo.Context, items []*HospitalReferral, total int, pg pagination.Params) error {
	today := h.svc.Today()
	views := make([]View, 0, len(items))
	for _, r := range items {
		views = append(views, NewView(r, today))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg.Limit, pg.Offset).WithLinks(c))
}

func filterFromQuery(c echo.Context) (ReferralFilter, error) {
	f := ReferralFilter{
		Patient:  c.QueryParam("patient"),
		Doctor:   c.QueryParam("doctor"),
		Hospital: c.QueryParam("hospital"),
	}
	if raw := c.QueryParam("status"); raw != "" && !strings.EqualFold(raw, "ALL") {
		st, err := ParseStatus(raw)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		f.Status = st
	}
	if raw := c.QueryParam("urgency"); raw != "" {
		u, err := ParseUrgency(raw)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		f.Urgency = u
	}
	return f, nil
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func fail(err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, lifecycle.ErrUnknownValue):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}
