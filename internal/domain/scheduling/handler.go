package scheduling

import (
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
	readGroup.GET("/appointments", h.ListAppointments)
	readGroup.GET("/appointments/upcoming", h.ListUpcoming)
	readGroup.GET("/appointments/slots", h.ListTimeSlots)
	readGroup.GET("/appointments/:id", h.GetAppointment)

	bookGroup := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleStaff))
	bookGroup.POST("/appointments", h.BookAppointment)
	bookGroup.PUT("/appointments/:id", h.ModifyAppointment)
	bookGroup.POST("/appointments/:id/cancel", h.CancelAppointment)
	bookGroup.POST("/appointments/:id/reschedule", h.RescheduleAppointment)

	clinicGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleStaff))
	clinicGroup.POST("/appointments/:id/complete", h.CompleteAppointment)

	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.POST("/appointments/:id/status", h.ForceStatus)
}

type bookRequest struct {
	PatientName      string           `json:"patient_name"`
	SpecialistName   string           `json:"specialist_name" validate:"notblank"`
	AppointmentDate  string           `json:"appointment_date" validate:"required"`
	TimeSlot         string           `json:"time_slot" validate:"required"`
	ConsultationType ConsultationType `json:"consultation_type"`
	Notes            string           `json:"notes"`
}

type modifyRequest struct {
	SpecialistName   *string           `json:"specialist_name"`
	AppointmentDate  *string           `json:"appointment_date"`
	TimeSlot         *string           `json:"time_slot"`
	ConsultationType *ConsultationType `json:"consultation_type"`
	Notes            *string           `json:"notes"`
}

type rescheduleRequest struct {
	AppointmentDate string `json:"appointment_date" validate:"required"`
	TimeSlot        string `json:"time_slot" validate:"required"`
}

type statusRequest struct {
	Status Status `json:"status" validate:"required"`
}

func (h *Handler) BookAppointment(c echo.Context) error {
	var req bookRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if auth.IsPatientOnly(ctx) {
		req.PatientName = auth.UserNameFromContext(ctx)
	}
	date, err := dates.Parse(req.AppointmentDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment_date")
	}
	a := NewAppointment(req.PatientName, req.SpecialistName, &date, req.TimeSlot,
		StatusScheduled, req.ConsultationType, req.Notes)
	if err := h.svc.Book(ctx, a); err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, NewView(a, h.svc.Today()))
}

func (h *Handler) GetAppointment(c echo.Context) error {
	a, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, NewView(a, h.svc.Today()))
}

func (h *Handler) ListAppointments(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(h.views(items), total, pg.Limit, pg.Offset).WithLinks(c))
}

func (h *Handler) ListUpcoming(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListUpcoming(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(h.views(items), total, pg.Limit, pg.Offset).WithLinks(c))
}

func (h *Handler) ListTimeSlots(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"time_slots": TimeSlots()})
}

func (h *Handler) ModifyAppointment(c echo.Context) error {
	a, err := h.load(c)
	if err != nil {
		return err
	}
	var req modifyRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}
	ch := Changes{
		SpecialistName:   req.SpecialistName,
		TimeSlot:         req.TimeSlot,
		ConsultationType: req.ConsultationType,
		Notes:            req.Notes,
	}
	if req.AppointmentDate != nil {
		d, err := dates.Parse(*req.AppointmentDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment_date")
		}
		ch.Date = &d
	}
	updated, err := h.svc.Modify(c.Request().Context(), a.ID, ch)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, NewView(updated, h.svc.Today()))
}

func (h *Handler) RescheduleAppointment(c echo.Context) error {
	a, err := h.load(c)
	if err != nil {
		return err
	}
	var req rescheduleRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}
	date, err := dates.Parse(req.AppointmentDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment_date")
	}
	updated, err := h.svc.Reschedule(c.Request().Context(), a.ID, date, req.TimeSlot)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, NewView(updated, h.svc.Today()))
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	a, err := h.load(c)
	if err != nil {
		return err
	}
	updated, err := h.svc.Cancel(c.Request().Context(), a.ID)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, NewView(updated, h.svc.Today()))
}

func (h *Handler) CompleteAppointment(c echo.Context) error {
	a, err := h.load(c)
	if err != nil {
		return err
	}
	updated, err := h.svc.Complete(c.Request().Context(), a.ID)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, NewView(updated, h.svc.Today()))
}

// ForceStatus is the admin override. It requires ?force=true so the
// unchecked path is never taken by accident.
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
	updated, err := h.svc.ForceStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, NewView(updated, h.svc.Today()))
}

// load fetches the appointment named by :id. Patients only see their own
// appointments; anything else is reported as not found.
func (h *Handler) load(c echo.Context) (*Appointment, error) {
	id, err := parseID(c)
	if err != nil {
		return nil, err
	}
	ctx := c.Request().Context()
	a, err := h.svc.Get(ctx, id)
	if err != nil {
		return nil, fail(err)
	}
	if auth.IsPatientOnly(ctx) && a.PatientName != auth.UserNameFromContext(ctx) {
		return nil, echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	}
	return a, nil
}

func (h *Handler) views(items []*Appointment) []View {
	today := h.svc.Today()
	out := make([]View, 0, len(items))
	for _, a := range items {
		out = append(out, NewView(a, today))
	}
	return out
}

// filterFromQuery reads q, status, date, patient and specialist. A
// patient-only caller is always scoped to their own name.
func filterFromQuery(c echo.Context) (AppointmentFilter, error) {
	f := AppointmentFilter{
		Search:     c.QueryParam("q"),
		Patient:    c.QueryParam("patient"),
		Specialist: c.QueryParam("specialist"),
	}
	if raw := c.QueryParam("status"); raw != "" && !strings.EqualFold(raw, "ALL") {
		st, err := ParseStatus(raw)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		f.Status = st
	}
	if raw := c.QueryParam("date"); raw != "" {
		d, err := dates.Parse(raw)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid date")
		}
		f.Date = &d
	}
	ctx := c.Request().Context()
	if auth.IsPatientOnly(ctx) {
		f.Patient = auth.UserNameFromContext(ctx)
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
