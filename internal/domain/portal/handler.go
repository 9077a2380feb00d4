package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/telehealth/clinic/internal/platform/auth"
	"github.com/telehealth/clinic/internal/platform/validation"
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
	patientGroup := api.Group("", auth.RequireRole(auth.RolePatient))
	patientGroup.POST("/vitals", h.SubmitVitals)
	patientGroup.POST("/refills", h.RequestRefill)

	readGroup := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleStaff))
	readGroup.GET("/vitals", h.ListVitals)
	readGroup.GET("/refills", h.ListRefills)
	readGroup.GET("/refills/:id", h.GetRefill)

	doctorGroup := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctorGroup.POST("/refills/:id/approve", h.ApproveRefill)
	doctorGroup.POST("/refills/:id/deny", h.DenyRefill)

	clinicGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleStaff))
	clinicGroup.POST("/refills/:id/fulfill", h.FulfillRefill)
}

type vitalsRequest struct {
	PatientName   string  `json:"patient_name" validate:"max=100"`
	Pulse         float64 `json:"pulse" validate:"gt=0,max=300"`
	Temperature   float64 `json:"temperature" validate:"gt=0,max=45"`
	Respiration   float64 `json:"respiration" validate:"gt=0,max=100"`
	BloodPressure string  `json:"blood_pressure" validate:"max=20"`
	Weight        float64 `json:"weight" validate:"gte=0,max=700"`
	Height        float64 `json:"height" validate:"gte=0,max=300"`
	Oxygen        float64 `json:"oxygen" validate:"gt=0,max=100"`
}

// quantityField accepts a JSON number or a string holding one.
type quantityField string

func (q *quantityField) UnmarshalJSON(b []byte) error {
	if bytes.HasPrefix(b, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*q = quantityField(s)
		return nil
	}
	*q = quantityField(b)
	return nil
}

type refillRequest struct {
	PatientName    string        `json:"patient_name" validate:"max=100"`
	MedicationName string        `json:"medication_name" validate:"notblank,max=150"`
	Quantity       quantityField `json:"quantity"`
	Notes          string        `json:"notes"`
}

func (h *Handler) SubmitVitals(c echo.Context) error {
	var req vitalsRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}
	userID, name, err := caller(c, req.PatientName)
	if err != nil {
		return err
	}
	v := &VitalsSubmission{
		UserID:        userID,
		PatientName:   name,
		Pulse:         req.Pulse,
		Temperature:   req.Temperature,
		Respiration:   req.Respiration,
		BloodPressure: req.BloodPressure,
		Weight:        req.Weight,
		Height:        req.Height,
		Oxygen:        req.Oxygen,
	}
	if _, err := h.svc.SubmitVitals(c.Request().Context(), v); err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, NewVitalsView(v))
}

func (h *Handler) ListVitals(c echo.Context) error {
	ctx := c.Request().Context()
	f := VitalsFilter{Patient: c.QueryParam("patient")}
	if auth.IsPatientOnly(ctx) {
		id, err := patientID(ctx)
		if err != nil {
			return err
		}
		f = VitalsFilter{UserID: id}
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListVitals(ctx, f, pg.Limit, pg.Offset)
	if err != nil {
		return fail(err)
	}
	views := make([]VitalsView, 0, len(items))
	for _, v := range items {
		views = append(views, NewVitalsView(v))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg.Limit, pg.Offset).WithLinks(c))
}

func (h *Handler) RequestRefill(c echo.Context) error {
	var req refillRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}
	qty, err := ParseQuantity(string(req.Quantity))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	userID, name, err := caller(c, req.PatientName)
	if err != nil {
		return err
	}
	r := &RefillRequest{
		UserID:         userID,
		PatientName:    name,
		MedicationName: strings.TrimSpace(req.MedicationName),
		Quantity:       qty,
		Notes:          req.Notes,
	}
	if err := h.svc.RequestRefill(c.Request().Context(), r); err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"refill":       r,
		"confirmation": r.Confirmation(),
	})
}

func (h *Handler) GetRefill(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	r, err := h.svc.GetRefill(ctx, id)
	if err != nil {
		return fail(err)
	}
	if auth.IsPatientOnly(ctx) {
		uid, err := patientID(ctx)
		if err != nil {
			return err
		}
		if r.UserID != uid {
			return echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
		}
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ListRefills(c echo.Context) error {
	ctx := c.Request().Context()
	f := RefillFilter{Patient: c.QueryParam("patient")}
	if raw := c.QueryParam("status"); raw != "" {
		st, err := ParseRefillStatus(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		f.Status = st
	}
	if auth.IsPatientOnly(ctx) {
		id, err := patientID(ctx)
		if err != nil {
			return err
		}
		f.UserID, f.Patient = id, ""
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListRefills(ctx, f, pg.Limit, pg.Offset)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c))
}

func (h *Handler) ApproveRefill(c echo.Context) error {
	return h.transition(c, h.svc.ApproveRefill)
}

func (h *Handler) DenyRefill(c echo.Context) error {
	return h.transition(c, h.svc.DenyRefill)
}

func (h *Handler) FulfillRefill(c echo.Context) error {
	return h.transition(c, h.svc.FulfillRefill)
}

func (h *Handler) transition(c echo.Context, fn func(ctx context.Context, id int64) (*RefillRequest, error)) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	r, err := fn(c.Request().Context(), id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, r)
}

// caller resolves who the submission is for. Patients always submit for
// their own account. Other roles must name the patient; the service links
// the record to that patient's account.
func caller(c echo.Context, requested string) (int64, string, error) {
	ctx := c.Request().Context()
	if !auth.IsPatientOnly(ctx) {
		return 0, strings.TrimSpace(requested), nil
	}
	id, err := patientID(ctx)
	if err != nil {
		return 0, "", err
	}
	return id, auth.UserNameFromContext(ctx), nil
}

// patientID is the caller's account id. Patient records are keyed by it,
// never by display name.
func patientID(ctx context.Context) (int64, error) {
	id, err := strconv.ParseInt(auth.UserIDFromContext(ctx), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusForbidden, "patient account required")
	}
	return id, nil
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
