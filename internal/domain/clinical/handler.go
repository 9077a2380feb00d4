package clinical

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
	readGroup := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleDoctor))
	readGroup.GET("/diagnoses", h.ListDiagnoses)
	readGroup.GET("/diagnoses/:id", h.GetDiagnosis)
	readGroup.GET("/health-reports", h.HealthReports)

	doctorGroup := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctorGroup.POST("/diagnoses", h.RecordDiagnosis)
	doctorGroup.POST("/diagnoses/suggestions", h.SuggestPrescription)
	doctorGroup.GET("/diagnoses/treatment-plan-template", h.TreatmentPlanTemplate)
	doctorGroup.POST("/diagnoses/:id/ongoing", h.MarkOngoing)
	doctorGroup.POST("/diagnoses/:id/resolve", h.Resolve)

	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.POST("/diagnoses/:id/status", h.ForceStatus)
}

type recordRequest struct {
	AppointmentID        int64    `json:"appointment_id" validate:"gte=0"`
	PatientName          string   `json:"patient_name" validate:"notblank"`
	DoctorName           string   `json:"doctor_name"`
	Diagnosis            string   `json:"diagnosis" validate:"notblank"`
	Symptoms             string   `json:"symptoms"`
	Prescription         string   `json:"prescription"`
	TreatmentPlan        string   `json:"treatment_plan"`
	FollowUpInstructions string   `json:"follow_up_instructions"`
	RecordedDate         string   `json:"recorded_date"`
	Severity             Severity `json:"severity"`
	Status               Status   `json:"status"`
}

type suggestionRequest struct {
	Diagnosis string `json:"diagnosis" validate:"notblank"`
}

type statusRequest struct {
	Status Status `json:"status" validate:"required"`
}

func (h *Handler) RecordDiagnosis(c echo.Context) error {
	var req recordRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}
	recorded, err := dates.ParseOptional(req.RecordedDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid recorded_date")
	}
	doctor := req.DoctorName
	if strings.TrimSpace(doctor) == "" {
		doctor = auth.UserNameFromContext(c.Request().Context())
	}
	d := &Diagnosis{
		AppointmentID:        req.AppointmentID,
		PatientName:          req.PatientName,
		DoctorName:           doctor,
		DiagnosisText:        req.Diagnosis,
		Symptoms:             req.Symptoms,
		PrescriptionDetails:  req.Prescription,
		TreatmentPlan:        req.TreatmentPlan,
		FollowUpInstructions: req.FollowUpInstructions,
		RecordedDate:         recorded,
		Severity:             req.Severity,
		Status:               req.Status,
	}
	if err := h.svc.RecordDiagnosis(c.Request().Context(), d); err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, NewView(d, h.svc.Today()))
}

func (h *Handler) GetDiagnosis(c echo.Context) error {
	d, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, NewView(d, h.svc.Today()))
}

func (h *Handler) ListDiagnoses(c echo.Context) error {
	f := DiagnosisFilter{
		Patient: c.QueryParam("patient"),
		Doctor:  c.QueryParam("doctor"),
	}
	if raw := c.QueryParam("status"); raw != "" {
		st, err := ParseStatus(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		f.Status = st
	}
	if raw := c.QueryParam("severity"); raw != "" {
		sv, err := ParseSeverity(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		f.Severity = sv
	}
	if raw := c.QueryParam("appointment_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment_id")
		}
		f.AppointmentID = id
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
	today := h.svc.Today()
	views := make([]View, 0, len(items))
	for _, d := range items {
		views = append(views, NewView(d, today))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg.Limit, pg.Offset).WithLinks(c))
}

// HealthReports lists report rows for ?patient=. Patients always get their
// own reports.
func (h *Handler) HealthReports(c echo.Context) error {
	ctx := c.Request().Context()
	patient := c.QueryParam("patient")
	if auth.IsPatientOnly(ctx) {
		patient = auth.UserNameFromContext(ctx)
	}
	pg := pagination.FromContext(c)
	reports, total, err := h.svc.HealthReports(ctx, patient, pg.Limit, pg.Offset)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(reports, total, pg.Limit, pg.Offset).WithLinks(c))
}

func (h *Handler) SuggestPrescription(c echo.Context) error {
	var req suggestionRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}
	text, err := h.svc.SuggestPrescription(req.Diagnosis)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"prescription": text})
}

func (h *Handler) TreatmentPlanTemplate(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"treatment_plan": h.svc.TreatmentPlanTemplate()})
}

func (h *Handler) MarkOngoing(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.MarkOngoing(c.Request().Context(), id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, NewView(d, h.svc.Today()))
}

func (h *Handler) Resolve(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.Resolve(c.Request().Context(), id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, NewView(d, h.svc.Today()))
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
	d, err := h.svc.ForceStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, NewView(d, h.svc.Today()))
}

func (h *Handler) load(c echo.Context) (*Diagnosis, error) {
	id, err := parseID(c)
	if err != nil {
		return nil, err
	}
	ctx := c.Request().Context()
	d, err := h.svc.Get(ctx, id)
	if err != nil {
		return nil, fail(err)
	}
	if auth.IsPatientOnly(ctx) && d.PatientName != auth.UserNameFromContext(ctx) {
		return nil, echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	}
	return d, nil
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
