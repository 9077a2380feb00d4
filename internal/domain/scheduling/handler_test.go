package scheduling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/telehealth/clinic/internal/platform/auth"
	"github.com/telehealth/clinic/internal/platform/validation"
)

func newTestHandler() (*Handler, *echo.Echo, *mockAppointmentRepo) {
	svc, repo, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	e.Validator = validation.New()
	return h, e, repo
}

func asUser(req *http.Request, name string, roles ...string) *http.Request {
	ctx := context.WithValue(req.Context(), auth.UserIDKey, "u-"+name)
	ctx = context.WithValue(ctx, auth.UserNameKey, name)
	ctx = context.WithValue(ctx, auth.UserRolesKey, roles)
	return req.WithContext(ctx)
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func expectHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError with %d, got %v", code, err)
	}
	if he.Code != code {
		t.Errorf("expected %d, got %d (%v)", code, he.Code, he.Message)
	}
}

func TestHandler_BookAppointment_Staff(t *testing.T) {
	h, e, repo := newTestHandler()
	body := `{"patient_name":"Alice","specialist_name":"Bose","appointment_date":"2026-03-12","time_slot":"9:00 AM","consultation_type":"audio"}`
	req := asUser(jsonRequest(http.MethodPost, "/appointments", body), "Sam", auth.RoleStaff)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.BookAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var got map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got["status"] != "SCHEDULED" || got["consultation_type"] != "AUDIO" || got["time_slot"] != "09:00 AM" {
		t.Errorf("unexpected body %v", got)
	}
	if got["is_upcoming"] != true || got["formatted_date"] != "12/03/2026" {
		t.Errorf("expected derived fields in body, got %v", got)
	}
	if repo.appts[1].PatientName != "Alice" {
		t.Errorf("expected staff to book for the named patient")
	}
}

func TestHandler_BookAppointment_PatientBooksForSelf(t *testing.T) {
	h, e, repo := newTestHandler()
	body := `{"patient_name":"Mallory","specialist_name":"Bose","appointment_date":"2026-03-12","time_slot":"10:00 AM"}`
	req := asUser(jsonRequest(http.MethodPost, "/appointments", body), "Alice", auth.RolePatient)
	c := e.NewContext(req, httptest.NewRecorder())

	if err := h.BookAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.appts[1].PatientName != "Alice" {
		t.Errorf("expected patient name from token, got %s", repo.appts[1].PatientName)
	}
}

func TestHandler_BookAppointment_BadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing specialist", `{"patient_name":"A","appointment_date":"2026-03-12","time_slot":"10:00 AM"}`},
		{"unknown type", `{"patient_name":"A","specialist_name":"B","appointment_date":"2026-03-12","time_slot":"10:00 AM","consultation_type":"FAX"}`},
		{"bad date", `{"patient_name":"A","specialist_name":"B","appointment_date":"next week","time_slot":"10:00 AM"}`},
		{"past date", `{"patient_name":"A","specialist_name":"B","appointment_date":"2026-03-01","time_slot":"10:00 AM"}`},
		{"bad slot", `{"patient_name":"A","specialist_name":"B","appointment_date":"2026-03-12","time_slot":"07:00 PM"}`},
	}
	for _, tt := range tests {
		h, e, _ := newTestHandler()
		req := asUser(jsonRequest(http.MethodPost, "/appointments", tt.body), "Sam", auth.RoleStaff)
		c := e.NewContext(req, httptest.NewRecorder())
		err := h.BookAppointment(c)
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		expectHTTPError(t, err, http.StatusBadRequest)
	}
}

func TestHandler_GetAppointment(t *testing.T) {
	h, e, _ := newTestHandler()
	a := book(t, h.svc, "Alice", 2, "10:00 AM")

	req := asUser(httptest.NewRequest(http.MethodGet, "/", nil), "Dr. Bose", auth.RoleDoctor)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	if err := h.GetAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"patient_name":"Alice"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	_ = a
}

func TestHandler_GetAppointment_OtherPatientHidden(t *testing.T) {
	h, e, _ := newTestHandler()
	book(t, h.svc, "Alice", 2, "10:00 AM")

	req := asUser(httptest.NewRequest(http.MethodGet, "/", nil), "Eve", auth.RolePatient)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("1")

	expectHTTPError(t, h.GetAppointment(c), http.StatusNotFound)
}

func TestHandler_GetAppointment_NotFoundAndBadID(t *testing.T) {
	h, e, _ := newTestHandler()
	for id, code := range map[string]int{"77": http.StatusNotFound, "abc": http.StatusBadRequest, "-1": http.StatusBadRequest} {
		req := asUser(httptest.NewRequest(http.MethodGet, "/", nil), "Sam", auth.RoleStaff)
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(id)
		expectHTTPError(t, h.GetAppointment(c), code)
	}
}

func TestHandler_ListAppointments_PatientScoped(t *testing.T) {
	h, e, _ := newTestHandler()
	book(t, h.svc, "Alice", 1, "10:00 AM")
	book(t, h.svc, "Bob", 1, "11:00 AM")

	req := asUser(httptest.NewRequest(http.MethodGet, "/appointments?patient=Bob", nil), "Alice", auth.RolePatient)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListAppointments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data  []map[string]interface{} `json:"data"`
		Total int                      `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Data[0]["patient_name"] != "Alice" {
		t.Errorf("expected only the caller's appointments, got %+v", resp)
	}
}

func TestHandler_ListAppointments_StatusFilter(t *testing.T) {
	h, e, _ := newTestHandler()
	a := book(t, h.svc, "Alice", 1, "10:00 AM")
	book(t, h.svc, "Bob", 1, "11:00 AM")
	if _, err := h.svc.Complete(context.Background(), a.ID); err != nil {
		t.Fatal(err)
	}

	for query, want := range map[string]int{"status=completed": 1, "status=ALL": 2, "": 2} {
		req := asUser(httptest.NewRequest(http.MethodGet, "/appointments?"+query, nil), "Sam", auth.RoleStaff)
		rec := httptest.NewRecorder()
		if err := h.ListAppointments(e.NewContext(req, rec)); err != nil {
			t.Fatalf("%s: unexpected error: %v", query, err)
		}
		var resp struct {
			Total int `json:"total"`
		}
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Total != want {
			t.Errorf("%q: expected %d, got %d", query, want, resp.Total)
		}
	}

	req := asUser(httptest.NewRequest(http.MethodGet, "/appointments?status=lost", nil), "Sam", auth.RoleStaff)
	expectHTTPError(t, h.ListAppointments(e.NewContext(req, httptest.NewRecorder())), http.StatusBadRequest)
}

func TestHandler_CancelAppointment_Conflict(t *testing.T) {
	h, e, _ := newTestHandler()
	a := book(t, h.svc, "Alice", 1, "10:00 AM")
	if _, err := h.svc.Complete(context.Background(), a.ID); err != nil {
		t.Fatal(err)
	}

	req := asUser(httptest.NewRequest(http.MethodPost, "/", nil), "Alice", auth.RolePatient)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("1")

	expectHTTPError(t, h.CancelAppointment(c), http.StatusConflict)
}

func TestHandler_RescheduleAppointment(t *testing.T) {
	h, e, _ := newTestHandler()
	book(t, h.svc, "Alice", 1, "10:00 AM")

	body := `{"appointment_date":"2026-03-20","time_slot":"03:00 PM"}`
	req := asUser(jsonRequest(http.MethodPost, "/", body), "Sam", auth.RoleStaff)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	if err := h.RescheduleAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"RESCHEDULED"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_ModifyAppointment_NotesOnly(t *testing.T) {
	h, e, _ := newTestHandler()
	book(t, h.svc, "Alice", 1, "10:00 AM")

	req := asUser(jsonRequest(http.MethodPut, "/", `{"notes":"bring scans"}`), "Sam", auth.RoleStaff)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	if err := h.ModifyAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"status":"SCHEDULED"`) || !strings.Contains(body, `"notes":"bring scans"`) {
		t.Errorf("unexpected body %s", body)
	}
}

func TestHandler_CompleteAppointment(t *testing.T) {
	h, e, repo := newTestHandler()
	book(t, h.svc, "Alice", 1, "10:00 AM")

	req := asUser(httptest.NewRequest(http.MethodPost, "/", nil), "Dr. Bose", auth.RoleDoctor)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	if err := h.CompleteAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.appts[1].Status != StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", repo.appts[1].Status)
	}
}

func TestHandler_ForceStatus(t *testing.T) {
	h, e, repo := newTestHandler()
	a := book(t, h.svc, "Alice", 1, "10:00 AM")
	if _, err := h.svc.Complete(context.Background(), a.ID); err != nil {
		t.Fatal(err)
	}

	req := asUser(jsonRequest(http.MethodPost, "/?force=true", `{"status":"cancelled"}`), "root", auth.RoleAdmin)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	if err := h.ForceStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.appts[1].Status != StatusCancelled {
		t.Errorf("expected forced CANCELLED, got %s", repo.appts[1].Status)
	}
}

func TestHandler_ForceStatus_RequiresFlag(t *testing.T) {
	h, e, _ := newTestHandler()
	book(t, h.svc, "Alice", 1, "10:00 AM")

	req := asUser(jsonRequest(http.MethodPost, "/", `{"status":"CANCELLED"}`), "root", auth.RoleAdmin)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("1")

	expectHTTPError(t, h.ForceStatus(c), http.StatusBadRequest)
}

func TestHandler_RegisterRoutes_ForceIsAdminOnly(t *testing.T) {
	h, e, _ := newTestHandler()
	book(t, h.svc, "Alice", 1, "10:00 AM")
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(asUser(c.Request(), "Sam", auth.RoleStaff))
			return next(c)
		}
	})
	h.RegisterRoutes(e.Group("/api/v1"))

	req := jsonRequest(http.MethodPost, "/api/v1/appointments/1/status?force=true", `{"status":"CANCELLED"}`)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for staff override, got %d", rec.Code)
	}
}

func TestHandler_ListTimeSlots(t *testing.T) {
	h, e, _ := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	if err := h.ListTimeSlots(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"02:00 PM"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}
