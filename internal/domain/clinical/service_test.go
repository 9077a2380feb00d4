package clinical

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/telehealth/clinic/pkg/lifecycle"
)

// -- Mock Repository --

type mockDiagnosisRepo struct {
	diags     map[int64]*Diagnosis
	nextID    int64
	updateErr error
}

func newMockDiagnosisRepo() *mockDiagnosisRepo {
	return &mockDiagnosisRepo{diags: make(map[int64]*Diagnosis)}
}

func (m *mockDiagnosisRepo) Create(_ context.Context, d *Diagnosis) error {
	m.nextID++
	d.ID = m.nextID
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	stored := *d
	m.diags[d.ID] = &stored
	return nil
}

func (m *mockDiagnosisRepo) GetByID(_ context.Context, id int64) (*Diagnosis, error) {
	d, ok := m.diags[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockDiagnosisRepo) Update(_ context.Context, d *Diagnosis) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.diags[d.ID]; !ok {
		return ErrNotFound
	}
	stored := *d
	m.diags[d.ID] = &stored
	return nil
}

func (m *mockDiagnosisRepo) List(_ context.Context, f DiagnosisFilter, limit, offset int) ([]*Diagnosis, int, error) {
	var result []*Diagnosis
	for _, d := range m.diags {
		if f.Matches(d) {
			cp := *d
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.RecordedDate.Equal(*b.RecordedDate) {
			return a.RecordedDate.After(*b.RecordedDate)
		}
		return a.ID > b.ID
	})
	total := len(result)
	if offset >= len(result) {
		return nil, total, nil
	}
	result = result[offset:]
	if limit < len(result) {
		result = result[:limit]
	}
	return result, total, nil
}

type recordedTransition struct {
	from, to string
	err      error
}

type transitionRecorder struct {
	seen []recordedTransition
}

func (r *transitionRecorder) ObserveTransition(kind, from, to string, err error) {
	r.seen = append(r.seen, recordedTransition{from: from, to: to, err: err})
}

func newTestService() (*Service, *mockDiagnosisRepo, *transitionRecorder) {
	repo := newMockDiagnosisRepo()
	rec := &transitionRecorder{}
	svc := NewService(repo, rec)
	svc.today = func() time.Time { return today }
	return svc, repo, rec
}

func record(t *testing.T, svc *Service, patient string, offset int) *Diagnosis {
	t.Helper()
	d := &Diagnosis{PatientName: patient, DoctorName: "Bose", DiagnosisText: "flu", RecordedDate: day(offset)}
	if err := svc.RecordDiagnosis(context.Background(), d); err != nil {
		t.Fatalf("RecordDiagnosis: %v", err)
	}
	return d
}

// -- Tests --

func TestService_RecordDiagnosis(t *testing.T) {
	svc, repo, _ := newTestService()
	d := &Diagnosis{ID: 42, PatientName: "Alice", DoctorName: "Bose", DiagnosisText: "migraine", Severity: "mild"}
	if err := svc.RecordDiagnosis(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ID != 1 {
		t.Errorf("expected id assigned by repository, got %d", d.ID)
	}
	stored := repo.diags[1]
	if stored.Severity != SeverityMild || stored.Status != StatusActive {
		t.Errorf("unexpected enums %s/%s", stored.Severity, stored.Status)
	}
	if stored.RecordedDate == nil || !stored.RecordedDate.Equal(today) {
		t.Errorf("expected recorded date to default to today, got %v", stored.RecordedDate)
	}
}

func TestService_RecordDiagnosis_Validation(t *testing.T) {
	tests := []struct {
		name  string
		d     *Diagnosis
		field string
	}{
		{"no patient", &Diagnosis{DoctorName: "B", DiagnosisText: "x"}, "patient_name"},
		{"no doctor", &Diagnosis{PatientName: "A", DiagnosisText: "x"}, "doctor_name"},
		{"no diagnosis", &Diagnosis{PatientName: "A", DoctorName: "B", DiagnosisText: "  "}, "diagnosis"},
		{"future date", &Diagnosis{PatientName: "A", DoctorName: "B", DiagnosisText: "x", RecordedDate: day(1)}, "recorded_date"},
		{"negative appointment", &Diagnosis{PatientName: "A", DoctorName: "B", DiagnosisText: "x", AppointmentID: -1}, "appointment_id"},
		{"bad severity", &Diagnosis{PatientName: "A", DoctorName: "B", DiagnosisText: "x", Severity: "CRITICAL"}, "severity"},
		{"bad status", &Diagnosis{PatientName: "A", DoctorName: "B", DiagnosisText: "x", Status: "CLOSED"}, "status"},
	}
	for _, tt := range tests {
		svc, _, _ := newTestService()
		err := svc.RecordDiagnosis(context.Background(), tt.d)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("%s: expected ValidationError, got %v", tt.name, err)
			continue
		}
		if ve.Field != tt.field {
			t.Errorf("%s: expected field %s, got %s", tt.name, tt.field, ve.Field)
		}
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput", tt.name)
		}
	}
}

func TestService_ListByPatient_NewestFirst(t *testing.T) {
	svc, _, _ := newTestService()
	old := record(t, svc, "Alice", -30)
	recent := record(t, svc, "Alice", -2)
	sameDay := record(t, svc, "Alice", -2)
	record(t, svc, "Bob", 0)

	items, total, err := svc.ListByPatient(context.Background(), "Alice", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("expected 3 diagnoses, got %d/%d", len(items), total)
	}
	want := []int64{sameDay.ID, recent.ID, old.ID}
	for i, id := range want {
		if items[i].ID != id {
			t.Errorf("position %d: expected id %d, got %d", i, id, items[i].ID)
		}
	}

	if _, _, err := svc.ListByPatient(context.Background(), " ", 10, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected blank patient to be rejected, got %v", err)
	}
}

func TestService_HealthReports(t *testing.T) {
	svc, repo, _ := newTestService()
	d := record(t, svc, "Alice", -1)
	repo.diags[d.ID].PrescriptionDetails = "Paracetamol"

	reports, total, err := svc.HealthReports(context.Background(), "Alice", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(reports) != 1 {
		t.Fatalf("expected one report, got %d", len(reports))
	}
	if reports[0].DiagnosisID != d.ID || reports[0].Prescription != "Paracetamol" || reports[0].FormattedDate != "09/03/2026" {
		t.Errorf("unexpected report %+v", reports[0])
	}
}

func TestService_SuggestPrescription(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.SuggestPrescription(""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected blank diagnosis to be rejected, got %v", err)
	}
	got, err := svc.SuggestPrescription("fever")
	if err != nil || !strings.Contains(got, "Paracetamol") {
		t.Errorf("unexpected suggestion %q, %v", got, err)
	}
}

func TestService_Resolve(t *testing.T) {
	svc, repo, rec := newTestService()
	d := record(t, svc, "Alice", 0)

	if _, err := svc.MarkOngoing(context.Background(), d.ID); err != nil {
		t.Fatalf("MarkOngoing: %v", err)
	}
	got, err := svc.Resolve(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Status != StatusResolved || repo.diags[d.ID].Status != StatusResolved {
		t.Errorf("expected RESOLVED stored, got %s", repo.diags[d.ID].Status)
	}

	_, err = svc.Resolve(context.Background(), d.ID)
	if !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Errorf("expected resolving twice to be refused, got %v", err)
	}
	if len(rec.seen) != 3 {
		t.Fatalf("expected 3 observed transitions, got %+v", rec.seen)
	}
	if rec.seen[0].from != "ACTIVE" || rec.seen[0].to != "ONGOING" || rec.seen[2].err == nil {
		t.Errorf("unexpected observed transitions %+v", rec.seen)
	}
}

func TestService_Transition_SaveFailureKeepsStored(t *testing.T) {
	svc, repo, rec := newTestService()
	d := record(t, svc, "Alice", 0)
	repo.updateErr = errors.New("connection reset")

	if _, err := svc.Resolve(context.Background(), d.ID); err == nil {
		t.Fatal("expected error")
	}
	if repo.diags[d.ID].Status != StatusActive {
		t.Errorf("expected stored status unchanged, got %s", repo.diags[d.ID].Status)
	}
	if len(rec.seen) != 1 || rec.seen[0].err == nil {
		t.Errorf("expected failed save to be observed, got %+v", rec.seen)
	}
}

func TestService_ForceStatus(t *testing.T) {
	svc, repo, _ := newTestService()
	d := record(t, svc, "Alice", 0)
	if _, err := svc.Resolve(context.Background(), d.ID); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	got, err := svc.ForceStatus(context.Background(), d.ID, StatusOngoing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusOngoing || repo.diags[d.ID].Status != StatusOngoing {
		t.Errorf("expected forced ONGOING, got %s", repo.diags[d.ID].Status)
	}

	if _, err := svc.ForceStatus(context.Background(), d.ID, StatusActive); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ACTIVE to be rejected as a forced target, got %v", err)
	}
	if _, err := svc.ForceStatus(context.Background(), 404, StatusResolved); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
