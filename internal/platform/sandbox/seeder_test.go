package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/telehealth/clinic/internal/domain/clinical"
	"github.com/telehealth/clinic/internal/domain/identity"
	"github.com/telehealth/clinic/internal/domain/portal"
	"github.com/telehealth/clinic/internal/domain/referral"
	"github.com/telehealth/clinic/internal/domain/scheduling"
)

var today = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

type fakeTargets struct {
	users        map[string]*identity.User
	appointments []*scheduling.Appointment
	diagnoses    []*clinical.Diagnosis
	referrals    []*referral.HospitalReferral
	vitals       []*portal.VitalsSubmission
	refills      []*portal.RefillRequest
	bookErr      error
}

func newFakeTargets() *fakeTargets {
	return &fakeTargets{users: make(map[string]*identity.User)}
}

func (f *fakeTargets) targets() Targets {
	return Targets{Accounts: f, Bookings: f, Diagnoses: f, Referrals: f, Portal: f}
}

func (f *fakeTargets) CreateUser(_ context.Context, name, username, password string, role identity.Role) (*identity.User, error) {
	if _, ok := f.users[username]; ok {
		return nil, identity.ErrUsernameTaken
	}
	if role == identity.RolePatient {
		for _, u := range f.users {
			if u.Role == identity.RolePatient && identity.NormalizeName(u.Name) == identity.NormalizeName(name) {
				return nil, identity.ErrPatientNameTaken
			}
		}
	}
	u := &identity.User{ID: int64(len(f.users) + 1), Name: name, Username: username, Role: role}
	f.users[username] = u
	return u, nil
}

func (f *fakeTargets) Book(_ context.Context, a *scheduling.Appointment) error {
	if f.bookErr != nil {
		return f.bookErr
	}
	f.appointments = append(f.appointments, a)
	return nil
}

func (f *fakeTargets) RecordDiagnosis(_ context.Context, d *clinical.Diagnosis) error {
	f.diagnoses = append(f.diagnoses, d)
	return nil
}

func (f *fakeTargets) SuggestPrescription(diagnosis string) (string, error) {
	return clinical.SuggestPrescription(diagnosis), nil
}

func (f *fakeTargets) CreateReferral(_ context.Context, r *referral.HospitalReferral) error {
	f.referrals = append(f.referrals, r)
	return nil
}

func (f *fakeTargets) SubmitVitals(_ context.Context, v *portal.VitalsSubmission) ([]portal.Alert, error) {
	f.vitals = append(f.vitals, v)
	return v.Alerts(), nil
}

func (f *fakeTargets) RequestRefill(_ context.Context, r *portal.RefillRequest) error {
	f.refills = append(f.refills, r)
	return nil
}

func smallConfig() SeedConfig {
	cfg := DefaultSeedConfig()
	cfg.DoctorCount = 2
	cfg.PatientCount = 4
	return cfg
}

func TestSeeder_Run(t *testing.T) {
	f := newFakeTargets()
	res, err := NewSeeder(smallConfig(), f.targets(), today, zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Users != 7 || res.Appointments != 8 || res.Diagnoses != 4 || res.Referrals != 4 || res.Vitals != 8 || res.Refills != 4 {
		t.Errorf("unexpected counts %+v", res)
	}
	if f.users["doctor1"].Role != identity.RoleDoctor || f.users["staff1"].Role != identity.RoleStaff || f.users["patient4"].Role != identity.RolePatient {
		t.Error("roles not assigned by prefix")
	}
	if f.users["doctor2"].Name[:4] != "Dr. " {
		t.Errorf("expected doctor title, got %q", f.users["doctor2"].Name)
	}
}

func TestSeeder_RecordsPassDomainRules(t *testing.T) {
	f := newFakeTargets()
	if _, err := NewSeeder(smallConfig(), f.targets(), today, zerolog.Nop()).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, a := range f.appointments {
		if !a.AppointmentDate.After(today) {
			t.Errorf("appointment booked in the past: %v", a.AppointmentDate)
		}
		if _, ok := scheduling.NormalizeTimeSlot(a.TimeSlot); !ok {
			t.Errorf("unknown slot %q", a.TimeSlot)
		}
	}
	for _, d := range f.diagnoses {
		if d.RecordedDate.After(today) || d.PrescriptionDetails == "" {
			t.Errorf("unexpected diagnosis %+v", d)
		}
	}
	for _, r := range f.referrals {
		if !r.PreferredAppointmentDate.After(today) || r.HospitalName == "" {
			t.Errorf("unexpected referral %+v", r)
		}
	}
	for _, v := range f.vitals {
		if v.Oxygen > 100 || v.Pulse <= 0 || v.UserID == 0 {
			t.Errorf("unexpected vitals %+v", v)
		}
	}
	for _, r := range f.refills {
		if r.Quantity <= 0 || r.MedicationName == "" {
			t.Errorf("unexpected refill %+v", r)
		}
	}
}

func TestSeeder_Deterministic(t *testing.T) {
	a, b := newFakeTargets(), newFakeTargets()
	NewSeeder(smallConfig(), a.targets(), today, zerolog.Nop()).Run(context.Background())
	NewSeeder(smallConfig(), b.targets(), today, zerolog.Nop()).Run(context.Background())
	for name, u := range a.users {
		if b.users[name].Name != u.Name {
			t.Errorf("%s: %q != %q", name, u.Name, b.users[name].Name)
		}
	}
	for i := range a.vitals {
		if a.vitals[i].Pulse != b.vitals[i].Pulse {
			t.Errorf("vitals %d differ", i)
		}
	}
}

func TestSeeder_RerunSkipsAccounts(t *testing.T) {
	f := newFakeTargets()
	cfg := smallConfig()
	cfg.PatientCount = 0
	NewSeeder(cfg, f.targets(), today, zerolog.Nop()).Run(context.Background())

	res, err := NewSeeder(cfg, f.targets(), today, zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Users != 0 || res.SkippedUsers != 3 {
		t.Errorf("expected all accounts skipped, got %+v", res)
	}
}

func TestSeeder_PatientNamesUnique(t *testing.T) {
	cfg := DefaultSeedConfig()
	cfg.PatientCount = 30
	f := newFakeTargets()
	if _, err := NewSeeder(cfg, f.targets(), today, zerolog.Nop()).Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := make(map[string]bool)
	patients := 0
	for _, u := range f.users {
		if u.Role != identity.RolePatient {
			continue
		}
		patients++
		key := identity.NormalizeName(u.Name)
		if seen[key] {
			t.Errorf("patient name %q assigned twice", u.Name)
		}
		seen[key] = true
	}
	if patients != 30 {
		t.Errorf("expected 30 patients, got %d", patients)
	}
}

func TestSeeder_NeedsDoctorForPatients(t *testing.T) {
	cfg := smallConfig()
	cfg.DoctorCount = 0
	if _, err := NewSeeder(cfg, newFakeTargets().targets(), today, zerolog.Nop()).Run(context.Background()); err == nil {
		t.Error("expected error without doctors")
	}
}

func TestSeeder_PropagatesErrors(t *testing.T) {
	f := newFakeTargets()
	f.bookErr = errors.New("db down")
	_, err := NewSeeder(smallConfig(), f.targets(), today, zerolog.Nop()).Run(context.Background())
	if !errors.Is(err, f.bookErr) {
		t.Errorf("expected wrapped booking error, got %v", err)
	}
}
