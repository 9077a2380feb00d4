// Package sandbox generates reproducible demo data for a fresh clinic: staff
// and patient accounts plus appointments, diagnoses, referrals, vitals and
// refill requests. Everything is written through the domain services so the
// generated rows pass the same validation as real traffic.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/telehealth/clinic/internal/domain/clinical"
	"github.com/telehealth/clinic/internal/domain/identity"
	"github.com/telehealth/clinic/internal/domain/portal"
	"github.com/telehealth/clinic/internal/domain/referral"
	"github.com/telehealth/clinic/internal/domain/scheduling"
	"github.com/telehealth/clinic/pkg/dates"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// SeedConfig controls the volume of generated data.
type SeedConfig struct {
	DoctorCount            int
	StaffCount             int
	PatientCount           int
	AppointmentsPerPatient int
	DiagnosesPerPatient    int
	ReferralsPerPatient    int
	VitalsPerPatient       int
	RefillsPerPatient      int
	// Password is given to every generated account.
	Password string
	Seed     int64
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		DoctorCount:            3,
		StaffCount:             1,
		PatientCount:           10,
		AppointmentsPerPatient: 2,
		DiagnosesPerPatient:    1,
		ReferralsPerPatient:    1,
		VitalsPerPatient:       2,
		RefillsPerPatient:      1,
		Password:               "changeme123",
		Seed:                   1,
	}
}

// SeedResult counts what was written.
type SeedResult struct {
	Users        int           `json:"users"`
	SkippedUsers int           `json:"skipped_users"`
	Appointments int           `json:"appointments"`
	Diagnoses    int           `json:"diagnoses"`
	Referrals    int           `json:"referrals"`
	Vitals       int           `json:"vitals"`
	Refills      int           `json:"refills"`
	Alerts       int           `json:"alerts"`
	Duration     time.Duration `json:"duration"`
}

// ---------------------------------------------------------------------------
// Targets
// ---------------------------------------------------------------------------

type Accounts interface {
	CreateUser(ctx context.Context, name, username, password string, role identity.Role) (*identity.User, error)
}

type Bookings interface {
	Book(ctx context.Context, a *scheduling.Appointment) error
}

type Diagnoses interface {
	RecordDiagnosis(ctx context.Context, d *clinical.Diagnosis) error
	SuggestPrescription(diagnosis string) (string, error)
}

type Referrals interface {
	CreateReferral(ctx context.Context, r *referral.HospitalReferral) error
}

type Portal interface {
	SubmitVitals(ctx context.Context, v *portal.VitalsSubmission) ([]portal.Alert, error)
	RequestRefill(ctx context.Context, r *portal.RefillRequest) error
}

// Targets are the services the seeder writes through. The domain services
// satisfy these interfaces directly.
type Targets struct {
	Accounts  Accounts
	Bookings  Bookings
	Diagnoses Diagnoses
	Referrals Referrals
	Portal    Portal
}

// maxNameAttempts bounds how many names are drawn for one patient account.
const maxNameAttempts = 8

// ---------------------------------------------------------------------------
// Reference pools
// ---------------------------------------------------------------------------

var (
	firstNames = []string{
		"Aarav", "Priya", "James", "Maria", "Chen", "Fatima", "Liam", "Sofia",
		"Noah", "Amara", "Ethan", "Yuki", "Omar", "Grace", "Ravi", "Elena",
	}
	lastNames = []string{
		"Sharma", "Okafor", "Smith", "Garcia", "Wang", "Hassan", "Murphy",
		"Rossi", "Kim", "Mensah", "Patel", "Tanaka", "Ali", "Brown",
	}
	hospitals = []string{
		"City General Hospital", "St. Mary's Medical Centre", "Riverside Clinic",
		"Northgate Infirmary",
	}
	departments = []string{
		"Cardiology", "Orthopaedics", "Neurology", "Dermatology", "ENT", "Radiology",
	}
	conditions = []struct {
		text     string
		symptoms string
	}{
		{"Viral fever", "High temperature, fatigue"},
		{"Upper respiratory infection", "Cough, sore throat"},
		{"Common cold", "Runny nose, sneezing"},
		{"Lower back pain", "Ache when bending"},
		{"Tension headache", "Pain around the forehead"},
		{"Seasonal allergy", "Itchy eyes"},
	}
	referralReasons = []string{
		"Persistent chest pain needing specialist review",
		"Suspected fracture, imaging required",
		"Recurring migraines unresponsive to treatment",
		"Skin lesion for biopsy",
		"Chronic ear infection",
	}
	medications = []string{
		"Paracetamol 500mg", "Amoxicillin 250mg", "Cetirizine 10mg",
		"Ibuprofen 400mg", "Metformin 500mg", "Salbutamol inhaler",
	}
	bloodPressures = []string{"118/76", "122/80", "135/88", "142/92", "110/70"}
)

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

// DataGenerator builds domain records from a seeded source, so the same seed
// and today always give the same data.
type DataGenerator struct {
	rng   *rand.Rand
	today time.Time
}

func NewDataGenerator(seed int64, today time.Time) *DataGenerator {
	return &DataGenerator{rng: rand.New(rand.NewSource(seed)), today: dates.Day(today)}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

// between returns a value in [lo, hi) rounded to one decimal.
func (g *DataGenerator) between(lo, hi float64) float64 {
	v := lo + g.rng.Float64()*(hi-lo)
	return float64(int(v*10)) / 10
}

func (g *DataGenerator) dayOffset(lo, hi int) *time.Time {
	d := dates.AddDays(g.today, lo+g.rng.Intn(hi-lo+1))
	return &d
}

func (g *DataGenerator) PersonName() string {
	return g.pick(firstNames) + " " + g.pick(lastNames)
}

// Appointment is booked one to thirty days ahead.
func (g *DataGenerator) Appointment(patient, specialist string) *scheduling.Appointment {
	types := []scheduling.ConsultationType{
		scheduling.ConsultationVideo, scheduling.ConsultationAudio, scheduling.ConsultationInPerson,
	}
	return scheduling.NewAppointment(patient, specialist, g.dayOffset(1, 30),
		g.pick(scheduling.TimeSlots()), scheduling.StatusScheduled,
		types[g.rng.Intn(len(types))], "")
}

// Diagnosis is recorded within the last thirty days.
func (g *DataGenerator) Diagnosis(patient, doctor string) *clinical.Diagnosis {
	c := conditions[g.rng.Intn(len(conditions))]
	severities := []clinical.Severity{clinical.SeverityMild, clinical.SeverityModerate, clinical.SeveritySevere}
	d := &clinical.Diagnosis{
		PatientName:   patient,
		DoctorName:    doctor,
		DiagnosisText: c.text,
		Symptoms:      c.symptoms,
		Severity:      severities[g.rng.Intn(len(severities))],
		RecordedDate:  g.dayOffset(-30, 0),
	}
	if g.rng.Intn(2) == 0 {
		d.FollowUpInstructions = "Review in two weeks"
	}
	return d
}

func (g *DataGenerator) Referral(patient, doctor string) *referral.HospitalReferral {
	urgencies := []referral.Urgency{
		referral.UrgencyLow, referral.UrgencyMedium, referral.UrgencyHigh, referral.UrgencyEmergency,
	}
	return &referral.HospitalReferral{
		PatientName:              patient,
		ReferringDoctor:          doctor,
		HospitalName:             g.pick(hospitals),
		Department:               g.pick(departments),
		Reason:                   g.pick(referralReasons),
		UrgencyLevel:             urgencies[g.rng.Intn(len(urgencies))],
		PreferredAppointmentDate: g.dayOffset(1, 14),
		ContactNumber:            fmt.Sprintf("07%03d %06d", g.rng.Intn(1000), g.rng.Intn(1000000)),
	}
}

// Vitals are mostly inside the normal bands, with an occasional outlier so
// demo dashboards show alerts.
func (g *DataGenerator) Vitals(userID int64, patient string) *portal.VitalsSubmission {
	v := &portal.VitalsSubmission{
		UserID:        userID,
		PatientName:   patient,
		Pulse:         g.between(62, 98),
		Temperature:   g.between(36.1, 37.4),
		Respiration:   g.between(12.5, 19.5),
		BloodPressure: g.pick(bloodPressures),
		Weight:        g.between(50, 100),
		Height:        g.between(150, 195),
		Oxygen:        g.between(95.5, 100),
	}
	switch g.rng.Intn(5) {
	case 0:
		v.Pulse = g.between(101, 130)
	case 1:
		v.Temperature = g.between(37.6, 39.5)
	}
	return v
}

func (g *DataGenerator) Refill(userID int64, patient string) *portal.RefillRequest {
	return &portal.RefillRequest{
		UserID:         userID,
		PatientName:    patient,
		MedicationName: g.pick(medications),
		Quantity:       []int{14, 28, 30, 60, 90}[g.rng.Intn(5)],
	}
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

// Seeder writes a generated clinic through Targets.
type Seeder struct {
	config  SeedConfig
	targets Targets
	gen     *DataGenerator
	logger  zerolog.Logger
}

func NewSeeder(config SeedConfig, targets Targets, today time.Time, logger zerolog.Logger) *Seeder {
	if config.Password == "" {
		config.Password = DefaultSeedConfig().Password
	}
	return &Seeder{
		config:  config,
		targets: targets,
		gen:     NewDataGenerator(config.Seed, today),
		logger:  logger,
	}
}

// Run creates accounts first and then the records that reference them by
// name. Accounts that already exist are skipped, so re-running adds clinical
// data without failing on usernames.
func (s *Seeder) Run(ctx context.Context) (*SeedResult, error) {
	start := time.Now()
	res := &SeedResult{}

	doctors, err := s.accounts(ctx, res, "doctor", identity.RoleDoctor, s.config.DoctorCount)
	if err != nil {
		return nil, err
	}
	if _, err := s.accounts(ctx, res, "staff", identity.RoleStaff, s.config.StaffCount); err != nil {
		return nil, err
	}
	patients, err := s.accounts(ctx, res, "patient", identity.RolePatient, s.config.PatientCount)
	if err != nil {
		return nil, err
	}
	if len(doctors) == 0 && len(patients) > 0 {
		return nil, fmt.Errorf("seed: at least one doctor is required for patient records")
	}

	for i, p := range patients {
		doctor := doctors[i%len(doctors)].Name
		if err := s.patientRecords(ctx, res, p, doctor); err != nil {
			return nil, fmt.Errorf("seed records for %s: %w", p.Username, err)
		}
	}

	res.Duration = time.Since(start)
	s.logger.Info().
		Int("users", res.Users).
		Int("appointments", res.Appointments).
		Int("diagnoses", res.Diagnoses).
		Int("referrals", res.Referrals).
		Int("vitals", res.Vitals).
		Int("refills", res.Refills).
		Dur("duration", res.Duration).
		Msg("sandbox seeded")
	return res, nil
}

func (s *Seeder) accounts(ctx context.Context, res *SeedResult, prefix string, role identity.Role, n int) ([]*identity.User, error) {
	users := make([]*identity.User, 0, n)
	for i := 1; i <= n; i++ {
		username := fmt.Sprintf("%s%d", prefix, i)
		u, err := s.createAccount(ctx, username, role)
		if errors.Is(err, identity.ErrUsernameTaken) {
			res.SkippedUsers++
			s.logger.Debug().Str("username", username).Msg("account exists, skipping")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", username, err)
		}
		res.Users++
		users = append(users, u)
	}
	return users, nil
}

// createAccount draws a fresh name while the generated patient name is
// already registered.
func (s *Seeder) createAccount(ctx context.Context, username string, role identity.Role) (*identity.User, error) {
	var err error
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := s.gen.PersonName()
		if role == identity.RoleDoctor {
			name = "Dr. " + name
		}
		var u *identity.User
		u, err = s.targets.Accounts.CreateUser(ctx, name, username, s.config.Password, role)
		if !errors.Is(err, identity.ErrPatientNameTaken) {
			return u, err
		}
	}
	return nil, err
}

func (s *Seeder) patientRecords(ctx context.Context, res *SeedResult, p *identity.User, doctor string) error {
	for i := 0; i < s.config.AppointmentsPerPatient; i++ {
		if err := s.targets.Bookings.Book(ctx, s.gen.Appointment(p.Name, doctor)); err != nil {
			return err
		}
		res.Appointments++
	}
	for i := 0; i < s.config.DiagnosesPerPatient; i++ {
		d := s.gen.Diagnosis(p.Name, doctor)
		rx, err := s.targets.Diagnoses.SuggestPrescription(d.DiagnosisText)
		if err != nil {
			return err
		}
		d.PrescriptionDetails = rx
		if err := s.targets.Diagnoses.RecordDiagnosis(ctx, d); err != nil {
			return err
		}
		res.Diagnoses++
	}
	for i := 0; i < s.config.ReferralsPerPatient; i++ {
		if err := s.targets.Referrals.CreateReferral(ctx, s.gen.Referral(p.Name, doctor)); err != nil {
			return err
		}
		res.Referrals++
	}
	for i := 0; i < s.config.VitalsPerPatient; i++ {
		alerts, err := s.targets.Portal.SubmitVitals(ctx, s.gen.Vitals(p.ID, p.Name))
		if err != nil {
			return err
		}
		res.Vitals++
		res.Alerts += len(alerts)
	}
	for i := 0; i < s.config.RefillsPerPatient; i++ {
		if err := s.targets.Portal.RequestRefill(ctx, s.gen.Refill(p.ID, p.Name)); err != nil {
			return err
		}
		res.Refills++
	}
	return nil
}
