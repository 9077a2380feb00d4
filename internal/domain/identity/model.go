package identity

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/telehealth/clinic/internal/platform/auth"
	"github.com/telehealth/clinic/pkg/lifecycle"
)

// MinPasswordLength is enforced on signup and on accounts created from
// the command line.
const MinPasswordLength = 8

type Role string

const (
	RolePatient Role = "PATIENT"
	RoleDoctor  Role = "DOCTOR"
	RoleStaff   Role = "STAFF"
	RoleAdmin   Role = "ADMIN"
)

// ParseRole reads a role case-insensitively. Blank input is PATIENT.
func ParseRole(raw string) (Role, error) {
	return lifecycle.Parse("role", raw, RolePatient, RolePatient, RoleDoctor, RoleStaff, RoleAdmin)
}

func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// AuthRole is the role name carried in session tokens.
func (r Role) AuthRole() string {
	switch r {
	case RoleDoctor:
		return auth.RoleDoctor
	case RoleStaff:
		return auth.RoleStaff
	case RoleAdmin:
		return auth.RoleAdmin
	default:
		return auth.RolePatient
	}
}

// RoleFromAuth maps a token role back to a stored role.
func RoleFromAuth(name string) Role {
	r, err := ParseRole(name)
	if err != nil {
		return RolePatient
	}
	return r
}

type Feature string

const (
	FeatureBookConsultation   Feature = "book_consultation"
	FeaturePrescriptionRefill Feature = "prescription_refill"
	FeatureVitals             Feature = "vitals"
	FeatureHealthReport       Feature = "health_report"
	FeatureDoctorDiagnosis    Feature = "doctor_diagnosis"
	FeatureHospitalReferral   Feature = "hospital_referral"
	FeatureStaffBooking       Feature = "staff_booking"
)

var roleFeatures = map[Role][]Feature{
	RolePatient: {FeatureBookConsultation, FeaturePrescriptionRefill, FeatureVitals, FeatureHealthReport},
	RoleDoctor:  {FeatureDoctorDiagnosis, FeatureHospitalReferral},
	RoleStaff:   {FeatureStaffBooking},
}

// Features lists the dashboard entries a role may open. Admins get all of
// them; an unknown role gets the patient set.
func Features(r Role) []Feature {
	if r == RoleAdmin {
		var all []Feature
		for _, role := range []Role{RolePatient, RoleDoctor, RoleStaff} {
			all = append(all, roleFeatures[role]...)
		}
		return all
	}
	if f, ok := roleFeatures[r]; ok {
		return append([]Feature(nil), f...)
	}
	return append([]Feature(nil), roleFeatures[RolePatient]...)
}

// User is an account that can sign in. Name is the display name clinical
// records are filed under, so patient names are unique: PatientKey holds the
// normalised name for patients and is nil for every other role.
type User struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name         string    `json:"name" gorm:"size:100;not null"`
	Username     string    `json:"username" gorm:"size:50;not null;uniqueIndex"`
	PasswordHash string    `json:"-" gorm:"size:100;not null"`
	Role         Role      `json:"role" gorm:"size:20;not null;default:PATIENT"`
	PatientKey   *string   `json:"-" gorm:"column:patient_key;size:100;uniqueIndex"`
	CreatedAt    time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }

// NormalizeUsername trims and lowercases so lookups are case-insensitive.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeName folds case and collapses whitespace, so "alice  SMITH" and
// "Alice Smith" name the same patient.
func NormalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// SetPassword stores a bcrypt hash of password at the given cost.
func (u *User) SetPassword(password string, cost int) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// Dashboard is what the landing page shows after sign-in.
type Dashboard struct {
	UserID   string    `json:"user_id"`
	Name     string    `json:"name"`
	Role     Role      `json:"role"`
	Features []Feature `json:"features"`
}
