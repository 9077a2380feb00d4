package portal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/telehealth/clinic/pkg/lifecycle"
)

const refillKind = "refill"

// Alert thresholds for self-reported vitals.
const (
	PulseLow        = 60.0
	PulseHigh       = 100.0
	TemperatureLow  = 36.0
	TemperatureHigh = 37.5
	RespirationLow  = 12.0
	RespirationHigh = 20.0
	OxygenLow       = 95.0
)

// Upper bounds for self-reported readings. Anything above is a typo, not a
// measurement, and would overflow the stored column.
const (
	MaxPulse       = 300.0
	MaxTemperature = 45.0
	MaxRespiration = 100.0
	MaxOxygen      = 100.0
	MaxWeight      = 700.0
	MaxHeight      = 300.0
	MaxQuantity    = 1000
)

// NormalValues are the reference readings shown next to a submission.
var NormalValues = map[string]float64{
	"pulse":       75,
	"temperature": 37,
	"respiration": 16,
	"oxygen":      98,
}

type Direction string

const (
	DirectionLow  Direction = "LOW"
	DirectionHigh Direction = "HIGH"
)

// Alert flags one reading outside its normal band.
type Alert struct {
	Vital     string    `json:"vital"`
	Direction Direction `json:"direction"`
	Value     float64   `json:"value"`
	Message   string    `json:"message"`
}

// VitalsSubmission is a set of readings a patient reports from home.
// Weight and height are optional; zero means not reported.
type VitalsSubmission struct {
	ID            int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID        int64     `json:"user_id,omitempty" gorm:"index"`
	PatientName   string    `json:"patient_name" gorm:"size:100;not null"`
	Pulse         float64   `json:"pulse" gorm:"not null"`
	Temperature   float64   `json:"temperature" gorm:"not null"`
	Respiration   float64   `json:"respiration" gorm:"not null"`
	BloodPressure string    `json:"blood_pressure,omitempty" gorm:"size:20"`
	Weight        float64   `json:"weight,omitempty"`
	Height        float64   `json:"height,omitempty"`
	Oxygen        float64   `json:"oxygen" gorm:"not null"`
	SubmittedAt   time.Time `json:"submitted_at" gorm:"autoCreateTime"`
}

func (VitalsSubmission) TableName() string { return "vitals_submissions" }

// Alerts lists every reading outside its band. An empty result means all
// readings are normal.
func (v *VitalsSubmission) Alerts() []Alert {
	var alerts []Alert
	check := func(vital, label string, value, low, high float64) {
		switch {
		case value < low:
			alerts = append(alerts, Alert{vital, DirectionLow, value, label + " is Low Alert"})
		case high > 0 && value > high:
			alerts = append(alerts, Alert{vital, DirectionHigh, value, label + " is High Alert"})
		}
	}
	check("pulse", "Pulse", v.Pulse, PulseLow, PulseHigh)
	check("temperature", "Temperature", v.Temperature, TemperatureLow, TemperatureHigh)
	check("respiration", "Respiration", v.Respiration, RespirationLow, RespirationHigh)
	check("oxygen", "Oxygen Saturation", v.Oxygen, OxygenLow, 0)
	return alerts
}

// Readings returns the charted readings keyed like NormalValues.
func (v *VitalsSubmission) Readings() map[string]float64 {
	return map[string]float64{
		"pulse":       v.Pulse,
		"temperature": v.Temperature,
		"respiration": v.Respiration,
		"oxygen":      v.Oxygen,
	}
}

// VitalsView is a submission with its alerts and the reference values.
type VitalsView struct {
	*VitalsSubmission
	Alerts []Alert            `json:"alerts"`
	Normal map[string]float64 `json:"normal"`
}

func NewVitalsView(v *VitalsSubmission) VitalsView {
	alerts := v.Alerts()
	if alerts == nil {
		alerts = []Alert{}
	}
	return VitalsView{VitalsSubmission: v, Alerts: alerts, Normal: NormalValues}
}

type RefillStatus string

const (
	RefillPending   RefillStatus = "PENDING"
	RefillApproved  RefillStatus = "APPROVED"
	RefillDenied    RefillStatus = "DENIED"
	RefillFulfilled RefillStatus = "FULFILLED"
)

func ParseRefillStatus(raw string) (RefillStatus, error) {
	return lifecycle.Parse("refill status", raw, RefillPending,
		RefillPending, RefillApproved, RefillDenied, RefillFulfilled)
}

func (s *RefillStatus) UnmarshalText(b []byte) error {
	v, err := ParseRefillStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

var refillTransitions = lifecycle.Table[RefillStatus]{
	RefillPending:  {RefillApproved, RefillDenied},
	RefillApproved: {RefillFulfilled},
}

// ParseQuantity reads a refill quantity. It must be a whole number between
// 1 and MaxQuantity; text such as "30 tablets" is rejected.
func ParseQuantity(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("quantity %q is not a whole number", raw)
	}
	if n <= 0 {
		return 0, fmt.Errorf("quantity must be greater than zero")
	}
	if n > MaxQuantity {
		return 0, fmt.Errorf("quantity must not exceed %d", MaxQuantity)
	}
	return n, nil
}

// RefillRequest asks for more of an existing prescription.
type RefillRequest struct {
	ID             int64        `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID         int64        `json:"user_id,omitempty" gorm:"index"`
	PatientName    string       `json:"patient_name" gorm:"size:100;not null"`
	MedicationName string       `json:"medication_name" gorm:"size:150;not null"`
	Quantity       int          `json:"quantity" gorm:"not null"`
	Notes          string       `json:"notes,omitempty" gorm:"type:text"`
	Status         RefillStatus `json:"status" gorm:"size:20;not null;default:PENDING"`
	RequestedAt    time.Time    `json:"requested_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

func (RefillRequest) TableName() string { return "refill_requests" }

func (r *RefillRequest) ApplyDefaults() {
	if s, err := ParseRefillStatus(string(r.Status)); err == nil {
		r.Status = s
	}
}

func (r *RefillRequest) Approve() error { return r.move(RefillApproved) }
func (r *RefillRequest) Deny() error    { return r.move(RefillDenied) }
func (r *RefillRequest) Fulfill() error { return r.move(RefillFulfilled) }

func (r *RefillRequest) move(to RefillStatus) error {
	if err := refillTransitions.Check(refillKind, r.Status, to); err != nil {
		return err
	}
	r.Status = to
	return nil
}

// Confirmation is the receipt shown to the patient after submitting.
func (r *RefillRequest) Confirmation() string {
	note := r.Notes
	if strings.TrimSpace(note) == "" {
		note = "N/A"
	}
	return fmt.Sprintf("Prescription Refill Submitted!\n\n"+
		"• Patient Name: %s\n• Medication: %s\n• Quantity: %d\n• Note: %s\n",
		r.PatientName, r.MedicationName, r.Quantity, note)
}
