package referral

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/telehealth/clinic/pkg/dates"
	"github.com/telehealth/clinic/pkg/lifecycle"
)

var today = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func day(offset int) *time.Time {
	d := dates.AddDays(today, offset)
	return &d
}

func newRef(urgency Urgency, status Status) *HospitalReferral {
	r := &HospitalReferral{
		PatientName:     "Alice",
		ReferringDoctor: "Bose",
		HospitalName:    "City General",
		Department:      "Cardiology",
		Reason:          "chest pain",
		UrgencyLevel:    urgency,
		Status:          status,
	}
	r.ApplyDefaults(today)
	return r
}

func TestApplyDefaults(t *testing.T) {
	r := &HospitalReferral{}
	r.ApplyDefaults(today)
	if r.UrgencyLevel != UrgencyMedium || r.Status != StatusPending {
		t.Errorf("expected MEDIUM/PENDING, got %s/%s", r.UrgencyLevel, r.Status)
	}
	if r.ReferralDate == nil || !r.ReferralDate.Equal(today) {
		t.Errorf("expected referral date today, got %v", r.ReferralDate)
	}
	if r.PreferredAppointmentDate != nil {
		t.Error("expected preferred date to stay unset")
	}
}

func TestNewHospitalReferral(t *testing.T) {
	r := NewHospitalReferral("Alice", "Bose", "City General", "Cardiology", "chest pain", "")
	if r.UrgencyLevel != UrgencyMedium || r.Status != StatusPending || r.ReferralDate == nil {
		t.Errorf("unexpected defaults %+v", r)
	}
}

func TestParseUrgency(t *testing.T) {
	if u, err := ParseUrgency(" emergency "); err != nil || u != UrgencyEmergency {
		t.Errorf("ParseUrgency(emergency) = %s, %v", u, err)
	}
	if _, err := ParseUrgency("ASAP"); !errors.Is(err, lifecycle.ErrUnknownValue) {
		t.Errorf("expected ErrUnknownValue, got %v", err)
	}
}

func TestPriorityLevel(t *testing.T) {
	tests := []struct {
		urgency Urgency
		want    int
	}{
		{UrgencyEmergency, 4},
		{UrgencyHigh, 3},
		{UrgencyMedium, 2},
		{UrgencyLow, 1},
		{"high", 3},
		{"ROUTINE", 2},
	}
	for _, tt := range tests {
		r := &HospitalReferral{UrgencyLevel: tt.urgency}
		if got := r.PriorityLevel(); got != tt.want {
			t.Errorf("PriorityLevel(%s) = %d, want %d", tt.urgency, got, tt.want)
		}
	}
}

func TestColors(t *testing.T) {
	statuses := map[Status]string{
		StatusPending:   "#FFA500",
		StatusConfirmed: "#4CAF50",
		StatusCompleted: "#2196F3",
		StatusCancelled: "#F44336",
		"ARCHIVED":      "#999999",
	}
	for st, want := range statuses {
		r := &HospitalReferral{Status: st}
		if got := r.StatusColor(); got != want {
			t.Errorf("StatusColor(%s) = %s, want %s", st, got, want)
		}
	}
	urgencies := map[Urgency]string{
		UrgencyEmergency: "#FF0000",
		UrgencyHigh:      "#FF6600",
		UrgencyMedium:    "#FFA500",
		UrgencyLow:       "#4CAF50",
		"ROUTINE":        "#999999",
	}
	for u, want := range urgencies {
		r := &HospitalReferral{UrgencyLevel: u}
		if got := r.UrgencyColor(); got != want {
			t.Errorf("UrgencyColor(%s) = %s, want %s", u, got, want)
		}
	}
}

func TestUrgencyPredicates(t *testing.T) {
	if !newRef(UrgencyHigh, "").IsUrgent() || newRef(UrgencyHigh, "").IsEmergency() {
		t.Error("expected HIGH to be urgent but not an emergency")
	}
	if !newRef(UrgencyEmergency, "").IsUrgent() || !newRef(UrgencyEmergency, "").IsEmergency() {
		t.Error("expected EMERGENCY to be urgent and an emergency")
	}
	if newRef(UrgencyMedium, "").IsUrgent() {
		t.Error("expected MEDIUM not to be urgent")
	}
}

func TestIsOverdue(t *testing.T) {
	tests := []struct {
		name      string
		preferred *time.Time
		status    Status
		want      bool
	}{
		{"past pending", day(-1), StatusPending, true},
		{"today pending", day(0), StatusPending, false},
		{"future pending", day(3), StatusPending, false},
		{"past confirmed", day(-1), StatusConfirmed, false},
		{"no date", nil, StatusPending, false},
	}
	for _, tt := range tests {
		r := newRef("", tt.status)
		r.PreferredAppointmentDate = tt.preferred
		if got := r.IsOverdueAt(today); got != tt.want {
			t.Errorf("%s: IsOverdueAt = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestTransitions(t *testing.T) {
	r := newRef("", StatusPending)
	if err := r.Complete(); !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Errorf("PENDING -> COMPLETED: expected refusal, got %v", err)
	}
	if r.Status != StatusPending {
		t.Errorf("refused transition changed status to %s", r.Status)
	}
	if err := r.Confirm(); err != nil {
		t.Fatalf("PENDING -> CONFIRMED: %v", err)
	}
	if !r.CanBeCancelled() {
		t.Error("expected CONFIRMED to be cancellable")
	}
	if err := r.Complete(); err != nil {
		t.Fatalf("CONFIRMED -> COMPLETED: %v", err)
	}
	if r.CanBeCancelled() {
		t.Error("expected COMPLETED not to be cancellable")
	}
	if err := r.Cancel(); !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Errorf("COMPLETED -> CANCELLED: expected refusal, got %v", err)
	}

	p := newRef("", StatusPending)
	if err := p.Cancel(); err != nil {
		t.Fatalf("PENDING -> CANCELLED: %v", err)
	}
	if err := p.Confirm(); !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Errorf("expected CANCELLED to be terminal, got %v", err)
	}
}

func TestForceTransitions(t *testing.T) {
	r := newRef("", StatusCancelled)
	r.MarkAsConfirmed()
	if !r.IsConfirmed() {
		t.Errorf("expected forced CONFIRMED, got %s", r.Status)
	}
	r.MarkAsCompleted()
	if !r.IsCompleted() {
		t.Errorf("expected forced COMPLETED, got %s", r.Status)
	}
}

func TestFormatting(t *testing.T) {
	r := newRef(UrgencyHigh, "")
	if got := r.FormattedReferralDate(); got != "10/03/2026" {
		t.Errorf("FormattedReferralDate() = %q", got)
	}
	if got := r.FormattedPreferredDate(); got != "Not specified" {
		t.Errorf("FormattedPreferredDate() = %q", got)
	}
	want := "Patient: Alice | Hospital: City General | Urgency: HIGH | Status: PENDING"
	if got := r.Summary(); got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}

	empty := &HospitalReferral{}
	if got := empty.FormattedReferralDate(); got != "No date set" {
		t.Errorf("expected placeholder, got %q", got)
	}
	if got := empty.Summary(); !strings.HasPrefix(got, "Patient: Unknown | Hospital: N/A") {
		t.Errorf("unexpected summary %q", got)
	}

	s := r.String()
	for _, w := range []string{"Hospital Referral:\n", "Referring Doctor: Dr. Bose\n", "Specialty: N/A\n", "Reason for Referral:\nchest pain\n\n"} {
		if !strings.Contains(s, w) {
			t.Errorf("expected %q in %q", w, s)
		}
	}
	if strings.Contains(s, "Contact:") {
		t.Error("expected empty contact to be omitted")
	}
}

func TestLetter(t *testing.T) {
	r := newRef(UrgencyEmergency, "")
	r.SpecialtyRequired = "Interventional cardiology"
	r.PreferredAppointmentDate = day(2)
	r.ContactNumber = "555-0100"

	letter := r.Letter(today)
	for _, w := range []string{
		"HOSPITAL REFERRAL LETTER\n" + strings.Repeat("=", 50) + "\n\n",
		"Date: 10/03/2026\n\n",
		"To: City General\nDepartment: Cardiology\n\n",
		"From: Bose\nTeleHealth System\n\n",
		"Dear Colleague,\n\nRE: Alice\n\n",
		"REASON FOR REFERRAL:\nchest pain\n\n",
		"SPECIALTY REQUIRED: Interventional cardiology\n\n",
		"URGENCY LEVEL: EMERGENCY\n",
		"PREFERRED APPOINTMENT DATE: 2026-03-12\n",
		"PATIENT CONTACT: 555-0100\n",
	} {
		if !strings.Contains(letter, w) {
			t.Errorf("expected %q in letter:\n%s", w, letter)
		}
	}
	if !strings.HasSuffix(letter, "Yours sincerely,\nBose\nTeleHealth System") {
		t.Errorf("unexpected closing:\n%s", letter)
	}

	bare := newRef("", "")
	letter = bare.Letter(today)
	for _, w := range []string{"SPECIALTY REQUIRED", "PREFERRED APPOINTMENT DATE", "PATIENT CONTACT"} {
		if strings.Contains(letter, w) {
			t.Errorf("expected %s to be omitted", w)
		}
	}
}

func TestBefore(t *testing.T) {
	low := newRef(UrgencyLow, "")
	low.ID = 1
	emergency := newRef(UrgencyEmergency, "")
	emergency.ID = 2
	olderHigh := newRef(UrgencyHigh, "")
	olderHigh.ID = 3
	olderHigh.ReferralDate = day(-5)
	newerHigh := newRef(UrgencyHigh, "")
	newerHigh.ID = 4

	if !Before(emergency, low) || Before(low, emergency) {
		t.Error("expected higher priority first")
	}
	if !Before(newerHigh, olderHigh) {
		t.Error("expected newer referral first within a priority")
	}
	if !Before(olderHigh, low) {
		t.Error("expected priority to outrank date")
	}
}

func TestReferralFilter_Matches(t *testing.T) {
	r := newRef(UrgencyHigh, StatusPending)
	r.PreferredAppointmentDate = day(-2)

	if !(ReferralFilter{Patient: "Alice", Urgency: UrgencyHigh, OverdueAt: &today}).Matches(r) {
		t.Error("expected match")
	}
	if (ReferralFilter{Hospital: "St. Mary"}).Matches(r) {
		t.Error("expected hospital mismatch")
	}
	r.Status = StatusConfirmed
	if (ReferralFilter{OverdueAt: &today}).Matches(r) {
		t.Error("expected confirmed referral not to be overdue")
	}
}
