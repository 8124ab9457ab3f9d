package healthrecord

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive         = "active"
	StatusResolved       = "resolved"
	StatusFollowUpNeeded = "follow_up_needed"

	defaultRecordType = "consultation"
	maxTitleLen       = 200
)

var validStatuses = map[string]bool{StatusActive: true, StatusResolved: true, StatusFollowUpNeeded: true}

// Vitals are the optional measurements taken with a record.
type Vitals struct {
	HeightCM     *float64 `db:"height_cm" json:"height_cm,omitempty"`
	WeightKG     *float64 `db:"weight_kg" json:"weight_kg,omitempty"`
	BPSystolic   *int     `db:"bp_systolic" json:"blood_pressure_systolic,omitempty"`
	BPDiastolic  *int     `db:"bp_diastolic" json:"blood_pressure_diastolic,omitempty"`
	HeartRateBPM *int     `db:"heart_rate_bpm" json:"heart_rate_bpm,omitempty"`
	TemperatureC *float64 `db:"temperature_c" json:"temperature_c,omitempty"`
}

// Record maps to the health_records table.
type Record struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	PatientName  string     `json:"patient_name"`
	ProviderID   uuid.UUID  `db:"provider_id" json:"provider_id"`
	ProviderName string     `json:"provider_name"`
	RecordType   string     `db:"record_type" json:"record_type"`
	Title        string     `db:"title" json:"title"`
	Description  string     `db:"description" json:"description"`
	Vitals
	Symptoms       string     `db:"symptoms" json:"symptoms"`
	Diagnosis      string     `db:"diagnosis" json:"diagnosis"`
	TreatmentPlan  string     `db:"treatment_plan" json:"treatment_plan"`
	Medications    string     `db:"medications" json:"medications"`
	FollowUpDate   *time.Time `db:"follow_up_date" json:"follow_up_date,omitempty"`
	IsConfidential bool       `db:"is_confidential" json:"is_confidential"`
	IsEmergency    bool       `db:"is_emergency" json:"is_emergency"`
	Status         string     `db:"status" json:"status"`
	RecordDate     time.Time  `db:"record_date" json:"record_date"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

type CreateRequest struct {
	PatientID   uuid.UUID `json:"patient_id"`
	RecordType  string    `json:"record_type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Vitals
	Symptoms       string     `json:"symptoms"`
	Diagnosis      string     `json:"diagnosis"`
	TreatmentPlan  string     `json:"treatment_plan"`
	Medications    string     `json:"medications"`
	FollowUpDate   *time.Time `json:"follow_up_date"`
	IsConfidential bool       `json:"is_confidential"`
	IsEmergency    bool       `json:"is_emergency"`
	RecordDate     *time.Time `json:"record_date"`
}

// UpdateRequest changes only the fields that are set. Vitals replace the
// stored measurements when present.
type UpdateRequest struct {
	RecordType     *string    `json:"record_type"`
	Title          *string    `json:"title"`
	Description    *string    `json:"description"`
	Vitals         *Vitals    `json:"vitals"`
	Symptoms       *string    `json:"symptoms"`
	Diagnosis      *string    `json:"diagnosis"`
	TreatmentPlan  *string    `json:"treatment_plan"`
	Medications    *string    `json:"medications"`
	FollowUpDate   *time.Time `json:"follow_up_date"`
	IsConfidential *bool      `json:"is_confidential"`
	IsEmergency    *bool      `json:"is_emergency"`
	Status         *string    `json:"status"`
}

// Filter narrows a listing. AssignedTo restricts to patients actively
// assigned to that provider.
type Filter struct {
	PatientID  *uuid.UUID
	AssignedTo *uuid.UUID
	RecordType string
	Status     string
}
