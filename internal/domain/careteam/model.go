package careteam

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive      = "active"
	StatusInactive    = "inactive"
	StatusTransferred = "transferred"
)

var validStatuses = map[string]bool{StatusActive: true, StatusInactive: true, StatusTransferred: true}

// Assignment maps to the patient_providers table. A (patient, provider) pair
// has at most one row; ending a relationship changes its status.
type Assignment struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	PatientID          uuid.UUID `db:"patient_id" json:"patient_id"`
	ProviderID         uuid.UUID `db:"provider_id" json:"provider_id"`
	ProviderType       string    `db:"provider_type" json:"provider_type"`
	RelationshipStatus string    `db:"relationship_status" json:"relationship_status"`
	AssignedDate       time.Time `db:"assigned_date" json:"assigned_date"`
	Notes              string    `db:"notes" json:"notes"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

type AssignRequest struct {
	ProviderID uuid.UUID `json:"provider_id"`
	Notes      string    `json:"notes"`
}

type StatusRequest struct {
	RelationshipStatus string  `json:"relationship_status"`
	Notes              *string `json:"notes"`
}

// ProviderLink is one active provider on a patient listing.
type ProviderLink struct {
	ProviderID   uuid.UUID `json:"provider_id"`
	ProviderName string    `json:"provider_name"`
	ProviderType string    `json:"provider_type"`
	AssignedDate time.Time `json:"assigned_date"`
}

type Patient struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	Username    string         `db:"username" json:"username"`
	Email       string         `db:"email" json:"email"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	Assignments []ProviderLink `json:"assignments"`
}
