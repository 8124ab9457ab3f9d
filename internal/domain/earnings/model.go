package earnings

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
	StatusPaid      = "paid"
	StatusDisputed  = "disputed"
)

var validStatuses = map[string]bool{StatusPending: true, StatusProcessed: true, StatusPaid: true, StatusDisputed: true}

// CommissionStructure maps to the commission_structures table. The active
// row for a (provider role, service type) pair prices new earnings.
type CommissionStructure struct {
	ID                uuid.UUID `db:"id" json:"id"`
	ProviderRole      string    `db:"provider_role" json:"provider_role"`
	ServiceType       string    `db:"service_type" json:"service_type"`
	CommissionRate    float64   `db:"commission_rate" json:"commission_rate"`
	MinimumAmount     float64   `db:"minimum_amount" json:"minimum_amount"`
	MaximumCommission *float64  `db:"maximum_commission" json:"maximum_commission,omitempty"`
	IsActive          bool      `db:"is_active" json:"is_active"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

type StructureRequest struct {
	ProviderRole      string   `json:"provider_role"`
	ServiceType       string   `json:"service_type"`
	CommissionRate    float64  `json:"commission_rate"`
	MinimumAmount     float64  `json:"minimum_amount"`
	MaximumCommission *float64 `json:"maximum_commission"`
	IsActive          *bool    `json:"is_active"`
}

type StructureUpdate struct {
	CommissionRate    *float64 `json:"commission_rate"`
	MinimumAmount     *float64 `json:"minimum_amount"`
	MaximumCommission *float64 `json:"maximum_commission"`
	IsActive          *bool    `json:"is_active"`
}

// Record maps to the earnings_records table.
type Record struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	ProviderID       uuid.UUID  `db:"provider_id" json:"provider_id"`
	ProviderName     string     `json:"provider_name"`
	PatientID        *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	PatientName      *string    `json:"patient_name,omitempty"`
	AppointmentID    *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	ServiceType      string     `db:"service_type" json:"service_type"`
	BaseAmount       float64    `db:"base_amount" json:"base_amount"`
	CommissionRate   float64    `db:"commission_rate" json:"commission_rate"`
	CommissionAmount float64    `db:"commission_amount" json:"commission_amount"`
	NetEarnings      float64    `db:"net_earnings" json:"net_earnings"`
	PaymentStatus    string     `db:"payment_status" json:"payment_status"`
	ServiceDate      time.Time  `db:"service_date" json:"service_date"`
	Notes            string     `db:"notes" json:"notes"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

type RecordRequest struct {
	ProviderID    *uuid.UUID `json:"provider_id"`
	PatientID     *uuid.UUID `json:"patient_id"`
	AppointmentID *uuid.UUID `json:"appointment_id"`
	ServiceType   string     `json:"service_type"`
	BaseAmount    float64    `json:"base_amount"`
	ServiceDate   *time.Time `json:"service_date"`
	Notes         string     `json:"notes"`
}

type StatusRequest struct {
	PaymentStatus string `json:"payment_status"`
}

type Filter struct {
	ProviderID    *uuid.UUID
	PaymentStatus string
}

// Totals sums a set of earnings records.
type Totals struct {
	Gross      float64 `json:"total_earnings"`
	Commission float64 `json:"total_commission"`
	Net        float64 `json:"net_earnings"`
	Services   int     `json:"total_services"`
}

type MonthTotals struct {
	Month string `json:"month"`
	Totals
}

type Summary struct {
	Totals
	AverageServiceAmount float64       `json:"average_service_amount"`
	Year                 int           `json:"year"`
	Monthly              []MonthTotals `json:"monthly_breakdown"`
}

type RoleTotals struct {
	ProviderRole string `json:"provider_role"`
	Providers    int    `json:"providers"`
	Totals
}

type Overview struct {
	Totals
	ByRole  []RoleTotals `json:"by_role"`
	Pending int          `json:"pending_payments"`
}
