package security

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

var validRisk = map[string]bool{RiskLow: true, RiskMedium: true, RiskHigh: true, RiskCritical: true}

const (
	AlertBruteForce = "brute_force"

	defaultBruteForceThreshold = 5
	defaultBruteForceWindow    = 15 * time.Minute
	dashboardRecentLimit       = 10
)

// Event maps to the security_events table.
type Event struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	EventType     string          `db:"event_type" json:"event_type"`
	EventCategory string          `db:"event_category" json:"event_category"`
	UserID        *uuid.UUID      `db:"user_id" json:"user_id,omitempty"`
	IPAddress     string          `db:"ip_address" json:"ip_address"`
	UserAgent     string          `db:"user_agent" json:"user_agent"`
	Endpoint      string          `db:"endpoint" json:"endpoint"`
	Method        string          `db:"method" json:"method"`
	StatusCode    int             `db:"status_code" json:"status_code"`
	Details       json.RawMessage `db:"details" json:"details"`
	RiskLevel     string          `db:"risk_level" json:"risk_level"`
	OccurredAt    time.Time       `db:"occurred_at" json:"occurred_at"`
}

type EventRequest struct {
	EventType     string          `json:"event_type"`
	EventCategory string          `json:"event_category"`
	UserID        *uuid.UUID      `json:"user_id"`
	IPAddress     string          `json:"ip_address"`
	UserAgent     string          `json:"user_agent"`
	Endpoint      string          `json:"endpoint"`
	Method        string          `json:"method"`
	StatusCode    int             `json:"status_code"`
	Details       json.RawMessage `json:"details"`
	RiskLevel     string          `json:"risk_level"`
}

type EventFilter struct {
	EventType string
	RiskLevel string
	UserID    *uuid.UUID
	Since     time.Time
}

// LoginAttempt maps to the login_attempts table.
type LoginAttempt struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	Username      string     `db:"username" json:"username"`
	IPAddress     string     `db:"ip_address" json:"ip_address"`
	UserAgent     string     `db:"user_agent" json:"user_agent"`
	Success       bool       `db:"success" json:"success"`
	FailureReason string     `db:"failure_reason" json:"failure_reason,omitempty"`
	UserID        *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	AttemptedAt   time.Time  `db:"attempted_at" json:"attempted_at"`
}

type LoginFilter struct {
	Username  string
	IPAddress string
	Success   *bool
	Since     time.Time
}

// AuditLog maps to the audit_logs table.
type AuditLog struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	UserID       *uuid.UUID      `db:"user_id" json:"user_id,omitempty"`
	Action       string          `db:"action" json:"action"`
	ResourceType string          `db:"resource_type" json:"resource_type"`
	ResourceID   string          `db:"resource_id" json:"resource_id"`
	OldValues    json.RawMessage `db:"old_values" json:"old_values,omitempty"`
	NewValues    json.RawMessage `db:"new_values" json:"new_values,omitempty"`
	IPAddress    string          `db:"ip_address" json:"ip_address"`
	OccurredAt   time.Time       `db:"occurred_at" json:"occurred_at"`
}

type AuditFilter struct {
	UserID       *uuid.UUID
	Action       string
	ResourceType string
	Since        time.Time
}

// Alert maps to the security_alerts table. Open alerts of the same type and
// source address are bumped rather than duplicated.
type Alert struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	AlertType       string     `db:"alert_type" json:"alert_type"`
	Severity        string     `db:"severity" json:"severity"`
	Title           string     `db:"title" json:"title"`
	Description     string     `db:"description" json:"description"`
	IPAddress       string     `db:"ip_address" json:"ip_address"`
	UserID          *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	Endpoint        string     `db:"endpoint" json:"endpoint"`
	EventCount      int        `db:"event_count" json:"event_count"`
	FirstSeen       time.Time  `db:"first_seen" json:"first_seen"`
	LastSeen        time.Time  `db:"last_seen" json:"last_seen"`
	Resolved        bool       `db:"resolved" json:"resolved"`
	ResolvedBy      *uuid.UUID `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolutionNotes string     `db:"resolution_notes" json:"resolution_notes"`
}

type AlertRequest struct {
	AlertType   string     `json:"alert_type"`
	Severity    string     `json:"severity"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	IPAddress   string     `json:"ip_address"`
	UserID      *uuid.UUID `json:"user_id"`
	Endpoint    string     `json:"endpoint"`
}

type ResolveRequest struct {
	ResolutionNotes string `json:"resolution_notes"`
}

type AlertFilter struct {
	Resolved *bool
	Severity string
}

// Totals are the dashboard counters for one window.
type Totals struct {
	Events         int `json:"total_events"`
	HighRiskEvents int `json:"high_risk_events"`
	LoginAttempts  int `json:"login_attempts"`
	FailedLogins   int `json:"failed_logins"`
	ActiveAlerts   int `json:"active_alerts"`
}

type Dashboard struct {
	Totals
	LoginSuccessRate float64   `json:"login_success_rate"`
	RecentEvents     []*Event  `json:"recent_events"`
	RecentAlerts     []*Alert  `json:"recent_alerts"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
}
