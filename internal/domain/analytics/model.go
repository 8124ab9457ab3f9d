package analytics

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	defaultDays         = 30
	maxDays             = 365
	recentActivityLimit = 20
	topProviderLimit    = 10
	defaultMetricUnit   = "count"
	defaultCategory     = "general"
)

// Activity maps to the user_activities table.
type Activity struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	UserID       uuid.UUID       `db:"user_id" json:"user_id"`
	ActivityType string          `db:"activity_type" json:"activity_type"`
	Description  string          `db:"description" json:"description"`
	IPAddress    string          `db:"ip_address" json:"ip_address"`
	UserAgent    string          `db:"user_agent" json:"user_agent"`
	Details      json.RawMessage `db:"details" json:"details"`
	OccurredAt   time.Time       `db:"occurred_at" json:"occurred_at"`
}

type ActivityRequest struct {
	ActivityType string          `json:"activity_type"`
	Description  string          `json:"description"`
	Details      json.RawMessage `json:"details"`
}

// Metric maps to the system_metrics table.
type Metric struct {
	ID          uuid.UUID `db:"id" json:"id"`
	MetricName  string    `db:"metric_name" json:"metric_name"`
	MetricValue float64   `db:"metric_value" json:"metric_value"`
	MetricUnit  string    `db:"metric_unit" json:"metric_unit"`
	Category    string    `db:"category" json:"category"`
	RecordedAt  time.Time `db:"recorded_at" json:"recorded_at"`
}

type MetricRequest struct {
	MetricName  string   `json:"metric_name"`
	MetricValue *float64 `json:"metric_value"`
	MetricUnit  string   `json:"metric_unit"`
	Category    string   `json:"category"`
}

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type UserStats struct {
	Total            int            `json:"total_users"`
	New              int            `json:"new_users"`
	RoleDistribution map[string]int `json:"role_distribution"`
}

type AppointmentStats struct {
	Total              int            `json:"total_appointments"`
	Recent             int            `json:"recent_appointments"`
	StatusDistribution map[string]int `json:"status_distribution"`
}

type MessageStats struct {
	Total  int `json:"total_messages"`
	Recent int `json:"recent_messages"`
}

type MealStats struct {
	Total            int            `json:"total_meals"`
	Recent           int            `json:"recent_meals"`
	TypeDistribution map[string]int `json:"type_distribution"`
}

type SystemStats struct {
	Ingredients int `json:"total_ingredients"`
	Settings    int `json:"total_settings"`
}

type Dashboard struct {
	Users            UserStats        `json:"user_stats"`
	Appointments     AppointmentStats `json:"appointment_stats"`
	Messages         MessageStats     `json:"message_stats"`
	Meals            MealStats        `json:"meal_stats"`
	System           SystemStats      `json:"system_stats"`
	RecentActivities []*Activity      `json:"recent_activities"`
	Range            DateRange        `json:"date_range"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

type UserReport struct {
	Growth           []DailyCount `json:"user_growth"`
	RoleDistribution []LabelCount `json:"role_distribution"`
	Total            int          `json:"total_users"`
	Active           int          `json:"active_users"`
	Range            DateRange    `json:"date_range"`
}

type AppointmentReport struct {
	Trend              []DailyCount `json:"appointment_trends"`
	StatusDistribution []LabelCount `json:"status_distribution"`
	TopProviders       []LabelCount `json:"top_providers"`
	Total              int          `json:"total_appointments"`
	Range              DateRange    `json:"date_range"`
}
