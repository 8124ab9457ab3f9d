package settings

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeJSON    = "json"
	TypeFloat   = "float"
)

const defaultCategory = "general"

// Setting maps to the system_settings table. Values are stored as text and
// validated against Type on write.
type Setting struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Key         string     `db:"setting_key" json:"setting_key"`
	Value       string     `db:"setting_value" json:"setting_value"`
	Type        string     `db:"setting_type" json:"setting_type"`
	Category    string     `db:"category" json:"category"`
	Description string     `db:"description" json:"description"`
	IsPublic    bool       `db:"is_public" json:"is_public"`
	IsEditable  bool       `db:"is_editable" json:"is_editable"`
	CreatedBy   *uuid.UUID `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy   *uuid.UUID `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

type CreateRequest struct {
	Key         string `json:"setting_key"`
	Value       string `json:"setting_value"`
	Type        string `json:"setting_type"`
	Category    string `json:"category"`
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`
	IsEditable  *bool  `json:"is_editable"`
}

type UpdateRequest struct {
	Value       *string `json:"setting_value"`
	Type        *string `json:"setting_type"`
	Category    *string `json:"category"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"is_public"`
	IsEditable  *bool   `json:"is_editable"`
}

type Category struct {
	Category string `json:"category"`
}

// InitResult reports what a defaults bootstrap did.
type InitResult struct {
	Inserted int  `json:"inserted"`
	Skipped  bool `json:"skipped"`
}
