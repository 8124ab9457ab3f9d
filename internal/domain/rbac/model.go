package rbac

import (
	"time"

	"github.com/google/uuid"
)

// Permission is one named entry of the catalog, tagged with the module and
// action it governs.
type Permission struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Module      string    `db:"module" json:"module"`
	Action      string    `db:"action" json:"action"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// RolePermissions is the response body of the role listing endpoint.
type RolePermissions struct {
	Role        string        `json:"role"`
	Permissions []*Permission `json:"permissions"`
}

// CheckRequest asks whether the caller holds Permission.
type CheckRequest struct {
	Permission string `json:"permission"`
}

type CheckResponse struct {
	Permission    string `json:"permission"`
	HasPermission bool   `json:"has_permission"`
	Role          string `json:"role"`
}

// SeedResult counts the rows touched by Seed.
type SeedResult struct {
	Permissions int `json:"permissions"`
	Grants      int `json:"grants"`
}
