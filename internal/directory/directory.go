// Package directory persists the organizations, actors, roles, and grants the
// permission resolver consumes.
package directory

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("directory: not found")
	ErrConflict     = errors.New("directory: resource conflict")
	ErrInvalidInput = errors.New("directory: invalid input")
)

const (
	ActorStatusActive   = "active"
	ActorStatusDisabled = "disabled"
)

// Organization is a client company or a law firm on the platform.
type Organization struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Kind      string         `json:"kind"`
	Settings  map[string]any `json:"settings,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Actor is a person or service account operating on behalf of an organization.
// Role is one of the catalog's built-in roles for the organization's kind.
type Actor struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	Status         string    `json:"status"`
	PasswordHash   string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Role is a custom, organization-defined grant bundle layered on top of the
// built-in catalog roles.
type Role struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Assignment links an actor to a custom role.
type Assignment struct {
	ActorID        string    `json:"actor_id"`
	RoleID         string    `json:"role_id"`
	OrganizationID string    `json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// RefreshToken is a persisted, revocable refresh credential. Only the hash of
// the secret is stored.
type RefreshToken struct {
	ID        string
	ActorID   string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// AuditEntry is an append-only record of a privileged action.
type AuditEntry struct {
	ID           string
	OccurredAt   time.Time
	ActorID      string
	OrgID        string
	Action       string
	ResourceType string
	ResourceID   string
	Metadata     map[string]string
}
