package directory

import (
	"context"
	"time"
)

// Store describes the persistence operations the directory needs.
type Store interface {
	CreateOrganization(ctx context.Context, org *Organization) error
	GetOrganization(ctx context.Context, id string) (Organization, error)
	ListOrganizations(ctx context.Context) ([]Organization, error)

	CreateActor(ctx context.Context, actor *Actor) error
	GetActor(ctx context.Context, id string) (Actor, error)
	FindActorByEmail(ctx context.Context, email string) (Actor, error)
	ListActors(ctx context.Context, organizationID string) ([]Actor, error)
	UpdateActorRole(ctx context.Context, actorID, role string) error

	CreateRole(ctx context.Context, role *Role) error
	SetRolePermissions(ctx context.Context, roleID string, keys []string) error
	AssignRole(ctx context.Context, a Assignment) error
	ActorGrants(ctx context.Context, actorID string) ([]string, error)

	CreateRefreshToken(ctx context.Context, tok *RefreshToken) error
	FindRefreshToken(ctx context.Context, id string) (RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string) error
	RevokeActorTokens(ctx context.Context, actorID string) error
	PurgeExpiredTokens(ctx context.Context, before time.Time) (int64, error)

	AppendAudit(ctx context.Context, entry *AuditEntry) error
	PurgeAudit(ctx context.Context, before time.Time) (int64, error)
}
