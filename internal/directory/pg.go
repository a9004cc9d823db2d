package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"ratebench.io/internal/ids"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store on PostgreSQL via database/sql (pgx stdlib driver).
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) CreateOrganization(ctx context.Context, org *Organization) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	if org.ID == "" {
		org.ID = ids.New()
	}
	settings, err := json.Marshal(org.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		insert into organizations (id, name, kind, settings)
		values ($1, $2, $3, $4)
		returning created_at, updated_at
	`, org.ID, org.Name, org.Kind, settings)
	if err := row.Scan(&org.CreatedAt, &org.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *PGStore) GetOrganization(ctx context.Context, id string) (Organization, error) {
	if s.db == nil {
		return Organization{}, errors.New("database connection unavailable")
	}
	var (
		org Organization
		raw []byte
	)
	err := s.db.QueryRowContext(ctx, `
		select id, name, kind, settings, created_at, updated_at
		from organizations
		where id = $1
	`, id).Scan(&org.ID, &org.Name, &org.Kind, &raw, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Organization{}, ErrNotFound
	}
	if err != nil {
		return Organization{}, err
	}
	org.Settings = map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &org.Settings); err != nil {
			return Organization{}, fmt.Errorf("decode settings: %w", err)
		}
	}
	return org, nil
}

func (s *PGStore) ListOrganizations(ctx context.Context) ([]Organization, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, name, kind, settings, created_at, updated_at
		from organizations
		order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Organization
	for rows.Next() {
		var (
			org Organization
			raw []byte
		)
		if err := rows.Scan(&org.ID, &org.Name, &org.Kind, &raw, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, err
		}
		org.Settings = map[string]any{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &org.Settings); err != nil {
				return nil, err
			}
		}
		result = append(result, org)
	}
	return result, rows.Err()
}

func (s *PGStore) CreateActor(ctx context.Context, actor *Actor) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	if actor.ID == "" {
		actor.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into actors (id, organization_id, email, role, status, password_hash)
		values ($1, $2, $3, $4, $5, $6)
		returning created_at, updated_at
	`, actor.ID, actor.OrganizationID, actor.Email, actor.Role, actor.Status, actor.PasswordHash)
	if err := row.Scan(&actor.CreatedAt, &actor.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return ErrConflict
			case pgErrForeignKeyViolation:
				return ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (s *PGStore) GetActor(ctx context.Context, id string) (Actor, error) {
	return s.scanActor(ctx, `
		select id, organization_id, email, role, status, password_hash, created_at, updated_at
		from actors
		where id = $1
	`, id)
}

func (s *PGStore) FindActorByEmail(ctx context.Context, email string) (Actor, error) {
	return s.scanActor(ctx, `
		select id, organization_id, email, role, status, password_hash, created_at, updated_at
		from actors
		where email = $1
	`, email)
}

func (s *PGStore) scanActor(ctx context.Context, query, arg string) (Actor, error) {
	if s.db == nil {
		return Actor{}, errors.New("database connection unavailable")
	}
	var actor Actor
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&actor.ID, &actor.OrganizationID, &actor.Email, &actor.Role,
		&actor.Status, &actor.PasswordHash, &actor.CreatedAt, &actor.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Actor{}, ErrNotFound
	}
	if err != nil {
		return Actor{}, err
	}
	return actor, nil
}

func (s *PGStore) ListActors(ctx context.Context, organizationID string) ([]Actor, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, organization_id, email, role, status, password_hash, created_at, updated_at
		from actors
		where organization_id = $1
		order by email
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Actor
	for rows.Next() {
		var actor Actor
		if err := rows.Scan(
			&actor.ID, &actor.OrganizationID, &actor.Email, &actor.Role,
			&actor.Status, &actor.PasswordHash, &actor.CreatedAt, &actor.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, actor)
	}
	return result, rows.Err()
}

func (s *PGStore) UpdateActorRole(ctx context.Context, actorID, role string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update actors set role = $2, updated_at = now() where id = $1
	`, actorID, role)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) CreateRole(ctx context.Context, role *Role) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	if role.ID == "" {
		role.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into roles (id, organization_id, name, description)
		values ($1, $2, $3, $4)
		returning created_at, updated_at
	`, role.ID, role.OrganizationID, role.Name, role.Description)
	if err := row.Scan(&role.CreatedAt, &role.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return ErrConflict
			case pgErrForeignKeyViolation:
				return ErrNotFound
			}
		}
		return err
	}
	return nil
}

// SetRolePermissions replaces the grant list in one transaction.
func (s *PGStore) SetRolePermissions(ctx context.Context, roleID string, keys []string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `select exists(select 1 from roles where id = $1)`, roleID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, roleID); err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_key) values ($1, $2)
		`, roleID, key); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PGStore) AssignRole(ctx context.Context, a Assignment) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into assignments (actor_id, role_id, organization_id)
		values ($1, $2, $3)
		on conflict (actor_id, role_id) do nothing
	`, a.ActorID, a.RoleID, a.OrganizationID)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
		return ErrNotFound
	}
	return err
}

func (s *PGStore) ActorGrants(ctx context.Context, actorID string) ([]string, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select distinct rp.permission_key
		from assignments a
		join role_permissions rp on rp.role_id = a.role_id
		where a.actor_id = $1
		order by rp.permission_key
	`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *PGStore) CreateRefreshToken(ctx context.Context, tok *RefreshToken) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	if tok.ID == "" {
		tok.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into refresh_tokens (id, actor_id, token_hash, expires_at)
		values ($1, $2, $3, $4)
	`, tok.ID, tok.ActorID, tok.TokenHash, tok.ExpiresAt)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
		return ErrNotFound
	}
	return err
}

func (s *PGStore) FindRefreshToken(ctx context.Context, id string) (RefreshToken, error) {
	if s.db == nil {
		return RefreshToken{}, errors.New("database connection unavailable")
	}
	var tok RefreshToken
	err := s.db.QueryRowContext(ctx, `
		select id, actor_id, token_hash, expires_at, created_at, revoked
		from refresh_tokens
		where id = $1
	`, id).Scan(&tok.ID, &tok.ActorID, &tok.TokenHash, &tok.ExpiresAt, &tok.CreatedAt, &tok.Revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return RefreshToken{}, ErrNotFound
	}
	if err != nil {
		return RefreshToken{}, err
	}
	return tok, nil
}

func (s *PGStore) RevokeRefreshToken(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `update refresh_tokens set revoked = true where id = $1`, id)
	return err
}

func (s *PGStore) RevokeActorTokens(ctx context.Context, actorID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `update refresh_tokens set revoked = true where actor_id = $1`, actorID)
	return err
}

func (s *PGStore) PurgeExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		delete from refresh_tokens where expires_at < $1 or revoked = true
	`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PGStore) AppendAudit(ctx context.Context, entry *AuditEntry) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into audit_log (id, occurred_at, actor_id, org_id, action, resource_type, resource_id, metadata)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.OccurredAt, entry.ActorID, entry.OrgID, entry.Action, entry.ResourceType, entry.ResourceID, meta)
	return err
}

func (s *PGStore) PurgeAudit(ctx context.Context, before time.Time) (int64, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from audit_log where occurred_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	if err == nil {
		return nil, false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
