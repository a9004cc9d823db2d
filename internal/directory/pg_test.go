package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestPGStoreGetActor(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("select id, organization_id, email, role, status, password_hash, created_at, updated_at.*from actors.*where id").
		WithArgs("actor-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "organization_id", "email", "role", "status", "password_hash", "created_at", "updated_at",
		}).AddRow("actor-1", "org-1", "a@acme.example", "viewer", "active", "hash", now, now))

	store := NewPGStore(db)
	actor, err := store.GetActor(context.Background(), "actor-1")
	if err != nil {
		t.Fatalf("GetActor: %v", err)
	}
	if actor.Email != "a@acme.example" || actor.Role != "viewer" {
		t.Fatalf("unexpected actor: %+v", actor)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreCreateOrganizationConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("insert into organizations").
		WithArgs(sqlmock.AnyArg(), "Acme", "client", sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	store := NewPGStore(db)
	org := Organization{Name: "Acme", Kind: "client", Settings: map[string]any{}}
	if err := store.CreateOrganization(context.Background(), &org); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreActorGrants(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select distinct rp.permission_key").
		WithArgs("actor-1").
		WillReturnRows(sqlmock.NewRows([]string{"permission_key"}).
			AddRow("export:reports:organization").
			AddRow("view:rates:organization"))

	store := NewPGStore(db)
	grants, err := store.ActorGrants(context.Background(), "actor-1")
	if err != nil {
		t.Fatalf("ActorGrants: %v", err)
	}
	if len(grants) != 2 || grants[0] != "export:reports:organization" {
		t.Fatalf("unexpected grants: %v", grants)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreSetRolePermissionsMissingRole(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("select exists").
		WithArgs("role-404").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	store := NewPGStore(db)
	err = store.SetRolePermissions(context.Background(), "role-404", []string{"view:rates:organization"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStorePurgeExpiredTokens(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	cutoff := time.Now().UTC()
	mock.ExpectExec("delete from refresh_tokens").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	store := NewPGStore(db)
	n, err := store.PurgeExpiredTokens(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("PurgeExpiredTokens: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 purged rows, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
