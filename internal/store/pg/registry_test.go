package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/thenishantgiri/CampusCore/internal/auth"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestFindUserByID(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "name", "role_id", "coalesce", "created_at"}).
		AddRow("u1", "ada@campus.edu", "hash", "Ada", "role-admin", "Admin", now)
	mock.ExpectQuery("select u.id, u.email, u.password_hash, u.name, u.role_id").
		WithArgs("u1").WillReturnRows(rows)

	u, err := store.FindUserByID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("FindUserByID: %v", err)
	}
	if u.Email != "ada@campus.edu" || u.RoleName != "Admin" {
		t.Fatalf("unexpected user: %+v", u)
	}

	mock.ExpectQuery("select u.id, u.email, u.password_hash").
		WithArgs("missing").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	if _, err := store.FindUserByID(context.Background(), "missing"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into users").
		WithArgs("u1", "dup@campus.edu", "hash", "Dup", "role-student").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	_, err := store.CreateUser(context.Background(), auth.User{
		ID: "u1", Email: "dup@campus.edu", PasswordHash: "hash", Name: "Dup", RoleID: "role-student",
	})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateUserMissingRole(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into users").
		WithArgs("u1", "a@campus.edu", "hash", "A", "role-ghost").
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})

	_, err := store.CreateUser(context.Background(), auth.User{
		ID: "u1", Email: "a@campus.edu", PasswordHash: "hash", Name: "A", RoleID: "role-ghost",
	})
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListUsersFiltersAndPaginates(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`select count\(\*\) from users`).
		WithArgs("role-student", "%ada%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("select u.id, u.email, u.password_hash").
		WithArgs("role-student", "%ada%", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "name", "role_id", "coalesce", "created_at"}).
			AddRow("u1", "ada@campus.edu", "hash", "Ada", "role-student", "Student", now))

	users, total, err := store.ListUsers(context.Background(), auth.UserQuery{
		Page: 1, Limit: 10, RoleID: "role-student", Search: "ada",
	})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if total != 1 || len(users) != 1 || users[0].ID != "u1" {
		t.Fatalf("unexpected result: total=%d users=%+v", total, users)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateUserRole(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()
	roleID := "role-admin"

	mock.ExpectExec(`update users set role_id = \$1 where id = \$2`).
		WithArgs(roleID, "u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("select u.id, u.email, u.password_hash").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "name", "role_id", "coalesce", "created_at"}).
			AddRow("u1", "ada@campus.edu", "hash", "Ada", roleID, "Admin", now))

	u, err := store.UpdateUser(context.Background(), "u1", auth.UserUpdate{RoleID: &roleID})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if u.RoleID != roleID {
		t.Fatalf("role not updated: %+v", u)
	}

	mock.ExpectExec("update users set role_id").
		WithArgs(roleID, "missing").WillReturnResult(sqlmock.NewResult(0, 0))
	if _, err := store.UpdateUser(context.Background(), "missing", auth.UserUpdate{RoleID: &roleID}); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteUser(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("delete from users").WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.DeleteUser(context.Background(), "u1"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	mock.ExpectExec("delete from users").WithArgs("missing").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := store.DeleteUser(context.Background(), "missing"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindRoleByIDLoadsPermissions(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("select id, name, type, created_at, updated_at from roles").
		WithArgs("role-admin").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "type", "created_at", "updated_at"}).
			AddRow("role-admin", "Admin", "STATIC", now, now))
	mock.ExpectQuery("select p.id, p.key, p.label").
		WithArgs("role-admin").
		WillReturnRows(sqlmock.NewRows([]string{"id", "key", "label", "created_at", "updated_at"}).
			AddRow("p1", "users:read", "Read users", now, now).
			AddRow("p2", "users:delete", "Delete users", now, now))

	role, err := store.FindRoleByID(context.Background(), "role-admin")
	if err != nil {
		t.Fatalf("FindRoleByID: %v", err)
	}
	if role.Type != auth.RoleTypeStatic || len(role.Permissions) != 2 {
		t.Fatalf("unexpected role: %+v", role)
	}
	keys := role.PermissionKeys()
	if keys[0] != "users:read" || keys[1] != "users:delete" {
		t.Fatalf("unexpected keys: %v", keys)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateRoleWithGrants(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("insert into roles").
		WithArgs("role-auditor", "Auditor", "CUSTOM").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("insert into role_permissions").
		WithArgs("role-auditor", "p1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	role, err := store.CreateRole(context.Background(), auth.Role{
		ID: "role-auditor", Name: "Auditor", Type: auth.RoleTypeCustom,
		Permissions: []auth.Permission{{ID: "p1", Key: "users:read"}},
	})
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if role.CreatedAt.IsZero() {
		t.Fatalf("timestamps not populated: %+v", role)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateRoleDuplicate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("insert into roles").
		WithArgs("role-auditor", "Auditor", "CUSTOM").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	mock.ExpectRollback()

	_, err := store.CreateRole(context.Background(), auth.Role{
		ID: "role-auditor", Name: "Auditor", Type: auth.RoleTypeCustom,
	})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteRoleReferenced(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`select count\(\*\) from users where role_id`).
		WithArgs("role-teacher").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectRollback()

	err := store.DeleteRole(context.Background(), "role-teacher")
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteRoleUnreferenced(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`select count\(\*\) from users where role_id`).
		WithArgs("role-auditor").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("delete from role_permissions").
		WithArgs("role-auditor").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("delete from roles").
		WithArgs("role-auditor").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.DeleteRole(context.Background(), "role-auditor"); err != nil {
		t.Fatalf("DeleteRole: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindPermissionsByKeys(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`select id, key, label, created_at, updated_at from permissions where key in`).
		WithArgs("users:read", "users:delete").
		WillReturnRows(sqlmock.NewRows([]string{"id", "key", "label", "created_at", "updated_at"}).
			AddRow("p2", "users:delete", "Delete users", now, now).
			AddRow("p1", "users:read", "Read users", now, now))

	perms, err := store.FindPermissionsByKeys(context.Background(), []string{"users:read", "users:delete"})
	if err != nil {
		t.Fatalf("FindPermissionsByKeys: %v", err)
	}
	if len(perms) != 2 {
		t.Fatalf("expected 2 permissions, got %d", len(perms))
	}

	// Unknown keys simply return fewer rows.
	if perms, err := store.FindPermissionsByKeys(context.Background(), nil); err != nil || perms != nil {
		t.Fatalf("empty key set should short-circuit, got %v %v", perms, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreatePermissionDuplicateKey(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into permissions").
		WithArgs("p1", "users:read", "Read users").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	_, err := store.CreatePermission(context.Background(), auth.Permission{
		ID: "p1", Key: "users:read", Label: "Read users",
	})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeletePermissionReferenced(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`select count\(\*\) from role_permissions`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	err := store.DeletePermission(context.Background(), "p1")
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRolesReferencingPermission(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select r.id, r.name").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow("role-admin", "Admin").
			AddRow("role-teacher", "Teacher"))

	refs, err := store.RolesReferencingPermission(context.Background(), "p1")
	if err != nil {
		t.Fatalf("RolesReferencingPermission: %v", err)
	}
	if len(refs) != 2 || refs[0].ID != "role-admin" {
		t.Fatalf("unexpected refs: %+v", refs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
