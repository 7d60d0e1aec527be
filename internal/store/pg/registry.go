package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/thenishantgiri/CampusCore/internal/auth"
)

const userColumns = `u.id, u.email, u.password_hash, u.name, u.role_id, coalesce(r.name, ''), u.created_at`

func scanUser(row interface{ Scan(...any) error }) (auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.RoleID, &u.RoleName, &u.CreatedAt)
	return u, err
}

func (s *Store) FindUserByID(ctx context.Context, id string) (auth.User, error) {
	query := fmt.Sprintf(`select %s from users u left join roles r on r.id = u.role_id where u.id = $1`, userColumns)
	u, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (auth.User, error) {
	query := fmt.Sprintf(`select %s from users u left join roles r on r.id = u.role_id where u.email = $1`, userColumns)
	u, err := scanUser(s.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.User{}, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context, q auth.UserQuery) ([]auth.User, int, error) {
	var (
		conds []string
		args  []any
		idx   = 1
	)
	if q.RoleID != "" {
		conds = append(conds, fmt.Sprintf("u.role_id = $%d", idx))
		args = append(args, q.RoleID)
		idx++
	}
	if q.Search != "" {
		conds = append(conds, fmt.Sprintf("(u.name ilike $%d or u.email ilike $%d)", idx, idx))
		args = append(args, "%"+q.Search+"%")
		idx++
	}
	where := ""
	if len(conds) > 0 {
		where = " where " + strings.Join(conds, " and ")
	}

	var total int
	countQuery := "select count(*) from users u" + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := fmt.Sprintf(`select %s from users u left join roles r on r.id = u.role_id%s order by u.created_at desc, u.id limit $%d offset $%d`,
		userColumns, where, idx, idx+1)
	args = append(args, q.Limit, (q.Page-1)*q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *Store) CreateUser(ctx context.Context, u auth.User) (auth.User, error) {
	query := `insert into users (id, email, password_hash, name, role_id)
		values ($1, $2, $3, $4, $5)
		returning created_at`
	err := s.db.QueryRowContext(ctx, query, u.ID, u.Email, u.PasswordHash, u.Name, u.RoleID).Scan(&u.CreatedAt)
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return auth.User{}, fmt.Errorf("email already registered: %w", auth.ErrConflict)
		case pgErrForeignKeyViolation:
			return auth.User{}, fmt.Errorf("role %s: %w", u.RoleID, auth.ErrNotFound)
		}
	}
	if err != nil {
		return auth.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd auth.UserUpdate) (auth.User, error) {
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.RoleID != nil {
		sets = append(sets, fmt.Sprintf("role_id = $%d", idx))
		args = append(args, *upd.RoleID)
		idx++
	}
	if len(sets) == 0 {
		return s.FindUserByID(ctx, id)
	}
	args = append(args, id)

	query := fmt.Sprintf("update users set %s where id = $%d", strings.Join(sets, ", "), idx)
	res, err := s.db.ExecContext(ctx, query, args...)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
		return auth.User{}, fmt.Errorf("role: %w", auth.ErrNotFound)
	}
	if err != nil {
		return auth.User{}, fmt.Errorf("update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.User{}, auth.ErrNotFound
	}
	return s.FindUserByID(ctx, id)
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *Store) FindRoleByID(ctx context.Context, id string) (auth.Role, error) {
	var role auth.Role
	err := s.db.QueryRowContext(ctx,
		`select id, name, type, created_at, updated_at from roles where id = $1`, id).
		Scan(&role.ID, &role.Name, &role.Type, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Role{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Role{}, fmt.Errorf("find role: %w", err)
	}
	perms, err := s.rolePermissions(ctx, id)
	if err != nil {
		return auth.Role{}, err
	}
	role.Permissions = perms
	return role, nil
}

func (s *Store) rolePermissions(ctx context.Context, roleID string) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx,
		`select p.id, p.key, p.label, p.created_at, p.updated_at
		from permissions p
		join role_permissions rp on rp.permission_id = p.id
		where rp.role_id = $1
		order by p.key`, roleID)
	if err != nil {
		return nil, fmt.Errorf("role permissions: %w", err)
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func collectPermissions(rows *sql.Rows) ([]auth.Permission, error) {
	var perms []auth.Permission
	for rows.Next() {
		var p auth.Permission
		if err := rows.Scan(&p.ID, &p.Key, &p.Label, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s *Store) ListRoles(ctx context.Context) ([]auth.Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, type, created_at, updated_at from roles order by created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var roles []auth.Role
	index := map[string]int{}
	for rows.Next() {
		var role auth.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Type, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		index[role.ID] = len(roles)
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	grants, err := s.db.QueryContext(ctx,
		`select rp.role_id, p.id, p.key, p.label, p.created_at, p.updated_at
		from role_permissions rp
		join permissions p on p.id = rp.permission_id
		order by rp.role_id, p.key`)
	if err != nil {
		return nil, fmt.Errorf("list role grants: %w", err)
	}
	defer grants.Close()
	for grants.Next() {
		var roleID string
		var p auth.Permission
		if err := grants.Scan(&roleID, &p.ID, &p.Key, &p.Label, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan role grant: %w", err)
		}
		if i, ok := index[roleID]; ok {
			roles[i].Permissions = append(roles[i].Permissions, p)
		}
	}
	return roles, grants.Err()
}

func (s *Store) CreateRole(ctx context.Context, role auth.Role) (auth.Role, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.Role{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`insert into roles (id, name, type) values ($1, $2, $3) returning created_at, updated_at`,
		role.ID, role.Name, role.Type).Scan(&role.CreatedAt, &role.UpdatedAt)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return auth.Role{}, fmt.Errorf("role %s exists: %w", role.ID, auth.ErrConflict)
	}
	if err != nil {
		return auth.Role{}, fmt.Errorf("create role: %w", err)
	}
	for _, p := range role.Permissions {
		if _, err := tx.ExecContext(ctx,
			`insert into role_permissions (role_id, permission_id) values ($1, $2)`,
			role.ID, p.ID); err != nil {
			return auth.Role{}, fmt.Errorf("grant permission: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return auth.Role{}, fmt.Errorf("commit: %w", err)
	}
	return role, nil
}

func (s *Store) UpdateRole(ctx context.Context, id string, upd auth.RoleUpdate) (auth.Role, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.Role{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if upd.Name != nil {
		res, err := tx.ExecContext(ctx,
			`update roles set name = $1, updated_at = now() where id = $2`, *upd.Name, id)
		if err != nil {
			return auth.Role{}, fmt.Errorf("update role: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return auth.Role{}, auth.ErrNotFound
		}
	} else {
		res, err := tx.ExecContext(ctx, `update roles set updated_at = now() where id = $1`, id)
		if err != nil {
			return auth.Role{}, fmt.Errorf("touch role: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return auth.Role{}, auth.ErrNotFound
		}
	}
	if upd.Permissions != nil {
		if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, id); err != nil {
			return auth.Role{}, fmt.Errorf("clear grants: %w", err)
		}
		for _, p := range *upd.Permissions {
			if _, err := tx.ExecContext(ctx,
				`insert into role_permissions (role_id, permission_id) values ($1, $2)`,
				id, p.ID); err != nil {
				return auth.Role{}, fmt.Errorf("grant permission: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return auth.Role{}, fmt.Errorf("commit: %w", err)
	}
	return s.FindRoleByID(ctx, id)
}

// DeleteRole re-checks user references inside the transaction so a role
// cannot vanish from under a user assigned between check and delete.
func (s *Store) DeleteRole(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var refs int
	if err := tx.QueryRowContext(ctx,
		`select count(*) from users where role_id = $1`, id).Scan(&refs); err != nil {
		return fmt.Errorf("count role references: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("role assigned to %d user(s): %w", refs, auth.ErrConflict)
	}
	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, id); err != nil {
		return fmt.Errorf("clear grants: %w", err)
	}
	res, err := tx.ExecContext(ctx, `delete from roles where id = $1`, id)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
		return fmt.Errorf("role in use: %w", auth.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) UsersReferencingRole(ctx context.Context, roleID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from users where role_id = $1`, roleID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count role references: %w", err)
	}
	return n, nil
}

func (s *Store) FindPermissionByID(ctx context.Context, id string) (auth.Permission, error) {
	var p auth.Permission
	err := s.db.QueryRowContext(ctx,
		`select id, key, label, created_at, updated_at from permissions where id = $1`, id).
		Scan(&p.ID, &p.Key, &p.Label, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Permission{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Permission{}, fmt.Errorf("find permission: %w", err)
	}
	return p, nil
}

func (s *Store) FindPermissionByKey(ctx context.Context, key string) (auth.Permission, error) {
	var p auth.Permission
	err := s.db.QueryRowContext(ctx,
		`select id, key, label, created_at, updated_at from permissions where key = $1`, key).
		Scan(&p.ID, &p.Key, &p.Label, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Permission{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Permission{}, fmt.Errorf("find permission by key: %w", err)
	}
	return p, nil
}

func (s *Store) FindPermissionsByKeys(ctx context.Context, keys []string) ([]auth.Permission, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = k
	}
	query := fmt.Sprintf(
		`select id, key, label, created_at, updated_at from permissions where key in (%s) order by key`,
		strings.Join(placeholders, ", "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find permissions by keys: %w", err)
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func (s *Store) ListPermissions(ctx context.Context) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, key, label, created_at, updated_at from permissions order by key`)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func (s *Store) CreatePermission(ctx context.Context, p auth.Permission) (auth.Permission, error) {
	err := s.db.QueryRowContext(ctx,
		`insert into permissions (id, key, label) values ($1, $2, $3) returning created_at, updated_at`,
		p.ID, p.Key, p.Label).Scan(&p.CreatedAt, &p.UpdatedAt)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return auth.Permission{}, fmt.Errorf("permission %s exists: %w", p.Key, auth.ErrConflict)
	}
	if err != nil {
		return auth.Permission{}, fmt.Errorf("create permission: %w", err)
	}
	return p, nil
}

// DeletePermission re-checks role grants inside the transaction.
func (s *Store) DeletePermission(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var refs int
	if err := tx.QueryRowContext(ctx,
		`select count(*) from role_permissions where permission_id = $1`, id).Scan(&refs); err != nil {
		return fmt.Errorf("count permission references: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("permission granted to %d role(s): %w", refs, auth.ErrConflict)
	}
	res, err := tx.ExecContext(ctx, `delete from permissions where id = $1`, id)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
		return fmt.Errorf("permission in use: %w", auth.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("delete permission: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) RolesReferencingPermission(ctx context.Context, permissionID string) ([]auth.RoleRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`select r.id, r.name
		from roles r
		join role_permissions rp on rp.role_id = r.id
		where rp.permission_id = $1
		order by r.id`, permissionID)
	if err != nil {
		return nil, fmt.Errorf("roles referencing permission: %w", err)
	}
	defer rows.Close()

	var refs []auth.RoleRef
	for rows.Next() {
		var ref auth.RoleRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, fmt.Errorf("scan role ref: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
