package auth

import "context"

// Registry is the source of truth for users, roles, permissions and their
// relationships. Implementations return structured records or ErrNotFound;
// duplicate unique keys and live references surface as ErrConflict.
type Registry interface {
	FindUserByID(ctx context.Context, id string) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context, q UserQuery) ([]User, int, error)
	CreateUser(ctx context.Context, u User) (User, error)
	UpdateUser(ctx context.Context, id string, upd UserUpdate) (User, error)
	DeleteUser(ctx context.Context, id string) error

	// FindRoleByID loads the role together with its granted permission set.
	FindRoleByID(ctx context.Context, id string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, id string, upd RoleUpdate) (Role, error)
	DeleteRole(ctx context.Context, id string) error
	UsersReferencingRole(ctx context.Context, roleID string) (int, error)

	FindPermissionByID(ctx context.Context, id string) (Permission, error)
	FindPermissionByKey(ctx context.Context, key string) (Permission, error)
	FindPermissionsByKeys(ctx context.Context, keys []string) ([]Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	CreatePermission(ctx context.Context, p Permission) (Permission, error)
	DeletePermission(ctx context.Context, id string) error
	RolesReferencingPermission(ctx context.Context, permissionID string) ([]RoleRef, error)
}

// RoleResolver is the slice of Registry the permission stage needs.
type RoleResolver interface {
	FindRoleByID(ctx context.Context, id string) (Role, error)
}
