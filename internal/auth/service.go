package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/thenishantgiri/CampusCore/internal/audit"
	"github.com/thenishantgiri/CampusCore/internal/ids"
)

// Audit action names. Exactly one record per successful privileged
// mutation; zero on failure.
const (
	ActionUserRegistered    = "USER_REGISTERED"
	ActionUserLoggedIn      = "USER_LOGGED_IN"
	ActionUserRoleChange    = "USER_ROLE_CHANGE"
	ActionUserDeleted       = "USER_DELETED"
	ActionRoleCreated       = "ROLE_CREATED"
	ActionRoleUpdated       = "ROLE_UPDATED"
	ActionRoleDeleted       = "ROLE_DELETED"
	ActionPermissionCreated = "PERMISSION_CREATED"
	ActionPermissionDeleted = "PERMISSION_DELETED"
)

// Service implements the identity operations behind the authorization
// pipeline: registration, login, and user/role/permission management with
// their self-protection rules.
type Service struct {
	reg    Registry
	tokens *Tokens
	hasher PasswordHasher
	audit  *audit.Logger
	log    zerolog.Logger
	now    func() time.Time
}

// ServiceOption configures Service.
type ServiceOption func(*Service)

// WithHasher overrides the password hasher.
func WithHasher(h PasswordHasher) ServiceOption {
	return func(s *Service) {
		if h != nil {
			s.hasher = h
		}
	}
}

// WithAuditLog wires the audit logger. Without it mutations still succeed;
// audit is best-effort by contract.
func WithAuditLog(l *audit.Logger) ServiceOption {
	return func(s *Service) { s.audit = l }
}

// WithLogger sets the diagnostic logger.
func WithLogger(log zerolog.Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the identity service.
func NewService(reg Registry, tokens *Tokens, opts ...ServiceOption) (*Service, error) {
	if reg == nil {
		return nil, errors.New("auth: registry is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token signer is required")
	}
	s := &Service{
		reg:    reg,
		tokens: tokens,
		hasher: BcryptHasher{},
		log:    zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Guard returns the authorization pipeline for protected operations:
// actor presence, role allow-list, then permission keys, in that order.
func (s *Service) Guard() Pipeline {
	return NewPipeline(ActorStage(), RoleStage(), PermissionStage(s.reg))
}

// Authenticate verifies a credential, loads the corresponding user and
// returns the actor identity. Any verification or lookup failure yields
// ErrUnauthenticated; the caller must leave the request context unpopulated.
func (s *Service) Authenticate(ctx context.Context, token string) (Actor, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: invalid or expired credential", ErrUnauthenticated)
	}
	user, err := s.reg.FindUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Actor{}, fmt.Errorf("%w: unknown subject", ErrUnauthenticated)
		}
		return Actor{}, s.surface(s.log, "authenticate", err)
	}
	return Actor{UserID: user.ID, Email: user.Email, RoleID: user.RoleID}, nil
}

// RegisterInput describes a registration request.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	RoleID   string
}

// Register creates a user account. Creating a user with the
// highest-privilege role requires the acting actor to already hold it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	log := s.scoped(ctx, "register")
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.RoleID = strings.TrimSpace(in.RoleID)
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if in.Password == "" {
		return User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if in.Name == "" {
		return User{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if in.RoleID == "" {
		return User{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}

	actor, _ := ActorFromContext(ctx)
	log.Info().Str("email", in.Email).Str("as_role", in.RoleID).Msg("starting user registration")

	if in.RoleID == RoleSuperAdmin && actor.RoleID != RoleSuperAdmin {
		log.Warn().Str("actor_role", actor.RoleID).Msg("only super-admin may create super-admin")
		return User{}, fmt.Errorf("%w: you do not have permission to create a super-admin user", ErrForbidden)
	}

	role, err := s.reg.FindRoleByID(ctx, in.RoleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, fmt.Errorf("%w: role not found", ErrNotFound)
		}
		return User{}, s.surface(log, "register", err)
	}

	if _, err := s.reg.FindUserByEmail(ctx, in.Email); err == nil {
		log.Warn().Str("email", in.Email).Msg("registration failed: email already exists")
		return User{}, fmt.Errorf("%w: user with this email already exists", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, s.surface(log, "register", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return User{}, s.surface(log, "register", err)
	}
	created, err := s.reg.CreateUser(ctx, User{
		ID:           ids.New(),
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		RoleID:       role.ID,
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return User{}, fmt.Errorf("%w: user with this email already exists", ErrConflict)
		}
		return User{}, s.surface(log, "register", err)
	}

	s.record(ctx, ActionUserRegistered, actor, map[string]any{
		"user": map[string]any{
			"id":         created.ID,
			"email":      created.Email,
			"name":       created.Name,
			"created_at": created.CreatedAt.UTC().Format(time.RFC3339),
		},
		"role": map[string]any{
			"id":   role.ID,
			"name": role.Name,
		},
	})
	log.Info().Str("user_id", created.ID).Msg("user registered successfully")
	return created.Safe(), nil
}

// LoginResult is a successful authentication outcome.
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

// Login verifies credentials and issues an access token. Every failure
// surfaces as ErrUnauthenticated without distinguishing unknown email from
// wrong password.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	log := s.scoped(ctx, "login")
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return LoginResult{}, fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	}
	log.Info().Str("email", email).Msg("attempting login")

	user, err := s.reg.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn().Str("email", email).Msg("login failed: no user with email")
			return LoginResult{}, fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
		}
		return LoginResult{}, s.surface(log, "login", err)
	}
	if !s.hasher.Compare(user.PasswordHash, password) {
		log.Warn().Str("email", email).Msg("login failed: incorrect password")
		return LoginResult{}, fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return LoginResult{}, s.surface(log, "login", err)
	}

	// The freshly authenticated user is the actor of their own login.
	s.record(ctx, ActionUserLoggedIn, Actor{UserID: user.ID, Email: user.Email, RoleID: user.RoleID}, map[string]any{
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
		},
		"role": map[string]any{
			"id":   user.RoleID,
			"name": nonEmpty(user.RoleName),
		},
		"login_time": s.now().UTC().Format(time.RFC3339),
	})
	log.Info().Str("user_id", user.ID).Msg("login successful")
	return LoginResult{AccessToken: token, ExpiresAt: expiresAt, User: user.Safe()}, nil
}

// FindUsers lists users with pagination and optional role/search filters.
func (s *Service) FindUsers(ctx context.Context, q UserQuery) (UserPage, error) {
	log := s.scoped(ctx, "findUsers")
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	users, total, err := s.reg.ListUsers(ctx, q)
	if err != nil {
		return UserPage{}, s.surface(log, "findUsers", err)
	}
	for i := range users {
		users[i] = users[i].Safe()
	}
	pages := (total + q.Limit - 1) / q.Limit
	log.Info().Int("count", len(users)).Int("page", q.Page).Int("total", total).Msg("users retrieved")
	return UserPage{
		Data: users,
		Meta: PageMeta{Total: total, Page: q.Page, Limit: q.Limit, Pages: pages},
	}, nil
}

// FindUserByID returns a single user without credential material.
func (s *Service) FindUserByID(ctx context.Context, userID string) (User, error) {
	log := s.scoped(ctx, "findUserByID")
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	user, err := s.reg.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return User{}, s.surface(log, "findUserByID", err)
	}
	return user.Safe(), nil
}

// UpdateUserRole reassigns a user's role. Assigning the highest-privilege
// role requires the actor to already hold it, and assigning the user's
// current role is rejected rather than silently accepted.
func (s *Service) UpdateUserRole(ctx context.Context, userID, roleID string) (User, error) {
	log := s.scoped(ctx, "updateUserRole")
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return User{}, fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	actor, _ := ActorFromContext(ctx)
	log.Info().Str("target_user_id", userID).Str("new_role_id", roleID).Msg("updating user role")

	current, err := s.reg.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn().Str("target_user_id", userID).Msg("user not found")
			return User{}, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return User{}, s.surface(log, "updateUserRole", err)
	}
	newRole, err := s.reg.FindRoleByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn().Str("role_id", roleID).Msg("role not found")
			return User{}, fmt.Errorf("%w: role not found", ErrNotFound)
		}
		return User{}, s.surface(log, "updateUserRole", err)
	}

	if newRole.ID == RoleSuperAdmin && actor.RoleID != RoleSuperAdmin {
		log.Warn().
			Str("actor_role", actor.RoleID).
			Str("target_user_id", userID).
			Msg("non-super-admin attempted to assign super-admin role")
		return User{}, fmt.Errorf("%w: only a super-admin can assign the super-admin role", ErrForbidden)
	}
	if current.RoleID == newRole.ID {
		log.Info().Str("target_user_id", userID).Str("role_id", roleID).Msg("role update skipped: user already has role")
		return User{}, fmt.Errorf("%w: user already has the specified role", ErrConflict)
	}

	updated, err := s.reg.UpdateUser(ctx, userID, UserUpdate{RoleID: &newRole.ID})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return User{}, s.surface(log, "updateUserRole", err)
	}

	s.record(ctx, ActionUserRoleChange, actor, map[string]any{
		"target_user": map[string]any{
			"id":    updated.ID,
			"email": updated.Email,
			"name":  updated.Name,
		},
		"role_change": map[string]any{
			"from": map[string]any{
				"id":   current.RoleID,
				"name": nonEmpty(current.RoleName),
			},
			"to": map[string]any{
				"id":   newRole.ID,
				"name": newRole.Name,
			},
		},
	})
	log.Info().
		Str("target_user_id", updated.ID).
		Str("previous_role", current.RoleID).
		Str("new_role", newRole.ID).
		Msg("user role updated successfully")
	return updated.Safe(), nil
}

// DeleteUser removes a user account. An actor may never delete their own
// account, and deleting a super-admin requires the actor to be one.
func (s *Service) DeleteUser(ctx context.Context, userID string) (User, error) {
	log := s.scoped(ctx, "deleteUser")
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	actor, _ := ActorFromContext(ctx)
	log.Info().Str("target_user_id", userID).Msg("attempting to delete user")

	target, err := s.reg.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn().Str("target_user_id", userID).Msg("user deletion failed: user not found")
			return User{}, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return User{}, s.surface(log, "deleteUser", err)
	}

	if actor.UserID == userID {
		log.Warn().Str("user_id", userID).Msg("user deletion failed: attempted to delete own account")
		return User{}, fmt.Errorf("%w: you cannot delete your own account", ErrForbidden)
	}
	if target.RoleID == RoleSuperAdmin && actor.RoleID != RoleSuperAdmin {
		log.Warn().
			Str("actor_role", actor.RoleID).
			Str("target_role", target.RoleID).
			Msg("user deletion failed: insufficient privilege to delete super-admin")
		return User{}, fmt.Errorf("%w: only super-admin users can delete other super-admin users", ErrForbidden)
	}

	if err := s.reg.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return User{}, s.surface(log, "deleteUser", err)
	}

	s.record(ctx, ActionUserDeleted, actor, map[string]any{
		"deleted_user": map[string]any{
			"id":    target.ID,
			"email": target.Email,
			"name":  target.Name,
			"role": map[string]any{
				"id":   target.RoleID,
				"name": nonEmpty(target.RoleName),
			},
			"created_at": target.CreatedAt.UTC().Format(time.RFC3339),
		},
	})
	log.Info().Str("deleted_user_id", target.ID).Msg("user deleted successfully")
	return target.Safe(), nil
}

// CreateRoleInput describes a role creation request. Permissions lists
// permission keys; unknown keys are ignored.
type CreateRoleInput struct {
	Name        string
	Type        RoleType
	Permissions []string
}

// CreateRole creates a role whose id is derived deterministically from its
// name.
func (s *Service) CreateRole(ctx context.Context, in CreateRoleInput) (Role, error) {
	log := s.scoped(ctx, "createRole")
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	if in.Type == "" {
		in.Type = RoleTypeCustom
	}
	if in.Type != RoleTypeStatic && in.Type != RoleTypeCustom {
		return Role{}, fmt.Errorf("%w: unsupported role type %s", ErrInvalidInput, in.Type)
	}
	actor, _ := ActorFromContext(ctx)
	roleID := ids.RoleID(in.Name)
	log.Info().Str("role_name", in.Name).Str("role_id", roleID).Msg("creating role")

	perms, err := s.reg.FindPermissionsByKeys(ctx, dedupeKeys(in.Permissions))
	if err != nil {
		return Role{}, s.surface(log, "createRole", err)
	}
	created, err := s.reg.CreateRole(ctx, Role{
		ID:          roleID,
		Name:        in.Name,
		Type:        in.Type,
		Permissions: perms,
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return Role{}, fmt.Errorf("%w: role %q already exists", ErrConflict, roleID)
		}
		return Role{}, s.surface(log, "createRole", err)
	}

	s.record(ctx, ActionRoleCreated, actor, map[string]any{
		"role": map[string]any{
			"id":   created.ID,
			"name": created.Name,
			"type": string(created.Type),
		},
		"permissions": permissionKeysAny(created.Permissions),
	})
	log.Info().Str("role_id", created.ID).Int("permissions", len(created.Permissions)).Msg("role created successfully")
	return created, nil
}

// FindRoles lists every role with its permission set.
func (s *Service) FindRoles(ctx context.Context) ([]Role, error) {
	log := s.scoped(ctx, "findRoles")
	roles, err := s.reg.ListRoles(ctx)
	if err != nil {
		return nil, s.surface(log, "findRoles", err)
	}
	return roles, nil
}

// UpdateRoleInput carries optional role changes; nil fields are untouched.
type UpdateRoleInput struct {
	Name        *string
	Permissions *[]string
}

// UpdateRole renames a role and/or replaces its permission set.
func (s *Service) UpdateRole(ctx context.Context, roleID string, in UpdateRoleInput) (Role, error) {
	log := s.scoped(ctx, "updateRole")
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return Role{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	actor, _ := ActorFromContext(ctx)
	log.Info().Str("role_id", roleID).Msg("updating role")

	current, err := s.reg.FindRoleByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Role{}, fmt.Errorf("%w: role not found", ErrNotFound)
		}
		return Role{}, s.surface(log, "updateRole", err)
	}

	var upd RoleUpdate
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if in.Permissions != nil {
		perms, err := s.reg.FindPermissionsByKeys(ctx, dedupeKeys(*in.Permissions))
		if err != nil {
			return Role{}, s.surface(log, "updateRole", err)
		}
		upd.Permissions = &perms
	}

	updated, err := s.reg.UpdateRole(ctx, roleID, upd)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Role{}, fmt.Errorf("%w: role not found", ErrNotFound)
		}
		return Role{}, s.surface(log, "updateRole", err)
	}

	changes := map[string]any{}
	if upd.Name != nil {
		changes["name"] = map[string]any{"from": current.Name, "to": updated.Name}
	}
	if upd.Permissions != nil {
		changes["permissions"] = map[string]any{
			"from": permissionKeysAny(current.Permissions),
			"to":   permissionKeysAny(updated.Permissions),
		}
	}
	s.record(ctx, ActionRoleUpdated, actor, map[string]any{
		"role": map[string]any{
			"id":   updated.ID,
			"name": updated.Name,
		},
		"changes": changes,
	})
	log.Info().Str("role_id", updated.ID).Bool("permissions_updated", upd.Permissions != nil).Msg("role updated successfully")
	return updated, nil
}

// DeleteRole removes a role. STATIC roles can never be deleted, and a role
// still referenced by users cannot be deleted.
func (s *Service) DeleteRole(ctx context.Context, roleID string) (Role, error) {
	log := s.scoped(ctx, "deleteRole")
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return Role{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	actor, _ := ActorFromContext(ctx)
	log.Info().Str("role_id", roleID).Msg("attempting to delete role")

	role, err := s.reg.FindRoleByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn().Str("role_id", roleID).Msg("role deletion failed: role not found")
			return Role{}, fmt.Errorf("%w: role not found", ErrNotFound)
		}
		return Role{}, s.surface(log, "deleteRole", err)
	}

	refs, err := s.reg.UsersReferencingRole(ctx, roleID)
	if err != nil {
		return Role{}, s.surface(log, "deleteRole", err)
	}
	if refs > 0 {
		log.Warn().Str("role_id", roleID).Int("user_count", refs).Msg("role deletion failed: role is assigned to users")
		return Role{}, fmt.Errorf("%w: cannot delete role: it is assigned to %d user(s)", ErrConflict, refs)
	}
	if role.Type == RoleTypeStatic {
		log.Warn().Str("role_id", roleID).Msg("role deletion failed: STATIC roles cannot be deleted")
		return Role{}, fmt.Errorf("%w: STATIC roles cannot be deleted", ErrForbidden)
	}

	// The store re-checks references inside the delete transaction; the
	// count above only shapes the error message.
	if err := s.reg.DeleteRole(ctx, roleID); err != nil {
		if errors.Is(err, ErrConflict) {
			return Role{}, fmt.Errorf("%w: cannot delete role: it is still referenced", ErrConflict)
		}
		if errors.Is(err, ErrNotFound) {
			return Role{}, fmt.Errorf("%w: role not found", ErrNotFound)
		}
		return Role{}, s.surface(log, "deleteRole", err)
	}

	s.record(ctx, ActionRoleDeleted, actor, map[string]any{
		"role": map[string]any{
			"id":   role.ID,
			"name": role.Name,
		},
	})
	log.Info().Str("role_id", role.ID).Msg("role deleted successfully")
	return role, nil
}

// CreatePermission registers a new permission key.
func (s *Service) CreatePermission(ctx context.Context, key, label string) (Permission, error) {
	log := s.scoped(ctx, "createPermission")
	key = strings.TrimSpace(key)
	label = strings.TrimSpace(label)
	if key == "" || !strings.Contains(key, ":") {
		return Permission{}, fmt.Errorf("%w: permission key must be namespaced resource:action", ErrInvalidInput)
	}
	if label == "" {
		return Permission{}, fmt.Errorf("%w: permission label is required", ErrInvalidInput)
	}
	actor, _ := ActorFromContext(ctx)
	log.Info().Str("key", key).Msg("creating permission")

	if _, err := s.reg.FindPermissionByKey(ctx, key); err == nil {
		log.Warn().Str("key", key).Msg("permission creation failed: key already exists")
		return Permission{}, fmt.Errorf("%w: permission with key %q already exists", ErrConflict, key)
	} else if !errors.Is(err, ErrNotFound) {
		return Permission{}, s.surface(log, "createPermission", err)
	}

	created, err := s.reg.CreatePermission(ctx, Permission{
		ID:    ids.New(),
		Key:   key,
		Label: label,
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return Permission{}, fmt.Errorf("%w: permission with key %q already exists", ErrConflict, key)
		}
		return Permission{}, s.surface(log, "createPermission", err)
	}

	s.record(ctx, ActionPermissionCreated, actor, map[string]any{
		"permission": map[string]any{
			"id":    created.ID,
			"key":   created.Key,
			"label": created.Label,
		},
	})
	log.Info().Str("permission_id", created.ID).Str("key", created.Key).Msg("permission created successfully")
	return created, nil
}

// FindPermissions lists the permission catalog.
func (s *Service) FindPermissions(ctx context.Context) ([]Permission, error) {
	log := s.scoped(ctx, "findPermissions")
	perms, err := s.reg.ListPermissions(ctx)
	if err != nil {
		return nil, s.surface(log, "findPermissions", err)
	}
	return perms, nil
}

// DeletePermission removes a permission that no role references.
func (s *Service) DeletePermission(ctx context.Context, permissionID string) (Permission, error) {
	log := s.scoped(ctx, "deletePermission")
	permissionID = strings.TrimSpace(permissionID)
	if permissionID == "" {
		return Permission{}, fmt.Errorf("%w: permission_id is required", ErrInvalidInput)
	}
	actor, _ := ActorFromContext(ctx)
	log.Info().Str("permission_id", permissionID).Msg("deleting permission")

	perm, err := s.reg.FindPermissionByID(ctx, permissionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn().Str("permission_id", permissionID).Msg("permission deletion failed: not found")
			return Permission{}, fmt.Errorf("%w: permission not found", ErrNotFound)
		}
		return Permission{}, s.surface(log, "deletePermission", err)
	}

	refs, err := s.reg.RolesReferencingPermission(ctx, permissionID)
	if err != nil {
		return Permission{}, s.surface(log, "deletePermission", err)
	}
	if len(refs) > 0 {
		log.Warn().Str("permission_id", permissionID).Int("role_count", len(refs)).Msg("permission deletion failed: in use by roles")
		return Permission{}, fmt.Errorf("%w: cannot delete permission: it is used by %d role(s)", ErrConflict, len(refs))
	}

	if err := s.reg.DeletePermission(ctx, permissionID); err != nil {
		if errors.Is(err, ErrConflict) {
			return Permission{}, fmt.Errorf("%w: cannot delete permission: it is still referenced", ErrConflict)
		}
		if errors.Is(err, ErrNotFound) {
			return Permission{}, fmt.Errorf("%w: permission not found", ErrNotFound)
		}
		return Permission{}, s.surface(log, "deletePermission", err)
	}

	s.record(ctx, ActionPermissionDeleted, actor, map[string]any{
		"permission": map[string]any{
			"id":    perm.ID,
			"key":   perm.Key,
			"label": perm.Label,
		},
	})
	log.Info().Str("permission_id", perm.ID).Str("key", perm.Key).Msg("permission deleted successfully")
	return perm, nil
}

// scoped derives a method-scoped logger carrying whatever actor identity is
// present; absent fields are never bound.
func (s *Service) scoped(ctx context.Context, method string) zerolog.Logger {
	logCtx := s.log.With().Str("method", method)
	if actor, ok := ActorFromContext(ctx); ok {
		if actor.UserID != "" {
			logCtx = logCtx.Str("actor_id", actor.UserID)
		}
		if actor.RoleID != "" {
			logCtx = logCtx.Str("actor_role", actor.RoleID)
		}
	}
	return logCtx.Logger()
}

// record emits one audit entry. Best-effort: never blocks, never errors.
func (s *Service) record(ctx context.Context, action string, actor Actor, details map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, action, audit.Actor{
		ID:    actor.UserID,
		Email: actor.Email,
		Role:  actor.RoleID,
	}, details)
}

// surface passes taxonomy errors through unchanged and maps anything else
// to ErrUnexpected after logging full diagnostic context. Internal error
// detail never reaches the caller.
func (s *Service) surface(log zerolog.Logger, op string, err error) error {
	if err == nil {
		return nil
	}
	if isTaxonomy(err) {
		return err
	}
	log.Error().Err(err).Str("op", op).Msg("operation failed")
	return fmt.Errorf("%w: failed to %s", ErrUnexpected, op)
}

// nonEmpty maps "" to nil so pruning drops the field instead of writing an
// empty placeholder.
func nonEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func permissionKeysAny(perms []Permission) []any {
	keys := make([]any, 0, len(perms))
	for _, p := range perms {
		keys = append(keys, p.Key)
	}
	return keys
}

func dedupeKeys(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
