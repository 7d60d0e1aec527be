package auth

import (
	"context"
	"errors"
	"testing"
)

type countingResolver struct {
	role  Role
	err   error
	calls int
}

func (r *countingResolver) FindRoleByID(_ context.Context, _ string) (Role, error) {
	r.calls++
	if r.err != nil {
		return Role{}, r.err
	}
	return r.role, nil
}

func actorCtx(roleID string) context.Context {
	return ContextWithActor(context.Background(), Actor{
		UserID: "u1", Email: "u1@campus.edu", RoleID: roleID,
	})
}

func TestActorStage(t *testing.T) {
	stage := ActorStage()

	if err := stage(context.Background(), Operation{Name: "login", AllowAnonymous: true}); err != nil {
		t.Fatalf("anonymous operation should pass: %v", err)
	}
	if err := stage(context.Background(), Operation{Name: "users.list"}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if err := stage(actorCtx(RoleAdmin), Operation{Name: "users.list"}); err != nil {
		t.Fatalf("authenticated actor should pass: %v", err)
	}
}

func TestRoleStageExactMatch(t *testing.T) {
	stage := RoleStage()
	op := Operation{Name: "users.list", Roles: []string{RoleAdmin, RoleSuperAdmin}}

	if err := stage(actorCtx(RoleAdmin), op); err != nil {
		t.Fatalf("listed role should pass: %v", err)
	}
	if err := stage(actorCtx(RoleStudent), op); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	// No hierarchy: super-admin is denied when not on the list.
	if err := stage(actorCtx(RoleSuperAdmin), Operation{Roles: []string{RoleAdmin}}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for unlisted super-admin, got %v", err)
	}
	if err := stage(actorCtx(RoleStudent), Operation{Name: "open"}); err != nil {
		t.Fatalf("empty allow-list should pass: %v", err)
	}
}

func TestPermissionStageSkipsLookupWithoutKeys(t *testing.T) {
	resolver := &countingResolver{}
	stage := PermissionStage(resolver)

	if err := stage(actorCtx(RoleAdmin), Operation{Name: "open"}); err != nil {
		t.Fatalf("operation without keys should pass: %v", err)
	}
	if resolver.calls != 0 {
		t.Fatalf("expected no role lookup, got %d", resolver.calls)
	}
}

func TestPermissionStageResolvesFreshEachRun(t *testing.T) {
	resolver := &countingResolver{role: Role{
		ID: RoleAdmin,
		Permissions: []Permission{
			{ID: "p1", Key: PermUsersRead},
		},
	}}
	stage := PermissionStage(resolver)
	op := Operation{Name: "users.list", Permissions: []string{PermUsersRead}}

	for i := 0; i < 3; i++ {
		if err := stage(actorCtx(RoleAdmin), op); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if resolver.calls != 3 {
		t.Fatalf("expected one lookup per run, got %d", resolver.calls)
	}
}

func TestPermissionStageRequiresAllKeys(t *testing.T) {
	resolver := &countingResolver{role: Role{
		ID: RoleAdmin,
		Permissions: []Permission{
			{ID: "p1", Key: PermUsersRead},
			{ID: "p2", Key: PermRolesRead},
		},
	}}
	stage := PermissionStage(resolver)

	if err := stage(actorCtx(RoleAdmin), Operation{
		Permissions: []string{PermUsersRead, PermRolesRead},
	}); err != nil {
		t.Fatalf("all keys granted should pass: %v", err)
	}
	if err := stage(actorCtx(RoleAdmin), Operation{
		Permissions: []string{PermUsersRead, PermUsersDelete},
	}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("one missing key must fail: %v", err)
	}
}

func TestPermissionStageEmptyGrantSet(t *testing.T) {
	resolver := &countingResolver{role: Role{ID: RoleGuest}}
	stage := PermissionStage(resolver)

	err := stage(actorCtx(RoleGuest), Operation{Permissions: []string{PermUsersRead}})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestPermissionStageUnknownRole(t *testing.T) {
	resolver := &countingResolver{err: ErrNotFound}
	stage := PermissionStage(resolver)

	err := stage(actorCtx("role-ghost"), Operation{Permissions: []string{PermUsersRead}})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestPermissionStageStoreFailure(t *testing.T) {
	resolver := &countingResolver{err: errors.New("connection reset")}
	stage := PermissionStage(resolver)

	err := stage(actorCtx(RoleAdmin), Operation{Permissions: []string{PermUsersRead}})
	if !errors.Is(err, ErrUnexpected) {
		t.Fatalf("expected ErrUnexpected, got %v", err)
	}
}

func TestPipelineFirstFailureWins(t *testing.T) {
	resolver := &countingResolver{}
	p := NewPipeline(ActorStage(), RoleStage(), PermissionStage(resolver))
	op := Operation{
		Name:        "users.list",
		Roles:       []string{RoleAdmin},
		Permissions: []string{PermUsersRead},
	}

	// Role denial stops the pipeline before any permission lookup.
	if err := p.Run(actorCtx(RoleStudent), op); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if resolver.calls != 0 {
		t.Fatalf("permission stage must not run after role denial, got %d lookups", resolver.calls)
	}

	if err := p.Run(context.Background(), op); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}
