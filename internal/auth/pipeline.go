package auth

import (
	"context"
	"fmt"
)

// Operation statically describes a protected operation: its name, the role
// allow-list and the permission keys it requires. Empty lists mean "no
// restriction of that kind". Descriptors are plain data inspected by the
// pipeline before dispatch.
type Operation struct {
	Name        string
	Roles       []string
	Permissions []string

	// AllowAnonymous permits running the operation without an actor in
	// context (registration, login). Role and permission checks still apply
	// to whatever identity is present.
	AllowAnonymous bool
}

// Stage is one guard in the authorization pipeline. A stage either passes or
// terminates the pipeline with a taxonomy error.
type Stage func(ctx context.Context, op Operation) error

// Pipeline runs stages in declaration order; the first failure wins and no
// later stage executes.
type Pipeline struct {
	stages []Stage
}

// NewPipeline composes stages into an explicit ordered chain.
func NewPipeline(stages ...Stage) Pipeline {
	return Pipeline{stages: stages}
}

// Run executes every stage against the operation descriptor.
func (p Pipeline) Run(ctx context.Context, op Operation) error {
	for _, stage := range p.stages {
		if err := stage(ctx, op); err != nil {
			return err
		}
	}
	return nil
}

// ActorStage requires an authenticated actor in context unless the
// operation allows anonymous access.
func ActorStage() Stage {
	return func(ctx context.Context, op Operation) error {
		if op.AllowAnonymous {
			return nil
		}
		if _, ok := ActorFromContext(ctx); !ok {
			return fmt.Errorf("%w: authentication required", ErrUnauthenticated)
		}
		return nil
	}
}

// RoleStage enforces the operation's role allow-list. Comparison is
// exact-match against opaque role ids; no hierarchy is inferred.
func RoleStage() Stage {
	return func(ctx context.Context, op Operation) error {
		if len(op.Roles) == 0 {
			return nil
		}
		actor, _ := ActorFromContext(ctx)
		for _, role := range op.Roles {
			if actor.RoleID == role {
				return nil
			}
		}
		return fmt.Errorf("%w: role is not permitted to perform this operation", ErrForbidden)
	}
}

// PermissionStage enforces the operation's required permission keys. The
// actor's role is resolved fresh on every request so grants and revocations
// take effect immediately; nothing is cached across requests. All declared
// keys must be present: missing even one fails the check. When the
// operation declares no keys the stage passes without touching the store.
func PermissionStage(resolver RoleResolver) Stage {
	return func(ctx context.Context, op Operation) error {
		if len(op.Permissions) == 0 {
			return nil
		}
		actor, ok := ActorFromContext(ctx)
		if !ok {
			return fmt.Errorf("%w: no authenticated actor", ErrForbidden)
		}
		role, err := resolver.FindRoleByID(ctx, actor.RoleID)
		if err != nil {
			if isTaxonomy(err) {
				// Role lookup runs before the key comparison so "no such
				// role" stays distinguishable from "under-privileged role"
				// in diagnostics; both surface as Forbidden.
				return fmt.Errorf("%w: role grants no permissions", ErrForbidden)
			}
			return fmt.Errorf("%w: permission resolution failed", ErrUnexpected)
		}
		if len(role.Permissions) == 0 {
			return fmt.Errorf("%w: role grants no permissions", ErrForbidden)
		}
		granted := make(map[string]struct{}, len(role.Permissions))
		for _, p := range role.Permissions {
			granted[p.Key] = struct{}{}
		}
		for _, required := range op.Permissions {
			if _, ok := granted[required]; !ok {
				return fmt.Errorf("%w: insufficient permissions", ErrForbidden)
			}
		}
		return nil
	}
}
