package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/schooltrack/alert-engine/internal/core/domain"
	"github.com/schooltrack/alert-engine/internal/core/ports"
)

// ScopeResolver maps a viewer identity to the devices it may observe.
type ScopeResolver interface {
	Resolve(ctx context.Context, claims domain.Claims) (domain.DeviceSet, error)
}

// branchScope: the devices of the single branch named by the credential.
type branchScope struct{ dir ports.DirectoryRepository }

func (s branchScope) Resolve(ctx context.Context, c domain.Claims) (domain.DeviceSet, error) {
	if c.ID == "" {
		return nil, errors.New("branch credential without id")
	}
	ids, err := s.dir.DevicesByBranches(ctx, []string{c.ID})
	if err != nil {
		return nil, err
	}
	return domain.NewDeviceSet(ids...), nil
}

// branchListScope: the union of devices over the branches in the credential.
// Schools carry all their branches; branch-group users carry their assigned
// subset.
type branchListScope struct{ dir ports.DirectoryRepository }

func (s branchListScope) Resolve(ctx context.Context, c domain.Claims) (domain.DeviceSet, error) {
	if len(c.Branches) == 0 {
		return domain.NewDeviceSet(), nil
	}
	ids, err := s.dir.DevicesByBranches(ctx, c.Branches)
	if err != nil {
		return nil, err
	}
	return domain.NewDeviceSet(ids...), nil
}

// parentScope: the devices assigned to the parent's children.
type parentScope struct{ dir ports.DirectoryRepository }

func (s parentScope) Resolve(ctx context.Context, c domain.Claims) (domain.DeviceSet, error) {
	if c.ParentID == "" {
		return domain.NewDeviceSet(), nil
	}
	ids, err := s.dir.DevicesByParent(ctx, c.ParentID)
	if err != nil {
		return nil, err
	}
	return domain.NewDeviceSet(ids...), nil
}

// RoleScopeResolver dispatches to the resolver registered for a role.
type RoleScopeResolver struct {
	byRole map[domain.Role]ScopeResolver
}

// NewRoleScopeResolver wires one resolver per supported role.
func NewRoleScopeResolver(dir ports.DirectoryRepository) *RoleScopeResolver {
	return &RoleScopeResolver{byRole: map[domain.Role]ScopeResolver{
		domain.RoleBranch:          branchScope{dir: dir},
		domain.RoleSchool:          branchListScope{dir: dir},
		domain.RoleBranchGroupUser: branchListScope{dir: dir},
		domain.RoleParent:          parentScope{dir: dir},
	}}
}

// Resolve returns the canonical device set for claims. Every failure wraps
// domain.ErrAuthResolution.
func (r *RoleScopeResolver) Resolve(ctx context.Context, claims domain.Claims) (domain.DeviceSet, error) {
	v, ok := r.byRole[claims.Role]
	if !ok {
		return nil, fmt.Errorf("%w: %w %q", domain.ErrAuthResolution, domain.ErrUnknownRole, claims.Role)
	}
	set, err := v.Resolve(ctx, claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrAuthResolution, claims.Role, err)
	}
	return set, nil
}
