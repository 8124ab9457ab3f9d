package rbac

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mindlab/health/internal/platform/auth"
)

// cacheSize bounds the per-role cache; there are only a handful of roles.
const cacheSize = 16

type grantSet struct {
	names   map[string]struct{}
	modules map[string]struct{}
	sorted  []string
}

func newGrantSet(perms []*Permission) *grantSet {
	g := &grantSet{
		names:   make(map[string]struct{}, len(perms)),
		modules: make(map[string]struct{}),
	}
	for _, p := range perms {
		if _, dup := g.names[p.Name]; dup {
			continue
		}
		g.names[p.Name] = struct{}{}
		g.modules[p.Module] = struct{}{}
		g.sorted = append(g.sorted, p.Name)
	}
	sort.Strings(g.sorted)
	return g
}

// Resolver answers permission questions from the role_permissions table.
// Admin holds every permission regardless of catalog contents. Grant sets
// are cached per role for the configured TTL.
type Resolver struct {
	repo  Repository
	cache *expirable.LRU[auth.Role, *grantSet]
}

// NewResolver returns a Resolver. A ttl of zero disables caching.
func NewResolver(repo Repository, ttl time.Duration) *Resolver {
	r := &Resolver{repo: repo}
	if ttl > 0 {
		r.cache = expirable.NewLRU[auth.Role, *grantSet](cacheSize, nil, ttl)
	}
	return r
}

func (r *Resolver) grants(ctx context.Context, role auth.Role) (*grantSet, error) {
	if r.cache != nil {
		if g, ok := r.cache.Get(role); ok {
			return g, nil
		}
	}
	perms, err := r.repo.PermissionsForRole(ctx, role.String())
	if err != nil {
		return nil, fmt.Errorf("load grants for %s: %w", role, err)
	}
	g := newGrantSet(perms)
	if r.cache != nil {
		r.cache.Add(role, g)
	}
	return g, nil
}

// Invalidate drops every cached grant set.
func (r *Resolver) Invalidate() {
	if r.cache != nil {
		r.cache.Purge()
	}
}

// HasPermission reports whether p holds permission. A nil principal holds
// nothing.
func (r *Resolver) HasPermission(ctx context.Context, p *auth.Principal, permission string) (bool, error) {
	if p == nil {
		return false, nil
	}
	if p.Role.IsAdmin() {
		return true, nil
	}
	g, err := r.grants(ctx, p.Role)
	if err != nil {
		return false, err
	}
	_, ok := g.names[permission]
	return ok, nil
}

// CanAccessModule reports whether any permission granted to p is tagged with
// module.
func (r *Resolver) CanAccessModule(ctx context.Context, p *auth.Principal, module string) (bool, error) {
	if p == nil {
		return false, nil
	}
	if p.Role.IsAdmin() {
		return true, nil
	}
	g, err := r.grants(ctx, p.Role)
	if err != nil {
		return false, err
	}
	_, ok := g.modules[module]
	return ok, nil
}

// ListPermissions returns the sorted permission names held by p. Admin
// receives every name in the catalog.
func (r *Resolver) ListPermissions(ctx context.Context, p *auth.Principal) ([]string, error) {
	if p == nil {
		return nil, nil
	}
	if p.Role.IsAdmin() {
		perms, err := r.repo.ListPermissions(ctx)
		if err != nil {
			return nil, err
		}
		return newGrantSet(perms).sorted, nil
	}
	g, err := r.grants(ctx, p.Role)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), g.sorted...), nil
}

// ModuleAccess evaluates CanAccessModule for every entry of Modules.
func (r *Resolver) ModuleAccess(ctx context.Context, p *auth.Principal) (map[string]bool, error) {
	out := make(map[string]bool, len(Modules))
	for _, m := range Modules {
		ok, err := r.CanAccessModule(ctx, p, m)
		if err != nil {
			return nil, err
		}
		out[m] = ok
	}
	return out, nil
}
