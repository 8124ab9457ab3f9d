package rbac

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
	"github.com/mindlab/health/internal/platform/db"
)

type Service struct {
	repo     Repository
	resolver *Resolver
	pool     *pgxpool.Pool
	logger   zerolog.Logger
}

// NewService wires the catalog store and resolver. pool may be nil, in which
// case Seed runs without a transaction.
func NewService(repo Repository, resolver *Resolver, pool *pgxpool.Pool, logger zerolog.Logger) *Service {
	return &Service{repo: repo, resolver: resolver, pool: pool, logger: logger}
}

func (s *Service) Resolver() *Resolver { return s.resolver }

func (s *Service) ListPermissions(ctx context.Context) ([]*Permission, error) {
	return s.repo.ListPermissions(ctx)
}

func (s *Service) RolePermissions(ctx context.Context, roleName string) (*RolePermissions, error) {
	role, err := auth.ParseRole(roleName)
	if err != nil {
		return nil, apperr.Validation("invalid role: %s", roleName)
	}
	perms, err := s.repo.PermissionsForRole(ctx, role.String())
	if err != nil {
		return nil, err
	}
	if perms == nil {
		perms = []*Permission{}
	}
	return &RolePermissions{Role: role.String(), Permissions: perms}, nil
}

func (s *Service) Check(ctx context.Context, p *auth.Principal, permission string) (*CheckResponse, error) {
	if permission == "" {
		return nil, apperr.Validation("permission is required")
	}
	ok, err := s.resolver.HasPermission(ctx, p, permission)
	if err != nil {
		return nil, err
	}
	return &CheckResponse{Permission: permission, HasPermission: ok, Role: p.Role.String()}, nil
}

// Seed upserts Catalog and the default grants, then drops cached grant sets.
// Existing grants are never revoked.
func (s *Service) Seed(ctx context.Context) (*SeedResult, error) {
	res := &SeedResult{}
	run := func(ctx context.Context) error {
		for _, d := range Catalog {
			if err := s.repo.UpsertPermission(ctx, d); err != nil {
				return fmt.Errorf("upsert permission %s: %w", d.Name, err)
			}
			res.Permissions++
		}

		grants := DefaultGrants()
		roles := make([]string, 0, len(grants))
		for r := range grants {
			roles = append(roles, r.String())
		}
		sort.Strings(roles)
		for _, r := range roles {
			for _, name := range grants[auth.Role(r)] {
				added, err := s.repo.Grant(ctx, r, name)
				if err != nil {
					return fmt.Errorf("grant %s to %s: %w", name, r, err)
				}
				if added {
					res.Grants++
				}
			}
		}
		return nil
	}

	var err error
	if s.pool != nil {
		err = db.InTx(ctx, s.pool, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return nil, err
	}

	s.resolver.Invalidate()
	s.logger.Info().
		Int("permissions", res.Permissions).
		Int("new_grants", res.Grants).
		Msg("rbac catalog seeded")
	return res, nil
}
