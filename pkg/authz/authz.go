// Package authz resolves a user's capability set. Permissions hang off
// roles, so the set only changes when a role is edited or the user is
// moved to another role; a short Redis cache absorbs the per-request
// lookups without much staleness risk.
package authz

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prototrack/prototrack/pkg/model"
	"github.com/prototrack/prototrack/pkg/store/postgres"
	redisstore "github.com/prototrack/prototrack/pkg/store/redis"
)

type Service struct {
	users  *postgres.UserRepository
	roles  *postgres.RoleRepository
	cache  *redisstore.PermissionCache
	logger *zap.Logger
}

func NewService(users *postgres.UserRepository, roles *postgres.RoleRepository, cache *redisstore.PermissionCache, logger *zap.Logger) *Service {
	return &Service{users: users, roles: roles, cache: cache, logger: logger}
}

// Permissions returns the capability names for the user, preferring
// the cache. On a miss the set comes from the preloaded role if the
// caller has it, otherwise from the database.
func (s *Service) Permissions(ctx context.Context, user *model.User) []string {
	if user == nil {
		return nil
	}

	if s.cache != nil {
		if names, ok := s.cache.Get(ctx, user.ID.String()); ok {
			return names
		}
	}

	names := permissionNames(user)
	if names == nil {
		loaded, err := s.users.GetByID(ctx, user.ID)
		if err != nil {
			s.logger.Warn("failed to load user permissions", zap.Error(err), zap.String("user_id", user.ID.String()))
			return nil
		}
		names = permissionNames(loaded)
		if names == nil {
			names = []string{}
		}
	}

	if s.cache != nil {
		s.cache.Set(ctx, user.ID.String(), names)
	}
	return names
}

func (s *Service) HasPermission(ctx context.Context, user *model.User, name string) bool {
	for _, have := range s.Permissions(ctx, user) {
		if have == name {
			return true
		}
	}
	return false
}

func (s *Service) HasAnyPermission(ctx context.Context, user *model.User, names ...string) bool {
	have := s.Permissions(ctx, user)
	for _, want := range names {
		for _, got := range have {
			if got == want {
				return true
			}
		}
	}
	return false
}

// InvalidateUser drops one user's cached set, after a role change or
// the user's removal.
func (s *Service) InvalidateUser(ctx context.Context, userID uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, userID.String())
	}
}

// InvalidateRole drops the cached sets of everyone holding the role;
// called after the role's permission list is edited.
func (s *Service) InvalidateRole(ctx context.Context, roleID uuid.UUID) {
	if s.cache == nil {
		return
	}
	memberIDs, err := s.roles.MemberIDs(ctx, roleID)
	if err != nil {
		s.logger.Warn("failed to list role members for cache invalidation", zap.Error(err), zap.String("role_id", roleID.String()))
		return
	}
	ids := make([]string, len(memberIDs))
	for i, id := range memberIDs {
		ids[i] = id.String()
	}
	s.cache.Invalidate(ctx, ids...)
}

func permissionNames(user *model.User) []string {
	if user.Role == nil || user.Role.Permissions == nil {
		return nil
	}
	names := make([]string, len(user.Role.Permissions))
	for i, p := range user.Role.Permissions {
		names[i] = p.Name
	}
	return names
}
