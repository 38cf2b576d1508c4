// Package identity turns actor ids into Actors carrying a dashboard role.
// Authentication happens upstream; this package only looks the caller up.
package identity

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/models"

	"github.com/redis/go-redis/v9"
)

type Resolver interface {
	Resolve(ctx context.Context, actorID string) (models.Actor, error)
}

// rolePrecedence orders roles from most to least privileged.
var rolePrecedence = []models.Role{models.RoleAdmin, models.RoleManager, models.RoleReviewer, models.RoleViewer}

// HighestRole picks the most privileged dashboard role among names. Unknown
// names are ignored; with no match the empty role is returned, which the
// gate grants nothing.
func HighestRole(names []string) models.Role {
	have := make(map[models.Role]bool, len(names))
	for _, n := range names {
		have[models.Role(strings.ToLower(strings.TrimSpace(n)))] = true
	}
	for _, r := range rolePrecedence {
		if have[r] {
			return r
		}
	}
	return ""
}

// StaticResolver serves actors from a fixed id → role table.
type StaticResolver struct {
	actors map[string]models.Actor
}

func NewStaticResolver(roles map[string]string) *StaticResolver {
	actors := make(map[string]models.Actor, len(roles))
	for id, role := range roles {
		actors[id] = models.Actor{ID: id, Name: id, Role: HighestRole([]string{role})}
	}
	return &StaticResolver{actors: actors}
}

// Resolve only knows the configured ids. The internal system actor is never
// resolvable from a caller-supplied id.
func (s *StaticResolver) Resolve(_ context.Context, actorID string) (models.Actor, error) {
	a, ok := s.actors[actorID]
	if !ok {
		return models.Actor{}, errors.NewForbiddenError()
	}
	return a, nil
}

func cacheKey(actorID string) string {
	return "identity:actor:" + actorID
}

// CachedResolver keeps resolved actors in Redis for ttl. Cache errors fall
// through to the inner resolver.
type CachedResolver struct {
	inner Resolver
	cache redis.Cmdable
	ttl   time.Duration
}

func NewCachedResolver(inner Resolver, cache redis.Cmdable, ttl time.Duration) *CachedResolver {
	return &CachedResolver{inner: inner, cache: cache, ttl: ttl}
}

func (c *CachedResolver) Resolve(ctx context.Context, actorID string) (models.Actor, error) {
	if raw, err := c.cache.Get(ctx, cacheKey(actorID)).Bytes(); err == nil {
		var a models.Actor
		if json.Unmarshal(raw, &a) == nil {
			return a, nil
		}
	}
	a, err := c.inner.Resolve(ctx, actorID)
	if err != nil {
		return models.Actor{}, err
	}
	if raw, err := json.Marshal(a); err == nil {
		c.cache.Set(ctx, cacheKey(actorID), raw, c.ttl)
	}
	return a, nil
}
