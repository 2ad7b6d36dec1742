package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"taptapgo/internal/domain"
	"taptapgo/internal/logger"
	"taptapgo/internal/redis"
	"taptapgo/internal/repository"
)

// PricingService manages the tariff table and resolves the tariff that
// applies to a new ride.
type PricingService struct {
	tariffs repository.TariffRepository
	cache   redis.TariffCacheInterface
}

// NewPricingService creates a new PricingService. cache may be nil.
func NewPricingService(tariffs repository.TariffRepository, cache redis.TariffCacheInterface) *PricingService {
	return &PricingService{tariffs: tariffs, cache: cache}
}

// GetTariff returns the tariff stored for a scope, or the built-in defaults
// with version 0 when nothing is stored.
func (s *PricingService) GetTariff(ctx context.Context, actor domain.Actor, scope domain.TariffScope, scopeID string) (*domain.Tariff, error) {
	scopeID, err := s.authorize(actor, scope, scopeID)
	if err != nil {
		return nil, err
	}

	t, err := s.lookup(ctx, scope, scopeID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		d := domain.DefaultTariff()
		d.Scope, d.ScopeID = scope, scopeID
		return &d, nil
	}
	return t, nil
}

// UpdateTariff validates and stores a tariff, bumping its version.
func (s *PricingService) UpdateTariff(ctx context.Context, actor domain.Actor, scope domain.TariffScope, scopeID string, t domain.Tariff) (*domain.Tariff, error) {
	scopeID, err := s.authorize(actor, scope, scopeID)
	if err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, invalidInput("%v", err)
	}

	t.Scope, t.ScopeID = scope, scopeID
	if err := s.tariffs.Upsert(ctx, &t); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.InvalidateTariff(ctx, scope, scopeID); err != nil {
			logger.WithContext(ctx).Warn("failed to invalidate tariff cache", zap.Error(err))
		}
	}

	logger.WithContext(ctx).Info("tariff updated",
		zap.String("scope", string(scope)),
		zap.String("scope_id", scopeID),
		zap.Int("version", t.Version),
	)
	return &t, nil
}

// Resolve picks the tariff for a ride in the given brand scope and city:
// the brand's own tariff, then the platform tariff for brands or for the
// direct fleet, then the city tariff, then the built-in defaults.
func (s *PricingService) Resolve(ctx context.Context, adminID, city string) (domain.Tariff, error) {
	type candidate struct {
		scope domain.TariffScope
		id    string
	}

	var candidates []candidate
	if adminID != "" {
		candidates = append(candidates,
			candidate{domain.TariffScopeBrand, adminID},
			candidate{domain.TariffScopeAdmin, ""},
		)
	} else {
		candidates = append(candidates, candidate{domain.TariffScopeDirect, ""})
	}
	if city != "" {
		candidates = append(candidates, candidate{domain.TariffScopeCity, city})
	}

	for _, c := range candidates {
		t, err := s.lookup(ctx, c.scope, c.id)
		if err != nil {
			return domain.Tariff{}, err
		}
		if t != nil {
			return *t, nil
		}
	}

	d := domain.DefaultTariff()
	d.Scope, d.ScopeID = domain.TariffScopeCity, city
	return d, nil
}

// lookup reads through the cache. A missing tariff returns nil, nil.
func (s *PricingService) lookup(ctx context.Context, scope domain.TariffScope, scopeID string) (*domain.Tariff, error) {
	if s.cache != nil {
		cached, err := s.cache.GetTariff(ctx, scope, scopeID)
		if err != nil {
			logger.WithContext(ctx).Warn("tariff cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	t, err := s.tariffs.Get(ctx, scope, scopeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetTariff(ctx, t); err != nil {
			logger.WithContext(ctx).Warn("tariff cache write failed", zap.Error(err))
		}
	}
	return t, nil
}

// authorize checks the scope and returns the normalized scope id. Only a
// superadmin manages platform and city tariffs; an admin manages its own
// brand tariff.
func (s *PricingService) authorize(actor domain.Actor, scope domain.TariffScope, scopeID string) (string, error) {
	if !scope.Valid() {
		return "", invalidInput("unknown pricing scope %q", scope)
	}
	if !scope.Keyed() {
		scopeID = ""
	} else if scopeID == "" {
		return "", invalidInput("scope %s requires an id", scope)
	}

	switch actor.Role {
	case domain.RoleSuperAdmin:
		return scopeID, nil
	case domain.RoleAdmin:
		if scope == domain.TariffScopeBrand && actor.ManagesScope(scopeID) {
			return scopeID, nil
		}
	}
	return "", forbidden("%s may not manage %s pricing", actor.Role, scope)
}
