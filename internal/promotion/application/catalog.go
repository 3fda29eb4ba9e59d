package application

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/promolab/internal/promotion/domain"
	sharedCache "github.com/davicafu/promolab/internal/shared/infra/platform/cache"
)

// PromotionCatalog carga las promociones candidatas con caché cache-aside.
// El orden de los candidatos es (startDate, promoId): gana la promoción más antigua.
type PromotionCatalog struct {
	repo     domain.PromotionRepository
	cache    sharedCache.Cache
	cacheTTL int
	log      *zap.Logger
}

func NewPromotionCatalog(repo domain.PromotionRepository, cache sharedCache.Cache, cacheTTL time.Duration, log *zap.Logger) *PromotionCatalog {
	return &PromotionCatalog{
		repo:     repo,
		cache:    cache,
		cacheTTL: int(cacheTTL.Seconds()),
		log:      log,
	}
}

// Candidates devuelve las promociones no INACTIVE cuya ventana contiene at.
func (c *PromotionCatalog) Candidates(ctx context.Context, at time.Time) ([]domain.Promotion, error) {
	all, err := c.loadCandidates(ctx)
	if err != nil {
		return nil, err
	}

	var out []domain.Promotion
	for _, p := range all {
		if p.IsCandidate(at) {
			out = append(out, p)
		}
	}
	sortCandidates(out)
	return out, nil
}

func (c *PromotionCatalog) loadCandidates(ctx context.Context) ([]domain.Promotion, error) {
	if c.cache != nil && c.cacheTTL > 0 {
		var cached []domain.Promotion
		hit, err := c.cache.Get(ctx, domain.CandidatesCacheKey, &cached)
		if err != nil {
			c.log.Warn("Cache read failed, falling back to repository", zap.Error(err))
		} else if hit {
			return cached, nil
		}
	}

	promos, err := c.repo.ListCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load candidate promotions: %w", err)
	}

	if c.cacheTTL > 0 {
		sharedCache.AsyncCacheSet(c.cache, domain.CandidatesCacheKey, promos, c.cacheTTL, c.log)
	}
	return promos, nil
}

func (c *PromotionCatalog) List(ctx context.Context) ([]domain.Promotion, error) {
	return c.repo.List(ctx)
}

func (c *PromotionCatalog) Get(ctx context.Context, id string) (*domain.Promotion, error) {
	return c.repo.GetByID(ctx, id)
}

// Upsert valida, guarda e invalida la caché de candidatos.
func (c *PromotionCatalog) Upsert(ctx context.Context, p domain.Promotion) error {
	p.StartDate = p.StartDate.UTC()
	p.ExpiryDate = p.ExpiryDate.UTC()
	if err := p.Validate(); err != nil {
		return err
	}
	if err := c.repo.Upsert(ctx, p); err != nil {
		return err
	}
	sharedCache.InvalidateKey(ctx, c.cache, domain.CandidatesCacheKey, c.log)
	return nil
}

func sortCandidates(promos []domain.Promotion) {
	sort.SliceStable(promos, func(i, j int) bool {
		if !promos[i].StartDate.Equal(promos[j].StartDate) {
			return promos[i].StartDate.Before(promos[j].StartDate)
		}
		return promos[i].ID < promos[j].ID
	})
}
