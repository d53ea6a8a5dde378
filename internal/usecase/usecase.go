package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"strings"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/shortid"
)

const (
	cacheKeyPrefix     = "short:"
	recentLinksPeriod  = 24 * time.Hour
	healthCheckTimeout = 2 * time.Second
)

type linkRepository interface {
	Save(ctx context.Context, link *entity.ShortLink) (*entity.ShortLink, error)
	FindByShortID(ctx context.Context, shortID string) (*entity.ShortLink, error)
	RecordClick(ctx context.Context, click entity.Click) error
	CountAll(ctx context.Context) (int64, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
	SumClicks(ctx context.Context) (int64, error)
	TopByClicks(ctx context.Context, n int) ([]*entity.ShortLink, error)
	DeleteExpired(ctx context.Context, now time.Time) ([]string, error)
	Ping(ctx context.Context) error
}

type lookupCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Ping(ctx context.Context) error
	Stats() entity.CacheStats
}

type clickTracker interface {
	Track(click entity.Click)
}

type idGenerator interface {
	NewID() (string, error)
}

// Config holds the tunables of the link workflows.
type Config struct {
	BaseURL        string
	CacheTTL       time.Duration
	GracePeriod    time.Duration
	ExtendOnAccess bool
	MaxAttempts    int
	TopN           int
}

type LinkUseCase struct {
	cfg     Config
	repo    linkRepository
	cache   lookupCache
	tracker clickTracker
	ids     idGenerator
	logger  *slog.Logger

	startedAt time.Time
	now       func() time.Time
}

func NewLinkUseCase(
	cfg Config,
	repo linkRepository,
	cache lookupCache,
	tracker clickTracker,
	ids idGenerator,
	logger *slog.Logger,
) *LinkUseCase {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 10
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &LinkUseCase{
		cfg:       cfg,
		repo:      repo,
		cache:     cache,
		tracker:   tracker,
		ids:       ids,
		logger:    logger,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

func cacheKey(shortID string) string {
	return cacheKeyPrefix + shortID
}

// ShortURL returns the public short URL for shortID.
func (uc *LinkUseCase) ShortURL(shortID string) string {
	return uc.cfg.BaseURL + "/" + shortID
}

// ShortenURL stores originalURL under a fresh short id. Collisions are retried with a new id
// until the attempt budget runs out. Shortening the same URL twice yields two links.
func (uc *LinkUseCase) ShortenURL(ctx context.Context, originalURL string) (*entity.ShortLink, error) {
	const op = "usecase.LinkUseCase.ShortenURL"

	if !entity.IsValidURL(originalURL) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrInvalidURL)
	}

	for i := 0; i < uc.cfg.MaxAttempts; i++ {
		shortID, err := uc.ids.NewID()
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short id: %w", op, err)
		}

		link, err := uc.repo.Save(ctx, &entity.ShortLink{
			ShortID:     shortID,
			OriginalURL: originalURL,
			ExpiresAt:   uc.now().Add(uc.cfg.GracePeriod),
		})
		if err != nil {
			if errors.Is(err, entity.ErrShortIDExists) {
				uc.logger.Debug("short id collision, retrying",
					slog.String("op", op),
					slog.String("short_id", shortID),
					slog.Int("attempt", i+1),
				)
				continue
			}

			return nil, fmt.Errorf("%s: failed to save link: %w", op, err)
		}

		uc.cacheLink(ctx, link.ShortID, link.OriginalURL)

		return link, nil
	}

	return nil, fmt.Errorf("%s: %d attempts: %w", op, uc.cfg.MaxAttempts, entity.ErrIdentifierSpaceExhausted)
}

// ResolveShortID returns the URL the short id redirects to and records the click.
// On a cache hit the click is handed to the tracker; on a miss it is written synchronously.
func (uc *LinkUseCase) ResolveShortID(ctx context.Context, shortID string) (string, error) {
	const op = "usecase.LinkUseCase.ResolveShortID"

	if !shortid.Valid(shortID) {
		return "", fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	if originalURL, ok := uc.cachedURL(ctx, shortID); ok {
		uc.tracker.Track(uc.click(shortID))
		return originalURL, nil
	}

	link, err := uc.findLink(ctx, shortID)
	if err != nil {
		return "", fmt.Errorf("%s: failed to find link: %w", op, err)
	}

	uc.cacheLink(ctx, link.ShortID, link.OriginalURL)

	if err := uc.repo.RecordClick(ctx, uc.click(shortID)); err != nil {
		return "", fmt.Errorf("%s: failed to record click: %w", op, err)
	}

	return link.OriginalURL, nil
}

func (uc *LinkUseCase) click(shortID string) entity.Click {
	now := uc.now()

	click := entity.Click{
		ShortID: shortID,
		Count:   1,
		At:      now,
	}

	if uc.cfg.ExtendOnAccess {
		click.ExtendUntil = now.Add(uc.cfg.GracePeriod)
	}

	return click
}

func (uc *LinkUseCase) cachedURL(ctx context.Context, shortID string) (string, bool) {
	raw, ok := uc.cache.Get(ctx, cacheKey(shortID))
	if !ok {
		return "", false
	}

	var entry entity.CacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil || entry.OriginalURL == "" {
		uc.logger.Warn("corrupted cache entry ignored",
			slog.String("short_id", shortID),
			slog.Any("err", err),
		)
		return "", false
	}

	return entry.OriginalURL, true
}

func (uc *LinkUseCase) cacheLink(ctx context.Context, shortID, originalURL string) {
	raw, err := json.Marshal(entity.CacheEntry{OriginalURL: originalURL})
	if err != nil {
		uc.logger.Warn("failed to encode cache entry",
			slog.String("short_id", shortID),
			slog.Any("err", err),
		)
		return
	}

	uc.cache.Set(ctx, cacheKey(shortID), string(raw), uc.cfg.CacheTTL)
}

// GetLinkStats reads the link straight from the store.
func (uc *LinkUseCase) GetLinkStats(ctx context.Context, shortID string) (*entity.ShortLink, error) {
	const op = "usecase.LinkUseCase.GetLinkStats"

	if !shortid.Valid(shortID) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	link, err := uc.findLink(ctx, shortID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get link stats: %w", op, err)
	}

	return link, nil
}

// findLink reads a link from the store. A link that expired after the store selected it is absent.
func (uc *LinkUseCase) findLink(ctx context.Context, shortID string) (*entity.ShortLink, error) {
	link, err := uc.repo.FindByShortID(ctx, shortID)
	if err != nil {
		return nil, err
	}

	if link.Expired(uc.now()) {
		return nil, entity.ErrLinkNotFound
	}

	return link, nil
}

func (uc *LinkUseCase) GetMetrics(ctx context.Context) (*entity.Metrics, error) {
	const op = "usecase.LinkUseCase.GetMetrics"

	now := uc.now()

	totalLinks, err := uc.repo.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	recentLinks, err := uc.repo.CountCreatedSince(ctx, now.Add(-recentLinksPeriod))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	totalClicks, err := uc.repo.SumClicks(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	topLinks, err := uc.repo.TopByClicks(ctx, uc.cfg.TopN)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var avg float64
	if totalLinks > 0 {
		avg = math.Round(float64(totalClicks)/float64(totalLinks)*100) / 100
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return &entity.Metrics{
		TotalLinks:    totalLinks,
		RecentLinks:   recentLinks,
		TotalClicks:   totalClicks,
		AverageClicks: avg,
		TopLinks:      topLinks,
		Cache:         uc.cache.Stats(),
		Uptime:        now.Sub(uc.startedAt),
		Memory: entity.MemoryStats{
			Alloc:      ms.Alloc,
			TotalAlloc: ms.TotalAlloc,
			Sys:        ms.Sys,
			NumGC:      ms.NumGC,
		},
		CollectedAt: now,
	}, nil
}

// CheckHealth pings the store and the cache. A cache running on its in-memory fallback is reported as degraded.
func (uc *LinkUseCase) CheckHealth(ctx context.Context) entity.Health {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	now := uc.now()

	health := entity.Health{
		Status:    entity.StatusHealthy,
		Store:     entity.StatusHealthy,
		Cache:     entity.StatusHealthy,
		Server:    entity.StatusHealthy,
		Uptime:    now.Sub(uc.startedAt),
		CheckedAt: now,
	}

	if err := uc.repo.Ping(ctx); err != nil {
		uc.logger.Error("store health check failed", slog.Any("err", err))
		health.Store = entity.StatusUnhealthy
		health.Status = entity.StatusDegraded
	}

	if err := uc.cache.Ping(ctx); err != nil {
		uc.logger.Warn("cache health check failed", slog.Any("err", err))
		health.Cache = entity.StatusDegraded
		health.Status = entity.StatusDegraded
	}

	return health
}

// ExpireLinks removes expired links from the store and their entries from the cache.
// It returns the number of removed links.
func (uc *LinkUseCase) ExpireLinks(ctx context.Context) (int, error) {
	const op = "usecase.LinkUseCase.ExpireLinks"

	shortIDs, err := uc.repo.DeleteExpired(ctx, uc.now())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	for _, shortID := range shortIDs {
		uc.cache.Delete(ctx, cacheKey(shortID))
	}

	return len(shortIDs), nil
}
