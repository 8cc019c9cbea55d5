package content

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sandgallery/sandgallery-backend/pkg/db/models"
	"github.com/sandgallery/sandgallery-backend/pkg/enums"
	pkgerrors "github.com/sandgallery/sandgallery-backend/pkg/errors"
	"github.com/sandgallery/sandgallery-backend/pkg/logger"
)

const (
	SiteConfigKey      = "site"
	lastBootstrapField = "lastBootstrap"

	OutcomeCreated       = "created"
	OutcomeAlreadyExists = "already exists"

	defaultCacheSize = 16
	defaultCacheTTL  = 5 * time.Minute
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Service interface {
	Bootstrap(ctx context.Context) (*BootstrapReport, error)
	List(ctx context.Context, kind string) ([]models.ContentItem, error)
}

// BootstrapReport maps each content type to its outcome and item count.
type BootstrapReport struct {
	Results map[enums.ContentType]string `json:"results"`
	Counts  map[enums.ContentType]int    `json:"counts"`
	At      time.Time                    `json:"at"`
}

type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	CacheSize int
	CacheTTL  time.Duration
	Logger    *logger.Logger
}

type service struct {
	repo  Repository
	tx    txRunner
	cache *expirable.LRU[enums.ContentType, []models.ContentItem]
	logg  *logger.Logger
	now   func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("content repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	size := params.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:  params.Repo,
		tx:    params.Tx,
		cache: expirable.NewLRU[enums.ContentType, []models.ContentItem](size, nil, ttl),
		logg:  logg,
		now:   time.Now,
	}, nil
}

// Bootstrap seeds every empty content document. Documents that already hold
// items are left untouched.
func (s *service) Bootstrap(ctx context.Context) (*BootstrapReport, error) {
	report := &BootstrapReport{
		Results: map[enums.ContentType]string{},
		Counts:  map[enums.ContentType]int{},
		At:      s.now().UTC(),
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, kind := range enums.ContentTypes {
			doc, err := repo.FindDocument(ctx, kind)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load content document")
			}
			if doc != nil && len(doc.Items) > 0 {
				report.Results[kind] = OutcomeAlreadyExists
				report.Counts[kind] = len(doc.Items)
				continue
			}
			items := seedFor(kind)
			if err := repo.SaveDocument(ctx, &models.ContentDocument{Key: kind, Items: datatypes.NewJSONSlice(items)}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seed content document")
			}
			report.Results[kind] = OutcomeCreated
			report.Counts[kind] = len(items)
		}
		return s.recordBootstrap(ctx, repo, report)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Purge()
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"games": report.Results[enums.ContentTypeGames],
		"tools": report.Results[enums.ContentTypeTools],
	}), "content.bootstrap")
	return report, nil
}

// recordBootstrap merges the outcome into the site config without dropping
// other keys.
func (s *service) recordBootstrap(ctx context.Context, repo Repository, report *BootstrapReport) error {
	cfg, err := repo.FindSiteConfig(ctx, SiteConfigKey)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load site config")
	}
	if cfg == nil {
		cfg = &models.SiteConfig{Key: SiteConfigKey}
	}
	if cfg.Data == nil {
		cfg.Data = datatypes.JSONMap{}
	}

	results := make(map[string]any, len(report.Results))
	for kind, outcome := range report.Results {
		results[kind.String()] = outcome
	}
	cfg.Data[lastBootstrapField] = map[string]any{
		"at":      report.At.Format(time.RFC3339),
		"results": results,
	}
	if err := repo.SaveSiteConfig(ctx, cfg); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save site config")
	}
	return nil
}

func (s *service) List(ctx context.Context, kind string) ([]models.ContentItem, error) {
	contentType, err := enums.ParseContentType(strings.ToLower(strings.TrimSpace(kind)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown content type")
	}
	if items, ok := s.cache.Get(contentType); ok {
		return cloneItems(items), nil
	}

	doc, err := s.repo.FindDocument(ctx, contentType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load content document")
	}
	items := []models.ContentItem{}
	if doc != nil {
		items = append(items, doc.Items...)
	}
	s.cache.Add(contentType, items)
	return cloneItems(items), nil
}

// cloneItems copies a cached list so callers cannot mutate the cache entry.
func cloneItems(items []models.ContentItem) []models.ContentItem {
	out := make([]models.ContentItem, len(items))
	copy(out, items)
	for i := range out {
		if out[i].Rating != nil {
			rating := *out[i].Rating
			out[i].Rating = &rating
		}
	}
	return out
}
