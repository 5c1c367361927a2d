package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"gardener/internal/domain"
)

// SyncService runs synchronization cycles: reconcile patterns, pick up new
// catalog entries and download the ones that match. It owns the in-memory
// working set of items and patterns and is not safe for concurrent use.
type SyncService struct {
	items      ItemStore
	patterns   PatternStore
	desired    DesiredPatterns
	catalog    Catalog
	artifacts  ArtifactStore
	publisher  Publisher
	reconciler *PatternReconciler
	logger     *slog.Logger
	now        func() time.Time

	loaded     bool
	itemSet    []*domain.Item
	patternSet []*domain.Pattern
	matchers   map[string]*regexp.Regexp
}

func NewSyncService(
	items ItemStore,
	patterns PatternStore,
	desired DesiredPatterns,
	catalog Catalog,
	artifacts ArtifactStore,
	publisher Publisher,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		items:      items,
		patterns:   patterns,
		desired:    desired,
		catalog:    catalog,
		artifacts:  artifacts,
		publisher:  publisher,
		reconciler: NewPatternReconciler(patterns, logger),
		logger:     logger,
		now:        time.Now,
		matchers:   make(map[string]*regexp.Regexp),
	}
}

// Load reads the full working set from the store.
func (s *SyncService) Load(ctx context.Context) error {
	patterns, err := s.patterns.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load patterns: %w", err)
	}
	items, err := s.items.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}

	s.patternSet = patterns
	s.itemSet = items
	s.loaded = true

	s.logger.Info("loaded working set", "patterns", len(patterns), "items", len(items))
	return nil
}

func (s *SyncService) Items() []*domain.Item {
	return s.itemSet
}

func (s *SyncService) Patterns() []*domain.Pattern {
	return s.patternSet
}

func (s *SyncService) Sync(ctx context.Context) (*domain.CycleStats, error) {
	startTime := time.Now()
	logger := s.logger.With("cycle_id", uuid.NewString())
	logger.Info("starting sync")

	if !s.loaded {
		if err := s.Load(ctx); err != nil {
			return nil, err
		}
	}

	stats := &domain.CycleStats{}

	desired, err := s.desired.Desired(ctx)
	if err != nil {
		return stats, fmt.Errorf("read desired patterns: %w", err)
	}

	patterns, res, err := s.reconciler.Reconcile(ctx, s.patternSet, desired, s.now())
	s.patternSet = patterns
	stats.PatternsAdded = res.Added
	stats.PatternsRetired = res.Retired
	if err != nil {
		return stats, fmt.Errorf("reconcile patterns: %w", err)
	}

	listing, err := s.catalog.ListCurrent(ctx)
	if err != nil {
		return stats, fmt.Errorf("list catalog: %w", err)
	}
	stats.Listed = len(listing)

	if err := s.addNewItems(ctx, logger, listing, stats); err != nil {
		return stats, err
	}

	if len(listing) == 0 {
		logger.Info("no new items")
		stats.Duration = time.Since(startTime)
		return stats, nil
	}
	if stats.New == 0 {
		logger.Info("no new items", "listed", stats.Listed)
	}

	downloadErr := s.downloadPass(ctx, logger, stats)

	stats.Duration = time.Since(startTime)
	logger.Info("sync completed",
		"patterns_added", stats.PatternsAdded,
		"patterns_retired", stats.PatternsRetired,
		"listed", stats.Listed,
		"new", stats.New,
		"matched", stats.Matched,
		"downloaded", stats.Downloaded,
		"already_present", stats.AlreadyPresent,
		"errors", stats.Errors,
		"published", stats.Published,
		"duration", stats.Duration,
	)

	if downloadErr != nil {
		return stats, fmt.Errorf("download pass: %w", downloadErr)
	}
	return stats, nil
}

// addNewItems persists every listing entry whose external id is not known
// yet. Items are appended to the working set only once stored.
func (s *SyncService) addNewItems(ctx context.Context, logger *slog.Logger, listing []domain.Listing, stats *domain.CycleStats) error {
	known := make(map[string]bool, len(s.itemSet))
	for _, item := range s.itemSet {
		if item.RemovedAt == nil {
			known[item.ExternalID] = true
		}
	}

	for _, entry := range listing {
		if known[entry.ExternalID] {
			continue
		}

		item := &domain.Item{
			ExternalID: entry.ExternalID,
			Title:      entry.Title,
			AddedAt:    s.now(),
		}
		id, err := s.items.Upsert(ctx, item)
		if err != nil {
			return fmt.Errorf("add item %s: %w", entry.ExternalID, err)
		}
		item.ID = id
		known[entry.ExternalID] = true
		s.itemSet = append(s.itemSet, item)
		stats.New++

		logger.Info("new item", "item_id", id, "external_id", item.ExternalID, "title", item.Title)
		s.publish(ctx, logger, stats, domain.ItemEvent{Action: domain.ActionDiscovered, Item: *item})
	}

	return nil
}

// downloadPass walks every item without an artifact on disk and downloads
// it when an effective pattern matches. Failures are collected so one bad
// payload does not hold back the rest.
func (s *SyncService) downloadPass(ctx context.Context, logger *slog.Logger, stats *domain.CycleStats) error {
	// Retired patterns do not trigger downloads, even for items left over
	// from the time they were effective.
	effective := domain.EffectivePatterns(s.patternSet)

	var errs []error
	for _, item := range s.itemSet {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if item.RemovedAt != nil {
			continue
		}
		if s.artifacts.Exists(item.PayloadPath) {
			stats.AlreadyPresent++
			logger.Debug("item is already downloaded", "external_id", item.ExternalID, "path", item.PayloadPath)
			continue
		}

		pattern := s.match(logger, item.Title, effective)
		if pattern == nil {
			continue
		}
		stats.Matched++

		if err := s.download(ctx, logger, item, pattern); err != nil {
			stats.Errors++
			errs = append(errs, err)
			logger.Error("download failed", "item_id", item.ID, "external_id", item.ExternalID, "error", err)
			continue
		}
		stats.Downloaded++
		s.publish(ctx, logger, stats, domain.ItemEvent{Action: domain.ActionDownloaded, Item: *item, Pattern: pattern})
	}

	return errors.Join(errs...)
}

// download fetches the payload of item and records the match.
func (s *SyncService) download(ctx context.Context, logger *slog.Logger, item *domain.Item, pattern *domain.Pattern) error {
	// The start marker is written before fetching so an interrupted
	// download is visible in the store.
	started := s.now()
	pending := *item
	pending.DownloadStartedAt = &started
	if err := s.persist(ctx, item, &pending); err != nil {
		return err
	}

	payload, err := s.catalog.FetchPayload(ctx, item.ExternalID)
	if err != nil {
		return err
	}

	path, err := s.artifacts.Save(payload.Filename, payload.Body)
	if err != nil {
		return fmt.Errorf("save artifact for %s: %w", item.ExternalID, err)
	}

	completed := s.now()
	done := *item
	done.PayloadPath = path
	done.PatternID = pattern.ID
	done.DownloadCompletedAt = &completed
	if err := s.persist(ctx, item, &done); err != nil {
		return err
	}

	logger.Info("downloaded item",
		"item_id", item.ID,
		"external_id", item.ExternalID,
		"title", item.Title,
		"pattern_id", pattern.ID,
		"path", path,
	)
	return nil
}

// persist writes updated and copies it over item once the write succeeded.
func (s *SyncService) persist(ctx context.Context, item, updated *domain.Item) error {
	if _, err := s.items.Upsert(ctx, updated); err != nil {
		return fmt.Errorf("update item %d: %w", item.ID, err)
	}
	*item = *updated
	return nil
}

// match returns the first pattern, in working set order, matching title.
func (s *SyncService) match(logger *slog.Logger, title string, patterns []*domain.Pattern) *domain.Pattern {
	for _, p := range patterns {
		re, seen := s.matchers[p.Expression]
		if !seen {
			compiled, err := regexp.Compile(p.Expression)
			if err != nil {
				logger.Warn("ignoring invalid pattern", "pattern_id", p.ID, "expression", p.Expression, "error", err)
			}
			s.matchers[p.Expression] = compiled
			re = compiled
		}
		if re != nil && re.MatchString(title) {
			return p
		}
	}
	return nil
}

func (s *SyncService) publish(ctx context.Context, logger *slog.Logger, stats *domain.CycleStats, event domain.ItemEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		stats.Errors++
		logger.Warn("publish failed", "action", event.Action, "external_id", event.Item.ExternalID, "error", err)
		return
	}
	stats.Published++
}
