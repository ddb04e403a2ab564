package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"gallery-service/internal/chain"
	"gallery-service/internal/classifier"
	"gallery-service/internal/metrics"
	"gallery-service/internal/models"
	"gallery-service/internal/services/cache"
)

// HoldingsService serves kiosk holdings from a cache in front of the chain.
type HoldingsService struct {
	provider chain.HoldingsProvider
	cache    cache.CacheLayer
}

func NewHoldingsService(provider chain.HoldingsProvider, layer cache.CacheLayer) *HoldingsService {
	return &HoldingsService{provider: provider, cache: layer}
}

// GetKioskItems returns the kiosk's items, reading through the cache.
func (s *HoldingsService) GetKioskItems(ctx context.Context, kioskID string) ([]models.KioskItem, error) {
	timings := metrics.TimingsFrom(ctx)
	timings.Start("holdings")
	defer timings.End("holdings")

	if s.cache != nil {
		if raw, err := s.cache.Get(kioskID); err == nil {
			var items []models.KioskItem
			if err := json.Unmarshal(raw, &items); err == nil {
				metrics.HoldingsCacheResults.WithLabelValues("hit").Inc()
				return items, nil
			}
			log.Printf("Holdings cache entry unreadable: kiosk=%s", kioskID)
			_ = s.cache.Delete(kioskID)
		}
		metrics.HoldingsCacheResults.WithLabelValues("miss").Inc()
	}

	items, err := s.provider.GetKioskItems(ctx, kioskID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if raw, err := json.Marshal(items); err == nil {
			if err := s.cache.Store(kioskID, raw); err != nil {
				log.Printf("Holdings cache store failed: kiosk=%s, Error=%v", kioskID, err)
			}
		}
	}
	return items, nil
}

// Invalidate drops the cached holdings of a kiosk.
func (s *HoldingsService) Invalidate(kioskID string) {
	if s.cache != nil {
		_ = s.cache.Delete(kioskID)
	}
}

// Stats reports the holdings cache statistics. ok is false when no cache is configured.
func (s *HoldingsService) Stats() (stats cache.LayerStats, ok bool) {
	if s.cache == nil {
		return cache.LayerStats{}, false
	}
	return s.cache.GetStats(), true
}

// Clear drops every cached kiosk.
func (s *HoldingsService) Clear() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Clear()
}

const preloadWorkers = 4

// Preload warms the cache for several kiosks and returns how many were loaded. Failures are
// collected; the first one is returned alongside the count.
func (s *HoldingsService) Preload(ctx context.Context, kioskIDs []string) (int, error) {
	log.Printf("Starting holdings preload for %d kiosks", len(kioskIDs))
	startTime := time.Now()

	sem := make(chan struct{}, preloadWorkers)
	errChan := make(chan error, len(kioskIDs))
	var wg sync.WaitGroup
	for _, id := range kioskIDs {
		wg.Add(1)
		go func(kioskID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if _, err := s.GetKioskItems(ctx, kioskID); err != nil {
				errChan <- fmt.Errorf("failed to preload %s: %w", kioskID, err)
			}
		}(id)
	}
	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	log.Printf("Holdings preload completed in %v with %d errors", time.Since(startTime), len(errs))
	if len(errs) > 0 {
		return len(kioskIDs) - len(errs), fmt.Errorf("preload had %d errors: %w", len(errs), errs[0])
	}
	return len(kioskIDs), nil
}

// ItemView is a held item with its rendering strategy and display name.
type ItemView struct {
	models.KioskItem
	Name     string                    `json:"name"`
	Resource models.ResourceDescriptor `json:"resource"`
}

// DescribeItems classifies each item for the viewer.
func DescribeItems(items []models.KioskItem) []ItemView {
	out := make([]ItemView, 0, len(items))
	for i, item := range items {
		res := classifier.Classify(item)
		metrics.ClassificationsTotal.WithLabelValues(string(res.Type)).Inc()
		out = append(out, ItemView{
			KioskItem: item,
			Name:      classifier.ResolveName(item, i),
			Resource:  res,
		})
	}
	return out
}
