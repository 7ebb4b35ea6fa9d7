package metadata

import (
	"context"
	"encoding/json"
	"fmt"

	"tarkovtracker.org/internal/tracker/catalog"
	"tarkovtracker.org/internal/tracker/overlay"
	"tarkovtracker.org/internal/upstream"
)

// cacheOrFetch serves a processed payload from the persistent cache when it
// has one. On a miss it runs fetch and stores the result before returning it,
// unless writable is false. Cache failures are logged and treated as misses.
func cacheOrFetch[T any](ctx context.Context, s *Store, kind upstream.Kind, writable bool, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	if s.cache != nil {
		data, err := s.cache.Get(ctx, string(kind), s.mode, s.lang)
		switch {
		case err != nil:
			s.log.Printf("metadata[%s]: cache get %s: %v", s.mode, kind, err)
		case data != nil:
			var v T
			err := json.Unmarshal(data, &v)
			if err == nil {
				return v, nil
			}
			s.log.Printf("metadata[%s]: discarding undecodable cache entry %s: %v", s.mode, kind, err)
		}
	}

	v, err := fetch(ctx)
	if err != nil {
		return zero, err
	}
	if s.cache == nil || !writable {
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("metadata[%s]: cache encode %s: %v", s.mode, kind, err)
		return v, nil
	}
	if err := s.cache.Put(ctx, string(kind), s.mode, s.lang, data, s.ttl); err != nil {
		s.log.Printf("metadata[%s]: cache put %s: %v", s.mode, kind, err)
	}
	return v, nil
}

type corrector func(raw []map[string]any, doc *overlay.Document) []map[string]any

func taskCorrector(stage overlay.Stage) corrector {
	return func(raw []map[string]any, doc *overlay.Document) []map[string]any {
		return overlay.CorrectTasks(raw, doc, stage)
	}
}

func entityCorrector(patches func(*overlay.Document) overlay.Patches) corrector {
	return func(raw []map[string]any, doc *overlay.Document) []map[string]any {
		if doc == nil {
			return raw
		}
		return overlay.ApplyEntityOverlay(raw, patches(doc))
	}
}

// loadStage is the fetch path shared by every payload: fetch, correct,
// decode, with the cache in front.
func loadStage[T any](ctx context.Context, s *Store, kind upstream.Kind, ov overlayState, correct corrector, decode func([]map[string]any) ([]T, []error)) ([]T, error) {
	return cacheOrFetch(ctx, s, kind, ov.writable, func(ctx context.Context) ([]T, error) {
		if s.fetcher == nil {
			return nil, fmt.Errorf("%s: no upstream fetcher configured", kind)
		}
		raw, err := s.fetcher.Fetch(ctx, upstream.Request{Kind: kind, Mode: s.mode, Lang: s.lang})
		if err != nil {
			return nil, err
		}
		if correct != nil {
			raw = correct(raw, ov.doc)
		}
		out, errs := decode(raw)
		for _, e := range errs {
			s.log.Printf("metadata[%s]: skipping %v", s.mode, e)
		}
		return out, nil
	})
}

func (s *Store) loadTasks(ctx context.Context, ov overlayState) error {
	tasks, err := loadStage(ctx, s, upstream.KindTasks, ov, taskCorrector(overlay.StageCore), catalog.DecodeTasks)
	if err != nil {
		s.setError(DomainTasks, err)
		return err
	}
	s.SetTasks(tasks)
	return nil
}

func (s *Store) loadObjectives(ctx context.Context, ov overlayState) error {
	payload, err := loadStage(ctx, s, upstream.KindTaskObjectives, ov, taskCorrector(overlay.StageObjectives), catalog.DecodeTaskObjectives)
	if err != nil {
		s.setError(DomainObjectives, err)
		return err
	}
	if n := s.MergeObjectives(payload); n < len(payload) {
		s.log.Printf("metadata[%s]: dropped %d objective entries for unknown tasks", s.mode, len(payload)-n)
	}
	return nil
}

func (s *Store) loadRewards(ctx context.Context, ov overlayState) error {
	payload, err := loadStage(ctx, s, upstream.KindTaskRewards, ov, taskCorrector(overlay.StageRewards), catalog.DecodeTaskRewards)
	if err != nil {
		s.setError(DomainRewards, err)
		return err
	}
	if n := s.MergeRewards(payload); n < len(payload) {
		s.log.Printf("metadata[%s]: dropped %d reward entries for unknown tasks", s.mode, len(payload)-n)
	}
	return nil
}

func (s *Store) loadHideout(ctx context.Context, ov overlayState) error {
	stations, err := loadStage(ctx, s, upstream.KindHideout, ov,
		entityCorrector(func(d *overlay.Document) overlay.Patches { return d.Hideout }), catalog.DecodeHideoutStations)
	if err != nil {
		s.setError(DomainHideout, err)
		return err
	}
	s.SetHideout(stations)
	return nil
}

func (s *Store) loadItems(ctx context.Context, ov overlayState) error {
	items, err := loadStage(ctx, s, upstream.KindItems, ov,
		entityCorrector(func(d *overlay.Document) overlay.Patches { return d.Items }), catalog.DecodeItems)
	if err != nil {
		s.setError(DomainItems, err)
		return err
	}
	s.SetItems(items)
	return nil
}

func (s *Store) loadTraders(ctx context.Context, ov overlayState) error {
	traders, err := loadStage(ctx, s, upstream.KindTraders, ov,
		entityCorrector(func(d *overlay.Document) overlay.Patches { return d.Traders }), catalog.DecodeTraders)
	if err != nil {
		s.setError(DomainTraders, err)
		return err
	}
	s.SetTraders(traders)
	return nil
}

func (s *Store) loadLevels(ctx context.Context, ov overlayState) error {
	levels, err := loadStage(ctx, s, upstream.KindPlayerLevels, ov, nil, catalog.DecodePlayerLevels)
	if err != nil {
		s.setError(DomainLevels, err)
		return err
	}
	s.SetLevels(levels)
	return nil
}

func (s *Store) loadPrestige(ctx context.Context, ov overlayState) error {
	prestige, err := loadStage(ctx, s, upstream.KindPrestige, ov, nil, catalog.DecodePrestige)
	if err != nil {
		s.setError(DomainPrestige, err)
		return err
	}
	s.SetPrestige(prestige)
	return nil
}
