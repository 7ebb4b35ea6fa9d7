package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"tarkovtracker.org/internal/tracker/catalog"
	"tarkovtracker.org/internal/tracker/graph"
	"tarkovtracker.org/internal/tracker/overlay"
	"tarkovtracker.org/internal/upstream"
)

var ErrNotReady = errors.New("dataset not loaded")

// Domain names a per-stage error slot.
type Domain string

const (
	DomainTasks      Domain = "tasks"
	DomainObjectives Domain = "objectives"
	DomainRewards    Domain = "rewards"
	DomainHideout    Domain = "hideout"
	DomainItems      Domain = "items"
	DomainTraders    Domain = "traders"
	DomainLevels     Domain = "levels"
	DomainPrestige   Domain = "prestige"
	DomainOverlay    Domain = "overlay"
)

const (
	DefaultCacheTTL = 12 * time.Hour
	MaxCacheTTL     = 24 * time.Hour
)

// ClampTTL applies the cache TTL bounds: zero or negative means the default.
func ClampTTL(ttl time.Duration) time.Duration {
	switch {
	case ttl <= 0:
		return DefaultCacheTTL
	case ttl > MaxCacheTTL:
		return MaxCacheTTL
	}
	return ttl
}

type Fetcher interface {
	Fetch(ctx context.Context, req upstream.Request) ([]map[string]any, error)
}

// Cache is the persistent cache adapter. Get returns nil data on a miss.
type Cache interface {
	Get(ctx context.Context, typ, key, lang string) ([]byte, error)
	Put(ctx context.Context, typ, key, lang string, data []byte, ttl time.Duration) error
}

type OverlaySource interface {
	Get(ctx context.Context) (overlay.Result, error)
}

type Config struct {
	Mode    string
	Lang    string
	Fetcher Fetcher
	Cache   Cache         // optional
	Overlay OverlaySource // optional
	TTL     time.Duration
	Logger  *log.Logger

	// Parallel bounds how many non-core stages load at once.
	Parallel int
}

type rawState struct {
	tasks    []catalog.Task
	stations []catalog.HideoutStation
	items    []catalog.Item
	traders  []catalog.Trader
	levels   []catalog.PlayerLevel
	prestige []catalog.Prestige
	overlay  overlay.Provenance
}

// Store owns the canonical dataset for one game mode and language. Payloads
// merge into the raw state under mu; every merge publishes a fully rebuilt
// Snapshot.
type Store struct {
	mode     string
	lang     string
	fetcher  Fetcher
	cache    Cache
	overlay  OverlaySource
	ttl      time.Duration
	log      *log.Logger
	parallel int

	sf    singleflight.Group
	ready atomic.Bool

	mu      sync.Mutex
	raw     rawState
	errs    map[Domain]string
	version uint64
	snap    atomic.Pointer[Snapshot]

	subMu   sync.Mutex
	subs    map[int]chan uint64
	nextSub int
}

func NewStore(cfg Config) *Store {
	s := &Store{
		mode:     cfg.Mode,
		lang:     cfg.Lang,
		fetcher:  cfg.Fetcher,
		cache:    cfg.Cache,
		overlay:  cfg.Overlay,
		ttl:      ClampTTL(cfg.TTL),
		log:      cfg.Logger,
		parallel: cfg.Parallel,
		errs:     map[Domain]string{},
		subs:     map[int]chan uint64{},
	}
	if s.log == nil {
		s.log = log.New(io.Discard, "", 0)
	}
	if s.parallel <= 0 {
		s.parallel = 4
	}
	s.snap.Store(emptySnapshot(s.mode, s.lang))
	return s
}

func (s *Store) Mode() string { return s.mode }
func (s *Store) Lang() string { return s.lang }

// Snapshot returns the current published view. It is never nil.
func (s *Store) Snapshot() *Snapshot { return s.snap.Load() }

// Ready reports whether the core task payload has been loaded.
func (s *Store) Ready() bool { return s.ready.Load() }

// Errors returns a copy of the per-domain error slots.
func (s *Store) Errors() map[Domain]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Domain]string, len(s.errs))
	for k, v := range s.errs {
		out[k] = v
	}
	return out
}

// Subscribe returns a channel that receives the latest version after every
// publish. Slow readers only see the newest version.
func (s *Store) Subscribe() (<-chan uint64, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan uint64, 1)
	s.subs[id] = ch
	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Store) notify(v uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

// Initialize loads every stage once. Concurrent callers share the same run.
// Later calls return immediately once the core payload is loaded.
func (s *Store) Initialize(ctx context.Context) error {
	if s.Ready() {
		return nil
	}
	return s.run(ctx)
}

// Refresh reloads every stage. Cached payloads still within their TTL are
// served from the cache.
func (s *Store) Refresh(ctx context.Context) error {
	return s.run(ctx)
}

func (s *Store) run(ctx context.Context) error {
	ch := s.sf.DoChan("load", func() (any, error) {
		return nil, s.load(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

type overlayState struct {
	doc *overlay.Document
	// writable is false when corrections could not be obtained; payloads
	// built without them must not be persisted.
	writable bool
}

func (s *Store) loadOverlay(ctx context.Context) overlayState {
	if s.overlay == nil {
		s.setOverlay(overlay.Provenance{Status: overlay.StatusDisabled}, nil)
		return overlayState{writable: true}
	}
	res, err := s.overlay.Get(ctx)
	s.setOverlay(res.Provenance, err)
	if err != nil {
		s.log.Printf("metadata[%s]: overlay unavailable, continuing uncorrected: %v", s.mode, err)
		return overlayState{}
	}
	return overlayState{doc: res.Doc, writable: true}
}

func (s *Store) load(ctx context.Context) error {
	start := time.Now()
	ov := s.loadOverlay(ctx)

	if err := s.loadTasks(ctx, ov); err != nil {
		s.log.Printf("metadata[%s]: core tasks: %v", s.mode, err)
	}

	g := new(errgroup.Group)
	g.SetLimit(s.parallel)
	for _, st := range []func(context.Context, overlayState) error{
		s.loadObjectives,
		s.loadRewards,
		s.loadHideout,
		s.loadItems,
		s.loadTraders,
		s.loadLevels,
		s.loadPrestige,
	} {
		st := st
		g.Go(func() error {
			// stage failures land in the error slots; the others keep going
			_ = st(ctx, ov)
			return nil
		})
	}
	_ = g.Wait()

	snap := s.Snapshot()
	s.log.Printf("metadata[%s]: loaded v%d tasks=%d modules=%d items=%d overlay=%s in %s",
		s.mode, snap.Version, len(snap.Tasks.Tasks), len(snap.Hideout.Modules), len(snap.Items),
		snap.Overlay.Status, time.Since(start).Round(time.Millisecond))
	if !s.Ready() {
		if msg := s.Errors()[DomainTasks]; msg != "" {
			return fmt.Errorf("%w: %s", ErrNotReady, msg)
		}
		return ErrNotReady
	}
	return nil
}

// ---- in-memory merges ----

// SetTasks replaces the core task list. It establishes the task id set that
// objectives and rewards merge into, so previously merged detail for tasks
// that are still present is carried over.
func (s *Store) SetTasks(tasks []catalog.Task) {
	s.mutate(DomainTasks, func(r *rawState) {
		prev := make(map[string]catalog.Task, len(r.tasks))
		for _, t := range r.tasks {
			prev[t.ID] = t
		}
		next := make([]catalog.Task, len(tasks))
		for i, t := range tasks {
			if p, ok := prev[t.ID]; ok {
				if len(t.Objectives) == 0 && len(t.FailConditions) == 0 {
					t.Objectives, t.FailConditions = p.Objectives, p.FailConditions
				}
				if t.StartRewards == nil && t.FinishRewards == nil && t.FailureOutcome == nil {
					t.StartRewards, t.FinishRewards, t.FailureOutcome = p.StartRewards, p.FinishRewards, p.FailureOutcome
				}
			}
			next[i] = t
		}
		r.tasks = next
	})
	s.ready.Store(true)
}

// MergeObjectives merges an objectives payload into the loaded tasks. It is a
// no-op before the core payload arrives.
func (s *Store) MergeObjectives(payload []catalog.TaskObjectives) int {
	var n int
	s.mutate(DomainObjectives, func(r *rawState) {
		r.tasks, n = MergeTaskObjectives(r.tasks, payload)
	})
	return n
}

func (s *Store) MergeRewards(payload []catalog.TaskRewardSet) int {
	var n int
	s.mutate(DomainRewards, func(r *rawState) {
		r.tasks, n = MergeTaskRewards(r.tasks, payload)
	})
	return n
}

func (s *Store) SetHideout(stations []catalog.HideoutStation) {
	s.mutate(DomainHideout, func(r *rawState) { r.stations = stations })
}

func (s *Store) SetItems(items []catalog.Item) {
	s.mutate(DomainItems, func(r *rawState) { r.items = items })
}

func (s *Store) SetTraders(traders []catalog.Trader) {
	s.mutate(DomainTraders, func(r *rawState) { r.traders = traders })
}

func (s *Store) SetLevels(levels []catalog.PlayerLevel) {
	s.mutate(DomainLevels, func(r *rawState) { r.levels = levels })
}

func (s *Store) SetPrestige(prestige []catalog.Prestige) {
	s.mutate(DomainPrestige, func(r *rawState) { r.prestige = prestige })
}

func (s *Store) setOverlay(p overlay.Provenance, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw.overlay = p
	if err != nil {
		s.errs[DomainOverlay] = err.Error()
	} else {
		delete(s.errs, DomainOverlay)
	}
	s.publishLocked()
}

func (s *Store) setError(d Domain, err error) {
	s.mu.Lock()
	s.errs[d] = err.Error()
	s.publishLocked()
	s.mu.Unlock()
}

// mutate applies fn to the raw state, clears the domain's error slot, and
// publishes a rebuilt snapshot.
func (s *Store) mutate(d Domain, fn func(*rawState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.raw)
	delete(s.errs, d)
	s.publishLocked()
}

func (s *Store) publishLocked() {
	s.version++
	snap := build(s.raw, s.log)
	snap.Version = s.version
	snap.Mode = s.mode
	snap.Lang = s.lang
	snap.Errors = make(map[Domain]string, len(s.errs))
	for k, v := range s.errs {
		snap.Errors[k] = v
	}
	s.snap.Store(snap)
	s.notify(snap.Version)
}

// build derives a snapshot from the complete raw state. Nothing is patched
// incrementally: objective ids are deduplicated, items hydrated, and both
// graphs rebuilt from scratch.
func build(r rawState, logger *log.Logger) *Snapshot {
	tasks, renames := DedupeObjectiveIDs(r.tasks)

	var h *catalog.Hydrator
	if len(r.items) > 0 {
		byID := make(map[string]catalog.Item, len(r.items))
		for _, it := range r.items {
			byID[it.ID] = it
		}
		h = catalog.NewHydrator(byID)
		tasks = h.Tasks(tasks)
	}

	snap := &Snapshot{
		Tasks:            graph.ProcessTaskData(tasks, logger),
		Hideout:          graph.ProcessHideoutData(r.stations, logger),
		Items:            r.items,
		Traders:          r.traders,
		Levels:           r.levels,
		Prestige:         r.prestige,
		ObjectiveRenames: renames,
		Overlay:          r.overlay,
	}
	if h != nil {
		snap.Hideout.Modules = h.Modules(snap.Hideout.Modules)
		snap.Hideout.Crafts = snap.Hideout.Crafts[:0:0]
		for _, m := range snap.Hideout.Modules {
			snap.Hideout.Crafts = append(snap.Hideout.Crafts, m.Crafts...)
		}
	}
	snap.index()
	return snap
}
