package metadata

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"tarkovtracker.org/internal/tracker/catalog"
	"tarkovtracker.org/internal/tracker/overlay"
	"tarkovtracker.org/internal/upstream"
)

type fakeFetcher struct {
	mu       sync.Mutex
	payloads map[upstream.Kind][]map[string]any
	fail     map[upstream.Kind]error
	calls    map[upstream.Kind]int
	gate     chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		payloads: map[upstream.Kind][]map[string]any{},
		fail:     map[upstream.Kind]error{},
		calls:    map[upstream.Kind]int{},
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, req upstream.Request) ([]map[string]any, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[req.Kind]++
	if err := f.fail[req.Kind]; err != nil {
		return nil, err
	}
	p, ok := f.payloads[req.Kind]
	if !ok {
		return nil, nil
	}
	out := make([]map[string]any, len(p))
	for i, m := range p {
		out[i] = overlay.Clone(m).(map[string]any)
	}
	return out, nil
}

func (f *fakeFetcher) count(k upstream.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[k]
}

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	puts    int
	getErr  error
}

func newMemCache() *memCache { return &memCache{entries: map[string][]byte{}} }

func (c *memCache) Get(ctx context.Context, typ, key, lang string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.entries[typ+"|"+key+"|"+lang], nil
}

func (c *memCache) Put(ctx context.Context, typ, key, lang string, data []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[typ+"|"+key+"|"+lang] = data
	c.puts++
	return nil
}

type fixedOverlay struct {
	res overlay.Result
	err error
}

func (o fixedOverlay) Get(ctx context.Context) (overlay.Result, error) { return o.res, o.err }

func corpus() *fakeFetcher {
	f := newFakeFetcher()
	f.payloads[upstream.KindTasks] = []map[string]any{
		{"id": "t1", "name": "Debut", "trader": map[string]any{"id": "prapor", "name": "Prapor"}, "minPlayerLevel": 1.0},
		{"id": "t2", "name": "Checking", "trader": map[string]any{"id": "prapor", "name": "Prapor"},
			"taskRequirements": []any{map[string]any{"task": map[string]any{"id": "t1"}, "status": []any{"complete"}}}},
	}
	f.payloads[upstream.KindTaskObjectives] = []map[string]any{
		{"id": "t1", "objectives": []any{map[string]any{"id": "o1", "type": "giveItem", "item": map[string]any{"id": "bronze"}, "count": 1.0}}},
		{"id": "t2", "objectives": []any{map[string]any{"id": "o1", "type": "visit"}}},
		{"id": "ghost", "objectives": []any{}},
	}
	f.payloads[upstream.KindTaskRewards] = []map[string]any{
		{"id": "t2", "finishRewards": map[string]any{"items": []any{map[string]any{"item": map[string]any{"id": "roubles"}, "count": 5000.0}}}},
	}
	f.payloads[upstream.KindItems] = []map[string]any{
		{"id": "bronze", "name": "Bronze pocket watch", "shortName": "Watch"},
		{"id": "roubles", "name": "Roubles"},
	}
	f.payloads[upstream.KindHideout] = []map[string]any{
		{"id": "gen", "name": "Generator", "levels": []any{
			map[string]any{"id": "gen1", "level": 1.0, "constructionTime": 60.0},
			map[string]any{"id": "gen2", "level": 2.0, "constructionTime": 120.0},
		}},
	}
	f.payloads[upstream.KindTraders] = []map[string]any{{"id": "prapor", "name": "Prapor"}}
	f.payloads[upstream.KindPlayerLevels] = []map[string]any{{"level": 2.0, "exp": 1000.0}, {"level": 1.0, "exp": 0.0}}
	f.payloads[upstream.KindPrestige] = []map[string]any{{"id": "p1", "name": "Prestige 1", "prestigeLevel": 1.0}}
	return f
}

func TestMergeTaskObjectives_NoopWithoutCore(t *testing.T) {
	payload := []catalog.TaskObjectives{{ID: "t1", Objectives: []catalog.TaskObjective{{ID: "o1"}}}}
	out, n := MergeTaskObjectives(nil, payload)
	if out != nil || n != 0 {
		t.Fatalf("expected no-op, got %v %d", out, n)
	}

	s := NewStore(Config{Mode: "regular"})
	if got := s.MergeObjectives(payload); got != 0 {
		t.Fatalf("merged %d", got)
	}
	if len(s.Snapshot().Tasks.Tasks) != 0 || s.Ready() {
		t.Fatalf("store state changed")
	}
}

func TestMergeTaskRewards_DropsUnknown(t *testing.T) {
	tasks := []catalog.Task{{ID: "t1"}}
	out, n := MergeTaskRewards(tasks, []catalog.TaskRewardSet{
		{ID: "t1", FinishRewards: &catalog.TaskRewards{TraderUnlock: []catalog.Trader{{ID: "jaeger"}}}},
		{ID: "nope", FinishRewards: &catalog.TaskRewards{}},
	})
	if n != 1 || out[0].FinishRewards == nil || tasks[0].FinishRewards != nil {
		t.Fatalf("n=%d out=%+v in=%+v", n, out, tasks)
	}
}

func TestDedupeObjectiveIDs(t *testing.T) {
	tasks := []catalog.Task{
		{ID: "t1", Objectives: []catalog.TaskObjective{{ID: "dup"}, {ID: "a"}}},
		{ID: "t2", Objectives: []catalog.TaskObjective{{ID: "dup"}}},
	}
	out, renames := DedupeObjectiveIDs(tasks)
	if out[0].Objectives[0].ID != "dup:t1" || out[1].Objectives[0].ID != "dup:t2" || out[0].Objectives[1].ID != "a" {
		t.Fatalf("renamed: %+v", out)
	}
	if !reflect.DeepEqual(renames, map[string][]string{"dup": {"dup:t1", "dup:t2"}}) {
		t.Fatalf("renames: %v", renames)
	}
	if tasks[0].Objectives[0].ID != "dup" {
		t.Fatalf("input mutated")
	}
	again, renames2 := DedupeObjectiveIDs(tasks)
	if !reflect.DeepEqual(again, out) || !reflect.DeepEqual(renames2, renames) {
		t.Fatalf("not deterministic")
	}
}

func TestDedupeObjectiveIDs_RepeatWithinTask(t *testing.T) {
	tasks := []catalog.Task{
		{ID: "t1", Objectives: []catalog.TaskObjective{{ID: "o"}, {ID: "o"}, {ID: "o"}}},
		{ID: "t2", Objectives: []catalog.TaskObjective{{ID: "o"}}},
	}
	out, renames := DedupeObjectiveIDs(tasks)
	var ids []string
	for _, task := range out {
		for _, o := range task.Objectives {
			ids = append(ids, o.ID)
		}
	}
	want := []string{"o:t1", "o:t1:2", "o:t1:3", "o:t2"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids=%v want %v", ids, want)
	}
	if !reflect.DeepEqual(renames, map[string][]string{"o": want}) {
		t.Fatalf("renames: %v", renames)
	}
}

func TestClampTTL(t *testing.T) {
	if ClampTTL(0) != DefaultCacheTTL || ClampTTL(48*time.Hour) != MaxCacheTTL || ClampTTL(time.Hour) != time.Hour {
		t.Fatalf("clamp")
	}
}

func TestStore_InitializeFullLoad(t *testing.T) {
	s := NewStore(Config{Mode: "regular", Lang: "en", Fetcher: corpus()})
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	snap := s.Snapshot()
	if len(snap.Tasks.Tasks) != 2 || len(snap.Hideout.Modules) != 2 {
		t.Fatalf("tasks=%d modules=%d", len(snap.Tasks.Tasks), len(snap.Hideout.Modules))
	}
	if _, _, ok := snap.Objective("o1"); ok {
		t.Fatalf("duplicate objective id should have been renamed")
	}
	o, owner, ok := snap.Objective("o1:t1")
	if !ok || owner != "t1" {
		t.Fatalf("renamed objective missing")
	}
	if o.Item == nil || o.Item.Name != "Bronze pocket watch" {
		t.Fatalf("objective item not hydrated: %+v", o.Item)
	}
	t2, ok := snap.Task("t2")
	if !ok || !reflect.DeepEqual(t2.Predecessors, []string{"t1"}) {
		t.Fatalf("t2: %+v", t2)
	}
	if t2.FinishRewards == nil || t2.FinishRewards.Items[0].Item.Name != "Roubles" {
		t.Fatalf("rewards not merged/hydrated: %+v", t2.FinishRewards)
	}
	if m, ok := snap.Module("gen2"); !ok || m.TotalConstructionTime != 180 {
		t.Fatalf("gen2: %+v", m)
	}
	if snap.LevelForExperience(1500) != 2 {
		t.Fatalf("levels: %+v", snap.Levels)
	}
	if !reflect.DeepEqual(snap.ObjectiveRenames["o1"], []string{"o1:t1", "o1:t2"}) {
		t.Fatalf("renames: %v", snap.ObjectiveRenames)
	}
	if snap.Overlay.Status != overlay.StatusDisabled {
		t.Fatalf("overlay status %s", snap.Overlay.Status)
	}
	if len(snap.Errors) != 0 {
		t.Fatalf("errors: %v", snap.Errors)
	}
}

func TestStore_InitializeCoalesces(t *testing.T) {
	f := corpus()
	f.gate = make(chan struct{})
	s := NewStore(Config{Mode: "regular", Fetcher: f})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Initialize(context.Background())
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Initialize: %v", err)
		}
	}
	for _, k := range upstream.Kinds {
		if n := f.count(k); n != 1 {
			t.Fatalf("%s fetched %d times", k, n)
		}
	}
	if err := s.Initialize(context.Background()); err != nil || f.count(upstream.KindTasks) != 1 {
		t.Fatalf("second Initialize should be a no-op: err=%v", err)
	}
}

func TestStore_CacheHitSkipsNetwork(t *testing.T) {
	cache := newMemCache()
	first := NewStore(Config{Mode: "pve", Lang: "en", Fetcher: corpus(), Cache: cache})
	if err := first.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if cache.puts != len(upstream.Kinds) {
		t.Fatalf("puts=%d", cache.puts)
	}

	dead := newFakeFetcher()
	for _, k := range upstream.Kinds {
		dead.fail[k] = errors.New("offline")
	}
	second := NewStore(Config{Mode: "pve", Lang: "en", Fetcher: dead, Cache: cache})
	if err := second.Initialize(context.Background()); err != nil {
		t.Fatalf("cached Initialize: %v", err)
	}
	for _, k := range upstream.Kinds {
		if dead.count(k) != 0 {
			t.Fatalf("%s hit the network", k)
		}
	}
	if len(second.Snapshot().Tasks.Tasks) != 2 {
		t.Fatalf("tasks from cache: %d", len(second.Snapshot().Tasks.Tasks))
	}

	// a different mode is a different key
	third := NewStore(Config{Mode: "regular", Lang: "en", Fetcher: dead, Cache: cache})
	if err := third.Initialize(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestStore_CacheReadErrorFallsBackToFetch(t *testing.T) {
	cache := newMemCache()
	cache.getErr = errors.New("disk gone")
	f := corpus()
	s := NewStore(Config{Mode: "regular", Fetcher: f, Cache: cache})
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.count(upstream.KindTasks) != 1 {
		t.Fatalf("expected network fetch")
	}
}

func TestStore_StaleButAvailable(t *testing.T) {
	f := corpus()
	s := NewStore(Config{Mode: "regular", Fetcher: f})
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.mu.Lock()
	f.fail[upstream.KindItems] = errors.New("upstream 503")
	f.mu.Unlock()

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	snap := s.Snapshot()
	if len(snap.Items) != 2 {
		t.Fatalf("items cleared: %d", len(snap.Items))
	}
	if snap.Errors[DomainItems] == "" || s.Errors()[DomainItems] == "" {
		t.Fatalf("items error slot empty")
	}

	f.mu.Lock()
	delete(f.fail, upstream.KindItems)
	f.mu.Unlock()
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, bad := s.Errors()[DomainItems]; bad {
		t.Fatalf("error slot not cleared after recovery")
	}
}

func TestStore_OverlayCorrections(t *testing.T) {
	doc := &overlay.Document{
		Meta: overlay.Meta{Version: "7"},
		Tasks: overlay.Patches{
			"t1": {"minPlayerLevel": 5.0, "objectivesAdd": []any{map[string]any{"id": "extra", "description": "Locate the bunker"}}},
			"t2": {"disabled": true},
		},
		TasksAdd: overlay.Patches{
			"new": {"id": "new", "name": "Added task"},
		},
		Traders: overlay.Patches{"prapor": {"name": "Prapor (fixed)"}},
	}
	src := fixedOverlay{res: overlay.Result{Doc: doc, Provenance: overlay.Provenance{Status: overlay.StatusFresh, Version: "7"}}}
	cache := newMemCache()
	s := NewStore(Config{Mode: "regular", Fetcher: corpus(), Overlay: src, Cache: cache})
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if _, ok := snap.Task("t2"); ok {
		t.Fatalf("disabled task kept")
	}
	t1, _ := snap.Task("t1")
	if t1.MinPlayerLevel != 5 {
		t.Fatalf("patch not applied: %d", t1.MinPlayerLevel)
	}
	var ids []string
	for _, o := range t1.Objectives {
		ids = append(ids, o.ID)
	}
	if !reflect.DeepEqual(ids, []string{"o1", "extra"}) {
		t.Fatalf("objectives: %v", ids)
	}
	if t1.Objectives[1].Type != "visit" {
		t.Fatalf("added objective type: %q", t1.Objectives[1].Type)
	}
	added, ok := snap.Task("new")
	if !ok || added.FactionName != catalog.FactionAny {
		t.Fatalf("addition: %+v", added)
	}
	if tr, _ := snap.Trader("prapor"); tr.Name != "Prapor (fixed)" {
		t.Fatalf("trader: %+v", tr)
	}
	if snap.Overlay.Version != "7" || cache.puts == 0 {
		t.Fatalf("provenance=%+v puts=%d", snap.Overlay, cache.puts)
	}
}

func TestStore_OverlayUnavailableSkipsCache(t *testing.T) {
	src := fixedOverlay{
		res: overlay.Result{Provenance: overlay.Provenance{Status: overlay.StatusUnavailable, Error: "timeout"}},
		err: fmt.Errorf("%w: timeout", overlay.ErrUnavailable),
	}
	cache := newMemCache()
	s := NewStore(Config{Mode: "regular", Fetcher: corpus(), Overlay: src, Cache: cache})
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if cache.puts != 0 {
		t.Fatalf("uncorrected payloads were cached: %d", cache.puts)
	}
	snap := s.Snapshot()
	if len(snap.Tasks.Tasks) != 2 || snap.Overlay.Status != overlay.StatusUnavailable {
		t.Fatalf("tasks=%d overlay=%+v", len(snap.Tasks.Tasks), snap.Overlay)
	}
	if snap.Errors[DomainOverlay] == "" {
		t.Fatalf("overlay error slot empty")
	}
}

func TestStore_SubscribeSeesPublishes(t *testing.T) {
	s := NewStore(Config{Mode: "regular"})
	ch, cancel := s.Subscribe()
	defer cancel()
	s.SetTasks([]catalog.Task{{ID: "a", Name: "A"}})
	s.SetTraders([]catalog.Trader{{ID: "prapor"}})
	select {
	case v := <-ch:
		if v != s.Snapshot().Version {
			t.Fatalf("got v%d want latest v%d", v, s.Snapshot().Version)
		}
	case <-time.After(time.Second):
		t.Fatalf("no notification")
	}
}

func TestStore_SetTasksKeepsMergedDetail(t *testing.T) {
	s := NewStore(Config{Mode: "regular"})
	s.SetTasks([]catalog.Task{{ID: "a"}})
	s.MergeObjectives([]catalog.TaskObjectives{{ID: "a", Objectives: []catalog.TaskObjective{{ID: "x"}}}})
	s.SetTasks([]catalog.Task{{ID: "a", Name: "renamed"}, {ID: "b"}})
	a, _ := s.Snapshot().Task("a")
	if a.Name != "renamed" || len(a.Objectives) != 1 {
		t.Fatalf("a: %+v", a)
	}
}
