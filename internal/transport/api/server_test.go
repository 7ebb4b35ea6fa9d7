package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"tarkovtracker.org/internal/protocol"
	"tarkovtracker.org/internal/tracker/metadata"
	"tarkovtracker.org/internal/upstream"
)

var fixtures = map[string]string{
	"tasks.json": `{"data":{"tasks":[
	  {"id":"t1","name":"Debut","trader":{"id":"prapor","name":"Prapor"},"minPlayerLevel":1,"experience":100},
	  {"id":"t2","name":"Checking","trader":{"id":"prapor","name":"Prapor"},"experience":300,
	   "taskRequirements":[{"task":{"id":"t1"},"status":["complete"]}]},
	  {"id":"t3","name":"Shortage","trader":{"id":"therapist","name":"Therapist"},"experience":200,
	   "taskRequirements":[{"task":{"id":"t1"},"status":["failed"]}]},
	  {"id":"t4","name":"Shootout","trader":{"id":"prapor","name":"Prapor"},"experience":50,"factionName":"USEC"}
	]}}`,
	"taskObjectives.json": `{"data":{"tasks":[
	  {"id":"t1","objectives":[{"id":"o1","type":"visit"}]},
	  {"id":"t2","objectives":[{"id":"o1","type":"visit"}]}
	]}}`,
	"hideoutStations.json": `{"data":{"hideoutStations":[
	  {"id":"gen","name":"Generator","levels":[
	    {"id":"gen1","level":1,"constructionTime":60},
	    {"id":"gen2","level":2,"constructionTime":120}
	  ]}
	]}}`,
	"traders.json": `[{"id":"prapor","name":"Prapor"},{"id":"therapist","name":"Therapist"}]`,
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	for name, body := range fixtures {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	regular := metadata.NewStore(metadata.Config{Mode: "regular", Lang: "en", Fetcher: upstream.DirFetcher{Dir: dir}})
	if err := regular.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	pve := metadata.NewStore(metadata.Config{Mode: "pve", Lang: "en", Fetcher: upstream.DirFetcher{Dir: dir}})
	return NewServer(map[string]*metadata.Store{"regular": regular, "pve": pve}, nil, nil)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v body=%s", v, err, rec.Body.String())
	}
	return v
}

func TestTasks(t *testing.T) {
	h := newTestServer(t).Handler()
	rec := do(t, h, http.MethodGet, "/v1/regular/tasks", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	resp := decode[protocol.TasksResponse](t, rec)
	if len(resp.Tasks) != 4 || resp.Mode != "regular" || resp.Version == 0 {
		t.Fatalf("unexpected response: mode=%s version=%d tasks=%d", resp.Mode, resp.Version, len(resp.Tasks))
	}
	if resp.Overlay.Status != "disabled" {
		t.Fatalf("overlay: %+v", resp.Overlay)
	}
	if _, ok := resp.Errors["items"]; !ok {
		t.Fatalf("expected items error slot, got %v", resp.Errors)
	}
	for _, task := range resp.Tasks {
		if task.ID == "t2" && !reflect.DeepEqual(task.Predecessors, []string{"t1"}) {
			t.Fatalf("t2 predecessors: %v", task.Predecessors)
		}
		if task.ID == "t1" && task.Objectives[0].ID != "o1:t1" {
			t.Fatalf("objective not deduplicated: %+v", task.Objectives)
		}
	}
}

func TestTask(t *testing.T) {
	h := newTestServer(t).Handler()
	rec := do(t, h, http.MethodGet, "/v1/regular/tasks/t2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	resp := decode[protocol.TaskResponse](t, rec)
	if resp.Task.Name != "Checking" || !reflect.DeepEqual(resp.Ancestors, []string{"t1"}) {
		t.Fatalf("unexpected: %+v", resp)
	}

	rec = do(t, h, http.MethodGet, "/v1/regular/tasks/nope", "")
	if rec.Code != http.StatusNotFound || decode[protocol.ErrorResponse](t, rec).Error.Code != protocol.ErrNotFound {
		t.Fatalf("missing task: %d %s", rec.Code, rec.Body.String())
	}
}

func TestModeAndReadiness(t *testing.T) {
	h := newTestServer(t).Handler()
	rec := do(t, h, http.MethodGet, "/v1/arena/tasks", "")
	if rec.Code != http.StatusNotFound || decode[protocol.ErrorResponse](t, rec).Error.Code != protocol.ErrUnknownMode {
		t.Fatalf("unknown mode: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodGet, "/v1/pve/hideout", "")
	if rec.Code != http.StatusServiceUnavailable || decode[protocol.ErrorResponse](t, rec).Error.Code != protocol.ErrNotReady {
		t.Fatalf("not ready: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz: %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/metrics", "")
	if !strings.Contains(rec.Body.String(), `tracker_ready{mode="regular"} 1`) ||
		!strings.Contains(rec.Body.String(), `tracker_ready{mode="pve"} 0`) {
		t.Fatalf("metrics:\n%s", rec.Body.String())
	}
}

func TestHideoutAndMeta(t *testing.T) {
	h := newTestServer(t).Handler()
	hide := decode[protocol.HideoutResponse](t, do(t, h, http.MethodGet, "/v1/regular/hideout", ""))
	if len(hide.Modules) != 2 || hide.ConstructionTimes["gen2"] != 180 {
		t.Fatalf("hideout: %+v", hide)
	}
	meta := decode[protocol.MetaResponse](t, do(t, h, http.MethodGet, "/v1/regular/meta", ""))
	if len(meta.Traders) != 2 || meta.Counts.Tasks != 4 || meta.Counts.Modules != 2 {
		t.Fatalf("meta: %+v", meta)
	}
	if !reflect.DeepEqual(meta.ObjectiveRenames["o1"], []string{"o1:t1", "o1:t2"}) {
		t.Fatalf("renames: %v", meta.ObjectiveRenames)
	}
}

const progressBody = `{
  "actors":["me","mate"],
  "view":"me",
  "names":{"mate":"Mate"},
  "sort":"xp",
  "direction":"desc",
  "state":{
    "unlockedTasks":{"t1":{"mate":true},"t2":{"me":true}},
    "tasksCompletions":{"t1":{"me":true}},
    "objectiveCompletions":{"o1":{"me":true}},
    "moduleCompletions":{"gen1":{"me":true}},
    "factions":{"me":"USEC","mate":"BEAR"}
  }
}`

func TestProgress(t *testing.T) {
	h := newTestServer(t).Handler()
	rec := do(t, h, http.MethodPost, "/v1/regular/progress", progressBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	resp := decode[protocol.ProgressResponse](t, rec)

	t1 := resp.Tasks["t1"]
	if !t1.IsAvailableForAny || t1.IsCompletedByAll || !reflect.DeepEqual(t1.UsersWhoNeedTask, []string{"Mate"}) {
		t.Fatalf("t1: %+v", t1)
	}
	if !resp.Tasks["t3"].Invalid {
		t.Fatalf("t3 should be invalid for me once t1 is complete")
	}
	if resp.Tasks["t2"].Invalid {
		t.Fatalf("t2 should be valid")
	}
	if _, ok := resp.Tasks["t4"].Actors["mate"]; ok || len(resp.Tasks["t4"].Actors) != 1 {
		t.Fatalf("t4 actors not faction filtered: %+v", resp.Tasks["t4"].Actors)
	}
	if !reflect.DeepEqual(resp.Order, []string{"t2", "t3", "t1", "t4"}) {
		t.Fatalf("order: %v", resp.Order)
	}
	if !resp.ObjectiveCompletions.Has("o1:t1", "me") || !resp.ObjectiveCompletions.Has("o1:t2", "me") {
		t.Fatalf("objective migration: %v", resp.ObjectiveCompletions)
	}
	gen2 := resp.Modules["gen2"]
	if !gen2.IsAvailableForAny || !reflect.DeepEqual(gen2.UsersWhoNeedModule, []string{"me"}) {
		t.Fatalf("gen2: %+v", gen2)
	}

	// the whole team view needs every actor to be blocked
	all := strings.Replace(progressBody, `"view":"me"`, `"view":"all"`, 1)
	resp = decode[protocol.ProgressResponse](t, do(t, h, http.MethodPost, "/v1/regular/progress", all))
	if resp.Tasks["t3"].Invalid {
		t.Fatalf("t3 should stay valid for the team view")
	}
}

func TestProgress_BadRequests(t *testing.T) {
	h := newTestServer(t).Handler()
	for name, body := range map[string]string{
		"schema":       `{"actors":[],"state":{}}`,
		"unknown view": `{"actors":["me"],"view":"ghost","state":{}}`,
	} {
		rec := do(t, h, http.MethodPost, "/v1/regular/progress", body)
		if rec.Code != http.StatusBadRequest || decode[protocol.ErrorResponse](t, rec).Error.Code != protocol.ErrBadRequest {
			t.Fatalf("%s: %d %s", name, rec.Code, rec.Body.String())
		}
	}
	big := `{"actors":["me"],"state":{},"names":{"x":"` + string(bytes.Repeat([]byte("a"), maxProgressBody)) + `"}}`
	if rec := do(t, h, http.MethodPost, "/v1/regular/progress", big); rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized body: %d", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/v1/regular/progress", "")
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("GET progress: %d %v", rec.Code, rec.Header())
	}
	if code := decode[protocol.ErrorResponse](t, rec).Error.Code; code != protocol.ErrMethodNotAllowed {
		t.Fatalf("GET progress code: %s", code)
	}
	if rec := do(t, h, http.MethodGet, "/admin/v1/regular/refresh", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET refresh: %d", rec.Code)
	}
}

func TestOverlayDisabled(t *testing.T) {
	h := newTestServer(t).Handler()
	resp := decode[protocol.OverlayResponse](t, do(t, h, http.MethodGet, "/v1/overlay", ""))
	if resp.Overlay.Status != "disabled" || resp.Meta != nil {
		t.Fatalf("overlay: %+v", resp)
	}
}

func TestRefresh_LoopbackOnly(t *testing.T) {
	h := newTestServer(t).Handler()
	req := httptest.NewRequest(http.MethodPost, "/admin/v1/regular/refresh", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote refresh: %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/v1/regular/refresh", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("loopback refresh: %d %s", rec.Code, rec.Body.String())
	}
}
