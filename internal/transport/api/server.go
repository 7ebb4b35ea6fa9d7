package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"tarkovtracker.org/internal/protocol"
	"tarkovtracker.org/internal/tracker/metadata"
	"tarkovtracker.org/internal/tracker/overlay"
	"tarkovtracker.org/internal/tracker/progress"
	"tarkovtracker.org/internal/tracker/tasksort"
)

const maxProgressBody = 4 << 20

// Server exposes the per-mode datasets over HTTP.
type Server struct {
	stores  map[string]*metadata.Store
	overlay metadata.OverlaySource
	log     *log.Logger
}

// NewServer serves stores keyed by game mode. ov may be nil when overlay
// corrections are not configured.
func NewServer(stores map[string]*metadata.Store, ov metadata.OverlaySource, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{stores: stores, overlay: ov, log: logger}
}

func (s *Server) Modes() []string {
	out := make([]string, 0, len(s.stores))
	for m := range s.stores {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

// Register mounts every route on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /v1/overlay", s.handleOverlay)
	mux.HandleFunc("GET /v1/{mode}/tasks", s.withSnapshot(s.handleTasks))
	mux.HandleFunc("GET /v1/{mode}/tasks/{id}", s.withSnapshot(s.handleTask))
	mux.HandleFunc("GET /v1/{mode}/hideout", s.withSnapshot(s.handleHideout))
	mux.HandleFunc("GET /v1/{mode}/meta", s.withSnapshot(s.handleMeta))
	mux.HandleFunc("POST /v1/{mode}/progress", s.withSnapshot(s.handleProgress))
	mux.HandleFunc("/v1/{mode}/progress", methodNotAllowed(http.MethodPost))
	mux.HandleFunc("POST /admin/v1/{mode}/refresh", s.handleRefresh)
	mux.HandleFunc("/admin/v1/{mode}/refresh", methodNotAllowed(http.MethodPost))
}

func methodNotAllowed(allow string) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Allow", allow)
		writeError(rw, http.StatusMethodNotAllowed, protocol.ErrMethodNotAllowed, r.Method+" not allowed, use "+allow)
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

type snapshotHandler func(rw http.ResponseWriter, r *http.Request, snap *metadata.Snapshot)

// withSnapshot resolves {mode} and pins one snapshot for the whole request.
func (s *Server) withSnapshot(h snapshotHandler) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		store, ok := s.stores[r.PathValue("mode")]
		if !ok {
			writeError(rw, http.StatusNotFound, protocol.ErrUnknownMode, fmt.Sprintf("unknown mode %q", r.PathValue("mode")))
			return
		}
		if !store.Ready() {
			writeError(rw, http.StatusServiceUnavailable, protocol.ErrNotReady, "dataset is still loading")
			return
		}
		h(rw, r, store.Snapshot())
	}
}

func envelope(snap *metadata.Snapshot) protocol.Envelope {
	env := protocol.Envelope{
		ProtocolVersion: protocol.Version,
		Mode:            snap.Mode,
		Lang:            snap.Lang,
		Version:         snap.Version,
		Overlay:         snap.Overlay,
	}
	if len(snap.Errors) > 0 {
		env.Errors = make(map[string]string, len(snap.Errors))
		for d, msg := range snap.Errors {
			env.Errors[string(d)] = msg
		}
	}
	return env
}

func (s *Server) handleTasks(rw http.ResponseWriter, r *http.Request, snap *metadata.Snapshot) {
	td := snap.Tasks
	writeJSON(rw, http.StatusOK, protocol.TasksResponse{
		Envelope:               envelope(snap),
		Tasks:                  td.Tasks,
		MapTasks:               td.MapTasks,
		ObjectiveMaps:          td.ObjectiveMaps,
		ObjectiveGPS:           td.ObjectiveGPS,
		AlternativeTasks:       td.AlternativeTasks,
		AlternativeTaskSources: td.AlternativeTaskSources,
		NeededItems:            td.NeededItemTaskObjectives,
	})
}

func (s *Server) handleTask(rw http.ResponseWriter, r *http.Request, snap *metadata.Snapshot) {
	id := r.PathValue("id")
	task, ok := snap.Task(id)
	if !ok {
		writeError(rw, http.StatusNotFound, protocol.ErrNotFound, fmt.Sprintf("task %q not found", id))
		return
	}
	resp := protocol.TaskResponse{Envelope: envelope(snap), Task: task, Ancestors: []string{}, Descendants: []string{}}
	if g := snap.Tasks.Graph; g != nil {
		resp.Ancestors = g.Ancestors(id)
		resp.Descendants = g.Descendants(id)
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (s *Server) handleHideout(rw http.ResponseWriter, r *http.Request, snap *metadata.Snapshot) {
	hd := snap.Hideout
	writeJSON(rw, http.StatusOK, protocol.HideoutResponse{
		Envelope:          envelope(snap),
		Modules:           hd.Modules,
		StationModules:    hd.StationModules,
		Crafts:            hd.Crafts,
		NeededItems:       hd.NeededItemHideoutModules,
		ConstructionTimes: hd.TotalConstructionTimes(),
	})
}

func (s *Server) handleMeta(rw http.ResponseWriter, r *http.Request, snap *metadata.Snapshot) {
	counts := protocol.Counts{
		Tasks:   len(snap.Tasks.Tasks),
		Modules: len(snap.Hideout.Modules),
		Items:   len(snap.Items),
		Crafts:  len(snap.Hideout.Crafts),
	}
	if g := snap.Tasks.Graph; g != nil {
		counts.TaskEdges = g.EdgeCount()
	}
	if g := snap.Hideout.Graph; g != nil {
		counts.ModuleEdge = g.EdgeCount()
	}
	writeJSON(rw, http.StatusOK, protocol.MetaResponse{
		Envelope:         envelope(snap),
		Traders:          snap.Traders,
		Levels:           snap.Levels,
		Prestige:         snap.Prestige,
		ObjectiveRenames: snap.ObjectiveRenames,
		Counts:           counts,
	})
}

func (s *Server) handleProgress(rw http.ResponseWriter, r *http.Request, snap *metadata.Snapshot) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxProgressBody+1))
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrProtoBadRequest, err.Error())
		return
	}
	if len(body) > maxProgressBody {
		writeError(rw, http.StatusRequestEntityTooLarge, protocol.ErrProtoBadRequest, "request body too large")
		return
	}
	req, err := protocol.DecodeProgressRequest(body)
	if err != nil {
		code := protocol.ErrInternal
		status := http.StatusInternalServerError
		if errors.Is(err, protocol.ErrInvalidRequest) {
			code, status = protocol.ErrBadRequest, http.StatusBadRequest
		}
		writeError(rw, status, code, err.Error())
		return
	}
	view := req.View
	if view == "" {
		view = progress.ViewAll
	}
	if view != progress.ViewAll && !slices.Contains(req.Actors, view) {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, fmt.Sprintf("view %q is not one of the actors", view))
		return
	}
	mode := tasksort.ByDefault
	if req.Sort != "" {
		mode = tasksort.Mode(req.Sort)
	}
	if !mode.Valid() {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, fmt.Sprintf("unknown sort %q", req.Sort))
		return
	}
	dir := tasksort.Asc
	if req.Direction == string(tasksort.Desc) {
		dir = tasksort.Desc
	}

	writeJSON(rw, http.StatusOK, buildProgress(snap, req, view, mode, dir))
}

func buildProgress(snap *metadata.Snapshot, req protocol.ProgressRequest, view string, mode tasksort.Mode, dir tasksort.Direction) protocol.ProgressResponse {
	state := req.State
	state.ObjectiveCompletions = progress.MigrateObjectiveProgress(state.ObjectiveCompletions, snap.ObjectiveRenames)
	displayName := func(id string) string {
		if n := strings.TrimSpace(req.Names[id]); n != "" {
			return n
		}
		return id
	}

	checker := progress.NewChecker(snap, state)
	tasks := snap.TaskList()
	resp := protocol.ProgressResponse{
		Envelope:             envelope(snap),
		Tasks:                make(map[string]protocol.TaskProgress, len(tasks)),
		Modules:              make(map[string]progress.TeamModuleStatus, len(snap.Hideout.Modules)),
		Order:                make([]string, 0, len(tasks)),
		ObjectiveCompletions: state.ObjectiveCompletions,
	}
	for _, t := range tasks {
		actors := state.ActorsForTask(t, req.Actors)
		tp := protocol.TaskProgress{
			TeamTaskStatus: progress.AggregateTeamTaskStatus(state, t.ID, actors, displayName),
			Invalid:        checker.InvalidForView(t.ID, view, actors),
			Actors:         make(map[string]progress.TaskState, len(actors)),
		}
		for _, a := range actors {
			tp.Actors[a] = state.Task(t.ID, a)
		}
		resp.Tasks[t.ID] = tp
	}
	for _, m := range snap.Hideout.Modules {
		resp.Modules[m.ID] = progress.AggregateTeamModuleStatus(state, snap, m.ID, req.Actors, displayName)
	}
	sorted := tasksort.Sort(tasks, mode, dir, tasksort.Input{State: state, Actors: req.Actors, Teammates: req.Actors})
	for _, t := range sorted {
		resp.Order = append(resp.Order, t.ID)
	}
	return resp
}

func (s *Server) handleOverlay(rw http.ResponseWriter, r *http.Request) {
	if s.overlay == nil {
		writeJSON(rw, http.StatusOK, protocol.OverlayResponse{Overlay: overlay.Provenance{Status: overlay.StatusDisabled}})
		return
	}
	res, err := s.overlay.Get(r.Context())
	if err != nil {
		res.Provenance.Status = overlay.StatusUnavailable
		res.Provenance.Error = err.Error()
	}
	resp := protocol.OverlayResponse{Overlay: res.Provenance}
	if doc := res.Doc; doc != nil {
		resp.Meta = &doc.Meta
		resp.Patches = map[string]int{
			"tasks":    len(doc.Tasks),
			"tasksAdd": len(doc.TasksAdd),
			"items":    len(doc.Items),
			"traders":  len(doc.Traders),
			"hideout":  len(doc.Hideout),
		}
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (s *Server) handleReady(rw http.ResponseWriter, r *http.Request) {
	out := map[string]bool{}
	ready := true
	for _, m := range s.Modes() {
		out[m] = s.stores[m].Ready()
		ready = ready && out[m]
	}
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(rw, status, map[string]any{"ready": ready, "modes": out})
}

func (s *Server) handleMetrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
	modes := s.Modes()
	snaps := make(map[string]*metadata.Snapshot, len(modes))
	for _, m := range modes {
		snaps[m] = s.stores[m].Snapshot()
	}

	// Minimal Prometheus exposition format.
	gauge := func(name, help string, value func(mode string) int) {
		fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE %s gauge\n", name)
		for _, m := range modes {
			fmt.Fprintf(rw, "%s{mode=%q} %d\n", name, m, value(m))
		}
	}
	gauge("tracker_ready", "1 once the mode has its core tasks.", func(m string) int {
		if s.stores[m].Ready() {
			return 1
		}
		return 0
	})
	gauge("tracker_dataset_version", "Published snapshot version.", func(m string) int { return int(snaps[m].Version) })
	gauge("tracker_tasks", "Tasks in the current snapshot.", func(m string) int { return len(snaps[m].Tasks.Tasks) })
	gauge("tracker_hideout_modules", "Hideout modules in the current snapshot.", func(m string) int { return len(snaps[m].Hideout.Modules) })
	gauge("tracker_items", "Items in the current snapshot.", func(m string) int { return len(snaps[m].Items) })

	fmt.Fprintf(rw, "# HELP tracker_domain_error Domains whose last load failed.\n")
	fmt.Fprintf(rw, "# TYPE tracker_domain_error gauge\n")
	for _, m := range modes {
		domains := make([]string, 0, len(snaps[m].Errors))
		for d := range snaps[m].Errors {
			domains = append(domains, string(d))
		}
		slices.Sort(domains)
		for _, d := range domains {
			fmt.Fprintf(rw, "tracker_domain_error{mode=%q,domain=%q} 1\n", m, d)
		}
	}

	fmt.Fprintf(rw, "# HELP tracker_overlay_status Overlay status the snapshot was built with.\n")
	fmt.Fprintf(rw, "# TYPE tracker_overlay_status gauge\n")
	for _, m := range modes {
		fmt.Fprintf(rw, "tracker_overlay_status{mode=%q,status=%q} 1\n", m, snaps[m].Overlay.Status)
	}
}

// handleRefresh forces a reload of one mode. Loopback only.
func (s *Server) handleRefresh(rw http.ResponseWriter, r *http.Request) {
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	store, ok := s.stores[r.PathValue("mode")]
	if !ok {
		writeError(rw, http.StatusNotFound, protocol.ErrUnknownMode, fmt.Sprintf("unknown mode %q", r.PathValue("mode")))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()
	if err := store.Refresh(ctx); err != nil {
		s.log.Printf("refresh %s: %v", store.Mode(), err)
		code := protocol.ErrInternal
		if errors.Is(err, metadata.ErrNotReady) {
			code = protocol.ErrNotReady
		}
		writeError(rw, http.StatusServiceUnavailable, code, err.Error())
		return
	}
	snap := store.Snapshot()
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "mode": store.Mode(), "version": snap.Version})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, code, msg string) {
	writeJSON(rw, status, protocol.ErrorResponse{Error: protocol.ErrorBody{Code: code, Message: msg}})
}

func isLoopbackRemote(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(strings.TrimSpace(remoteAddr))
	if err != nil {
		host = strings.TrimSpace(remoteAddr)
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
