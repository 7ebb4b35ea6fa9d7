package metadata

import (
	"tarkovtracker.org/internal/tracker/catalog"
	"tarkovtracker.org/internal/tracker/graph"
	"tarkovtracker.org/internal/tracker/overlay"
)

// Snapshot is an immutable view of the dataset at one version. Readers hold a
// snapshot for the duration of a request; the store publishes a new one after
// every merge.
type Snapshot struct {
	Version uint64
	Mode    string
	Lang    string

	Tasks    graph.TaskData
	Hideout  graph.HideoutData
	Items    []catalog.Item
	Traders  []catalog.Trader
	Levels   []catalog.PlayerLevel
	Prestige []catalog.Prestige

	// ObjectiveRenames maps an objective id that was duplicated upstream to the
	// ids it was renamed to.
	ObjectiveRenames map[string][]string
	Overlay          overlay.Provenance
	Errors           map[Domain]string

	taskIdx      map[string]int
	moduleIdx    map[string]int
	itemIdx      map[string]int
	traderIdx    map[string]int
	objectiveIdx map[string]objectiveRef
}

type objectiveRef struct {
	task int
	obj  int
}

func emptySnapshot(mode, lang string) *Snapshot {
	return &Snapshot{Mode: mode, Lang: lang, Errors: map[Domain]string{}}
}

func (s *Snapshot) index() {
	s.taskIdx = make(map[string]int, len(s.Tasks.Tasks))
	s.objectiveIdx = map[string]objectiveRef{}
	for i, t := range s.Tasks.Tasks {
		s.taskIdx[t.ID] = i
		for j, o := range t.Objectives {
			if o.ID != "" {
				s.objectiveIdx[o.ID] = objectiveRef{task: i, obj: j}
			}
		}
	}
	s.moduleIdx = make(map[string]int, len(s.Hideout.Modules))
	for i, m := range s.Hideout.Modules {
		s.moduleIdx[m.ID] = i
	}
	s.itemIdx = make(map[string]int, len(s.Items))
	for i, it := range s.Items {
		s.itemIdx[it.ID] = i
	}
	s.traderIdx = make(map[string]int, len(s.Traders))
	for i, tr := range s.Traders {
		s.traderIdx[tr.ID] = i
	}
}

func (s *Snapshot) Task(id string) (catalog.Task, bool) {
	i, ok := s.taskIdx[id]
	if !ok {
		return catalog.Task{}, false
	}
	return s.Tasks.Tasks[i], true
}

func (s *Snapshot) Module(id string) (catalog.HideoutModule, bool) {
	i, ok := s.moduleIdx[id]
	if !ok {
		return catalog.HideoutModule{}, false
	}
	return s.Hideout.Modules[i], true
}

func (s *Snapshot) Item(id string) (catalog.Item, bool) {
	i, ok := s.itemIdx[id]
	if !ok {
		return catalog.Item{}, false
	}
	return s.Items[i], true
}

func (s *Snapshot) Trader(id string) (catalog.Trader, bool) {
	i, ok := s.traderIdx[id]
	if !ok {
		return catalog.Trader{}, false
	}
	return s.Traders[i], true
}

// Objective returns the objective and the id of the task that owns it.
func (s *Snapshot) Objective(id string) (catalog.TaskObjective, string, bool) {
	ref, ok := s.objectiveIdx[id]
	if !ok {
		return catalog.TaskObjective{}, "", false
	}
	t := s.Tasks.Tasks[ref.task]
	return t.Objectives[ref.obj], t.ID, true
}

// TaskList returns tasks in corpus order.
func (s *Snapshot) TaskList() []catalog.Task { return s.Tasks.Tasks }

// LevelForExperience resolves xp against the loaded player level table.
func (s *Snapshot) LevelForExperience(xp int) int {
	return catalog.LevelForExperience(s.Levels, xp)
}
