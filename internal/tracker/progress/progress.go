package progress

import (
	"tarkovtracker.org/internal/tracker/catalog"
)

// Flags maps an entity id to the actors it is set for.
type Flags map[string]map[string]bool

func (f Flags) Has(entityID, actor string) bool {
	return f[entityID][actor]
}

// State is the progress of one team, read-only here. Unlocked, completed and
// failed are independent bits; nothing in this package assumes a task cannot
// be both completed and failed.
type State struct {
	UnlockedTasks        Flags             `json:"unlockedTasks"`
	TasksCompletions     Flags             `json:"tasksCompletions"`
	TasksFailed          Flags             `json:"tasksFailed"`
	ObjectiveCompletions Flags             `json:"objectiveCompletions,omitempty"`
	ModuleCompletions    Flags             `json:"moduleCompletions,omitempty"`
	Factions             map[string]string `json:"factions,omitempty"`
}

type TaskState struct {
	Unlocked  bool `json:"isUnlocked"`
	Completed bool `json:"isCompleted"`
	Failed    bool `json:"isFailed"`
}

func (s State) Task(taskID, actor string) TaskState {
	return TaskState{
		Unlocked:  s.UnlockedTasks.Has(taskID, actor),
		Completed: s.TasksCompletions.Has(taskID, actor),
		Failed:    s.TasksFailed.Has(taskID, actor),
	}
}

func (ts TaskState) Available() bool { return ts.Unlocked && !ts.Completed && !ts.Failed }
func (ts TaskState) Locked() bool    { return !ts.Unlocked && !ts.Completed && !ts.Failed }

// IsCompleted is the display predicate: a failed task never shows as done.
func (ts TaskState) IsCompleted() bool { return ts.Completed && !ts.Failed }

// Status is the requirement status the state satisfies. Failed takes
// precedence over complete; anything else is active.
func (ts TaskState) Status() string {
	switch {
	case ts.Failed:
		return catalog.StatusFailed
	case ts.Completed:
		return catalog.StatusComplete
	}
	return catalog.StatusActive
}

func (ts TaskState) terminal() bool { return ts.Completed || ts.Failed }

// MatchesFaction reports whether a task restricted to a faction applies to an
// actor of the given faction. "Any" matches everyone; otherwise the
// comparison is exact.
func MatchesFaction(task catalog.Task, faction string) bool {
	if task.FactionName == "" || task.FactionName == catalog.FactionAny {
		return true
	}
	return task.FactionName == faction
}

// ActorsForTask filters actors by the task's faction restriction. Actors
// without a recorded faction only match unrestricted tasks.
func (s State) ActorsForTask(task catalog.Task, actors []string) []string {
	out := make([]string, 0, len(actors))
	for _, a := range actors {
		if MatchesFaction(task, s.Factions[a]) {
			out = append(out, a)
		}
	}
	return out
}

// MigrateObjectiveProgress moves completion recorded under a duplicated
// objective id onto every id it was renamed to. Existing flags on the new ids
// are kept. The input is not modified.
func MigrateObjectiveProgress(objectives Flags, renames map[string][]string) Flags {
	out := make(Flags, len(objectives))
	for id, actors := range objectives {
		out[id] = copyActors(actors)
	}
	for orig, renamed := range renames {
		actors, ok := out[orig]
		if !ok {
			continue
		}
		for _, id := range renamed {
			dst := out[id]
			if dst == nil {
				dst = map[string]bool{}
				out[id] = dst
			}
			for a, v := range actors {
				if v {
					dst[a] = true
				}
			}
		}
		delete(out, orig)
	}
	return out
}

func copyActors(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
