package progress

import (
	"tarkovtracker.org/internal/tracker/catalog"
)

type TeamTaskStatus struct {
	IsAvailableForAny bool     `json:"isAvailableForAny"`
	IsCompletedByAll  bool     `json:"isCompletedByAll"`
	IsFailedForAny    bool     `json:"isFailedForAny"`
	UsersWhoNeedTask  []string `json:"usersWhoNeedTask"`
}

// AggregateTeamTaskStatus folds per-actor task state over actors, in order.
// displayName, when set, maps actor ids in UsersWhoNeedTask.
func AggregateTeamTaskStatus(state State, taskID string, actors []string, displayName func(string) string) TeamTaskStatus {
	out := TeamTaskStatus{
		IsCompletedByAll: len(actors) > 0,
		UsersWhoNeedTask: []string{},
	}
	for _, a := range actors {
		ts := state.Task(taskID, a)
		if ts.Available() {
			out.IsAvailableForAny = true
			name := a
			if displayName != nil {
				name = displayName(a)
			}
			out.UsersWhoNeedTask = append(out.UsersWhoNeedTask, name)
		}
		if !ts.IsCompleted() {
			out.IsCompletedByAll = false
		}
		if ts.Failed {
			out.IsFailedForAny = true
		}
	}
	return out
}

type ModuleLookup interface {
	Module(id string) (catalog.HideoutModule, bool)
}

type ModuleState struct {
	Completed bool `json:"isCompleted"`
	Available bool `json:"isAvailable"`
	Locked    bool `json:"isLocked"`
}

// Module derives a hideout module's state for actor: available once every
// direct prerequisite module is complete and the module itself is not.
func (s State) Module(modules ModuleLookup, moduleID, actor string) ModuleState {
	if s.ModuleCompletions.Has(moduleID, actor) {
		return ModuleState{Completed: true}
	}
	m, ok := modules.Module(moduleID)
	if !ok {
		return ModuleState{Locked: true}
	}
	for _, p := range m.Parents {
		if !s.ModuleCompletions.Has(p, actor) {
			return ModuleState{Locked: true}
		}
	}
	return ModuleState{Available: true}
}

type TeamModuleStatus struct {
	IsAvailableForAny  bool     `json:"isAvailableForAny"`
	IsCompletedByAll   bool     `json:"isCompletedByAll"`
	UsersWhoNeedModule []string `json:"usersWhoNeedModule"`
}

func AggregateTeamModuleStatus(state State, modules ModuleLookup, moduleID string, actors []string, displayName func(string) string) TeamModuleStatus {
	out := TeamModuleStatus{
		IsCompletedByAll:   len(actors) > 0,
		UsersWhoNeedModule: []string{},
	}
	for _, a := range actors {
		ms := state.Module(modules, moduleID, a)
		if ms.Available {
			out.IsAvailableForAny = true
			name := a
			if displayName != nil {
				name = displayName(a)
			}
			out.UsersWhoNeedModule = append(out.UsersWhoNeedModule, name)
		}
		if !ms.Completed {
			out.IsCompletedByAll = false
		}
	}
	return out
}
