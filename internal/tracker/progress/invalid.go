package progress

import (
	"tarkovtracker.org/internal/tracker/catalog"
)

// ViewAll aggregates invalidity over every visible team member.
const ViewAll = "all"

type TaskLookup interface {
	Task(id string) (catalog.Task, bool)
}

// Checker answers invalidity questions for one progress state. It memoizes
// per (task, actor) and is not safe for concurrent use.
type Checker struct {
	tasks TaskLookup
	state State
	memo  map[[2]string]bool
	busy  map[[2]string]bool
}

func NewChecker(tasks TaskLookup, state State) *Checker {
	return &Checker{
		tasks: tasks,
		state: state,
		memo:  map[[2]string]bool{},
		busy:  map[[2]string]bool{},
	}
}

// Invalid reports whether the task can never be completed by actor.
//
// A requirement on task A with accepted statuses S is unsatisfiable when A
// reached a terminal status outside S, or when S accepts completion only and
// A is itself invalid. An empty S means completion. A set containing both
// complete and failed is a gate and accepts either outcome. Active is only
// satisfied while A is unfinished. Alternative tasks are not consulted.
func (c *Checker) Invalid(taskID, actor string) bool {
	key := [2]string{taskID, actor}
	if v, ok := c.memo[key]; ok {
		return v
	}
	if c.busy[key] {
		// requirement loop in the data: treat as satisfiable
		return false
	}
	c.busy[key] = true
	defer delete(c.busy, key)

	task, ok := c.tasks.Task(taskID)
	if !ok {
		return false
	}
	invalid := false
	for _, req := range task.TaskRequirements {
		if req.Task.ID == "" || req.Task.ID == taskID {
			continue
		}
		if _, known := c.tasks.Task(req.Task.ID); !known {
			continue
		}
		if c.unsatisfiable(req, actor) {
			invalid = true
			break
		}
	}
	c.memo[key] = invalid
	return invalid
}

func (c *Checker) unsatisfiable(req catalog.TaskRequirement, actor string) bool {
	accepts := acceptedStatuses(req.Status)
	prereq := c.state.Task(req.Task.ID, actor)
	if prereq.terminal() {
		return !accepts[prereq.Status()]
	}
	if accepts[catalog.StatusComplete] && !accepts[catalog.StatusFailed] {
		return c.Invalid(req.Task.ID, actor)
	}
	return false
}

func acceptedStatuses(status []string) map[string]bool {
	if len(status) == 0 {
		return map[string]bool{catalog.StatusComplete: true}
	}
	out := make(map[string]bool, len(status))
	for _, s := range status {
		out[s] = true
	}
	return out
}

// InvalidForView resolves invalidity for a user view: a single actor id, or
// ViewAll, which needs the task to be invalid for every actor. ViewAll with
// no actors is never invalid.
func (c *Checker) InvalidForView(taskID, view string, actors []string) bool {
	if view != ViewAll {
		return c.Invalid(taskID, view)
	}
	if len(actors) == 0 {
		return false
	}
	for _, a := range actors {
		if !c.Invalid(taskID, a) {
			return false
		}
	}
	return true
}

// Invalid is a one-shot convenience around Checker.
func Invalid(tasks TaskLookup, state State, taskID, actor string) bool {
	return NewChecker(tasks, state).Invalid(taskID, actor)
}
