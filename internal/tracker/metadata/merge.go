package metadata

import (
	"fmt"

	"tarkovtracker.org/internal/tracker/catalog"
)

// MergeTaskObjectives copies the objective detail payload into the core task
// list by id. Entries for unknown tasks are dropped; with no core tasks loaded
// the merge is a no-op. The input slice is not modified.
func MergeTaskObjectives(tasks []catalog.Task, payload []catalog.TaskObjectives) ([]catalog.Task, int) {
	if len(tasks) == 0 || len(payload) == 0 {
		return tasks, 0
	}
	byID := make(map[string]catalog.TaskObjectives, len(payload))
	for _, p := range payload {
		byID[p.ID] = p
	}
	out := make([]catalog.Task, len(tasks))
	merged := 0
	for i, t := range tasks {
		if p, ok := byID[t.ID]; ok {
			t.Objectives = p.Objectives
			t.FailConditions = p.FailConditions
			merged++
		}
		out[i] = t
	}
	return out, merged
}

// MergeTaskRewards is MergeTaskObjectives for the rewards payload.
func MergeTaskRewards(tasks []catalog.Task, payload []catalog.TaskRewardSet) ([]catalog.Task, int) {
	if len(tasks) == 0 || len(payload) == 0 {
		return tasks, 0
	}
	byID := make(map[string]catalog.TaskRewardSet, len(payload))
	for _, p := range payload {
		byID[p.ID] = p
	}
	out := make([]catalog.Task, len(tasks))
	merged := 0
	for i, t := range tasks {
		if p, ok := byID[t.ID]; ok {
			t.StartRewards = p.StartRewards
			t.FinishRewards = p.FinishRewards
			t.FailureOutcome = p.FailureOutcome
			merged++
		}
		out[i] = t
	}
	return out, merged
}

// DedupeObjectiveIDs renames every occurrence of an objective id that appears
// in more than one place to "{id}:{taskId}". A repeat inside the same task
// gets "{id}:{taskId}:{n}" with n counting from 2. The returned table maps each
// original id to its new ids in task order. Tasks are copied; the objective
// slices of renamed tasks are reallocated.
func DedupeObjectiveIDs(tasks []catalog.Task) ([]catalog.Task, map[string][]string) {
	count := map[string]int{}
	for _, t := range tasks {
		for _, o := range t.Objectives {
			if o.ID != "" {
				count[o.ID]++
			}
		}
	}
	renames := map[string][]string{}
	out := make([]catalog.Task, len(tasks))
	for i, t := range tasks {
		dup := false
		for _, o := range t.Objectives {
			if count[o.ID] > 1 {
				dup = true
				break
			}
		}
		if dup {
			objs := make([]catalog.TaskObjective, len(t.Objectives))
			seen := map[string]int{}
			for j, o := range t.Objectives {
				if count[o.ID] > 1 {
					seen[o.ID]++
					newID := fmt.Sprintf("%s:%s", o.ID, t.ID)
					if n := seen[o.ID]; n > 1 {
						newID = fmt.Sprintf("%s:%d", newID, n)
					}
					renames[o.ID] = append(renames[o.ID], newID)
					o.ID = newID
				}
				objs[j] = o
			}
			t.Objectives = objs
		}
		out[i] = t
	}
	return out, renames
}
