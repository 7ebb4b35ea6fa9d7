package overlay

import (
	"fmt"
	"sort"
	"strings"

	"tarkovtracker.org/internal/tracker/catalog"
)

// Stage names the slice of a task an upstream payload carries. Task patches
// are projected onto the stage's keys so that, say, an objectives patch is not
// planted into a core payload that has no objectives yet.
type Stage int

const (
	StageAll Stage = iota
	StageCore
	StageObjectives
	StageRewards
)

const objectivesAddKey = "objectivesAdd"

var (
	objectiveKeys = map[string]bool{"objectives": true, "failConditions": true, objectivesAddKey: true}
	rewardKeys    = map[string]bool{"startRewards": true, "finishRewards": true, "failureOutcome": true}
)

func (s Stage) carries(key string) bool {
	switch s {
	case StageCore:
		return !objectiveKeys[key] && !rewardKeys[key]
	case StageObjectives:
		return objectiveKeys[key] || key == "id" || key == "disabled"
	case StageRewards:
		return rewardKeys[key] || key == "id" || key == "disabled"
	default:
		return true
	}
}

func (s Stage) injectsAdditions() bool {
	return s == StageAll || s == StageCore
}

// ApplyEntityOverlay deep-merges corrections[id] into each entity and drops
// entities whose merged disabled flag is true. Inputs are not modified.
func ApplyEntityOverlay(entities []map[string]any, corrections Patches) []map[string]any {
	out := make([]map[string]any, 0, len(entities))
	for _, e := range entities {
		if e == nil {
			continue
		}
		id, _ := e["id"].(string)
		merged := cloneObject(e)
		if patch, ok := corrections[id]; ok && id != "" {
			merged = mergeObjects(e, patch)
		}
		if disabled(merged) {
			continue
		}
		out = append(out, merged)
	}
	return out
}

// ApplyTaskOverlay is ApplyEntityOverlay for tasks: patches are projected onto
// stage and objectivesAdd entries are appended to the task's objectives.
func ApplyTaskOverlay(tasks []map[string]any, corrections Patches, stage Stage) []map[string]any {
	out := make([]map[string]any, 0, len(tasks))
	for _, t := range tasks {
		if t == nil {
			continue
		}
		id, _ := t["id"].(string)
		merged := cloneObject(t)
		if patch, ok := corrections[id]; ok && id != "" {
			projected := make(map[string]any, len(patch))
			for k, v := range patch {
				if k != objectivesAddKey && stage.carries(k) {
					projected[k] = v
				}
			}
			merged = mergeObjects(t, projected)
			if add, ok := patch[objectivesAddKey]; ok && stage.carries(objectivesAddKey) {
				objs := catalog.AsList(merged["objectives"])
				objs = append(objs, ExpandObjectiveAdditions(catalog.AsList(Clone(add)))...)
				merged["objectives"] = objs
			}
		}
		delete(merged, objectivesAddKey)
		if disabled(merged) {
			continue
		}
		out = append(out, merged)
	}
	return out
}

// CorrectTasks applies the task corrections for stage and, for stages that
// carry task identity, appends the normalized tasksAdd entries. Tasks are
// deduplicated by id (first wins) and an addition whose id already exists is
// skipped.
func CorrectTasks(tasks []map[string]any, doc *Document, stage Stage) []map[string]any {
	if doc == nil {
		return dedupeByID(ApplyTaskOverlay(tasks, nil, stage))
	}
	corrected := dedupeByID(ApplyTaskOverlay(tasks, doc.Tasks, stage))
	if !stage.injectsAdditions() {
		return corrected
	}
	seen := make(map[string]bool, len(corrected))
	for _, t := range corrected {
		if id, _ := t["id"].(string); id != "" {
			seen[id] = true
		}
	}
	for _, add := range NormalizeTaskAdditions(doc.TasksAdd) {
		id := add["id"].(string)
		if seen[id] {
			continue
		}
		seen[id] = true
		corrected = append(corrected, add)
	}
	return corrected
}

func dedupeByID(entities []map[string]any) []map[string]any {
	seen := make(map[string]bool, len(entities))
	out := entities[:0:0]
	for _, e := range entities {
		id, _ := e["id"].(string)
		if id != "" {
			if seen[id] {
				continue
			}
			seen[id] = true
		}
		out = append(out, e)
	}
	return out
}

// NormalizeTaskAdditions turns the tasksAdd collection into task entities:
// entries need a string id and must not be disabled, factionName defaults to
// "Any", and objective lists are coerced to arrays with inferred types.
// Output is ordered by collection key.
func NormalizeTaskAdditions(tasksAdd Patches) []map[string]any {
	keys := make([]string, 0, len(tasksAdd))
	for k := range tasksAdd {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		entry := tasksAdd[k]
		id, ok := entry["id"].(string)
		if !ok || strings.TrimSpace(id) == "" || disabled(entry) {
			continue
		}
		t := cloneObject(entry)
		if f, _ := t["factionName"].(string); strings.TrimSpace(f) == "" {
			t["factionName"] = catalog.FactionAny
		}
		t["objectives"] = ExpandObjectiveAdditions(catalog.AsList(t["objectives"]))
		t["failConditions"] = inferAll(catalog.AsList(t["failConditions"]))
		delete(t, objectivesAddKey)
		out = append(out, t)
	}
	return out
}

// ExpandObjectiveAdditions infers types for added objectives. A hand-over
// objective listing several items and no explicit type becomes one
// objective per item with ids "{id}-{n}".
func ExpandObjectiveAdditions(entries []any) []any {
	out := make([]any, 0, len(entries))
	for _, e := range entries {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		items := catalog.AsList(obj["items"])
		explicit := strings.TrimSpace(stringField(obj, "type")) != ""
		desc := stringField(obj, "description")
		if !explicit && len(items) > 1 && hasWordPrefix(strings.ToLower(strings.TrimSpace(desc)), "hand over") {
			id := stringField(obj, "id")
			for i, item := range items {
				single := cloneObject(obj)
				single["id"] = fmt.Sprintf("%s-%d", id, i+1)
				single["item"] = Clone(item)
				single["items"] = []any{Clone(item)}
				if _, set := obj["foundInRaid"]; !set {
					single["foundInRaid"] = mentionsFoundInRaid(desc)
				}
				if t := InferObjectiveType(single); t != "" {
					single["type"] = t
				}
				out = append(out, single)
			}
			continue
		}
		single := cloneObject(obj)
		if t := InferObjectiveType(single); t != "" {
			single["type"] = t
		}
		out = append(out, single)
	}
	return out
}

func inferAll(entries []any) []any {
	out := make([]any, 0, len(entries))
	for _, e := range entries {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		c := cloneObject(obj)
		if t := InferObjectiveType(c); t != "" {
			c["type"] = t
		}
		out = append(out, c)
	}
	return out
}

func disabled(m map[string]any) bool {
	d, _ := m["disabled"].(bool)
	return d
}
