package graph

import (
	"errors"
	"io"
	"log"

	"tarkovtracker.org/internal/tracker/catalog"
)

type ObjectivePosition struct {
	MapID    string           `json:"mapId"`
	ZoneID   string           `json:"zoneId,omitempty"`
	Position catalog.Position `json:"position"`
}

// NeededItem is one item requirement contributed by a task objective or a
// hideout module.
type NeededItem struct {
	Source       string   `json:"source"` // "taskObjective" or "hideoutModule"
	ID           string   `json:"id"`     // objective id or requirement id
	TaskID       string   `json:"taskId,omitempty"`
	ModuleID     string   `json:"moduleId,omitempty"`
	ItemID       string   `json:"itemId"`
	Alternatives []string `json:"alternatives,omitempty"`
	Count        int      `json:"count"`
	FoundInRaid  bool     `json:"foundInRaid,omitempty"`
}

const (
	SourceTaskObjective = "taskObjective"
	SourceHideoutModule = "hideoutModule"
)

type TaskData struct {
	Tasks                    []catalog.Task
	Graph                    *Graph
	MapTasks                 map[string][]string
	ObjectiveMaps            map[string][]string
	ObjectiveGPS             map[string][]ObjectivePosition
	AlternativeTasks         map[string][]string
	AlternativeTaskSources   map[string][]string
	NeededItemTaskObjectives []NeededItem
}

var itemObjectiveTypes = map[string]bool{
	"giveItem":       true,
	"findItem":       true,
	"giveQuestItem":  true,
	"findQuestItem":  true,
	"plantItem":      true,
	"plantQuestItem": true,
	"buildWeapon":    true,
	"useItem":        true,
	"mark":           true,
}

// RequiresCompletion reports whether a requirement status list means the
// prerequisite has to be completed. An empty list is treated as completion.
func RequiresCompletion(status []string) bool {
	if len(status) == 0 {
		return true
	}
	for _, s := range status {
		if s == catalog.StatusComplete {
			return true
		}
	}
	return false
}

// ProcessTaskData builds the task graph and derived indexes. The input slice
// is not modified; malformed entities are skipped and logged.
func ProcessTaskData(tasks []catalog.Task, logger *log.Logger) TaskData {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	out := make([]catalog.Task, 0, len(tasks))
	seen := make(map[string]bool, len(tasks))
	b := NewBuilder(logger)
	for _, t := range tasks {
		if t.ID == "" {
			logger.Printf("tasks: skipping task without id (name=%q)", t.Name)
			continue
		}
		if seen[t.ID] {
			logger.Printf("tasks: skipping duplicate task %s", t.ID)
			continue
		}
		seen[t.ID] = true
		b.AddNode(t.ID)
		out = append(out, t)
	}

	for _, t := range out {
		for _, req := range t.TaskRequirements {
			if req.Task.ID == "" {
				logger.Printf("tasks: %s has a requirement without task id", t.ID)
				continue
			}
			if !RequiresCompletion(req.Status) {
				continue
			}
			if !b.Has(req.Task.ID) {
				logger.Printf("tasks: %s requires unknown task %s", t.ID, req.Task.ID)
				continue
			}
			if err := b.AddEdge(req.Task.ID, t.ID); err != nil && !errors.Is(err, ErrCycle) {
				logger.Printf("tasks: %v", err)
			}
		}
	}
	g := b.Build()

	data := TaskData{
		Graph:                  g,
		MapTasks:               map[string][]string{},
		ObjectiveMaps:          map[string][]string{},
		ObjectiveGPS:           map[string][]ObjectivePosition{},
		AlternativeTasks:       map[string][]string{},
		AlternativeTaskSources: map[string][]string{},
	}

	for _, t := range out {
		for _, fc := range t.FailConditions {
			if fc.Task == nil || fc.Task.ID == "" || fc.Task.ID == t.ID {
				continue
			}
			if !containsStatus(fc.Status, catalog.StatusComplete) {
				continue
			}
			data.AlternativeTasks[fc.Task.ID] = appendUnique(data.AlternativeTasks[fc.Task.ID], t.ID)
			data.AlternativeTaskSources[t.ID] = appendUnique(data.AlternativeTaskSources[t.ID], fc.Task.ID)
		}
	}

	for i := range out {
		t := &out[i]
		t.Parents = g.Parents(t.ID)
		t.Children = g.Children(t.ID)
		t.Predecessors = g.Ancestors(t.ID)
		t.Successors = g.Descendants(t.ID)
		if alts := data.AlternativeTasks[t.ID]; len(alts) > 0 {
			t.Alternatives = append([]string(nil), alts...)
		} else {
			t.Alternatives = nil
		}

		if t.Map != nil && t.Map.ID != "" {
			data.MapTasks[t.Map.ID] = appendUnique(data.MapTasks[t.Map.ID], t.ID)
		}
		for _, o := range t.Objectives {
			indexObjective(&data, t.ID, o)
		}
	}
	data.Tasks = out
	return data
}

func indexObjective(data *TaskData, taskID string, o catalog.TaskObjective) {
	for _, m := range o.Maps {
		if m.ID == "" {
			continue
		}
		data.MapTasks[m.ID] = appendUnique(data.MapTasks[m.ID], taskID)
		if o.ID != "" {
			data.ObjectiveMaps[o.ID] = appendUnique(data.ObjectiveMaps[o.ID], m.ID)
		}
	}
	for _, z := range o.Zones {
		if z.Map.ID == "" {
			continue
		}
		data.MapTasks[z.Map.ID] = appendUnique(data.MapTasks[z.Map.ID], taskID)
		if o.ID == "" {
			continue
		}
		data.ObjectiveMaps[o.ID] = appendUnique(data.ObjectiveMaps[o.ID], z.Map.ID)
		if z.Position != nil {
			data.ObjectiveGPS[o.ID] = append(data.ObjectiveGPS[o.ID], ObjectivePosition{
				MapID: z.Map.ID, ZoneID: z.ID, Position: *z.Position,
			})
		}
	}

	if !itemObjectiveTypes[o.Type] {
		return
	}
	var primary string
	var alts []string
	switch {
	case o.Type == "mark" && o.MarkerItem != nil:
		primary = o.MarkerItem.ID
	case (o.Type == "giveQuestItem" || o.Type == "findQuestItem" || o.Type == "plantQuestItem") && o.QuestItem != nil:
		primary = o.QuestItem.ID
	case o.Item != nil:
		primary = o.Item.ID
	}
	for _, it := range o.Items {
		if it.ID == "" {
			continue
		}
		if primary == "" {
			primary = it.ID
			continue
		}
		if it.ID != primary {
			alts = append(alts, it.ID)
		}
	}
	if primary == "" {
		return
	}
	count := o.Count
	if count <= 0 {
		count = 1
	}
	data.NeededItemTaskObjectives = append(data.NeededItemTaskObjectives, NeededItem{
		Source:       SourceTaskObjective,
		ID:           o.ID,
		TaskID:       taskID,
		ItemID:       primary,
		Alternatives: alts,
		Count:        count,
		FoundInRaid:  o.FoundInRaid,
	})
}

func containsStatus(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func appendUnique(list []string, v string) []string {
	for _, e := range list {
		if e == v {
			return list
		}
	}
	return append(list, v)
}
