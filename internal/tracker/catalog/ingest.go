package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// EntityError describes an upstream entity that was skipped during decoding.
type EntityError struct {
	Kind  string
	Index int
	ID    string
	Err   error
}

func (e *EntityError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s[%d] id=%s: %v", e.Kind, e.Index, e.ID, e.Err)
	}
	return fmt.Sprintf("%s[%d]: %v", e.Kind, e.Index, e.Err)
}

func (e *EntityError) Unwrap() error { return e.Err }

// AsList is the only place that tolerates upstream collections delivered either
// as a JSON array or as an object keyed by id or index. Everything past this
// boundary sees arrays.
func AsList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]any, len(t))
		copy(out, t)
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sortKeys(keys)
		out := make([]any, 0, len(keys))
		for _, k := range keys {
			out = append(out, t[k])
		}
		return out
	default:
		return nil
	}
}

// sortKeys orders integer-like keys numerically (the order a JSON object with
// index keys was produced in) and everything else lexically.
func sortKeys(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return keys[i] < keys[j]
	})
}

var objectiveListFields = []string{"objectives", "failConditions"}

// normalizeEntity returns a shallow copy of m with list-shaped fields coerced
// to arrays.
func normalizeEntity(m map[string]any, listFields []string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, f := range listFields {
		if v, ok := out[f]; ok {
			if v == nil {
				delete(out, f)
				continue
			}
			out[f] = AsList(v)
		}
	}
	return out
}

func decodeEach[T any](kind string, raw []map[string]any, listFields []string, idOf func(*T) string) ([]T, []error) {
	out := make([]T, 0, len(raw))
	var errs []error
	for i, m := range raw {
		if m == nil {
			errs = append(errs, &EntityError{Kind: kind, Index: i, Err: fmt.Errorf("null entity")})
			continue
		}
		id, _ := m["id"].(string)
		b, err := json.Marshal(normalizeEntity(m, listFields))
		if err != nil {
			errs = append(errs, &EntityError{Kind: kind, Index: i, ID: id, Err: err})
			continue
		}
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			errs = append(errs, &EntityError{Kind: kind, Index: i, ID: id, Err: err})
			continue
		}
		if idOf != nil && strings.TrimSpace(idOf(&v)) == "" {
			errs = append(errs, &EntityError{Kind: kind, Index: i, Err: fmt.Errorf("empty id")})
			continue
		}
		out = append(out, v)
	}
	return out, errs
}

// DecodeTasks decodes corrected task entities. Malformed entities are skipped
// and reported; the rest of the corpus is kept.
func DecodeTasks(raw []map[string]any) ([]Task, []error) {
	return decodeEach[Task]("task", raw, objectiveListFields, func(t *Task) string { return t.ID })
}

func DecodeTaskObjectives(raw []map[string]any) ([]TaskObjectives, []error) {
	return decodeEach[TaskObjectives]("taskObjectives", raw, objectiveListFields, func(t *TaskObjectives) string { return t.ID })
}

func DecodeTaskRewards(raw []map[string]any) ([]TaskRewardSet, []error) {
	return decodeEach[TaskRewardSet]("taskRewards", raw, nil, func(t *TaskRewardSet) string { return t.ID })
}

func DecodeHideoutStations(raw []map[string]any) ([]HideoutStation, []error) {
	return decodeEach[HideoutStation]("hideoutStation", raw, []string{"levels"}, func(s *HideoutStation) string { return s.ID })
}

func DecodeItems(raw []map[string]any) ([]Item, []error) {
	return decodeEach[Item]("item", raw, nil, func(it *Item) string { return it.ID })
}

func DecodeTraders(raw []map[string]any) ([]Trader, []error) {
	return decodeEach[Trader]("trader", raw, nil, func(t *Trader) string { return t.ID })
}

func DecodePlayerLevels(raw []map[string]any) ([]PlayerLevel, []error) {
	levels, errs := decodeEach[PlayerLevel]("playerLevel", raw, nil, nil)
	sort.SliceStable(levels, func(i, j int) bool { return levels[i].Level < levels[j].Level })
	return levels, errs
}

func DecodePrestige(raw []map[string]any) ([]Prestige, []error) {
	out, errs := decodeEach[Prestige]("prestige", raw, []string{"conditions"}, func(p *Prestige) string { return p.ID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].PrestigeLevel < out[j].PrestigeLevel })
	return out, errs
}
