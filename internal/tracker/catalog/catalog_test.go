package catalog

import (
	"errors"
	"testing"
)

func TestAsList_ObjectKeyedByIndex(t *testing.T) {
	got := AsList(map[string]any{
		"10": "c",
		"2":  "b",
		"0":  "a",
	})
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected order: %v", got)
	}
	if AsList("nope") != nil {
		t.Fatalf("scalar should normalize to nil")
	}
}

func TestDecodeTasks_SkipsMalformed(t *testing.T) {
	raw := []map[string]any{
		{"id": "t1", "name": "Debut", "objectives": map[string]any{
			"0": map[string]any{"id": "o1", "description": "Eliminate 5 Scavs"},
		}},
		{"name": "no id"},
		{"id": "t3", "name": "Bad level", "minPlayerLevel": "ten"},
		nil,
	}
	tasks, errs := DecodeTasks(raw)
	if len(tasks) != 1 || tasks[0].ID != "t1" {
		t.Fatalf("tasks: %+v", tasks)
	}
	if len(tasks[0].Objectives) != 1 || tasks[0].Objectives[0].ID != "o1" {
		t.Fatalf("objectives not normalized: %+v", tasks[0].Objectives)
	}
	if len(errs) != 3 {
		t.Fatalf("errs: got %d want 3 (%v)", len(errs), errs)
	}
	var ee *EntityError
	if !errors.As(errs[1], &ee) || ee.ID != "t3" {
		t.Fatalf("expected entity error for t3, got %v", errs[1])
	}
	if raw[0]["objectives"] == nil {
		t.Fatalf("input mutated")
	}
	if _, isMap := raw[0]["objectives"].(map[string]any); !isMap {
		t.Fatalf("input objectives replaced")
	}
}

func TestHydrateItem_StubOverridesWin(t *testing.T) {
	full := Item{ID: "m4", Name: "Colt M4A1", ShortName: "M4A1", Width: 4, Height: 2, Types: []string{"gun"}}
	stub := Item{ID: "m4", Name: "M4A1 preset", Properties: map[string]any{"default": false}}
	got := HydrateItem(stub, full)
	if got.Name != "M4A1 preset" {
		t.Fatalf("name override lost: %q", got.Name)
	}
	if got.ShortName != "M4A1" || got.Width != 4 || len(got.Types) != 1 {
		t.Fatalf("catalog fields not merged: %+v", got)
	}
	if got.Properties["default"] != false {
		t.Fatalf("properties override lost: %+v", got.Properties)
	}
}

func TestHydrator_Tasks(t *testing.T) {
	h := NewHydrator(map[string]Item{
		"salewa": {ID: "salewa", Name: "Salewa", IconLink: "icon"},
	})
	in := []Task{{
		ID: "t1",
		Objectives: []TaskObjective{{
			ID: "o1", Type: "giveItem", Items: []Item{{ID: "salewa"}},
		}},
		FinishRewards: &TaskRewards{Items: []ItemCount{{Item: Item{ID: "salewa"}, Count: 2}}},
	}}
	out := h.Tasks(in)
	if out[0].Objectives[0].Items[0].Name != "Salewa" {
		t.Fatalf("objective item not hydrated: %+v", out[0].Objectives[0].Items[0])
	}
	if out[0].FinishRewards.Items[0].Item.IconLink != "icon" {
		t.Fatalf("reward item not hydrated")
	}
	if in[0].Objectives[0].Items[0].Name != "" {
		t.Fatalf("input mutated")
	}
}

func TestLevelForExperience(t *testing.T) {
	levels := []PlayerLevel{{Level: 1, Exp: 0}, {Level: 2, Exp: 1000}, {Level: 3, Exp: 4017}}
	if got := LevelForExperience(levels, 999); got != 1 {
		t.Fatalf("got %d want 1", got)
	}
	if got := LevelForExperience(levels, 5000); got != 3 {
		t.Fatalf("got %d want 3", got)
	}
}
