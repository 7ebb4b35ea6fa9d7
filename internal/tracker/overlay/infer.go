package overlay

import (
	"encoding/json"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

type phraseRule struct {
	Phrase       string
	Type         string
	QuestVariant string // used instead of Type when the entry carries a questItem
}

// Ordered: the first matching prefix wins. A phrase only matches whole words.
var phraseRules = []phraseRule{
	{Phrase: "eliminate", Type: "shoot"},
	{Phrase: "kill", Type: "shoot"},
	{Phrase: "neutralize", Type: "shoot"},
	{Phrase: "hand over", Type: "giveItem", QuestVariant: "giveQuestItem"},
	{Phrase: "find", Type: "findItem", QuestVariant: "findQuestItem"},
	{Phrase: "obtain", Type: "findItem", QuestVariant: "findQuestItem"},
	{Phrase: "locate", Type: "visit"},
	{Phrase: "visit", Type: "visit"},
	{Phrase: "mark", Type: "mark"},
	{Phrase: "use", Type: "useItem"},
	{Phrase: "eat", Type: "useItem"},
	{Phrase: "drink", Type: "useItem"},
	{Phrase: "launch", Type: "useItem"},
	{Phrase: "stash", Type: "plantItem", QuestVariant: "plantQuestItem"},
	{Phrase: "plant", Type: "plantItem", QuestVariant: "plantQuestItem"},
	{Phrase: "place", Type: "plantItem", QuestVariant: "plantQuestItem"},
	{Phrase: "survive and extract", Type: "extract"},
	{Phrase: "reach level", Type: "playerLevel"},
	{Phrase: "build", Type: "buildWeapon"},
}

// InferObjectiveType picks an objective type for an overlay entry. An explicit
// type wins, then marker data, then the description prefix table. It returns
// "" when nothing matches.
func InferObjectiveType(entry map[string]any) string {
	if t, _ := entry["type"].(string); strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t)
	}
	if hasMarker(entry) {
		return "mark"
	}
	desc := strings.ToLower(strings.TrimSpace(stringField(entry, "description")))
	if desc == "" {
		return ""
	}
	quest := hasRef(entry["questItem"])
	for _, r := range phraseRules {
		if !hasWordPrefix(desc, r.Phrase) {
			continue
		}
		if quest && r.QuestVariant != "" {
			return r.QuestVariant
		}
		return r.Type
	}
	return ""
}

func hasWordPrefix(s, phrase string) bool {
	if !strings.HasPrefix(s, phrase) {
		return false
	}
	next, _ := utf8.DecodeRuneInString(s[len(phrase):])
	return next == utf8.RuneError || !(unicode.IsLetter(next) || unicode.IsDigit(next))
}

// mentionsFoundInRaid reports whether an objective description requires
// found-in-raid items.
func mentionsFoundInRaid(desc string) bool {
	return strings.Contains(strings.ToLower(desc), "found in raid")
}

func hasMarker(entry map[string]any) bool {
	switch mi := entry["markerItem"].(type) {
	case string:
		return strings.TrimSpace(mi) != ""
	case map[string]any:
		if strings.TrimSpace(stringField(mi, "id")) != "" {
			return true
		}
		if strings.TrimSpace(stringField(mi, "type")) != "" {
			return true
		}
		return finitePosition(mi["position"])
	}
	return false
}

func hasRef(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) != ""
	case map[string]any:
		return strings.TrimSpace(stringField(t, "id")) != ""
	}
	return false
}

func finitePosition(v any) bool {
	pos, ok := v.(map[string]any)
	if !ok {
		return false
	}
	for _, axis := range []string{"x", "y", "z"} {
		f, ok := number(pos[axis])
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
