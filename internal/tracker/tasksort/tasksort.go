package tasksort

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"tarkovtracker.org/internal/tracker/catalog"
	"tarkovtracker.org/internal/tracker/progress"
)

type Mode string

const (
	ByDefault   Mode = "default"
	ByName      Mode = "name"
	ByLevel     Mode = "level"
	ByImpact    Mode = "impact"
	ByTrader    Mode = "trader"
	ByTeammates Mode = "teammates"
	ByXP        Mode = "xp"
)

func (m Mode) Valid() bool {
	switch m {
	case ByDefault, ByName, ByLevel, ByImpact, ByTrader, ByTeammates, ByXP:
		return true
	}
	return false
}

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// traderOrder is the in-game trader sequence keyed by normalized name.
var traderOrder = []string{
	"prapor", "therapist", "fence", "skier", "peacekeeper", "mechanic",
	"ragman", "jaeger", "ref", "lightkeeper", "btr-driver",
}

var fold = cases.Fold()

func normalizeTrader(tr catalog.Trader) string {
	name := tr.NormalizedName
	if name == "" {
		name = tr.Name
	}
	name = fold.String(strings.TrimSpace(name))
	return strings.Join(strings.Fields(name), "-")
}

// TraderIndex is the trader's position in the fixed trader sequence. Unknown
// traders sort after every known one.
func TraderIndex(tr catalog.Trader) int {
	n := normalizeTrader(tr)
	for i, name := range traderOrder {
		if name == n {
			return i
		}
	}
	return len(traderOrder)
}

// Input carries the progress the derived keys are computed from.
type Input struct {
	State progress.State
	// Actors whose open successors count towards impact.
	Actors []string
	// Teammates are the visible team members counted for availability.
	Teammates []string
}

// ImpactScore counts the task's successors that at least one actor has not
// completed or failed yet.
func ImpactScore(task catalog.Task, state progress.State, actors []string) int {
	if len(actors) == 0 || len(task.Successors) == 0 {
		return 0
	}
	score := 0
	for _, id := range task.Successors {
		for _, a := range actors {
			ts := state.Task(id, a)
			if !ts.Completed && !ts.Failed {
				score++
				break
			}
		}
	}
	return score
}

// TeammatesAvailable counts teammates for whom the task is unlocked and
// neither completed nor failed.
func TeammatesAvailable(task catalog.Task, state progress.State, teammates []string) int {
	n := 0
	for _, a := range teammates {
		if state.Task(task.ID, a).Available() {
			n++
		}
	}
	return n
}

// Sort returns a sorted copy of tasks. Every mode breaks ties down to the
// task name and finally the id, so equal keys always order the same way.
// Desc inverts the whole comparison; ByDefault keeps input order, reversed
// for Desc.
func Sort(tasks []catalog.Task, mode Mode, dir Direction, in Input) []catalog.Task {
	out := slices.Clone(tasks)
	if mode == ByDefault || mode == "" {
		if dir == Desc {
			slices.Reverse(out)
		}
		return out
	}

	col := collate.New(language.English, collate.IgnoreCase)
	byName := func(a, b catalog.Task) int {
		if c := col.CompareString(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	}

	var keyed func(a, b catalog.Task) int
	switch mode {
	case ByName:
		keyed = func(a, b catalog.Task) int { return 0 }
	case ByLevel:
		keyed = func(a, b catalog.Task) int { return cmp.Compare(a.MinPlayerLevel, b.MinPlayerLevel) }
	case ByXP:
		keyed = func(a, b catalog.Task) int { return cmp.Compare(a.Experience, b.Experience) }
	case ByImpact:
		score := make(map[string]int, len(out))
		for _, t := range out {
			score[t.ID] = ImpactScore(t, in.State, in.Actors)
		}
		keyed = func(a, b catalog.Task) int { return cmp.Compare(score[a.ID], score[b.ID]) }
	case ByTeammates:
		avail := make(map[string]int, len(out))
		for _, t := range out {
			avail[t.ID] = TeammatesAvailable(t, in.State, in.Teammates)
		}
		keyed = func(a, b catalog.Task) int { return cmp.Compare(avail[a.ID], avail[b.ID]) }
	case ByTrader:
		keyed = func(a, b catalog.Task) int {
			if c := cmp.Compare(TraderIndex(a.Trader), TraderIndex(b.Trader)); c != 0 {
				return c
			}
			return cmp.Compare(a.MinPlayerLevel, b.MinPlayerLevel)
		}
	default:
		return out
	}

	sign := 1
	if dir == Desc {
		sign = -1
	}
	slices.SortStableFunc(out, func(a, b catalog.Task) int {
		if c := keyed(a, b); c != 0 {
			return sign * c
		}
		return sign * byName(a, b)
	})
	return out
}
