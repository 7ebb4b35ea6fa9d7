package graph

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sort"

	"tarkovtracker.org/internal/tracker/catalog"
)

type HideoutData struct {
	Modules                  []catalog.HideoutModule
	Graph                    *Graph
	StationModules           map[string][]string // station id -> module ids ordered by level
	Crafts                   []catalog.Craft
	NeededItemHideoutModules []NeededItem
}

func moduleKey(stationID string, level int) string {
	return fmt.Sprintf("%s#%d", stationID, level)
}

// ProcessHideoutData flattens stations into modules and links every module to
// the previous level of its station and to its station level requirements.
func ProcessHideoutData(stations []catalog.HideoutStation, logger *log.Logger) HideoutData {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	data := HideoutData{StationModules: map[string][]string{}}
	byLevel := map[string]string{}
	seen := map[string]bool{}
	b := NewBuilder(logger)

	for _, st := range stations {
		if st.ID == "" {
			logger.Printf("hideout: skipping station without id (name=%q)", st.Name)
			continue
		}
		levels := append([]catalog.HideoutLevel(nil), st.Levels...)
		sort.SliceStable(levels, func(i, j int) bool { return levels[i].Level < levels[j].Level })
		for _, lvl := range levels {
			id := lvl.ID
			if id == "" {
				id = fmt.Sprintf("%s-%d", st.ID, lvl.Level)
			}
			if seen[id] {
				logger.Printf("hideout: skipping duplicate module %s", id)
				continue
			}
			seen[id] = true
			src := catalog.CraftSource{StationID: st.ID, StationName: st.Name, Level: lvl.Level}
			crafts := make([]catalog.Craft, len(lvl.Crafts))
			for i, c := range lvl.Crafts {
				c.Source = src
				crafts[i] = c
			}
			data.Modules = append(data.Modules, catalog.HideoutModule{
				ID:                       id,
				StationID:                st.ID,
				StationName:              st.Name,
				Level:                    lvl.Level,
				ConstructionTime:         lvl.ConstructionTime,
				Description:              lvl.Description,
				ItemRequirements:         lvl.ItemRequirements,
				StationLevelRequirements: lvl.StationLevelRequirements,
				TraderRequirements:       lvl.TraderRequirements,
				SkillRequirements:        lvl.SkillRequirements,
				Crafts:                   crafts,
			})
			data.Crafts = append(data.Crafts, crafts...)
			data.StationModules[st.ID] = append(data.StationModules[st.ID], id)
			byLevel[moduleKey(st.ID, lvl.Level)] = id
			b.AddNode(id)
		}
	}

	link := func(from, to string) {
		if err := b.AddEdge(from, to); err != nil && !errors.Is(err, ErrCycle) {
			logger.Printf("hideout: %v", err)
		}
	}
	for _, m := range data.Modules {
		if prev, ok := byLevel[moduleKey(m.StationID, m.Level-1)]; ok {
			link(prev, m.ID)
		}
		for _, req := range m.StationLevelRequirements {
			prereq, ok := byLevel[moduleKey(req.Station.ID, req.Level)]
			if !ok {
				logger.Printf("hideout: %s requires unknown station level %s/%d", m.ID, req.Station.ID, req.Level)
				continue
			}
			link(prereq, m.ID)
		}
	}
	g := b.Build()
	data.Graph = g

	for i := range data.Modules {
		m := &data.Modules[i]
		m.Parents = g.Parents(m.ID)
		m.Children = g.Children(m.ID)
		m.Predecessors = g.Ancestors(m.ID)
		m.Successors = g.Descendants(m.ID)
		for _, req := range m.ItemRequirements {
			if req.Item.ID == "" {
				continue
			}
			count := req.Count
			if count <= 0 {
				count = req.Quantity
			}
			fir := false
			for _, a := range req.Attributes {
				if a.Name == "found_in_raid" && a.Value == "true" {
					fir = true
				}
			}
			data.NeededItemHideoutModules = append(data.NeededItemHideoutModules, NeededItem{
				Source:      SourceHideoutModule,
				ID:          req.ID,
				ModuleID:    m.ID,
				ItemID:      req.Item.ID,
				Count:       count,
				FoundInRaid: fir,
			})
		}
	}
	totals := data.TotalConstructionTimes()
	for i := range data.Modules {
		data.Modules[i].TotalConstructionTime = totals[data.Modules[i].ID]
	}
	return data
}

// TotalConstructionTime is the module's own construction time plus the total
// of each direct prerequisite, recursively. A prerequisite reachable through
// two branches is counted once per branch.
func (d HideoutData) TotalConstructionTime(id string) int {
	return d.constructionTotals()(id)
}

// TotalConstructionTimes computes TotalConstructionTime for every module.
func (d HideoutData) TotalConstructionTimes() map[string]int {
	total := d.constructionTotals()
	out := make(map[string]int, len(d.Modules))
	for _, m := range d.Modules {
		out[m.ID] = total(m.ID)
	}
	return out
}

func (d HideoutData) constructionTotals() func(string) int {
	byID := make(map[string]*catalog.HideoutModule, len(d.Modules))
	for i := range d.Modules {
		byID[d.Modules[i].ID] = &d.Modules[i]
	}
	memo := map[string]int{}
	var total func(string) int
	total = func(id string) int {
		if v, ok := memo[id]; ok {
			return v
		}
		m, ok := byID[id]
		if !ok {
			return 0
		}
		sum := m.ConstructionTime
		if d.Graph != nil {
			for _, p := range d.Graph.Parents(id) {
				sum += total(p)
			}
		}
		memo[id] = sum
		return sum
	}
	return total
}
