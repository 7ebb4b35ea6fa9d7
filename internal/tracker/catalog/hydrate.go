package catalog

// HydrateItem merges the catalog record for an item into a lightweight stub.
// Fields set on the stub are task-specific overrides (a preset's properties,
// a quest-only name) and win over the generic catalog values.
func HydrateItem(stub, full Item) Item {
	out := full
	out.ID = stub.ID
	if stub.Name != "" {
		out.Name = stub.Name
	}
	if stub.ShortName != "" {
		out.ShortName = stub.ShortName
	}
	if stub.NormalizedName != "" {
		out.NormalizedName = stub.NormalizedName
	}
	if stub.IconLink != "" {
		out.IconLink = stub.IconLink
	}
	if stub.Image512pxLink != "" {
		out.Image512pxLink = stub.Image512pxLink
	}
	if stub.WikiLink != "" {
		out.WikiLink = stub.WikiLink
	}
	if stub.BackgroundColor != "" {
		out.BackgroundColor = stub.BackgroundColor
	}
	if stub.BasePrice != 0 {
		out.BasePrice = stub.BasePrice
	}
	if stub.Width != 0 {
		out.Width = stub.Width
	}
	if stub.Height != 0 {
		out.Height = stub.Height
	}
	if len(stub.Types) > 0 {
		out.Types = append([]string(nil), stub.Types...)
	} else if len(full.Types) > 0 {
		out.Types = append([]string(nil), full.Types...)
	}
	if len(stub.Properties) > 0 {
		out.Properties = stub.Properties
	}
	if len(stub.ContainsItems) > 0 {
		out.ContainsItems = stub.ContainsItems
	}
	return out
}

// Hydrator resolves item stubs against a full item catalog.
type Hydrator struct {
	items map[string]Item
}

func NewHydrator(items map[string]Item) *Hydrator {
	return &Hydrator{items: items}
}

func (h *Hydrator) item(stub Item) Item {
	if h == nil || stub.ID == "" {
		return stub
	}
	full, ok := h.items[stub.ID]
	if !ok {
		return stub
	}
	return HydrateItem(stub, full)
}

func (h *Hydrator) itemPtr(stub *Item) *Item {
	if stub == nil {
		return nil
	}
	v := h.item(*stub)
	return &v
}

func (h *Hydrator) itemList(in []Item) []Item {
	if len(in) == 0 {
		return in
	}
	out := make([]Item, len(in))
	for i, it := range in {
		out[i] = h.item(it)
	}
	return out
}

func (h *Hydrator) counts(in []ItemCount) []ItemCount {
	if len(in) == 0 {
		return in
	}
	out := make([]ItemCount, len(in))
	for i, c := range in {
		out[i] = ItemCount{Item: h.item(c.Item), Count: c.Count}
	}
	return out
}

func (h *Hydrator) objectives(in []TaskObjective) []TaskObjective {
	if len(in) == 0 {
		return in
	}
	out := make([]TaskObjective, len(in))
	for i, o := range in {
		o.Item = h.itemPtr(o.Item)
		o.Items = h.itemList(o.Items)
		o.MarkerItem = h.itemPtr(o.MarkerItem)
		o.QuestItem = h.itemPtr(o.QuestItem)
		o.UseAny = h.itemList(o.UseAny)
		out[i] = o
	}
	return out
}

func (h *Hydrator) rewards(in *TaskRewards) *TaskRewards {
	if in == nil {
		return nil
	}
	r := *in
	r.Items = h.counts(in.Items)
	if len(in.OfferUnlock) > 0 {
		r.OfferUnlock = make([]OfferUnlock, len(in.OfferUnlock))
		for i, o := range in.OfferUnlock {
			o.Item = h.item(o.Item)
			r.OfferUnlock[i] = o
		}
	}
	return &r
}

// Tasks returns hydrated copies of tasks; the input is left untouched.
func (h *Hydrator) Tasks(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		t.Objectives = h.objectives(t.Objectives)
		t.FailConditions = h.objectives(t.FailConditions)
		t.StartRewards = h.rewards(t.StartRewards)
		t.FinishRewards = h.rewards(t.FinishRewards)
		t.FailureOutcome = h.rewards(t.FailureOutcome)
		out[i] = t
	}
	return out
}

// Modules returns hydrated copies of hideout modules.
func (h *Hydrator) Modules(modules []HideoutModule) []HideoutModule {
	out := make([]HideoutModule, len(modules))
	for i, m := range modules {
		if len(m.ItemRequirements) > 0 {
			reqs := make([]ItemRequirement, len(m.ItemRequirements))
			for j, r := range m.ItemRequirements {
				r.Item = h.item(r.Item)
				reqs[j] = r
			}
			m.ItemRequirements = reqs
		}
		if len(m.Crafts) > 0 {
			crafts := make([]Craft, len(m.Crafts))
			for j, c := range m.Crafts {
				c.RequiredItems = h.counts(c.RequiredItems)
				c.RewardItems = h.counts(c.RewardItems)
				crafts[j] = c
			}
			m.Crafts = crafts
		}
		out[i] = m
	}
	return out
}
