package catalog

// Requirement statuses used by taskRequirements and taskStatus objectives.
const (
	StatusActive   = "active"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// FactionAny marks a task available to every faction.
const FactionAny = "Any"

type Item struct {
	ID              string         `json:"id"`
	Name            string         `json:"name,omitempty"`
	ShortName       string         `json:"shortName,omitempty"`
	NormalizedName  string         `json:"normalizedName,omitempty"`
	IconLink        string         `json:"iconLink,omitempty"`
	Image512pxLink  string         `json:"image512pxLink,omitempty"`
	WikiLink        string         `json:"wikiLink,omitempty"`
	BackgroundColor string         `json:"backgroundColor,omitempty"`
	BasePrice       int            `json:"basePrice,omitempty"`
	Width           int            `json:"width,omitempty"`
	Height          int            `json:"height,omitempty"`
	Types           []string       `json:"types,omitempty"`
	Properties      map[string]any `json:"properties,omitempty"`
	ContainsItems   []ItemCount    `json:"containsItems,omitempty"`
}

type ItemCount struct {
	Item  Item `json:"item"`
	Count int  `json:"count"`
}

type Trader struct {
	ID             string `json:"id"`
	Name           string `json:"name,omitempty"`
	NormalizedName string `json:"normalizedName,omitempty"`
	ImageLink      string `json:"imageLink,omitempty"`
}

type MapRef struct {
	ID             string `json:"id"`
	Name           string `json:"name,omitempty"`
	NormalizedName string `json:"normalizedName,omitempty"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Zone struct {
	ID       string    `json:"id"`
	Map      MapRef    `json:"map"`
	Position *Position `json:"position,omitempty"`
}

type TaskRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// TaskObjective is shared by objectives and failConditions.
type TaskObjective struct {
	ID          string   `json:"id"`
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Optional    bool     `json:"optional,omitempty"`
	Maps        []MapRef `json:"maps,omitempty"`
	Zones       []Zone   `json:"zones,omitempty"`
	Item        *Item    `json:"item,omitempty"`
	Items       []Item   `json:"items,omitempty"`
	MarkerItem  *Item    `json:"markerItem,omitempty"`
	QuestItem   *Item    `json:"questItem,omitempty"`
	UseAny      []Item   `json:"useAny,omitempty"`
	Count       int      `json:"count,omitempty"`
	FoundInRaid bool     `json:"foundInRaid,omitempty"`
	PlayerLevel int      `json:"playerLevel,omitempty"`

	// taskStatus objectives and fail conditions.
	Task   *TaskRef `json:"task,omitempty"`
	Status []string `json:"status,omitempty"`
}

type TaskRequirement struct {
	Task   TaskRef  `json:"task"`
	Status []string `json:"status"`
}

type TraderStanding struct {
	Trader   Trader  `json:"trader"`
	Standing float64 `json:"standing"`
}

type SkillReward struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
}

type OfferUnlock struct {
	ID     string `json:"id"`
	Trader Trader `json:"trader"`
	Level  int    `json:"level"`
	Item   Item   `json:"item"`
}

type TaskRewards struct {
	Items            []ItemCount      `json:"items,omitempty"`
	TraderStanding   []TraderStanding `json:"traderStanding,omitempty"`
	SkillLevelReward []SkillReward    `json:"skillLevelReward,omitempty"`
	TraderUnlock     []Trader         `json:"traderUnlock,omitempty"`
	OfferUnlock      []OfferUnlock    `json:"offerUnlock,omitempty"`
}

type Task struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	NormalizedName      string            `json:"normalizedName,omitempty"`
	WikiLink            string            `json:"wikiLink,omitempty"`
	Trader              Trader            `json:"trader"`
	Map                 *MapRef           `json:"map,omitempty"`
	MinPlayerLevel      int               `json:"minPlayerLevel,omitempty"`
	Experience          int               `json:"experience,omitempty"`
	FactionName         string            `json:"factionName,omitempty"`
	KappaRequired       bool              `json:"kappaRequired,omitempty"`
	LightkeeperRequired bool              `json:"lightkeeperRequired,omitempty"`
	TaskRequirements    []TaskRequirement `json:"taskRequirements,omitempty"`
	Objectives          []TaskObjective   `json:"objectives,omitempty"`
	FailConditions      []TaskObjective   `json:"failConditions,omitempty"`
	StartRewards        *TaskRewards      `json:"startRewards,omitempty"`
	FinishRewards       *TaskRewards      `json:"finishRewards,omitempty"`
	FailureOutcome      *TaskRewards      `json:"failureOutcome,omitempty"`

	// Derived by the graph builder.
	Predecessors []string `json:"predecessors,omitempty"`
	Successors   []string `json:"successors,omitempty"`
	Parents      []string `json:"parents,omitempty"`
	Children     []string `json:"children,omitempty"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// TaskObjectives is one entry of the objectives payload.
type TaskObjectives struct {
	ID             string          `json:"id"`
	Objectives     []TaskObjective `json:"objectives"`
	FailConditions []TaskObjective `json:"failConditions"`
}

// TaskRewardSet is one entry of the rewards payload.
type TaskRewardSet struct {
	ID             string       `json:"id"`
	StartRewards   *TaskRewards `json:"startRewards,omitempty"`
	FinishRewards  *TaskRewards `json:"finishRewards,omitempty"`
	FailureOutcome *TaskRewards `json:"failureOutcome,omitempty"`
}

type StationRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type ItemRequirement struct {
	ID         string      `json:"id"`
	Item       Item        `json:"item"`
	Count      int         `json:"count"`
	Quantity   int         `json:"quantity,omitempty"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

type Attribute struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

type StationLevelRequirement struct {
	ID      string     `json:"id"`
	Station StationRef `json:"station"`
	Level   int        `json:"level"`
}

type TraderRequirement struct {
	ID     string `json:"id"`
	Trader Trader `json:"trader"`
	Value  int    `json:"value"`
}

type SkillRequirement struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Level int    `json:"level"`
}

// CraftSource identifies the station level a recipe is crafted at.
type CraftSource struct {
	StationID   string `json:"stationId"`
	StationName string `json:"stationName"`
	Level       int    `json:"level"`
}

type Craft struct {
	ID            string      `json:"id"`
	Duration      int         `json:"duration,omitempty"`
	RequiredItems []ItemCount `json:"requiredItems,omitempty"`
	RewardItems   []ItemCount `json:"rewardItems,omitempty"`
	Source        CraftSource `json:"source"`
}

type HideoutLevel struct {
	ID                       string                    `json:"id"`
	Level                    int                       `json:"level"`
	ConstructionTime         int                       `json:"constructionTime"`
	Description              string                    `json:"description,omitempty"`
	ItemRequirements         []ItemRequirement         `json:"itemRequirements,omitempty"`
	StationLevelRequirements []StationLevelRequirement `json:"stationLevelRequirements,omitempty"`
	TraderRequirements       []TraderRequirement       `json:"traderRequirements,omitempty"`
	SkillRequirements        []SkillRequirement        `json:"skillRequirements,omitempty"`
	Crafts                   []Craft                   `json:"crafts,omitempty"`
}

type HideoutStation struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	NormalizedName string         `json:"normalizedName,omitempty"`
	ImageLink      string         `json:"imageLink,omitempty"`
	Levels         []HideoutLevel `json:"levels"`
}

// HideoutModule is a single station level flattened out of a station.
type HideoutModule struct {
	ID                       string                    `json:"id"`
	StationID                string                    `json:"stationId"`
	StationName              string                    `json:"stationName"`
	Level                    int                       `json:"level"`
	ConstructionTime         int                       `json:"constructionTime"`
	Description              string                    `json:"description,omitempty"`
	ItemRequirements         []ItemRequirement         `json:"itemRequirements,omitempty"`
	StationLevelRequirements []StationLevelRequirement `json:"stationLevelRequirements,omitempty"`
	TraderRequirements       []TraderRequirement       `json:"traderRequirements,omitempty"`
	SkillRequirements        []SkillRequirement        `json:"skillRequirements,omitempty"`
	Crafts                   []Craft                   `json:"crafts,omitempty"`
	TotalConstructionTime    int                       `json:"totalConstructionTime"`

	Predecessors []string `json:"predecessors,omitempty"`
	Successors   []string `json:"successors,omitempty"`
	Parents      []string `json:"parents,omitempty"`
	Children     []string `json:"children,omitempty"`
}

type PlayerLevel struct {
	Level               int    `json:"level"`
	Exp                 int    `json:"exp"`
	LevelBadgeImageLink string `json:"levelBadgeImageLink,omitempty"`
}

type Prestige struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	PrestigeLevel int             `json:"prestigeLevel"`
	ImageLink     string          `json:"imageLink,omitempty"`
	Conditions    []TaskObjective `json:"conditions,omitempty"`
}

// LevelForExperience returns the highest level whose cumulative experience is
// reached by xp. levels must be ordered by level.
func LevelForExperience(levels []PlayerLevel, xp int) int {
	lvl := 0
	for _, l := range levels {
		if xp < l.Exp {
			break
		}
		lvl = l.Level
	}
	if lvl == 0 && len(levels) > 0 {
		lvl = levels[0].Level
	}
	return lvl
}
