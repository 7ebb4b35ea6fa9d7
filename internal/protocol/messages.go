package protocol

import (
	"tarkovtracker.org/internal/tracker/catalog"
	"tarkovtracker.org/internal/tracker/graph"
	"tarkovtracker.org/internal/tracker/overlay"
	"tarkovtracker.org/internal/tracker/progress"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Envelope is embedded in every dataset response. Errors lists the domains
// whose last load failed; their data may be stale or missing.
type Envelope struct {
	ProtocolVersion string             `json:"protocol_version"`
	Mode            string             `json:"mode"`
	Lang            string             `json:"lang"`
	Version         uint64             `json:"version"`
	Overlay         overlay.Provenance `json:"overlay"`
	Errors          map[string]string  `json:"errors,omitempty"`
}

type TasksResponse struct {
	Envelope
	Tasks                  []catalog.Task                       `json:"tasks"`
	MapTasks               map[string][]string                  `json:"mapTasks"`
	ObjectiveMaps          map[string][]string                  `json:"objectiveMaps"`
	ObjectiveGPS           map[string][]graph.ObjectivePosition `json:"objectiveGPS"`
	AlternativeTasks       map[string][]string                  `json:"alternativeTasks"`
	AlternativeTaskSources map[string][]string                  `json:"alternativeTaskSources"`
	NeededItems            []graph.NeededItem                   `json:"neededItemTaskObjectives"`
}

type TaskResponse struct {
	Envelope
	Task      catalog.Task `json:"task"`
	Ancestors []string     `json:"ancestors"`
	// Descendants are every task transitively unlocked by this one.
	Descendants []string `json:"descendants"`
}

type HideoutResponse struct {
	Envelope
	Modules           []catalog.HideoutModule `json:"modules"`
	StationModules    map[string][]string     `json:"stationModules"`
	Crafts            []catalog.Craft         `json:"crafts"`
	NeededItems       []graph.NeededItem      `json:"neededItemHideoutModules"`
	ConstructionTimes map[string]int          `json:"totalConstructionTimes"`
}

type MetaResponse struct {
	Envelope
	Traders          []catalog.Trader      `json:"traders"`
	Levels           []catalog.PlayerLevel `json:"playerLevels"`
	Prestige         []catalog.Prestige    `json:"prestige"`
	ObjectiveRenames map[string][]string   `json:"objectiveRenames,omitempty"`
	Counts           Counts                `json:"counts"`
}

type Counts struct {
	Tasks      int `json:"tasks"`
	TaskEdges  int `json:"taskEdges"`
	Modules    int `json:"modules"`
	ModuleEdge int `json:"moduleEdges"`
	Items      int `json:"items"`
	Crafts     int `json:"crafts"`
}

type OverlayResponse struct {
	Overlay overlay.Provenance `json:"overlay"`
	Meta    *overlay.Meta      `json:"meta,omitempty"`
	Patches map[string]int     `json:"patches,omitempty"`
}

// ProgressRequest asks for derived progress for a set of actors. View is an
// actor id or "all".
type ProgressRequest struct {
	ProtocolVersion string            `json:"protocol_version,omitempty"`
	Actors          []string          `json:"actors"`
	View            string            `json:"view,omitempty"`
	Names           map[string]string `json:"names,omitempty"`
	Sort            string            `json:"sort,omitempty"`
	Direction       string            `json:"direction,omitempty"`
	State           progress.State    `json:"state"`
}

type TaskProgress struct {
	progress.TeamTaskStatus
	Invalid bool                          `json:"isInvalid"`
	Actors  map[string]progress.TaskState `json:"actors"`
}

type ProgressResponse struct {
	Envelope
	Tasks   map[string]TaskProgress              `json:"tasks"`
	Modules map[string]progress.TeamModuleStatus `json:"modules"`
	Order   []string                             `json:"order"`
	// ObjectiveCompletions is the request's objective progress rewritten onto
	// deduplicated objective ids.
	ObjectiveCompletions progress.Flags `json:"objectiveCompletions,omitempty"`
}

// SUBSCRIBE (client -> server)
type SubscribeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Modes           []string `json:"modes,omitempty"`
}

// VERSION (server -> client), sent on subscribe and after every publish.
type VersionMsg struct {
	Type            string             `json:"type"`
	ProtocolVersion string             `json:"protocol_version"`
	Mode            string             `json:"mode"`
	Version         uint64             `json:"version"`
	Ready           bool               `json:"ready"`
	Overlay         overlay.Provenance `json:"overlay"`
	Errors          map[string]string  `json:"errors,omitempty"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
