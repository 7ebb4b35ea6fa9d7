package upstream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"tarkovtracker.org/internal/tracker/catalog"
)

// Kind names one upstream payload. The task corpus arrives split into a core
// payload and separate objectives and rewards payloads.
type Kind string

const (
	KindTasks          Kind = "tasks"
	KindTaskObjectives Kind = "taskObjectives"
	KindTaskRewards    Kind = "taskRewards"
	KindHideout        Kind = "hideoutStations"
	KindItems          Kind = "items"
	KindTraders        Kind = "traders"
	KindPlayerLevels   Kind = "playerLevels"
	KindPrestige       Kind = "prestige"
)

var Kinds = []Kind{
	KindTasks, KindTaskObjectives, KindTaskRewards, KindHideout,
	KindItems, KindTraders, KindPlayerLevels, KindPrestige,
}

func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if v == k {
			return true
		}
	}
	return false
}

// field is the envelope key the payload is published under. Objectives and
// rewards are task projections and share the "tasks" key upstream.
func (k Kind) field() string {
	switch k {
	case KindTaskObjectives, KindTaskRewards:
		return "tasks"
	default:
		return string(k)
	}
}

type Request struct {
	Kind Kind
	Mode string
	Lang string
}

func (r Request) String() string {
	return fmt.Sprintf("%s/%s/%s", r.Mode, r.Kind, r.Lang)
}

// Decode extracts the entity list for kind from a payload. It accepts a
// GraphQL style envelope ({"data":{"tasks":[...]}}), a bare keyed object
// ({"tasks":[...]}), or the list itself. Lists published as id-keyed objects
// are flattened.
func Decode(kind Kind, raw []byte) ([]map[string]any, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%s: invalid json", kind)
	}
	if errs := gjson.GetBytes(raw, "errors"); errs.IsArray() && len(errs.Array()) > 0 {
		msgs := make([]string, 0, len(errs.Array()))
		for _, e := range errs.Array() {
			msgs = append(msgs, e.Get("message").String())
		}
		if !gjson.GetBytes(raw, "data."+kind.field()).Exists() {
			return nil, fmt.Errorf("%s: upstream errors: %s", kind, strings.Join(msgs, "; "))
		}
	}

	field := kind.field()
	var res gjson.Result
	for _, path := range []string{"data." + field, field} {
		if r := gjson.GetBytes(raw, path); r.Exists() {
			res = r
			break
		}
	}
	if !res.Exists() {
		res = gjson.ParseBytes(raw)
		if res.IsObject() && res.Get("data").Exists() {
			return nil, fmt.Errorf("%s: envelope has no %q field", kind, field)
		}
	}
	if res.Type == gjson.Null {
		return nil, nil
	}

	var v any
	dec := json.NewDecoder(strings.NewReader(res.Raw))
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	list := catalog.AsList(v)
	out := make([]map[string]any, 0, len(list))
	for _, e := range list {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		} else {
			// keep the slot so entity indexes in diagnostics line up
			out = append(out, nil)
		}
	}
	return out, nil
}
