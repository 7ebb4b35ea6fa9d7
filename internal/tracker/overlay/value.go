package overlay

// Kind classifies a decoded JSON value for merging. Every field is inspected
// once and the merge picks its strategy from the (target, patch) kinds.
type Kind int

const (
	KindScalar Kind = iota
	KindObject
	KindEntityArray // non-empty array whose elements are all objects with a string id
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindEntityArray:
		return "entity-array"
	case KindArray:
		return "array"
	default:
		return "scalar"
	}
}

func Inspect(v any) Kind {
	switch t := v.(type) {
	case map[string]any:
		return KindObject
	case []any:
		if len(t) == 0 {
			return KindArray
		}
		for _, e := range t {
			m, ok := e.(map[string]any)
			if !ok {
				return KindArray
			}
			if _, ok := m["id"].(string); !ok {
				return KindArray
			}
		}
		return KindEntityArray
	default:
		return KindScalar
	}
}

// DeepMerge returns target with patch applied. Neither argument is modified.
//
//	patch object  + target object        -> recursive merge
//	patch object  + target entity array  -> per-id merge (MergeArrayByIDPatches)
//	patch object  + target other array   -> per-id merge; elements without an id are kept
//	anything else                        -> patch replaces target
func DeepMerge(target, patch any) any {
	pk, tk := Inspect(patch), Inspect(target)
	if pk == KindObject {
		switch tk {
		case KindObject:
			return mergeObjects(target.(map[string]any), patch.(map[string]any))
		case KindEntityArray, KindArray:
			return MergeArrayByIDPatches(patch.(map[string]any), target.([]any))
		}
	}
	return Clone(patch)
}

func mergeObjects(target, patch map[string]any) map[string]any {
	out := cloneObject(target)
	for k, pv := range patch {
		if tv, ok := out[k]; ok {
			out[k] = DeepMerge(tv, pv)
			continue
		}
		out[k] = Clone(pv)
	}
	return out
}

// MergeArrayByIDPatches applies patches keyed by element id. Elements without
// a matching plain-object patch are copied unchanged; patches that match no
// element are ignored.
func MergeArrayByIDPatches(patches map[string]any, target []any) []any {
	out := make([]any, len(target))
	for i, e := range target {
		m, ok := e.(map[string]any)
		if !ok {
			out[i] = Clone(e)
			continue
		}
		id, _ := m["id"].(string)
		p, ok := patches[id].(map[string]any)
		if id == "" || !ok {
			out[i] = Clone(e)
			continue
		}
		out[i] = mergeObjects(m, p)
	}
	return out
}

// Clone deep-copies maps and slices; scalars are returned as-is.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneObject(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	default:
		return v
	}
}

func cloneObject(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Clone(v)
	}
	return out
}
