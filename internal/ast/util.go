package ast

// deepCopy clones JSON-shaped values (map[string]interface{},
// []interface{}, and scalars) so a caller mutating the value they
// passed in cannot reach back into a node already built from it.
// Spec.md §9 requires push/let/literal to deep-copy for exactly this
// reason: the resume token must stay free of shared/cyclic references.
func deepCopy(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}
