package conductor

import "reflect"

// deepCopy mirrors ast.deepCopy: clone JSON-shaped values so a frame's
// snapshot can never alias a value the running program still mutates.
// Duplicated rather than exported from internal/ast. Only
// map[string]interface{} and []interface{} are cloned; any other value
// is returned as is.
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

func isCallable(v interface{}) bool {
	if v == nil {
		return false
	}
	return reflect.TypeOf(v).Kind() == reflect.Func
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

func asObject(v interface{}) (map[string]interface{}, bool) {
	obj, ok := v.(map[string]interface{})
	return obj, ok
}
