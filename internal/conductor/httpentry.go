package conductor

import (
	"encoding/json"
	"net/http"

	"github.com/yarikc/composer/internal/compiler"
)

// Handle realizes spec.md §6.2's host contract as an actual HTTP entry
// point: decode the invocation body as params, Run the FSM, and encode
// whichever of Suspend/Success/Failure came back. A malformed $resume
// answers 400; an internal invariant violation answers 500 with
// {code, error} from encodeError, per spec.md §7's propagation rule.
// This is additive glue around Run (and its unexported step loop) — the
// host platform spec.md treats as an external collaborator needs a real
// listener, not just a described contract.
func Handle(fsm compiler.Program) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeJSON(w, 400, encodeError(err))
			return
		}

		outcome, err := Run(fsm, input)
		if err != nil {
			if cerr, ok := err.(*Error); ok {
				writeJSON(w, cerr.Code(), encodeError(cerr))
				return
			}
			writeJSON(w, 500, encodeError(err))
			return
		}

		switch v := outcome.(type) {
		case Failure:
			writeJSON(w, 500, v)
		default:
			writeJSON(w, 200, v)
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
