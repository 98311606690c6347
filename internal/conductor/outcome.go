package conductor

import "encoding/json"

// Suspend is the intermediate output of spec.md §6.2: the host must
// invoke Action with Params and re-invoke the conductor with the
// result merged with the echoed Resume token.
type Suspend struct {
	Action string
	Params interface{}
	Resume Resume
}

func (s *Suspend) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"action": s.Action,
		"params": s.Params,
		"state":  map[string]interface{}{"$resume": s.Resume},
	})
}

// Success is the terminal, non-error output: {"params": value}.
type Success struct {
	Params interface{}
}

func (s *Success) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{"params": s.Params})
}

// Failure is the terminal, error output: the params object itself,
// which already carries the "error" field (spec.md §6.2: "Failure
// terminal output: object containing an error field").
type Failure map[string]interface{}
