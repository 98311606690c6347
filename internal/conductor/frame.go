package conductor

import (
	"encoding/json"
	"fmt"
)

// FrameKind discriminates the three stack-frame shapes spec.md §3.4
// allows. The wire representation carries no kind tag — a frame is
// recognized by which one key it has — so Frame implements custom JSON
// (un)marshaling instead of deriving one from struct tags.
type FrameKind int

const (
	CatchFrame FrameKind = iota
	LetFrame
	ParamsFrame
)

// Frame is one stack entry: exactly one of a catch target, a let
// environment, or a saved params snapshot.
type Frame struct {
	Kind   FrameKind
	Catch  int
	Let    map[string]interface{}
	Params interface{}
}

func (f Frame) MarshalJSON() ([]byte, error) {
	switch f.Kind {
	case CatchFrame:
		return json.Marshal(map[string]interface{}{"catch": f.Catch})
	case LetFrame:
		return json.Marshal(map[string]interface{}{"let": f.Let})
	case ParamsFrame:
		return json.Marshal(map[string]interface{}{"params": f.Params})
	default:
		return nil, fmt.Errorf("conductor: frame has no kind")
	}
}

func (f *Frame) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw["catch"] != nil:
		var c int
		if err := json.Unmarshal(raw["catch"], &c); err != nil {
			return err
		}
		*f = Frame{Kind: CatchFrame, Catch: c}
	case raw["let"] != nil:
		var m map[string]interface{}
		if err := json.Unmarshal(raw["let"], &m); err != nil {
			return err
		}
		*f = Frame{Kind: LetFrame, Let: m}
	case raw["params"] != nil:
		var v interface{}
		if err := json.Unmarshal(raw["params"], &v); err != nil {
			return err
		}
		*f = Frame{Kind: ParamsFrame, Params: v}
	default:
		return fmt.Errorf("conductor: stack frame has none of catch/let/params")
	}
	return nil
}

// Resume is the $resume token: the continuation state index (nil at
// terminal), the frame stack, and the fingerprint/version stamp
// internal/serial uses to recognize a token minted by a different
// deployment of this conductor. Fingerprint and SchemaVersion are
// optional on the wire (omitempty; populated by Run, checked on the way
// back in, and accepted when empty) so a hand-written resume object in
// a test does not need to carry them.
type Resume struct {
	State         *int    `json:"state"`
	Stack         []Frame `json:"stack"`
	Fingerprint   string  `json:"fingerprint,omitempty"`
	SchemaVersion string  `json:"schemaVersion,omitempty"`
}
