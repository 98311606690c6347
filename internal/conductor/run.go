// Package conductor steps a compiled FSM program (internal/compiler)
// with an explicit stack, evaluates function instructions, and
// externalizes continuations across action calls via a $resume token,
// mirroring the teacher's runtime/executor.Executor walking a
// planfmt.Plan against a decorator registry — here the "registry" is
// the host platform itself, reached only by suspending and returning.
package conductor

import (
	"encoding/json"

	"github.com/yarikc/composer/internal/compiler"
	"github.com/yarikc/composer/internal/serial"
)

const resumeKey = "$resume"

// Run executes fsm starting from input. input is either a fresh
// invocation's params (no $resume key) or a resumed invocation's
// merged action result plus $resume. It returns one of *Suspend,
// *Success, or Failure, or a non-nil *Error for a malformed resume
// token or an internal invariant violation.
func Run(fsm compiler.Program, input map[string]interface{}) (interface{}, error) {
	fingerprint, err := serial.Fingerprint(fsm)
	if err != nil {
		return nil, internalError("cannot fingerprint program: %v", err)
	}

	state := 0
	var stack []Frame
	params := interface{}(stripResumeKey(input))

	if raw, ok := input[resumeKey]; ok {
		resume, err := decodeResume(raw)
		if err != nil {
			return nil, badResume("malformed $resume: %v", err)
		}
		if err := validateResume(resume, len(fsm), fingerprint); err != nil {
			return nil, err
		}
		stack = resume.Stack
		if resume.State == nil {
			return terminal(params)
		}
		state = *resume.State

		var overridden bool
		var newState *int
		params, overridden, newState = inspect(params, stack)
		if overridden {
			if newState == nil {
				return terminal(params)
			}
			state = *newState
		}
	}

	return step(fsm, params, &state, stack, fingerprint)
}

func stripResumeKey(input map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(input))
	for k, v := range input {
		if k == resumeKey {
			continue
		}
		out[k] = v
	}
	return out
}

func decodeResume(raw interface{}) (*Resume, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var r Resume
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func validateResume(r *Resume, fsmLen int, fingerprint string) error {
	if r.State != nil && (*r.State < 0 || *r.State >= fsmLen) {
		return badResume("resume state %d is out of range [0,%d)", *r.State, fsmLen)
	}
	for i, f := range r.Stack {
		if f.Kind == CatchFrame && (f.Catch < 0 || f.Catch >= fsmLen) {
			return badResume("resume stack frame %d: catch target %d is out of range", i, f.Catch)
		}
	}
	if err := serial.CheckVersion(r.SchemaVersion); err != nil {
		return badResume("%v", err)
	}
	if r.Fingerprint != "" && r.Fingerprint != fingerprint {
		return badResume("resume token fingerprint %s does not match deployed program %s", r.Fingerprint, fingerprint)
	}
	return nil
}

// inspect is spec.md §4.D's inspect(): non-object params pass through
// unchanged (they carry no error field); if an error is in flight,
// truncate to {error: ...} and search the stack top-down for the
// nearest catch frame. The stack itself is not modified. override
// is true whenever the step loop must replace its tentatively-computed
// next state with newState (nil meaning terminal).
func inspect(params interface{}, stack []Frame) (newParams interface{}, override bool, newState *int) {
	obj, ok := asObject(params)
	if !ok {
		// Non-object params have no "error" field to check; the wrap
		// spec.md describes is a local convenience for that check, not
		// a persisted representation — params itself is untouched.
		return params, false, nil
	}
	errVal, hasErr := obj["error"]
	if !hasErr {
		return params, false, nil
	}
	reduced := map[string]interface{}{"error": errVal}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].Kind == CatchFrame {
			target := stack[i].Catch
			return reduced, true, &target
		}
	}
	return reduced, true, nil
}

func terminal(params interface{}) (interface{}, error) {
	if obj, ok := asObject(params); ok {
		if _, hasErr := obj["error"]; hasErr {
			return Failure(obj), nil
		}
	}
	return &Success{Params: params}, nil
}

// step runs the FSM loop described in spec.md §4.D from (params, state,
// stack) to either a suspension or a terminal outcome.
func step(fsm compiler.Program, params interface{}, statePtr *int, stack []Frame, fingerprint string) (interface{}, error) {
	for statePtr != nil {
		current := *statePtr
		if current < 0 || current >= len(fsm) {
			return nil, internalError("state %d out of range [0,%d)", current, len(fsm))
		}
		ins := fsm[current]

		var next *int
		if ins.Next != nil {
			n := current + *ins.Next
			next = &n
		}
		statePtr = next

		switch ins.Type {
		case compiler.Pass:
			params, statePtr = applyInspect(params, stack, statePtr)

		case compiler.ActionOp:
			return &Suspend{
				Action: ins.Name,
				Params: params,
				Resume: Resume{
					State:         statePtr,
					Stack:         stack,
					Fingerprint:   fingerprint,
					SchemaVersion: serial.SchemaVersion,
				},
			}, nil

		case compiler.FuncOp:
			result, ferr := evalFunction(ins.Exec, params, stack)
			switch {
			case ferr != nil:
				params = map[string]interface{}{"error": ferr.Error()}
			case isCallable(result):
				params = map[string]interface{}{"error": "function instruction produced a callable value"}
			case result == nil:
				// undefined result: params unchanged.
			default:
				params = deepCopy(result)
			}
			params, statePtr = applyInspect(params, stack, statePtr)

		case compiler.LitOp:
			params = deepCopy(ins.Value)
			params, statePtr = applyInspect(params, stack, statePtr)

		case compiler.Choice:
			obj, _ := asObject(params)
			var val interface{}
			if obj != nil {
				val = obj["value"]
			}
			var off *int
			if truthy(val) {
				off = ins.Then
			} else {
				off = ins.Else
			}
			if off == nil {
				return nil, internalError("choice at %d missing its taken branch offset", current)
			}
			n := current + *off
			statePtr = &n

		case compiler.TryOp:
			if ins.Catch == nil {
				return nil, internalError("try at %d has no catch offset", current)
			}
			stack = append(stack, Frame{Kind: CatchFrame, Catch: current + *ins.Catch})

		case compiler.Exit:
			if len(stack) == 0 {
				return nil, internalError("exit at %d on empty stack", current)
			}
			stack = stack[:len(stack)-1]

		case compiler.LetOp:
			decl, _ := deepCopy(ins.Let).(map[string]interface{})
			if decl == nil {
				decl = map[string]interface{}{}
			}
			stack = append(stack, Frame{Kind: LetFrame, Let: decl})

		case compiler.Push:
			snapshot := params
			if ins.Field != "" {
				if obj, ok := asObject(params); ok {
					snapshot = obj[ins.Field]
				} else {
					snapshot = nil
				}
			}
			stack = append(stack, Frame{Kind: ParamsFrame, Params: deepCopy(snapshot)})

		case compiler.Pop:
			if len(stack) == 0 {
				return nil, internalError("pop at %d on empty stack", current)
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if ins.Collect {
				params = map[string]interface{}{"params": top.Params, "result": params}
			} else {
				params = top.Params
			}

		default:
			return nil, internalError("unrecognized instruction type %q at %d", ins.Type, current)
		}
	}

	return terminal(params)
}

func applyInspect(params interface{}, stack []Frame, defaultState *int) (interface{}, *int) {
	newParams, override, newState := inspect(params, stack)
	if override {
		return newParams, newState
	}
	return newParams, defaultState
}
