package conductor

import (
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/yarikc/composer/internal/ast"
)

// collectEnv scans the stack bottom-up collecting let-bound names, so
// that names from frames pushed later (closer to the top, deeper in
// lexical nesting) overwrite ones pushed earlier — exactly spec.md
// §4.D's "scanning the stack from the bottom up, so inner let frames
// shadow outer ones when flattened."
func collectEnv(stack []Frame) map[string]interface{} {
	env := map[string]interface{}{}
	for _, f := range stack {
		if f.Kind == LetFrame {
			for k, v := range f.Let {
				env[k] = v
			}
		}
	}
	return env
}

// writeBack implements this module's realization of spec.md §4.D's
// write-back contract using github.com/expr-lang/expr, which (unlike the
// original dynamic-language evaluator) has no notion of mutating a
// caller's variable through an evaluated expression. An exec.code
// expression that needs to update a let-bound name instead returns a
// result shaped {..., __env__: {name: newValue, ...}}; writeBack applies
// those updates to the topmost frame that defines each name (per
// spec.md §4.D, "written back to the topmost frame that defines it")
// and strips __env__ from the value that becomes the new params.
func writeBack(stack []Frame, result interface{}) interface{} {
	obj, ok := asObject(result)
	if !ok {
		return result
	}
	updates, ok := asObject(obj["__env__"])
	if !ok {
		return result
	}
	for name, val := range updates {
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].Kind != LetFrame {
				continue
			}
			if _, defined := stack[i].Let[name]; defined {
				stack[i].Let[name] = val
				break
			}
		}
	}
	rest := make(map[string]interface{}, len(obj)-1)
	for k, v := range obj {
		if k != "__env__" {
			rest[k] = v
		}
	}
	return rest
}

// evalFunction runs exec.Code as an expr-lang/expr program against an
// environment binding "p" to the current params plus every visible
// let-bound name, then applies the __env__ write-back convention.
func evalFunction(exec ast.Exec, params interface{}, stack []Frame) (result interface{}, err error) {
	if exec.Kind != "expr" {
		return nil, fmt.Errorf("conductor: unsupported exec kind %q", exec.Kind)
	}
	env := collectEnv(stack)
	env["p"] = params

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("function instruction panicked: %v", r)
		}
	}()

	program, compileErr := expr.Compile(exec.Code, expr.Env(env))
	if compileErr != nil {
		return nil, compileErr
	}
	out, runErr := expr.Run(program, env)
	if runErr != nil {
		return nil, runErr
	}
	return writeBack(stack, out), nil
}
