package ast

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/yarikc/composer/internal/name"
)

// ActionNode invokes name, canonicalizing it first. It is the only
// constructor that talks to the internal/name resolver.
func ActionNode(raw string) (*Composition, error) {
	qualified, err := name.Canonicalize(raw)
	if err != nil {
		return nil, invalidName(raw, err)
	}
	return single(&Action{Name: qualified}), nil
}

// FunctionNode evaluates inline source on the current parameters.
func FunctionNode(kind, code string) (*Composition, error) {
	e := Exec{Kind: kind, Code: code}
	if err := validateExec(e); err != nil {
		return nil, err
	}
	return single(&Function{Exec: e}), nil
}

// LiteralNode replaces the current parameters with value. value must
// not be a function (there is no source-text representation for one).
func LiteralNode(value interface{}) (*Composition, error) {
	if isFunc(value) {
		return nil, invalidArgument("literal value must not be a function", value)
	}
	return single(&Literal{Value: deepCopy(value)}), nil
}

// Value is an alias for LiteralNode; the empty object is its default.
func Value(value interface{}) (*Composition, error) {
	if value == nil {
		value = map[string]interface{}{}
	}
	return LiteralNode(value)
}

// Task coerces x into a Composition: nil becomes an empty sequence, a
// *Composition passes through unchanged, a string becomes an action
// name, and an Exec becomes inline source. Anything else is rejected.
func Task(x interface{}) (*Composition, error) {
	switch v := x.(type) {
	case nil:
		return &Composition{}, nil
	case *Composition:
		return v, nil
	case string:
		return ActionNode(v)
	case Exec:
		return FunctionNode(v.Kind, v.Code)
	default:
		return nil, invalidArgument("cannot coerce value to a task", x)
	}
}

// Sequence flattens its children left to right, merging their attached
// actions. Seq is an alias kept for brevity at call sites, matching the
// spec's seq(...) shorthand.
func Sequence(children ...*Composition) (*Composition, error) {
	merged, err := merge(children...)
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// Seq is Sequence under the spec's shorthand name.
func Seq(children ...*Composition) (*Composition, error) { return Sequence(children...) }

// If branches on test's result. With nosave=false (the default) the
// compiler wraps the test in a push/pop pair so params survive the
// test unmodified into whichever branch runs.
func If(test, consequent, alternate *Composition, opts Options) (*Composition, error) {
	if test == nil || consequent == nil {
		return nil, invalidArgument("if requires a test and a consequent", nil)
	}
	if alternate == nil {
		alternate = &Composition{}
	}
	merged, err := merge(test, consequent, alternate)
	if err != nil {
		return nil, err
	}
	node := &If{Test: test.Tree(), Consequent: consequent.Tree(), Alternate: alternate.Tree(), Options: opts}
	return replaceTree(merged, node), nil
}

// While re-evaluates test before each iteration of body.
func While(test, body *Composition, opts Options) (*Composition, error) {
	if test == nil || body == nil {
		return nil, invalidArgument("while requires a test and a body", nil)
	}
	merged, err := merge(test, body)
	if err != nil {
		return nil, err
	}
	node := &While{Test: test.Tree(), Body: body.Tree(), Options: opts}
	return replaceTree(merged, node), nil
}

// DoWhile runs body once before the first test.
func DoWhile(body, test *Composition, opts Options) (*Composition, error) {
	if test == nil || body == nil {
		return nil, invalidArgument("dowhile requires a body and a test", nil)
	}
	merged, err := merge(body, test)
	if err != nil {
		return nil, err
	}
	node := &DoWhile{Body: body.Tree(), Test: test.Tree(), Options: opts}
	return replaceTree(merged, node), nil
}

// TryNode runs handler when body fails in flight.
func TryNode(body, handler *Composition) (*Composition, error) {
	if body == nil {
		return nil, invalidArgument("try requires a body", nil)
	}
	if handler == nil {
		handler = &Composition{}
	}
	merged, err := merge(body, handler)
	if err != nil {
		return nil, err
	}
	node := &Try{Body: body.Tree(), Handler: handler.Tree()}
	return replaceTree(merged, node), nil
}

// FinallyNode always runs finalizer after body, success or failure.
func FinallyNode(body, finalizer *Composition) (*Composition, error) {
	if body == nil || finalizer == nil {
		return nil, invalidArgument("finally requires a body and a finalizer", nil)
	}
	merged, err := merge(body, finalizer)
	if err != nil {
		return nil, err
	}
	node := &Finally{Body: body.Tree(), Finalizer: finalizer.Tree()}
	return replaceTree(merged, node), nil
}

// LetNode pushes declarations as a new lexical frame around body.
func LetNode(declarations map[string]interface{}, body *Composition) (*Composition, error) {
	if err := validateDeclarations(declarations); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, invalidArgument("let requires a body", nil)
	}
	node := &Let{Declarations: deepCopy(declarations).(map[string]interface{}), Body: body.Tree()}
	return replaceTree(body, node), nil
}

// RetainNode produces {params, result: body(params)}. Catch is carried
// through to internal/compiler unchanged: the compiler wires it as a
// catch frame whose target is the shared exit immediately before the
// collecting pop, the same single-landing-point trick compileFinally
// uses, rather than desugaring it into a Try/handler pair here. An
// AST-level desugaring would need the handler to launder the error
// through a function instruction, and every function instruction's
// dispatch re-runs inspect() on its own output — which would see the
// still-error-shaped value and re-unwind past retain entirely instead
// of letting it become an ordinary {result: {error: ...}} value.
func RetainNode(body *Composition, opts RetainOptions) (*Composition, error) {
	if body == nil {
		return nil, invalidArgument("retain requires a body", nil)
	}
	merged, err := merge(body)
	if err != nil {
		return nil, err
	}
	node := &Retain{Body: body.Tree(), Options: opts}
	return replaceTree(merged, node), nil
}

// Repeat runs body n times: let({count: n}, while(count-- > 0, body)).
func Repeat(n int, body ...*Composition) (*Composition, error) {
	seq, err := Seq(body...)
	if err != nil {
		return nil, err
	}
	test, err := FunctionNode("expr", "{value: count > 0, __env__: {count: count - 1}}")
	if err != nil {
		return nil, err
	}
	loop, err := While(test, seq, Options{})
	if err != nil {
		return nil, err
	}
	return LetNode(map[string]interface{}{"count": n}, loop)
}

// Retry runs body up to n+1 times, stopping at the first non-error
// result: let({count: n}, dowhile(retain(body, catch:true), result.error
// && count-- > 0)), then unwraps retain's {params, result} envelope back
// down to just result — spec.md §4.B is explicit that retry "returns the
// final result", not the retain envelope the loop carries internally.
func Retry(n int, body ...*Composition) (*Composition, error) {
	seq, err := Seq(body...)
	if err != nil {
		return nil, err
	}
	attempt, err := RetainNode(seq, RetainOptions{Catch: true})
	if err != nil {
		return nil, err
	}
	test, err := FunctionNode("expr", "{value: p.result.error != nil && count > 0, __env__: {count: count - 1}}")
	if err != nil {
		return nil, err
	}
	// The loop carries retain's {params, result} envelope, so each
	// attempt first unpacks its params side; the input is wrapped the
	// same way beforehand, so every attempt runs body on the input params.
	wrap, err := FunctionNode("expr", "{params: p}")
	if err != nil {
		return nil, err
	}
	unpack, err := FunctionNode("expr", "p.params")
	if err != nil {
		return nil, err
	}
	fromInput, err := Seq(unpack, attempt)
	if err != nil {
		return nil, err
	}
	loop, err := DoWhile(fromInput, test, Options{})
	if err != nil {
		return nil, err
	}
	unwrap, err := FunctionNode("expr", "p.result")
	if err != nil {
		return nil, err
	}
	withUnwrap, err := Seq(wrap, loop, unwrap)
	if err != nil {
		return nil, err
	}
	return LetNode(map[string]interface{}{"count": n}, withUnwrap)
}

// Named wraps the whole composition under a single action node and
// appends an attachment whose payload is the original tree, so the
// composition can be recovered later by Encode.
func Named(qname string, c *Composition) (*Composition, error) {
	if c == nil {
		return nil, invalidArgument("named requires a composition", nil)
	}
	qualified, err := name.Canonicalize(qname)
	if err != nil {
		return nil, invalidName(qname, err)
	}
	action := Attachment{
		Name: qualified,
		Action: AttachedAction{
			Kind:        KindComposition,
			Annotations: []Annotation{{Key: "conductor", Value: c.Tree()}},
		},
	}
	wrapped := single(&Action{Name: qualified})
	wrapped.Attached = append([]Attachment(nil), c.Attached...)
	if err := wrapped.attach(action); err != nil {
		return nil, err
	}
	return wrapped, nil
}

// Lift assigns a synthetic, collision-resistant name to an anonymous
// composition (e.g. a bare inline Function) and elevates it to a
// standalone attached action via Named. This is how "inline functions
// elevated to actions" (spec.md §3.2) get a name when the caller
// doesn't supply one.
func Lift(c *Composition) (*Composition, error) {
	synthetic := fmt.Sprintf("anon/%s", uuid.NewString())
	return Named(synthetic, c)
}

func replaceTree(merged *Composition, node Node) *Composition {
	merged.Nodes = []Node{node}
	return merged
}

func isFunc(v interface{}) bool {
	if v == nil {
		return false
	}
	return reflect.TypeOf(v).Kind() == reflect.Func
}
