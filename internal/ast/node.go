// Package ast builds the composition tree: the typed, discriminated node
// graph the compiler lowers to a flat FSM. Every exported constructor
// validates its own arguments synchronously and returns a *Composition,
// never a bare Node, so attached actions always have somewhere to live.
package ast

// Node is a composition AST node. The concrete node types below are
// exported so other packages can inspect a tree, but only this package
// can add a Node implementation (isNode is unexported), mirroring how
// planfmt.ExecutionNode in the teacher stack is a closed, marker-method
// discriminated union rather than an open interface.
type Node interface {
	isNode()
}

// Action invokes a named action by its canonical qualified name.
type Action struct {
	Name string
}

func (*Action) isNode() {}

// Exec is an opaque unit of inline source, evaluated by the conductor
// against the current params and the visible let-bound names. Kind
// names the evaluation dialect; this module ships one: "expr"
// (github.com/expr-lang/expr), the declarative-expression realization
// spec.md §9 offers as an alternative to a full embedded scripting
// engine.
type Exec struct {
	Kind string
	Code string
}

// Function evaluates inline source on the current parameters.
type Function struct {
	Exec Exec
}

func (*Function) isNode() {}

// Literal replaces the current parameters with a constant JSON-shaped value.
type Literal struct {
	Value interface{}
}

func (*Literal) isNode() {}

// Sequence runs its children left to right.
type Sequence struct {
	Children []Node
}

func (*Sequence) isNode() {}

// Options controls whether if/while/dowhile wrap their branches in a
// push/pop pair that preserves params across the test.
type Options struct {
	NoSave bool
}

// If branches on the truthiness of the test's result.
type If struct {
	Test       Node
	Consequent Node
	Alternate  Node
	Options    Options
}

func (*If) isNode() {}

// While re-evaluates Test before every iteration of Body.
type While struct {
	Test    Node
	Body    Node
	Options Options
}

func (*While) isNode() {}

// DoWhile runs Body once, then Test, looping while Test holds.
type DoWhile struct {
	Body    Node
	Test    Node
	Options Options
}

func (*DoWhile) isNode() {}

// Try runs Body; on a failure in flight, Handler runs instead.
type Try struct {
	Body    Node
	Handler Node
}

func (*Try) isNode() {}

// Finally runs Finalizer whether Body succeeds or fails, then
// re-propagates any failure that was in flight.
type Finally struct {
	Body      Node
	Finalizer Node
}

func (*Finally) isNode() {}

// Let pushes a lexical environment frame around Body.
type Let struct {
	Declarations map[string]interface{}
	Body         Node
}

func (*Let) isNode() {}

// RetainOptions configures Retain's input-capture behavior.
type RetainOptions struct {
	// Field, if non-empty, captures only params[Field] instead of all of params.
	Field string
	// Catch, if true, has the compiler install a catch frame around
	// Body so a thrown error round-trips as result.error instead of
	// unwinding past the retain.
	Catch bool
	// Filter is carried through serialization unchanged. The compiler
	// does not apply it: a Retain with a Filter captures params (or
	// params[Field]) exactly as it would with an empty Filter.
	Filter string
}

// Retain captures the input parameters alongside Body's result:
// {params: <captured>, result: Body(params)}.
type Retain struct {
	Body    Node
	Options RetainOptions
}

func (*Retain) isNode() {}
