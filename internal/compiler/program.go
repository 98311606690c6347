// Package compiler lowers a composition AST (internal/ast) to a flat
// FSM program: an array of instructions with relative jumps, in the
// same spirit as the teacher's runtime/planner package lowering a
// parsed tree to a flat planfmt.Plan, and
// other_examples/…informatter-nilan__compiler-ast_compiler.go.go's
// direct AST-to-bytecode compiler (single pass, no separate IR).
package compiler

import "github.com/yarikc/composer/internal/ast"

// Type discriminates FSM instructions.
type Type string

const (
	Pass     Type = "pass"
	ActionOp Type = "action"
	FuncOp   Type = "function"
	LitOp    Type = "literal"
	Choice   Type = "choice"
	TryOp    Type = "try"
	Exit     Type = "exit"
	LetOp    Type = "let"
	Push     Type = "push"
	Pop      Type = "pop"
)

// Instruction is one FSM step. Next/Then/Else/Catch are relative
// offsets from the instruction's own index; nil means "terminate"
// (Next) or "not applicable" (Then/Else/Catch).
type Instruction struct {
	Type Type
	Path string

	Next  *int
	Then  *int
	Else  *int
	Catch *int

	Name    string                 // action
	Exec    ast.Exec               // function
	Value   interface{}            // literal
	Let     map[string]interface{} // let
	Field   string                 // push
	Collect bool                   // pop
}

// Program is a flat, relative-jump FSM.
type Program []Instruction

func intPtr(v int) *int { return &v }

// Chain concatenates front and back, setting front's last instruction's
// Next to fall through into back. This is the one operation that makes
// sequential composition a pure concatenation: compile(sequence) folds
// its children with Chain, and nothing downstream needs to know the
// absolute position either program will end up at once further
// chaining happens, because every offset Chain writes is relative to
// the instruction that carries it.
func Chain(front, back Program) Program {
	if len(back) == 0 {
		return front
	}
	if len(front) == 0 {
		return back
	}
	last := len(front) - 1
	front[last].Next = intPtr(1)
	return append(front, back...)
}
