package serial

import (
	"encoding/json"
	"fmt"

	"github.com/yarikc/composer/internal/ast"
)

// NodeWire is the tagged-union wire shape for an ast.Node. Only the
// fields relevant to Type are populated; this is the JSON analogue of
// the Go-side isNode() marker-method discriminated union.
type NodeWire struct {
	Type string `json:"type"`

	// action
	Name string `json:"name,omitempty"`

	// function
	Exec *ExecWire `json:"exec,omitempty"`

	// literal
	Value interface{} `json:"value,omitempty"`

	// sequence
	Children []NodeWire `json:"children,omitempty"`

	// if / while / dowhile
	Test       *NodeWire    `json:"test,omitempty"`
	Consequent *NodeWire    `json:"consequent,omitempty"`
	Alternate  *NodeWire    `json:"alternate,omitempty"`
	Body       *NodeWire    `json:"body,omitempty"`
	Options    *OptionsWire `json:"options,omitempty"`

	// try / finally
	Handler   *NodeWire `json:"handler,omitempty"`
	Finalizer *NodeWire `json:"finalizer,omitempty"`

	// let
	Declarations map[string]interface{} `json:"declarations,omitempty"`

	// retain
	RetainOptions *RetainOptionsWire `json:"retainOptions,omitempty"`
}

// OptionsWire mirrors ast.Options.
type OptionsWire struct {
	NoSave bool `json:"nosave,omitempty"`
}

// RetainOptionsWire mirrors ast.RetainOptions.
type RetainOptionsWire struct {
	Field  string `json:"field,omitempty"`
	Catch  bool   `json:"catch,omitempty"`
	Filter string `json:"filter,omitempty"`
}

// Node type tags. These are wire constants, independent of
// internal/compiler's instruction Type constants.
const (
	tAction   = "action"
	tFunction = "function"
	tLiteral  = "literal"
	tSequence = "sequence"
	tIf       = "if"
	tWhile    = "while"
	tDoWhile  = "dowhile"
	tTry      = "try"
	tFinally  = "finally"
	tLet      = "let"
	tRetain   = "retain"
)

// EncodeNode converts one ast.Node (and, recursively, its children)
// into its wire form.
func EncodeNode(n ast.Node) (*NodeWire, error) {
	if n == nil {
		return &NodeWire{Type: tSequence}, nil
	}
	switch v := n.(type) {
	case *ast.Action:
		return &NodeWire{Type: tAction, Name: v.Name}, nil

	case *ast.Function:
		return &NodeWire{Type: tFunction, Exec: &ExecWire{Kind: v.Exec.Kind, Code: v.Exec.Code}}, nil

	case *ast.Literal:
		return &NodeWire{Type: tLiteral, Value: v.Value}, nil

	case *ast.Sequence:
		children := make([]NodeWire, 0, len(v.Children))
		for _, c := range v.Children {
			w, err := EncodeNode(c)
			if err != nil {
				return nil, err
			}
			children = append(children, *w)
		}
		return &NodeWire{Type: tSequence, Children: children}, nil

	case *ast.If:
		test, err := EncodeNode(v.Test)
		if err != nil {
			return nil, err
		}
		cons, err := EncodeNode(v.Consequent)
		if err != nil {
			return nil, err
		}
		alt, err := EncodeNode(v.Alternate)
		if err != nil {
			return nil, err
		}
		return &NodeWire{Type: tIf, Test: test, Consequent: cons, Alternate: alt, Options: &OptionsWire{NoSave: v.Options.NoSave}}, nil

	case *ast.While:
		test, err := EncodeNode(v.Test)
		if err != nil {
			return nil, err
		}
		body, err := EncodeNode(v.Body)
		if err != nil {
			return nil, err
		}
		return &NodeWire{Type: tWhile, Test: test, Body: body, Options: &OptionsWire{NoSave: v.Options.NoSave}}, nil

	case *ast.DoWhile:
		body, err := EncodeNode(v.Body)
		if err != nil {
			return nil, err
		}
		test, err := EncodeNode(v.Test)
		if err != nil {
			return nil, err
		}
		return &NodeWire{Type: tDoWhile, Body: body, Test: test, Options: &OptionsWire{NoSave: v.Options.NoSave}}, nil

	case *ast.Try:
		body, err := EncodeNode(v.Body)
		if err != nil {
			return nil, err
		}
		handler, err := EncodeNode(v.Handler)
		if err != nil {
			return nil, err
		}
		return &NodeWire{Type: tTry, Body: body, Handler: handler}, nil

	case *ast.Finally:
		body, err := EncodeNode(v.Body)
		if err != nil {
			return nil, err
		}
		finalizer, err := EncodeNode(v.Finalizer)
		if err != nil {
			return nil, err
		}
		return &NodeWire{Type: tFinally, Body: body, Finalizer: finalizer}, nil

	case *ast.Let:
		body, err := EncodeNode(v.Body)
		if err != nil {
			return nil, err
		}
		return &NodeWire{Type: tLet, Declarations: v.Declarations, Body: body}, nil

	case *ast.Retain:
		body, err := EncodeNode(v.Body)
		if err != nil {
			return nil, err
		}
		return &NodeWire{
			Type: tRetain,
			Body: body,
			RetainOptions: &RetainOptionsWire{
				Field:  v.Options.Field,
				Catch:  v.Options.Catch,
				Filter: v.Options.Filter,
			},
		}, nil

	default:
		return nil, fmt.Errorf("serial: unrecognized node type %T", n)
	}
}

// DecodeNode reconstructs an ast.Node (and, recursively, its
// children) from its wire form.
func DecodeNode(w *NodeWire) (ast.Node, error) {
	if w == nil {
		return &ast.Sequence{}, nil
	}
	switch w.Type {
	case tAction:
		return &ast.Action{Name: w.Name}, nil

	case tFunction:
		if w.Exec == nil {
			return nil, fmt.Errorf("serial: function node missing exec")
		}
		return &ast.Function{Exec: ast.Exec{Kind: w.Exec.Kind, Code: w.Exec.Code}}, nil

	case tLiteral:
		return &ast.Literal{Value: w.Value}, nil

	case tSequence:
		children := make([]ast.Node, 0, len(w.Children))
		for i := range w.Children {
			n, err := DecodeNode(&w.Children[i])
			if err != nil {
				return nil, err
			}
			children = append(children, n)
		}
		return &ast.Sequence{Children: children}, nil

	case tIf:
		test, err := DecodeNode(w.Test)
		if err != nil {
			return nil, err
		}
		cons, err := DecodeNode(w.Consequent)
		if err != nil {
			return nil, err
		}
		alt, err := DecodeNode(w.Alternate)
		if err != nil {
			return nil, err
		}
		return &ast.If{Test: test, Consequent: cons, Alternate: alt, Options: decodeOptions(w.Options)}, nil

	case tWhile:
		test, err := DecodeNode(w.Test)
		if err != nil {
			return nil, err
		}
		body, err := DecodeNode(w.Body)
		if err != nil {
			return nil, err
		}
		return &ast.While{Test: test, Body: body, Options: decodeOptions(w.Options)}, nil

	case tDoWhile:
		body, err := DecodeNode(w.Body)
		if err != nil {
			return nil, err
		}
		test, err := DecodeNode(w.Test)
		if err != nil {
			return nil, err
		}
		return &ast.DoWhile{Body: body, Test: test, Options: decodeOptions(w.Options)}, nil

	case tTry:
		body, err := DecodeNode(w.Body)
		if err != nil {
			return nil, err
		}
		handler, err := DecodeNode(w.Handler)
		if err != nil {
			return nil, err
		}
		return &ast.Try{Body: body, Handler: handler}, nil

	case tFinally:
		body, err := DecodeNode(w.Body)
		if err != nil {
			return nil, err
		}
		finalizer, err := DecodeNode(w.Finalizer)
		if err != nil {
			return nil, err
		}
		return &ast.Finally{Body: body, Finalizer: finalizer}, nil

	case tLet:
		body, err := DecodeNode(w.Body)
		if err != nil {
			return nil, err
		}
		return &ast.Let{Declarations: w.Declarations, Body: body}, nil

	case tRetain:
		body, err := DecodeNode(w.Body)
		if err != nil {
			return nil, err
		}
		opts := ast.RetainOptions{}
		if w.RetainOptions != nil {
			opts = ast.RetainOptions{
				Field:  w.RetainOptions.Field,
				Catch:  w.RetainOptions.Catch,
				Filter: w.RetainOptions.Filter,
			}
		}
		return &ast.Retain{Body: body, Options: opts}, nil

	default:
		return nil, fmt.Errorf("serial: unrecognized wire node type %q", w.Type)
	}
}

func decodeOptions(o *OptionsWire) ast.Options {
	if o == nil {
		return ast.Options{}
	}
	return ast.Options{NoSave: o.NoSave}
}

// nodeWireFromMap re-parses a generic JSON map (as produced by
// decoding an AnnotationWire.Value whose static type is interface{})
// back into a NodeWire, for the "conductor" annotation spec.md §6.1
// describes. Round-tripping through json.Marshal/Unmarshal is simpler
// and less error-prone than hand-walking the map.
func nodeWireFromMap(m map[string]interface{}) (*NodeWire, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var w NodeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return &w, nil
}
