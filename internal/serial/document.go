// Package serial implements the external wire formats spec.md §6.1
// describes only in prose: the JSON serialized-composition document,
// a CBOR companion encoding for the compiled FSM (resume tokens stay
// JSON), and the fingerprint/version stamps that let a conductor recognize a
// resume token produced by a different deployment of itself. It plays
// the role the teacher's core/planfmt package plays for a
// planfmt.Plan: a thin, pure (de)serializer with no knowledge of how
// the thing it serializes is executed.
package serial

import (
	"fmt"

	"github.com/yarikc/composer/internal/ast"
)

// Document is the JSON document spec.md §6.1 describes: a
// sequence-flattened array of top-level AST nodes plus the actions
// that must be deployed alongside them.
type Document struct {
	Composition []NodeWire   `json:"composition"`
	Actions     []ActionWire `json:"actions"`
}

// ActionWire names an AttachedActionWire for deployment.
type ActionWire struct {
	Name   string             `json:"name"`
	Action AttachedActionWire `json:"action"`
}

// AttachedActionWire is the deployable unit: inline source plus
// free-form annotations (spec.md §6.1: "annotations may carry
// {key:"conductor", value:<original AST tree>}").
type AttachedActionWire struct {
	Kind        string           `json:"kind,omitempty"`
	Exec        ExecWire         `json:"exec"`
	Annotations []AnnotationWire `json:"annotations,omitempty"`
}

// ExecWire mirrors ast.Exec on the wire.
type ExecWire struct {
	Kind string `json:"kind"`
	Code string `json:"code,omitempty"`
}

// AnnotationWire mirrors ast.Annotation; Value is either an arbitrary
// JSON value or, for the "conductor" key, a nested NodeWire tree — the
// caller distinguishes by Key.
type AnnotationWire struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// EncodeDocument converts a composition into its wire Document.
func EncodeDocument(c *ast.Composition) (*Document, error) {
	if c == nil {
		return nil, fmt.Errorf("serial: cannot encode a nil composition")
	}
	nodes := make([]NodeWire, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		w, err := EncodeNode(n)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *w)
	}
	actions := make([]ActionWire, 0, len(c.Attached))
	for _, att := range c.Attached {
		aw, err := encodeAttachment(att)
		if err != nil {
			return nil, err
		}
		actions = append(actions, aw)
	}
	return &Document{Composition: nodes, Actions: actions}, nil
}

// DecodeDocument reconstructs a composition from its wire Document.
// Decoded nodes are trusted verbatim (no builder-time validation is
// re-run); this mirrors the teacher's planfmt.Reader, which treats a
// well-formed plan file as already proven valid by the writer.
func DecodeDocument(doc *Document) (*ast.Composition, error) {
	if doc == nil {
		return nil, fmt.Errorf("serial: cannot decode a nil document")
	}
	nodes := make([]ast.Node, 0, len(doc.Composition))
	for i := range doc.Composition {
		n, err := DecodeNode(&doc.Composition[i])
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	attached := make([]ast.Attachment, 0, len(doc.Actions))
	for _, aw := range doc.Actions {
		att, err := decodeAttachment(aw)
		if err != nil {
			return nil, err
		}
		attached = append(attached, att)
	}
	return &ast.Composition{Nodes: nodes, Attached: attached}, nil
}

func encodeAttachment(att ast.Attachment) (ActionWire, error) {
	annotations := make([]AnnotationWire, 0, len(att.Action.Annotations))
	for _, a := range att.Action.Annotations {
		value := a.Value
		if node, ok := a.Value.(ast.Node); ok {
			w, err := EncodeNode(node)
			if err != nil {
				return ActionWire{}, err
			}
			value = w
		}
		annotations = append(annotations, AnnotationWire{Key: a.Key, Value: value})
	}
	return ActionWire{
		Name: att.Name,
		Action: AttachedActionWire{
			Kind:        att.Action.Kind,
			Exec:        ExecWire{Kind: att.Action.Exec.Kind, Code: att.Action.Exec.Code},
			Annotations: annotations,
		},
	}, nil
}

func decodeAttachment(aw ActionWire) (ast.Attachment, error) {
	annotations := make([]ast.Annotation, 0, len(aw.Action.Annotations))
	for _, a := range aw.Action.Annotations {
		value := a.Value
		if a.Key == "conductor" {
			nested, ok := a.Value.(*NodeWire)
			if !ok {
				if m, ok2 := a.Value.(map[string]interface{}); ok2 {
					var err error
					nested, err = nodeWireFromMap(m)
					if err != nil {
						return ast.Attachment{}, err
					}
				}
			}
			if nested != nil {
				n, err := DecodeNode(nested)
				if err != nil {
					return ast.Attachment{}, err
				}
				value = n
			}
		}
		annotations = append(annotations, ast.Annotation{Key: a.Key, Value: value})
	}
	return ast.Attachment{
		Name: aw.Name,
		Action: ast.AttachedAction{
			Kind:        aw.Action.Kind,
			Exec:        ast.Exec{Kind: aw.Action.Exec.Kind, Code: aw.Action.Exec.Code},
			Annotations: annotations,
		},
	}, nil
}
