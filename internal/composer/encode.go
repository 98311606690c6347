// Package composer implements encode(), spec.md §4.B's operation that
// turns every "composition"-kind attachment produced by ast.Named into
// a deployable action. It sits above internal/ast, internal/compiler,
// and internal/serial rather than inside any of them, because encode
// needs all three (tree -> FSM -> wire program) and none of those
// packages may import each other without a cycle: internal/ast knows
// nothing of compilation, internal/compiler knows nothing of the wire
// format, internal/serial knows nothing of encode's CannotEncode rule.
package composer

import (
	"encoding/json"
	"fmt"

	"github.com/yarikc/composer/internal/ast"
	"github.com/yarikc/composer/internal/compiler"
	"github.com/yarikc/composer/internal/serial"
)

// conductorKind is the Exec.Kind a deployed action carries once Encode
// has filled in its source: the host platform recognizes this kind and
// instantiates a generic conductor worker against Code, rather than
// running Code as, say, an "expr" program the way a Function node's
// inline source is evaluated.
const conductorKind = "conductor"

// Encode transforms c into a deployable form: every attachment whose
// Kind is ast.KindComposition gets its Exec populated with
// conductorSource(tree) and is reclassified ast.KindAction. If
// optionalName is non-empty, c is first wrapped with ast.Named(optionalName, c).
//
// Per spec.md §7, Encode requires the resulting composition's Tree() to
// be a single *ast.Action (i.e. the composition must already be named,
// or optionalName must supply a name) — otherwise it fails with
// ast.CannotEncode.
func Encode(c *ast.Composition, optionalName string) (*ast.Composition, error) {
	if c == nil {
		return nil, fmt.Errorf("composer: cannot encode a nil composition")
	}

	working := c
	if optionalName != "" {
		named, err := ast.Named(optionalName, c)
		if err != nil {
			return nil, err
		}
		working = named
	}

	if _, ok := working.Tree().(*ast.Action); !ok {
		return nil, ast.CannotEncodeError(
			"encode requires a single named action at the composition's root; call named(qname, ...) first",
			ast.ClosestAttachmentName(optionalName, working.Attached),
		)
	}

	attached := make([]ast.Attachment, len(working.Attached))
	for i, att := range working.Attached {
		if att.Action.Kind != ast.KindComposition {
			attached[i] = att
			continue
		}
		encoded, err := encodeAttachment(att)
		if err != nil {
			return nil, err
		}
		attached[i] = encoded
	}

	return &ast.Composition{Nodes: working.Nodes, Attached: attached}, nil
}

func encodeAttachment(att ast.Attachment) (ast.Attachment, error) {
	tree := treeFromAnnotations(att.Action.Annotations)
	if tree == nil {
		return ast.Attachment{}, fmt.Errorf("composer: attachment %q has no conductor annotation to encode", att.Name)
	}

	source, err := conductorSource(tree)
	if err != nil {
		return ast.Attachment{}, fmt.Errorf("composer: encoding %q: %w", att.Name, err)
	}

	att.Action.Kind = ast.KindAction
	att.Action.Exec = ast.Exec{Kind: conductorKind, Code: source}
	return att, nil
}

func treeFromAnnotations(annotations []ast.Annotation) ast.Node {
	for _, a := range annotations {
		if a.Key == "conductor" {
			if n, ok := a.Value.(ast.Node); ok {
				return n
			}
		}
	}
	return nil
}

// conductorSource compiles tree to an FSM and serializes it as the
// small self-contained document a generic conductor worker loads at
// invocation time: the compiled program plus its fingerprint, so the
// deployed action's first invocation (and every resumed one after it)
// can verify the $resume token it is handed was minted by this exact
// program.
func conductorSource(tree ast.Node) (string, error) {
	program, err := compiler.Compile(tree, "")
	if err != nil {
		return "", fmt.Errorf("compiling composition: %w", err)
	}
	fingerprint, err := serial.Fingerprint(program)
	if err != nil {
		return "", fmt.Errorf("fingerprinting program: %w", err)
	}

	doc := struct {
		SchemaVersion string           `json:"schemaVersion"`
		Fingerprint   string           `json:"fingerprint"`
		Program       compiler.Program `json:"program"`
	}{
		SchemaVersion: serial.SchemaVersion,
		Fingerprint:   fingerprint,
		Program:       program,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
