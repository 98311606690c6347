package ast

import (
	"fmt"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Annotation is free-form metadata attached to a deployed action, e.g.
// {key: "conductor", value: <original tree>} so a composition can be
// recovered from its encoded form.
type Annotation struct {
	Key   string
	Value interface{}
}

// AttachedAction describes an action that must be deployed alongside a
// composition. Kind distinguishes an attachment still waiting to be
// encoded (spec.md §4.B: "payload is the original tree, kind =
// composition") from one already carrying deployable source.
type AttachedAction struct {
	Kind        string
	Exec        Exec
	Annotations []Annotation
}

// Attachment kinds (spec.md §4.B "Naming / encoding").
const (
	// KindComposition marks an attachment whose only payload so far is
	// the original AST tree, stashed in a "conductor" annotation by
	// Named — not yet deployable until Encode fills in Exec.
	KindComposition = "composition"
	// KindAction marks an attachment with deployable Exec source,
	// either supplied directly or produced by Encode.
	KindAction = "action"
)

// Attachment names an AttachedAction.
type Attachment struct {
	Name   string
	Action AttachedAction
}

// Composition is a composition AST together with the actions that must
// be deployed alongside it. Every combinator constructor in this
// package returns one, so merging attached actions is always uniform:
// there is no bare-Node return type a caller could lose attachments by
// discarding.
type Composition struct {
	Nodes    []Node
	Attached []Attachment
}

// single wraps one node with no attachments.
func single(n Node) *Composition {
	return &Composition{Nodes: []Node{n}}
}

// Tree collapses Nodes into the single Node the compiler lowers:
// zero nodes become an empty Sequence (compiles to [pass]), one node
// is returned bare, more than one is wrapped in a Sequence.
func (c *Composition) Tree() Node {
	switch len(c.Nodes) {
	case 0:
		return &Sequence{}
	case 1:
		return c.Nodes[0]
	default:
		return &Sequence{Children: append([]Node(nil), c.Nodes...)}
	}
}

// merge concatenates the parts' nodes, in order, into a new Composition
// and collects their attachments, failing with DuplicateAction when two
// attachments share a name. Together with Named, which checks its own
// attachment the same way, this resolves the spec.md §9 open question
// ("enforce uniqueness globally, not just on the named() path").
func merge(parts ...*Composition) (*Composition, error) {
	out := &Composition{}
	for _, p := range parts {
		if p == nil {
			continue
		}
		out.Nodes = append(out.Nodes, p.Nodes...)
		for _, att := range p.Attached {
			if err := out.attach(att); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (c *Composition) attach(att Attachment) error {
	for _, existing := range c.Attached {
		if existing.Name == att.Name {
			return duplicateAction(att.Name, c.Attached)
		}
	}
	c.Attached = append(c.Attached, att)
	return nil
}

func duplicateAction(name string, existing []Attachment) error {
	names := make([]string, len(existing))
	for i, a := range existing {
		names[i] = a.Name
	}
	hint := closest(name, names)
	return &Error{
		Kind:     DuplicateAction,
		Message:  fmt.Sprintf("attached action %q already present", name),
		Argument: name,
		Hint:     hint,
	}
}

// ClosestAttachmentName returns the name, among attachments, fuzzy
// nearest to target, or "" if attachments is empty. Used by
// internal/composer to produce a "did you mean" hint on CannotEncode.
func ClosestAttachmentName(target string, attachments []Attachment) string {
	names := make([]string, len(attachments))
	for i, a := range attachments {
		names[i] = a.Name
	}
	return closest(target, names)
}

// closest returns the candidate string fuzzy-nearest to target, or ""
// if candidates is empty. Used only for diagnostic hints, never for
// control flow, so a weak match is harmless.
func closest(target string, candidates []string) string {
	best := ""
	bestRank := -1
	for _, c := range candidates {
		if c == target {
			continue
		}
		r := fuzzy.RankMatch(target, c)
		if r < 0 {
			continue
		}
		if best == "" || r < bestRank {
			best = c
			bestRank = r
		}
	}
	return best
}
