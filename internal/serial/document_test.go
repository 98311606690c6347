package serial_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/yarikc/composer/internal/ast"
	"github.com/yarikc/composer/internal/serial"
)

func TestDocumentRoundTrip(t *testing.T) {
	test, err := ast.FunctionNode("expr", "p.n > 0")
	require.NoError(t, err)
	yes, err := ast.ActionNode("yes")
	require.NoError(t, err)
	no, err := ast.ActionNode("no")
	require.NoError(t, err)
	branch, err := ast.If(test, yes, no, ast.Options{})
	require.NoError(t, err)
	named, err := ast.Named("demo", branch)
	require.NoError(t, err)

	data, err := serial.MarshalJSON(named)
	require.NoError(t, err)

	back, err := serial.UnmarshalJSON(data)
	require.NoError(t, err)

	require.Empty(t, cmp.Diff(named.Tree(), back.Tree()))
	require.Len(t, back.Attached, len(named.Attached))
	for i := range named.Attached {
		require.Equal(t, named.Attached[i].Name, back.Attached[i].Name)
	}

	// The "conductor" annotation carries the original branch tree;
	// confirm it survived the round trip structurally intact.
	original := named.Attached[len(named.Attached)-1].Action.Annotations[0].Value
	reconstructed := back.Attached[len(back.Attached)-1].Action.Annotations[0].Value
	require.Empty(t, cmp.Diff(original, reconstructed))
}

func TestDocumentRoundTripPreservesAttachmentKind(t *testing.T) {
	action, err := ast.ActionNode("greet")
	require.NoError(t, err)
	named, err := ast.Named("workflows/greeter", action)
	require.NoError(t, err)

	data, err := serial.MarshalJSON(named)
	require.NoError(t, err)
	back, err := serial.UnmarshalJSON(data)
	require.NoError(t, err)

	require.Len(t, back.Attached, 1)
	require.Equal(t, named.Attached[0].Action.Kind, back.Attached[0].Action.Kind,
		"a round-tripped attachment must keep its composition/action classification so it can be re-Encoded without re-Naming")
}

func TestDocumentRoundTripPreservesConductorAnnotation(t *testing.T) {
	action, err := ast.ActionNode("greet")
	require.NoError(t, err)
	named, err := ast.Named("workflows/greeter", action)
	require.NoError(t, err)

	data, err := serial.MarshalJSON(named)
	require.NoError(t, err)
	back, err := serial.UnmarshalJSON(data)
	require.NoError(t, err)

	require.Len(t, back.Attached, 1)
	annotations := back.Attached[0].Action.Annotations
	require.Len(t, annotations, 1)
	require.Equal(t, "conductor", annotations[0].Key)
	_, ok := annotations[0].Value.(*ast.Action)
	require.True(t, ok)
}
