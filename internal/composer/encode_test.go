package composer_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yarikc/composer/internal/ast"
	"github.com/yarikc/composer/internal/composer"
)

func TestEncodeTransformsCompositionAttachment(t *testing.T) {
	step, err := ast.ActionNode("step")
	require.NoError(t, err)
	named, err := ast.Named("pipeline", step)
	require.NoError(t, err)

	encoded, err := composer.Encode(named, "")
	require.NoError(t, err)
	require.Len(t, encoded.Attached, 1)

	att := encoded.Attached[0]
	require.Equal(t, ast.KindAction, att.Action.Kind)
	require.Equal(t, "conductor", att.Action.Exec.Kind)
	require.NotEmpty(t, att.Action.Exec.Code)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(att.Action.Exec.Code), &doc))
	require.Contains(t, doc, "program")
	require.Contains(t, doc, "fingerprint")
	require.Contains(t, doc, "schemaVersion")

	// The original tree is preserved as an annotation.
	require.Len(t, att.Action.Annotations, 1)
	require.Equal(t, "conductor", att.Action.Annotations[0].Key)
}

func TestEncodeWithOptionalNameWrapsFirst(t *testing.T) {
	step, err := ast.ActionNode("step")
	require.NoError(t, err)

	encoded, err := composer.Encode(step, "anonymous-pipeline")
	require.NoError(t, err)

	action, ok := encoded.Tree().(*ast.Action)
	require.True(t, ok)
	require.Equal(t, "/_/anonymous-pipeline", action.Name)
	require.Len(t, encoded.Attached, 1)
	require.Equal(t, ast.KindAction, encoded.Attached[0].Action.Kind)
}

func TestEncodeRejectsUnnamedComposition(t *testing.T) {
	step, err := ast.ActionNode("step")
	require.NoError(t, err)
	other, err := ast.ActionNode("other")
	require.NoError(t, err)
	seq, err := ast.Seq(step, other)
	require.NoError(t, err)

	_, err = composer.Encode(seq, "")
	require.Error(t, err)
	var aerr *ast.Error
	require.ErrorAs(t, err, &aerr)
	require.Equal(t, ast.CannotEncode, aerr.Kind)
}
