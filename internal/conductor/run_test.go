package conductor_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yarikc/composer/internal/ast"
	"github.com/yarikc/composer/internal/compiler"
	"github.com/yarikc/composer/internal/conductor"
)

func build(t *testing.T, c *ast.Composition) compiler.Program {
	t.Helper()
	prog, err := compiler.Compile(c.Tree(), "")
	require.NoError(t, err)
	return prog
}

func TestSequenceAndLiteral(t *testing.T) {
	lit, err := ast.LiteralNode(map[string]interface{}{"value": 3.0})
	require.NoError(t, err)
	fn, err := ast.FunctionNode("expr", "{value: p.value + 1}")
	require.NoError(t, err)
	comp, err := ast.Seq(lit, fn)
	require.NoError(t, err)

	outcome, err := conductor.Run(build(t, comp), map[string]interface{}{})
	require.NoError(t, err)
	success, ok := outcome.(*conductor.Success)
	require.True(t, ok)
	require.Equal(t, map[string]interface{}{"value": 4.0}, success.Params)
}

func TestScalarLiteralTerminatesUnwrapped(t *testing.T) {
	lit, err := ast.LiteralNode(3.0)
	require.NoError(t, err)

	out, err := conductor.Run(build(t, lit), map[string]interface{}{})
	require.NoError(t, err)
	success, ok := out.(*conductor.Success)
	require.True(t, ok)
	require.Equal(t, 3.0, success.Params, "a scalar literal must terminate as the bare scalar, not wrapped as {value: ...}")
}

func TestIfBranches(t *testing.T) {
	test, err := ast.FunctionNode("expr", "{value: p.n > 0}")
	require.NoError(t, err)
	pos, err := ast.LiteralNode(map[string]interface{}{"value": "pos"})
	require.NoError(t, err)
	neg, err := ast.LiteralNode(map[string]interface{}{"value": "neg"})
	require.NoError(t, err)
	comp, err := ast.If(test, pos, neg, ast.Options{})
	require.NoError(t, err)
	prog := build(t, comp)

	out, err := conductor.Run(prog, map[string]interface{}{"n": 5.0})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"value": "pos"}, out.(*conductor.Success).Params)

	out, err = conductor.Run(prog, map[string]interface{}{"n": -1.0})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"value": "neg"}, out.(*conductor.Success).Params)
}

func TestTryHandlerCatchesFailure(t *testing.T) {
	body, err := ast.FunctionNode("expr", `{error: "x"}`)
	require.NoError(t, err)
	handler, err := ast.FunctionNode("expr", `{value: "caught"}`)
	require.NoError(t, err)
	comp, err := ast.TryNode(body, handler)
	require.NoError(t, err)

	out, err := conductor.Run(build(t, comp), map[string]interface{}{})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"value": "caught"}, out.(*conductor.Success).Params)
}

func TestFinallyRunsOnError(t *testing.T) {
	body, err := ast.FunctionNode("expr", `{error: "x"}`)
	require.NoError(t, err)
	finalizer, err := ast.FunctionNode("expr", `{error: p.error + "-finalized"}`)
	require.NoError(t, err)
	comp, err := ast.FinallyNode(body, finalizer)
	require.NoError(t, err)

	out, err := conductor.Run(build(t, comp), map[string]interface{}{})
	require.NoError(t, err)
	failure, ok := out.(conductor.Failure)
	require.True(t, ok)
	require.Equal(t, "x-finalized", failure["error"])
}

func TestFinallyRunsOnSuccess(t *testing.T) {
	body, err := ast.FunctionNode("expr", `{value: "ok"}`)
	require.NoError(t, err)
	finalizer, err := ast.FunctionNode("expr", `{value: p.value + "-cleaned"}`)
	require.NoError(t, err)
	comp, err := ast.FinallyNode(body, finalizer)
	require.NoError(t, err)

	out, err := conductor.Run(build(t, comp), map[string]interface{}{})
	require.NoError(t, err)
	success, ok := out.(*conductor.Success)
	require.True(t, ok, "body succeeding must still run the finalizer and terminate successfully")
	require.Equal(t, map[string]interface{}{"value": "ok-cleaned"}, success.Params)
}

func TestTryBodySuccessDoesNotSkipRestOfSequence(t *testing.T) {
	body, err := ast.FunctionNode("expr", `{value: "ok"}`)
	require.NoError(t, err)
	handler, err := ast.FunctionNode("expr", `{value: "caught"}`)
	require.NoError(t, err)
	tried, err := ast.TryNode(body, handler)
	require.NoError(t, err)
	after, err := ast.LiteralNode(map[string]interface{}{"value": "after"})
	require.NoError(t, err)
	comp, err := ast.Seq(tried, after)
	require.NoError(t, err)

	out, err := conductor.Run(build(t, comp), map[string]interface{}{})
	require.NoError(t, err)
	success, ok := out.(*conductor.Success)
	require.True(t, ok, "a successful try body must fall through to the rest of the enclosing sequence")
	require.Equal(t, map[string]interface{}{"value": "after"}, success.Params)
}

func TestTryBodyActionSuccessResumesPastTry(t *testing.T) {
	action, err := ast.ActionNode("step")
	require.NoError(t, err)
	handler, err := ast.FunctionNode("expr", `{value: "caught"}`)
	require.NoError(t, err)
	tried, err := ast.TryNode(action, handler)
	require.NoError(t, err)
	after, err := ast.LiteralNode(map[string]interface{}{"value": "after"})
	require.NoError(t, err)
	comp, err := ast.Seq(tried, after)
	require.NoError(t, err)
	prog := build(t, comp)

	first, err := conductor.Run(prog, map[string]interface{}{})
	require.NoError(t, err)
	suspend, ok := first.(*conductor.Suspend)
	require.True(t, ok)
	require.NotNil(t, suspend.Resume.State, "an action inside a try body must resume past the try on success, not terminate")

	resumed := map[string]interface{}{"$resume": suspend.Resume}
	second, err := conductor.Run(prog, resumed)
	require.NoError(t, err)
	success, ok := second.(*conductor.Success)
	require.True(t, ok)
	require.Equal(t, map[string]interface{}{"value": "after"}, success.Params)
}

func TestRetainWithCatch(t *testing.T) {
	body, err := ast.FunctionNode("expr", `{error: "bang"}`)
	require.NoError(t, err)
	comp, err := ast.RetainNode(body, ast.RetainOptions{Catch: true})
	require.NoError(t, err)

	out, err := conductor.Run(build(t, comp), map[string]interface{}{"k": 1.0})
	require.NoError(t, err)
	success := out.(*conductor.Success)
	result := success.Params.(map[string]interface{})
	require.Equal(t, map[string]interface{}{"k": 1.0}, result["params"])
	require.Equal(t, "bang", result["result"].(map[string]interface{})["error"])
}

func TestRetryExhaustsAttempts(t *testing.T) {
	body, err := ast.FunctionNode("expr", `{error: "no"}`)
	require.NoError(t, err)
	comp, err := ast.Retry(2, body)
	require.NoError(t, err)

	out, err := conductor.Run(build(t, comp), map[string]interface{}{})
	require.NoError(t, err)
	failure, ok := out.(conductor.Failure)
	require.True(t, ok)
	require.Equal(t, "no", failure["error"])
}

func TestResumeRoundTrip(t *testing.T) {
	action, err := ast.ActionNode("echo")
	require.NoError(t, err)
	lit, err := ast.LiteralNode(42.0)
	require.NoError(t, err)
	comp, err := ast.Seq(action, lit)
	require.NoError(t, err)
	prog := build(t, comp)

	first, err := conductor.Run(prog, map[string]interface{}{})
	require.NoError(t, err)
	suspend, ok := first.(*conductor.Suspend)
	require.True(t, ok)
	require.Equal(t, "/_/echo", suspend.Action)

	resumed := map[string]interface{}{"$resume": suspend.Resume}
	second, err := conductor.Run(prog, resumed)
	require.NoError(t, err)
	success, ok := second.(*conductor.Success)
	require.True(t, ok)
	require.Equal(t, 42.0, success.Params)
}

func TestBadResumeRejected(t *testing.T) {
	lit, err := ast.LiteralNode(1.0)
	require.NoError(t, err)
	prog := build(t, lit)

	_, err = conductor.Run(prog, map[string]interface{}{
		"$resume": map[string]interface{}{"state": 99.0, "stack": []interface{}{}},
	})
	require.Error(t, err)
	cerr, ok := err.(*conductor.Error)
	require.True(t, ok)
	require.Equal(t, conductor.BadResume, cerr.Kind)
	require.Equal(t, 400, cerr.Code())
}

func TestResumeFingerprintMismatchRejected(t *testing.T) {
	action, err := ast.ActionNode("echo")
	require.NoError(t, err)
	comp, err := ast.Seq(action)
	require.NoError(t, err)
	prog := build(t, comp)

	first, err := conductor.Run(prog, map[string]interface{}{})
	require.NoError(t, err)
	suspend := first.(*conductor.Suspend)

	stale := suspend.Resume
	stale.Fingerprint = "deadbeef"
	_, err = conductor.Run(prog, map[string]interface{}{"$resume": stale})
	require.Error(t, err)
	cerr, ok := err.(*conductor.Error)
	require.True(t, ok)
	require.Equal(t, conductor.BadResume, cerr.Kind)
}

func TestResumeIncompatibleSchemaVersionRejected(t *testing.T) {
	action, err := ast.ActionNode("echo")
	require.NoError(t, err)
	comp, err := ast.Seq(action)
	require.NoError(t, err)
	prog := build(t, comp)

	first, err := conductor.Run(prog, map[string]interface{}{})
	require.NoError(t, err)
	suspend := first.(*conductor.Suspend)

	future := suspend.Resume
	future.SchemaVersion = "v2.0.0"
	_, err = conductor.Run(prog, map[string]interface{}{"$resume": future})
	require.Error(t, err)
	cerr, ok := err.(*conductor.Error)
	require.True(t, ok)
	require.Equal(t, conductor.BadResume, cerr.Kind)
}

func TestLetScopesName(t *testing.T) {
	body, err := ast.FunctionNode("expr", "{value: x}")
	require.NoError(t, err)
	comp, err := ast.LetNode(map[string]interface{}{"x": 7.0}, body)
	require.NoError(t, err)

	out, err := conductor.Run(build(t, comp), map[string]interface{}{})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"value": 7.0}, out.(*conductor.Success).Params)
}
