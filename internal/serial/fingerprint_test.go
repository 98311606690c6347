package serial_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yarikc/composer/internal/ast"
	"github.com/yarikc/composer/internal/compiler"
	"github.com/yarikc/composer/internal/serial"
)

func compileAction(t *testing.T, name string) compiler.Program {
	t.Helper()
	n, err := ast.ActionNode(name)
	require.NoError(t, err)
	p, err := compiler.Compile(n.Tree(), "")
	require.NoError(t, err)
	return p
}

func TestFingerprintStableAndDistinguishing(t *testing.T) {
	a := compileAction(t, "a")
	aAgain := compileAction(t, "a")
	b := compileAction(t, "b")

	fa, err := serial.Fingerprint(a)
	require.NoError(t, err)
	faAgain, err := serial.Fingerprint(aAgain)
	require.NoError(t, err)
	fb, err := serial.Fingerprint(b)
	require.NoError(t, err)

	require.Equal(t, fa, faAgain)
	require.NotEqual(t, fa, fb)
	require.Len(t, fa, 32) // 16 bytes, hex-encoded
}

func TestProgramCBORRoundTrip(t *testing.T) {
	p := compileAction(t, "a")
	data, err := serial.EncodeProgramCBOR(p)
	require.NoError(t, err)
	back, err := serial.DecodeProgramCBOR(data)
	require.NoError(t, err)
	require.Equal(t, p, back)
}

func TestCheckVersion(t *testing.T) {
	require.NoError(t, serial.CheckVersion(""))
	require.NoError(t, serial.CheckVersion(serial.SchemaVersion))
	require.NoError(t, serial.CheckVersion("v1.5.2"))
	require.Error(t, serial.CheckVersion("v2.0.0"))
	require.Error(t, serial.CheckVersion("not-a-version"))
}
