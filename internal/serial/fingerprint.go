package serial

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/yarikc/composer/internal/compiler"
)

// fingerprintSize matches the teacher's secret-handle convention
// (core/sdk/secret/handle.go mints a 16-byte blake2b-keyed ID); we
// reuse the same digest size for a program fingerprint, keyless since
// this is an integrity check, not a secret.
const fingerprintSize = 16

// Fingerprint hashes a compiled FSM program into a stable hex digest,
// embedded in generated conductor source and in every $resume token.
// Two programs compiled from the same composition by the same
// compiler version hash identically; a different deployment (changed
// composition, changed compiler) hashes differently, which is exactly
// what lets a conductor reject a resume token minted by a program it
// no longer is.
func Fingerprint(p compiler.Program) (string, error) {
	data, err := EncodeProgramCBOR(p)
	if err != nil {
		return "", fmt.Errorf("serial: cannot fingerprint program: %w", err)
	}
	h, err := blake2b.New(fingerprintSize, nil)
	if err != nil {
		return "", fmt.Errorf("serial: blake2b init failed: %w", err)
	}
	if _, err := h.Write(data); err != nil {
		return "", fmt.Errorf("serial: blake2b write failed: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
