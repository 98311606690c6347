package serial

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/yarikc/composer/internal/compiler"
)

// canonicalEncMode sorts map keys (RFC 8949 §4.2.1's deterministic
// encoding) instead of the library default, which follows Go's
// randomized map iteration order. Fingerprint hashes this encoding, so
// any non-canonical mode would make the hash of a let/object-literal-
// bearing program non-deterministic across runs of the same process,
// let alone across process restarts — silently breaking resume-token
// validation for exactly the programs that carry multi-key maps.
var canonicalEncMode = func() cbor.EncMode {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic("serial: canonical CBOR options failed to build an EncMode: " + err.Error())
	}
	return mode
}()

// EncodeProgramCBOR renders a compiled FSM as CBOR, a compact
// companion to the mandatory JSON document format. Fingerprint hashes
// this encoding; cmd/composer --encode prints only the JSON conductor
// source and emits no CBOR artifact.
func EncodeProgramCBOR(p compiler.Program) ([]byte, error) {
	return canonicalEncMode.Marshal(p)
}

// DecodeProgramCBOR is the inverse of EncodeProgramCBOR.
func DecodeProgramCBOR(data []byte) (compiler.Program, error) {
	var p compiler.Program
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p, nil
}
