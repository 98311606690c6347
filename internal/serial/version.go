package serial

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// SchemaVersion is stamped into every resume token this module mints.
// Bump the major component whenever a stack-frame shape or the
// suspension envelope changes incompatibly; minor/patch bumps are for
// additive, backward-readable changes.
const SchemaVersion = "v1.0.0"

// CheckVersion reports whether a resume token stamped with tokenVersion
// can be safely interpreted by this build. An empty tokenVersion is
// treated as v1.0.0 (tokens minted before this field existed). Tokens
// from a newer incompatible major version are rejected rather than
// risk misreading an unknown stack-frame shape as a known one.
func CheckVersion(tokenVersion string) error {
	if tokenVersion == "" {
		tokenVersion = SchemaVersion
	}
	if !semver.IsValid(tokenVersion) {
		return fmt.Errorf("serial: resume token has malformed schema version %q", tokenVersion)
	}
	if semver.Major(tokenVersion) != semver.Major(SchemaVersion) {
		return fmt.Errorf("serial: resume token schema version %s is incompatible with %s", tokenVersion, SchemaVersion)
	}
	return nil
}
