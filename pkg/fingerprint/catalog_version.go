package fingerprint

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// checkCatalogVersion rejects a rule catalog declaring a schema_version
// newer than catalogSchemaVersion, the highest this binary understands —
// the same version-gated loading shape as the teacher's plugin-type
// compatibility checks.
func checkCatalogVersion(declared string) error {
	if declared == "" {
		return fmt.Errorf("fingerprint catalog: missing schema_version")
	}
	if !semver.IsValid(declared) {
		return fmt.Errorf("fingerprint catalog: invalid schema_version %q", declared)
	}
	if semver.Compare(declared, catalogSchemaVersion) > 0 {
		return fmt.Errorf("fingerprint catalog: schema_version %q is newer than the %q this binary supports",
			declared, catalogSchemaVersion)
	}
	return nil
}
