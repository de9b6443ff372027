package output

import (
	"encoding/json"
	"io"

	"github.com/scanforge/scanforge/pkg/model"
)

// JSONRenderer serialises the result with field names matching spec.md §3,
// via struct tags on model.MultiHostScanResult and its nested types.
type JSONRenderer struct{}

func (JSONRenderer) Render(w io.Writer, result model.MultiHostScanResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
