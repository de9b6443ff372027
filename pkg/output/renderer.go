// Package output implements spec.md §6's result renderers: json, xml
// (Nmap-compatible), csv, and human. Each Renderer takes the scheduler's
// MultiHostScanResult and writes one of the four wire/display forms.
package output

import (
	"io"

	"github.com/scanforge/scanforge/pkg/model"
	"github.com/scanforge/scanforge/pkg/scanerr"
)

// Renderer writes a MultiHostScanResult to w in one output format.
type Renderer interface {
	Render(w io.Writer, result model.MultiHostScanResult) error
}

// Format names the output-format tag from spec.md §6's invocation surface.
type Format string

const (
	FormatHuman Format = "human"
	FormatJSON  Format = "json"
	FormatXML   Format = "xml"
	FormatCSV   Format = "csv"
)

// New resolves a Format into its Renderer. colorEnabled is only consulted by
// the human renderer; the wire formats (json/xml/csv) never vary by
// terminal capability.
func New(format Format, colorEnabled bool) (Renderer, error) {
	switch format {
	case FormatJSON:
		return JSONRenderer{}, nil
	case FormatXML:
		return XMLRenderer{}, nil
	case FormatCSV:
		return CSVRenderer{}, nil
	case FormatHuman, "":
		return HumanRenderer{Color: colorEnabled}, nil
	default:
		return nil, scanerr.SpecError("unknown output format %q", format)
	}
}
