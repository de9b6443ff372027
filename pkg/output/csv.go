package output

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/scanforge/scanforge/pkg/model"
)

// CSVRenderer emits the header spec.md §6 specifies, one row per (host,
// port) pair.
type CSVRenderer struct{}

func (CSVRenderer) Render(w io.Writer, result model.MultiHostScanResult) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"target", "target_ip", "port", "status", "scan_type"}); err != nil {
		return err
	}

	for _, host := range result.Hosts {
		target := host.TargetDisplay
		ip := ""
		if host.Address != nil {
			ip = host.Address.String()
		}
		for _, port := range host.Ports {
			row := []string{
				target,
				ip,
				strconv.Itoa(int(port.Port)),
				string(port.Status),
				string(host.ScanKind),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}
