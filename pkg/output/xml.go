package output

import (
	"encoding/xml"
	"io"

	"github.com/scanforge/scanforge/pkg/model"
)

// XMLRenderer emits an Nmap-compatible <nmaprun> envelope (spec.md §6),
// so scanforge's XML output can be consumed by tooling already written
// against nmap's report format.
type XMLRenderer struct{}

type nmapRun struct {
	XMLName  xml.Name   `xml:"nmaprun"`
	Scanner  string     `xml:"scanner,attr"`
	Args     string     `xml:"args,attr"`
	StartStr string     `xml:"startstr,attr"`
	Hosts    []nmapHost `xml:"host"`
}

type nmapHost struct {
	Address nmapAddress `xml:"address"`
	Ports   nmapPorts   `xml:"ports"`
}

type nmapAddress struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"`
}

type nmapPorts struct {
	Port []nmapPort `xml:"port"`
}

type nmapPort struct {
	Protocol string       `xml:"protocol,attr"`
	PortID   uint16       `xml:"portid,attr"`
	State    nmapState    `xml:"state"`
	Service  *nmapService `xml:"service,omitempty"`
}

type nmapState struct {
	State string `xml:"state,attr"`
}

type nmapService struct {
	Name    string `xml:"name,attr"`
	Version string `xml:"version,attr,omitempty"`
}

func (XMLRenderer) Render(w io.Writer, result model.MultiHostScanResult) error {
	run := nmapRun{
		Scanner:  "scanforge",
		Args:     result.TargetSpec,
		StartStr: result.StartedAt.Format("Mon Jan  2 15:04:05 2006"),
	}

	for _, host := range result.Hosts {
		addrType := "ipv4"
		if host.Address != nil && host.Address.To4() == nil {
			addrType = "ipv6"
		}

		nh := nmapHost{
			Address: nmapAddress{Addr: host.Address.String(), AddrType: addrType},
		}

		protocol := "tcp"
		if host.ScanKind == model.ScanUDP {
			protocol = "udp"
		}

		for _, port := range host.Ports {
			np := nmapPort{
				Protocol: protocol,
				PortID:   port.Port,
				State:    nmapState{State: string(port.Status)},
			}
			if port.Service != nil {
				np.Service = &nmapService{
					Name:    port.Service.Name,
					Version: port.Service.Version,
				}
			}
			nh.Ports.Port = append(nh.Ports.Port, np)
		}

		run.Hosts = append(run.Hosts, nh)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return enc.Encode(run)
}
