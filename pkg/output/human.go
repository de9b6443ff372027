package output

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/scanforge/scanforge/pkg/model"
)

// HumanRenderer is the operator-readable format (spec.md §6): no wire
// compatibility is implied, styling is gated on Color. Styling mirrors the
// teacher's progress_ui.go status-color palette, repurposed from a live
// module-run dashboard onto a finished scan report.
type HumanRenderer struct {
	Color bool
}

var (
	hostTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	openStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	closedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	filteredStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	serviceStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	subtleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

func styleForStatus(status model.PortStatus) lipgloss.Style {
	switch status {
	case model.StatusOpen:
		return openStyle
	case model.StatusClosed:
		return closedStyle
	case model.StatusFiltered:
		return filteredStyle
	case model.StatusError:
		return errorStyle
	default:
		return subtleStyle
	}
}

// AutoColor reports whether stdout is a real (or Cygwin) terminal; it does
// not look at --no-color. CLI wiring passes the result in as
// HumanRenderer.Color.
func AutoColor() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func (r HumanRenderer) Render(w io.Writer, result model.MultiHostScanResult) error {
	render := func(style lipgloss.Style, s string) string {
		if !r.Color {
			return s
		}
		return style.Render(s)
	}

	title := color.New(color.FgHiMagenta, color.Bold)
	title.DisableColor()
	if r.Color {
		title.EnableColor()
	}

	fmt.Fprintf(w, "%s  %d hosts, %d ports, kind=%s\n",
		title.Sprint("scanforge report"), result.TotalHosts, result.TotalPorts, result.ScanKind)
	fmt.Fprintf(w, "%s\n", render(subtleStyle, fmt.Sprintf("run %s  started %s  duration %s",
		result.RunID, result.StartedAt.Format("2006-01-02 15:04:05"), result.EndedAt.Sub(result.StartedAt))))

	for _, host := range result.Hosts {
		fmt.Fprintf(w, "\n%s\n", render(hostTitleStyle, fmt.Sprintf("%s (%s)", host.TargetDisplay, host.Address)))

		for _, port := range host.Ports {
			status := render(styleForStatus(port.Status), string(port.Status))
			line := fmt.Sprintf("  %5d/%-4s  %-10s", port.Port, scanKindProtocol(host.ScanKind), status)
			if port.Service != nil {
				detail := port.Service.Name
				if port.Service.Version != "" {
					detail = fmt.Sprintf("%s %s", detail, port.Service.Version)
				}
				line += "  " + render(serviceStyle, detail)
			}
			fmt.Fprintln(w, line)
		}
	}

	return nil
}

func scanKindProtocol(kind model.ScanKind) string {
	if kind == model.ScanUDP {
		return "udp"
	}
	return "tcp"
}
