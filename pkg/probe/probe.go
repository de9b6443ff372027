// Package probe implements the probe state machines of spec.md §4.2: one
// Prober per scan kind, each mapping an observed network event to the
// four-valued PortStatus classification. Per spec.md §9 these are a tagged
// variant over scan kinds with a single Run capability, not runtime-dispatch
// plugin objects — callers select a Prober by ScanKind and call Run.
package probe

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/scanforge/scanforge/pkg/model"
)

// errUnexpectedReply indicates a RawTransport returned a ReplyKind that no
// Prober in this package knows how to classify (e.g. a UDP-only reply kind
// surfacing from a TCP probe).
var errUnexpectedReply = errors.New("probe: unexpected reply kind from raw transport")

// Outcome is the result of one probe attempt: the classification, elapsed
// wall time, and (only for StatusError) the underlying cause, confined to
// this single probe per spec.md §7.
type Outcome struct {
	Status    model.PortStatus
	ElapsedMS float64
	Err       error
}

// Prober classifies one (address, port) pair within the given timeout
// budget. The budget bounds the entire probe attempt, not any single I/O
// operation (spec.md §4.2).
type Prober interface {
	Run(ctx context.Context, addr net.IP, port uint16, timeout time.Duration) Outcome
}

// ForKind returns the Prober implementation for a scan kind. The raw-socket
// kinds (syn/fin/null/xmas/udp) require a rawTransport; NewPrivilegedTransport
// returns scanerr.PrivilegeError up front when the process lacks the
// capability to open raw sockets, per spec.md's "Raw-socket portability"
// design note.
func ForKind(kind model.ScanKind, raw RawTransport) Prober {
	switch kind {
	case model.ScanConnect:
		return ConnectProbe{}
	case model.ScanSYN:
		return SYNProbe{Transport: raw}
	case model.ScanFIN:
		return FlagProbe{Transport: raw, Flags: FlagFIN}
	case model.ScanNULL:
		return FlagProbe{Transport: raw, Flags: FlagNone}
	case model.ScanXMAS:
		return FlagProbe{Transport: raw, Flags: FlagFIN | FlagPSH | FlagURG}
	case model.ScanUDP:
		return UDPProbe{Transport: raw}
	default:
		return ConnectProbe{}
	}
}

// RequiresPrivilege reports whether kind needs a privileged RawTransport
// (syn/fin/null/xmas/udp all craft or read raw packets; connect does not).
func RequiresPrivilege(kind model.ScanKind) bool {
	switch kind {
	case model.ScanSYN, model.ScanFIN, model.ScanNULL, model.ScanXMAS, model.ScanUDP:
		return true
	default:
		return false
	}
}

// elapsedMS reports the milliseconds elapsed since start.
func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
