package probe

import (
	"context"
	"net"
	"time"

	"github.com/scanforge/scanforge/pkg/model"
	"github.com/scanforge/scanforge/pkg/scanerr"
)

// FlagProbe implements the FIN, NULL and XMAS probes of spec.md §4.2. All
// three share one classification rule set and differ only in which control
// bits they set on the outbound segment (Flags), per RFC 793's requirement
// that a closed port answer any segment without SYN/ACK/RST set with RST,
// while an open port silently drops it.
type FlagProbe struct {
	Transport RawTransport
	Flags     TCPFlags
}

func (p FlagProbe) Run(ctx context.Context, addr net.IP, port uint16, timeout time.Duration) Outcome {
	start := time.Now()

	if p.Transport == nil {
		return Outcome{Status: model.StatusError, Err: scanerr.PrivilegeError("flag")}
	}

	reply, err := p.Transport.SendTCP(ctx, addr, port, p.Flags, timeout)
	elapsed := elapsedMS(start)
	if err != nil {
		return Outcome{Status: model.StatusError, ElapsedMS: elapsed, Err: scanerr.ProbeError(err)}
	}

	switch reply.Kind {
	case ReplyRst:
		return Outcome{Status: model.StatusClosed, ElapsedMS: elapsed}
	case ReplyICMPUnreachable:
		return Outcome{Status: model.StatusFiltered, ElapsedMS: elapsed}
	case ReplyNone:
		// No reply is ambiguous between open and filtered; spec.md §4.2
		// reports it as Open, the conventional nmap-compatible reading for
		// these probe kinds.
		return Outcome{Status: model.StatusOpen, ElapsedMS: elapsed}
	default:
		return Outcome{Status: model.StatusError, ElapsedMS: elapsed, Err: scanerr.ProbeError(errUnexpectedReply)}
	}
}
