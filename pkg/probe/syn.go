package probe

import (
	"context"
	"net"
	"time"

	"github.com/scanforge/scanforge/pkg/model"
	"github.com/scanforge/scanforge/pkg/scanerr"
)

// SYNProbe implements the TCP half-open (SYN) probe of spec.md §4.2. Every
// ICMP Destination Unreachable code observed for a SYN probe is reported as
// Filtered: unlike the UDP probe, no code maps to Closed here, since a
// closed TCP port answers with RST rather than an ICMP error.
type SYNProbe struct {
	Transport RawTransport
}

func (p SYNProbe) Run(ctx context.Context, addr net.IP, port uint16, timeout time.Duration) Outcome {
	start := time.Now()

	if p.Transport == nil {
		return Outcome{Status: model.StatusError, Err: scanerr.PrivilegeError("syn")}
	}

	reply, err := p.Transport.SendTCP(ctx, addr, port, FlagSYN, timeout)
	elapsed := elapsedMS(start)
	if err != nil {
		return Outcome{Status: model.StatusError, ElapsedMS: elapsed, Err: scanerr.ProbeError(err)}
	}

	switch reply.Kind {
	case ReplySynAck:
		// Transport.SendTCP is responsible for tearing the half-open
		// connection down with an immediate RST once it observes SYN/ACK.
		return Outcome{Status: model.StatusOpen, ElapsedMS: elapsed}
	case ReplyRst:
		return Outcome{Status: model.StatusClosed, ElapsedMS: elapsed}
	case ReplyICMPUnreachable:
		return Outcome{Status: model.StatusFiltered, ElapsedMS: elapsed}
	case ReplyNone:
		return Outcome{Status: model.StatusFiltered, ElapsedMS: elapsed}
	default:
		return Outcome{Status: model.StatusError, ElapsedMS: elapsed, Err: scanerr.ProbeError(errUnexpectedReply)}
	}
}
