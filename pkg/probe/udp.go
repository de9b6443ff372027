package probe

import (
	"context"
	"net"
	"time"

	"github.com/scanforge/scanforge/pkg/model"
	"github.com/scanforge/scanforge/pkg/scanerr"
)

// udpProbePayloads holds protocol-specific payloads for well-known UDP
// services (spec.md §4.2: "a probe that sends an empty datagram to a DNS or
// SNMP port will almost always read back nothing even when the port is
// open, because the service expects a well-formed request"). Ports absent
// from this table get an empty datagram.
var udpProbePayloads = map[uint16][]byte{
	53: { // minimal DNS query for "." IN A, recursion desired
		0x00, 0x00, 0x01, 0x00,
		0x00, 0x01, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00,
		0x00, 0x01,
		0x00, 0x01,
	},
	161: { // SNMP v1 GetRequest for sysDescr.0, community "public"
		0x30, 0x29, 0x02, 0x01, 0x00, 0x04, 0x06, 'p', 'u', 'b', 'l', 'i', 'c',
		0xa0, 0x1c, 0x02, 0x04, 0x00, 0x00, 0x00, 0x01,
		0x02, 0x01, 0x00, 0x02, 0x01, 0x00,
		0x30, 0x0e, 0x30, 0x0c, 0x06, 0x08,
		0x2b, 0x06, 0x01, 0x02, 0x01, 0x01, 0x01, 0x00,
		0x05, 0x00,
	},
	123: { // NTP client request, version 4, mode 3
		0x23, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	},
}

// PayloadFor returns the probe datagram UDPProbe sends to port, or an empty
// slice for ports with no protocol-specific payload registered.
func PayloadFor(port uint16) []byte {
	if payload, ok := udpProbePayloads[port]; ok {
		return payload
	}
	return nil
}

// UDPProbe implements the UDP probe of spec.md §4.2: a reply datagram ->
// Open; ICMP port-unreachable (type 3 code 3) -> Closed; any other ICMP
// unreachable code or no reply within the budget -> Filtered (an open UDP
// port that ignores the probe is indistinguishable from a filtered one);
// lower-layer send failure -> Error.
type UDPProbe struct {
	Transport RawTransport
}

const icmpCodePortUnreachable = 3

func (p UDPProbe) Run(ctx context.Context, addr net.IP, port uint16, timeout time.Duration) Outcome {
	start := time.Now()

	if p.Transport == nil {
		return Outcome{Status: model.StatusError, Err: scanerr.PrivilegeError("udp")}
	}

	reply, err := p.Transport.SendUDP(ctx, addr, port, PayloadFor(port), timeout)
	elapsed := elapsedMS(start)
	if err != nil {
		return Outcome{Status: model.StatusError, ElapsedMS: elapsed, Err: scanerr.ProbeError(err)}
	}

	switch reply.Kind {
	case ReplyUDPData:
		return Outcome{Status: model.StatusOpen, ElapsedMS: elapsed}
	case ReplyICMPUnreachable:
		if reply.ICMPCode == icmpCodePortUnreachable {
			return Outcome{Status: model.StatusClosed, ElapsedMS: elapsed}
		}
		return Outcome{Status: model.StatusFiltered, ElapsedMS: elapsed}
	case ReplyNone:
		return Outcome{Status: model.StatusFiltered, ElapsedMS: elapsed}
	default:
		return Outcome{Status: model.StatusError, ElapsedMS: elapsed, Err: scanerr.ProbeError(errUnexpectedReply)}
	}
}
