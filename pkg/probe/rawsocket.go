package probe

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/scanforge/scanforge/pkg/scanerr"
)

// PrivilegedTransport is the real RawTransport, grounded on the same
// raw-IP-socket-plus-ICMP-listener pattern as other SYN probers in the
// ecosystem: one net.PacketConn opened on "ip4:tcp" to send and receive
// crafted TCP segments, and one icmp.PacketConn to observe Destination
// Unreachable replies. Both require CAP_NET_RAW (or root); NewPrivilegedTransport
// fails fast if the socket cannot be opened so callers learn about a
// privilege problem before any probe is scheduled.
type PrivilegedTransport struct {
	tcpConn  net.PacketConn
	icmpConn *icmp.PacketConn
	localIP  net.IP
	seq      uint32
}

// NewPrivilegedTransport opens the raw sockets backing SYN/FIN/NULL/XMAS
// probes. It returns a scanerr.PrivilegeError (not a bare errors.New) when
// the process lacks CAP_NET_RAW, so callers can map it to the process exit
// code spec.md §6 reserves for privilege failures.
func NewPrivilegedTransport() (*PrivilegedTransport, error) {
	icmpConn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return nil, scanerr.WithCode(fmt.Errorf("open icmp listener: %w", err), scanerr.CodePrivilege)
	}

	tcpConn, err := net.ListenPacket("ip4:tcp", "0.0.0.0")
	if err != nil {
		_ = icmpConn.Close()
		return nil, scanerr.WithCode(fmt.Errorf("open raw tcp socket: %w", err), scanerr.CodePrivilege)
	}

	return &PrivilegedTransport{
		tcpConn:  tcpConn,
		icmpConn: icmpConn,
		localIP:  outboundIP(),
	}, nil
}

// Close releases both raw sockets.
func (t *PrivilegedTransport) Close() error {
	err1 := t.tcpConn.Close()
	err2 := t.icmpConn.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// SendTCP crafts and sends one TCP segment with the given flags, then
// watches both the raw TCP socket and the ICMP listener for a matching
// reply until timeout elapses. A SYN/ACK reply is torn down with an
// immediate RST, per spec.md §4.2's half-open scan description.
func (t *PrivilegedTransport) SendTCP(ctx context.Context, addr net.IP, port uint16, flags TCPFlags, timeout time.Duration) (RawReply, error) {
	srcPort := uint16(20000 + (atomic.AddUint32(&t.seq, 1) % 20000))
	segment := buildTCPSegment(t.localIP, addr, srcPort, port, flags, 0)

	deadline := time.Now().Add(timeout)
	if err := t.tcpConn.SetReadDeadline(deadline); err != nil {
		return RawReply{}, fmt.Errorf("set tcp read deadline: %w", err)
	}
	if err := t.icmpConn.SetReadDeadline(deadline); err != nil {
		return RawReply{}, fmt.Errorf("set icmp read deadline: %w", err)
	}

	if _, err := t.tcpConn.WriteTo(segment, &net.IPAddr{IP: addr}); err != nil {
		return RawReply{}, fmt.Errorf("send tcp segment: %w", err)
	}

	reply, err := t.waitForTCPReply(ctx, addr, srcPort, port, deadline)
	if err != nil {
		return RawReply{}, err
	}

	if reply.Kind == ReplySynAck {
		rst := buildTCPSegment(t.localIP, addr, srcPort, port, FlagRST, 1)
		_, _ = t.tcpConn.WriteTo(rst, &net.IPAddr{IP: addr})
	}

	return reply, nil
}

func (t *PrivilegedTransport) waitForTCPReply(ctx context.Context, addr net.IP, srcPort, dstPort uint16, deadline time.Time) (RawReply, error) {
	tcpBuf := make([]byte, 1500)
	icmpBuf := make([]byte, 1500)

	for {
		if ctx.Err() != nil {
			return RawReply{}, ctx.Err()
		}
		if time.Now().After(deadline) {
			return RawReply{Kind: ReplyNone}, nil
		}

		// Short read slices let each pass poll both sockets before deadline.
		slice := time.Now().Add(10 * time.Millisecond)
		if slice.After(deadline) {
			slice = deadline
		}
		_ = t.tcpConn.SetReadDeadline(slice)
		_ = t.icmpConn.SetReadDeadline(slice)

		n, peer, err := t.tcpConn.ReadFrom(tcpBuf)
		if err == nil {
			peerIP := addrIP(peer)
			if peerIP.Equal(addr) {
				if kind, ok := classifyTCPReply(tcpBuf[:n], srcPort, dstPort); ok {
					return RawReply{Kind: kind}, nil
				}
			}
			continue
		}

		n, peer, err = t.icmpConn.ReadFrom(icmpBuf)
		if err == nil {
			peerIP := addrIP(peer)
			if peerIP.Equal(addr) {
				if code, ok := classifyICMPUnreachable(icmpBuf[:n], srcPort, dstPort); ok {
					return RawReply{Kind: ReplyICMPUnreachable, ICMPCode: code}, nil
				}
			}
			continue
		}
		if isTimeoutErr(err) {
			continue
		}
		return RawReply{}, fmt.Errorf("read raw reply: %w", err)
	}
}

// SendUDP sends payload to addr:port over a connected UDP socket. Because
// the socket is connected, a subsequent ICMP port-unreachable for this
// flow surfaces to Go as a read error (ECONNREFUSED on Linux), so no raw
// ICMP listener is needed here the way SendTCP needs one.
func (t *PrivilegedTransport) SendUDP(ctx context.Context, addr net.IP, port uint16, payload []byte, timeout time.Duration) (RawReply, error) {
	dialer := net.Dialer{Timeout: timeout}
	address := net.JoinHostPort(addr.String(), udpPortString(port))
	conn, err := dialer.DialContext(ctx, "udp", address)
	if err != nil {
		return RawReply{}, fmt.Errorf("dial udp: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Write(payload); err != nil {
		return RawReply{}, fmt.Errorf("write udp payload: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return RawReply{}, fmt.Errorf("set udp read deadline: %w", err)
	}

	buf := make([]byte, 1500)
	n, err := conn.Read(buf)
	switch {
	case err == nil:
		return RawReply{Kind: ReplyUDPData, Truncated: n == len(buf)}, nil
	case isTimeoutErr(err):
		return RawReply{Kind: ReplyNone}, nil
	case isConnectionRefused(err):
		return RawReply{Kind: ReplyICMPUnreachable, ICMPCode: icmpCodePortUnreachable}, nil
	default:
		return RawReply{}, fmt.Errorf("read udp reply: %w", err)
	}
}

func isTimeoutErr(err error) bool {
	var ne net.Error
	return asNetError(err, &ne) && ne.Timeout()
}

func asNetError(err error, target *net.Error) bool {
	if ne, ok := err.(net.Error); ok {
		*target = ne
		return true
	}
	return false
}

func addrIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.IPAddr:
		return a.IP
	case *net.UDPAddr:
		return a.IP
	default:
		return nil
	}
}

func udpPortString(p uint16) string { return portString(p) }

// outboundIP discovers the local address the kernel would use to reach the
// public internet, for stamping the source address of crafted segments.
func outboundIP() net.IP {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return net.IPv4zero
	}
	defer conn.Close()
	if udpAddr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return udpAddr.IP
	}
	return net.IPv4zero
}

// buildTCPSegment assembles a 20-byte TCP header (no options) with the
// given flags and checksum, computed over the IPv4 pseudo-header per
// RFC 793 §3.1.
func buildTCPSegment(src, dst net.IP, srcPort, dstPort uint16, flags TCPFlags, ackNum uint32) []byte {
	seg := make([]byte, 20)
	binary.BigEndian.PutUint16(seg[0:2], srcPort)
	binary.BigEndian.PutUint16(seg[2:4], dstPort)
	binary.BigEndian.PutUint32(seg[4:8], 1) // fixed ISN: no data is ever exchanged
	binary.BigEndian.PutUint32(seg[8:12], ackNum)
	seg[12] = 0x50 // data offset: 5 words, no options
	seg[13] = byte(flags)
	binary.BigEndian.PutUint16(seg[14:16], 65535)
	binary.BigEndian.PutUint16(seg[16:18], 0) // checksum, filled below
	binary.BigEndian.PutUint16(seg[18:20], 0)

	binary.BigEndian.PutUint16(seg[16:18], tcpChecksum(src, dst, seg))
	return seg
}

func tcpChecksum(src, dst net.IP, tcpHeader []byte) uint16 {
	pseudo := make([]byte, 12)
	copy(pseudo[0:4], src.To4())
	copy(pseudo[4:8], dst.To4())
	pseudo[9] = 6 // protocol: TCP
	binary.BigEndian.PutUint16(pseudo[10:12], uint16(len(tcpHeader)))

	return checksum(append(pseudo, tcpHeader...))
}

// checksum computes the RFC 1071 one's-complement internet checksum.
func checksum(data []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(data); i += 2 {
		sum += uint32(data[i])<<8 | uint32(data[i+1])
	}
	if len(data)%2 == 1 {
		sum += uint32(data[len(data)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}

// classifyTCPReply inspects a raw IPv4-payload TCP segment read off the
// "ip4:tcp" socket (which on Linux delivers the TCP payload without the IP
// header) and reports whether it answers our probe flow.
func classifyTCPReply(data []byte, srcPort, dstPort uint16) (ReplyKind, bool) {
	if len(data) < 14 {
		return ReplyNone, false
	}
	pktSrcPort := binary.BigEndian.Uint16(data[0:2])
	pktDstPort := binary.BigEndian.Uint16(data[2:4])
	if pktSrcPort != dstPort || pktDstPort != srcPort {
		return ReplyNone, false
	}

	flags := data[13]
	switch {
	case flags&0x04 != 0: // RST
		return ReplyRst, true
	case flags&0x12 == 0x12: // SYN+ACK
		return ReplySynAck, true
	default:
		return ReplyNone, false
	}
}

// classifyICMPUnreachable inspects an ICMP message and reports the code of
// a Destination Unreachable reply that embeds our original TCP segment.
func classifyICMPUnreachable(data []byte, srcPort, dstPort uint16) (int, bool) {
	msg, err := icmp.ParseMessage(1, data) // protocol 1: ICMPv4
	if err != nil {
		return 0, false
	}
	if msg.Type != ipv4.ICMPTypeDestinationUnreachable {
		return 0, false
	}
	body, ok := msg.Body.(*icmp.DstUnreach)
	if !ok {
		return 0, false
	}

	embedded := body.Data
	ihl := 20
	if len(embedded) >= 1 {
		ihl = int(embedded[0]&0x0f) * 4
	}
	if len(embedded) < ihl+4 {
		return 0, false
	}
	tcpHeader := embedded[ihl:]
	pktSrcPort := binary.BigEndian.Uint16(tcpHeader[0:2])
	pktDstPort := binary.BigEndian.Uint16(tcpHeader[2:4])
	if pktSrcPort != srcPort || pktDstPort != dstPort {
		return 0, false
	}

	return msg.Code, true
}
