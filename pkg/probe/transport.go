package probe

import (
	"context"
	"net"
	"time"
)

// TCPFlags is a bitmask of the TCP header control bits the raw-socket
// probes (SYN/FIN/NULL/XMAS) set on the segment they transmit.
type TCPFlags uint8

const (
	FlagFIN TCPFlags = 1 << iota
	FlagSYN
	FlagRST
	FlagPSH
	FlagACK
	FlagURG
	FlagNone TCPFlags = 0
)

// ReplyKind classifies what a raw-socket transport observed in response to
// a crafted segment or datagram.
type ReplyKind int

const (
	ReplyNone ReplyKind = iota // no reply before the budget elapsed
	ReplySynAck
	ReplyRst
	ReplyICMPUnreachable
	ReplyUDPData
)

// RawReply is what RawTransport's SendTCP and SendUDP return: the observed reply kind plus,
// for ICMP unreachable replies, the ICMP code (spec.md §4.2/§4.4 classify
// different ICMP codes differently).
type RawReply struct {
	Kind      ReplyKind
	ICMPCode  int
	Truncated bool // for UDP: true if the reply filled the whole read buffer, so it may have been cut short
}

// RawTransport sends one crafted TCP segment (for SYN/FIN/NULL/XMAS) or UDP
// datagram and observes the reply within timeout. Implementations require
// raw-socket privilege; NewPrivilegedTransport returns a
// scanerr.PrivilegeError immediately if that privilege is unavailable, so
// the caller fails up front rather than mid-scan (spec.md "Raw-socket
// portability" design note).
type RawTransport interface {
	SendTCP(ctx context.Context, addr net.IP, port uint16, flags TCPFlags, timeout time.Duration) (RawReply, error)
	SendUDP(ctx context.Context, addr net.IP, port uint16, payload []byte, timeout time.Duration) (RawReply, error)
}
