package fingerprint

import (
	"context"
	"net"
	"time"
)

// probeKind selects which payload (if any) Identify sends before reading a
// service's response, per spec.md §4.5 step 1's port-to-probe table.
type probeKind int

const (
	probeBanner probeKind = iota // no payload: just wait for an unsolicited banner
	probeHTTP
	probeSSH
	probeTLS
	probeSMTP
)

// responseBudget is the maximum bytes read back from a probe connection,
// per spec.md §4.5 "reads up to 2 KiB of response".
const responseBudget = 2048

// candidateProbesFor returns the ordered probe candidates for a port,
// per spec.md §4.5: "Selects a candidate probe set based on port number".
// Port 8443 carries both an HTTP and a TLS candidate since it's used for
// both plaintext-on-alt-port and HTTPS deployments in practice; the first
// one whose response classifies wins.
func candidateProbesFor(port uint16) []probeKind {
	switch port {
	case 80, 8080, 8000, 9000, 3000:
		return []probeKind{probeHTTP}
	case 8443:
		return []probeKind{probeHTTP, probeTLS}
	case 443:
		return []probeKind{probeTLS}
	case 22, 2222:
		return []probeKind{probeSSH}
	case 25, 587:
		return []probeKind{probeSMTP}
	default:
		return []probeKind{probeBanner}
	}
}

// httpProbePayload is a minimal HTTP/1.0 request that elicits a response
// (including a Server header, where present) from almost any HTTP server
// without requiring a Host-dependent virtual-host match.
const httpProbePayload = "HEAD / HTTP/1.0\r\n\r\n"

// smtpProbePayload is sent after connecting; a real SMTP server's
// unsolicited "220 ..." greeting is what the classifier actually matches
// against, but issuing EHLO mirrors how an operator would confirm the
// service interactively.
const smtpProbePayload = "EHLO scanforge\r\n"

// tlsClientHelloProbePayload is a minimal, syntactically valid TLS 1.2
// ClientHello (SNI-less, single cipher suite) sent to elicit a TLS record
// in response; the classifier only inspects the record-layer header
// (0x16 0x03), not the handshake contents.
var tlsClientHelloProbePayload = []byte{
	0x16, 0x03, 0x01, 0x00, 0x2d, // record header: handshake, TLS1.0-in-header, length
	0x01, 0x00, 0x00, 0x29, // handshake header: client_hello, length
	0x03, 0x03, // client_version: TLS1.2
	// 32-byte random
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00,             // session_id length: 0
	0x00, 0x02,       // cipher_suites length: 2
	0x00, 0x2f,       // TLS_RSA_WITH_AES_128_CBC_SHA
	0x01, 0x00,       // compression_methods: 1 method, null
}

func payloadFor(kind probeKind) []byte {
	switch kind {
	case probeHTTP:
		return []byte(httpProbePayload)
	case probeSMTP:
		return []byte(smtpProbePayload)
	case probeTLS:
		return tlsClientHelloProbePayload
	default: // probeBanner, probeSSH: no payload, just read
		return nil
	}
}

// dialer lets tests substitute a fake connection factory.
type dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

var defaultDialer dialer = &net.Dialer{}

// runProbe opens a fresh connection, writes kind's payload (if any), and
// reads up to responseBudget bytes within timeout.
func runProbe(ctx context.Context, d dialer, addr net.IP, port uint16, kind probeKind, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	address := net.JoinHostPort(addr.String(), portString(port))
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if payload := payloadFor(kind); payload != nil {
		if _, err := conn.Write(payload); err != nil {
			return nil, err
		}
	}

	buf := make([]byte, responseBudget)
	n, err := conn.Read(buf)
	if n == 0 && err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func portString(p uint16) string {
	if p == 0 {
		return "0"
	}
	var digits [5]byte
	i := len(digits)
	for p > 0 {
		i--
		digits[i] = byte('0' + p%10)
		p /= 10
	}
	return string(digits[i:])
}
