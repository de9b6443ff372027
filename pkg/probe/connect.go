package probe

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"

	"github.com/scanforge/scanforge/pkg/model"
	"github.com/scanforge/scanforge/pkg/scanerr"
)

// ConnectProbe implements the TCP full-connect probe (spec.md §4.2):
// handshake completes -> Open; RST/ConnectionRefused -> Closed; timeout ->
// Filtered; any other I/O error -> Error.
type ConnectProbe struct {
	// Dialer allows tests to substitute a fake dialer; nil uses a real
	// net.Dialer.
	Dialer interface {
		DialContext(ctx context.Context, network, address string) (net.Conn, error)
	}
}

func (p ConnectProbe) dialer() interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
} {
	if p.Dialer != nil {
		return p.Dialer
	}
	return &net.Dialer{}
}

// Run performs the TCP connect probe against addr:port within timeout.
func (p ConnectProbe) Run(ctx context.Context, addr net.IP, port uint16, timeout time.Duration) Outcome {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	address := net.JoinHostPort(addr.String(), portString(port))
	conn, err := p.dialer().DialContext(ctx, "tcp", address)
	elapsed := elapsedMS(start)

	if err == nil {
		_ = conn.Close()
		return Outcome{Status: model.StatusOpen, ElapsedMS: elapsed}
	}

	if ctx.Err() != nil {
		return Outcome{Status: model.StatusFiltered, ElapsedMS: elapsed}
	}

	if isConnectionRefused(err) {
		return Outcome{Status: model.StatusClosed, ElapsedMS: elapsed}
	}

	return Outcome{Status: model.StatusError, ElapsedMS: elapsed, Err: scanerr.ProbeError(err)}
}

// FastConnectProbe wraps ConnectProbe with the reduced timeout floor
// spec.md §4.2 prescribes for private/loopback addresses, where RTT is
// negligible: it is an optimisation over ConnectProbe, not a new state.
type FastConnectProbe struct {
	Inner        ConnectProbe
	TimeoutFloor time.Duration // defaults to 250ms when zero
}

func (p FastConnectProbe) Run(ctx context.Context, addr net.IP, port uint16, timeout time.Duration) Outcome {
	floor := p.TimeoutFloor
	if floor <= 0 {
		floor = 250 * time.Millisecond
	}
	if timeout > floor {
		timeout = floor
	}
	return p.Inner.Run(ctx, addr, port, timeout)
}

func isConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

func portString(p uint16) string {
	return itoa(int(p))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [6]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
