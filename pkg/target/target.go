// Package target implements the textual target-spec expander of spec.md
// §4.1, generalized from the teacher's pkg/utils.ParseAndExpandTargets into
// an ordered, deduplicated Target sequence with hostname resolution.
package target

import (
	"context"
	"net"
	"strings"

	"github.com/scanforge/scanforge/pkg/model"
	"github.com/scanforge/scanforge/pkg/scanerr"
)

// Resolver abstracts hostname resolution so tests can substitute a fake
// resolver instead of hitting the system one.
type Resolver interface {
	LookupHost(ctx context.Context, host string) (addrs []string, err error)
}

// Expander expands a comma-joined target spec into an ordered, deduplicated
// Target sequence (spec.md §4.1).
type Expander struct {
	resolver Resolver
}

// NewExpander builds an Expander using the system resolver.
func NewExpander() *Expander {
	return &Expander{resolver: net.DefaultResolver}
}

// NewExpanderWithResolver builds an Expander using a caller-supplied
// resolver, for tests.
func NewExpanderWithResolver(r Resolver) *Expander {
	return &Expander{resolver: r}
}

// Expand parses spec (a comma-joined list of literal addresses, hostnames,
// dash ranges, or CIDR blocks) and returns the ordered, deduplicated
// concatenation of all resolved Targets, preserving first-seen order across
// tokens. A malformed token fails the whole call with a SpecError; an
// unresolvable hostname fails only that token (ResolveError is collected but
// does not abort expansion of the remaining tokens, per spec.md §7). A token
// containing '-' is read as a dash range only when the part before the first
// '-' is an IP address; otherwise it is a hostname.
//
// warnings receives one ResolveError per hostname token that failed to
// resolve, in encounter order, so callers can surface diagnostics without
// aborting the scan.
func (e *Expander) Expand(ctx context.Context, spec string) ([]model.Target, []error, error) {
	var (
		out      []model.Target
		seen     = make(map[string]struct{})
		warnings []error
	)

	for _, raw := range strings.Split(spec, ",") {
		token := strings.TrimSpace(raw)
		if token == "" {
			continue
		}

		var (
			targets []model.Target
			err     error
		)

		switch {
		case strings.Contains(token, "/"):
			targets, err = expandCIDR(token)
		case strings.Contains(token, "-") && net.ParseIP(strings.TrimSpace(strings.SplitN(token, "-", 2)[0])) != nil:
			targets, err = expandRange(token)
		default:
			targets, err = e.expandSingle(ctx, token)
			if rerr, ok := asResolveError(err); ok {
				warnings = append(warnings, rerr)
				continue
			}
		}

		if err != nil {
			return nil, warnings, err
		}

		for _, t := range targets {
			key := t.Address.String()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, t)
		}
	}

	return out, warnings, nil
}

func asResolveError(err error) (error, bool) {
	if err == nil {
		return nil, false
	}
	if scanerr.GetCode(err) == scanerr.CodeResolve {
		return err, true
	}
	return nil, false
}

// expandSingle handles one token that is neither a CIDR nor a dash range: a
// literal address or a hostname.
func (e *Expander) expandSingle(ctx context.Context, token string) ([]model.Target, error) {
	if ip := net.ParseIP(token); ip != nil {
		return []model.Target{{Address: ip}}, nil
	}

	addrs, err := e.resolver.LookupHost(ctx, token)
	if err != nil || len(addrs) == 0 {
		if err == nil {
			err = &net.DNSError{Err: "no A/AAAA record", Name: token, IsNotFound: true}
		}
		return nil, scanerr.ResolveError(token, err)
	}

	ip := net.ParseIP(addrs[0])
	if ip == nil {
		return nil, scanerr.ResolveError(token, &net.DNSError{Err: "invalid resolved address", Name: token})
	}
	return []model.Target{{Address: ip, Display: token}}, nil
}

// expandRange handles an inclusive dash range "A-B" where A and B are v4
// addresses in the same subnet and A <= B (spec.md §4.1). It also accepts
// the common shorthand "192.168.1.10-20" (last-octet range).
func expandRange(token string) ([]model.Target, error) {
	parts := strings.SplitN(token, "-", 2)
	if len(parts) != 2 {
		return nil, scanerr.SpecError("invalid range %q", token)
	}
	startStr := strings.TrimSpace(parts[0])
	endStr := strings.TrimSpace(parts[1])

	if lastOctet, ok := parseLastOctetEnd(endStr); ok {
		startIP := net.ParseIP(startStr).To4()
		if startIP == nil {
			return nil, scanerr.SpecError("invalid range start %q", startStr)
		}
		startOctet := int(startIP[3])
		if lastOctet < startOctet || lastOctet > 255 {
			return nil, scanerr.SpecError("invalid range %q: end octet before start", token)
		}
		var out []model.Target
		for o := startOctet; o <= lastOctet; o++ {
			ip := make(net.IP, net.IPv4len)
			copy(ip, startIP)
			ip[3] = byte(o)
			out = append(out, model.Target{Address: ip})
		}
		return out, nil
	}

	startIP := net.ParseIP(startStr)
	endIP := net.ParseIP(endStr)
	if startIP == nil || endIP == nil {
		return nil, scanerr.SpecError("invalid range %q", token)
	}
	startV4, endV4 := startIP.To4(), endIP.To4()
	if (startV4 == nil) != (endV4 == nil) {
		return nil, scanerr.SpecError("mismatched address families in range %q", token)
	}
	if startV4 == nil {
		return nil, scanerr.SpecError("range expansion only supports IPv4 (%q)", token)
	}
	if compareIPv4(startV4, endV4) > 0 {
		return nil, scanerr.SpecError("invalid range %q: start > end", token)
	}
	if !sameSubnet24(startV4, endV4) {
		return nil, scanerr.SpecError("invalid range %q: start and end must be in the same /24", token)
	}

	var out []model.Target
	cur := make(net.IP, net.IPv4len)
	copy(cur, startV4)
	for {
		ip := make(net.IP, net.IPv4len)
		copy(ip, cur)
		out = append(out, model.Target{Address: ip})
		if compareIPv4(cur, endV4) == 0 {
			break
		}
		cur[3]++
	}
	return out, nil
}

// parseLastOctetEnd reports whether s is a bare decimal octet (0-255), the
// shorthand form of "192.168.1.10-20".
func parseLastOctetEnd(s string) (int, bool) {
	if s == "" || strings.Contains(s, ".") {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	if n > 255 {
		return 0, false
	}
	return n, true
}

func compareIPv4(a, b net.IP) int {
	for i := 0; i < net.IPv4len; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func sameSubnet24(a, b net.IP) bool {
	return a[0] == b[0] && a[1] == b[1] && a[2] == b[2]
}

// expandCIDR enumerates all host addresses in a CIDR block, excluding the
// network and broadcast addresses for prefixes <= 30; for /31 and /32 both
// addresses are included (spec.md §4.1).
func expandCIDR(token string) ([]model.Target, error) {
	ip, ipNet, err := net.ParseCIDR(token)
	if err != nil {
		return nil, scanerr.SpecError("invalid CIDR %q: %v", token, err)
	}

	ones, bits := ipNet.Mask.Size()
	isV4 := ip.To4() != nil

	var out []model.Target
	cur := make(net.IP, len(ipNet.IP))
	copy(cur, ipNet.IP)

	for ipNet.Contains(cur) {
		candidate := make(net.IP, len(cur))
		copy(candidate, cur)

		switch {
		case !isV4:
			// IPv6 has no broadcast concept; include every address in range.
			out = append(out, model.Target{Address: candidate})
		case bits-ones <= 1:
			// /31 or /32: include both/all addresses.
			out = append(out, model.Target{Address: candidate})
		case candidate.Equal(networkAddress(ipNet)) || candidate.Equal(broadcastAddress(ipNet)):
			// skip network/broadcast for /0..../30
		default:
			out = append(out, model.Target{Address: candidate})
		}

		if !incrementIP(cur) {
			break
		}
	}
	return out, nil
}

func networkAddress(n *net.IPNet) net.IP {
	return n.IP.Mask(n.Mask)
}

func broadcastAddress(n *net.IPNet) net.IP {
	ip := make(net.IP, len(n.IP))
	for i := range ip {
		ip[i] = n.IP[i] | ^n.Mask[i]
	}
	return ip
}

// incrementIP increments ip in place (big-endian). It returns false when ip
// wrapped around to all-zero (meaning the caller has exhausted the address
// space and must stop), and true otherwise.
func incrementIP(ip net.IP) bool {
	for j := len(ip) - 1; j >= 0; j-- {
		ip[j]++
		if ip[j] != 0 {
			return true
		}
	}
	return false
}
