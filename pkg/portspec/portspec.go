// Package portspec implements the port-spec expander of spec.md §3/§4.1,
// extending the teacher's pkg/modules/scan port-literal/range parser with
// the named alias table.
package portspec

import (
	"sort"
	"strconv"
	"strings"

	"github.com/scanforge/scanforge/pkg/scanerr"
)

// Named aliases from spec.md §3.
var aliases = map[string][]int{
	"common": {21, 22, 23, 25, 53, 80, 110, 135, 139, 143, 443, 445, 993, 995,
		1433, 1521, 3306, 3389, 5432, 5900, 6379, 8080, 8443, 27017},
	"web":  {80, 443, 8000, 8008, 8080, 8443, 8888, 9000, 3000, 5000},
	"mail": {25, 110, 143, 465, 587, 993, 995},
	"db":   {1433, 1521, 3306, 5432, 6379, 27017},
	// top100: the 100 statistically most-open TCP ports, matching nmap's
	// well-known top-ports frequency table.
	"top100": top100Ports,
}

// Expand parses spec (comma-joined literal ports, inclusive ranges "L-H",
// or named aliases) into an ordered, deduplicated []uint16. Fails with a
// SpecError on zero, out-of-range, or malformed input (spec.md §4.1).
func Expand(spec string) ([]uint16, error) {
	var (
		out  []uint16
		seen = make(map[int]struct{})
	)

	add := func(p int) error {
		if p < 1 || p > 65535 {
			return scanerr.SpecError("port %d out of range 1-65535", p)
		}
		if _, dup := seen[p]; dup {
			return nil
		}
		seen[p] = struct{}{}
		out = append(out, uint16(p))
		return nil
	}

	for _, raw := range strings.Split(spec, ",") {
		token := strings.TrimSpace(raw)
		if token == "" {
			continue
		}

		if ports, ok := aliases[strings.ToLower(token)]; ok {
			for _, p := range ports {
				if err := add(p); err != nil {
					return nil, err
				}
			}
			continue
		}

		if strings.Contains(token, "-") {
			lo, hi, err := parseRange(token)
			if err != nil {
				return nil, err
			}
			for p := lo; p <= hi; p++ {
				if err := add(p); err != nil {
					return nil, err
				}
			}
			continue
		}

		p, err := strconv.Atoi(token)
		if err != nil {
			return nil, scanerr.SpecError("invalid port %q: %v", token, err)
		}
		if err := add(p); err != nil {
			return nil, err
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func parseRange(token string) (int, int, error) {
	parts := strings.SplitN(token, "-", 2)
	if len(parts) != 2 {
		return 0, 0, scanerr.SpecError("invalid port range %q", token)
	}
	lo, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, scanerr.SpecError("invalid port range %q: %v", token, err)
	}
	hi, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, scanerr.SpecError("invalid port range %q: %v", token, err)
	}
	if lo > hi {
		return 0, 0, scanerr.SpecError("invalid port range %q: low > high", token)
	}
	return lo, hi, nil
}
