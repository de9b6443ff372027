// Package fingerprint implements the service-identification probes of
// spec.md §4.5: a fixed candidate-probe selection by port number, followed
// by a rule-based classifier over the bytes read back.
package fingerprint

import (
	"bytes"
	_ "embed"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// StaticRule is one entry of the embedded rule catalog, the same shape as
// the teacher's fingerprint resolver rules (match/version-extraction
// regex, confidence), narrowed to spec.md §4.5's service-classification
// concern rather than CVE/product fingerprinting.
type StaticRule struct {
	Name              string  `yaml:"name"`
	Prefix            string  `yaml:"prefix"`             // case-sensitive literal prefix match, checked first
	VersionExtraction string  `yaml:"version_extraction"` // regex with one capturing group, applied to the first line
	Confidence        float64 `yaml:"confidence"`

	versionRegex *regexp.Regexp
}

//go:embed rules.yaml
var rulesYAML []byte

// catalogSchemaVersion is compared against the catalog file's declared
// schema_version with golang.org/x/mod/semver, so a future rules-v2.yaml
// with a newer incompatible schema doesn't silently misparse under an
// older binary.
const catalogSchemaVersion = "v1.0.0"

// firstWhitespaceToken is a sentinel VersionExtraction value (rather than a
// regex) for rules whose version is simply the first whitespace-delimited
// token of the banner line, per spec.md §4.5's SSH rule.
const firstWhitespaceToken = "first_whitespace_token"

type ruleCatalog struct {
	SchemaVersion string       `yaml:"schema_version"`
	Rules         []StaticRule `yaml:"rules"`
}

var compiledRules = mustLoadRules(rulesYAML)

func mustLoadRules(data []byte) []StaticRule {
	rules, err := parseRuleCatalog(data)
	if err != nil {
		panic(err)
	}
	return rules
}

// parseRuleCatalog parses and compiles the embedded rule catalog,
// validating its schema version against the highest one this binary
// understands.
func parseRuleCatalog(data []byte) ([]StaticRule, error) {
	var cat ruleCatalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, err
	}
	if err := checkCatalogVersion(cat.SchemaVersion); err != nil {
		return nil, err
	}

	compiled := make([]StaticRule, 0, len(cat.Rules))
	for _, r := range cat.Rules {
		if r.VersionExtraction != "" && r.VersionExtraction != firstWhitespaceToken {
			r.versionRegex = regexp.MustCompile(r.VersionExtraction)
		}
		compiled = append(compiled, r)
	}
	return compiled, nil
}

// classify applies spec.md §4.5's rule set in declared order: HTTP, SSH,
// FTP/SMTP, TLS, DNS, otherwise unknown. "The first matching probe wins" —
// the catalog covers HTTP/SSH; FTP/SMTP/TLS/DNS need content disambiguation
// (the "220 " banner) or raw byte-prefix checks the catalog's simple
// literal-prefix rules can't express, so they're handled inline at the same
// priority position the catalog rules would occupy.
func classify(response []byte) (name, version, banner string, confidence float64, extra map[string]string, ok bool) {
	firstLine := firstLineOf(response)

	for _, rule := range compiledRules {
		if !strings.HasPrefix(firstLine, rule.Prefix) {
			continue
		}

		version := ""
		if rule.VersionExtraction == firstWhitespaceToken {
			if fields := strings.Fields(firstLine); len(fields) > 0 {
				version = fields[0]
			}
		} else if rule.versionRegex != nil {
			if m := rule.versionRegex.FindStringSubmatch(firstLine); len(m) >= 2 {
				version = m[1]
			}
		}

		return rule.Name, version, firstLine, rule.Confidence, extraFor(rule.Name, response), true
	}

	if strings.HasPrefix(firstLine, "220 ") {
		lower := strings.ToLower(firstLine)
		switch {
		case strings.Contains(lower, "ftp"):
			return "FTP", "", firstLine, 0.9, nil, true
		case strings.Contains(lower, "smtp"):
			return "SMTP", "", firstLine, 0.9, nil, true
		}
	}

	if len(response) >= 2 && response[0] == 0x16 && response[1] == 0x03 {
		return "TLS", "", "", 0.85, nil, true
	}
	if len(response) >= 12 && response[0] == 0x12 && response[1] == 0x34 {
		return "DNS", "", "", 0.85, nil, true
	}

	return "", "", "", 0, nil, false
}

// extraFor attaches protocol-specific sidecar fields spec.md §4.5 requires
// (HTTP's Server header into extra["server"]).
func extraFor(name string, response []byte) map[string]string {
	if name != "HTTP" {
		return nil
	}
	for _, line := range bytes.Split(response, []byte("\r\n")) {
		const prefix = "Server:"
		if len(line) > len(prefix) && strings.EqualFold(string(line[:len(prefix)]), prefix) {
			return map[string]string{"server": strings.TrimSpace(string(line[len(prefix):]))}
		}
	}
	return nil
}

func firstLineOf(response []byte) string {
	if i := bytes.IndexByte(response, '\n'); i >= 0 {
		if i > 0 && response[i-1] == '\r' {
			return string(response[:i-1])
		}
		return string(response[:i])
	}
	return string(response)
}
