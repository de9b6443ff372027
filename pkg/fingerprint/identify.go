package fingerprint

import (
	"context"
	"net"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/scanforge/scanforge/pkg/model"
)

// maxSemverConfidenceBoost is added to a rule's base confidence when the
// extracted version string parses as a well-formed semantic version: a
// clean parse is corroborating evidence the banner was read correctly.
const maxSemverConfidenceBoost = 0.05

// Identify runs spec.md §4.5's service-identification probes against an
// Open port: candidate probes are tried in declared order until one
// produces a response the rules engine classifies; nil is returned if none
// do.
func Identify(ctx context.Context, addr net.IP, port uint16, timeout time.Duration) *model.ServiceInfo {
	return identifyWithDialer(ctx, defaultDialer, addr, port, timeout)
}

func identifyWithDialer(ctx context.Context, d dialer, addr net.IP, port uint16, timeout time.Duration) *model.ServiceInfo {
	for _, kind := range candidateProbesFor(port) {
		response, err := runProbe(ctx, d, addr, port, kind, timeout)
		if err != nil {
			continue
		}

		name, version, banner, confidence, extra, ok := classify(response)
		if !ok {
			continue
		}

		version, confidence = refineVersion(version, confidence)

		return &model.ServiceInfo{
			Name:       name,
			Version:    version,
			Banner:     banner,
			Confidence: confidence,
			Extra:      extra,
		}
	}
	return nil
}

// refineVersion attempts to parse version as a semantic version; on success
// it normalizes the stored string and nudges confidence up, capped at 1.0,
// mirroring how a corroborated fingerprint match strengthens confidence.
func refineVersion(version string, confidence float64) (string, float64) {
	if version == "" {
		return version, confidence
	}

	parsed, err := semver.NewVersion(version)
	if err != nil {
		return version, confidence
	}

	boosted := confidence + maxSemverConfidenceBoost
	if boosted > 1.0 {
		boosted = 1.0
	}
	return parsed.String(), boosted
}
