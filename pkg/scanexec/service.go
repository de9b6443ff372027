// Package scanexec is the single entry point the invocation surface calls
// (spec.md §6): it wires target/port expansion, the optional host-discovery
// pre-pass, the scheduler, and the adaptive controller together, adapted
// from the teacher's pkg/scanexec/service.go validate→plan→execute→emit
// shape with the DAG-engine planner/orchestrator replaced by direct calls
// into pkg/scheduler.
package scanexec

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scanforge/scanforge/pkg/adaptive"
	"github.com/scanforge/scanforge/pkg/discovery"
	"github.com/scanforge/scanforge/pkg/logging"
	"github.com/scanforge/scanforge/pkg/model"
	"github.com/scanforge/scanforge/pkg/portspec"
	"github.com/scanforge/scanforge/pkg/probe"
	"github.com/scanforge/scanforge/pkg/scanerr"
	"github.com/scanforge/scanforge/pkg/scheduler"
	"github.com/scanforge/scanforge/pkg/target"
)

// ProgressSink receives lifecycle notifications as Run advances through
// expansion, discovery, and scanning, mirroring the teacher's
// Service.emit/ProgressSink shape without the DAG-specific phase names.
type ProgressSink interface {
	OnEvent(ProgressEvent)
}

// ProgressEvent is one lifecycle notification.
type ProgressEvent struct {
	Phase     string
	Message   string
	Timestamp time.Time
}

// discoverer is the host-discovery seam: *discovery.Prober satisfies it
// structurally, and tests substitute a fake to avoid real ICMP sockets.
type discoverer interface {
	Probe(ctx context.Context, targets []model.Target) (live, unreachable []model.Target, err error)
}

// Service is the scan pipeline façade: expand → discover → scan.
type Service struct {
	Expander         *target.Expander
	Adaptive         *adaptive.State
	AdaptiveDefaults adaptive.Params
	Logger           zerolog.Logger
	ProgressSink     ProgressSink

	transportFactory func() (probe.RawTransport, error)
	discoveryFactory func() discoverer
}

// NewService builds a Service with default collaborators: the system
// resolver, a fresh adaptive.State seeded with defaults, the real
// raw-socket transport, and an unprivileged discovery prober.
func NewService(defaults adaptive.Params, learningRate float64, minScansToAdapt int) *Service {
	return &Service{
		Expander:         target.NewExpander(),
		Adaptive:         adaptive.NewState(learningRate, minScansToAdapt),
		AdaptiveDefaults: defaults,
		Logger:           logging.NewLogger("scanexec", zerolog.InfoLevel),
		transportFactory: func() (probe.RawTransport, error) { return probe.NewPrivilegedTransport() },
		discoveryFactory: func() discoverer { return discovery.New(false) },
	}
}

// WithAdaptiveState swaps in a controller restored from pkg/adaptive.Store
// (or shared across invocations by a long-lived caller) instead of the
// fresh one NewService creates.
func (s *Service) WithAdaptiveState(state *adaptive.State) *Service {
	s.Adaptive = state
	return s
}

func (s *Service) emit(phase, message string) {
	if s.ProgressSink == nil {
		return
	}
	s.ProgressSink.OnEvent(ProgressEvent{Phase: phase, Message: message, Timestamp: time.Now()})
}

// Run executes spec.md §2's control flow end to end and returns the final
// MultiHostScanResult for the invocation surface to render.
func (s *Service) Run(ctx context.Context, params Params) (model.MultiHostScanResult, error) {
	if err := params.Validate(); err != nil {
		return model.MultiHostScanResult{}, err
	}

	s.emit("expand", "targets")
	targets, warnings, err := s.Expander.Expand(ctx, params.TargetSpec)
	if err != nil {
		return model.MultiHostScanResult{}, err
	}
	for _, w := range warnings {
		s.Logger.Warn().Err(w).Msg("target token skipped")
	}
	if len(targets) == 0 {
		return model.MultiHostScanResult{}, scanerr.WithCode(scanerr.ErrNoTargets, scanerr.CodeSpec)
	}

	s.emit("expand", "ports")
	ports, err := portspec.Expand(params.PortSpec)
	if err != nil {
		return model.MultiHostScanResult{}, err
	}

	var raw probe.RawTransport
	if probe.RequiresPrivilege(params.ScanKind) {
		raw, err = s.transportFactory()
		if err != nil {
			return model.MultiHostScanResult{}, scanerr.PrivilegeError(string(params.ScanKind))
		}
		if closer, ok := raw.(interface{ Close() error }); ok {
			defer closer.Close()
		}
	}

	live, unreachable, err := s.discover(ctx, params, targets)
	if err != nil {
		return model.MultiHostScanResult{}, err
	}

	runID := uuid.NewString()
	started := time.Now()

	var scanned []model.HostScanResult
	if len(live) > 0 {
		sched := scheduler.New(raw, s.Adaptive, s.AdaptiveDefaults, params.ParallelHosts)
		sched.Logger = s.Logger

		s.emit("scan", fmt.Sprintf("run=%s hosts=%d ports=%d", runID, len(live), len(ports)))
		result, err := sched.Scan(ctx, runID, params.TargetSpec, live, ports, params.ScanKind)
		if err != nil {
			return model.MultiHostScanResult{}, err
		}
		scanned = result.Hosts
	}

	hosts := mergeHosts(targets, live, scanned, ports, params.ScanKind)
	s.emit("scan", "completed")

	return model.MultiHostScanResult{
		RunID:      runID,
		TargetSpec: params.TargetSpec,
		ScanKind:   params.ScanKind,
		StartedAt:  started,
		EndedAt:    time.Now(),
		TotalHosts: len(hosts),
		TotalPorts: len(ports),
		Hosts:      hosts,
	}, nil
}

// discover runs the optional ICMP pre-pass (spec.md §6 "skipping host
// discovery"). When skipped, every target is treated as live and none are
// recorded unreachable.
func (s *Service) discover(ctx context.Context, params Params, targets []model.Target) (live, unreachable []model.Target, err error) {
	if params.SkipDiscovery {
		return targets, nil, nil
	}

	s.emit("discover", fmt.Sprintf("targets=%d", len(targets)))
	prober := s.discoveryFactory()
	live, unreachable, err = prober.Probe(ctx, targets)
	if err != nil {
		return nil, nil, scanerr.CancelledError()
	}
	// Probe reports live targets in completion order; restore input order so
	// mergeHosts can pair them positionally with the scheduler's output.
	liveSet := make(map[string]bool, len(live))
	for _, t := range live {
		liveSet[t.Address.String()] = true
	}
	ordered := make([]model.Target, 0, len(live))
	for _, t := range targets {
		if liveSet[t.Address.String()] {
			ordered = append(ordered, t)
		}
	}
	return ordered, unreachable, nil
}

// mergeHosts reassembles scheduler output (produced only for live targets,
// in live's order) and discovery-unreachable targets back into original's
// input order, since the scheduler and discovery prober each only ever see
// a subsequence of the full target list.
func mergeHosts(original, live []model.Target, scanned []model.HostScanResult, ports []uint16, kind model.ScanKind) []model.HostScanResult {
	liveSet := make(map[string]bool, len(live))
	for _, t := range live {
		liveSet[t.Address.String()] = true
	}

	now := time.Now()
	merged := make([]model.HostScanResult, 0, len(original))
	next := 0
	for _, t := range original {
		if liveSet[t.Address.String()] {
			if next < len(scanned) {
				merged = append(merged, scanned[next])
				next++
			}
			continue
		}
		merged = append(merged, unreachableHostResult(t, ports, kind, now))
	}
	return merged
}

// unreachableHostResult records a host discovery ruled out as unreachable:
// every requested port is marked PortStatus::Error rather than the host
// being silently dropped from the report (spec.md §7 ProbeError).
func unreachableHostResult(t model.Target, ports []uint16, kind model.ScanKind, at time.Time) model.HostScanResult {
	results := make([]model.PortResult, len(ports))
	for i, p := range ports {
		results[i] = model.PortResult{Port: p, Status: model.StatusError}
	}
	return model.HostScanResult{
		TargetDisplay: t.String(),
		Address:       t.Address,
		ScanKind:      kind,
		StartedAt:     at,
		EndedAt:       at,
		Ports:         results,
	}
}
