// Package scheduler implements the two-level concurrency scan scheduler of
// spec.md §4.3: a per-host semaphore bounds concurrent port probes, a
// coarser semaphore bounds concurrent hosts, and the adaptive controller is
// consulted before and folded after each host, per §4.4/§5's ownership
// rules.
package scheduler

import (
	"context"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/scanforge/scanforge/pkg/adaptive"
	"github.com/scanforge/scanforge/pkg/fingerprint"
	"github.com/scanforge/scanforge/pkg/logging"
	"github.com/scanforge/scanforge/pkg/model"
	"github.com/scanforge/scanforge/pkg/netclass"
	"github.com/scanforge/scanforge/pkg/probe"
	"github.com/scanforge/scanforge/pkg/scanerr"
)

// IdentifyFunc is the service-identification seam (spec.md §4.5), so tests
// can substitute a canned responder instead of dialing real sockets.
type IdentifyFunc func(ctx context.Context, addr net.IP, port uint16, timeout time.Duration) *model.ServiceInfo

// Scheduler owns one adaptive.State for the duration of a multi-host scan
// and drives probes against it (spec.md §5 "Shared mutable state").
type Scheduler struct {
	// Raw is the raw-socket transport for SYN/FIN/NULL/XMAS/UDP probes. A
	// nil Raw is valid for connect-only scans; Scan rejects raw-socket scan
	// kinds up front when Raw is nil, per the "Raw-socket portability"
	// design note (return PrivilegeError up front, not mid-scan).
	Raw probe.RawTransport

	// Adaptive is the learning controller. The scheduler reads and writes
	// it only between hosts; per-task workers only ever see an immutable
	// Params snapshot.
	Adaptive *adaptive.State

	// Defaults seeds Adaptive.Params/Record before a class has folded
	// MinScansToAdapt observations.
	Defaults adaptive.Params

	// ParallelHosts bounds concurrently in-flight hosts (spec.md §5
	// default: 10).
	ParallelHosts int

	// Identify runs the service-identification layer against Open ports.
	// Defaults to fingerprint.Identify.
	Identify IdentifyFunc

	Logger zerolog.Logger

	// proberFor resolves a Prober for a scan kind; overridable in tests to
	// avoid real sockets. Defaults to probe.ForKind(kind, Raw).
	proberFor func(model.ScanKind) probe.Prober

	// fdSoftLimit returns the process's file-descriptor soft limit,
	// overridable in tests. Defaults to getFDSoftLimit.
	fdSoftLimit func() (int, error)

	// progress, when non-nil, is incremented once per completed probe
	// (spec.md §5 "Progress counter is a single atomic increment per probe
	// completion").
	progress *int64
}

// New constructs a Scheduler with the given raw transport, adaptive
// controller, operator defaults, and host parallelism bound.
func New(raw probe.RawTransport, state *adaptive.State, defaults adaptive.Params, parallelHosts int) *Scheduler {
	return &Scheduler{
		Raw:           raw,
		Adaptive:      state,
		Defaults:      defaults,
		ParallelHosts: parallelHosts,
		Identify:      fingerprint.Identify,
		Logger:        logging.NewLogger("scheduler", zerolog.InfoLevel),
	}
}

func (s *Scheduler) prober(kind model.ScanKind) probe.Prober {
	if s.proberFor != nil {
		return s.proberFor(kind)
	}
	return probe.ForKind(kind, s.Raw)
}

func (s *Scheduler) fdLimit() (int, error) {
	if s.fdSoftLimit != nil {
		return s.fdSoftLimit()
	}
	return getFDSoftLimit()
}

// Progress reports the number of probe completions recorded so far in the
// most recent Scan call; safe to poll concurrently from another goroutine
// while Scan is running.
func (s *Scheduler) Progress() int64 {
	if s.progress == nil {
		return 0
	}
	return atomic.LoadInt64(s.progress)
}

// Scan executes spec.md §4.3's protocol against ordered targets and ports,
// producing a MultiHostScanResult that preserves targets' input order.
//
// A cancelled ctx aborts in-flight probes at their next suspension point;
// Scan then returns a CancelledError and no host results at all, including
// hosts whose scan finished before cancellation (spec.md §4.3 "Cancellation").
func (s *Scheduler) Scan(ctx context.Context, runID, targetSpec string, targets []model.Target, ports []uint16, kind model.ScanKind) (model.MultiHostScanResult, error) {
	if len(targets) == 0 {
		return model.MultiHostScanResult{}, scanerr.SpecError("no targets to scan")
	}
	if len(ports) == 0 {
		return model.MultiHostScanResult{}, scanerr.SpecError("no ports to scan")
	}
	if probe.RequiresPrivilege(kind) && s.Raw == nil {
		return model.MultiHostScanResult{}, scanerr.PrivilegeError(string(kind))
	}

	if err := s.checkResourceBudget(targets); err != nil {
		return model.MultiHostScanResult{}, err
	}

	var progress int64
	s.progress = &progress

	started := time.Now()
	results := make([]model.HostScanResult, len(targets))
	present := make([]bool, len(targets))

	hostSem := semaphore.NewWeighted(int64(s.parallelHosts()))
	var wg sync.WaitGroup

	for i, target := range targets {
		if ctx.Err() != nil {
			break
		}
		if err := hostSem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(i int, target model.Target) {
			defer wg.Done()
			defer hostSem.Release(1)

			result, ok := s.scanHost(ctx, target, ports, kind)
			if ok {
				results[i] = result
				present[i] = true
			}
		}(i, target)
	}

	wg.Wait()

	if ctx.Err() != nil {
		return model.MultiHostScanResult{}, scanerr.CancelledError()
	}

	out := model.MultiHostScanResult{
		RunID:      runID,
		TargetSpec: targetSpec,
		ScanKind:   kind,
		StartedAt:  started,
		EndedAt:    time.Now(),
		TotalPorts: len(ports),
	}
	for i := range targets {
		if present[i] {
			out.Hosts = append(out.Hosts, results[i])
		}
	}
	out.TotalHosts = len(out.Hosts)
	return out, nil
}

// scanHost runs ports against one target. The bool return is false only
// when ctx was cancelled before the host's ports finished, signalling the
// caller to discard any partial result.
func (s *Scheduler) scanHost(ctx context.Context, target model.Target, ports []uint16, kind model.ScanKind) (model.HostScanResult, bool) {
	started := time.Now()
	class := netclass.Classify(target.Address)
	params := s.Adaptive.Params(class, s.Defaults)

	results := make([]model.PortResult, len(ports))
	sem := semaphore.NewWeighted(int64(effectiveParallelism(params)))
	var wg sync.WaitGroup

	prober := s.prober(kind)
	rateMS := params.RateMS
	timeout := time.Duration(params.TimeoutMS) * time.Millisecond

	for i, port := range ports {
		if ctx.Err() != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(i int, port uint16) {
			defer wg.Done()

			results[i] = s.runPort(ctx, target.Address, port, prober, timeout)
			if s.progress != nil {
				atomic.AddInt64(s.progress, 1)
			}

			if rateMS > 0 {
				time.Sleep(time.Duration(rateMS) * time.Millisecond)
			}
			sem.Release(1)
		}(i, port)
	}

	wg.Wait()

	if ctx.Err() != nil {
		return model.HostScanResult{}, false
	}

	sort.Slice(results, func(a, b int) bool { return results[a].Port < results[b].Port })

	s.Adaptive.Record(adaptive.HostObservation{Class: class, Ports: results}, s.Defaults)

	s.identifyOpenPorts(ctx, target.Address, results, timeout)

	return model.HostScanResult{
		TargetDisplay: target.String(),
		Address:       target.Address,
		ScanKind:      kind,
		StartedAt:     started,
		EndedAt:       time.Now(),
		Ports:         results,
	}, true
}

// runPort executes one probe and converts its Outcome into a PortResult.
// A probe returning Error never fails the scan (spec.md §4.3 "Failure
// isolation"); it is simply recorded.
func (s *Scheduler) runPort(ctx context.Context, addr net.IP, port uint16, prober probe.Prober, timeout time.Duration) model.PortResult {
	outcome := prober.Run(ctx, addr, port, timeout)

	result := model.PortResult{Port: port, Status: outcome.Status}
	if outcome.Status != model.StatusError {
		elapsed := outcome.ElapsedMS
		result.ResponseTimeMS = &elapsed
	} else if outcome.Err != nil {
		s.Logger.Debug().Err(outcome.Err).Uint16("port", port).Msg("probe error")
	}
	return result
}

// identifyOpenPorts runs the service-identification layer (spec.md §4.5)
// against every Open port in place, before the host result is returned.
func (s *Scheduler) identifyOpenPorts(ctx context.Context, addr net.IP, results []model.PortResult, timeout time.Duration) {
	identify := s.Identify
	if identify == nil {
		identify = fingerprint.Identify
	}

	for i := range results {
		if results[i].Status != model.StatusOpen {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		results[i].Service = identify(ctx, addr, results[i].Port, timeout)
	}
}

// effectiveParallelism guards against a zero/negative Params.Parallelism
// (e.g. a cold adaptive profile seeded with unset operator defaults)
// deadlocking semaphore.NewWeighted.
func effectiveParallelism(p adaptive.Params) int {
	if p.Parallelism <= 0 {
		return 1
	}
	return p.Parallelism
}

func (s *Scheduler) parallelHosts() int {
	if s.ParallelHosts <= 0 {
		return 1
	}
	return s.ParallelHosts
}

// checkResourceBudget enforces spec.md §5's "parallel_hosts ×
// per_host_parallelism stays below the process FD soft limit" rule,
// checked once up front against the worst-case per-host parallelism any
// target's network class could resolve to.
func (s *Scheduler) checkResourceBudget(targets []model.Target) error {
	maxParallelism := s.Defaults.Parallelism
	seen := make(map[model.NetworkClass]bool)
	for _, t := range targets {
		class := netclass.Classify(t.Address)
		if seen[class] {
			continue
		}
		seen[class] = true

		p := s.Adaptive.Params(class, s.Defaults)
		if p.Parallelism > maxParallelism {
			maxParallelism = p.Parallelism
		}
	}
	if maxParallelism <= 0 {
		maxParallelism = 1
	}

	limit, err := s.fdLimit()
	if err != nil {
		return scanerr.WithCode(err, scanerr.CodeResource)
	}

	if s.parallelHosts()*maxParallelism > limit {
		return scanerr.ResourceError(s.parallelHosts(), maxParallelism, limit)
	}
	return nil
}
