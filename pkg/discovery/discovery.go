// Package discovery implements the optional ICMP host-discovery pre-pass
// (spec.md §6 "flags for ... skipping host discovery"): a best-effort ping
// sweep run ahead of port scanning so unreachable hosts can be recorded as
// such rather than silently dropped from the report.
package discovery

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/go-ping/ping"

	"github.com/scanforge/scanforge/pkg/model"
)

// Pinger is the subset of go-ping/ping.Pinger's surface this package needs,
// seamed out so Probe is unit-testable without real ICMP sockets.
type Pinger interface {
	Run() error
	Stop()
	Statistics() *ping.Statistics

	SetPrivileged(bool)
	SetCount(int)
	SetInterval(time.Duration)
	SetTimeout(time.Duration)
	GetTimeout() time.Duration
}

type pingerFactoryFunc func(addr string) (Pinger, error)

// realPingerAdapter wraps a real go-ping/ping.Pinger behind the Pinger
// interface.
type realPingerAdapter struct {
	p *ping.Pinger
}

func (r *realPingerAdapter) Run() error                   { return r.p.Run() }
func (r *realPingerAdapter) Stop()                        { r.p.Stop() }
func (r *realPingerAdapter) Statistics() *ping.Statistics { return r.p.Statistics() }
func (r *realPingerAdapter) SetPrivileged(v bool)         { r.p.SetPrivileged(v) }
func (r *realPingerAdapter) SetCount(c int)               { r.p.Count = c }
func (r *realPingerAdapter) SetInterval(i time.Duration)  { r.p.Interval = i }
func (r *realPingerAdapter) SetTimeout(t time.Duration)   { r.p.Timeout = t }
func (r *realPingerAdapter) GetTimeout() time.Duration    { return r.p.Timeout }

func realPingerFactory(privileged bool) pingerFactoryFunc {
	return func(addr string) (Pinger, error) {
		p, err := ping.NewPinger(addr)
		if err != nil {
			return nil, err
		}
		p.SetPrivileged(privileged)
		return &realPingerAdapter{p: p}, nil
	}
}

// Default tuning, mirrored from the teacher's ICMPPingDiscoveryConfig
// defaults.
const (
	DefaultCount         = 1
	DefaultInterval      = 1 * time.Second
	DefaultPacketTimeout = 1 * time.Second
	DefaultConcurrency   = 50
)

// Prober runs the ping sweep. The zero value is not usable; construct with
// New.
type Prober struct {
	Count         int
	Interval      time.Duration
	PacketTimeout time.Duration
	Concurrency   int
	Privileged    bool

	pingerFactory pingerFactoryFunc
}

// New returns a Prober configured with scanforge's defaults, backed by a
// real go-ping/ping.Pinger. privileged selects raw-socket ICMP; go-ping
// falls back to an unprivileged UDP ping when the process lacks the
// capability, so no up-front privilege check is needed here (unlike the
// raw TCP/UDP port probes in pkg/probe, ICMP discovery degrades silently
// rather than failing the whole scan).
func New(privileged bool) *Prober {
	return &Prober{
		Count:         DefaultCount,
		Interval:      DefaultInterval,
		PacketTimeout: DefaultPacketTimeout,
		Concurrency:   DefaultConcurrency,
		Privileged:    privileged,
		pingerFactory: realPingerFactory(privileged),
	}
}

// Probe pings every target concurrently (bounded by Concurrency) and splits
// them into live and unreachable sets, preserving each target's original
// value (including its Display hostname) in whichever set it lands in.
// A target that doesn't answer is unreachable, not an error: Probe only
// returns an error for context cancellation, since a cancelled discovery
// pass leaves nothing the caller can trust either way.
func (p *Prober) Probe(ctx context.Context, targets []model.Target) (live, unreachable []model.Target, err error) {
	if len(targets) == 0 {
		return nil, nil, nil
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.concurrency())

	for _, target := range targets {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(target model.Target) {
			defer wg.Done()
			defer func() { <-sem }()

			if p.pingOnce(ctx, target.Address) {
				mu.Lock()
				live = append(live, target)
				mu.Unlock()
				return
			}
			mu.Lock()
			unreachable = append(unreachable, target)
			mu.Unlock()
		}(target)
	}

	wg.Wait()

	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	default:
	}

	return live, unreachable, nil
}

func (p *Prober) pingOnce(ctx context.Context, addr net.IP) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}

	pinger, err := p.pingerFactory(addr.String())
	if err != nil {
		return false
	}

	pinger.SetCount(p.count())
	pinger.SetInterval(p.interval())
	pinger.SetTimeout(p.packetTimeout())

	opCtx, cancel := context.WithTimeout(ctx, pinger.GetTimeout()+500*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		select {
		case <-opCtx.Done():
			pinger.Stop()
		case <-done:
		}
	}()

	_ = pinger.Run()
	close(done)

	if opCtx.Err() != nil {
		return false
	}
	return pinger.Statistics().PacketsRecv > 0
}

func (p *Prober) concurrency() int {
	if p.Concurrency > 0 {
		return p.Concurrency
	}
	return DefaultConcurrency
}

func (p *Prober) count() int {
	if p.Count > 0 {
		return p.Count
	}
	return DefaultCount
}

func (p *Prober) interval() time.Duration {
	if p.Interval > 0 {
		return p.Interval
	}
	return DefaultInterval
}

func (p *Prober) packetTimeout() time.Duration {
	if p.PacketTimeout > 0 {
		return p.PacketTimeout
	}
	return DefaultPacketTimeout
}
