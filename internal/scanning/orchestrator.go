package scanning

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/metrics"
)

// DefaultProbeTimeout bounds a single host's detailed scan.
const DefaultProbeTimeout = 5 * time.Minute

// OrchestratorConfig holds the per-phase time limits.
type OrchestratorConfig struct {
	// DiscoveryTimeout bounds the discovery phase; zero means unbounded.
	DiscoveryTimeout time.Duration
	// ProbeTimeout bounds each host probe; zero means DefaultProbeTimeout.
	ProbeTimeout time.Duration
}

// Orchestrator runs the two-phase scan and reports progress as events.
// A single Orchestrator may serve concurrent Stream calls; each call keeps
// its own state.
type Orchestrator struct {
	engine  Engine
	config  OrchestratorConfig
	limiter *Limiter
	metrics metrics.Collector
	logger  *logging.Logger
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLimiter bounds concurrent scan runs.
func WithLimiter(l *Limiter) OrchestratorOption {
	return func(o *Orchestrator) {
		o.limiter = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = c
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(l *logging.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// NewOrchestrator creates an orchestrator driving engine.
func NewOrchestrator(engine Engine, cfg OrchestratorConfig, opts ...OrchestratorOption) *Orchestrator {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}

	o := &Orchestrator{
		engine:  engine,
		config:  cfg,
		metrics: metrics.Nop{},
		logger:  logging.Default().WithComponent("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Limiter returns the run limiter, which may be nil.
func (o *Orchestrator) Limiter() *Limiter {
	return o.limiter
}

// Stream returns the event sequence of one scan of target. Nothing runs until
// the sequence is iterated. Production stops as soon as the consumer stops
// pulling or ctx is done, and no further engine calls are made after that.
func (o *Orchestrator) Stream(ctx context.Context, target string) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		runID := uuid.NewString()
		log := o.logger.WithRunID(runID).WithTarget(target)

		if err := o.limiter.Acquire(ctx, runID); err != nil {
			if ctx.Err() == nil {
				yield(ErrorEvent(err.Error()))
			}
			return
		}
		defer o.limiter.Release(runID)

		start := time.Now()
		outcome := metrics.OutcomeCancelled
		o.metrics.ScanStarted()
		defer func() {
			o.metrics.ScanFinished(outcome, time.Since(start))
			log.Info("Scan run finished", "outcome", outcome, "duration", time.Since(start))
		}()

		if !yield(StatusEvent(msgDiscovering)) {
			return
		}

		hosts, err := o.discover(ctx, target)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			outcome = metrics.OutcomeError
			log.Error("Host discovery failed", "error", err, "code", errors.GetCode(err))
			yield(ErrorEvent(err.Error()))
			return
		}

		o.metrics.HostsDiscovered(len(hosts))
		if len(hosts) == 0 {
			outcome = metrics.OutcomeEmpty
			yield(StatusEvent(msgNoHosts))
			return
		}

		log.Info("Hosts discovered", "count", len(hosts))
		if !yield(StatusEvent(msgFoundHosts, len(hosts))) {
			return
		}

		for i, host := range hosts {
			if ctx.Err() != nil {
				return
			}
			if !yield(StatusEvent(msgScanningHost, i+1, len(hosts), host.Address)) {
				return
			}

			result, err := o.probe(ctx, host)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.WarnProbe("Detailed scan failed", host.Address, err, "code", errors.GetCode(err))
				if !yield(StatusEvent(msgProbeFailed, host.Address, err)) {
					return
				}
			}

			if !yield(HostResultEvent(result)) {
				return
			}
		}

		outcome = metrics.OutcomeSuccess
		yield(StatusEvent(msgCompleted))
	}
}

func (o *Orchestrator) discover(ctx context.Context, target string) ([]DiscoveredHost, error) {
	if o.config.DiscoveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.DiscoveryTimeout)
		defer cancel()
	}
	return o.engine.Discover(ctx, target)
}

// probe returns the detailed result for host, or its degraded record together
// with the probe error.
func (o *Orchestrator) probe(ctx context.Context, host DiscoveredHost) (HostResult, error) {
	probeCtx, cancel := context.WithTimeout(ctx, o.config.ProbeTimeout)
	defer cancel()

	start := time.Now()
	detail, err := o.engine.Probe(probeCtx, host)
	if err == nil && detail == nil {
		err = errors.ErrHostUnreachable(host.Address)
	}
	if err != nil {
		if ctx.Err() == nil && probeCtx.Err() == context.DeadlineExceeded && !errors.IsCode(err, errors.CodeTimeout) {
			err = errors.ErrScanTimeout(host.Address, err)
		}
		o.metrics.HostProbed(metrics.OutcomeDegraded, time.Since(start))
		return DegradedResult(host), err
	}

	o.metrics.HostProbed(metrics.OutcomeSuccess, time.Since(start))
	return *detail, nil
}

