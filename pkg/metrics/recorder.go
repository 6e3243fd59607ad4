// Package metrics exports workspace lifecycle metrics in the Prometheus
// format. Recorder doubles as the workspace.Observer of a Manager.
package metrics

import (
	"sync"

	"github.com/pkg/errors"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/openclaw/clawspace/pkg/types/workspaces"
)

const namespace = "clawspace"

// Recorder holds the registered collectors
type Recorder struct {
	mu       sync.Mutex
	registry *prom.Registry

	created        *prom.CounterVec
	conversions    *prom.CounterVec
	sweepRemoved   prom.Counter
	sweepFailed    prom.Counter
	sweeps         prom.Counter
	sessions       *prom.GaugeVec
	diskUsed       prom.Gauge
	diskSaved      prom.Gauge
	efficiency     prom.Gauge
	lastReportUnix prom.Gauge
}

// NewRecorder creates the collectors and registers them on reg. A nil reg
// gets a private registry.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{
		registry: reg,
		created: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "workspaces_created_total",
			Help:      "Workspaces provisioned, by initial skills strategy",
		}, []string{"strategy"}),
		conversions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_conversions_total",
			Help:      "Skills strategy conversions",
		}, []string{"from", "to"}),
		sweeps: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Retention sweeps run",
		}),
		sweepRemoved: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_removed_total",
			Help:      "Workspaces deleted by retention sweeps",
		}),
		sweepFailed: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_failures_total",
			Help:      "Workspaces a retention sweep failed to delete",
		}),
		sessions: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Registered sessions by skills strategy",
		}, []string{"strategy"}),
		diskUsed: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "skills_disk_used_estimate_bytes",
			Help:      "Estimated bytes held by independent skills copies",
		}),
		diskSaved: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "skills_disk_saved_estimate_bytes",
			Help:      "Estimated bytes saved by symlinked or empty skills",
		}),
		efficiency: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "skills_disk_efficiency_percent",
			Help:      "Estimated share of a full copy per session that is saved",
		}),
		lastReportUnix: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_report_timestamp_seconds",
			Help:      "Unix time of the last disk report",
		}),
	}
	reg.MustRegister(r.created, r.conversions, r.sweeps, r.sweepRemoved, r.sweepFailed,
		r.sessions, r.diskUsed, r.diskSaved, r.efficiency, r.lastReportUnix)
	return r
}

// Registry returns the registry the collectors are registered on
func (r *Recorder) Registry() *prom.Registry {
	return r.registry
}

// SessionCreated counts a provisioned workspace
func (r *Recorder) SessionCreated(strategy workspaces.Strategy) {
	r.created.WithLabelValues(strategy.String()).Inc()
}

// StrategyConverted counts a strategy conversion
func (r *Recorder) StrategyConverted(from, to workspaces.Strategy) {
	r.conversions.WithLabelValues(from.String(), to.String()).Inc()
}

// SessionsSwept records the outcome of one sweep
func (r *Recorder) SessionsSwept(removed, failed int) {
	r.sweeps.Inc()
	r.sweepRemoved.Add(float64(removed))
	r.sweepFailed.Add(float64(failed))
}

// ObserveReport publishes a disk report as gauges
func (r *Recorder) ObserveReport(report workspaces.DiskReport, unixSeconds int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions.WithLabelValues(workspaces.StrategySymlink.String()).Set(float64(report.SymlinkedCount))
	r.sessions.WithLabelValues(workspaces.StrategyCopy.String()).Set(float64(report.CopiedCount))
	r.sessions.WithLabelValues(workspaces.StrategyNone.String()).Set(float64(report.EmptyCount))
	r.diskUsed.Set(float64(report.EstimatedDiskUsed))
	r.diskSaved.Set(float64(report.EstimatedDiskSaved))
	r.efficiency.Set(report.EfficiencyPercent)
	r.lastReportUnix.Set(float64(unixSeconds))
}

// WriteTextfile writes every metric to path in the text exposition format,
// for collection by the node exporter textfile collector
func (r *Recorder) WriteTextfile(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return errors.Wrapf(prom.WriteToTextfile(path, r.registry), "failed to write metrics to %s", path)
}
