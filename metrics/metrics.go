package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"evstudy.dev/zmap/output"
)

// Collector exposes enrichment and grading counters. All methods are safe on
// a nil Collector.
type Collector struct {
	gatherer prometheus.Gatherer

	JunctionsTotal   *prometheus.CounterVec
	EdgesTotal       *prometheus.CounterVec
	PointsSampled    prometheus.Counter
	ElevationUnknown *prometheus.CounterVec
	MalformedTokens  prometheus.Counter
	TelemetrySamples prometheus.Counter
	GradeUnknown     *prometheus.CounterVec
	RemoteRequests   *prometheus.CounterVec
	RunDuration      *prometheus.GaugeVec
}

// NewCollector registers the metrics against reg. A nil reg uses a fresh
// registry.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	var err error
	c := &Collector{gatherer: gatherer}

	c.JunctionsTotal, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zmap_junctions_total",
		Help: "Junctions seen by the enricher by result.",
	}, []string{"result"}), "zmap_junctions_total")
	if err != nil {
		return nil, err
	}

	c.EdgesTotal, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zmap_edges_total",
		Help: "Edges seen by the enricher by result.",
	}, []string{"result"}), "zmap_edges_total")
	if err != nil {
		return nil, err
	}

	c.PointsSampled, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zmap_points_sampled_total",
		Help: "Elevation lookups performed.",
	}), "zmap_points_sampled_total")
	if err != nil {
		return nil, err
	}

	c.ElevationUnknown, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zmap_elevation_unknown_total",
		Help: "Elevation lookups without a value by reason.",
	}, []string{"reason"}), "zmap_elevation_unknown_total")
	if err != nil {
		return nil, err
	}

	c.MalformedTokens, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zmap_malformed_shape_tokens_total",
		Help: "Shape tokens skipped because they could not be parsed.",
	}), "zmap_malformed_shape_tokens_total")
	if err != nil {
		return nil, err
	}

	c.TelemetrySamples, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zmap_telemetry_samples_total",
		Help: "Telemetry observations graded.",
	}), "zmap_telemetry_samples_total")
	if err != nil {
		return nil, err
	}

	c.GradeUnknown, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zmap_grade_unknown_total",
		Help: "Telemetry samples without a grade by reason.",
	}, []string{"reason"}), "zmap_grade_unknown_total")
	if err != nil {
		return nil, err
	}

	c.RemoteRequests, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zmap_remote_elevation_requests_total",
		Help: "Requests made to the remote elevation service by outcome.",
	}, []string{"outcome"}), "zmap_remote_elevation_requests_total")
	if err != nil {
		return nil, err
	}

	c.RunDuration, err = registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "zmap_run_duration_seconds",
		Help: "Wall time of the last run by command.",
	}, []string{"command"}), "zmap_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

func (c *Collector) Junction(result string) {
	if c == nil || c.JunctionsTotal == nil {
		return
	}
	c.JunctionsTotal.WithLabelValues(result).Inc()
}

func (c *Collector) Edge(result string) {
	if c == nil || c.EdgesTotal == nil {
		return
	}
	c.EdgesTotal.WithLabelValues(result).Inc()
}

func (c *Collector) PointSampled() {
	if c == nil || c.PointsSampled == nil {
		return
	}
	c.PointsSampled.Inc()
}

func (c *Collector) Unknown(reason string) {
	if c == nil || c.ElevationUnknown == nil {
		return
	}
	c.ElevationUnknown.WithLabelValues(reason).Inc()
}

func (c *Collector) Malformed(count int) {
	if c == nil || c.MalformedTokens == nil || count <= 0 {
		return
	}
	c.MalformedTokens.Add(float64(count))
}

func (c *Collector) TelemetrySample() {
	if c == nil || c.TelemetrySamples == nil {
		return
	}
	c.TelemetrySamples.Inc()
}

func (c *Collector) GradeMissing(reason string) {
	if c == nil || c.GradeUnknown == nil {
		return
	}
	c.GradeUnknown.WithLabelValues(reason).Inc()
}

func (c *Collector) RemoteRequest(outcome string) {
	if c == nil || c.RemoteRequests == nil {
		return
	}
	c.RemoteRequests.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveRun(command string, d time.Duration) {
	if c == nil || c.RunDuration == nil {
		return
	}
	c.RunDuration.WithLabelValues(command).Set(d.Seconds())
}

// WriteTextfile writes the gathered metrics in the node exporter textfile
// format. prometheus.WriteToTextfile already writes through a temp file; the
// lock keeps concurrent runs from interleaving.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil || c.gatherer == nil || path == "" {
		return nil
	}
	fileLock, err := output.Lock(path)
	if err != nil {
		return err
	}
	defer output.Unlock(fileLock)
	return errors.Wrap(prometheus.WriteToTextfile(path, c.gatherer), "could not write metrics file")
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, errors.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, errors.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, errors.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
