package flight

import (
	"fmt"
	"log/slog"

	"github.com/miradorstack/uavlog-analyst/internal/models"
	"github.com/miradorstack/uavlog-analyst/internal/telemetry"
)

// Value is a metric result that knows how to flatten itself into a record.
type Value interface {
	flatten(name string, into models.MetricRecord)
}

// Scalar is a single-number metric stored under its own name.
type Scalar float64

func (v Scalar) flatten(name string, into models.MetricRecord) {
	put(into, name, float64(v))
}

// statsValue flattens a *_stats metric into {base}_min, {base}_max, {base}_mean.
type statsValue struct {
	base  string
	stats Stats
}

func (v statsValue) flatten(_ string, into models.MetricRecord) {
	put(into, v.base+"_min", v.stats.Min)
	put(into, v.base+"_max", v.stats.Max)
	put(into, v.base+"_mean", v.stats.Mean)
}

func (v Battery) flatten(_ string, into models.MetricRecord) {
	put(into, "battery_min_voltage_v", v.MinVoltage)
	put(into, "battery_max_current_a", v.MaxCurrent)
}

// attitudeValue flattens per-axis stats into {axis}_mean_deg and {axis}_std_deg.
type attitudeValue map[string]AxisStats

func (v attitudeValue) flatten(_ string, into models.MetricRecord) {
	for axis, s := range v {
		put(into, axis+"_mean_deg", s.Mean)
		put(into, axis+"_std_deg", s.Std)
	}
}

func put(into models.MetricRecord, key string, v float64) {
	if telemetry.Finite(v) {
		into[key] = v
	}
}

// Metric is one entry of the catalogue run by ComputeMetrics.
type Metric struct {
	Name    string
	Compute func(*telemetry.Tree) (Value, bool)
}

func scalarMetric(name string, fn func(*telemetry.Tree) (float64, bool)) Metric {
	return Metric{Name: name, Compute: func(t *telemetry.Tree) (Value, bool) {
		v, ok := fn(t)
		return Scalar(v), ok
	}}
}

func statsMetric(base string, fn func(*telemetry.Tree) (Stats, bool)) Metric {
	return Metric{Name: base + "_stats", Compute: func(t *telemetry.Tree) (Value, bool) {
		s, ok := fn(t)
		return statsValue{base: base, stats: s}, ok
	}}
}

// Catalogue lists the metrics computed for every flight log, in order.
func Catalogue() []Metric {
	return []Metric{
		scalarMetric("flight_duration_s", FlightDuration),
		statsMetric("altitude", AltitudeStats),
		scalarMetric("max_climb_rate_mps", MaxClimbRate),
		scalarMetric("max_descent_rate_mps", MaxDescentRate),
		statsMetric("groundspeed", GroundspeedStats),
		scalarMetric("distance_2d_m", DistanceTravelled2D),
		scalarMetric("distance_3d_m", DistanceTravelled3D),
		{Name: "battery_stats", Compute: func(t *telemetry.Tree) (Value, bool) { return BatteryStats(t) }},
		statsMetric("satellite_visibility", SatelliteVisibilityStats),
		{Name: "attitude_stats", Compute: func(t *telemetry.Tree) (Value, bool) {
			axes, ok := AttitudeStats(t)
			return attitudeValue(axes), ok
		}},
	}
}

// Aggregator runs a metric catalogue and flattens the results.
type Aggregator struct {
	metrics []Metric
	logger  *slog.Logger
}

// NewAggregator uses the default catalogue when metrics is empty.
func NewAggregator(logger *slog.Logger, metrics ...Metric) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if len(metrics) == 0 {
		metrics = Catalogue()
	}
	return &Aggregator{metrics: metrics, logger: logger}
}

// Compute runs every metric. A metric that panics or reports ok=false is
// omitted without affecting the others; Compute never fails.
func (a *Aggregator) Compute(t *telemetry.Tree) models.MetricRecord {
	record := make(models.MetricRecord)
	for _, m := range a.metrics {
		v, ok, err := a.run(m, t)
		if err != nil {
			a.logger.Debug("metric skipped", slog.String("metric", m.Name), slog.Any("error", err))
			continue
		}
		if !ok || v == nil {
			continue
		}
		v.flatten(m.Name, record)
	}
	return record
}

func (a *Aggregator) run(m Metric, t *telemetry.Tree) (v Value, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("metric %s panicked: %v", m.Name, r)
		}
	}()
	v, ok = m.Compute(t)
	return v, ok, nil
}

// ComputeMetrics runs the default catalogue.
func ComputeMetrics(t *telemetry.Tree) models.MetricRecord {
	return NewAggregator(nil).Compute(t)
}
