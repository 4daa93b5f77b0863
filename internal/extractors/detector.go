package extractors

import (
	"fmt"
	"math"

	"github.com/miradorstack/uavlog-analyst/internal/models"
	"github.com/miradorstack/uavlog-analyst/internal/telemetry"
)

// Thresholds holds the tunable limits used by the detector.
type Thresholds struct {
	ZScore        float64 `yaml:"zScore"`
	MinZSamples   int     `yaml:"minZSamples"`
	MinSatellites float64 `yaml:"minSatellites"`
	MinCellVolts  float64 `yaml:"minCellVolts"`
	MaxVibration  float64 `yaml:"maxVibration"`
}

// DefaultThresholds returns the stock limits: z > 2.5 over at least five
// samples, fewer than 6 satellites, cells under 3.4 V, vibration over 30 m/s².
func DefaultThresholds() Thresholds {
	return Thresholds{
		ZScore:        2.5,
		MinZSamples:   5,
		MinSatellites: 6,
		MinCellVolts:  3.4,
		MaxVibration:  30,
	}
}

// zScoreEpsilon keeps a constant channel from dividing by zero.
const zScoreEpsilon = 1e-6

type zChannel struct {
	msg     string
	field   string
	feature string
}

var zChannels = []zChannel{
	{"ATTITUDE", "roll", "attitude.roll"},
	{"ATTITUDE", "pitch", "attitude.pitch"},
	{"ATTITUDE", "yaw", "attitude.yaw"},
	{"GLOBAL_POSITION_INT", "alt", "position.alt"},
	{"GLOBAL_POSITION_INT", "relative_alt", "position.relative_alt"},
	{"GLOBAL_POSITION_INT", "vx", "position.vx"},
	{"GLOBAL_POSITION_INT", "vy", "position.vy"},
	{"GLOBAL_POSITION_INT", "vz", "position.vz"},
}

// Detector scans known telemetry channels for statistical and threshold anomalies.
type Detector struct {
	thresholds Thresholds
}

// NewDetector builds a detector; zero-valued thresholds fall back to defaults.
func NewDetector(th Thresholds) *Detector {
	def := DefaultThresholds()
	if th.ZScore <= 0 {
		th.ZScore = def.ZScore
	}
	if th.MinZSamples <= 0 {
		th.MinZSamples = def.MinZSamples
	}
	if th.MinSatellites <= 0 {
		th.MinSatellites = def.MinSatellites
	}
	if th.MinCellVolts <= 0 {
		th.MinCellVolts = def.MinCellVolts
	}
	if th.MaxVibration <= 0 {
		th.MaxVibration = def.MaxVibration
	}
	return &Detector{thresholds: th}
}

// Thresholds returns the effective limits.
func (d *Detector) Thresholds() Thresholds {
	return d.thresholds
}

// Detect runs the z-score, satellite, voltage and vibration scans in that
// order. A scan whose message type is absent is skipped.
func (d *Detector) Detect(t *telemetry.Tree) []models.AnomalyFlag {
	flags := make([]models.AnomalyFlag, 0)
	for _, ch := range zChannels {
		series, ok := t.Series(ch.msg, ch.field)
		if !ok {
			continue
		}
		flags = append(flags, d.zScore(ch.feature, series)...)
	}
	flags = append(flags, d.lowSatellites(t)...)
	flags = append(flags, d.voltageSag(t)...)
	flags = append(flags, d.highVibration(t)...)
	return flags
}

// zScore flags samples whose |x-mean|/(std+eps) exceeds the threshold, using
// the population standard deviation over the finite samples.
func (d *Detector) zScore(feature string, series []float64) []models.AnomalyFlag {
	if len(series) < d.thresholds.MinZSamples {
		return nil
	}

	mean, n := 0.0, 0
	for _, v := range series {
		if telemetry.Finite(v) {
			mean += v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean /= float64(n)

	variance := 0.0
	for _, v := range series {
		if telemetry.Finite(v) {
			variance += math.Pow(v-mean, 2)
		}
	}
	variance /= float64(n)
	stdDev := math.Sqrt(variance) + zScoreEpsilon

	var flags []models.AnomalyFlag
	for idx, v := range series {
		if !telemetry.Finite(v) {
			continue
		}
		score := math.Abs(v-mean) / stdDev
		if score > d.thresholds.ZScore {
			flags = append(flags, models.AnomalyFlag{
				Feature: feature,
				Index:   idx,
				Value:   v,
				Pattern: models.PatternZScore,
				Hint:    fmt.Sprintf("Unusual %s value %.2f at index %d", feature, v, idx),
			})
		}
	}
	return flags
}

func (d *Detector) lowSatellites(t *telemetry.Tree) []models.AnomalyFlag {
	sats, ok := t.Series("GPS_RAW_INT", "satellites_visible")
	if !ok {
		return nil
	}
	var flags []models.AnomalyFlag
	for idx, v := range sats {
		if !telemetry.Finite(v) || v >= d.thresholds.MinSatellites {
			continue
		}
		flags = append(flags, models.AnomalyFlag{
			Feature: "gps.satellites_visible",
			Index:   idx,
			Value:   v,
			Pattern: models.PatternLowSatellites,
			Hint:    fmt.Sprintf("Only %g satellites at index %d; GPS may be unreliable", v, idx),
		})
	}
	return flags
}

// voltageSag flags every cell reading below the floor. Index is the sample
// position, so a multi-cell pack can raise several flags per index.
func (d *Detector) voltageSag(t *telemetry.Tree) []models.AnomalyFlag {
	rows, ok := t.Matrix("BATTERY_STATUS", "voltages")
	if !ok {
		return nil
	}
	var flags []models.AnomalyFlag
	for idx, cells := range rows {
		for _, mv := range cells {
			if !telemetry.Finite(mv) {
				continue
			}
			volts := mv / 1000.0
			if volts >= d.thresholds.MinCellVolts {
				continue
			}
			flags = append(flags, models.AnomalyFlag{
				Feature: "battery.voltage",
				Index:   idx,
				Value:   volts,
				Pattern: models.PatternVoltageSag,
				Hint:    fmt.Sprintf("Cell voltage dropped to %.2f V (index %d)", volts, idx),
			})
		}
	}
	return flags
}

// highVibration flags samples whose vibration vector norm exceeds the ceiling.
// Axes of unequal length are truncated to the shortest.
func (d *Detector) highVibration(t *telemetry.Tree) []models.AnomalyFlag {
	axes := make([][]float64, 0, 3)
	for _, field := range []string{"vibration_x", "vibration_y", "vibration_z"} {
		s, ok := t.Series("VIBRATION", field)
		if !ok {
			return nil
		}
		axes = append(axes, s)
	}
	n := len(axes[0])
	for _, a := range axes[1:] {
		if len(a) < n {
			n = len(a)
		}
	}

	var flags []models.AnomalyFlag
	for idx := 0; idx < n; idx++ {
		x, y, z := axes[0][idx], axes[1][idx], axes[2][idx]
		norm := math.Sqrt(x*x + y*y + z*z)
		if !telemetry.Finite(norm) || norm <= d.thresholds.MaxVibration {
			continue
		}
		flags = append(flags, models.AnomalyFlag{
			Feature: "vibration.rms",
			Index:   idx,
			Value:   norm,
			Pattern: models.PatternHighVibration,
			Hint:    fmt.Sprintf("High vibration RMS %.1f m/s² at index %d", norm, idx),
		})
	}
	return flags
}
