// Package flight derives flight-level metrics from a parsed telemetry log,
// normalizing MAVLink units (ms, cm/s, mV, cA, rad) to SI units.
//
// Every function fails soft: missing channels, empty sequences and shape
// mismatches yield ok=false instead of an error or panic.
package flight

import (
	"math"

	"github.com/miradorstack/uavlog-analyst/internal/telemetry"
)

// MAVLink message and field names used by the metric library.
const (
	MsgSystemTime     = "SYSTEM_TIME"
	MsgGlobalPosition = "GLOBAL_POSITION_INT"
	MsgBatteryStatus  = "BATTERY_STATUS"
	MsgGPSRaw         = "GPS_RAW_INT"
	MsgAttitude       = "ATTITUDE"
	MsgVibration      = "VIBRATION"

	FieldTimeBootMS = "time_boot_ms"
)

// AltitudeDivisor scales GLOBAL_POSITION_INT.alt to metres. MAVLink documents
// the field in millimetres; the divisor is kept at 1000 deliberately and is
// pinned by tests.
const AltitudeDivisor = 1000.0

const (
	millisPerSecond     = 1000.0
	centimetresPerMetre = 100.0
	millivoltsPerVolt   = 1000.0
	centiampsPerAmpere  = 100.0
	degreesPerRadian    = 180.0 / math.Pi
)

// Stats is a (min, max, mean) summary.
type Stats struct {
	Min  float64
	Max  float64
	Mean float64
}

// AxisStats is the mean and population standard deviation of one attitude axis, in degrees.
type AxisStats struct {
	Mean float64
	Std  float64
}

// Battery holds the lowest cell voltage (V) and highest current draw (A) seen.
type Battery struct {
	MinVoltage float64
	MaxCurrent float64
}

// TimeVector returns seconds since boot, preferring SYSTEM_TIME and falling
// back to GLOBAL_POSITION_INT.
func TimeVector(t *telemetry.Tree) ([]float64, bool) {
	for _, msg := range []string{MsgSystemTime, MsgGlobalPosition} {
		if ms, ok := t.Series(msg, FieldTimeBootMS); ok {
			return scale(ms, 1/millisPerSecond), true
		}
	}
	return nil, false
}

// FlightDuration is the span of the time vector in seconds.
func FlightDuration(t *telemetry.Tree) (float64, bool) {
	ts, ok := TimeVector(t)
	if !ok || len(ts) < 2 {
		return 0, false
	}
	return ts[len(ts)-1] - ts[0], true
}

// AltitudeVector returns GLOBAL_POSITION_INT.alt in metres.
func AltitudeVector(t *telemetry.Tree) ([]float64, bool) {
	alt, ok := t.Series(MsgGlobalPosition, "alt")
	if !ok {
		return nil, false
	}
	return scale(alt, 1/AltitudeDivisor), true
}

// AltitudeStats summarizes the altitude vector.
func AltitudeStats(t *telemetry.Tree) (Stats, bool) {
	alt, ok := AltitudeVector(t)
	if !ok {
		return Stats{}, false
	}
	return summarize(alt)
}

// AverageAltitudeWindow is the mean altitude over samples with start <= t <= end seconds.
func AverageAltitudeWindow(t *telemetry.Tree, start, end float64) (float64, bool) {
	alt, ok := AltitudeVector(t)
	if !ok {
		return 0, false
	}
	ts, ok := TimeVector(t)
	if !ok || len(ts) != len(alt) {
		return 0, false
	}
	var sum float64
	var n int
	for i, sec := range ts {
		if sec >= start && sec <= end {
			sum += alt[i]
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// VerticalSpeedVector is the finite difference of altitude over time, in m/s.
func VerticalSpeedVector(t *telemetry.Tree) ([]float64, bool) {
	alt, ok := AltitudeVector(t)
	if !ok || len(alt) < 2 {
		return nil, false
	}
	ts, ok := TimeVector(t)
	if !ok || len(ts) != len(alt) {
		return nil, false
	}
	out := make([]float64, len(alt)-1)
	for i := 1; i < len(alt); i++ {
		out[i-1] = (alt[i] - alt[i-1]) / (ts[i] - ts[i-1])
	}
	return out, true
}

// MaxClimbRate is the largest finite vertical speed.
func MaxClimbRate(t *telemetry.Tree) (float64, bool) {
	vs, ok := VerticalSpeedVector(t)
	if !ok {
		return 0, false
	}
	s, ok := summarize(vs)
	return s.Max, ok
}

// MaxDescentRate is the smallest (most negative) finite vertical speed.
func MaxDescentRate(t *telemetry.Tree) (float64, bool) {
	vs, ok := VerticalSpeedVector(t)
	if !ok {
		return 0, false
	}
	s, ok := summarize(vs)
	return s.Min, ok
}

// VelocityVectors returns GLOBAL_POSITION_INT vx, vy, vz in m/s, truncated to
// the shortest of the three.
func VelocityVectors(t *telemetry.Tree) (vx, vy, vz []float64, ok bool) {
	axes := make([][]float64, 0, 3)
	for _, field := range []string{"vx", "vy", "vz"} {
		v, found := t.Series(MsgGlobalPosition, field)
		if !found {
			return nil, nil, nil, false
		}
		axes = append(axes, scale(v, 1/centimetresPerMetre))
	}
	n := shortest(axes...)
	return axes[0][:n], axes[1][:n], axes[2][:n], true
}

// GroundspeedVector is the horizontal speed hypot(vx, vy) in m/s.
func GroundspeedVector(t *telemetry.Tree) ([]float64, bool) {
	vx, vy, _, ok := VelocityVectors(t)
	if !ok {
		return nil, false
	}
	out := make([]float64, len(vx))
	for i := range vx {
		out[i] = math.Hypot(vx[i], vy[i])
	}
	return out, true
}

// GroundspeedStats summarizes the groundspeed vector.
func GroundspeedStats(t *telemetry.Tree) (Stats, bool) {
	gs, ok := GroundspeedVector(t)
	if !ok {
		return Stats{}, false
	}
	return summarize(gs)
}

// DistanceTravelled2D integrates groundspeed over time with a left Riemann sum.
func DistanceTravelled2D(t *telemetry.Tree) (float64, bool) {
	gs, ok := GroundspeedVector(t)
	if !ok {
		return 0, false
	}
	return integrate(t, gs)
}

// DistanceTravelled3D integrates the full velocity norm over time.
func DistanceTravelled3D(t *telemetry.Tree) (float64, bool) {
	vx, vy, vz, ok := VelocityVectors(t)
	if !ok {
		return 0, false
	}
	speed := make([]float64, len(vx))
	for i := range vx {
		speed[i] = math.Sqrt(vx[i]*vx[i] + vy[i]*vy[i] + vz[i]*vz[i])
	}
	return integrate(t, speed)
}

// BatteryStats reads per-cell BATTERY_STATUS.voltages (mV) and current_battery (cA).
// The current is NaN when that channel is absent or holds no numbers.
func BatteryStats(t *telemetry.Tree) (Battery, bool) {
	rows, ok := t.Matrix(MsgBatteryStatus, "voltages")
	if !ok {
		return Battery{}, false
	}
	volts, ok := summarize(scale(telemetry.Flatten(rows), 1/millivoltsPerVolt))
	if !ok {
		return Battery{}, false
	}
	out := Battery{MinVoltage: volts.Min, MaxCurrent: math.NaN()}
	if !t.HasField(MsgBatteryStatus, "current_battery") {
		return out, true
	}
	current, _ := t.Series(MsgBatteryStatus, "current_battery")
	if amps, ok := summarize(scale(current, 1/centiampsPerAmpere)); ok {
		out.MaxCurrent = amps.Max
	}
	return out, true
}

// SatelliteVisibilityStats summarizes GPS_RAW_INT.satellites_visible.
func SatelliteVisibilityStats(t *telemetry.Tree) (Stats, bool) {
	sats, ok := t.Series(MsgGPSRaw, "satellites_visible")
	if !ok {
		return Stats{}, false
	}
	return summarize(sats)
}

// AttitudeStats returns per-axis mean and standard deviation in degrees for
// whichever of roll, pitch and yaw are present.
func AttitudeStats(t *telemetry.Tree) (map[string]AxisStats, bool) {
	if _, ok := t.Message(MsgAttitude); !ok {
		return nil, false
	}
	out := make(map[string]AxisStats, 3)
	for _, axis := range []string{"roll", "pitch", "yaw"} {
		rad, ok := t.Series(MsgAttitude, axis)
		if !ok {
			continue
		}
		mean, std, ok := meanStd(scale(rad, degreesPerRadian))
		if !ok {
			continue
		}
		out[axis] = AxisStats{Mean: mean, Std: std}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func integrate(t *telemetry.Tree, speed []float64) (float64, bool) {
	ts, ok := TimeVector(t)
	if !ok || len(ts) != len(speed) || len(ts) == 0 {
		return 0, false
	}
	var dist float64
	for i := 1; i < len(ts); i++ {
		dist += speed[i] * (ts[i] - ts[i-1])
	}
	return dist, true
}

func scale(values []float64, factor float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * factor
	}
	return out
}

// summarize ignores non-finite entries; ok is false when none remain.
func summarize(values []float64) (Stats, bool) {
	s := Stats{Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	var n int
	for _, v := range values {
		if !telemetry.Finite(v) {
			continue
		}
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
		sum += v
		n++
	}
	if n == 0 {
		return Stats{}, false
	}
	s.Mean = sum / float64(n)
	return s, true
}

// meanStd uses the population standard deviation and propagates NaN samples,
// which the aggregator then drops.
func meanStd(values []float64) (mean, std float64, ok bool) {
	if len(values) == 0 {
		return 0, 0, false
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance), true
}

func shortest(series ...[]float64) int {
	n := math.MaxInt
	for _, s := range series {
		if len(s) < n {
			n = len(s)
		}
	}
	if n == math.MaxInt {
		return 0
	}
	return n
}
