package models

// Pattern names the detector that raised an anomaly flag.
type Pattern string

const (
	PatternZScore        Pattern = "z-score"
	PatternLowSatellites Pattern = "low_satellites"
	PatternVoltageSag    Pattern = "voltage_sag"
	PatternHighVibration Pattern = "high_vibration"
)

// AnomalyFlag marks one suspicious sample. Index is the position inside the
// source sequence, not a timestamp.
type AnomalyFlag struct {
	Feature string  `json:"feature"`
	Index   int     `json:"index"`
	Value   float64 `json:"value"`
	Pattern Pattern `json:"pattern"`
	Hint    string  `json:"hint"`
}

// FlagSummary condenses all flags raised for one feature by one detector.
type FlagSummary struct {
	Feature    string  `json:"feature"`
	Pattern    Pattern `json:"pattern"`
	Count      int     `json:"count"`
	FirstIndex int     `json:"first_index"`
	LastIndex  int     `json:"last_index"`
	Peak       float64 `json:"peak"`
}
