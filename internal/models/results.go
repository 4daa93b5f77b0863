package models

// MetricRecord is a flat table of derived flight metrics keyed by snake-case
// names such as altitude_max or battery_min_voltage_v. A missing key means the
// metric could not be computed; values are always finite.
type MetricRecord map[string]float64

// AnalysisResult is the outcome of a one-shot telemetry analysis.
type AnalysisResult struct {
	Metrics         MetricRecord   `json:"metrics"`
	ExtractedSample map[string]any `json:"extracted_sample"`
	Anomalies       []AnomalyFlag  `json:"anomalies"`
	AnomalySummary  []FlagSummary  `json:"anomaly_summary"`
}

// ChatResult is the answer to a single chat turn.
type ChatResult struct {
	Answer             string   `json:"answer"`
	SuggestedQuestions []string `json:"suggested_questions"`
	SessionID          string   `json:"session_id"`
	Route              Route    `json:"-"`
}

// Route records which prompt path served a chat turn.
type Route string

const (
	RouteAnomaly Route = "anomaly"
	RouteMetric  Route = "metric"
	RouteGeneral Route = "general"
)
