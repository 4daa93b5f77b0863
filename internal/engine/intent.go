package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// IntentPatterns lists the regular expressions that route a question.
type IntentPatterns struct {
	Anomaly   []string `yaml:"anomaly"`
	Telemetry []string `yaml:"telemetry"`
}

// DefaultIntentPatterns returns the built-in routing vocabulary.
func DefaultIntentPatterns() IntentPatterns {
	return IntentPatterns{
		Anomaly: []string{
			`anomal(ies|y)`, `issue`, `problem`, `error`,
			`fail`, `fault`, `lost`, `loss`, `glitch`,
			`drop`, `inconsisten(ce|t)`, `weird`, `abnormal`,
			`irregular`, `off-nominal`,
		},
		Telemetry: []string{
			`altitude`, `\balt\b`, `pitch`, `roll`, `yaw`, `gps`, `rc`, `flight`,
			`telemetry`, `mavlink`, `battery`, `groundspeed`, `descent`, `climb`, `satellite`,
		},
	}
}

// IntentClassifier decides whether a question asks about anomalies or
// about telemetry values. Matching is case-insensitive.
type IntentClassifier struct {
	anomaly   []*regexp.Regexp
	telemetry []*regexp.Regexp
}

// NewIntentClassifier compiles patterns. An empty list falls back to the
// corresponding default list.
func NewIntentClassifier(patterns IntentPatterns) (*IntentClassifier, error) {
	defaults := DefaultIntentPatterns()
	if len(patterns.Anomaly) == 0 {
		patterns.Anomaly = defaults.Anomaly
	}
	if len(patterns.Telemetry) == 0 {
		patterns.Telemetry = defaults.Telemetry
	}
	anomaly, err := compileAll(patterns.Anomaly)
	if err != nil {
		return nil, fmt.Errorf("anomaly patterns: %w", err)
	}
	tele, err := compileAll(patterns.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("telemetry patterns: %w", err)
	}
	return &IntentClassifier{anomaly: anomaly, telemetry: tele}, nil
}

// LoadIntentClassifier reads patterns from a YAML file. An empty path or a
// missing file yields the built-in defaults.
func LoadIntentClassifier(path string, logger *slog.Logger) (*IntentClassifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return NewIntentClassifier(IntentPatterns{})
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("intent pattern file not found, using defaults", slog.String("path", path))
			return NewIntentClassifier(IntentPatterns{})
		}
		return nil, err
	}
	var patterns IntentPatterns
	if err := yaml.Unmarshal(data, &patterns); err != nil {
		return nil, err
	}
	return NewIntentClassifier(patterns)
}

// IsAnomaly reports whether q looks like an anomaly or failure question.
func (c *IntentClassifier) IsAnomaly(q string) bool {
	return matchAny(c.anomaly, q)
}

// IsTelemetry reports whether q references flight telemetry terms.
func (c *IntentClassifier) IsTelemetry(q string) bool {
	return matchAny(c.telemetry, q)
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

func matchAny(patterns []*regexp.Regexp, q string) bool {
	for _, re := range patterns {
		if re.MatchString(q) {
			return true
		}
	}
	return false
}
