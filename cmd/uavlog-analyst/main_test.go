package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/miradorstack/uavlog-analyst/internal/models"
)

const flightLog = `{
  "messages": {
    "GLOBAL_POSITION_INT": {
      "time_boot_ms": [0, 1000, 2000, 3000],
      "alt": [100000, 110000, 120000, 115000],
      "vx": [100, 100, 100, 100],
      "vy": [0, 0, 0, 0],
      "vz": [0, 0, 0, 0]
    },
    "GPS_RAW_INT": {"satellites_visible": [9, 9, 4, 9]}
  }
}`

func writeLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flight.json")
	if err := os.WriteFile(path, []byte(flightLog), 0644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("UAVLOG_CONFIG", "")
	t.Setenv("UAVLOG_INTENTS_PATH", filepath.Join(t.TempDir(), "none.yaml"))
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestAnalyzeJSON(t *testing.T) {
	out, err := runCLI(t, "analyze", "--telemetry", writeLog(t), "--format", "json")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var res models.AnalysisResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if res.Metrics["altitude_max"] != 120 {
		t.Fatalf("unexpected metrics %v", res.Metrics)
	}
	if res.Metrics["flight_duration_s"] != 3 {
		t.Fatalf("expected 3 s flight, got %v", res.Metrics["flight_duration_s"])
	}
	if len(res.Anomalies) != 1 || res.Anomalies[0].Pattern != models.PatternLowSatellites || res.Anomalies[0].Index != 2 {
		t.Fatalf("unexpected flags %+v", res.Anomalies)
	}
}

func TestAnalyzeText(t *testing.T) {
	out, err := runCLI(t, "analyze", "-t", writeLog(t), "--no-color")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	for _, want := range []string{"Flight metrics", "altitude_max", "Anomaly flags (1)", "low_satellites", "flight_duration"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestAnalyzeAltitudeWindow(t *testing.T) {
	out, err := runCLI(t, "analyze", "-t", writeLog(t), "--format", "json", "--window", "1:2")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var res models.AnalysisResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got := res.Metrics[windowMetric]; got != 115 {
		t.Fatalf("expected mean of 110 and 120 m, got %v", got)
	}

	out, err = runCLI(t, "analyze", "-t", writeLog(t), "--format", "json", "--window", "50:60")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if strings.Contains(out, windowMetric) {
		t.Fatalf("empty window should not add a metric:\n%s", out)
	}

	for _, bad := range []string{"12", "a:2", "5:1"} {
		if _, err := runCLI(t, "analyze", "-t", writeLog(t), "--window", bad); err == nil {
			t.Fatalf("expected error for window %q", bad)
		}
	}
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	if _, err := runCLI(t, "analyze", "-t", writeLog(t), "--format", "xml"); err == nil {
		t.Fatalf("expected format error")
	}
	if _, err := runCLI(t, "analyze"); err == nil {
		t.Fatalf("expected missing --telemetry error")
	}
	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`[1,2]`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := runCLI(t, "analyze", "-t", bad); err == nil {
		t.Fatalf("expected error for non-object telemetry")
	}
}

func TestAnalyzeRankRequiresCredentials(t *testing.T) {
	t.Setenv("COHERE_API_KEY", "")
	t.Setenv("UAVLOG_EMBEDDINGS_API_KEY", "")
	if _, err := runCLI(t, "analyze", "-t", writeLog(t), "--rank"); err == nil {
		t.Fatalf("expected not configured error without an embeddings key")
	}
}
