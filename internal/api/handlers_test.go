package api

import (
	"errors"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/uavlog-analyst/internal/models"
	"github.com/miradorstack/uavlog-analyst/internal/utils"
)

func TestChatRequestFromStruct(t *testing.T) {
	in, err := structpb.NewStruct(map[string]any{
		"question":   "max altitude?",
		"session_id": "abc",
		"telemetry": map[string]any{
			"messages": map[string]any{"GLOBAL_POSITION_INT": map[string]any{"alt": []any{1000.0}}},
		},
	})
	if err != nil {
		t.Fatalf("new struct: %v", err)
	}

	req, err := ChatRequestFromStruct(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Question != "max altitude?" || req.SessionID != "abc" {
		t.Fatalf("unexpected request %+v", req)
	}
	if _, ok := req.Telemetry["messages"]; !ok {
		t.Fatalf("expected telemetry to be mapped")
	}
}

func TestChatRequestFromStructNil(t *testing.T) {
	if _, err := ChatRequestFromStruct(nil); !errors.Is(err, utils.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestAnalysisRequestFromStructRejectsWrongType(t *testing.T) {
	in, err := structpb.NewStruct(map[string]any{"telemetry": "not-an-object"})
	if err != nil {
		t.Fatalf("new struct: %v", err)
	}
	if _, err := AnalysisRequestFromStruct(in); !errors.Is(err, utils.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestChatResultToStruct(t *testing.T) {
	out, err := ChatResultToStruct(models.ChatResult{Answer: "42 m", SessionID: "s", Route: models.RouteMetric})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fields := out.GetFields()
	if fields["answer"].GetStringValue() != "42 m" || fields["session_id"].GetStringValue() != "s" {
		t.Fatalf("unexpected struct %v", out)
	}
	if fields["suggested_questions"].GetListValue() == nil {
		t.Fatalf("expected empty list, not null")
	}
	if _, ok := fields["Route"]; ok {
		t.Fatalf("route must not be serialised")
	}
}

func TestAnalysisResultToStruct(t *testing.T) {
	out, err := AnalysisResultToStruct(models.AnalysisResult{
		Metrics:         models.MetricRecord{"altitude_max": 120},
		ExtractedSample: map[string]any{},
		Anomalies: []models.AnomalyFlag{{
			Feature: "gps.satellites_visible", Index: 3, Value: 4, Pattern: models.PatternLowSatellites,
		}},
		AnomalySummary: []models.FlagSummary{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	metrics := out.GetFields()["metrics"].GetStructValue().GetFields()
	if metrics["altitude_max"].GetNumberValue() != 120 {
		t.Fatalf("unexpected metrics %v", metrics)
	}
	flags := out.GetFields()["anomalies"].GetListValue().GetValues()
	if len(flags) != 1 || flags[0].GetStructValue().GetFields()["pattern"].GetStringValue() != "low_satellites" {
		t.Fatalf("unexpected flags %v", flags)
	}
}
