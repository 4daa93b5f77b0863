package api

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/uavlog-analyst/internal/models"
	"github.com/miradorstack/uavlog-analyst/internal/utils"
)

// ChatRequestFromStruct maps a gRPC Struct payload into a domain ChatRequest.
func ChatRequestFromStruct(s *structpb.Struct) (models.ChatRequest, error) {
	var req models.ChatRequest
	if err := decodeStruct("api.ChatRequestFromStruct", s, &req); err != nil {
		return models.ChatRequest{}, err
	}
	return req, nil
}

// AnalysisRequestFromStruct maps a gRPC Struct payload into a domain AnalysisRequest.
func AnalysisRequestFromStruct(s *structpb.Struct) (models.AnalysisRequest, error) {
	var req models.AnalysisRequest
	if err := decodeStruct("api.AnalysisRequestFromStruct", s, &req); err != nil {
		return models.AnalysisRequest{}, err
	}
	return req, nil
}

// ChatResultToStruct converts a chat answer into the Struct shape of the JSON body.
func ChatResultToStruct(res models.ChatResult) (*structpb.Struct, error) {
	if res.SuggestedQuestions == nil {
		res.SuggestedQuestions = []string{}
	}
	return encodeStruct(res)
}

// AnalysisResultToStruct converts an analysis result into the Struct shape of the JSON body.
func AnalysisResultToStruct(res models.AnalysisResult) (*structpb.Struct, error) {
	return encodeStruct(res)
}

func decodeStruct(op string, s *structpb.Struct, out any) error {
	if s == nil {
		return utils.InvalidInput(op, "request is nil")
	}
	data, err := s.MarshalJSON()
	if err != nil {
		return utils.InvalidInput(op, "request is not valid JSON")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return utils.InvalidInput(op, fmt.Sprintf("malformed request: %v", err))
	}
	return nil
}

func encodeStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	out := &structpb.Struct{}
	if err := out.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}
