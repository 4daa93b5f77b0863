package api

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/uavlog-analyst/internal/utils"
)

// AnalystServiceName is the fully-qualified gRPC service name.
const AnalystServiceName = "uavlog.v1.Analyst"

const (
	chatMethod    = "/" + AnalystServiceName + "/Chat"
	analyzeMethod = "/" + AnalystServiceName + "/Analyze"
)

// AnalystServer is the server API for the Analyst service. Payloads are
// google.protobuf.Struct values mirroring the JSON request and response bodies.
type AnalystServer interface {
	Chat(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Analyze(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterAnalystServer registers srv with s.
func RegisterAnalystServer(s grpc.ServiceRegistrar, srv AnalystServer) {
	s.RegisterService(&analystServiceDesc, srv)
}

var analystServiceDesc = grpc.ServiceDesc{
	ServiceName: AnalystServiceName,
	HandlerType: (*AnalystServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Chat", Handler: chatHandler},
		{MethodName: "Analyze", Handler: analyzeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "uavlog/v1/analyst.proto",
}

func chatHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnalystServer).Chat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: chatMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AnalystServer).Chat(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func analyzeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnalystServer).Analyze(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: analyzeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AnalystServer).Analyze(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// AnalystClient is the client API for the Analyst service.
type AnalystClient struct {
	cc grpc.ClientConnInterface
}

// NewAnalystClient wraps an established connection.
func NewAnalystClient(cc grpc.ClientConnInterface) *AnalystClient {
	return &AnalystClient{cc: cc}
}

// Chat invokes Analyst/Chat.
func (c *AnalystClient) Chat(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, chatMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Analyze invokes Analyst/Analyze.
func (c *AnalystClient) Analyze(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, analyzeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GRPCAnalyst adapts an Analyst to the AnalystServer API.
type GRPCAnalyst struct {
	logger  *slog.Logger
	service Analyst
}

// NewGRPCAnalyst constructs the gRPC facade.
func NewGRPCAnalyst(logger *slog.Logger, service Analyst) *GRPCAnalyst {
	if logger == nil {
		logger = slog.Default()
	}
	return &GRPCAnalyst{logger: logger, service: service}
}

// Chat answers one question.
func (g *GRPCAnalyst) Chat(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if g.service == nil {
		return nil, status.Error(codes.FailedPrecondition, "service not configured")
	}
	req, err := ChatRequestFromStruct(in)
	if err != nil {
		return nil, g.toStatus(err)
	}
	res, err := g.service.Chat(ctx, req)
	if err != nil {
		return nil, g.toStatus(err)
	}
	out, err := ChatResultToStruct(res)
	if err != nil {
		return nil, g.toStatus(err)
	}
	return out, nil
}

// Analyze computes metrics, flags and a relevant field sample.
func (g *GRPCAnalyst) Analyze(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if g.service == nil {
		return nil, status.Error(codes.FailedPrecondition, "service not configured")
	}
	req, err := AnalysisRequestFromStruct(in)
	if err != nil {
		return nil, g.toStatus(err)
	}
	res, err := g.service.Analyze(ctx, req)
	if err != nil {
		return nil, g.toStatus(err)
	}
	out, err := AnalysisResultToStruct(res)
	if err != nil {
		return nil, g.toStatus(err)
	}
	return out, nil
}

func (g *GRPCAnalyst) toStatus(err error) error {
	code := GRPCCode(err)
	if code == codes.Internal {
		g.logger.Error("grpc request failed", slog.Any("error", err))
	}
	return status.Error(code, utils.PublicMessage(err))
}

// GRPCCode maps a service error to a status code.
func GRPCCode(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, utils.ErrInvalidInput):
		return codes.InvalidArgument
	case errors.Is(err, utils.ErrNotConfigured):
		return codes.FailedPrecondition
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}
