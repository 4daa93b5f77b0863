package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/uavlog-analyst/internal/config"
	"github.com/miradorstack/uavlog-analyst/internal/utils"
)

func TestGRPCCode(t *testing.T) {
	cases := map[codes.Code]error{
		codes.OK:                 nil,
		codes.InvalidArgument:    utils.InvalidInput("op", "bad"),
		codes.FailedPrecondition: utils.NotConfigured("op", "missing"),
		codes.DeadlineExceeded:   utils.Upstream("op", context.DeadlineExceeded),
		codes.Internal:           errors.New("boom"),
	}
	for want, err := range cases {
		if got := GRPCCode(err); got != want {
			t.Fatalf("GRPCCode(%v) = %s, want %s", err, got, want)
		}
	}
}

func TestGRPCAnalystMapsErrors(t *testing.T) {
	g := NewGRPCAnalyst(nil, &analystStub{})
	in, _ := structpb.NewStruct(map[string]any{"question": ""})

	_, err := g.Chat(context.Background(), in)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}

	unconfigured := NewGRPCAnalyst(nil, nil)
	if _, err := unconfigured.Analyze(context.Background(), in); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected failed precondition, got %v", err)
	}
}

func TestGRPCServerRoundTrip(t *testing.T) {
	srv, err := NewServer(config.ServerConfig{Address: "127.0.0.1:0", GracefulTimeout: time.Second}, NewGRPCAnalyst(nil, &analystStub{}))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	go func() { _ = srv.Start() }()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), srv.GracefulTimeout())
		defer cancel()
		srv.Shutdown(ctx)
	}()

	conn, err := grpc.NewClient(srv.Address(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := NewAnalystClient(conn)
	in, _ := structpb.NewStruct(map[string]any{"question": "max altitude?"})
	out, err := client.Chat(ctx, in)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if out.GetFields()["answer"].GetStringValue() != "Max altitude was 120 m." {
		t.Fatalf("unexpected answer %v", out)
	}

	empty, _ := structpb.NewStruct(map[string]any{})
	if _, err := client.Analyze(ctx, empty); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}

	health, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: AnalystServiceName})
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %s", health.GetStatus())
	}
}
