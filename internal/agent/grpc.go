package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

// GrpcName is the provider name for the remote persona service.
const GrpcName = "grpc"

// GenerateReplyMethod is the full method name served by the persona service.
// Requests and responses are google.protobuf.Struct documents.
const GenerateReplyMethod = "/decoy.persona.v1.PersonaService/GenerateReply"

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
	errReplyResponse            = errors.New("persona service returned error")
)

// GrpcConfig holds configuration for the gRPC generator.
type GrpcConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultGrpcConfig returns default configuration for addr.
func DefaultGrpcConfig(addr string) GrpcConfig {
	return GrpcConfig{
		Address:          addr,
		ConnectTimeout:   5 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// GrpcGenerator asks a remote persona service for replies.
type GrpcGenerator struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
	addr   string
	logger *slog.Logger
}

// NewGrpcGenerator connects to the persona service and waits until the
// connection is ready so bad endpoints fail at startup.
func NewGrpcGenerator(cfg GrpcConfig, logger *slog.Logger, opts ...grpc.DialOption) (*GrpcGenerator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("grpc address: %w", ErrNotConfigured)
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	}, opts...)

	conn, err := grpc.NewClient(cfg.Address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to persona service at %s: %w", cfg.Address, err)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("persona service at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to persona service", "address", cfg.Address)

	return &GrpcGenerator{
		conn:   conn,
		health: healthpb.NewHealthClient(conn),
		addr:   cfg.Address,
		logger: logger,
	}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Name implements Generator.
func (g *GrpcGenerator) Name() string { return GrpcName }

// Generate implements Generator.
func (g *GrpcGenerator) Generate(ctx context.Context, req ReplyRequest) (string, error) {
	in, err := requestStruct(req)
	if err != nil {
		return "", fmt.Errorf("encode reply request: %w", err)
	}

	out := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, GenerateReplyMethod, in, out); err != nil {
		return "", fmt.Errorf("generate reply rpc: %w", err)
	}

	fields := out.GetFields()
	if msg := fields["error"].GetStringValue(); msg != "" {
		return "", fmt.Errorf("%w: %s", errReplyResponse, msg)
	}
	reply := fields["reply"].GetStringValue()
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

// Health checks the persona service through the standard health protocol.
func (g *GrpcGenerator) Health(ctx context.Context) error {
	resp, err := g.health.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("health check failed: status %s", resp.GetStatus())
	}
	return nil
}

// Close closes the gRPC connection.
func (g *GrpcGenerator) Close() {
	if g.conn != nil {
		if err := g.conn.Close(); err != nil {
			g.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}

func requestStruct(req ReplyRequest) (*structpb.Struct, error) {
	history := make([]any, 0, len(req.History))
	for _, m := range recent(req.History) {
		history = append(history, map[string]any{
			"role": m.Role,
			"text": m.Text,
		})
	}
	return structpb.NewStruct(map[string]any{
		"session_id":    req.SessionID,
		"turn_number":   req.TurnNumber,
		"persona":       req.Persona,
		"language":      req.Language,
		"emotion":       req.Emotion,
		"message":       req.Message,
		"system_prompt": SystemPrompt(req),
		"history":       history,
	})
}
