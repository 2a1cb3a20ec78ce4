package grpcapi

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	devAuth "github.com/MrEthical07/devAuth"
)

// TokenValidator is the part of *devAuth.Engine the service needs.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*devAuth.Session, error)
}

// Server implements [SessionServiceServer] on top of a validator.
type Server struct {
	validator TokenValidator
	logger    *slog.Logger
}

// NewServer returns a Server. A nil logger uses slog.Default.
func NewServer(validator TokenValidator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{validator: validator, logger: logger.With("module", "grpc_server")}
}

// ValidateToken answers Unauthenticated with a fixed message for every
// rejection.
func (s *Server) ValidateToken(ctx context.Context, token *wrapperspb.StringValue) (*structpb.Struct, error) {
	if token.GetValue() == "" {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			ctx = devAuth.WithClientIP(ctx, host)
		}
	}

	sess, err := s.validator.ValidateToken(ctx, token.GetValue())
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	out, err := sessionToStruct(sess)
	if err != nil {
		return nil, status.Error(codes.Internal, "encoding session")
	}
	return out, nil
}

// NewGRPCServer builds a *grpc.Server with the service and the logging
// interceptor registered.
func (s *Server) NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	srv := grpc.NewServer(opts...)
	RegisterSessionServiceServer(srv, s)
	return srv
}

// Run listens on addr and serves until ctx is done, then stops gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	listen, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := s.NewGRPCServer()

	go func() {
		<-ctx.Done()
		s.logger.Info("stopping gRPC server")
		srv.GracefulStop()
	}()

	s.logger.Info("starting gRPC server", "address", listen.Addr().String())
	return srv.Serve(listen)
}

func (s *Server) loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug("grpc call",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	)
	return resp, err
}

func sessionToStruct(sess *devAuth.Session) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"user_id":     sess.UserID,
		"username":    sess.Username,
		"device_id":   sess.DeviceID,
		"roles":       toList(sess.Roles),
		"permissions": toList(sess.Permissions),
		"issued_at":   float64(sess.IssuedAt),
		"expires_at":  float64(sess.ExpiresAt),
	})
}

func toList(vs []string) []interface{} {
	out := make([]interface{}, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}
