package server

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/core"
	"github.com/joseph-ayodele/resume-parser/internal/repository"
	"github.com/joseph-ayodele/resume-parser/internal/services/parse"
)

// ParserServiceName is the fully qualified gRPC service name, also used for health.
const ParserServiceName = "resumeparser.v1.ParserService"

const (
	parseMethod    = "/" + ParserServiceName + "/Parse"
	listRunsMethod = "/" + ParserServiceName + "/ListRuns"
)

// ParserServer is served over gRPC with google.protobuf.Struct messages.
//
// Parse takes {"path"} or {"file_name", "content" (base64)}, plus an optional
// "timestamps", and answers the same document the HTTP API returns plus "run_id".
// A path must lie under one of the service's allowed directories.
// ListRuns takes optional {"status", "limit", "offset"} and answers {"runs": [...]}.
type ParserServer interface {
	Parse(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListRuns(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var ParserServiceDesc = grpc.ServiceDesc{
	ServiceName: ParserServiceName,
	HandlerType: (*ParserServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Parse", Handler: unaryHandler(parseMethod, ParserServer.Parse)},
		{MethodName: "ListRuns", Handler: unaryHandler(listRunsMethod, ParserServer.ListRuns)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "resumeparser/v1/parser.proto",
}

func unaryHandler(fullMethod string, call func(ParserServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ParserServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ParserServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ParserClient is the client side of ParserServiceDesc.
type ParserClient struct {
	cc grpc.ClientConnInterface
}

func NewParserClient(cc grpc.ClientConnInterface) *ParserClient {
	return &ParserClient{cc: cc}
}

func (c *ParserClient) Parse(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, parseMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ParserClient) ListRuns(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, listRunsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ParserService adapts the parse use case to ParserServer.
type ParserService struct {
	parser Parser
	logger *slog.Logger
	roots  []string
}

type ParserServiceOption func(*ParserService)

// WithAllowedDirs lets Parse read files by path from under dirs.
// Without it only uploaded content is accepted.
func WithAllowedDirs(dirs ...string) ParserServiceOption {
	return func(s *ParserService) {
		for _, d := range dirs {
			if strings.TrimSpace(d) == "" {
				continue
			}
			abs, err := filepath.Abs(d)
			if err != nil {
				continue
			}
			s.roots = append(s.roots, abs)
			if real, err := filepath.EvalSymlinks(abs); err == nil && real != abs {
				s.roots = append(s.roots, real)
			}
		}
	}
}

func NewParserService(parser Parser, logger *slog.Logger, opts ...ParserServiceOption) *ParserService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ParserService{parser: parser, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *ParserService) Parse(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	timestamps := stringField(req, "timestamps")

	var (
		out *parse.Outcome
		err error
	)
	switch content, path := stringField(req, "content"), stringField(req, "path"); {
	case content != "":
		name := stringField(req, "file_name")
		if name == "" {
			return nil, status.Error(codes.InvalidArgument, "file_name is required with content")
		}
		body, decErr := base64.StdEncoding.DecodeString(content)
		if decErr != nil {
			return nil, status.Error(codes.InvalidArgument, "content must be base64")
		}
		out, err = s.parser.ParseUpload(ctx, parse.UploadRequest{FileName: name, Body: bytes.NewReader(body), Timestamps: timestamps})
	case path != "":
		abs, pathErr := s.allowedPath(path)
		if pathErr != nil {
			return nil, pathErr
		}
		out, err = s.parser.ParseFile(ctx, abs, timestamps)
	default:
		return nil, status.Error(codes.InvalidArgument, "path or content is required")
	}
	if err != nil {
		return nil, err
	}

	resp, err := toStruct(out.Response)
	if err != nil {
		return nil, err
	}
	if out.RunID != uuid.Nil {
		resp.Fields["run_id"] = structpb.NewStringValue(out.RunID.String())
	}
	return resp, nil
}

// allowedPath cleans path and checks it, and its symlink target when it has one,
// against the allowed directories.
func (s *ParserService) allowedPath(path string) (string, error) {
	if len(s.roots) == 0 {
		return "", status.Error(codes.PermissionDenied, "parsing by path is disabled")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", status.Error(codes.InvalidArgument, "invalid path")
	}
	if !s.underRoot(abs) {
		return "", status.Errorf(codes.PermissionDenied, "path %q is outside the allowed directories", path)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil && !s.underRoot(real) {
		return "", status.Errorf(codes.PermissionDenied, "path %q is outside the allowed directories", path)
	}
	return abs, nil
}

func (s *ParserService) underRoot(path string) bool {
	for _, root := range s.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (s *ParserService) ListRuns(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runs, err := s.parser.ListRuns(ctx, repository.ListOptions{
		Status: stringField(req, "status"),
		Limit:  int(req.GetFields()["limit"].GetNumberValue()),
		Offset: int(req.GetFields()["offset"].GetNumberValue()),
	})
	if err != nil {
		return nil, err
	}
	if runs == nil {
		return &structpb.Struct{Fields: map[string]*structpb.Value{"runs": structpb.NewListValue(&structpb.ListValue{})}}, nil
	}
	return toStruct(map[string]any{"runs": runs})
}

// GRPCConfig sizes the server for base64 uploads and sets up bearer auth
// for the parser service. Health checks stay open.
type GRPCConfig struct {
	MaxRecvMsgSize int
	AuthEnable     bool
	AuthKey        string
}

// NewGRPCServer registers the parser service, health and reflection.
func NewGRPCServer(cfg GRPCConfig, svc ParserServer, logger *slog.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []grpc.ServerOption{grpc.ChainUnaryInterceptor(
		unaryInterceptor(logger),
		authInterceptor(cfg.AuthEnable, cfg.AuthKey),
	)}
	if cfg.MaxRecvMsgSize > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(cfg.MaxRecvMsgSize))
	}
	gs := grpc.NewServer(opts...)
	gs.RegisterService(&ParserServiceDesc, svc)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ParserServiceName, healthpb.HealthCheckResponse_SERVING)

	reflection.Register(gs)
	return gs, hs
}

// unaryInterceptor propagates x-request-id, logs each call and converts errors to status errors.
func unaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		rid := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(strings.ToLower(RequestIDHeader)); len(v) > 0 {
				rid = v[0]
			}
		}
		if rid == "" {
			rid = uuid.New().String()
		}
		ctx = common.WithRequestID(ctx, rid)

		resp, err := handler(ctx, req)
		err = grpcError(err)

		code := status.Code(err)
		attrs := []any{"req_id", rid, "method", info.FullMethod, "code", code.String(), "elapsed_ms", time.Since(start).Milliseconds()}
		if err != nil {
			logger.Warn("grpc.request", append(attrs, "error", err)...)
		} else {
			logger.Info("grpc.request", attrs...)
		}
		return resp, err
	}
}

// authInterceptor expects "authorization: Bearer <key>" metadata on parser calls.
func authInterceptor(enabled bool, key string) grpc.UnaryServerInterceptor {
	prefix := "/" + ParserServiceName + "/"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !enabled || !strings.HasPrefix(info.FullMethod, prefix) {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		vals := md.Get("authorization")
		if len(vals) == 0 || vals[0] == "" {
			return nil, status.Error(codes.Unauthenticated, "authorization metadata required")
		}
		token, ok := bearerToken(vals[0])
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "invalid authorization format")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(key)) != 1 {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		return handler(ctx, req)
	}
}

func grpcError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, core.ErrStageFailed) && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return status.Error(codes.Unavailable, err.Error())
	}
	return common.ToGRPCError(err)
}

func stringField(s *structpb.Struct, key string) string {
	return strings.TrimSpace(s.GetFields()[key].GetStringValue())
}

// toStruct goes through JSON so struct tags decide the field names.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return structpb.NewStruct(m)
}
