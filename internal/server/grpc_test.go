package server

import (
	"context"
	"encoding/base64"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/resume-parser/constants"
	"github.com/joseph-ayodele/resume-parser/internal/core"
	"github.com/joseph-ayodele/resume-parser/internal/entity"
)

func dialParser(t *testing.T, p *fakeParser) *grpc.ClientConn {
	t.Helper()
	return dialGRPC(t, GRPCConfig{}, NewParserService(p, nil, WithAllowedDirs("/inbox")))
}

func dialGRPC(t *testing.T, cfg GRPCConfig, svc *ParserService) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs, _ := NewGRPCServer(cfg, svc, nil)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestGRPCParseByPath(t *testing.T) {
	p := &fakeParser{}
	client := NewParserClient(dialParser(t, p))

	resp, err := client.Parse(context.Background(), mustStruct(t, map[string]any{
		"path":       "/inbox/john.pdf",
		"timestamps": "hms",
	}))
	require.NoError(t, err)

	assert.Equal(t, "/inbox/john.pdf", p.gotPath)
	assert.Equal(t, testRunID.String(), resp.Fields["run_id"].GetStringValue())
	assert.Equal(t, "hms", resp.Fields["TimeStamps"].GetStringValue())
	times := resp.Fields["ProcessTimes"].GetStructValue().GetFields()
	assert.Equal(t, "00:00:01.500", times["total"].GetStringValue())
	names := resp.Fields["ParserResults"].GetStructValue().GetFields()["Name"].GetListValue().GetValues()
	require.Len(t, names, 1)
	assert.Equal(t, "John Doe", names[0].GetStringValue())
}

func TestGRPCParseByContent(t *testing.T) {
	p := &fakeParser{}
	client := NewParserClient(dialParser(t, p))

	_, err := client.Parse(context.Background(), mustStruct(t, map[string]any{
		"file_name": "john.txt",
		"content":   base64.StdEncoding.EncodeToString([]byte("John Doe\njohn@example.com")),
	}))
	require.NoError(t, err)
	assert.Equal(t, "john.txt", p.gotName)
	assert.Equal(t, "John Doe\njohn@example.com", string(p.gotBody))
}

func TestGRPCParseErrors(t *testing.T) {
	tests := []struct {
		name string
		req  map[string]any
		err  error
		want codes.Code
	}{
		{"empty request", map[string]any{}, nil, codes.InvalidArgument},
		{"content without name", map[string]any{"content": "aGk="}, nil, codes.InvalidArgument},
		{"bad base64", map[string]any{"file_name": "a.txt", "content": "%%%"}, nil, codes.InvalidArgument},
		{"stage failure", map[string]any{"path": "/inbox/x.pdf"}, &core.StageError{Stage: constants.StageExtraction, Err: errors.New("llm down")}, codes.Unavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewParserClient(dialParser(t, &fakeParser{err: tt.err}))
			_, err := client.Parse(context.Background(), mustStruct(t, tt.req))
			require.Error(t, err)
			assert.Equal(t, tt.want, status.Code(err))
		})
	}
}

func TestGRPCListRunsAndHealth(t *testing.T) {
	p := &fakeParser{runs: []*entity.ParseRun{{ID: testRunID, FileName: "john.pdf", Status: "SUCCEEDED"}}}
	conn := dialParser(t, p)

	resp, err := NewParserClient(conn).ListRuns(context.Background(), mustStruct(t, map[string]any{"limit": 3}))
	require.NoError(t, err)
	assert.Equal(t, 3, p.gotOpts.Limit)
	runs := resp.Fields["runs"].GetListValue().GetValues()
	require.Len(t, runs, 1)
	assert.Equal(t, "john.pdf", runs[0].GetStructValue().GetFields()["file_name"].GetStringValue())

	hc, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ParserServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, hc.GetStatus())
}

func TestGRPCAuth(t *testing.T) {
	p := &fakeParser{}
	conn := dialGRPC(t, GRPCConfig{AuthEnable: true, AuthKey: "secret"}, NewParserService(p, nil))
	client := NewParserClient(conn)
	req := mustStruct(t, map[string]any{
		"file_name": "john.txt",
		"content":   base64.StdEncoding.EncodeToString([]byte("John Doe")),
	})

	tests := []struct {
		name   string
		header string
		want   codes.Code
	}{
		{"missing", "", codes.Unauthenticated},
		{"wrong scheme", "Basic secret", codes.Unauthenticated},
		{"no token", "Bearer", codes.Unauthenticated},
		{"wrong token", "Bearer nope", codes.Unauthenticated},
		{"valid", "Bearer secret", codes.OK},
		{"scheme is case-insensitive", "bearer secret", codes.OK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.header != "" {
				ctx = metadata.AppendToOutgoingContext(ctx, "authorization", tt.header)
			}
			_, err := client.Parse(ctx, req)
			assert.Equal(t, tt.want, status.Code(err))

			_, err = client.ListRuns(ctx, mustStruct(t, map[string]any{}))
			assert.Equal(t, tt.want, status.Code(err))
		})
	}

	// health checks need no key
	hc, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ParserServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, hc.GetStatus())
}

func TestGRPCParseRestrictsPaths(t *testing.T) {
	inbox := t.TempDir()
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.pdf")
	require.NoError(t, os.WriteFile(secret, []byte("%PDF"), 0o600))
	link := filepath.Join(inbox, "link.pdf")
	require.NoError(t, os.Symlink(secret, link))
	inside := filepath.Join(inbox, "john.pdf")
	require.NoError(t, os.WriteFile(inside, []byte("%PDF"), 0o600))

	p := &fakeParser{}
	client := NewParserClient(dialGRPC(t, GRPCConfig{}, NewParserService(p, nil, WithAllowedDirs(inbox, ""))))

	for _, path := range []string{
		"/etc/passwd",
		secret,
		inbox + "/../" + filepath.Base(outside) + "/secret.pdf",
		inbox + "-other/john.pdf",
		inbox,
		"relative.pdf",
		link,
	} {
		_, err := client.Parse(context.Background(), mustStruct(t, map[string]any{"path": path}))
		assert.Equal(t, codes.PermissionDenied, status.Code(err), path)
	}
	assert.Empty(t, p.gotPath)

	_, err := client.Parse(context.Background(), mustStruct(t, map[string]any{"path": inbox + "/sub/../john.pdf"}))
	require.NoError(t, err)
	assert.Equal(t, inside, p.gotPath)
}

func TestGRPCParseByPathDisabledWithoutDirs(t *testing.T) {
	p := &fakeParser{}
	client := NewParserClient(dialGRPC(t, GRPCConfig{}, NewParserService(p, nil)))

	_, err := client.Parse(context.Background(), mustStruct(t, map[string]any{"path": "/inbox/john.pdf"}))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
	assert.Empty(t, p.gotPath)
}
