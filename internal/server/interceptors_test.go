package server

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/asgdb/internal/rpc"
)

// stubHandler is a no-op gRPC handler used in interceptor tests.
func stubHandler(_ context.Context, _ any) (any, error) {
	return "ok", nil
}

var listInfo = &grpc.UnaryServerInfo{FullMethod: rpc.FullMethod(rpc.MethodListNamespaces)}

func TestAuthInterceptor(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		method string
		md     metadata.MD
		want   codes.Code
	}{
		{"Disabled", "", rpc.MethodListNamespaces, nil, codes.OK},
		{"HealthExempt", "secret", rpc.MethodHealth, nil, codes.OK},
		{"MissingMetadata", "secret", rpc.MethodListNamespaces, nil, codes.Unauthenticated},
		{"MissingHeader", "secret", rpc.MethodListNamespaces, metadata.Pairs("other", "v"), codes.Unauthenticated},
		{"WrongToken", "secret", rpc.MethodListNamespaces, metadata.Pairs("authorization", "Bearer wrong"), codes.Unauthenticated},
		{"InvalidScheme", "secret", rpc.MethodListNamespaces, metadata.Pairs("authorization", "Basic secret"), codes.Unauthenticated},
		{"CorrectToken", "secret", rpc.MethodListNamespaces, metadata.Pairs("authorization", "Bearer secret"), codes.OK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tt.md)
			}
			info := &grpc.UnaryServerInfo{FullMethod: rpc.FullMethod(tt.method)}
			resp, err := AuthInterceptor(tt.token)(ctx, nil, info, stubHandler)
			if got := status.Code(err); got != tt.want {
				t.Fatalf("code = %v, want %v (err=%v)", got, tt.want, err)
			}
			if tt.want == codes.OK && resp != "ok" {
				t.Fatalf("resp = %v, want ok", resp)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	tests := []struct {
		name   string
		token  string
		method string
		path   string
		auth   string
		want   int
	}{
		{"Disabled", "", http.MethodGet, "/v1/namespaces", "", http.StatusOK},
		{"HealthExempt", "secret", http.MethodGet, "/v1/health", "", http.StatusOK},
		{"NoHeader", "secret", http.MethodGet, "/v1/namespaces", "", http.StatusUnauthorized},
		{"WrongToken", "secret", http.MethodGet, "/v1/namespaces", "Bearer wrong", http.StatusUnauthorized},
		{"InvalidScheme", "secret", http.MethodGet, "/v1/namespaces", "Token secret", http.StatusUnauthorized},
		{"CorrectToken", "secret", http.MethodPut, "/v1/data/a/b", "Bearer secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			AuthMiddleware(tt.token, next).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestLoggingInterceptor(t *testing.T) {
	var logs bytes.Buffer
	interceptor := LoggingInterceptor(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))

	resp, err := interceptor(context.Background(), nil, listInfo, stubHandler)
	if err != nil || resp != "ok" {
		t.Fatalf("resp=%v err=%v, want ok", resp, err)
	}
	_, err = interceptor(context.Background(), nil, listInfo,
		func(context.Context, any) (any, error) { return nil, fmt.Errorf("boom") })
	if err == nil {
		t.Fatal("expected error")
	}
	out := logs.String()
	if !strings.Contains(out, "level=DEBUG") || !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "boom") {
		t.Errorf("logs = %q", out)
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	interceptor := RecoveryInterceptor(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	resp, err := interceptor(context.Background(), nil, listInfo, stubHandler)
	if err != nil || resp != "ok" {
		t.Fatalf("resp=%v err=%v, want ok", resp, err)
	}
	_, err = interceptor(context.Background(), nil, listInfo,
		func(context.Context, any) (any, error) { panic("test panic") })
	if status.Code(err) != codes.Internal {
		t.Fatalf("code = %v, want Internal", status.Code(err))
	}
}
