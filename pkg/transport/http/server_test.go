package http

import (
	"context"
	"encoding/json"
	"net"
	gohttp "net/http"
	"strings"
	"testing"
	"time"

	"github.com/rhuss/voxorder/pkg/api"
	settingsmem "github.com/rhuss/voxorder/pkg/settings/memory"
	"github.com/rhuss/voxorder/pkg/transport"
)

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	return ln
}

func TestServerStartsAndAcceptsRequests(t *testing.T) {
	chat := transport.ChatCompleterFunc(func(ctx context.Context, req *api.ChatRequest) (*api.ChatResult, error) {
		return &api.ChatResult{ResponseText: "hello from " + req.ModelID, OrderStatus: api.OrderStatusUnknown}, nil
	})
	srv := NewServer(Deps{Chat: chat, Settings: settingsmem.New()})

	ln := listen(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := gohttp.Post("http://"+ln.Addr().String()+"/chat/completion-openai-style", "application/json",
		strings.NewReader(`{"modelId":"gpt-4o","query":"soap"}`))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != gohttp.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, gohttp.StatusOK)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
	var got api.ChatResult
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.ResponseText != "hello from gpt-4o" {
		t.Errorf("responseText = %q", got.ResponseText)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Serve returned %v", err)
	}
}

func TestServerGracefulShutdown(t *testing.T) {
	started := make(chan struct{})
	slow := transport.ChatCompleterFunc(func(ctx context.Context, req *api.ChatRequest) (*api.ChatResult, error) {
		close(started)
		select {
		case <-time.After(200 * time.Millisecond):
			return &api.ChatResult{ResponseText: "done"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	srv := NewServer(Deps{Chat: slow, Settings: settingsmem.New()}, WithShutdownTimeout(5*time.Second))

	ln := listen(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	statusCh := make(chan int, 1)
	go func() {
		resp, err := gohttp.Post("http://"+ln.Addr().String()+"/chat/completion-anthropic-style", "application/json",
			strings.NewReader(`{"modelId":"claude","query":"soap"}`))
		if err != nil {
			statusCh <- 0
			return
		}
		defer resp.Body.Close()
		statusCh <- resp.StatusCode
	}()

	<-started
	cancel()

	if status := <-statusCh; status != gohttp.StatusOK {
		t.Errorf("in-flight request status = %d, want %d", status, gohttp.StatusOK)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve returned %v", err)
	}
}

func TestServerFunctionalOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBodySize = 1024
	srv := NewServer(Deps{Chat: transport.ChatCompleterFunc(nil), Settings: settingsmem.New()},
		WithAdapterConfig(cfg),
		WithAddr(":9999"),
		WithShutdownTimeout(10*time.Second),
	)

	if srv.config.Adapter.Addr != ":9999" || srv.httpServer.Addr != ":9999" {
		t.Errorf("addr = %q, want %q", srv.config.Adapter.Addr, ":9999")
	}
	if srv.config.Adapter.MaxBodySize != 1024 {
		t.Errorf("max body size = %d, want %d", srv.config.Adapter.MaxBodySize, 1024)
	}
	if srv.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown timeout = %v, want %v", srv.config.ShutdownTimeout, 10*time.Second)
	}
}
