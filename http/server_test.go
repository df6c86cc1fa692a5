package http

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	stdhttp "net/http"
	"testing"
	"time"
)

func roundTrip(t *testing.T, conn net.Conn, br *bufio.Reader, raw string) *stdhttp.Response {
	t.Helper()

	if _, err := conn.Write([]byte(raw)); err != nil {
		t.Fatalf("write error: %v", err)
	}
	resp, err := stdhttp.ReadResponse(br, nil)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	return resp
}

func drain(t *testing.T, resp *stdhttp.Response) string {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("body read error: %v", err)
	}
	resp.Body.Close()
	return string(body)
}

func TestServeConnRoundTrip(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	srv := NewServer("test")
	srv.Logger = discardLogger()
	srv.Router.GET("/greet/:name", func(ctx *RequestCtx) {
		name, _ := ctx.Request.Param("name")
		ctx.Response.WithText("hello " + name)
	})

	go srv.ServeConn(serverConn)

	br := bufio.NewReader(clientConn)
	resp := roundTrip(t, clientConn, br, "GET /greet/gopher HTTP/1.1\r\nHost: localhost\r\n\r\n")

	if resp.StatusCode != 200 {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if got := drain(t, resp); got != "hello gopher" {
		t.Errorf("expected hello gopher, got %q", got)
	}
	if c := resp.Header.Get("Connection"); c != "keep-alive" {
		t.Errorf("expected keep-alive, got %q", c)
	}
}

func TestServeConnKeepAliveReuse(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	hits := 0
	srv := NewServer("test")
	srv.Logger = discardLogger()
	srv.Router.GET("/", func(ctx *RequestCtx) {
		hits++
		ctx.Response.WithText("ok")
	})

	go srv.ServeConn(serverConn)

	br := bufio.NewReader(clientConn)
	for i := 0; i < 3; i++ {
		resp := roundTrip(t, clientConn, br, "GET / HTTP/1.1\r\nHost: localhost\r\n\r\n")
		drain(t, resp)
	}
	if hits != 3 {
		t.Errorf("expected 3 requests served, got %d", hits)
	}

	// An explicit close ends the session after the response.
	resp := roundTrip(t, clientConn, br, "GET / HTTP/1.1\r\nConnection: close\r\n\r\n")
	drain(t, resp)
	// net/http.ReadResponse strips a Connection: close header from HTTP/1.1
	// responses and reports it via resp.Close instead.
	if !resp.Close {
		t.Error("expected close")
	}
	if _, err := br.ReadByte(); err != io.EOF {
		t.Errorf("expected connection closed, got %v", err)
	}
}

type exchangeKey struct{}

func TestServeConnContextPerExchange(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	carried := false
	srv := NewServer("test")
	srv.Logger = discardLogger()
	srv.Router.Use(func(next Handler) Handler {
		return func(ctx *RequestCtx) {
			if ctx.Context().Value(exchangeKey{}) != nil {
				carried = true
			}
			ctx.SetContext(context.WithValue(ctx.Context(), exchangeKey{}, "set"))
			next(ctx)
		}
	})
	srv.Router.GET("/", func(ctx *RequestCtx) {
		ctx.Response.WithText("ok")
	})

	go srv.ServeConn(serverConn)

	br := bufio.NewReader(clientConn)
	for i := 0; i < 2; i++ {
		resp := roundTrip(t, clientConn, br, "GET / HTTP/1.1\r\nHost: localhost\r\n\r\n")
		drain(t, resp)
	}

	if carried {
		t.Error("context value from one exchange observed by the next")
	}
}

func TestServeConnBadRequest(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	srv := NewServer("test")
	srv.Logger = discardLogger()

	go srv.ServeConn(serverConn)

	br := bufio.NewReader(clientConn)
	resp := roundTrip(t, clientConn, br, "NOT A REQUEST LINE AT ALL\r\n\r\n")
	drain(t, resp)

	if resp.StatusCode != 400 {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	// net/http.ReadResponse strips a Connection: close header from HTTP/1.1
	// responses and reports it via resp.Close instead.
	if !resp.Close {
		t.Error("expected close after protocol error")
	}
	if _, err := br.ReadByte(); err != io.EOF {
		t.Errorf("expected connection closed, got %v", err)
	}
}

func TestServeConnNotFoundAndMethodNotAllowed(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	srv := NewServer("test")
	srv.Logger = discardLogger()
	srv.Router.GET("/exists", func(ctx *RequestCtx) {
		ctx.Response.WithText("ok")
	})

	go srv.ServeConn(serverConn)

	br := bufio.NewReader(clientConn)

	resp := roundTrip(t, clientConn, br, "GET /missing HTTP/1.1\r\nHost: localhost\r\n\r\n")
	drain(t, resp)
	if resp.StatusCode != 404 {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}

	resp = roundTrip(t, clientConn, br, "POST /exists HTTP/1.1\r\nHost: localhost\r\nContent-Length: 0\r\n\r\n")
	drain(t, resp)
	if resp.StatusCode != 405 {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
	if allow := resp.Header.Get("Allow"); allow != "GET" {
		t.Errorf("expected Allow: GET, got %q", allow)
	}
}

func TestServeConnHead(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	srv := NewServer("test")
	srv.Logger = discardLogger()
	srv.Router.Handle([]Method{MethodGet, MethodHead}, "/page", func(ctx *RequestCtx) {
		ctx.Response.WithText("page body")
	})

	go srv.ServeConn(serverConn)

	if _, err := clientConn.Write([]byte("HEAD /page HTTP/1.1\r\nHost: localhost\r\n\r\n")); err != nil {
		t.Fatalf("write error: %v", err)
	}

	br := bufio.NewReader(clientConn)
	resp, err := stdhttp.ReadResponse(br, &stdhttp.Request{Method: "HEAD"})
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	drain(t, resp)

	if resp.ContentLength != 9 {
		t.Errorf("expected content-length 9, got %d", resp.ContentLength)
	}

	// The stream must stay in sync: a follow-up request on the same
	// connection only works if no body bytes were written for the HEAD.
	resp2 := roundTrip(t, clientConn, br, "GET /page HTTP/1.1\r\nHost: localhost\r\n\r\n")
	if got := drain(t, resp2); got != "page body" {
		t.Errorf("expected page body, got %q", got)
	}
}

func TestServeConnHandlerPanic(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	srv := NewServer("test")
	srv.Logger = discardLogger()
	srv.Router.GET("/", func(ctx *RequestCtx) {
		panic("boom")
	})

	go srv.ServeConn(serverConn)

	br := bufio.NewReader(clientConn)
	resp := roundTrip(t, clientConn, br, "GET / HTTP/1.1\r\nHost: localhost\r\n\r\n")
	drain(t, resp)

	if resp.StatusCode != 500 {
		t.Errorf("expected 500, got %d", resp.StatusCode)
	}

	// The connection survives a handler panic.
	resp = roundTrip(t, clientConn, br, "GET / HTTP/1.1\r\nHost: localhost\r\n\r\n")
	drain(t, resp)
	if resp.StatusCode != 500 {
		t.Errorf("expected 500, got %d", resp.StatusCode)
	}
}

func startTestServer(t *testing.T, srv *Server) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	go srv.Serve(listener)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	return listener.Addr().String()
}

func TestServerOverload(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 4)

	srv := NewServer("test")
	srv.Logger = discardLogger()
	srv.Workers = 1
	srv.ConnQueueSize = 1
	srv.Router.GET("/block", func(ctx *RequestCtx) {
		entered <- struct{}{}
		<-release
		ctx.Response.WithText("done")
	})

	addr := startTestServer(t, srv)

	dial := func() net.Conn {
		t.Helper()
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { conn.Close() })
		return conn
	}
	request := "GET /block HTTP/1.1\r\nHost: localhost\r\nConnection: close\r\n\r\n"

	// First connection occupies the only worker.
	conn1 := dial()
	if _, err := conn1.Write([]byte(request)); err != nil {
		t.Fatal(err)
	}
	<-entered

	// Second connection fills the queue slot.
	conn2 := dial()
	if _, err := conn2.Write([]byte(request)); err != nil {
		t.Fatal(err)
	}

	// Third connection finds worker and queue both busy.
	conn3 := dial()
	br3 := bufio.NewReader(conn3)
	resp := roundTrip(t, conn3, br3, request)
	drain(t, resp)
	if resp.StatusCode != 503 {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
	if _, err := br3.ReadByte(); err != io.EOF {
		t.Errorf("expected rejected connection closed, got %v", err)
	}

	// Releasing the handler lets the held and the queued connection finish.
	close(release)

	for _, conn := range []net.Conn{conn1, conn2} {
		resp, err := stdhttp.ReadResponse(bufio.NewReader(conn), nil)
		if err != nil {
			t.Fatalf("read error: %v", err)
		}
		if got := drain(t, resp); got != "done" {
			t.Errorf("expected done, got %q", got)
		}
	}
}

func TestServerShutdown(t *testing.T) {
	srv := NewServer("test")
	srv.Logger = discardLogger()
	srv.Router.GET("/", func(ctx *RequestCtx) {
		ctx.Response.WithText("ok")
	})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	conn, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	br := bufio.NewReader(conn)
	resp := roundTrip(t, conn, br, "GET / HTTP/1.1\r\nHost: localhost\r\nConnection: close\r\n\r\n")
	if got := drain(t, resp); got != "ok" {
		t.Errorf("expected ok, got %q", got)
	}
	conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("shutdown error: %v", err)
	}

	select {
	case err := <-serveErr:
		if !errors.Is(err, ErrServerClosed) {
			t.Errorf("expected ErrServerClosed, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}

	// A second Shutdown is a no-op.
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("repeated shutdown error: %v", err)
	}
}

func BenchmarkServeConn(b *testing.B) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	srv := NewServer("bench")
	srv.Logger = discardLogger()
	srv.Router.GET("/", func(ctx *RequestCtx) {
		ctx.Response.WithText("OK")
	})

	go srv.ServeConn(serverConn)

	reqStr := "GET / HTTP/1.1\r\nHost: localhost\r\n\r\n"
	reader := bufio.NewReader(clientConn)

	for b.Loop() {
		_, err := clientConn.Write([]byte(reqStr))
		if err != nil {
			b.Fatalf("write error: %v", err)
		}
		resp, err := stdhttp.ReadResponse(reader, nil)
		if err != nil {
			b.Fatalf("read error: %v", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}
