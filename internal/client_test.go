package internal

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestConfigValidation(t *testing.T) {
	if _, err := NewClient(Config{MaxFrameSize: 0}); err == nil {
		t.Fatalf("expected error for zero max frame size")
	}
	if _, err := NewClient(Config{MaxFrameSize: -1}); err == nil {
		t.Fatalf("expected error for negative max frame size")
	}
	if _, err := NewClient(Config{MaxFrameSize: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestShutdown_CreateNewTwice(t *testing.T) {
	client, err := NewClient(DefaultConfig())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Shutdown(); err != nil {
		t.Fatalf("first shutdown: %v", err)
	}
	if err := client.Shutdown(); !errors.Is(err, ErrAlreadyShutdown) {
		t.Fatalf("second shutdown: got %v want ErrAlreadyShutdown", err)
	}
}

func TestShutdown_ConcurrentSingleWinner(t *testing.T) {
	client, err := NewClient(DefaultConfig())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { results <- client.Shutdown() }()
	}

	var ok, already int
	for i := 0; i < 2; i++ {
		switch err := await(t, results, "shutdown result"); {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyShutdown):
			already++
		default:
			t.Fatalf("unexpected shutdown error: %v", err)
		}
	}
	if ok != 1 || already != 1 {
		t.Fatalf("want exactly one winner, got ok=%d already=%d", ok, already)
	}
}

func TestShutdown_SharedLeavesGroupAlone(t *testing.T) {
	group := NewLoopGroup(1)
	defer group.Shutdown()

	client, err := NewClientWithGroup(group, DefaultConfig())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Shutdown(); err != nil {
		t.Fatalf("shared shutdown: %v", err)
	}
	// Shared shutdown always succeeds, even repeated.
	if err := client.Shutdown(); err != nil {
		t.Fatalf("repeated shared shutdown: %v", err)
	}

	// The group must be untouched and still dispatching.
	ran := make(chan struct{})
	group.nextLoop().post(func() { close(ran) })
	await(t, ran, "task on shared group after client shutdown")
}

func TestConnect_AfterShutdown(t *testing.T) {
	client, err := NewClient(DefaultConfig())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	err = client.Connect(context.Background(), "127.0.0.1", 1, "/", nil, func(*Socket) {})
	if !errors.Is(err, ErrAlreadyShutdown) {
		t.Fatalf("connect after shutdown: got %v", err)
	}
}

func TestShutdown_ClosesLiveConnections(t *testing.T) {
	host, port := startRawServer(t, func(conn net.Conn, br *bufio.Reader, req *http.Request) {
		defer conn.Close()
		write101(conn)
		_, _ = io.Copy(io.Discard, br)
	})

	client, err := NewClient(DefaultConfig())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	sockCh := make(chan *Socket, 1)
	connectErr := make(chan error, 1)
	go func() {
		connectErr <- client.Connect(context.Background(), host, port, "/", nil, func(s *Socket) {
			sockCh <- s
		})
	}()

	sock := await(t, sockCh, "upgraded socket")
	if err := client.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := await(t, connectErr, "connect return"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !sock.IsClosed() {
		t.Fatalf("shutdown must close live sockets")
	}
}

// gorillaEcho upgrades with an independent server implementation, reads one
// logical message, and reports it.
type gorillaMessage struct {
	kind int
	data []byte
}

func TestFragmentedMessageReassembly(t *testing.T) {
	upgrader := websocket.Upgrader{}
	msgCh := make(chan gorillaMessage, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("gorilla upgrade: %v", err)
			return
		}
		defer c.Close()
		kind, data, err := c.ReadMessage()
		if err != nil {
			t.Errorf("gorilla read: %v", err)
			return
		}
		msgCh <- gorillaMessage{kind, data}
		// Consume until the client closes.
		_, _, _ = c.ReadMessage()
	}))
	defer srv.Close()

	hostPort := strings.TrimPrefix(srv.URL, "http://")
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		t.Fatalf("split %q: %v", hostPort, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("port %q: %v", portStr, err)
	}

	client, err := NewClient(Config{MaxFrameSize: 16384})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Shutdown()

	sockCh := make(chan *Socket, 1)
	connectErr := make(chan error, 1)
	go func() {
		connectErr <- client.Connect(context.Background(), host, port, "/", nil, func(s *Socket) {
			sockCh <- s
		})
	}()
	sock := await(t, sockCh, "upgraded socket")

	// One logical text message in three fragments.
	if err := sock.Send([]byte("frag-one-"), OpText, false); err != nil {
		t.Fatalf("fragment 1: %v", err)
	}
	if err := sock.Send([]byte("frag-two-"), OpContinuation, false); err != nil {
		t.Fatalf("fragment 2: %v", err)
	}
	if err := sock.Send([]byte("frag-three"), OpContinuation, true); err != nil {
		t.Fatalf("fragment 3: %v", err)
	}

	msg := await(t, msgCh, "reassembled message")
	if msg.kind != websocket.TextMessage {
		t.Fatalf("message type: got %d", msg.kind)
	}
	if got := string(msg.data); got != "frag-one-frag-two-frag-three" {
		t.Fatalf("reassembled payload: %q", got)
	}

	if err := sock.CloseWithCode(CloseNormalClosure); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := await(t, connectErr, "connect return"); err != nil {
		t.Fatalf("connect: %v", err)
	}
}
