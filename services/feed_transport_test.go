package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockFeedServer 起一个可升级 WebSocket 的测试服务端
func mockFeedServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWSTransportSendAndReceive(t *testing.T) {
	received := make(chan string, 1)
	server := mockFeedServer(t, func(conn *websocket.Conn) {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(`0{"pingInterval":25000}`)); err != nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(data)
		// 保持连接,等客户端收完
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	transport := NewWSTransport()
	if err := transport.Open(context.Background(), wsURL(server)); err != nil {
		t.Fatalf("Unexpected open error: %v", err)
	}
	defer transport.Close()

	select {
	case frame := <-transport.Messages():
		if !strings.HasPrefix(frame, "0{") {
			t.Errorf("Expected open frame, got %q", frame)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for inbound frame")
	}

	if err := transport.Send("40"); err != nil {
		t.Fatalf("Unexpected send error: %v", err)
	}
	select {
	case got := <-received:
		if got != "40" {
			t.Errorf("Server received %q, want '40'", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for server to receive frame")
	}
}

func TestWSTransportReportsClose(t *testing.T) {
	server := mockFeedServer(t, func(conn *websocket.Conn) {
		// 服务端立刻断开
	})
	defer server.Close()

	transport := NewWSTransport()
	if err := transport.Open(context.Background(), wsURL(server)); err != nil {
		t.Fatalf("Unexpected open error: %v", err)
	}

	select {
	case <-transport.Closed():
	case <-time.After(time.Second):
		t.Fatal("Expected close notification after server disconnect")
	}
}

func TestWSTransportOpenTimeout(t *testing.T) {
	transport := NewWSTransport()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// 不可路由的地址,连接应该在 ctx 超时内失败
	err := transport.Open(ctx, "ws://10.255.255.1:9/socket")
	if err == nil {
		transport.Close()
		t.Fatal("Expected open to fail")
	}
}
