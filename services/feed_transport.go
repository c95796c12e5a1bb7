package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// Transport 长连接传输抽象。连接状态机只依赖这个接口,
// 测试里可以用进程内假传输驱动,不需要真实网络。
type Transport interface {
	// Open 建立连接,阻塞到建立成功或 ctx 超时
	Open(ctx context.Context, url string) error
	// Send 发送一个文本帧
	Send(frame string) error
	// Messages 收到的文本帧,传输关闭时该通道关闭
	Messages() <-chan string
	// Closed 传输关闭/出错时收到一次原因
	Closed() <-chan error
	// Close 主动关闭连接
	Close() error
}

// WSTransport Transport 的 WebSocket 实现
type WSTransport struct {
	conn     *websocket.Conn
	writeMu  sync.Mutex
	messages chan string
	closed   chan error
	once     sync.Once
}

// NewWSTransport 创建 WebSocket 传输
func NewWSTransport() *WSTransport {
	return &WSTransport{
		messages: make(chan string, 256),
		closed:   make(chan error, 1),
	}
}

// Open 建立 WebSocket 连接并启动读循环
func (t *WSTransport) Open(ctx context.Context, url string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial feed endpoint: %w", err)
	}
	t.conn = conn

	go t.readLoop()
	return nil
}

// Send 发送文本帧
func (t *WSTransport) Send(frame string) error {
	if t.conn == nil {
		return fmt.Errorf("transport not open")
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

// Messages 实现 Transport 接口
func (t *WSTransport) Messages() <-chan string {
	return t.messages
}

// Closed 实现 Transport 接口
func (t *WSTransport) Closed() <-chan error {
	return t.closed
}

// Close 主动关闭连接
func (t *WSTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	t.writeMu.Lock()
	_ = t.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()
	return t.conn.Close()
}

// readLoop 持续读帧,出错时上报关闭原因并收尾
func (t *WSTransport) readLoop() {
	defer func() {
		close(t.messages)
	}()

	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			t.once.Do(func() {
				t.closed <- err
			})
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		t.messages <- string(data)
	}
}
