package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"oddsfeed-service/logger"
)

// ConnState 连接状态机的状态
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateAwaitingHandshake
	StateReady
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingHandshake:
		return "awaiting-handshake"
	case StateReady:
		return "ready"
	default:
		return "disconnected"
	}
}

// EventHandler 收到已识别的事件帧时回调 (name + 内层 JSON 文本)
type EventHandler func(name, payload string)

// FeedClientConfig 推送客户端配置
type FeedClientConfig struct {
	URL                  string
	ConnectTimeout       time.Duration
	HandshakeTimeout     time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int // 0 = 无限重试
}

// FeedClient 实时赔率推送客户端。维护一条长连接,
// 负责握手、心跳、订阅,断线后定时重连并恢复订阅集。
type FeedClient struct {
	cfg          FeedClientConfig
	creds        *CredentialProvider
	newTransport func() Transport
	onEvent      EventHandler
	onError      func(error)

	mu             sync.Mutex
	state          ConnState
	transport      Transport
	readyCh        chan struct{}
	failCh         chan error
	handshakeDone  bool
	heartbeatStop  chan struct{}
	reconnectTimer *time.Timer
	attempts       int
	stopped        bool
	sid            string

	// 当前生效的订阅集,重连后按原样重新下发
	subsMu    sync.RWMutex
	sportSubs map[int]bool
	eventSubs map[int64]bool
}

// NewFeedClient 创建推送客户端。回调在构造时注入,不提供 setter。
func NewFeedClient(cfg FeedClientConfig, creds *CredentialProvider, newTransport func() Transport, onEvent EventHandler, onError func(error)) *FeedClient {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if newTransport == nil {
		newTransport = func() Transport { return NewWSTransport() }
	}
	return &FeedClient{
		cfg:          cfg,
		creds:        creds,
		newTransport: newTransport,
		onEvent:      onEvent,
		onError:      onError,
		sportSubs:    make(map[int]bool),
		eventSubs:    make(map[int64]bool),
	}
}

// State 当前连接状态
func (c *FeedClient) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID 服务端分配的会话 id (握手完成后可用)
func (c *FeedClient) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sid
}

// Connect 建立连接并等待握手完成,超时即失败
func (c *FeedClient) Connect(ctx context.Context) error {
	cred, err := c.creds.RefreshIfNeeded(ctx)
	if err != nil {
		return fmt.Errorf("no valid credential for feed connect: %w", err)
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return fmt.Errorf("feed client is stopped")
	}
	c.state = StateConnecting
	transport := c.newTransport()
	c.transport = transport
	readyCh := make(chan struct{})
	failCh := make(chan error, 1)
	c.readyCh = readyCh
	c.failCh = failCh
	c.handshakeDone = false
	c.mu.Unlock()

	endpoint := fmt.Sprintf("%s?authorization=%s&EIO=4&transport=websocket",
		c.cfg.URL, url.QueryEscape(cred.AccessToken))

	openCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	if err := transport.Open(openCtx, endpoint); err != nil {
		c.abandonTransport(transport)
		return fmt.Errorf("feed connect failed: %w", err)
	}

	// 传输层打开后先发连接帧,加入默认命名空间
	if err := transport.Send(frameConnect); err != nil {
		c.abandonTransport(transport)
		return fmt.Errorf("failed to send connect frame: %w", err)
	}
	c.setState(StateAwaitingHandshake)

	go c.dispatchLoop(transport)

	// 握手完成由 readyCh 一次性通知,带超时等待。
	// 握手期间传输断开走 failCh 快速失败,不进入重连。
	select {
	case <-readyCh:
		logger.Printf("[Feed] ✅ Connected, session %s", c.SessionID())
		return nil
	case err := <-failCh:
		return fmt.Errorf("connection lost during handshake: %w", err)
	case <-time.After(c.cfg.HandshakeTimeout):
		c.abandonTransport(transport)
		return fmt.Errorf("handshake timed out after %s", c.cfg.HandshakeTimeout)
	case <-ctx.Done():
		c.abandonTransport(transport)
		return fmt.Errorf("feed connect cancelled: %w", ctx.Err())
	}
}

// abandonTransport 放弃一次失败的连接尝试。先解除挂接再关闭,
// 这样它的关闭事件不会再触发一轮重连 (连接失败由调用方决定怎么处理)。
// 已经不是当前传输时只关闭,不碰心跳和状态,免得踩到更新的会话。
func (c *FeedClient) abandonTransport(t Transport) {
	c.mu.Lock()
	if c.transport == t {
		c.transport = nil
		if c.heartbeatStop != nil {
			close(c.heartbeatStop)
			c.heartbeatStop = nil
		}
		c.state = StateDisconnected
	}
	c.mu.Unlock()
	t.Close()
}

func (c *FeedClient) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// dispatchLoop 按接收顺序处理帧,传输关闭时收尾退出
func (c *FeedClient) dispatchLoop(t Transport) {
	messages := t.Messages()
	for {
		select {
		case frame, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			c.handleFrame(t, frame)
		case err := <-t.Closed():
			c.onTransportClosed(t, err)
			return
		}
	}
}

// handleFrame 处理单个入站帧
func (c *FeedClient) handleFrame(t Transport, frame string) {
	switch {
	case frame == framePong:
		logger.Debugf("[Feed] Pong received")

	case frame == frameConnect:
		// 裸 "40" 是中间确认,还不算握手完成

	case strings.HasPrefix(frame, frameConnect):
		if sid, ok := parseConnectAck(frame); ok {
			c.completeHandshake(t, sid)
		}

	case strings.HasPrefix(frame, prefixEventMsg):
		c.handleEventFrame(frame)

	case strings.HasPrefix(frame, prefixOpen):
		payload, err := parseOpenFrame(frame)
		if err != nil {
			logger.Errorf("[Feed] ⚠️ Dropping malformed open frame: %v", err)
			return
		}
		c.startHeartbeat(t, time.Duration(payload.PingInterval)*time.Millisecond)

	default:
		logger.Debugf("[Feed] Ignoring frame: %q", frame)
	}
}

// completeHandshake 记录会话 id 并一次性通知等待方。
// 只认当前传输的帧: 被放弃的传输排空时残留的 "40{sid}"
// 不能替新连接完成握手。
func (c *FeedClient) completeHandshake(t Transport, sid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport != t || c.handshakeDone {
		return
	}
	c.handshakeDone = true
	c.sid = sid
	c.state = StateReady
	close(c.readyCh)
}

// handleEventFrame 解析事件帧并路由。未知事件名忽略,不致命。
func (c *FeedClient) handleEventFrame(frame string) {
	name, payload, err := parseEventFrame(frame)
	if err != nil {
		logger.Errorf("[Feed] ⚠️ Dropping malformed frame: %v", err)
		return
	}

	switch name {
	case eventSubscriptions:
		logger.Printf("[Feed] ✅ Subscription acknowledged")
	case eventSingleEventUpdate, eventOfferUpdate:
		if c.onEvent != nil {
			c.onEvent(name, payload)
		}
	default:
		logger.Debugf("[Feed] Ignoring unknown event %q", name)
	}
}

// startHeartbeat 启动心跳。同一时刻只允许一个心跳定时器,
// 新的启动前先取消旧的。旧传输残留的 open 帧忽略。
func (c *FeedClient) startHeartbeat(t Transport, interval time.Duration) {
	c.mu.Lock()
	if c.transport != t {
		c.mu.Unlock()
		return
	}
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
	}
	stop := make(chan struct{})
	c.heartbeatStop = stop
	c.mu.Unlock()

	logger.Printf("[Feed] 💓 Heartbeat every %s", interval)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := t.Send(framePing); err != nil {
					logger.Errorf("[Feed] ❌ Failed to send ping: %v", err)
				}
			}
		}
	}()
}

// onTransportClosed 连接断开: 停心跳、置 Disconnected。
// 握手已完成的会话安排重连;还没走完握手就断,说明挂着的 Connect
// 还在等,通知它失败即可,引导阶段连不上由调用方处置,不自动重连。
func (c *FeedClient) onTransportClosed(t Transport, cause error) {
	c.mu.Lock()
	if c.transport != t {
		// 旧连接的收尾事件,忽略
		c.mu.Unlock()
		return
	}
	c.transport = nil
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	c.state = StateDisconnected
	stopped := c.stopped
	ready := c.handshakeDone
	failCh := c.failCh
	c.mu.Unlock()

	if stopped {
		return
	}

	if !ready {
		logger.Errorf("[Feed] ❌ Connection lost during handshake: %v", cause)
		select {
		case failCh <- cause:
		default:
		}
		return
	}

	logger.Errorf("[Feed] ❌ Connection lost: %v", cause)
	c.scheduleReconnect()
}

// scheduleReconnect 固定延迟后重连。同一时刻只允许一个重连定时器。
func (c *FeedClient) scheduleReconnect() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.attempts++
	attempts := c.attempts
	if c.cfg.MaxReconnectAttempts > 0 && attempts > c.cfg.MaxReconnectAttempts {
		c.mu.Unlock()
		err := fmt.Errorf("giving up after %d reconnect attempts", c.cfg.MaxReconnectAttempts)
		logger.Errorf("[Feed] ❌ %v", err)
		if c.onError != nil {
			c.onError(err)
		}
		return
	}
	c.reconnectTimer = time.AfterFunc(c.cfg.ReconnectDelay, c.tryReconnect)
	c.mu.Unlock()

	logger.Printf("[Feed] 🔄 Reconnecting in %s (attempt %d)...", c.cfg.ReconnectDelay, attempts)
}

// tryReconnect 重连成功后按断开前的订阅集重新订阅,失败则再排一次
func (c *FeedClient) tryReconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout+c.cfg.HandshakeTimeout)
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		logger.Errorf("[Feed] ❌ Reconnect failed: %v", err)
		c.scheduleReconnect()
		return
	}

	c.mu.Lock()
	c.attempts = 0
	c.mu.Unlock()

	c.resubscribeAll()
}

// SubscribeSport 订阅某运动项目的滚球更新和报价更新
func (c *FeedClient) SubscribeSport(sportID int) {
	frames := []string{
		buildSubscriptionFrame(sportLiveSubscription(sportID)),
		buildSubscriptionFrame(sportOfferSubscription(sportID)),
	}
	if !c.sendFrames(frames...) {
		return
	}

	c.subsMu.Lock()
	c.sportSubs[sportID] = true
	c.subsMu.Unlock()
}

// SubscribeEvent 订阅单个赛事的完整更新
func (c *FeedClient) SubscribeEvent(eventID int64) {
	if !c.sendFrames(buildSubscriptionFrame(eventSubscription(eventID))) {
		return
	}

	c.subsMu.Lock()
	c.eventSubs[eventID] = true
	c.subsMu.Unlock()
}

// SubscribedEvents 当前订阅的赛事 id 集合
func (c *FeedClient) SubscribedEvents() []int64 {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	ids := make([]int64, 0, len(c.eventSubs))
	for id := range c.eventSubs {
		ids = append(ids, id)
	}
	return ids
}

// sendFrames 未就绪时丢弃请求并记日志,调用方不能假设会排队
func (c *FeedClient) sendFrames(frames ...string) bool {
	c.mu.Lock()
	state := c.state
	t := c.transport
	c.mu.Unlock()

	if state != StateReady || t == nil {
		logger.Printf("[Feed] ⚠️ Not ready (%s), dropping subscription request", state)
		return false
	}

	for _, f := range frames {
		if err := t.Send(f); err != nil {
			logger.Errorf("[Feed] ❌ Failed to send subscription: %v", err)
			return false
		}
	}
	return true
}

// resubscribeAll 重连后恢复断开前的订阅集
func (c *FeedClient) resubscribeAll() {
	c.subsMu.RLock()
	sports := make([]int, 0, len(c.sportSubs))
	for id := range c.sportSubs {
		sports = append(sports, id)
	}
	events := make([]int64, 0, len(c.eventSubs))
	for id := range c.eventSubs {
		events = append(events, id)
	}
	c.subsMu.RUnlock()

	logger.Printf("[Feed] 🔄 Resubscribing: %d sports, %d events", len(sports), len(events))

	for _, id := range sports {
		c.SubscribeSport(id)
	}
	for _, id := range events {
		c.SubscribeEvent(id)
	}
}

// Stop 关闭连接、取消心跳和重连定时器、清空订阅记录。
// 快照由合并器持有,不在这里清理。
func (c *FeedClient) Stop() {
	c.mu.Lock()
	c.stopped = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	t := c.transport
	c.transport = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	c.subsMu.Lock()
	c.sportSubs = make(map[int]bool)
	c.eventSubs = make(map[int64]bool)
	c.subsMu.Unlock()

	if t != nil {
		t.Close()
	}

	logger.Println("[Feed] Stopped")
}
