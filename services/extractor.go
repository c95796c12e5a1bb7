package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"oddsfeed-service/config"
	"oddsfeed-service/logger"
	"oddsfeed-service/models"
)

// LiveExtractor 滚球抓取会话的编排器:
// REST 批量引导 -> 合并器播种 -> 推送连接 -> 订阅。
// 每次 StartLiveExtraction 都从 REST 重新播种快照,
// Stop 只断连接,快照保留可读。
type LiveExtractor struct {
	cfg     *config.Config
	creds   *CredentialProvider
	api     *APIClient
	boot    *Bootstrapper
	merger  *StateMerger
	onError func(error)

	mu        sync.Mutex
	feed      *FeedClient
	sessionID string
	sportID   int
}

// NewLiveExtractor 创建编排器。sink 和错误回调构造时注入。
func NewLiveExtractor(cfg *config.Config, creds *CredentialProvider, sink SnapshotSink, onError func(error)) *LiveExtractor {
	api := NewAPIClient(cfg.APIBaseURL, creds)
	return &LiveExtractor{
		cfg:     cfg,
		creds:   creds,
		api:     api,
		boot:    NewBootstrapper(api, cfg.BootstrapBatchSize, cfg.BootstrapStagger, cfg.BootstrapPause),
		merger:  NewStateMerger(sink),
		onError: onError,
	}
}

// Snapshot 当前快照的拷贝 (停止后仍可读最后状态)
func (e *LiveExtractor) Snapshot() *models.Snapshot {
	return e.merger.Snapshot()
}

// FeedState 推送连接的当前状态
func (e *LiveExtractor) FeedState() ConnState {
	e.mu.Lock()
	feed := e.feed
	e.mu.Unlock()
	if feed == nil {
		return StateDisconnected
	}
	return feed.State()
}

// StartLiveExtraction 启动一次滚球抓取会话。
// 已有会话在跑时先停掉旧的再起新的。
func (e *LiveExtractor) StartLiveExtraction(ctx context.Context, sportID int) error {
	e.StopLiveExtraction()

	sessionID := uuid.NewString()[:8]
	e.mu.Lock()
	e.sessionID = sessionID
	e.sportID = sportID
	e.mu.Unlock()

	logger.Printf("[Extractor] 🚀 Starting live extraction, sport %d (session %s)", sportID, sessionID)

	// 先确保凭证可用,拿不到直接失败
	if _, err := e.creds.RefreshIfNeeded(ctx); err != nil {
		err = fmt.Errorf("no usable credential: %w", err)
		e.reportError(err)
		return err
	}

	// REST 批量引导,播种快照 (sink 在这里第一次触发)
	events, markets, err := e.boot.Bootstrap(ctx, sportID)
	if err != nil {
		err = fmt.Errorf("bootstrap failed: %w", err)
		e.reportError(err)
		return err
	}
	e.merger.Reseed(events, markets)

	// 建立推送连接,引导阶段连不上就是致命错误
	feed := NewFeedClient(FeedClientConfig{
		URL:                  e.cfg.FeedURL,
		ConnectTimeout:       e.cfg.ConnectTimeout,
		HandshakeTimeout:     e.cfg.HandshakeTimeout,
		ReconnectDelay:       e.cfg.ReconnectDelay,
		MaxReconnectAttempts: e.cfg.MaxReconnectAttempts,
	}, e.creds, nil, e.handleFeedEvent, e.reportError)

	if err := feed.Connect(ctx); err != nil {
		feed.Stop()
		err = fmt.Errorf("feed connect failed: %w", err)
		e.reportError(err)
		return err
	}

	e.mu.Lock()
	e.feed = feed
	e.mu.Unlock()

	// 下发订阅: 运动项目级 + 每赛事一条
	feed.SubscribeSport(sportID)
	for _, ev := range events {
		feed.SubscribeEvent(ev.EventID)
	}

	logger.Printf("[Extractor] ✅ Live extraction running, %d events subscribed (session %s)", len(events), sessionID)
	return nil
}

// StopLiveExtraction 关闭推送连接和定时器,保留快照
func (e *LiveExtractor) StopLiveExtraction() {
	e.mu.Lock()
	feed := e.feed
	e.feed = nil
	sessionID := e.sessionID
	e.mu.Unlock()

	if feed == nil {
		return
	}
	feed.Stop()
	logger.Printf("[Extractor] Live extraction stopped (session %s)", sessionID)
}

// handleFeedEvent 解码推送载荷并交给合并器。
// 解码失败只丢这一帧,不影响连接。
func (e *LiveExtractor) handleFeedEvent(name, payload string) {
	switch name {
	case eventSingleEventUpdate:
		var upd models.SingleEventUpdate
		if err := json.Unmarshal([]byte(payload), &upd); err != nil {
			logger.Errorf("[Extractor] ⚠️ Dropping malformed single-event-update: %v", err)
			return
		}
		e.merger.ApplySingleEventUpdate(&upd)

	case eventOfferUpdate:
		var upd models.OfferUpdate
		if err := json.Unmarshal([]byte(payload), &upd); err != nil {
			logger.Errorf("[Extractor] ⚠️ Dropping malformed offer update: %v", err)
			return
		}
		e.merger.ApplyOfferUpdate(&upd)
	}
}

func (e *LiveExtractor) reportError(err error) {
	if e.onError != nil {
		e.onError(err)
	}
}
