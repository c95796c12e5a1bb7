package services

import (
	"sync"

	"oddsfeed-service/logger"
	"oddsfeed-service/models"
)

// SnapshotBroker 快照广播器: 合并器每次产出新快照后发布到这里,
// 外围应用 (推送层/展示层) 各自拿一个通道消费,互不阻塞。
type SnapshotBroker struct {
	mu          sync.RWMutex
	subscribers []chan *models.Snapshot
	latest      *models.Snapshot
	closed      bool
}

// NewSnapshotBroker 创建快照广播器
func NewSnapshotBroker() *SnapshotBroker {
	return &SnapshotBroker{}
}

// Publish 发布新快照。实现 SnapshotSink,从合并路径同步调用,
// 所以这里只做非阻塞投递: 消费者通道满了就丢,消费者靠下一帧追上。
func (b *SnapshotBroker) Publish(s *models.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.latest = s

	for _, ch := range b.subscribers {
		select {
		case ch <- s:
		default:
			logger.Debugf("[SnapshotBroker] ⚠️ Subscriber channel full, snapshot dropped")
		}
	}
}

// Subscribe 注册一个消费者,返回带缓冲的快照通道
func (b *SnapshotBroker) Subscribe(buffer int) <-chan *models.Snapshot {
	if buffer <= 0 {
		buffer = 16
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *models.Snapshot, buffer)
	b.subscribers = append(b.subscribers, ch)

	logger.Printf("[SnapshotBroker] Subscriber added. Total subscribers: %d", len(b.subscribers))
	return ch
}

// Latest 最近一次发布的快照 (可能为 nil)
func (b *SnapshotBroker) Latest() *models.Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest
}

// Close 关闭所有消费者通道
func (b *SnapshotBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil

	logger.Println("[SnapshotBroker] Closed all channels.")
}
