package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"oddsfeed-service/logger"
	"oddsfeed-service/models"
)

// Bootstrapper 批量拉取器: 分批并发拉取各赛事的市场组,
// 批内错峰发请求、批间停顿,在上游限流下尽量压低总耗时
type Bootstrapper struct {
	api        *APIClient
	batchSize  int
	stagger    time.Duration // 批内第 i 个请求延迟 stagger*i 启动
	batchPause time.Duration // 批与批之间的停顿
}

// NewBootstrapper 创建批量拉取器
func NewBootstrapper(api *APIClient, batchSize int, stagger, batchPause time.Duration) *Bootstrapper {
	if batchSize <= 0 {
		batchSize = 5
	}
	return &Bootstrapper{
		api:        api,
		batchSize:  batchSize,
		stagger:    stagger,
		batchPause: batchPause,
	}
}

// Bootstrap 拉取某运动项目的滚球赛事列表及各赛事的市场组
func (b *Bootstrapper) Bootstrap(ctx context.Context, sportID int) ([]models.Event, map[int64][]models.MarketGroup, error) {
	events, err := b.api.GetLiveEvents(ctx, sportID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch live events: %w", err)
	}

	logger.Printf("[Bootstrap] Fetched %d live events for sport %d", len(events), sportID)

	markets := b.HarvestMarkets(ctx, events)
	return events, markets, nil
}

// HarvestMarkets 按固定批次并发拉取每个赛事的市场组。
// 单个赛事拉取失败降级为空市场列表,不中断整批。
func (b *Bootstrapper) HarvestMarkets(ctx context.Context, events []models.Event) map[int64][]models.MarketGroup {
	result := make(map[int64][]models.MarketGroup, len(events))
	var mu sync.Mutex

	for batchStart := 0; batchStart < len(events); batchStart += b.batchSize {
		batchEnd := batchStart + b.batchSize
		if batchEnd > len(events) {
			batchEnd = len(events)
		}
		batch := events[batchStart:batchEnd]

		var wg sync.WaitGroup
		for i, ev := range batch {
			wg.Add(1)
			go func(idx int, eventID int64) {
				defer wg.Done()

				// 批内错峰,避免瞬时突发
				if b.stagger > 0 && idx > 0 {
					select {
					case <-time.After(time.Duration(idx) * b.stagger):
					case <-ctx.Done():
						return
					}
				}

				groups, err := b.api.GetEventMarkets(ctx, eventID)
				if err != nil {
					logger.Errorf("[Bootstrap] ⚠️ Failed to fetch markets for event %d: %v", eventID, err)
					groups = []models.MarketGroup{}
				}

				mu.Lock()
				result[eventID] = groups
				mu.Unlock()
			}(i, ev.EventID)
		}
		wg.Wait()

		// 批间停顿 (最后一批之后不需要)
		if batchEnd < len(events) && b.batchPause > 0 {
			select {
			case <-time.After(b.batchPause):
			case <-ctx.Done():
				return result
			}
		}
	}

	return result
}
