package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"oddsfeed-service/logger"
	"oddsfeed-service/models"
)

// PrematchService 赛前盘口批量收割服务。
// 赛事列表分页拉取,盘口复用批量拉取器的限流策略。
// 周期调度由外围应用负责,这里只提供单次收割。
type PrematchService struct {
	api       *APIClient
	boot      *Bootstrapper
	pageLimit int
	maxPages  int
}

// NewPrematchService 创建 pre-match 服务
func NewPrematchService(api *APIClient, boot *Bootstrapper, pageLimit, maxPages int) *PrematchService {
	if pageLimit <= 0 {
		pageLimit = 100
	}
	if maxPages <= 0 {
		maxPages = 10
	}
	return &PrematchService{
		api:       api,
		boot:      boot,
		pageLimit: pageLimit,
		maxPages:  maxPages,
	}
}

// PrematchResult 一次收割的结果
type PrematchResult struct {
	Events  []models.Event
	Markets map[int64][]models.MarketGroup
}

// FetchPrematchEvents 分页拉取某运动项目的全部赛前赛事
func (s *PrematchService) FetchPrematchEvents(ctx context.Context, sportID int) ([]models.Event, error) {
	logger.Printf("[Prematch] 🔍 Fetching pre-match events for sport %d...", sportID)

	var allEvents []models.Event
	start := 0

	for page := 0; page < s.maxPages; page++ {
		params := url.Values{}
		params.Set("sport", fmt.Sprintf("%d", sportID))
		params.Set("mode", "prematch")

		payload, err := s.api.getPaged(ctx, "/events", params, start, s.pageLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch pre-match page %d: %w", page, err)
		}

		var result eventsPayload
		if err := json.Unmarshal(payload, &result); err != nil {
			return nil, fmt.Errorf("failed to parse pre-match page %d: %w", page, err)
		}

		allEvents = append(allEvents, result.Events...)
		logger.Printf("[Prematch] Page %d: %d events (total %d)", page, len(result.Events), len(allEvents))

		// 短页说明到底了
		if len(result.Events) < s.pageLimit {
			break
		}
		start += s.pageLimit
	}

	return allEvents, nil
}

// Harvest 拉取赛前赛事及其盘口
func (s *PrematchService) Harvest(ctx context.Context, sportID int) (*PrematchResult, error) {
	events, err := s.FetchPrematchEvents(ctx, sportID)
	if err != nil {
		return nil, err
	}

	markets := s.boot.HarvestMarkets(ctx, events)

	logger.Printf("[Prematch] ✅ Harvested %d events, %d market sets", len(events), len(markets))
	return &PrematchResult{Events: events, Markets: markets}, nil
}
