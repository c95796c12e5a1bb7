package services

import (
	"sync"
	"time"

	"oddsfeed-service/logger"
	"oddsfeed-service/models"
)

// SnapshotSink 快照变化回调。从合并路径同步调用,
// 不能做耗时操作,否则会卡住帧处理。
type SnapshotSink func(*models.Snapshot)

// StateMerger 持有权威的内存快照,是唯一允许改动快照的组件。
// 三类入站更新各有一套按 id 对账的合并算法,绝不因为发送方
// 省略了字段就把旧值清掉。
type StateMerger struct {
	mu       sync.Mutex
	snapshot *models.Snapshot
	sink     SnapshotSink
}

// NewStateMerger 创建合并器,sink 构造时注入
func NewStateMerger(sink SnapshotSink) *StateMerger {
	return &StateMerger{
		snapshot: models.NewSnapshot(),
		sink:     sink,
	}
}

// Snapshot 返回当前快照的深拷贝
func (m *StateMerger) Snapshot() *models.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot.Clone()
}

// Reseed 全量重建: 用 REST 拉回的数据整体替换快照
func (m *StateMerger) Reseed(events []models.Event, markets map[int64][]models.MarketGroup) {
	m.mu.Lock()

	snapshot := models.NewSnapshot()
	for i := range events {
		ev := events[i]
		snapshot.Events[ev.EventID] = &ev
	}
	for id, groups := range markets {
		snapshot.MarketsByEvent[id] = groups
	}
	m.snapshot = snapshot

	logger.Printf("[Merger] Reseeded snapshot: %d events", len(snapshot.Events))
	m.notifyLocked()
	m.mu.Unlock()
}

// ApplySingleEventUpdate 单赛事更新: 头部逐字段浅合并,
// 市场组按 gameTemplateId 对账 (命中的整组替换,没出现的不动,新的追加)
func (m *StateMerger) ApplySingleEventUpdate(upd *models.SingleEventUpdate) {
	if upd.Header.EventID == nil {
		logger.Errorf("[Merger] ⚠️ single-event-update without eventId, dropped")
		return
	}
	eventID := *upd.Header.EventID

	m.mu.Lock()

	ev, exists := m.snapshot.Events[eventID]
	if !exists {
		// 没有现存记录,入站记录直接成为新条目
		ev = &models.Event{}
		m.snapshot.Events[eventID] = ev
	}
	upd.Header.ApplyTo(ev)

	if exists {
		m.snapshot.MarketsByEvent[eventID] = mergeGroups(m.snapshot.MarketsByEvent[eventID], upd.Games)
	} else {
		m.snapshot.MarketsByEvent[eventID] = upd.Games
	}

	m.notifyLocked()
	m.mu.Unlock()
}

// mergeGroups 按 gameTemplateId 对账市场组列表
func mergeGroups(existing, incoming []models.MarketGroup) []models.MarketGroup {
	merged := existing
	for _, g := range incoming {
		found := false
		for i := range merged {
			if merged[i].GameTemplateID == g.GameTemplateID {
				merged[i] = g
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, g)
		}
	}
	return merged
}

// ApplyOfferUpdate 稀疏报价补丁: 逐级定位 group -> market -> selection,
// 命中选项只改 price/state;赛事完全未知时整棵合成;
// group/market 定位不到时该片段静默跳过 (只支持整赛事粒度的合成)
func (m *StateMerger) ApplyOfferUpdate(upd *models.OfferUpdate) {
	if upd.Header.EventID == nil {
		logger.Errorf("[Merger] ⚠️ offer update without eventId, dropped")
		return
	}
	eventID := *upd.Header.EventID

	m.mu.Lock()

	ev, exists := m.snapshot.Events[eventID]
	if !exists {
		// 未知赛事: 从补丁直接合成 Event 及其市场树
		ev = &models.Event{}
		upd.Header.ApplyTo(ev)
		m.snapshot.Events[eventID] = ev
		m.snapshot.MarketsByEvent[eventID] = synthesizeGroups(upd.Positions)
		logger.Printf("[Merger] Synthesized event %d from offer patch (%d positions)", eventID, len(upd.Positions))
	} else {
		upd.Header.ApplyTo(ev)
		groups := m.snapshot.MarketsByEvent[eventID]
		for _, pos := range upd.Positions {
			applyPosition(groups, pos)
		}
	}

	m.notifyLocked()
	m.mu.Unlock()
}

// applyPosition 把一个市场的选项增量套到现有市场树上
func applyPosition(groups []models.MarketGroup, pos models.OfferPosition) {
	var group *models.MarketGroup
	for i := range groups {
		if groups[i].GameTemplateID == pos.GameTemplateID {
			group = &groups[i]
			break
		}
	}
	if group == nil {
		logger.Debugf("[Merger] Skipping patch for unknown group %d", pos.GameTemplateID)
		return
	}

	var market *models.Market
	for i := range group.Markets {
		if group.Markets[i].MarketID == pos.MarketID {
			market = &group.Markets[i]
			break
		}
	}
	if market == nil {
		logger.Debugf("[Merger] Skipping patch for unknown market %d in group %d", pos.MarketID, pos.GameTemplateID)
		return
	}

	for _, delta := range pos.Selections {
		applyDelta(market, delta)
	}
}

// applyDelta 命中选项只覆盖 price/state;新选项追加并合成名称
func applyDelta(market *models.Market, delta models.SelectionDelta) {
	for i := range market.Selections {
		if market.Selections[i].SelectionID == delta.SelectionID {
			if delta.Price != nil {
				market.Selections[i].Price = *delta.Price
			}
			if delta.State != nil {
				market.Selections[i].State = *delta.State
			}
			return
		}
	}

	market.Selections = append(market.Selections, newSelection(market.Name, delta))
}

func newSelection(marketName string, delta models.SelectionDelta) models.Selection {
	sel := models.Selection{
		SelectionID: delta.SelectionID,
		Name:        inferSelectionName(marketName, delta.SelectionID),
		State:       models.StateActive,
	}
	if delta.Price != nil {
		sel.Price = *delta.Price
	}
	if delta.State != nil {
		sel.State = *delta.State
	}
	return sel
}

// synthesizeGroups 从报价补丁整棵合成市场树 (仅未知赛事时)
func synthesizeGroups(positions []models.OfferPosition) []models.MarketGroup {
	var groups []models.MarketGroup
	for _, pos := range positions {
		var group *models.MarketGroup
		for i := range groups {
			if groups[i].GameTemplateID == pos.GameTemplateID {
				group = &groups[i]
				break
			}
		}
		if group == nil {
			groups = append(groups, models.MarketGroup{
				GameTemplateID: pos.GameTemplateID,
				Name:           pos.GroupName,
			})
			group = &groups[len(groups)-1]
		}

		var market *models.Market
		for i := range group.Markets {
			if group.Markets[i].MarketID == pos.MarketID {
				market = &group.Markets[i]
				break
			}
		}
		if market == nil {
			group.Markets = append(group.Markets, models.Market{
				MarketID: pos.MarketID,
				Name:     pos.MarketName,
				State:    models.StateActive,
			})
			market = &group.Markets[len(group.Markets)-1]
		}

		for _, delta := range pos.Selections {
			market.Selections = append(market.Selections, newSelection(market.Name, delta))
		}
	}
	return groups
}

// notifyLocked 推进 lastUpdate 并同步把完整快照交给 sink。
// 调用方必须持有 m.mu。
func (m *StateMerger) notifyLocked() {
	m.snapshot.LastUpdate = time.Now()
	if m.sink != nil {
		m.sink(m.snapshot.Clone())
	}
}
