package models

// EventHeaderUpdate 推送里的赛事头部。字段全部用指针,
// 用于区分 "字段缺失" 和 "字段为零值": 缺失的字段在合并时必须保留旧值。
type EventHeaderUpdate struct {
	EventID     *int64  `json:"eventId"`
	SportID     *int    `json:"sportId"`
	SportName   *string `json:"sportName"`
	RegionID    *int    `json:"regionId"`
	RegionName  *string `json:"regionName"`
	LeagueID    *int    `json:"leagueId"`
	LeagueName  *string `json:"leagueName"`
	Rival1      *string `json:"rival1"`
	Rival2      *string `json:"rival2"`
	MatchTime   *string `json:"matchTime"`
	StartsAt    *int64  `json:"startsAt"`
	TopMatch    *bool   `json:"topMatch"`
	EarlyPayout *bool   `json:"earlyPayout"`
}

// ApplyTo 把非空字段覆盖到现有赛事上 (浅合并,缺失字段不动)
func (h *EventHeaderUpdate) ApplyTo(ev *Event) {
	if h.EventID != nil {
		ev.EventID = *h.EventID
	}
	if h.SportID != nil {
		ev.SportID = *h.SportID
	}
	if h.SportName != nil {
		ev.SportName = *h.SportName
	}
	if h.RegionID != nil {
		ev.RegionID = *h.RegionID
	}
	if h.RegionName != nil {
		ev.RegionName = *h.RegionName
	}
	if h.LeagueID != nil {
		ev.LeagueID = *h.LeagueID
	}
	if h.LeagueName != nil {
		ev.LeagueName = *h.LeagueName
	}
	if h.Rival1 != nil {
		ev.Rival1 = *h.Rival1
	}
	if h.Rival2 != nil {
		ev.Rival2 = *h.Rival2
	}
	if h.MatchTime != nil {
		ev.MatchTime = *h.MatchTime
	}
	if h.StartsAt != nil {
		ev.StartsAt = *h.StartsAt
	}
	if h.TopMatch != nil {
		ev.TopMatch = *h.TopMatch
	}
	if h.EarlyPayout != nil {
		ev.EarlyPayout = *h.EarlyPayout
	}
}

// SingleEventUpdate single-event-update 推送: 单个赛事的头部 + 完整市场组列表
type SingleEventUpdate struct {
	Header EventHeaderUpdate `json:"header"`
	Games  []MarketGroup     `json:"games"`
}

// OfferUpdate offer-feed-update-live 推送: 稀疏的选项级增量
type OfferUpdate struct {
	Header    EventHeaderUpdate `json:"header"`
	Positions []OfferPosition   `json:"positions"`
}

// OfferPosition 一个市场的选项增量组,只带定位用的 id,不带完整市场上下文
type OfferPosition struct {
	GameTemplateID int64            `json:"gameTemplateId"`
	GroupName      string           `json:"groupName,omitempty"`
	MarketID       int64            `json:"marketId"`
	MarketName     string           `json:"marketName,omitempty"`
	Selections     []SelectionDelta `json:"selections"`
}

// SelectionDelta 单个选项的价格/状态增量
type SelectionDelta struct {
	SelectionID string   `json:"selectionId"`
	Price       *float64 `json:"price"`
	State       *string  `json:"state"`
}
