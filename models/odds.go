package models

import (
	"time"
)

// 市场/盘口生命周期状态
const (
	StateActive    = "ACTIVE"
	StateSuspended = "SUSPENDED"
	StateRemoved   = "REMOVED"
)

// Event 一场正在售卖的赛事 (含头部信息)
type Event struct {
	EventID int64 `json:"eventId"`

	// 分类信息
	SportID    int    `json:"sportId"`
	SportName  string `json:"sportName,omitempty"`
	RegionID   int    `json:"regionId"`
	RegionName string `json:"regionName,omitempty"`
	LeagueID   int    `json:"leagueId"`
	LeagueName string `json:"leagueName,omitempty"`

	// 对阵双方
	Rival1 string `json:"rival1"`
	Rival2 string `json:"rival2"`

	// 比赛时间信息
	MatchTime string `json:"matchTime,omitempty"` // 比赛时钟 MM:SS
	StartsAt  int64  `json:"startsAt,omitempty"`  // 开赛时间戳 (毫秒)

	// 标记
	TopMatch    bool `json:"topMatch"`
	EarlyPayout bool `json:"earlyPayout"`
}

// MarketGroup 一个赛事下的一组同类市场 (如 "Match Result")
type MarketGroup struct {
	GameTemplateID int64    `json:"gameTemplateId"`
	Name           string   `json:"name"`
	Priority       int      `json:"priority"`
	EarlyPayout    bool     `json:"earlyPayout"`
	Markets        []Market `json:"markets"`
}

// Market 组内的单个可投注市场
type Market struct {
	MarketID   int64       `json:"marketId"`
	Name       string      `json:"name"`
	State      string      `json:"state"`
	OverUnder  *float64    `json:"overUnder,omitempty"` // 大小球盘口线
	Handicap   *float64    `json:"handicap,omitempty"`  // 让球盘口线
	Selections []Selection `json:"selections"`
}

// Selection 市场内的单个玩法选项
type Selection struct {
	// SelectionID 末尾带序号 (如 "4711_0"),推送省略名称时用于推断展示名
	SelectionID string  `json:"selectionId"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	State       string  `json:"state"`
}

// Snapshot 当前所有被跟踪赛事/市场/选项的完整内存视图
type Snapshot struct {
	Events         map[int64]*Event        `json:"events"`
	MarketsByEvent map[int64][]MarketGroup `json:"marketsByEvent"`
	LastUpdate     time.Time               `json:"lastUpdate"`
}

// NewSnapshot 创建空快照
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Events:         make(map[int64]*Event),
		MarketsByEvent: make(map[int64][]MarketGroup),
	}
}

// Clone 深拷贝快照,交给消费方时使用,避免外部读到合并中的状态
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Events:         make(map[int64]*Event, len(s.Events)),
		MarketsByEvent: make(map[int64][]MarketGroup, len(s.MarketsByEvent)),
		LastUpdate:     s.LastUpdate,
	}
	for id, ev := range s.Events {
		evCopy := *ev
		c.Events[id] = &evCopy
	}
	for id, groups := range s.MarketsByEvent {
		c.MarketsByEvent[id] = cloneGroups(groups)
	}
	return c
}

func cloneGroups(groups []MarketGroup) []MarketGroup {
	out := make([]MarketGroup, len(groups))
	for i, g := range groups {
		out[i] = g
		out[i].Markets = make([]Market, len(g.Markets))
		for j, m := range g.Markets {
			out[i].Markets[j] = m
			if m.OverUnder != nil {
				v := *m.OverUnder
				out[i].Markets[j].OverUnder = &v
			}
			if m.Handicap != nil {
				v := *m.Handicap
				out[i].Markets[j].Handicap = &v
			}
			out[i].Markets[j].Selections = make([]Selection, len(m.Selections))
			copy(out[i].Markets[j].Selections, m.Selections)
		}
	}
	return out
}
