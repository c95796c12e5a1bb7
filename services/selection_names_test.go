package services

import (
	"testing"
)

func TestSelectionOrdinal(t *testing.T) {
	cases := []struct {
		id   string
		want int
	}{
		{"4711_0", 0},
		{"4711_2", 2},
		{"4711-1", 1},
		{"4711_12", 12},
		{"4711", -1},
		{"4711_", -1},
		{"4711_x", -1},
	}
	for _, c := range cases {
		if got := selectionOrdinal(c.id); got != c.want {
			t.Errorf("selectionOrdinal(%q) = %d, want %d", c.id, got, c.want)
		}
	}
}

func TestInferSelectionName(t *testing.T) {
	cases := []struct {
		market string
		id     string
		want   string
	}{
		{"Match Result", "m_0", "1"},
		{"Match Result", "m_1", "X"},
		{"Match Result", "m_2", "2"},
		{"Double Chance", "m_0", "1X"},
		{"Double Chance", "m_1", "12"},
		{"Double Chance", "m_2", "X2"},
		{"Over/Under 2.5", "m_0", "Under"},
		{"Over/Under 2.5", "m_1", "Over"},
		{"Total Goals", "m_1", "Over"},
		// 识别不了的市场回落到 1/X/2
		{"First Corner", "m_1", "X"},
		// 序号超出表范围
		{"Match Result", "m_5", "6"},
		// 没有序号: 原样返回 id
		{"Match Result", "opaque", "opaque"},
	}
	for _, c := range cases {
		if got := inferSelectionName(c.market, c.id); got != c.want {
			t.Errorf("inferSelectionName(%q, %q) = %q, want %q", c.market, c.id, got, c.want)
		}
	}
}
