package services

import (
	"strconv"
	"strings"
)

// 按市场名推断选项展示名的序号表。推送经常省略选项名,
// 只能从 selectionId 末尾的序号加市场名猜一个展示名。
// 这只是尽力而为的展示用途,不承诺覆盖所有市场类型。
var (
	labelsThreeWay     = []string{"1", "X", "2"}
	labelsDoubleChance = []string{"1X", "12", "X2"}
	labelsOverUnder    = []string{"Under", "Over"}
)

// selectionOrdinal 取 selectionId 末尾的数字序号 (如 "4711_2" -> 2)。
// 没有序号时返回 -1。
func selectionOrdinal(selectionID string) int {
	idx := strings.LastIndexAny(selectionID, "_-")
	if idx < 0 || idx == len(selectionID)-1 {
		return -1
	}
	ord, err := strconv.Atoi(selectionID[idx+1:])
	if err != nil || ord < 0 {
		return -1
	}
	return ord
}

// inferSelectionName 按市场名 + 序号推断选项展示名。
// 识别不了的市场回落到 1/X/2 默认表。
func inferSelectionName(marketName, selectionID string) string {
	ord := selectionOrdinal(selectionID)
	if ord < 0 {
		return selectionID
	}

	var labels []string
	lower := strings.ToLower(marketName)
	switch {
	case strings.Contains(lower, "double chance"):
		labels = labelsDoubleChance
	case strings.Contains(lower, "over/under"), strings.Contains(lower, "total"):
		labels = labelsOverUnder
	default:
		labels = labelsThreeWay
	}

	if ord < len(labels) {
		return labels[ord]
	}
	return strconv.Itoa(ord + 1)
}
