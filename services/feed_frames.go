package services

import (
	"encoding/json"
	"fmt"
	"strings"
)

// 推送协议帧词汇表 (文本帧)
const (
	framePing    = "2"  // 客户端心跳
	framePong    = "3"  // 服务端心跳应答
	frameConnect = "40" // 加入默认命名空间

	prefixOpen     = "0"   // 握手首帧,JSON 里带 pingInterval
	prefixEventMsg = "42[" // 事件帧,后跟 [eventName, payload] 二元数组
)

// 识别的事件名
const (
	eventSubscriptions     = "subscriptions"
	eventSingleEventUpdate = "single-event-update"
	eventOfferUpdate       = "offer-feed-update-live"
)

// defaultPingIntervalMs 握手帧未携带 pingInterval 时的默认心跳间隔
const defaultPingIntervalMs = 25000

// openPayload 握手首帧 "0{...}" 的 JSON 部分
type openPayload struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// connectAck 握手确认帧 "40{...}" 的 JSON 部分
type connectAck struct {
	SID string `json:"sid"`
}

// parseOpenFrame 解析 "0{...}" 帧,返回心跳间隔 (缺省 25000ms)
func parseOpenFrame(frame string) (openPayload, error) {
	payload := openPayload{PingInterval: defaultPingIntervalMs}
	raw := strings.TrimPrefix(frame, prefixOpen)
	if raw == "" {
		return payload, nil
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return payload, fmt.Errorf("malformed open frame: %w", err)
	}
	if payload.PingInterval <= 0 {
		payload.PingInterval = defaultPingIntervalMs
	}
	return payload, nil
}

// parseConnectAck 解析 "40{...}" 帧的会话 id。
// 裸 "40" 是中间确认,没有 sid,不算握手完成。
func parseConnectAck(frame string) (string, bool) {
	raw := strings.TrimPrefix(frame, frameConnect)
	if raw == "" {
		return "", false
	}
	var ack connectAck
	if err := json.Unmarshal([]byte(raw), &ack); err != nil {
		return "", false
	}
	return ack.SID, true
}

// parseEventFrame 解析 "42[...]" 事件帧。
// 外层是 [eventName, payload] 二元数组,payload 本身是再编码过一次的
// JSON 字符串,第一次反序列化后得到内层 JSON 文本。
func parseEventFrame(frame string) (name string, payload string, err error) {
	raw := strings.TrimPrefix(frame, "42")
	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &parts); err != nil {
		return "", "", fmt.Errorf("malformed event frame: %w", err)
	}
	if len(parts) != 2 {
		return "", "", fmt.Errorf("event frame has %d elements, want 2", len(parts))
	}
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return "", "", fmt.Errorf("malformed event name: %w", err)
	}
	if err := json.Unmarshal(parts[1], &payload); err != nil {
		return "", "", fmt.Errorf("malformed event payload: %w", err)
	}
	return name, payload, nil
}

// buildSubscriptionFrame 手工拼装订阅帧。内层 JSON 的引号转义后
// 直接拼进外层字符串,不走外层 JSON 编码器。
func buildSubscriptionFrame(inner string) string {
	escaped := strings.ReplaceAll(inner, `"`, `\"`)
	return `42["subscriptions","` + escaped + `"]`
}

// sportLiveSubscription 全运动项目滚球更新订阅
func sportLiveSubscription(sportID int) string {
	return fmt.Sprintf(`{"type":"live-update","sportId":%d}`, sportID)
}

// sportOfferSubscription 运动项目级报价更新订阅,组索引选择器固定为 [0,0,0]
func sportOfferSubscription(sportID int) string {
	return fmt.Sprintf(`{"type":"offer-feed-update-live","sportId":%d,"groupIndices":[0,0,0]}`, sportID)
}

// eventSubscription 单赛事更新订阅,选择全部市场组
func eventSubscription(eventID int64) string {
	return fmt.Sprintf(`{"type":"single-event-update","eventId":%d,"gameGroupId":"all"}`, eventID)
}
