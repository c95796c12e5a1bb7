package services

import (
	"testing"
)

func TestParseOpenFrame(t *testing.T) {
	payload, err := parseOpenFrame(`0{"sid":"s1","pingInterval":20000,"pingTimeout":5000}`)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if payload.PingInterval != 20000 {
		t.Errorf("Expected pingInterval 20000, got %d", payload.PingInterval)
	}
}

func TestParseOpenFrameDefaultsPingInterval(t *testing.T) {
	payload, err := parseOpenFrame(`0{"sid":"s1"}`)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if payload.PingInterval != defaultPingIntervalMs {
		t.Errorf("Expected default pingInterval %d, got %d", defaultPingIntervalMs, payload.PingInterval)
	}
}

func TestParseConnectAck(t *testing.T) {
	sid, ok := parseConnectAck(`40{"sid":"abc"}`)
	if !ok || sid != "abc" {
		t.Errorf("Expected sid 'abc', got '%s' (ok=%v)", sid, ok)
	}

	// 裸 "40" 是中间确认,不算握手完成
	if _, ok := parseConnectAck(`40`); ok {
		t.Error("Expected bare '40' to not complete handshake")
	}
}

func TestParseEventFrameDoubleDecodes(t *testing.T) {
	frame := `42["single-event-update","{\"header\":{\"eventId\":7},\"games\":[]}"]`
	name, payload, err := parseEventFrame(frame)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if name != "single-event-update" {
		t.Errorf("Expected event name 'single-event-update', got '%s'", name)
	}
	// 第一次反序列化后应得到内层 JSON 文本
	if payload != `{"header":{"eventId":7},"games":[]}` {
		t.Errorf("Unexpected inner payload: %s", payload)
	}
}

func TestParseEventFrameRejectsMalformed(t *testing.T) {
	if _, _, err := parseEventFrame(`42[not json`); err == nil {
		t.Error("Expected error for malformed frame")
	}
	if _, _, err := parseEventFrame(`42["only-one-element"]`); err == nil {
		t.Error("Expected error for wrong element count")
	}
}

func TestBuildSubscriptionFrameEscapesQuotes(t *testing.T) {
	frame := buildSubscriptionFrame(`{"type":"live-update","sportId":1}`)
	want := `42["subscriptions","{\"type\":\"live-update\",\"sportId\":1}"]`
	if frame != want {
		t.Errorf("Unexpected frame:\n got  %s\n want %s", frame, want)
	}
}

func TestSportOfferSubscriptionCarriesGroupSelector(t *testing.T) {
	inner := sportOfferSubscription(3)
	want := `{"type":"offer-feed-update-live","sportId":3,"groupIndices":[0,0,0]}`
	if inner != want {
		t.Errorf("Unexpected subscription payload:\n got  %s\n want %s", inner, want)
	}
}
