package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"oddsfeed-service/config"
	"oddsfeed-service/models"
)

func testConfig(apiURL, feedURL string) *config.Config {
	return &config.Config{
		APIBaseURL:       apiURL,
		FeedURL:          feedURL,
		AccessToken:      "tok",
		TokenTTL:         time.Hour,
		HandshakeTimeout: time.Second,
		ConnectTimeout:   time.Second,
		ReconnectDelay:   time.Hour,
	}
}

func TestStartLiveExtractionEndToEnd(t *testing.T) {
	// REST 端: 2 个赛事,各一组市场
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/events" {
			fmt.Fprint(w, `{"errorCode":null,"payload":{"events":[{"eventId":7,"rival1":"A","rival2":"B"},{"eventId":8,"rival1":"C","rival2":"D"}]}}`)
			return
		}
		fmt.Fprint(w, `{"errorCode":null,"payload":[{"gameTemplateId":100,"name":"Match Result","markets":[]}]}`)
	}))
	defer apiServer.Close()

	// 推送端: 完成握手,收订阅帧,然后推一条单赛事更新
	subFrames := make(chan string, 16)
	feedServer := mockFeedServer(t, func(conn *websocket.Conn) {
		// 客户端先发 "40"
		if _, data, err := conn.ReadMessage(); err != nil || string(data) != "40" {
			t.Errorf("Expected connect frame first, got %q (err=%v)", data, err)
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`0{"pingInterval":25000}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`40{"sid":"s1"}`))

		// 收 4 条订阅帧 (运动项目级 2 条 + 赛事级 2 条)
		for i := 0; i < 4; i++ {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			subFrames <- string(data)
		}

		conn.WriteMessage(websocket.TextMessage,
			[]byte(`42["single-event-update","{\"header\":{\"eventId\":7,\"matchTime\":\"55:00\"},\"games\":[]}"]`))
		time.Sleep(200 * time.Millisecond)
	})
	defer feedServer.Close()

	var sinkCalls int32
	creds := NewCredentialProviderWith(nil, &models.Credential{
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour),
	})

	extractor := NewLiveExtractor(testConfig(apiServer.URL, wsURL(feedServer)), creds,
		func(s *models.Snapshot) { atomic.AddInt32(&sinkCalls, 1) },
		func(err error) { t.Logf("extraction error: %v", err) },
	)
	defer extractor.StopLiveExtraction()

	if err := extractor.StartLiveExtraction(context.Background(), 1); err != nil {
		t.Fatalf("Unexpected start error: %v", err)
	}

	// 引导完成: 快照已播种
	snap := extractor.Snapshot()
	if len(snap.Events) != 2 {
		t.Fatalf("Expected 2 seeded events, got %d", len(snap.Events))
	}
	if len(snap.MarketsByEvent[7]) != 1 {
		t.Errorf("Expected 1 market group for event 7, got %d", len(snap.MarketsByEvent[7]))
	}

	// 推送合并进来
	waitFor(t, func() bool { return extractor.Snapshot().Events[7].MatchTime == "55:00" })

	// 头部浅合并: 推送没带的字段不丢
	if got := extractor.Snapshot().Events[7].Rival1; got != "A" {
		t.Errorf("Expected rival1 preserved through push merge, got '%s'", got)
	}

	// 播种 1 次 + 推送合并 1 次
	if got := atomic.LoadInt32(&sinkCalls); got != 2 {
		t.Errorf("Expected 2 sink calls, got %d", got)
	}

	// 订阅集: 运动项目级 + 两个赛事
	close(subFrames)
	var all []string
	for f := range subFrames {
		all = append(all, f)
	}
	joined := strings.Join(all, "\n")
	for _, want := range []string{`\"sportId\":1`, `\"eventId\":7`, `\"eventId\":8`} {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected subscription frames to contain %s, got:\n%s", want, joined)
		}
	}

	extractor.StopLiveExtraction()

	// 停止后快照保留可读
	if len(extractor.Snapshot().Events) != 2 {
		t.Error("Expected snapshot to remain readable after stop")
	}
	if extractor.FeedState() != StateDisconnected {
		t.Errorf("Expected Disconnected after stop, got %s", extractor.FeedState())
	}
}

func TestStartLiveExtractionFailsWithoutCredential(t *testing.T) {
	var errCalls int32
	creds := NewCredentialProvider(func(ctx context.Context, current *models.Credential) (*models.Credential, error) {
		return nil, fmt.Errorf("login automation unavailable")
	})

	extractor := NewLiveExtractor(testConfig("http://127.0.0.1:0", "ws://127.0.0.1:0"), creds,
		nil,
		func(err error) { atomic.AddInt32(&errCalls, 1) },
	)

	err := extractor.StartLiveExtraction(context.Background(), 1)
	if err == nil {
		t.Fatal("Expected error when no credential can be obtained")
	}
	if !strings.Contains(err.Error(), "credential") {
		t.Errorf("Expected credential error, got: %v", err)
	}
	if atomic.LoadInt32(&errCalls) != 1 {
		t.Errorf("Expected error callback invoked once, got %d", errCalls)
	}
}
