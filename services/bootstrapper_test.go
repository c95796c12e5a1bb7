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

	"oddsfeed-service/models"
)

func marketsHandler(t *testing.T, inFlight, maxInFlight *int32, failEvent string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cur := atomic.AddInt32(inFlight, 1)
		defer atomic.AddInt32(inFlight, -1)
		for {
			max := atomic.LoadInt32(maxInFlight)
			if cur <= max || atomic.CompareAndSwapInt32(maxInFlight, max, cur) {
				break
			}
		}

		parts := strings.Split(r.URL.Path, "/")
		eventID := parts[2]
		if eventID == failEvent {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		time.Sleep(30 * time.Millisecond)
		fmt.Fprintf(w, `{"errorCode":null,"payload":[{"gameTemplateId":%s,"name":"Match Result","markets":[]}]}`, eventID)
	}
}

func makeEvents(n int) []models.Event {
	events := make([]models.Event, n)
	for i := range events {
		events[i] = models.Event{EventID: int64(i + 1)}
	}
	return events
}

func TestHarvestMarketsConcurrencyBound(t *testing.T) {
	var inFlight, maxInFlight int32
	server := httptest.NewServer(marketsHandler(t, &inFlight, &maxInFlight, ""))
	defer server.Close()

	const batchPause = 100 * time.Millisecond
	boot := NewBootstrapper(NewAPIClient(server.URL, validProvider("tok")), 5, time.Millisecond, batchPause)

	// 12 个赛事、批大小 5 -> 3 批、2 次批间停顿
	events := makeEvents(12)
	start := time.Now()
	result := boot.HarvestMarkets(context.Background(), events)
	elapsed := time.Since(start)

	if len(result) != 12 {
		t.Errorf("Expected markets for 12 events, got %d", len(result))
	}
	if got := atomic.LoadInt32(&maxInFlight); got > 5 {
		t.Errorf("Expected at most 5 concurrent fetches, observed %d", got)
	}
	if elapsed < 2*batchPause {
		t.Errorf("Expected elapsed >= %s for 3 batches, got %s", 2*batchPause, elapsed)
	}
}

func TestHarvestMarketsDegradesFailedEventToEmptyList(t *testing.T) {
	var inFlight, maxInFlight int32
	server := httptest.NewServer(marketsHandler(t, &inFlight, &maxInFlight, "3"))
	defer server.Close()

	boot := NewBootstrapper(NewAPIClient(server.URL, validProvider("tok")), 5, 0, 0)

	result := boot.HarvestMarkets(context.Background(), makeEvents(5))

	if len(result) != 5 {
		t.Fatalf("Expected results for all 5 events, got %d", len(result))
	}
	if len(result[3]) != 0 {
		t.Errorf("Expected failed event 3 to degrade to empty market list, got %d groups", len(result[3]))
	}
	if len(result[1]) != 1 {
		t.Errorf("Expected event 1 to have markets, got %d groups", len(result[1]))
	}
}

func TestBootstrapFetchesEventsAndMarkets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/events" {
			fmt.Fprint(w, `{"errorCode":null,"payload":{"events":[{"eventId":1},{"eventId":2}]}}`)
			return
		}
		fmt.Fprint(w, `{"errorCode":null,"payload":[]}`)
	}))
	defer server.Close()

	boot := NewBootstrapper(NewAPIClient(server.URL, validProvider("tok")), 5, 0, 0)
	events, markets, err := boot.Bootstrap(context.Background(), 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(events) != 2 || len(markets) != 2 {
		t.Errorf("Expected 2 events and 2 market sets, got %d / %d", len(events), len(markets))
	}
}
