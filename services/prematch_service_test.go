package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func TestFetchPrematchEventsPaginates(t *testing.T) {
	const pageLimit = 3
	total := 7 // 3 + 3 + 1,第三页是短页

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("mode") != "prematch" {
			t.Errorf("Expected mode=prematch, got %s", r.URL.Query().Get("mode"))
		}
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit != pageLimit {
			t.Errorf("Expected limit=%d, got %d", pageLimit, limit)
		}

		fmt.Fprint(w, `{"errorCode":null,"payload":{"events":[`)
		first := true
		for i := start; i < start+limit && i < total; i++ {
			if !first {
				fmt.Fprint(w, ",")
			}
			first = false
			fmt.Fprintf(w, `{"eventId":%d}`, i+1)
		}
		fmt.Fprint(w, `]}}`)
	}))
	defer server.Close()

	api := NewAPIClient(server.URL, validProvider("tok"))
	svc := NewPrematchService(api, NewBootstrapper(api, 5, 0, 0), pageLimit, 10)

	events, err := svc.FetchPrematchEvents(context.Background(), 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(events) != total {
		t.Errorf("Expected %d events across pages, got %d", total, len(events))
	}
	if events[6].EventID != 7 {
		t.Errorf("Expected last event id 7, got %d", events[6].EventID)
	}
}

func TestPrematchHarvestIncludesMarkets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/events" {
			fmt.Fprint(w, `{"errorCode":null,"payload":{"events":[{"eventId":1},{"eventId":2}]}}`)
			return
		}
		fmt.Fprint(w, `{"errorCode":null,"payload":[{"gameTemplateId":10,"name":"Match Result","markets":[]}]}`)
	}))
	defer server.Close()

	api := NewAPIClient(server.URL, validProvider("tok"))
	svc := NewPrematchService(api, NewBootstrapper(api, 5, 0, 0), 100, 10)

	result, err := svc.Harvest(context.Background(), 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(result.Events) != 2 || len(result.Markets) != 2 {
		t.Errorf("Expected 2 events with markets, got %d / %d", len(result.Events), len(result.Markets))
	}
}
