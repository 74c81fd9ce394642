package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gamst-shin/goldmine-test/models"
	"github.com/gamst-shin/goldmine-test/storage"
	"github.com/gamst-shin/goldmine-test/utils"
)

func seededServer(t *testing.T) *Server {
	t.Helper()
	store := storage.NewMemStore()

	items := []*models.AuctionItem{
		{
			URL: "https://auction.example/item/1", Title: "24K 골드바 10돈",
			Location: "서울보관소", Price: 1200000,
			Material: models.MaterialGold, Purity: models.Purity24K, WeightG: 37.5,
		},
		{
			URL: "https://auction.example/item/2", Title: "실버 브로치",
			Description: "은 장신구", Location: "부산보관소", Price: 50000,
			Material: models.MaterialSilver, Purity: models.PuritySilver, WeightG: 20,
		},
	}
	for _, it := range items {
		if err := store.UpsertItem(it); err != nil {
			t.Fatalf("seed item: %v", err)
		}
	}

	if _, err := store.InsertHistory(&models.HistoryRecord{
		Season: 15, Title: "24K 목걸이", Price: 800000, Weight: 7.5,
		PurityInfo: "순금 999", URL: "https://auction.example/past/1",
	}); err != nil {
		t.Fatalf("seed history: %v", err)
	}

	return NewServer(store, store, utils.NewLogger())
}

func getJSON(t *testing.T, srv *Server, path string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return rec.Code
}

func TestItemsEndpointReturnsAll(t *testing.T) {
	srv := seededServer(t)

	var resp itemsResponse
	if code := getJSON(t, srv, "/api/items", &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.Total != 2 || len(resp.Items) != 2 {
		t.Fatalf("total = %d, items = %d; want 2/2", resp.Total, len(resp.Items))
	}
}

func TestItemsEndpointQueryFilter(t *testing.T) {
	srv := seededServer(t)

	var resp itemsResponse
	if code := getJSON(t, srv, "/api/items?q=24k", &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.Total != 1 {
		t.Fatalf("total = %d; want 1", resp.Total)
	}
	if resp.Items[0].Title != "24K 골드바 10돈" {
		t.Errorf("title = %q", resp.Items[0].Title)
	}

	// Description matches too.
	if code := getJSON(t, srv, "/api/items?q=장신구", &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.Total != 1 || resp.Items[0].Purity != "SILVER" {
		t.Errorf("description search: total = %d", resp.Total)
	}
}

func TestItemsEndpointRegionFilter(t *testing.T) {
	srv := seededServer(t)

	var resp itemsResponse
	if code := getJSON(t, srv, "/api/items?region=부산", &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.Total != 1 || resp.Items[0].Location != "부산보관소" {
		t.Errorf("region filter: %+v", resp)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv := seededServer(t)

	var resp historyResponse
	if code := getJSON(t, srv, "/api/history", &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.Total != 1 || resp.Records[0].Season != 15 {
		t.Errorf("history: %+v", resp)
	}
}

// Cancelling the context must stop the listener; a SIGINT-driven
// context would otherwise leave the serve task hanging.
func TestListenAndServeStopsOnContextCancel(t *testing.T) {
	srv := seededServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("shutdown returned %v; want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after context cancel")
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := seededServer(t)

	var resp map[string]string
	if code := getJSON(t, srv, "/healthz", &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp["status"] != "ok" {
		t.Errorf("health = %v", resp)
	}
}
