package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"carla-relay-go/internal/config"
	"carla-relay-go/internal/metrics"
	"carla-relay-go/internal/types"
)

func testConfig() config.AppConfig {
	cfg := config.Defaults()
	cfg.PeerHost = "10.1.1.1"
	cfg.PeerPort = 2000
	cfg.MonitorPort = 9999
	return cfg
}

func TestHandleConfig(t *testing.T) {
	srv := newServer(testConfig(), nil, nil)

	req := httptest.NewRequest("GET", "/config", nil)
	rec := httptest.NewRecorder()
	srv.handleConfig(rec, req)

	if rec.Code != 200 {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if payload["peer"] != "10.1.1.1:2000" {
		t.Fatalf("unexpected peer: %v", payload["peer"])
	}
	if payload["width"].(float64) != 640 {
		t.Fatalf("unexpected width: %v", payload["width"])
	}
	if payload["port"].(float64) != 9999 {
		t.Fatalf("unexpected port: %v", payload["port"])
	}
}

func TestHandleStatus(t *testing.T) {
	statusFn := func() types.UIStatus {
		return types.UIStatus{
			Type:    "status",
			Session: "abc",
			Stages:  map[string]types.StageStats{"raw_frames": {Pushed: 10, Dropped: 4}},
		}
	}
	srv := newServer(testConfig(), statusFn, nil)

	rec := httptest.NewRecorder()
	srv.handleStatus(rec, httptest.NewRequest("GET", "/status", nil))

	var payload struct {
		Status    types.UIStatus `json:"status"`
		WSClients int            `json:"ws_clients"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status.Session != "abc" || payload.Status.Stages["raw_frames"].Dropped != 4 {
		t.Fatalf("unexpected status: %+v", payload.Status)
	}
	if payload.WSClients != 0 {
		t.Fatalf("unexpected client count %d", payload.WSClients)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.Register()
	metrics.FramesEncoded.Inc()

	srv := newServer(testConfig(), nil, nil)
	handler, err := srv.routes()
	if err != nil {
		t.Fatalf("routes error: %v", err)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "relay_frames_encoded_total") {
		t.Fatalf("metrics output missing relay counters")
	}
}

func TestBroadcastBinaryAndJSON(t *testing.T) {
	srv := newServer(testConfig(), nil, nil)
	handler, err := srv.routes()
	if err != nil {
		t.Fatalf("routes error: %v", err)
	}
	ts := httptest.NewServer(handler)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var hello map[string]any
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read config: %v", err)
	}
	if hello["type"] != "config" {
		t.Fatalf("first message should be config, got %v", hello)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	messages := make(chan any, 2)
	go srv.broadcast(ctx, messages)
	messages <- []byte{0xff, 0xd8, 0xff}
	messages <- types.UIStatus{Type: "status", Session: "s1"}

	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read preview: %v", err)
	}
	if kind != websocket.BinaryMessage || len(data) != 3 {
		t.Fatalf("expected binary preview, got kind %d len %d", kind, len(data))
	}

	kind, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	var status types.UIStatus
	if kind != websocket.TextMessage || json.Unmarshal(data, &status) != nil || status.Session != "s1" {
		t.Fatalf("unexpected status message %d %s", kind, data)
	}
}
