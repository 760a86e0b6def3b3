package feed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn := dialHub(t, url)
	time.Sleep(50 * time.Millisecond) // registration is async

	want := Event{Type: EventOrderSettled, MerchantID: "m1", BusinessDate: "2025-06-14", Total: 1283}
	hub.Broadcast(want)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != want.Type || got.Total != want.Total {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestHub_EvictsFailedClientKeepsOthers(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	dead := dialHub(t, url)
	alive := dialHub(t, url)
	time.Sleep(50 * time.Millisecond)

	// Drop one client's transport without a close handshake; its next
	// broadcast writes fail and the hub must evict it without disturbing
	// the surviving client.
	dead.UnderlyingConn().Close()

	for i := 0; i < 5; i++ {
		hub.Broadcast(Event{Type: EventOrderSettled, MerchantID: "m1"})
		time.Sleep(20 * time.Millisecond)
	}
	hub.Broadcast(Event{Type: EventDayCompleted, MerchantID: "m1", OrderCount: 7})

	alive.SetReadDeadline(time.Now().Add(2 * time.Second))
	sawCompleted := false
	for !sawCompleted {
		_, data, err := alive.ReadMessage()
		if err != nil {
			t.Fatalf("surviving client read: %v", err)
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if ev.Type == EventDayCompleted {
			if ev.OrderCount != 7 {
				t.Errorf("order_count = %d, want 7", ev.OrderCount)
			}
			sawCompleted = true
		}
	}
}
