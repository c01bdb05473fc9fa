package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func recv(t *testing.T, s *Subscription) []byte {
	t.Helper()
	select {
	case b := <-s.C():
		return b
	case <-time.After(time.Second):
		t.Fatalf("no frame for %s", s.UserID)
		return nil
	}
}

func TestHub_PublishToUserAndBroadcast(t *testing.T) {
	h := NewHub(4)
	a1 := h.Subscribe("alice")
	a2 := h.Subscribe("alice")
	b := h.Subscribe("bob")
	if h.Connections() != 3 {
		t.Fatalf("Connections = %d", h.Connections())
	}

	if err := h.Publish(context.Background(), "alice", Event{Event: EventNotification, Data: map[string]string{"message": "hi"}}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	for _, s := range []*Subscription{a1, a2} {
		var ev struct {
			Event string            `json:"event"`
			Data  map[string]string `json:"data"`
		}
		if err := json.Unmarshal(recv(t, s), &ev); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if ev.Event != "notification" || ev.Data["message"] != "hi" {
			t.Fatalf("frame = %+v", ev)
		}
	}
	select {
	case <-b.C():
		t.Fatalf("bob must not receive alice's event")
	default:
	}

	if n := h.Deliver("", []byte(`{}`)); n != 3 {
		t.Fatalf("broadcast delivered to %d, want 3", n)
	}
}

func TestHub_DropsWhenQueueFull(t *testing.T) {
	h := NewHub(1)
	s := h.Subscribe("u")
	before := testutil.ToFloat64(dropped)
	if n := h.Deliver("u", []byte("1")); n != 1 {
		t.Fatalf("first deliver = %d", n)
	}
	if n := h.Deliver("u", []byte("2")); n != 0 {
		t.Fatalf("second deliver should be dropped, got %d", n)
	}
	if got := testutil.ToFloat64(dropped) - before; got != 1 {
		t.Fatalf("dropped delta = %v", got)
	}
	if string(recv(t, s)) != "1" {
		t.Fatalf("queued frame lost")
	}
}

func TestHub_UnsubscribeAndClose(t *testing.T) {
	h := NewHub(1)
	s := h.Subscribe("u")
	h.Unsubscribe(s)
	h.Unsubscribe(s)
	if _, ok := <-s.C(); ok {
		t.Fatalf("channel should be closed")
	}
	if h.Deliver("u", []byte("x")) != 0 || h.Connections() != 0 {
		t.Fatalf("unsubscribed queue still registered")
	}

	s2 := h.Subscribe("v")
	h.Close()
	h.Close()
	if _, ok := <-s2.C(); ok {
		t.Fatalf("Close should end subscriptions")
	}
	late := h.Subscribe("w")
	if _, ok := <-late.C(); ok {
		t.Fatalf("subscribe after Close should be closed")
	}
	h.Unsubscribe(late)
}

func TestServe_WritesHelloAndEvents(t *testing.T) {
	h := NewHub(4)
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Serve(r.Context(), conn, "u1", time.Second)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	_ = c.SetReadDeadline(time.Now().Add(3 * time.Second))

	_, hello, err := c.ReadMessage()
	if err != nil || !strings.Contains(string(hello), `"event":"connected"`) {
		t.Fatalf("hello = %s, %v", hello, err)
	}

	deadline := time.Now().Add(time.Second)
	for h.Connections() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	_ = h.Publish(context.Background(), "u1", Event{Event: EventNotification, Data: map[string]string{"message": "ping"}})
	_, frame, err := c.ReadMessage()
	if err != nil || !strings.Contains(string(frame), `"message":"ping"`) {
		t.Fatalf("frame = %s, %v", frame, err)
	}

	h.Close()
	if _, _, err := c.ReadMessage(); err == nil {
		t.Fatalf("expected close after hub shutdown")
	}
}

func TestRedisBroker_HandleDeliversLocally(t *testing.T) {
	h := NewHub(2)
	s := h.Subscribe("u1")
	b := &RedisBroker{hub: h, channel: DefaultChannel}

	b.handle(`{"userId":"u1","frame":{"event":"notification","data":{"message":"x"}}}`)
	if got := string(recv(t, s)); got != `{"event":"notification","data":{"message":"x"}}` {
		t.Fatalf("frame = %s", got)
	}
	b.handle(`not json`)
	b.handle(`{"userId":"u1"}`)
	select {
	case f := <-s.C():
		t.Fatalf("malformed payload delivered: %s", f)
	default:
	}
}

func TestNewRedisBroker_BadURL(t *testing.T) {
	if _, err := NewRedisBroker(context.Background(), "not-a-url", NewHub(1)); err == nil {
		t.Fatalf("expected parse error")
	}
}
