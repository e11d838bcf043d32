package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"job-ingest/internal/domain/job"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(log.New(io.Discard, "", 0))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_SendToUserOnlyReachesOwner(t *testing.T) {
	hub := startHub(t)
	alice := &Client{hub: hub, userID: "alice", send: make(chan []byte, 1)}
	bob := &Client{hub: hub, userID: "bob", send: make(chan []byte, 1)}
	hub.Register(alice)
	hub.Register(bob)
	waitFor(t, func() bool { return hub.ClientCount() == 2 })

	hub.SendToUser("alice", []byte("hi"))

	select {
	case msg := <-alice.send:
		if string(msg) != "hi" {
			t.Fatalf("unexpected message %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("alice did not receive the message")
	}
	select {
	case msg := <-bob.send:
		t.Fatalf("bob should not receive %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	hub := startHub(t)
	slow := &Client{hub: hub, userID: "carol", send: make(chan []byte)}
	hub.Register(slow)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.SendToUser("carol", []byte("x"))
	waitFor(t, func() bool { return hub.ClientCount() == 0 })

	if _, ok := <-slow.send; ok {
		t.Fatalf("send channel should be closed")
	}
}

func TestNotifier_DeliversJobEnrichedOverWebsocket(t *testing.T) {
	hub := startHub(t)
	h := NewHandler(hub, nil, nil)
	userID := uuid.New()

	srv := httptest.NewServer(h.serve(userID.String()))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	title := "Data Engineer"
	NewNotifier(hub).JobEnriched(job.Record{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    job.StatusEnriched,
		Extracted: job.Extracted{Title: &title},
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var evt JobEnrichedEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if evt.Type != "job_enriched" || evt.JobTitle != title || evt.Company != job.UnknownCompany || evt.Status != "enriched" {
		t.Fatalf("unexpected event: %+v", evt)
	}
}
