package ws

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GoCodeAlone/taskledger/comms"
)

// readData returns the payload of the next SSE "data:" line.
func readData(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read sse: %v", err)
		}
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "data: ") {
			return strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestHub_RoutesEventsByOwner(t *testing.T) {
	hub := NewHub(nil)
	bus := comms.NewInMemoryBus(0)
	detach := hub.Attach(bus)
	defer detach()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeSSE(w, r, "0xa")
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	if got := readData(t, r); got != `{"type":"connected"}` {
		t.Fatalf("first event = %s, want connected", got)
	}
	if hub.Clients() != 1 {
		t.Fatalf("Clients = %d, want 1", hub.Clients())
	}

	bus.Publish(ctx, comms.NewEvent(comms.TypeTaskCreated, "0xb", 7, "not yours", 1))
	bus.Publish(ctx, comms.NewEvent(comms.TypeTaskCreated, "0xa", 3, "yours", 1))

	var ev comms.Event
	if err := json.Unmarshal([]byte(readData(t, r)), &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Owner != "0xa" || ev.TaskID != 3 || ev.Content != "yours" {
		t.Errorf("received %+v, want 0xa's task 3", ev)
	}
}

func TestHub_DisconnectRemovesClient(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeSSE(w, r, "0xa")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	readData(t, bufio.NewReader(resp.Body))
	cancel()
	resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client still registered after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
