package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Priya8975/donate/internal/domain"
	"github.com/gorilla/websocket"
)

func setupTestHub(t *testing.T) *Hub {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	hub := NewHub(logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func connectWS(t *testing.T, hub *Hub) (*websocket.Conn, func()) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	dialer := websocket.Dialer{}
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect WebSocket: %v", err)
	}

	cleanup := func() {
		conn.Close()
		server.Close()
	}

	return conn, cleanup
}

func readEvent(t *testing.T, conn *websocket.Conn) DonationEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var event DonationEvent
	if err := json.Unmarshal(message, &event); err != nil {
		t.Fatalf("invalid message %s: %v", message, err)
	}
	return event
}

func TestHub_ClientConnects(t *testing.T) {
	hub := setupTestHub(t)

	conn, cleanup := connectWS(t, hub)
	defer cleanup()

	time.Sleep(50 * time.Millisecond)

	if count := hub.ClientCount(); count != 1 {
		t.Errorf("expected 1 client, got %d", count)
	}

	conn.Close()
	time.Sleep(50 * time.Millisecond)

	if count := hub.ClientCount(); count != 0 {
		t.Errorf("expected 0 clients after disconnect, got %d", count)
	}
}

func TestHub_TrackReachesClient(t *testing.T) {
	hub := setupTestHub(t)

	conn, cleanup := connectWS(t, hub)
	defer cleanup()

	time.Sleep(50 * time.Millisecond)

	err := hub.Track(context.Background(), domain.AnalyticsEvent{
		Name: domain.EventDonationReceived,
		Properties: map[string]string{
			"frequency":      "monthly",
			"name":           "Jane Doe",
			"email":          "jane@example.org",
			"payment_method": "Visa credit card",
		},
		Value: 123456,
	})
	if err != nil {
		t.Fatalf("Track returned error: %v", err)
	}

	event := readEvent(t, conn)
	if event.Type != domain.EventDonationReceived {
		t.Errorf("Type = %q", event.Type)
	}
	if event.Amount != "$1,234.56" || event.AmountCents != 123456 {
		t.Errorf("amount = %q (%d)", event.Amount, event.AmountCents)
	}
	if event.Frequency != "monthly" || event.DonorName != "Jane Doe" {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestHub_TrackSkipsOtherEvents(t *testing.T) {
	hub := setupTestHub(t)

	conn, cleanup := connectWS(t, hub)
	defer cleanup()

	time.Sleep(50 * time.Millisecond)

	hub.Track(context.Background(), domain.AnalyticsEvent{Name: "page_view"})
	hub.Track(context.Background(), domain.AnalyticsEvent{Name: domain.EventDonationFailed, Value: 500})

	// The first message seen must be the donation event.
	if event := readEvent(t, conn); event.Type != domain.EventDonationFailed {
		t.Errorf("expected %q, got %q", domain.EventDonationFailed, event.Type)
	}
}

func TestHub_MessagesOmitEmail(t *testing.T) {
	hub := setupTestHub(t)

	conn, cleanup := connectWS(t, hub)
	defer cleanup()

	time.Sleep(50 * time.Millisecond)

	hub.Track(context.Background(), domain.AnalyticsEvent{
		Name:       domain.EventDonationReceived,
		Properties: map[string]string{"email": "secret@example.org"},
		Value:      100,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	if strings.Contains(string(message), "secret@example.org") {
		t.Errorf("live feed leaked an email address: %s", message)
	}
}

func TestHub_MultipleClients(t *testing.T) {
	hub := setupTestHub(t)

	conn1, cleanup1 := connectWS(t, hub)
	defer cleanup1()
	conn2, cleanup2 := connectWS(t, hub)
	defer cleanup2()

	time.Sleep(50 * time.Millisecond)

	if count := hub.ClientCount(); count != 2 {
		t.Errorf("expected 2 clients, got %d", count)
	}

	hub.Broadcast(DonationEvent{Type: domain.EventDonationReceived, Amount: "$5.00"})

	for i, conn := range []*websocket.Conn{conn1, conn2} {
		if event := readEvent(t, conn); event.Amount != "$5.00" {
			t.Errorf("client %d didn't receive broadcast", i+1)
		}
	}
}

func TestHub_ClientCountStartsAtZero(t *testing.T) {
	hub := setupTestHub(t)

	if count := hub.ClientCount(); count != 0 {
		t.Errorf("expected 0 clients initially, got %d", count)
	}
}
