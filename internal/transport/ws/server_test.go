package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tarkovtracker.org/internal/protocol"
	"tarkovtracker.org/internal/tracker/catalog"
	"tarkovtracker.org/internal/tracker/metadata"
)

func dial(t *testing.T, stores map[string]*metadata.Store) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(NewServer(stores, nil).Handler())
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readVersion(t *testing.T, conn *websocket.Conn) protocol.VersionMsg {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m protocol.VersionMsg
	if err := json.Unmarshal(b, &m); err != nil || m.Type != protocol.TypeVersion {
		t.Fatalf("expected VERSION, got %s (%v)", b, err)
	}
	return m
}

func TestFeed_PushesVersions(t *testing.T) {
	store := metadata.NewStore(metadata.Config{Mode: "regular", Lang: "en"})
	store.SetTasks([]catalog.Task{{ID: "t1", Name: "Debut"}})
	conn := dial(t, map[string]*metadata.Store{"regular": store})

	send(t, conn, protocol.SubscribeMsg{Type: protocol.TypeSubscribe, ProtocolVersion: protocol.Version})
	first := readVersion(t, conn)
	if first.Mode != "regular" || !first.Ready || first.Version == 0 {
		t.Fatalf("initial: %+v", first)
	}

	store.SetTraders([]catalog.Trader{{ID: "prapor", Name: "Prapor"}})
	next := readVersion(t, conn)
	if next.Version <= first.Version {
		t.Fatalf("version did not advance: %d -> %d", first.Version, next.Version)
	}

	// resync
	send(t, conn, protocol.SubscribeMsg{Type: protocol.TypeSubscribe, ProtocolVersion: protocol.Version})
	if again := readVersion(t, conn); again.Version != next.Version {
		t.Fatalf("resync: %+v", again)
	}
}

func TestFeed_RejectsUnknownMode(t *testing.T) {
	store := metadata.NewStore(metadata.Config{Mode: "regular"})
	conn := dial(t, map[string]*metadata.Store{"regular": store})

	send(t, conn, protocol.SubscribeMsg{Type: protocol.TypeSubscribe, ProtocolVersion: protocol.Version, Modes: []string{"arena"}})
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m protocol.ErrorMsg
	if err := json.Unmarshal(b, &m); err != nil || m.Code != protocol.ErrUnknownMode {
		t.Fatalf("expected unknown mode error, got %s", b)
	}
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected connection to close")
	}
}

func TestFeed_RequiresSubscribe(t *testing.T) {
	store := metadata.NewStore(metadata.Config{Mode: "regular"})
	conn := dial(t, map[string]*metadata.Store{"regular": store})

	send(t, conn, map[string]string{"type": "HELLO", "protocol_version": protocol.Version})
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}
