package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// awaitPong envia um ping e espera o pong, garantindo que mensagens anteriores
// já foram processadas pelo loop da conexão.
func awaitPong(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	if err := conn.WriteJSON(ClientMsg{Type: "ping"}); err != nil {
		t.Fatalf("ping: %v", err)
	}
	var pong map[string]string
	if err := conn.ReadJSON(&pong); err != nil || pong["type"] != "pong" {
		t.Fatalf("pong: %v (%v)", err, pong)
	}
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(func(r *http.Request) bool { return true })
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	perBet := dial(t, srv)
	if err := perBet.WriteJSON(ClientMsg{Type: "subscribe", BetID: "b1"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	awaitPong(t, perBet)

	whole := dial(t, srv)
	if err := whole.WriteJSON(ClientMsg{Type: "subscribe"}); err != nil {
		t.Fatalf("subscribe all: %v", err)
	}
	awaitPong(t, whole)

	hub.Broadcast(FeedUpdate{Type: "bet_placed", BetID: "b1", Payload: map[string]string{"option": "Yes"}})

	for name, conn := range map[string]*websocket.Conn{"per-bet": perBet, "whole-feed": whole} {
		var upd FeedUpdate
		if err := conn.ReadJSON(&upd); err != nil {
			t.Fatalf("%s read: %v", name, err)
		}
		if upd.Type != "bet_placed" || upd.BetID != "b1" {
			t.Fatalf("%s got %+v", name, upd)
		}
	}

	// eventos de outra aposta não chegam ao inscrito por aposta
	hub.Broadcast(FeedUpdate{Type: "bet_created", BetID: "b2"})
	var upd FeedUpdate
	if err := whole.ReadJSON(&upd); err != nil || upd.BetID != "b2" {
		t.Fatalf("whole-feed read: %v (%+v)", err, upd)
	}
	awaitPong(t, perBet) // se b2 tivesse chegado, viria antes do pong
}

// Pongs saem do loop de leitura enquanto broadcasts chegam de outra
// goroutine; a conexão tem que sobreviver às escritas concorrentes.
func TestHubConcurrentPingAndBroadcast(t *testing.T) {
	hub := NewHub(func(r *http.Request) bool { return true })
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn := dial(t, srv)
	if err := conn.WriteJSON(ClientMsg{Type: "subscribe"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	awaitPong(t, conn)

	const broadcasts, pings = 50, 10
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < broadcasts; i++ {
			hub.Broadcast(FeedUpdate{Type: "bet_placed", BetID: "b1"})
		}
	}()
	go func() {
		for i := 0; i < pings; i++ {
			_ = conn.WriteJSON(ClientMsg{Type: "ping"})
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	gotPongs, gotUpdates := 0, 0
	for gotPongs < pings || gotUpdates < broadcasts {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read (pongs=%d updates=%d): %v", gotPongs, gotUpdates, err)
		}
		switch msg["type"] {
		case "pong":
			gotPongs++
		case "bet_placed":
			gotUpdates++
		default:
			t.Fatalf("unexpected message: %v", msg)
		}
	}
	<-done
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub(func(r *http.Request) bool { return true })
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn := dial(t, srv)
	if err := conn.WriteJSON(ClientMsg{Type: "subscribe", BetID: "b1"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	awaitPong(t, conn)
	if err := conn.WriteJSON(ClientMsg{Type: "unsubscribe", BetID: "b1"}); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	awaitPong(t, conn)

	hub.Broadcast(FeedUpdate{Type: "bet_placed", BetID: "b1"})
	awaitPong(t, conn) // nada além do pong deve chegar
}
