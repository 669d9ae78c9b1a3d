package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// client embrulha a conexão com um lock de escrita: o pong sai do loop de
// leitura e o Broadcast chega da goroutine do assinante Redis, e o
// gorilla/websocket proíbe escritas concorrentes na mesma conexão.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *client) writeText(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub gerencia conexões WebSocket e assinaturas do feed de apostas.
// subs mapeia betID para o conjunto de clientes inscritos; all é o conjunto
// de clientes que acompanham o feed completo.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{}
	all      map[*client]struct{}
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
		all:      make(map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket.
// Permite subscribe/unsubscribe por aposta (ou no feed completo, com BetID
// vazio) e responde a pings.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	cl := &client{conn: conn}

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			h.mu.Lock()
			if msg.BetID == "" {
				h.all[cl] = struct{}{}
			} else {
				if _, ok := h.subs[msg.BetID]; !ok {
					h.subs[msg.BetID] = make(map[*client]struct{})
				}
				h.subs[msg.BetID][cl] = struct{}{}
			}
			h.mu.Unlock()
		case "unsubscribe":
			h.mu.Lock()
			if msg.BetID == "" {
				delete(h.all, cl)
			} else if m, ok := h.subs[msg.BetID]; ok {
				delete(m, cl)
				if len(m) == 0 {
					delete(h.subs, msg.BetID)
				}
			}
			h.mu.Unlock()
		case "ping":
			_ = cl.writeJSON(map[string]string{"type": "pong"})
		}
	}
	// Remove o cliente de todas as assinaturas ao desconectar
	h.mu.Lock()
	delete(h.all, cl)
	for _, set := range h.subs {
		delete(set, cl)
	}
	h.mu.Unlock()
}

// Broadcast envia um evento do bolão para os inscritos na aposta e para quem
// acompanha o feed completo.
func (h *Hub) Broadcast(update FeedUpdate) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.all)+len(h.subs[update.BetID]))
	for c := range h.all {
		clients = append(clients, c)
	}
	for c := range h.subs[update.BetID] {
		if _, dup := h.all[c]; !dup {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	b, _ := json.Marshal(update)
	for _, c := range clients {
		_ = c.writeText(b)
	}
}
