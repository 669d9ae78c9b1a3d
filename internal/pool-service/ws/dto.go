package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// BetID: opcional; vazio em subscribe significa "todas as apostas"
type ClientMsg struct {
	Type  string `json:"type"`  // subscribe | unsubscribe | ping
	BetID string `json:"betId"` // vazio = feed completo
}

// FeedUpdate é um evento do bolão enviado para clientes WebSocket.
// Type: bet_created | bet_placed | bet_resolved
type FeedUpdate struct {
	Type    string      `json:"type"`
	BetID   string      `json:"betId"`
	Payload interface{} `json:"payload"`
}
