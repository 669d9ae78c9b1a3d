package events

import "time"

// Evento publicado no tópico "bet_placed" quando um participante entra na aposta.
type BetPlaced struct {
	BetID    string    `json:"bet_id"`
	Username string    `json:"username"`
	Option   string    `json:"option"`
	Stake    int64     `json:"stake"`
	Ts       time.Time `json:"ts"`
}
