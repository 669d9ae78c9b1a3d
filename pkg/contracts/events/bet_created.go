package events

import "time"

// Evento publicado no tópico "bet_created" quando uma aposta é aberta.
type BetCreated struct {
	BetID        string    `json:"bet_id"`
	Creator      string    `json:"creator"`
	Description  string    `json:"description"`
	Options      []string  `json:"options"`
	CreatorStake int64     `json:"creator_stake"`
	Deadline     time.Time `json:"deadline"`
	Ts           time.Time `json:"ts"`
}
