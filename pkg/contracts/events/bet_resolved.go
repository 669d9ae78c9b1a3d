package events

import "time"

// Evento publicado no tópico "bet_resolved" após a liquidação do pote.
type BetResolved struct {
	BetID             string    `json:"bet_id"`
	WinningOption     string    `json:"winning_option"`
	TotalPot          int64     `json:"total_pot"`
	WinnerCount       int       `json:"winner_count"`
	WinningsPerWinner int64     `json:"winnings_per_winner"`
	HouseCollected    int64     `json:"house_collected"`
	WinnerNames       []string  `json:"winner_names"`
	ResolvedBy        string    `json:"resolved_by"`
	Ts                time.Time `json:"ts"`
}
