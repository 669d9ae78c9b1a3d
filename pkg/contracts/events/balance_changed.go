package events

import "time"

// Evento publicado no tópico "balance_changed" a cada mutação de saldo.
// O leaderboard-worker consome para manter o ranking no Redis.
type BalanceChanged struct {
	Username string    `json:"username"`
	Delta    int64     `json:"delta"`
	Balance  int64     `json:"balance"` // saldo após a transação
	Reason   string    `json:"reason"`
	Ts       time.Time `json:"ts"`
}
