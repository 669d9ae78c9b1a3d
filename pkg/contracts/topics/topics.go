package topics

const (
	// Bets
	BetCreated  = "bet_created"
	BetPlaced   = "bet_placed"
	BetResolved = "bet_resolved"

	// Balances (consumido pelo leaderboard-worker)
	BalanceChanged = "balance_changed"
)
