package dto

import "github.com/radieske/office-betting-pool/internal/ledger"

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type SessionResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
	Tokens   int64  `json:"tokens"`
}

type BetResponse struct {
	Bet ledger.Bet `json:"bet"`
}

type BetListResponse struct {
	Bets []ledger.Bet `json:"bets"`
}

type PlaceBetResponse struct {
	Message string     `json:"message"`
	Bet     ledger.Bet `json:"bet"`
}

type ResolveBetResponse struct {
	Message string     `json:"message"`
	Bet     ledger.Bet `json:"bet"`
}

type TokensResponse struct {
	Username   string `json:"username"`
	Removed    int64  `json:"removed,omitempty"`
	NewBalance int64  `json:"newBalance"`
	Message    string `json:"message"`
}

type LeaderboardResponse struct {
	Standings []ledger.Standing `json:"standings"`
}

type HistoryResponse struct {
	Entries []ledger.Entry `json:"entries"`
}

type UserResponse struct {
	User ledger.User `json:"user"`
}
