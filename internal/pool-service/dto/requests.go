package dto

import "time"

type SignupRequest struct {
	Username string `json:"username"`
}

type LoginRequest struct {
	Username string `json:"username"`
}

type CreateBetRequest struct {
	Description   string    `json:"description"`
	Options       []string  `json:"options"`
	Stake         int64     `json:"stake"`
	Deadline      time.Time `json:"deadline"`
	CreatorOption string    `json:"creator_option,omitempty"` // opcional só para o admin
}

type JoinBetRequest struct {
	Option string `json:"option"`
	Stake  int64  `json:"stake"`
}

type ResolveBetRequest struct {
	WinningOption string `json:"winning_option"`
}

type AdjustTokensRequest struct {
	Username string `json:"username"`
	Amount   int64  `json:"amount"`
}

type CreateUserRequest struct {
	Username string `json:"username"`
}
