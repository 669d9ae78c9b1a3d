package ledger

import "time"

// Status de uma aposta. Máquina de dois estados: open -> resolved, sem volta.
const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
)

// User é o registro canônico de um usuário do bolão.
// Unlimited substitui o sentinel numérico de "saldo infinito" do admin:
// quando true, Tokens é ignorado e o saldo nunca é debitado nem creditado.
type User struct {
	Name             string    `json:"name"`
	Tokens           int64     `json:"tokens"`
	Unlimited        bool      `json:"unlimited"`
	IsAdmin          bool      `json:"isAdmin"`
	BetsCreated      []string  `json:"betsCreated"`
	BetsParticipated []string  `json:"betsParticipated"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Participant é uma entrada na lista de participantes de uma aposta,
// única por Name.
type Participant struct {
	Name      string    `json:"name"`
	Option    string    `json:"option"`
	Stake     int64     `json:"stake"`
	Timestamp time.Time `json:"timestamp"`
}

// PotSplit registra o resultado da liquidação. Calculado uma única vez
// em ResolveBet e imutável depois disso.
type PotSplit struct {
	TotalPot          int64    `json:"totalPot"`
	WinnerCount       int      `json:"winnerCount"`
	WinningOption     string   `json:"winningOption"`
	WinningsPerWinner int64    `json:"winningsPerWinner"`
	HouseCollected    int64    `json:"houseCollected"`
	WinnerNames       []string `json:"winnerNames"`
}

// Bet é a representação canônica de uma aposta.
type Bet struct {
	ID           string        `json:"id"`
	Creator      string        `json:"creator"`
	Description  string        `json:"description"`
	Options      []string      `json:"options"`
	Deadline     time.Time     `json:"deadline"`
	Status       string        `json:"status"`
	CreatorStake int64         `json:"creatorStake"`
	Participants []Participant `json:"participants"`
	Winner       string        `json:"winner,omitempty"`
	ResolvedBy   string        `json:"resolvedBy,omitempty"`
	ResolvedAt   time.Time     `json:"resolvedAt,omitempty"`
	PotSplit     *PotSplit     `json:"potSplit,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// HasOption informa se opt é uma das opções fixas da aposta.
func (b *Bet) HasOption(opt string) bool {
	for _, o := range b.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// ParticipantByName retorna a entrada do participante, se existir.
func (b *Bet) ParticipantByName(name string) *Participant {
	for i := range b.Participants {
		if b.Participants[i].Name == name {
			return &b.Participants[i]
		}
	}
	return nil
}

// TotalPot soma os stakes de todos os participantes.
func (b *Bet) TotalPot() int64 {
	var sum int64
	for _, p := range b.Participants {
		sum += p.Stake
	}
	return sum
}

// Entry é uma linha do histórico de saldo (append-only, um stream por usuário).
// Balance é o saldo após a transação.
type Entry struct {
	Username    string    `json:"username"`
	Timestamp   time.Time `json:"timestamp"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	Balance     int64     `json:"balance"`
}

// Standing é uma posição do leaderboard (apenas usuários sem saldo ilimitado).
type Standing struct {
	Name   string `json:"name"`
	Tokens int64  `json:"tokens"`
}
