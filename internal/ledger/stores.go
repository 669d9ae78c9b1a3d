package ledger

import (
	"context"
	"errors"
)

// ErrNotFound é retornado pelos stores quando o registro não existe.
var ErrNotFound = errors.New("not found")

// UserStore persiste registros de usuário.
type UserStore interface {
	GetAllUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, name string) (*User, error)
	SaveUser(ctx context.Context, u *User) error
	SaveUsers(ctx context.Context, users []*User) error
	DeleteUser(ctx context.Context, name string) error
}

// BetStore persiste registros de aposta.
type BetStore interface {
	GetAllBets(ctx context.Context) ([]Bet, error)
	GetBet(ctx context.Context, id string) (*Bet, error)
	SaveBet(ctx context.Context, b *Bet) error
}

// HistoryStore persiste o histórico de saldo, ordenado por timestamp.
type HistoryStore interface {
	Append(ctx context.Context, e Entry) error
	ListFor(ctx context.Context, username string) ([]Entry, error)
}
