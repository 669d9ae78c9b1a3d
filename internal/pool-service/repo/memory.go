package repo

import (
	"context"
	"sync"

	"github.com/radieske/office-betting-pool/internal/ledger"
)

// Memory implementa os três stores do ledger em mapas protegidos por mutex.
// Usado nos testes e no modo local (STORE_BACKEND=memory).
type Memory struct {
	mu      sync.Mutex
	users   map[string]ledger.User
	bets    map[string]ledger.Bet
	history map[string][]ledger.Entry
}

func NewMemory() *Memory {
	return &Memory{
		users:   map[string]ledger.User{},
		bets:    map[string]ledger.Bet{},
		history: map[string][]ledger.Entry{},
	}
}

func (m *Memory) GetAllUsers(ctx context.Context) ([]ledger.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ledger.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, copyUser(u))
	}
	return out, nil
}

func (m *Memory) GetUser(ctx context.Context, name string) (*ledger.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[name]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	c := copyUser(u)
	return &c, nil
}

func (m *Memory) SaveUser(ctx context.Context, u *ledger.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.Name] = copyUser(*u)
	return nil
}

func (m *Memory) SaveUsers(ctx context.Context, users []*ledger.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range users {
		m.users[u.Name] = copyUser(*u)
	}
	return nil
}

func (m *Memory) DeleteUser(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[name]; !ok {
		return ledger.ErrNotFound
	}
	delete(m.users, name)
	return nil
}

func (m *Memory) GetAllBets(ctx context.Context) ([]ledger.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ledger.Bet, 0, len(m.bets))
	for _, b := range m.bets {
		out = append(out, copyBet(b))
	}
	return out, nil
}

func (m *Memory) GetBet(ctx context.Context, id string) (*ledger.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bets[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	c := copyBet(b)
	return &c, nil
}

func (m *Memory) SaveBet(ctx context.Context, b *ledger.Bet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bets[b.ID] = copyBet(*b)
	return nil
}

func (m *Memory) Append(ctx context.Context, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[e.Username] = append(m.history[e.Username], e)
	return nil
}

func (m *Memory) ListFor(ctx context.Context, username string) ([]ledger.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ledger.Entry(nil), m.history[username]...), nil
}

// Cópias profundas para os chamadores nunca compartilharem slices com o mapa.

func copyUser(u ledger.User) ledger.User {
	u.BetsCreated = append([]string(nil), u.BetsCreated...)
	u.BetsParticipated = append([]string(nil), u.BetsParticipated...)
	return u
}

func copyBet(b ledger.Bet) ledger.Bet {
	b.Options = append([]string(nil), b.Options...)
	b.Participants = append([]ledger.Participant(nil), b.Participants...)
	if b.PotSplit != nil {
		split := *b.PotSplit
		split.WinnerNames = append([]string(nil), split.WinnerNames...)
		b.PotSplit = &split
	}
	return b
}
