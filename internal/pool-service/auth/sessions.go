package auth

import (
	"sync"

	"github.com/google/uuid"
)

// Sessions guarda tokens de sessão em memória: token opaco -> username.
// O ledger não conhece sessão nenhuma; quem traduz token em usuário atuante
// é a camada HTTP.
type Sessions struct {
	mu      sync.RWMutex
	byToken map[string]string
}

func NewSessions() *Sessions {
	return &Sessions{byToken: map[string]string{}}
}

// Start abre uma sessão para o usuário e retorna o token.
func (s *Sessions) Start(username string) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.byToken[token] = username
	s.mu.Unlock()
	return token
}

// Resolve devolve o usuário dono do token.
func (s *Sessions) Resolve(token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.byToken[token]
	return name, ok
}

// End encerra uma sessão.
func (s *Sessions) End(token string) {
	s.mu.Lock()
	delete(s.byToken, token)
	s.mu.Unlock()
}

// EndAllFor encerra todas as sessões de um usuário (usado quando a conta é
// removida).
func (s *Sessions) EndAllFor(username string) {
	s.mu.Lock()
	for token, name := range s.byToken {
		if name == username {
			delete(s.byToken, token)
		}
	}
	s.mu.Unlock()
}
