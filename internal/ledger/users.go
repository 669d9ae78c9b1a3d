package ledger

import (
	"context"
	"errors"
	"sort"
)

// CreateUser registra uma conta nova com o saldo inicial padrão. A conta com
// o nome reservado do admin nasce com saldo ilimitado.
func (l *Ledger) CreateUser(ctx context.Context, name string) (*User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if name == "" {
		return nil, newError(KindInvalidUsername, "Username is required")
	}

	if _, err := l.users.GetUser(ctx, name); err == nil {
		return nil, newError(KindUserExists, "User already exists")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, storeErr("get user", err)
	}

	isAdmin := name == l.adminName
	u := &User{
		Name:             name,
		Tokens:           InitialTokens,
		Unlimited:        isAdmin,
		IsAdmin:          isAdmin,
		BetsCreated:      []string{},
		BetsParticipated: []string{},
		CreatedAt:        l.Now(),
	}
	if isAdmin {
		u.Tokens = 0
	}
	if err := l.users.SaveUser(ctx, u); err != nil {
		return nil, storeErr("save user", err)
	}
	if !isAdmin {
		if err := l.record(ctx, u, InitialTokens, "Initial balance"); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// EnsureAdmin cria a conta admin se ela ainda não existir. Chamado no boot.
func (l *Ledger) EnsureAdmin(ctx context.Context) (*User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, err := l.users.GetUser(ctx, l.adminName)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, storeErr("get user", err)
	}
	u = &User{
		Name:             l.adminName,
		Unlimited:        true,
		IsAdmin:          true,
		BetsCreated:      []string{},
		BetsParticipated: []string{},
		CreatedAt:        l.Now(),
	}
	if err := l.users.SaveUser(ctx, u); err != nil {
		return nil, storeErr("save user", err)
	}
	return u, nil
}

// DeleteUser remove uma conta. A conta admin nunca pode ser removida.
// Apostas em que o usuário participou não são alteradas.
func (l *Ledger) DeleteUser(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.users.GetUser(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return newError(KindUserNotFound, "User not found")
	}
	if err != nil {
		return storeErr("get user", err)
	}
	if user.IsAdmin {
		return newError(KindCannotDeleteAdmin, "Cannot delete the admin user")
	}
	if err := l.users.DeleteUser(ctx, name); err != nil {
		return storeErr("delete user", err)
	}
	return nil
}

// AddTokens credita tokens na conta de um usuário comum e retorna o novo
// saldo. Rejeitado para a conta admin.
func (l *Ledger) AddTokens(ctx context.Context, username string, amount int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.users.GetUser(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return 0, newError(KindUserNotFound, "User not found")
	}
	if err != nil {
		return 0, storeErr("get user", err)
	}
	if user.IsAdmin {
		return 0, newError(KindCannotModifyAdmin, "Cannot modify admin tokens")
	}
	if amount <= 0 {
		return 0, newError(KindInvalidAmount, "Amount must be a positive number")
	}

	user.Tokens += amount
	if err := l.users.SaveUser(ctx, user); err != nil {
		return 0, storeErr("save user", err)
	}
	if err := l.record(ctx, user, amount, "Admin added tokens"); err != nil {
		return 0, err
	}
	return user.Tokens, nil
}

// RemoveTokens debita tokens da conta de um usuário comum. A remoção é
// limitada ao saldo atual (nunca deixa o saldo negativo); o retorno informa
// quanto foi de fato removido e o novo saldo.
func (l *Ledger) RemoveTokens(ctx context.Context, username string, amount int64) (removed, newBalance int64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.users.GetUser(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return 0, 0, newError(KindUserNotFound, "User not found")
	}
	if err != nil {
		return 0, 0, storeErr("get user", err)
	}
	if user.IsAdmin {
		return 0, 0, newError(KindCannotModifyAdmin, "Cannot modify admin tokens")
	}
	if amount <= 0 {
		return 0, 0, newError(KindInvalidAmount, "Amount must be a positive number")
	}

	removed = amount
	if user.Tokens < removed {
		removed = user.Tokens
	}
	user.Tokens -= removed
	if err := l.users.SaveUser(ctx, user); err != nil {
		return 0, 0, storeErr("save user", err)
	}
	if err := l.record(ctx, user, -removed, "Admin removed tokens"); err != nil {
		return 0, 0, err
	}
	return removed, user.Tokens, nil
}

// User retorna um usuário pelo nome.
func (l *Ledger) User(ctx context.Context, name string) (*User, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	user, err := l.users.GetUser(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return nil, newError(KindUserNotFound, "User not found")
	}
	if err != nil {
		return nil, storeErr("get user", err)
	}
	return user, nil
}

// Users lista todos os usuários.
func (l *Ledger) Users(ctx context.Context) ([]User, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	users, err := l.users.GetAllUsers(ctx)
	if err != nil {
		return nil, storeErr("get users", err)
	}
	return users, nil
}

// Leaderboard ranqueia os usuários comuns por saldo, maiores primeiro, com
// desempate por nome. n <= 0 retorna todos.
func (l *Ledger) Leaderboard(ctx context.Context, n int) ([]Standing, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	users, err := l.users.GetAllUsers(ctx)
	if err != nil {
		return nil, storeErr("get users", err)
	}

	standings := make([]Standing, 0, len(users))
	for _, u := range users {
		if hasUnlimitedBalance(&u) {
			continue
		}
		standings = append(standings, Standing{Name: u.Name, Tokens: u.Tokens})
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Tokens != standings[j].Tokens {
			return standings[i].Tokens > standings[j].Tokens
		}
		return standings[i].Name < standings[j].Name
	})
	if n > 0 && len(standings) > n {
		standings = standings[:n]
	}
	return standings, nil
}
