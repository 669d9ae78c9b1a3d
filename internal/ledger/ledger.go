package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InitialTokens é o saldo inicial de toda conta criada via signup ou pelo admin.
const InitialTokens = 100

// Ledger é o núcleo do bolão: criação de apostas, entrada de participantes,
// liquidação do pote e administração de tokens. Toda operação recebe o
// usuário atuante explicitamente; não existe sessão global aqui.
//
// As operações são read-modify-write sobre os stores, então o mutex interno
// serializa tudo que muta estado. Com múltiplas instâncias seria necessário
// lock no banco (ver repo Postgres).
type Ledger struct {
	users     UserStore
	bets      BetStore
	history   HistoryStore
	adminName string

	// Now e NewID são substituíveis em teste.
	Now   func() time.Time
	NewID func() string

	// OnBalanceChange é chamado após cada mutação de saldo persistida,
	// com a entrada de histórico correspondente. Opcional.
	OnBalanceChange func(Entry)

	mu sync.RWMutex
}

// New monta um Ledger sobre os stores dados. adminName identifica a única
// conta com saldo ilimitado do sistema.
func New(users UserStore, bets BetStore, history HistoryStore, adminName string) *Ledger {
	return &Ledger{
		users:     users,
		bets:      bets,
		history:   history,
		adminName: adminName,
		Now:       time.Now,
		NewID:     uuid.NewString,
	}
}

// CreateBet valida e registra uma nova aposta aberta. A ordem das checagens
// é fixa: mensagens posteriores dependem de valores já validados.
func (l *Ledger) CreateBet(ctx context.Context, actingUser, description string, options []string, stake int64, deadline time.Time, creatorOption string) (*Bet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.users.GetUser(ctx, actingUser)
	if errors.Is(err, ErrNotFound) {
		return nil, newError(KindUserNotFound, "User not found")
	}
	if err != nil {
		return nil, storeErr("get user", err)
	}

	if !hasUnlimitedBalance(user) && user.Tokens < stake {
		return nil, newError(KindInsufficientFunds, "Not enough tokens")
	}

	if !validOptions(options) {
		return nil, newError(KindInvalidOptions, "At least two options are required")
	}

	if !canBypassStakeRequirement(user) && (creatorOption == "" || !contains(options, creatorOption)) {
		return nil, newError(KindInvalidCreatorOption, "Invalid creator option selected")
	}

	if stake <= 0 {
		return nil, newError(KindInvalidStake, "Stake must be greater than 0")
	}

	now := l.Now()
	bet := &Bet{
		ID:           l.NewID(),
		Creator:      user.Name,
		Description:  description,
		Options:      append([]string(nil), options...),
		Deadline:     deadline,
		Status:       StatusOpen,
		CreatorStake: stake,
		Participants: []Participant{},
		CreatedAt:    now,
	}

	// O criador só entra como participante se escolheu uma opção (o admin
	// pode propor sem apostar).
	if creatorOption != "" && bet.HasOption(creatorOption) {
		bet.Participants = append(bet.Participants, Participant{
			Name:      user.Name,
			Option:    creatorOption,
			Stake:     stake,
			Timestamp: now,
		})
	}

	user.BetsCreated = append(user.BetsCreated, bet.ID)
	debited := !hasUnlimitedBalance(user)
	if debited {
		user.Tokens -= stake
	}

	if err := l.users.SaveUser(ctx, user); err != nil {
		return nil, storeErr("save user", err)
	}
	if err := l.bets.SaveBet(ctx, bet); err != nil {
		return nil, storeErr("save bet", err)
	}
	if debited {
		desc := fmt.Sprintf("Created bet %q (Option: %s)", description, creatorOption)
		if err := l.record(ctx, user, -stake, desc); err != nil {
			return nil, err
		}
	}

	return bet, nil
}

// PlaceBet adiciona o usuário atuante como participante da aposta. O stake
// precisa bater com o stake vigente da aposta (política de stake uniforme);
// se a aposta ainda não tem stake fixado, o valor enviado vira o padrão.
func (l *Ledger) PlaceBet(ctx context.Context, actingUser, betID, option string, stake int64) (*Bet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if actingUser == "" {
		return nil, newError(KindNotAuthenticated, "You must be logged in to place a bet")
	}
	user, err := l.users.GetUser(ctx, actingUser)
	if errors.Is(err, ErrNotFound) {
		// sessão apontando para usuário já removido
		return nil, newError(KindNotAuthenticated, "You must be logged in to place a bet")
	}
	if err != nil {
		return nil, storeErr("get user", err)
	}

	if stake < 1 {
		return nil, newError(KindInvalidStake, "Stake must be at least 1 token")
	}

	bet, err := l.bets.GetBet(ctx, betID)
	if errors.Is(err, ErrNotFound) {
		return nil, newError(KindBetNotFound, "Bet not found")
	}
	if err != nil {
		return nil, storeErr("get bet", err)
	}

	if bet.Status != StatusOpen {
		return nil, newError(KindBetClosed, "This bet is no longer open")
	}
	if l.Now().After(bet.Deadline) {
		return nil, newError(KindDeadlinePassed, "The deadline for this bet has passed")
	}
	if bet.ParticipantByName(user.Name) != nil {
		return nil, newError(KindDuplicateParticipation, "You have already placed a bet on this bet")
	}
	if !bet.HasOption(option) {
		return nil, newError(KindInvalidOption, "Invalid option")
	}
	if !hasUnlimitedBalance(user) && user.Tokens < stake {
		return nil, newError(KindInsufficientFunds, "You do not have enough tokens")
	}

	if required, source, ok := establishedStake(bet); ok && stake != required {
		if source == stakeFromCreator {
			return nil, errf(KindStakeMismatch, "Your stake must be %d tokens to match the bet creator's stake", required)
		}
		return nil, errf(KindStakeMismatch, "Your stake must be %d tokens to match the first participant's stake", required)
	}

	bet.Participants = append(bet.Participants, Participant{
		Name:      user.Name,
		Option:    option,
		Stake:     stake,
		Timestamp: l.Now(),
	})
	if err := l.bets.SaveBet(ctx, bet); err != nil {
		return nil, storeErr("save bet", err)
	}

	user.BetsParticipated = append(user.BetsParticipated, bet.ID)
	debited := !hasUnlimitedBalance(user)
	if debited {
		user.Tokens -= stake
	}
	if err := l.users.SaveUser(ctx, user); err != nil {
		return nil, storeErr("save user", err)
	}
	if debited {
		desc := fmt.Sprintf("Placed bet on %q (Option: %s)", bet.Description, option)
		if err := l.record(ctx, user, -stake, desc); err != nil {
			return nil, err
		}
	}

	return bet, nil
}

// ResolveBet encerra a aposta declarando a opção vencedora e distribui o
// pote: divisão inteira entre os vencedores, resto para a casa; sem
// vencedores, o pote inteiro vai para a casa. Retorna também o resumo
// textual da liquidação.
func (l *Ledger) ResolveBet(ctx context.Context, actingUser, betID, winningOption string) (*Bet, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if actingUser == "" {
		return nil, "", newError(KindNotAuthorized, "You must be logged in to resolve a bet")
	}
	admin, err := l.users.GetUser(ctx, actingUser)
	if errors.Is(err, ErrNotFound) {
		return nil, "", newError(KindNotAuthorized, "Only admin can resolve bets")
	}
	if err != nil {
		return nil, "", storeErr("get user", err)
	}
	if !admin.IsAdmin {
		return nil, "", newError(KindNotAuthorized, "Only admin can resolve bets")
	}

	bet, err := l.bets.GetBet(ctx, betID)
	if errors.Is(err, ErrNotFound) {
		return nil, "", newError(KindBetNotFound, "Bet not found")
	}
	if err != nil {
		return nil, "", storeErr("get bet", err)
	}

	if bet.Status == StatusResolved {
		return nil, "", newError(KindAlreadyResolved, "This bet has already been resolved")
	}
	if !bet.HasOption(winningOption) {
		return nil, "", newError(KindInvalidWinningOption, "Invalid winning option")
	}

	totalPot := bet.TotalPot()
	var winners []Participant
	for _, p := range bet.Participants {
		if p.Option == winningOption {
			winners = append(winners, p)
		}
	}

	split := &PotSplit{
		TotalPot:      totalPot,
		WinnerCount:   len(winners),
		WinningOption: winningOption,
		WinnerNames:   []string{},
	}
	for _, w := range winners {
		split.WinnerNames = append(split.WinnerNames, w.Name)
	}
	if len(winners) > 0 {
		split.WinningsPerWinner = totalPot / int64(len(winners))
		split.HouseCollected = totalPot - split.WinningsPerWinner*int64(len(winners))
	} else {
		split.WinningsPerWinner = 0
		split.HouseCollected = totalPot
	}

	bet.Status = StatusResolved
	bet.Winner = winningOption
	bet.ResolvedBy = admin.Name
	bet.ResolvedAt = l.Now()
	bet.PotSplit = split

	if err := l.bets.SaveBet(ctx, bet); err != nil {
		return nil, "", storeErr("save bet", err)
	}

	var credited []*User
	for _, w := range winners {
		winner, err := l.users.GetUser(ctx, w.Name)
		if errors.Is(err, ErrNotFound) {
			// participante removido depois de entrar; o prêmio fica com a casa
			continue
		}
		if err != nil {
			return nil, "", storeErr("get user", err)
		}
		if hasUnlimitedBalance(winner) {
			continue
		}
		winner.Tokens += split.WinningsPerWinner
		credited = append(credited, winner)
	}
	if len(credited) > 0 {
		if err := l.users.SaveUsers(ctx, credited); err != nil {
			return nil, "", storeErr("save users", err)
		}
	}
	for _, winner := range credited {
		desc := fmt.Sprintf("Won bet %q (Option: %s)", bet.Description, winningOption)
		if err := l.record(ctx, winner, split.WinningsPerWinner, desc); err != nil {
			return nil, "", err
		}
	}

	return bet, resolutionSummary(split), nil
}

// resolutionSummary monta a mensagem de resultado exibida ao admin.
func resolutionSummary(s *PotSplit) string {
	if s.WinnerCount == 0 {
		return fmt.Sprintf("Bet resolved successfully. No winners for this bet. All %d tokens went to the house.", s.TotalPot)
	}
	plural := ""
	if s.WinnerCount > 1 {
		plural = "s"
	}
	msg := fmt.Sprintf("Bet resolved successfully. %d winner%s received %d tokens each from a total pot of %d tokens.",
		s.WinnerCount, plural, s.WinningsPerWinner, s.TotalPot)
	if s.HouseCollected > 1 {
		msg += fmt.Sprintf(" %d tokens were collected by the house due to rounding.", s.HouseCollected)
	} else if s.HouseCollected == 1 {
		msg += " 1 token was collected by the house due to rounding."
	}
	return msg
}

// Bet retorna uma aposta pelo id.
func (l *Ledger) Bet(ctx context.Context, id string) (*Bet, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	bet, err := l.bets.GetBet(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, newError(KindBetNotFound, "Bet not found")
	}
	if err != nil {
		return nil, storeErr("get bet", err)
	}
	return bet, nil
}

// Bets lista todas as apostas, mais recentes primeiro.
func (l *Ledger) Bets(ctx context.Context) ([]Bet, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	bets, err := l.bets.GetAllBets(ctx)
	if err != nil {
		return nil, storeErr("get bets", err)
	}
	sort.Slice(bets, func(i, j int) bool { return bets[i].CreatedAt.After(bets[j].CreatedAt) })
	return bets, nil
}

// History lista o histórico de saldo de um usuário, em ordem de timestamp.
func (l *Ledger) History(ctx context.Context, username string) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries, err := l.history.ListFor(ctx, username)
	if err != nil {
		return nil, storeErr("list history", err)
	}
	return entries, nil
}

// record grava a entrada de histórico de uma mutação de saldo já persistida
// e dispara o hook de notificação, se houver.
func (l *Ledger) record(ctx context.Context, u *User, amount int64, desc string) error {
	e := Entry{
		Username:    u.Name,
		Timestamp:   l.Now(),
		Amount:      amount,
		Description: desc,
		Balance:     u.Tokens,
	}
	if err := l.history.Append(ctx, e); err != nil {
		return storeErr("append history", err)
	}
	if l.OnBalanceChange != nil {
		l.OnBalanceChange(e)
	}
	return nil
}

// validOptions exige ao menos duas opções, todas não vazias e distintas.
func validOptions(options []string) bool {
	if len(options) < 2 {
		return false
	}
	seen := make(map[string]bool, len(options))
	for _, o := range options {
		if o == "" || seen[o] {
			return false
		}
		seen[o] = true
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
