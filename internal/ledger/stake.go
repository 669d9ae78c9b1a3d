package ledger

// Capacidades da conta admin, centralizadas para não espalhar checagens de
// isAdmin pelas operações.

// hasUnlimitedBalance indica que o saldo do usuário nunca é debitado nem
// creditado e que a checagem de fundos não se aplica. Vale para a conta
// admin; o flag Unlimited é o canônico, IsAdmin cobre registros antigos
// gravados sem ele.
func hasUnlimitedBalance(u *User) bool {
	return u.Unlimited || u.IsAdmin
}

// canBypassStakeRequirement indica que o usuário pode propor uma aposta sem
// entrar como participante (sem escolher opção).
func canBypassStakeRequirement(u *User) bool {
	return u.IsAdmin
}

// stakeSource diz de onde veio o stake vigente, para a mensagem de rejeição.
type stakeSource int

const (
	stakeFromCreator stakeSource = iota
	stakeFromFirstParticipant
)

// establishedStake determina o stake vigente de uma aposta: o stake do
// criador se ele é participante; senão CreatorStake quando > 0; senão o
// stake do participante que entrou primeiro (por timestamp), quando > 0.
// ok == false significa que a aposta ainda não tem stake fixado e o próximo
// participante define o padrão.
func establishedStake(b *Bet) (stake int64, source stakeSource, ok bool) {
	if p := b.ParticipantByName(b.Creator); p != nil {
		return p.Stake, stakeFromCreator, true
	}
	if b.CreatorStake > 0 {
		return b.CreatorStake, stakeFromCreator, true
	}
	var first *Participant
	for i := range b.Participants {
		p := &b.Participants[i]
		if first == nil || p.Timestamp.Before(first.Timestamp) {
			first = p
		}
	}
	if first != nil && first.Stake > 0 {
		return first.Stake, stakeFromFirstParticipant, true
	}
	return 0, 0, false
}
