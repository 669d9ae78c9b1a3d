package ledger

import (
	"errors"
	"fmt"
)

// Kind identifica de forma estável a causa de uma falha de validação,
// para que chamadores (e testes) possam ramificar sem parsear mensagens.
type Kind string

const (
	KindUserNotFound           Kind = "UserNotFound"
	KindUserExists             Kind = "UserExists"
	KindInvalidUsername        Kind = "InvalidUsername"
	KindInsufficientFunds      Kind = "InsufficientFunds"
	KindInvalidOptions         Kind = "InvalidOptions"
	KindInvalidCreatorOption   Kind = "InvalidCreatorOption"
	KindInvalidStake           Kind = "InvalidStake"
	KindNotAuthenticated       Kind = "NotAuthenticated"
	KindBetNotFound            Kind = "BetNotFound"
	KindBetClosed              Kind = "BetClosed"
	KindDeadlinePassed         Kind = "DeadlinePassed"
	KindDuplicateParticipation Kind = "DuplicateParticipation"
	KindInvalidOption          Kind = "InvalidOption"
	KindStakeMismatch          Kind = "StakeMismatch"
	KindNotAuthorized          Kind = "NotAuthorized"
	KindAlreadyResolved        Kind = "AlreadyResolved"
	KindInvalidWinningOption   Kind = "InvalidWinningOption"
	KindInvalidAmount          Kind = "InvalidAmount"
	KindCannotModifyAdmin      Kind = "CannotModifyAdmin"
	KindCannotDeleteAdmin      Kind = "CannotDeleteAdmin"
	KindStoreUnavailable       Kind = "StoreUnavailable"
)

// Error carrega o Kind estável e a mensagem voltada ao usuário.
type Error struct {
	Kind    Kind
	Message string
	Err     error // causa subjacente, quando houver (falha de store)
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func newError(k Kind, msg string) *Error {
	return &Error{Kind: k, Message: msg}
}

func errf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

// storeErr embrulha uma falha de colaborador (store indisponível, registro
// corrompido) como StoreUnavailable. Nunca usado para falha de validação.
func storeErr(op string, err error) *Error {
	return &Error{
		Kind:    KindStoreUnavailable,
		Message: fmt.Sprintf("store error: %s", op),
		Err:     err,
	}
}

// KindOf extrai o Kind de um erro do ledger; retorna "" para erros externos.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}
