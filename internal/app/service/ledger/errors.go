package ledger

import "errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrCardNotFound        = errors.New("member card not found")
	ErrCardFrozen          = errors.New("member card is frozen")
	ErrCardExpired         = errors.New("member card has expired")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidArgument     = errors.New("invalid argument")
)
