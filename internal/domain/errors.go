package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrNegativeQuantity    = errors.New("portfolio quantity cannot be negative")
	ErrInsufficientBalance = errors.New("insufficient base token balance")
	ErrNoPosition          = errors.New("no position held")
	ErrActionNotRegistered = errors.New("action not registered")
	ErrBotExists           = errors.New("bot already registered")
)
