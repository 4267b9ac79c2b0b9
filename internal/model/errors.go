package model

import (
	"errors"
	"fmt"
)

// Account rule violations. Every one of them leaves the account untouched.
var (
	ErrAccountLocked       = errors.New("account locked")
	ErrNegativeAmount      = errors.New("amount must not be negative")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAlreadyDisputed     = errors.New("transaction already disputed")
	ErrNotDisputed         = errors.New("transaction not disputed")
	ErrNotDisputable       = errors.New("only deposits can be disputed")
	ErrClientMismatch      = errors.New("transaction client does not match account")
	ErrUnknownType         = errors.New("unknown transaction type")
)

// RuleErrors lists the account rule violations in a stable order.
var RuleErrors = []error{
	ErrAccountLocked,
	ErrNegativeAmount,
	ErrInsufficientFunds,
	ErrTransactionNotFound,
	ErrAlreadyDisputed,
	ErrNotDisputed,
	ErrNotDisputable,
	ErrClientMismatch,
	ErrUnknownType,
}

// Reason maps err to the matching rule violation, or nil when err is not one.
func Reason(err error) error {
	for _, r := range RuleErrors {
		if errors.Is(err, r) {
			return r
		}
	}
	return nil
}

func reject(cause error, tx Transaction) error {
	return fmt.Errorf("%w: client=%d tx=%d type=%s", cause, tx.Client(), tx.ID(), tx.Type())
}
