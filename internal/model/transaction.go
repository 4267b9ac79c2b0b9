package model

import (
	"github.com/shopspring/decimal"
)

// ============================================================================
// Transaction types
// ============================================================================

// Type is the kind of a ledger event. The set is closed: only the constants
// below are ever produced by ParseType or the constructors.
type Type string

const (
	TypeDeposit    Type = "deposit"
	TypeWithdrawal Type = "withdrawal"
	TypeDispute    Type = "dispute"
	TypeResolve    Type = "resolve"
	TypeChargeback Type = "chargeback"
)

// ParseType matches s exactly (case-sensitive) against the known types.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeDeposit, TypeWithdrawal, TypeDispute, TypeResolve, TypeChargeback:
		return t, nil
	default:
		return "", ErrUnknownType
	}
}

// IsEffect reports whether the type moves funds on its own (deposit or withdrawal).
func (t Type) IsEffect() bool {
	return t == TypeDeposit || t == TypeWithdrawal
}

// ============================================================================
// Transaction
// ============================================================================

// Transaction is one immutable ledger event.
//
// Dispute, resolve and chargeback carry no amount; their ID references an
// earlier deposit of the same client.
type Transaction struct {
	client uint16
	id     uint32
	typ    Type
	amount decimal.Decimal
}

func NewDeposit(client uint16, id uint32, amount decimal.Decimal) Transaction {
	return Transaction{client: client, id: id, typ: TypeDeposit, amount: amount}
}

func NewWithdrawal(client uint16, id uint32, amount decimal.Decimal) Transaction {
	return Transaction{client: client, id: id, typ: TypeWithdrawal, amount: amount}
}

func NewDispute(client uint16, id uint32) Transaction {
	return Transaction{client: client, id: id, typ: TypeDispute}
}

func NewResolve(client uint16, id uint32) Transaction {
	return Transaction{client: client, id: id, typ: TypeResolve}
}

func NewChargeback(client uint16, id uint32) Transaction {
	return Transaction{client: client, id: id, typ: TypeChargeback}
}

func (t Transaction) Client() uint16 { return t.client }
func (t Transaction) ID() uint32     { return t.id }
func (t Transaction) Type() Type     { return t.typ }

// Amount returns the payload of a deposit or withdrawal and zero otherwise.
func (t Transaction) Amount() decimal.Decimal {
	if t.typ.IsEffect() {
		return t.amount
	}
	return decimal.Zero
}

// IsEffect reports whether the transaction is a deposit or withdrawal.
func (t Transaction) IsEffect() bool {
	return t.typ.IsEffect()
}
