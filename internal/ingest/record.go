package ingest

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"txengine/internal/model"
)

var (
	ErrMalformedRecord = errors.New("malformed record")
	ErrMissingAmount   = errors.New("amount is required")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidClient   = errors.New("invalid client id")
	ErrInvalidTx       = errors.New("invalid transaction id")
)

// Record is one raw input row before validation.
type Record struct {
	Type   string
	Client string
	Tx     string
	Amount string
}

// Transaction validates the record and builds the matching transaction.
// Every failure wraps ErrMalformedRecord.
func (r Record) Transaction() (model.Transaction, error) {
	typ, err := model.ParseType(strings.TrimSpace(r.Type))
	if err != nil {
		return model.Transaction{}, malformed(err, "type %q", r.Type)
	}

	client, err := strconv.ParseUint(strings.TrimSpace(r.Client), 10, 16)
	if err != nil {
		return model.Transaction{}, malformed(ErrInvalidClient, "%q", r.Client)
	}

	id, err := strconv.ParseUint(strings.TrimSpace(r.Tx), 10, 32)
	if err != nil {
		return model.Transaction{}, malformed(ErrInvalidTx, "%q", r.Tx)
	}

	c, tx := uint16(client), uint32(id)

	switch typ {
	case model.TypeDeposit, model.TypeWithdrawal:
		amount, err := parseAmount(r.Amount)
		if err != nil {
			return model.Transaction{}, err
		}
		if typ == model.TypeDeposit {
			return model.NewDeposit(c, tx, amount), nil
		}
		return model.NewWithdrawal(c, tx, amount), nil
	case model.TypeDispute:
		return model.NewDispute(c, tx), nil
	case model.TypeResolve:
		return model.NewResolve(c, tx), nil
	case model.TypeChargeback:
		return model.NewChargeback(c, tx), nil
	default:
		return model.Transaction{}, malformed(model.ErrUnknownType, "type %q", r.Type)
	}
}

// Amounts must fit a 96-bit mantissa with at most 28 fractional digits,
// the range of a 128-bit decimal (about ±7.9e28).
const maxAmountScale = 28

var maxAmountMantissa = new(big.Int).Lsh(big.NewInt(1), 96)

// parseAmount reads the decimal text exactly. The sign is left for the
// account to judge.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, malformed(ErrMissingAmount, "")
	}

	amount, err := decimal.NewFromString(s)
	if err != nil || !representable(amount) {
		return decimal.Decimal{}, malformed(ErrInvalidAmount, "%q", s)
	}
	return amount, nil
}

// representable checks the exponent before any arithmetic, so extreme
// exponents never reach big.Int scaling.
func representable(d decimal.Decimal) bool {
	exp := d.Exponent()
	if exp < -maxAmountScale || exp > maxAmountScale {
		return false
	}

	mantissa := d.Coefficient()
	if mantissa.BitLen() > 96 {
		return false
	}
	if exp > 0 {
		mantissa.Mul(mantissa, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil))
	}
	return mantissa.CmpAbs(maxAmountMantissa) < 0
}

func malformed(cause error, format string, args ...any) error {
	if format == "" {
		return fmt.Errorf("%w: %w", ErrMalformedRecord, cause)
	}
	return fmt.Errorf("%w: %w: %s", ErrMalformedRecord, cause, fmt.Sprintf(format, args...))
}
