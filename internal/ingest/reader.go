package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"txengine/internal/model"
)

var ErrInvalidHeader = errors.New("invalid header")

const (
	colType   = "type"
	colClient = "client"
	colTx     = "tx"
	colAmount = "amount"
)

// Reader streams transactions out of a CSV source with a header row.
//
// Columns are located by name, so their order is free and unknown columns
// are ignored. Rows may omit trailing columns (dispute rows often have no
// amount field at all).
//
// A header without the type, client or tx column makes every row
// malformed; the rows are skipped, not the run.
type Reader struct {
	csv       *csv.Reader
	index     map[string]int
	header    bool
	headerErr error
}

func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	return &Reader{csv: cr}
}

// Next returns the next transaction.
//
// It returns io.EOF at the end of input (an empty source included), an error
// wrapping ErrMalformedRecord for a row that should be skipped, and any other
// error for a failure of the underlying source.
func (r *Reader) Next() (model.Transaction, error) {
	if !r.header {
		if err := r.readHeader(); err != nil {
			return model.Transaction{}, err
		}
	}

	fields, err := r.csv.Read()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return model.Transaction{}, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, perr.Line, perr.Err)
		}
		return model.Transaction{}, err
	}

	line, _ := r.csv.FieldPos(0)
	if r.headerErr != nil {
		return model.Transaction{}, fmt.Errorf("line %d: %w: %w", line, ErrMalformedRecord, r.headerErr)
	}

	tx, err := r.record(fields).Transaction()
	if err != nil {
		return model.Transaction{}, fmt.Errorf("line %d: %w", line, err)
	}
	return tx, nil
}

func (r *Reader) readHeader() error {
	fields, err := r.csv.Read()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			r.header = true
			r.headerErr = fmt.Errorf("%w: %v", ErrInvalidHeader, perr.Err)
			return nil
		}
		return err
	}

	r.header = true
	r.index = make(map[string]int, len(fields))
	for i, f := range fields {
		r.index[strings.TrimSpace(f)] = i
	}
	for _, col := range []string{colType, colClient, colTx} {
		if _, ok := r.index[col]; !ok {
			r.headerErr = fmt.Errorf("%w: missing column %q", ErrInvalidHeader, col)
			break
		}
	}
	return nil
}

func (r *Reader) record(fields []string) Record {
	return Record{
		Type:   r.field(fields, colType),
		Client: r.field(fields, colClient),
		Tx:     r.field(fields, colTx),
		Amount: r.field(fields, colAmount),
	}
}

func (r *Reader) field(fields []string, col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}
