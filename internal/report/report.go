package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"txengine/internal/model"
)

const (
	FormatCSV   = "csv"
	FormatTable = "table"
)

var ErrUnknownFormat = errors.New("unknown output format")

// CheckFormat returns ErrUnknownFormat unless format can be rendered. The
// empty format means CSV.
func CheckFormat(format string) error {
	switch format {
	case FormatCSV, FormatTable, "":
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Write renders balances in the given format. Balances are expected in
// ascending client order, as returned by the engine.
func Write(w io.Writer, format string, balances []model.Balance) error {
	if err := CheckFormat(format); err != nil {
		return err
	}
	if format == FormatTable {
		return WriteTable(w, balances)
	}
	return WriteCSV(w, balances)
}

// WriteCSV writes client,available,held,total,locked rows with four
// fractional digits per balance.
func WriteCSV(w io.Writer, balances []model.Balance) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(model.ReportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, b := range balances {
		if err := cw.Write(b.Row()); err != nil {
			return fmt.Errorf("write client %d: %w", b.Client, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteTable writes the same columns as an aligned text table.
func WriteTable(w io.Writer, balances []model.Balance) error {
	ew := &errWriter{w: w}

	table := tablewriter.NewWriter(ew)
	table.SetHeader(model.ReportHeader)
	table.SetAutoFormatHeaders(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_LEFT,
	})
	for _, b := range balances {
		table.Append(b.Row())
	}
	table.Render()

	return ew.err
}

// errWriter remembers the first write error; tablewriter drops them.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}
