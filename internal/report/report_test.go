package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txengine/internal/model"
)

func balances() []model.Balance {
	return []model.Balance{
		{Client: 1, Available: decimal.RequireFromString("1.5"), Held: decimal.Zero, Total: decimal.RequireFromString("1.5")},
		{Client: 2, Available: decimal.RequireFromString("-100"), Held: decimal.RequireFromString("100"), Total: decimal.Zero, Locked: true},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteCSV(&buf, balances()))

	want := "client,available,held,total,locked\n" +
		"1,1.5000,0.0000,1.5000,false\n" +
		"2,-100.0000,100.0000,0.0000,true\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteCSV(&buf, nil))

	assert.Equal(t, "client,available,held,total,locked\n", buf.String())
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, Write(&buf, FormatTable, balances()))

	out := buf.String()
	assert.Contains(t, out, "available")
	assert.Contains(t, out, "-100.0000")
	assert.Contains(t, out, "true")
	assert.Less(t, strings.Index(out, "1.5000"), strings.Index(out, "-100.0000"))
}

func TestWrite_UnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, "xml", balances())

	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.ErrorIs(t, CheckFormat("xml"), ErrUnknownFormat)
	assert.NoError(t, CheckFormat(""))
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("pipe closed") }

func TestWrite_PropagatesSinkErrors(t *testing.T) {
	for _, format := range []string{FormatCSV, FormatTable} {
		err := Write(brokenWriter{}, format, balances())
		assert.EqualError(t, err, "pipe closed", format)
	}
}
