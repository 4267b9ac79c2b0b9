package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"txengine/internal/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(&config.MySQLConfig{
		Host:     "db",
		Port:     3307,
		User:     "ledger",
		Password: "secret",
		Database: "txengine",
	})

	assert.Equal(t, "ledger:secret@tcp(db:3307)/txengine?charset=utf8mb4&parseTime=True&loc=Local", dsn)
}
