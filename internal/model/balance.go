package model

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ReportScale is the number of fractional digits balances are reported with.
const ReportScale = 4

// Balance is a point-in-time copy of an account's reportable state.
type Balance struct {
	Client    uint16          `json:"client"`
	Available decimal.Decimal `json:"available"`
	Held      decimal.Decimal `json:"held"`
	Total     decimal.Decimal `json:"total"`
	Locked    bool            `json:"locked"`
}

// Row renders the balance as report columns: client, available, held, total, locked.
func (b Balance) Row() []string {
	return []string{
		strconv.FormatUint(uint64(b.Client), 10),
		b.Available.StringFixed(ReportScale),
		b.Held.StringFixed(ReportScale),
		b.Total.StringFixed(ReportScale),
		strconv.FormatBool(b.Locked),
	}
}

// ReportHeader is the column header matching Balance.Row.
var ReportHeader = []string{"client", "available", "held", "total", "locked"}

// ============================================================================
// Snapshot table
// ============================================================================

// AccountSnapshot is one exported balance row. Rows are append-only and
// grouped by RunNo, one run per export.
type AccountSnapshot struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	RunNo     string          `gorm:"type:varchar(64);uniqueIndex:uk_run_client;not null" json:"run_no"`
	Client    uint16          `gorm:"uniqueIndex:uk_run_client;not null" json:"client"`
	Available decimal.Decimal `gorm:"type:decimal(30,4);not null" json:"available"`
	Held      decimal.Decimal `gorm:"type:decimal(30,4);not null" json:"held"`
	Total     decimal.Decimal `gorm:"type:decimal(30,4);not null" json:"total"`
	Locked    bool            `gorm:"not null;default:false" json:"locked"`
	CreatedAt time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AccountSnapshot) TableName() string {
	return "account_snapshot"
}

// NewAccountSnapshot maps a balance to its export row, rounded to the
// report scale.
func NewAccountSnapshot(runNo string, b Balance) *AccountSnapshot {
	return &AccountSnapshot{
		RunNo:     runNo,
		Client:    b.Client,
		Available: b.Available.Round(ReportScale),
		Held:      b.Held.Round(ReportScale),
		Total:     b.Total.Round(ReportScale),
		Locked:    b.Locked,
	}
}
