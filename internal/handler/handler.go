package handler

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"txengine/internal/ingest"
	"txengine/internal/model"
	"txengine/internal/repository"
	"txengine/internal/service"
	"txengine/pkg/response"
)

const HeaderIdempotencyKey = "Idempotency-Key"

// IdempotencyGuard deduplicates submissions carrying an Idempotency-Key.
type IdempotencyGuard interface {
	Claim(ctx context.Context, key, owner string) (bool, error)
	Release(ctx context.Context, key, owner string) error
}

type Handler struct {
	ledger    *service.LedgerService
	snapshots *service.SnapshotService
	guard     IdempotencyGuard
	log       *zap.Logger
}

// NewHandler builds the API handler. snapshots and guard may be nil when
// the corresponding integrations are disabled.
func NewHandler(ledger *service.LedgerService, snapshots *service.SnapshotService, guard IdempotencyGuard, log *zap.Logger) *Handler {
	return &Handler{
		ledger:    ledger,
		snapshots: snapshots,
		guard:     guard,
		log:       log,
	}
}

// BalanceView renders balances with four fractional digits.
type BalanceView struct {
	Client    uint16 `json:"client"`
	Available string `json:"available"`
	Held      string `json:"held"`
	Total     string `json:"total"`
	Locked    bool   `json:"locked"`
}

func NewBalanceView(b model.Balance) BalanceView {
	return BalanceView{
		Client:    b.Client,
		Available: b.Available.StringFixed(model.ReportScale),
		Held:      b.Held.StringFixed(model.ReportScale),
		Total:     b.Total.StringFixed(model.ReportScale),
		Locked:    b.Locked,
	}
}

var ruleCodes = map[error]int{
	model.ErrAccountLocked:       response.CodeAccountLocked,
	model.ErrNegativeAmount:      response.CodeNegativeAmount,
	model.ErrInsufficientFunds:   response.CodeInsufficientFunds,
	model.ErrTransactionNotFound: response.CodeTransactionNotFound,
	model.ErrAlreadyDisputed:     response.CodeAlreadyDisputed,
	model.ErrNotDisputed:         response.CodeNotDisputed,
	model.ErrNotDisputable:       response.CodeNotDisputable,
	model.ErrClientMismatch:      response.CodeClientMismatch,
	model.ErrUnknownType:         response.CodeUnknownType,
}

func ruleCode(err error) int {
	if code, ok := ruleCodes[model.Reason(err)]; ok {
		return code
	}
	return response.CodeBusinessError
}

// ============================================================
// Transactions
// ============================================================

// SubmitRequest accepts ids and amount as JSON numbers or strings.
type SubmitRequest struct {
	Type   string      `json:"type" binding:"required"`
	Client json.Number `json:"client" binding:"required"`
	Tx     json.Number `json:"tx" binding:"required"`
	Amount json.Number `json:"amount"`
}

// SubmitTransaction applies one transaction.
// POST /api/v1/transactions
//
// With an Idempotency-Key header a key is applied at most once while it is
// held. Rejected submissions release their key so a corrected retry can
// reuse it.
func (h *Handler) SubmitTransaction(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	record := ingest.Record{
		Type:   req.Type,
		Client: req.Client.String(),
		Tx:     req.Tx.String(),
		Amount: req.Amount.String(),
	}
	tx, err := record.Transaction()
	if err != nil {
		response.ParamError(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	key := c.GetHeader(HeaderIdempotencyKey)
	owner := requestID(c)
	guarded := key != "" && h.guard != nil

	if guarded {
		claimed, err := h.guard.Claim(ctx, key, owner)
		if err != nil {
			h.log.Error("idempotency claim failed", zap.String("key", key), zap.Error(err))
			response.ServerError(c, "idempotency check unavailable")
			return
		}
		if !claimed {
			response.Error(c, response.CodeDuplicateRequest, "duplicate request")
			return
		}
	}

	balance, err := h.ledger.Submit(tx)
	if err != nil {
		if guarded {
			if relErr := h.guard.Release(ctx, key, owner); relErr != nil {
				h.log.Warn("idempotency release failed", zap.String("key", key), zap.Error(relErr))
			}
		}
		response.BusinessError(c, ruleCode(err), err.Error(), NewBalanceView(balance))
		return
	}

	response.Success(c, NewBalanceView(balance))
}

// ============================================================
// Accounts
// ============================================================

// ListAccounts returns every balance in ascending client order.
// GET /api/v1/accounts
func (h *Handler) ListAccounts(c *gin.Context) {
	balances := h.ledger.Balances()

	list := make([]BalanceView, 0, len(balances))
	for _, b := range balances {
		list = append(list, NewBalanceView(b))
	}

	response.Success(c, gin.H{
		"list":  list,
		"total": len(list),
	})
}

// GetAccount
// GET /api/v1/accounts/:client
func (h *Handler) GetAccount(c *gin.Context) {
	client, err := strconv.ParseUint(c.Param("client"), 10, 16)
	if err != nil {
		response.ParamError(c, "invalid client id")
		return
	}

	balance, ok := h.ledger.Balance(uint16(client))
	if !ok {
		response.NotFound(c, response.CodeAccountNotFound, "account not found")
		return
	}

	response.Success(c, NewBalanceView(balance))
}

// GetStats
// GET /api/v1/stats
func (h *Handler) GetStats(c *gin.Context) {
	response.Success(c, h.ledger.Stats())
}

// ============================================================
// Snapshots
// ============================================================

// ExportSnapshot exports the current balances immediately.
// POST /api/v1/snapshots
func (h *Handler) ExportSnapshot(c *gin.Context) {
	if h.snapshots == nil {
		response.Error(c, response.CodeNotFound, "snapshot export not configured")
		return
	}

	result, err := h.snapshots.Export(c.Request.Context())
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, result)
}

// GetSnapshot
// GET /api/v1/snapshots/:run_no
func (h *Handler) GetSnapshot(c *gin.Context) {
	if h.snapshots == nil {
		response.Error(c, response.CodeNotFound, "snapshot export not configured")
		return
	}

	rows, err := h.snapshots.Find(c.Request.Context(), c.Param("run_no"))
	switch {
	case errors.Is(err, service.ErrSnapshotStoreDisabled), errors.Is(err, repository.ErrSnapshotNotFound):
		response.NotFound(c, response.CodeNotFound, err.Error())
		return
	case err != nil:
		response.ServerError(c, err.Error())
		return
	}

	list := make([]BalanceView, 0, len(rows))
	for _, r := range rows {
		list = append(list, NewBalanceView(model.Balance{
			Client:    r.Client,
			Available: r.Available,
			Held:      r.Held,
			Total:     r.Total,
			Locked:    r.Locked,
		}))
	}

	response.Success(c, gin.H{
		"run_no": c.Param("run_no"),
		"list":   list,
	})
}
