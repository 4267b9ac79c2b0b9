package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeNotFound      = 404
	CodeServerError   = 500
	CodeBusinessError = 1000
)

const (
	CodeDuplicateRequest = 1004
	CodeAccountNotFound  = 1005
)

// Ledger rule rejections.
const (
	CodeAccountLocked       = 1101
	CodeNegativeAmount      = 1102
	CodeInsufficientFunds   = 1103
	CodeTransactionNotFound = 1104
	CodeAlreadyDisputed     = 1105
	CodeNotDisputed         = 1106
	CodeNotDisputable       = 1107
	CodeClientMismatch      = 1108
	CodeUnknownType         = 1109
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func NotFound(c *gin.Context, code int, message string) {
	Error(c, code, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

// BusinessError reports a rejection that still carries data, such as the
// unchanged balance of the account a transaction was refused on.
func BusinessError(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}
