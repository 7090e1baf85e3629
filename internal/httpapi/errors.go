package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hyu9999/paper-trading-1/internal/domain"
)

// errorBody is the {code, detail} shape returned for any non-2xx response.
type errorBody struct {
	Code   int    `json:"code"`
	Detail string `json:"detail"`
}

// writeError maps a domain error (or a plain error) onto an HTTP status
// and the {code, detail} body.
func writeError(w http.ResponseWriter, err error) {
	var derr *domain.Error
	if errors.As(err, &derr) {
		writeJSON(w, statusForCode(derr.Code()), errorBody{Code: int(derr.Code()), Detail: derr.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{Code: 0, Detail: err.Error()})
}

func statusForCode(code domain.Code) int {
	switch code {
	case domain.CodeInvalidUserID, domain.CodeInvalidAuthTokenPrefix, domain.CodeAuthHeaderNotFound,
		domain.CodeInvalidAuthToken, domain.CodeWrongTokenFormat, domain.CodeInvalidAuthMode:
		return http.StatusUnauthorized
	case domain.CodeOrderNotFound, domain.CodeEntityNotFound:
		return http.StatusNotFound
	case domain.CodeUserTerminated:
		return http.StatusForbidden
	case domain.CodeInsufficientAccountFunds, domain.CodeInvalidOrderExchange, domain.CodeNotTradingTime,
		domain.CodeCancelOrderFailed, domain.CodeNoPositionsAvailable, domain.CodeNotEnoughPositions,
		domain.CodeGetQuotesFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
