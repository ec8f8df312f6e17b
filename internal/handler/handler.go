// Package handler contains the HTTP endpoints. Handlers parse and validate
// requests, call the service layer, and map error kinds to status codes;
// no business rules live here.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/nourishbox/api/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errorBody is the uniform error payload. Reason is a machine-readable
// deny code, present on guard rejections only.
type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// writeError maps a service error to an HTTP response. Unclassified errors
// become opaque 500s; their detail goes to the server log, not the client.
func writeError(w http.ResponseWriter, err error) {
	kind, ok := apperr.KindOf(err)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}

	body := errorBody{Error: err.Error(), Reason: apperr.ReasonOf(err)}
	switch kind {
	case apperr.KindValidation:
		writeJSON(w, http.StatusBadRequest, body)
	case apperr.KindNotFound:
		writeJSON(w, http.StatusNotFound, body)
	case apperr.KindPermission:
		writeJSON(w, http.StatusForbidden, body)
	case apperr.KindSignature:
		writeJSON(w, http.StatusUnauthorized, body)
	case apperr.KindInvalidTransition, apperr.KindReconciliation, apperr.KindAlreadyProcessed:
		writeJSON(w, http.StatusConflict, body)
	case apperr.KindProvider:
		writeJSON(w, http.StatusBadGateway, body)
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}

// naira renders a kobo amount as a naira string with two decimals. The
// core only ever handles integer kobo; this is the one conversion point.
func naira(kobo int64) string {
	return decimal.NewFromInt(kobo).Div(decimal.NewFromInt(100)).StringFixed(2)
}
