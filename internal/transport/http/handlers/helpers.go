package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/parfum314159/pi-backend/internal/infra/pi"
	httperrors "github.com/parfum314159/pi-backend/internal/transport/http/errors"
)

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeForbidden(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusForbidden, httperrors.APIError{Code: code, Message: message})
}

func writeNotFound(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusNotFound, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}

// writeProviderError maps an upstream payment-provider failure to 502.
// The intent stays stored, so the caller may retry via resolve-pending.
func writeProviderError(w http.ResponseWriter, err error) bool {
	if !pi.IsProviderError(err) {
		return false
	}
	httperrors.Write(w, http.StatusBadGateway, httperrors.APIError{
		Code:    "PROVIDER_ERROR",
		Message: "payment provider request failed",
	})
	return true
}
