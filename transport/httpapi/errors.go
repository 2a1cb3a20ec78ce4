package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	devAuth "github.com/MrEthical07/devAuth"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// writeEngineError maps engine sentinels onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, devAuth.ErrInvalidCredentials), errors.Is(err, devAuth.ErrUserNotFound):
		// both collapse to one answer so usernames cannot be probed
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	case errors.Is(err, devAuth.ErrAccountLocked):
		writeError(w, http.StatusForbidden, "account_locked", "account locked")
	case errors.Is(err, devAuth.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already_exists", "username or email already registered")
	case errors.Is(err, devAuth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, devAuth.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, "device_not_found", "device not found")
	case errors.Is(err, devAuth.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request")
	case errors.Is(err, devAuth.ErrLoginSuperseded):
		writeError(w, http.StatusConflict, "login_superseded", "a newer login for this device completed first")
	case errors.Is(err, devAuth.ErrCacheUnavailable), errors.Is(err, devAuth.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "unavailable", "service temporarily unavailable")
	default:
		logger.Error("internal server error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
