package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/and161185/carbon-tracker/internal/errs"
	"go.uber.org/zap"
)

// serverErrorBody is sent when a payload cannot be encoded.
const serverErrorBody = `{"detail":"server error","type":"server_error"}` + "\n"

// writeJSON encodes payload before any header is written, so an encoding failure
// still yields a 500.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("encode response", zap.Int("status", status), zap.Error(err))
		status, body = http.StatusInternalServerError, []byte(serverErrorBody)
	} else {
		body = append(body, '\n')
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

// writeServiceError maps sentinel errors to HTTP statuses. Unexpected errors are logged
// and answered with a generic body.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	switch {
	case errs.IsValidation(err):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, errs.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
	case errors.Is(err, errs.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, errs.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "conflict", "username or email already registered")
	default:
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "server_error", "server error")
	}
}
