package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"ticketer/internal/models"
)

const maxJSONBody = 1 << 20

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps err onto a status code and error body. Server side
// failures are logged, their details are not returned.
func writeError(w http.ResponseWriter, r *http.Request, logger *logrus.Logger, err error) {
	status, code := statusForError(err)

	resp := ErrorResponse{Error: err.Error(), Code: code}

	var verr *models.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}

	if status >= http.StatusInternalServerError {
		logger.WithContext(r.Context()).WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		resp.Error = http.StatusText(status)
	}

	writeJSON(w, status, resp)
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, models.ErrUnauthorized), errors.Is(err, models.ErrInvalidCredential):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, models.ErrTicketNotFound), errors.Is(err, models.ErrUserNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrTicketAlreadyUsed), errors.Is(err, models.ErrPreconditionFailed):
		return http.StatusConflict, "already_used"
	case errors.Is(err, models.ErrDuplicateEntry):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, models.ErrTicketExpired):
		return http.StatusGone, "expired"
	case models.IsRetryable(err):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// statusForOutcome is the HTTP status of a redemption outcome
func statusForOutcome(outcome models.RedemptionOutcome) int {
	switch outcome {
	case models.OutcomeSuccess:
		return http.StatusOK
	case models.OutcomeAlreadyUsed:
		return http.StatusConflict
	case models.OutcomeExpired:
		return http.StatusGone
	case models.OutcomeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON request body into dst. An empty body is allowed
// when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return &models.ValidationError{
			Fields: map[string]string{"body": "must be a valid JSON object"},
			Err:    err,
		}
	}

	return nil
}
