package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Validate is the process-wide request validator.
var Validate = validator.New(validator.WithRequiredStructEnabled())

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError maps domain sentinels onto HTTP statuses and writes the error
// envelope. Unrecognised errors become a 500 with a generic body so internal
// details stay out of responses.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, ErrNotFound):
		WriteJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnbalancedEntry), errors.As(err, &verrs):
		WriteJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrLockHeld):
		WriteJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		if logger != nil {
			logger.Error("request failed", slog.Any("error", err))
		}
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: http.StatusText(http.StatusInternalServerError)})
	}
}

// DecodeJSON decodes a request body into dst and runs struct validation.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := Validate.Struct(dst); err != nil {
		return err
	}
	return nil
}
