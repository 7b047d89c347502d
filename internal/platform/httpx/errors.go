package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RespondError maps domain errors to RFC7807 responses. Unrecognised
// errors become a 500 and are logged with the request path.
func RespondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, err.Error())
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrInsufficientStock),
		errors.Is(err, shared.ErrOverpayment):
		Problem(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, shared.ErrInvalidState),
		errors.Is(err, shared.ErrConflict),
		errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, err.Error())
	default:
		if logger != nil {
			logger.Error("unhandled error", slog.String("path", r.URL.Path), slog.Any("error", err))
		}
		Problem(w, http.StatusInternalServerError, "")
	}
}
