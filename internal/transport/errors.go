package transport

import (
	"errors"
	"net/http"

	"farmmarket/internal/domain"
	"farmmarket/internal/middleware"

	"go.uber.org/zap"
)

// writeServiceError maps the domain error taxonomy onto HTTP. Unclassified errors are logged
// with full detail and reported to the client only as a generic failure.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	var batch *domain.BatchError
	if errors.As(err, &batch) {
		status := http.StatusConflict
		if !errors.Is(err, domain.ErrOutOfStock) {
			status = http.StatusNotFound
		}
		logger.Debug("Batch rejected", zap.String("op", op), zap.Error(err))
		middleware.RespondWithErrorDetails(w, status, "one or more items could not be processed", map[string]any{
			"failures": failureDetails(batch),
		})
		return
	}

	var failure *domain.ItemFailure
	if errors.As(err, &failure) {
		status := http.StatusConflict
		if !errors.Is(err, domain.ErrOutOfStock) {
			status = http.StatusNotFound
		}
		middleware.RespondWithErrorDetails(w, status, failure.Err.Error(), map[string]any{
			"failures": failureDetails(&domain.BatchError{Failures: []*domain.ItemFailure{failure}}),
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		middleware.RespondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrOutOfStock), errors.Is(err, domain.ErrStateConflict):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrTransaction):
		logger.Warn("Transaction failed", zap.String("op", op), zap.Error(err))
		middleware.RespondWithError(w, http.StatusServiceUnavailable, "the operation could not be completed, please retry")
	default:
		logger.Error("Request failed", zap.String("op", op), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

type itemFailure struct {
	ProductID string `json:"productId"`
	Reason    string `json:"reason"`
	Requested int    `json:"requested"`
	Available *int   `json:"available,omitempty"`
}

func failureDetails(batch *domain.BatchError) []itemFailure {
	out := make([]itemFailure, 0, len(batch.Failures))
	for _, f := range batch.Failures {
		entry := itemFailure{
			ProductID: f.ProductID.String(),
			Reason:    f.Err.Error(),
			Requested: f.Requested,
		}
		if errors.Is(f.Err, domain.ErrOutOfStock) {
			available := f.Available
			entry.Available = &available
		}
		out = append(out, entry)
	}
	return out
}
