package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ParseSuggestionID extracts and validates the suggestion ID from the
// request path. Returns the parsed UUID and true on success, or uuid.Nil
// and false after writing an error response.
// Expects path parameter: sid
func ParseSuggestionID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "sid", "invalid_suggestion_id", "Invalid suggestion ID format", logger)
}

// ParseTemplateID extracts and validates the template ID from the
// request path. Returns the parsed UUID and true on success, or uuid.Nil
// and false after writing an error response.
// Expects path parameter: tid
func ParseTemplateID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "tid", "invalid_template_id", "Invalid template ID format", logger)
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}
