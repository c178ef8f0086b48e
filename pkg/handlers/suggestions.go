package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/otscribe/report-engine/pkg/apperrors"
	"github.com/otscribe/report-engine/pkg/auth"
	"github.com/otscribe/report-engine/pkg/models"
	"github.com/otscribe/report-engine/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// BatchUsageField is one submitted field value. Value is decoded
// loosely; non-string values are skipped rather than rejected so a
// partially structured form submission still records what it can.
type BatchUsageField struct {
	Category  string `json:"category"`
	FieldName string `json:"fieldName"`
	Value     any    `json:"value"`
}

// BatchUsageRequest for POST /api/suggestions/batch-usage
type BatchUsageRequest struct {
	Fields []BatchUsageField `json:"fields"`
}

// EditSuggestionRequest for PUT /api/suggestions/{sid}
type EditSuggestionRequest struct {
	Text string `json:"text"`
}

// PinResponse reports the pin state after a toggle.
type PinResponse struct {
	IsPinned bool `json:"isPinned"`
}

// ============================================================================
// Handler
// ============================================================================

// SuggestionHandler handles suggestion retrieval, usage recording, and
// suggestion management HTTP requests.
type SuggestionHandler struct {
	scorer      services.ScorerService
	usage       services.UsageService
	suggestions services.SuggestionService
	logger      *zap.Logger
}

// NewSuggestionHandler creates a new suggestion handler.
func NewSuggestionHandler(
	scorer services.ScorerService,
	usage services.UsageService,
	suggestions services.SuggestionService,
	logger *zap.Logger,
) *SuggestionHandler {
	return &SuggestionHandler{
		scorer:      scorer,
		usage:       usage,
		suggestions: suggestions,
		logger:      logger,
	}
}

// RegisterRoutes registers the suggestion handler's routes on the given mux.
func (h *SuggestionHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/suggestions/intelligent", authMiddleware.RequireAuth(h.Fetch))
	mux.HandleFunc("POST /api/suggestions/batch-usage", authMiddleware.RequireAuth(h.BatchUsage))
	mux.HandleFunc("PUT /api/suggestions/{sid}", authMiddleware.RequireAuth(h.Edit))
	mux.HandleFunc("DELETE /api/suggestions/{sid}", authMiddleware.RequireAuth(h.Delete))
	mux.HandleFunc("POST /api/suggestions/{sid}/pin", authMiddleware.RequireAuth(h.TogglePin))
}

// Fetch handles GET /api/suggestions/intelligent
func (h *SuggestionHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Missing authentication")
		return
	}

	query := r.URL.Query()
	category := strings.TrimSpace(query.Get("category"))
	fieldName := strings.TrimSpace(query.Get("fieldName"))
	if category == "" || fieldName == "" {
		h.writeError(w, http.StatusBadRequest, "missing_parameters", "category and fieldName are required")
		return
	}

	fetchQuery := services.FetchQuery{
		Category:  category,
		FieldName: fieldName,
		Tab:       query.Get("tab"),
		Context:   parseContextParam(query.Get("context"), h.logger),
		Value:     query.Get("value"),
		FieldSize: query.Get("size"),
	}
	if raw := query.Get("ageMonths"); raw != "" {
		if months, err := strconv.Atoi(raw); err == nil {
			fetchQuery.AgeMonths = months
		}
	}

	result, err := h.scorer.Fetch(r.Context(), userID, fetchQuery)
	if err != nil {
		h.logger.Error("Failed to fetch suggestions",
			zap.String("category", category),
			zap.String("field", fieldName),
			zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "fetch_suggestions_failed", "Failed to fetch suggestions")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// BatchUsage handles POST /api/suggestions/batch-usage
func (h *SuggestionHandler) BatchUsage(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Missing authentication")
		return
	}

	var req BatchUsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request_body", "Invalid JSON in request body")
		return
	}
	if req.Fields == nil {
		h.writeError(w, http.StatusBadRequest, "invalid_fields", "fields must be an array")
		return
	}

	fields := make([]models.FieldUsage, 0, len(req.Fields))
	for _, f := range req.Fields {
		value, ok := f.Value.(string)
		if !ok {
			continue
		}
		fields = append(fields, models.FieldUsage{
			Category:  f.Category,
			FieldName: f.FieldName,
			Value:     value,
		})
	}

	result := h.usage.RecordBatch(r.Context(), userID, fields)

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Edit handles PUT /api/suggestions/{sid}
func (h *SuggestionHandler) Edit(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Missing authentication")
		return
	}
	suggestionID, ok := ParseSuggestionID(w, r, h.logger)
	if !ok {
		return
	}

	var req EditSuggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request_body", "Invalid JSON in request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_text", "text is required")
		return
	}

	updated, err := h.suggestions.Edit(r.Context(), userID, suggestionID, req.Text)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "suggestion_not_found", "Suggestion not found")
			return
		}
		h.logger.Error("Failed to edit suggestion", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "edit_suggestion_failed", "Failed to edit suggestion")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: updated}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/suggestions/{sid}
func (h *SuggestionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Missing authentication")
		return
	}
	suggestionID, ok := ParseSuggestionID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.suggestions.Delete(r.Context(), userID, suggestionID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "suggestion_not_found", "Suggestion not found")
			return
		}
		h.logger.Error("Failed to delete suggestion", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "delete_suggestion_failed", "Failed to delete suggestion")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// TogglePin handles POST /api/suggestions/{sid}/pin
func (h *SuggestionHandler) TogglePin(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Missing authentication")
		return
	}
	suggestionID, ok := ParseSuggestionID(w, r, h.logger)
	if !ok {
		return
	}

	pinned, err := h.suggestions.TogglePin(r.Context(), userID, suggestionID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "suggestion_not_found", "Suggestion not found")
		case errors.Is(err, apperrors.ErrPinLimitExceeded):
			h.writeError(w, http.StatusBadRequest, "pin_limit_exceeded", "This field already has the maximum number of pinned suggestions")
		default:
			h.logger.Error("Failed to toggle pin", zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "toggle_pin_failed", "Failed to toggle pin")
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: PinResponse{IsPinned: pinned}}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *SuggestionHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

// parseContextParam decodes the context query parameter. The client
// sends sibling values as a JSON object; anything malformed degrades to
// an empty context instead of failing the fetch.
func parseContextParam(raw string, logger *zap.Logger) map[string]string {
	if raw == "" {
		return nil
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		logger.Debug("Ignoring malformed context parameter", zap.Error(err))
		return nil
	}

	context := make(map[string]string, len(decoded))
	for field, value := range decoded {
		if s, ok := value.(string); ok {
			context[field] = s
		}
	}
	return context
}
