package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
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

// UpdateTemplateRequest for PUT /api/templates/{tid}
type UpdateTemplateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// TemplateListResponse for GET /api/templates
type TemplateListResponse struct {
	Templates []*models.Template `json:"templates"`
	Total     int                `json:"total"`
}

// ============================================================================
// Handler
// ============================================================================

// TemplateHandler handles report template HTTP requests.
type TemplateHandler struct {
	templateService services.TemplateService
	maxUploadBytes  int64
	logger          *zap.Logger
}

// NewTemplateHandler creates a new template handler.
func NewTemplateHandler(templateService services.TemplateService, maxUploadBytes int64, logger *zap.Logger) *TemplateHandler {
	return &TemplateHandler{
		templateService: templateService,
		maxUploadBytes:  maxUploadBytes,
		logger:          logger,
	}
}

// RegisterRoutes registers the template handler's routes on the given mux.
func (h *TemplateHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/templates/upload", authMiddleware.RequireAuth(h.Upload))
	mux.HandleFunc("GET /api/templates", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("PUT /api/templates/{tid}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /api/templates/{tid}", authMiddleware.RequireAuth(h.Delete))
	mux.HandleFunc("GET /api/templates/{tid}/download", authMiddleware.RequireAuth(h.Download))
}

// Upload handles POST /api/templates (multipart form with a "file" part
// plus optional "name" and "description" fields).
func (h *TemplateHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Missing authentication")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_upload", "Upload is not valid multipart form data or exceeds the size limit")
		return
	}

	file, header, err := r.FormFile("template")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "missing_file", "A template file is required")
		return
	}
	defer file.Close()

	template, err := h.templateService.Upload(r.Context(), userID, services.TemplateUpload{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Filename:    header.Filename,
		Content:     file,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrUnsupportedFileType) {
			h.writeError(w, http.StatusBadRequest, "unsupported_file_type", "Only .docx templates are supported")
			return
		}
		h.logger.Error("Failed to store template", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "upload_template_failed", "Failed to store template")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: template}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/templates
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Missing authentication")
		return
	}

	templates, err := h.templateService.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list templates", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "list_templates_failed", "Failed to list templates")
		return
	}

	response := TemplateListResponse{Templates: templates, Total: len(templates)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/templates/{tid}
func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Missing authentication")
		return
	}
	templateID, ok := ParseTemplateID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request_body", "Invalid JSON in request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_name", "name is required")
		return
	}

	template, err := h.templateService.UpdateMeta(r.Context(), userID, templateID, req.Name, req.Description)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "template_not_found", "Template not found")
			return
		}
		h.logger.Error("Failed to update template", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "update_template_failed", "Failed to update template")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: template}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/templates/{tid}
func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Missing authentication")
		return
	}
	templateID, ok := ParseTemplateID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.templateService.Delete(r.Context(), userID, templateID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "template_not_found", "Template not found")
			return
		}
		h.logger.Error("Failed to delete template", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "delete_template_failed", "Failed to delete template")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Download handles GET /api/templates/{tid}/download
func (h *TemplateHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Missing authentication")
		return
	}
	templateID, ok := ParseTemplateID(w, r, h.logger)
	if !ok {
		return
	}

	template, reader, err := h.templateService.Open(r.Context(), userID, templateID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "template_not_found", "Template not found")
			return
		}
		h.logger.Error("Failed to open template", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "download_template_failed", "Failed to download template")
		return
	}
	defer reader.Close()

	filename := template.Name + filepath.Ext(template.FilePath)
	w.Header().Set("Content-Type", models.DocxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Error("Failed to stream template", zap.Error(err))
	}
}

func (h *TemplateHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
