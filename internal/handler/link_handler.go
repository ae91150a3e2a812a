package handler

import (
	"errors"
	"net/http"

	"github.com/SergeiKhy/linkregistry/internal/middleware"
	"github.com/SergeiKhy/linkregistry/internal/models"
	"github.com/SergeiKhy/linkregistry/internal/service"
	"github.com/SergeiKhy/linkregistry/internal/validation"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LinkHandler struct {
	registry service.LinkRegistry
	baseURL  string
	logger   *zap.Logger
}

func NewLinkHandler(registry service.LinkRegistry, baseURL string, logger *zap.Logger) *LinkHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkHandler{
		registry: registry,
		baseURL:  baseURL,
		logger:   logger,
	}
}

type CreateLinkRequest struct {
	URL  string  `json:"url"`
	Code *string `json:"code,omitempty"`
}

type LinkResponse struct {
	Link     *models.Link `json:"link"`
	ShortURL string       `json:"shortUrl"`
}

type ListLinksResponse struct {
	Links []models.Link `json:"links"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateLink godoc
// @Summary Create a short link
// @Tags links
// @Accept json
// @Produce json
// @Param request body CreateLinkRequest true "Link creation request"
// @Success 201 {object} LinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/links [post]
func (h *LinkHandler) CreateLink(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.String("request_id", middleware.GetRequestID(c)), zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Request body must be a JSON object with a url field",
		})
		return
	}

	link, err := h.registry.CreateLink(c.Request.Context(), &models.CreateLinkInput{
		URL:  req.URL,
		Code: req.Code,
	})
	if err != nil {
		h.respondError(c, "create", err)
		return
	}

	c.JSON(http.StatusCreated, h.linkResponse(link))
}

// ListLinks godoc
// @Summary List all links, newest first
// @Tags links
// @Produce json
// @Success 200 {object} ListLinksResponse
// @Router /api/v1/links [get]
func (h *LinkHandler) ListLinks(c *gin.Context) {
	links, err := h.registry.ListLinks(c.Request.Context())
	if err != nil {
		h.respondError(c, "list", err)
		return
	}

	c.JSON(http.StatusOK, ListLinksResponse{Links: links})
}

// GetLink godoc
// @Summary Get a link with its click counters
// @Tags links
// @Produce json
// @Param code path string true "Short code"
// @Success 200 {object} LinkResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{code} [get]
func (h *LinkHandler) GetLink(c *gin.Context) {
	link, err := h.registry.GetLink(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.respondError(c, "get", err)
		return
	}

	c.JSON(http.StatusOK, h.linkResponse(link))
}

// DeleteLink godoc
// @Summary Delete a short link
// @Tags links
// @Produce json
// @Param code path string true "Short code"
// @Success 200 {object} map[string]bool
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{code} [delete]
func (h *LinkHandler) DeleteLink(c *gin.Context) {
	if err := h.registry.DeleteLink(c.Request.Context(), c.Param("code")); err != nil {
		h.respondError(c, "delete", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Redirect godoc
// @Summary Redirect to the destination URL and count the click
// @Tags links
// @Param code path string true "Short code"
// @Success 302
// @Failure 404 {object} ErrorResponse
// @Router /{code} [get]
func (h *LinkHandler) Redirect(c *gin.Context) {
	target, err := h.registry.ResolveAndRecordClick(c.Request.Context(), c.Param("code"))
	if err != nil {
		// Невалидный код на редиректе неотличим от отсутствующего
		if errors.Is(err, service.ErrValidation) {
			err = service.ErrNotFound
		}
		h.respondError(c, "redirect", err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, target)
}

func (h *LinkHandler) linkResponse(link *models.Link) LinkResponse {
	return LinkResponse{
		Link:     link,
		ShortURL: h.baseURL + "/" + link.Code,
	}
}

// respondError переводит ошибки реестра в HTTP статусы
func (h *LinkHandler) respondError(c *gin.Context, op string, err error) {
	status, body := errorResponse(err)

	fields := []zap.Field{
		zap.String("operation", op),
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Link operation failed", fields...)
	} else {
		h.logger.Debug("Link operation rejected", fields...)
	}

	_ = c.Error(err)
	c.JSON(status, body)
}

func errorResponse(err error) (int, ErrorResponse) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, ErrorResponse{Error: "invalid_" + verr.Field, Message: verr.Error()}
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()}
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Link not found"}
	case errors.Is(err, service.ErrCapacityExhausted):
		return http.StatusServiceUnavailable, ErrorResponse{
			Error:   "code_space_exhausted",
			Message: "Unable to generate a unique short code. Try again.",
		}
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, ErrorResponse{
			Error:   "code_taken",
			Message: "That code already exists. Please choose another one.",
		}
	case errors.Is(err, service.ErrUnavailable):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "unavailable", Message: "Link store is temporarily unavailable"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Internal server error"}
	}
}
