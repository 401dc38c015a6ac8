package runs

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"resume-formatter/internal/export"
	"resume-formatter/internal/shared/server/respond"
	"resume-formatter/internal/shared/storage/object"
)

// Handler wires HTTP handlers to the run ledger.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches run routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/runs", h.list)
	rg.GET("/runs/:id", h.get)
	rg.GET("/runs/:id/export/:format", h.export)
}

func (h *Handler) list(c *gin.Context) {
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	items, err := h.Svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list runs", nil)
		return
	}

	resp := make([]gin.H, 0, len(items))
	for _, run := range items {
		resp = append(resp, gin.H{
			"id":           run.ID,
			"fileName":     run.FileName,
			"templateName": run.TemplateName,
			"state":        run.State,
			"errorKind":    run.ErrorKind,
			"warnings":     len(run.Warnings),
			"createdAt":    run.CreatedAt,
			"completedAt":  run.CompletedAt,
		})
	}
	respond.OK(c, resp)
}

func (h *Handler) get(c *gin.Context) {
	run, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "run not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch run", nil)
		return
	}
	respond.OK(c, run)
}

func (h *Handler) export(c *gin.Context) {
	format, err := export.ParseFormat(c.Param("format"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "format must be html, json or base64", nil)
		return
	}

	art, err := h.Svc.Export(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		var serr *export.SerializationError
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "run not found", nil)
		case errors.Is(err, ErrNotDone):
			respond.Error(c, http.StatusConflict, "not_done", err.Error(), nil)
		case errors.Is(err, object.ErrNotFound):
			respond.Error(c, http.StatusGone, "input_unavailable", "original upload is no longer available", nil)
		case errors.As(err, &serr):
			respond.Error(c, http.StatusUnprocessableEntity, "serialization_error", err.Error(), gin.H{"path": serr.Path})
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to export run", nil)
		}
		return
	}
	respond.Download(c, art.Filename, art.ContentType, art.Bytes)
}
