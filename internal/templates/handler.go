package templates

import (
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"resume-formatter/internal/shared/metrics"
	"resume-formatter/internal/shared/server/respond"
)

const (
	maxTemplateUpload = 2 << 20  // 2MB
	maxArchiveUpload  = 20 << 20 // 20MB
)

// Handler wires HTTP handlers to the template store.
type Handler struct {
	Store *Store
}

// NewHandler constructs a Handler.
func NewHandler(store *Store) *Handler {
	return &Handler{Store: store}
}

// RegisterRoutes attaches template routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/templates", h.list)
	rg.GET("/templates/:name", h.get)
	rg.POST("/templates", h.create)
	rg.POST("/templates/import", h.importArchive)
	rg.DELETE("/templates/:name", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	names, err := h.Store.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, gin.H{"templates": names})
}

func (h *Handler) get(c *gin.Context) {
	name, err := NormalizeName(c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	body, err := h.Store.Get(c.Request.Context(), name)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, Template{Name: name, Body: body})
}

type createRequest struct {
	Name string `json:"name"`
	Body string `json:"body"`
}

// create accepts either a multipart upload of a single .html/.htm file or a
// JSON body for manually entered templates.
func (h *Handler) create(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxTemplateUpload)

	var req createRequest
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
			return
		}
		if !HasTemplateExtension(fileHeader.Filename) {
			respond.Error(c, http.StatusBadRequest, "validation_error", "template file must be .html or .htm", nil)
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
			return
		}
		req.Name = strings.TrimSpace(c.PostForm("name"))
		if req.Name == "" {
			req.Name = path.Base(strings.ReplaceAll(fileHeader.Filename, "\\", "/"))
		}
		req.Body = string(data)
	} else {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
	}

	if req.Name == "" || req.Body == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "name and body are required", nil)
		return
	}

	name, err := h.Store.Put(c.Request.Context(), req.Name, req.Body)
	if err != nil {
		h.fail(c, err)
		return
	}
	metrics.AddTemplatesSaved(1)
	respond.JSON(c, http.StatusCreated, gin.H{"name": name})
}

func (h *Handler) importArchive(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxArchiveUpload)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}

	report, err := h.Store.ImportArchive(c.Request.Context(), data)
	if err != nil {
		h.fail(c, err)
		return
	}
	metrics.AddTemplatesSaved(len(report.Imported))
	respond.OK(c, report)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.Store.Delete(c.Request.Context(), c.Param("name")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) fail(c *gin.Context, err error) {
	var archiveErr *ArchiveError
	var storageErr *StorageError
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "template not found", nil)
	case errors.Is(err, ErrInvalidName), errors.Is(err, ErrInvalidBody):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.As(err, &archiveErr):
		respond.Error(c, http.StatusUnprocessableEntity, "invalid_archive", err.Error(), nil)
	case errors.As(err, &storageErr):
		respond.Error(c, http.StatusInternalServerError, "storage_error", "template storage failed", gin.H{"name": storageErr.Name, "op": storageErr.Op})
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "template request failed", nil)
	}
}
