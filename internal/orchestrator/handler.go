package orchestrator

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"resume-formatter/internal/parser"
	"resume-formatter/internal/shared/server/middleware"
	"resume-formatter/internal/shared/server/respond"
	"resume-formatter/internal/templates"
)

const maxUploadSize = 10 << 20 // 10MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches processing routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/process", h.process)
	rg.GET("/status", h.status)
}

type processResponse struct {
	RunID    string         `json:"runId"`
	State    State          `json:"state"`
	HTML     string         `json:"html"`
	Preview  string         `json:"preview"`
	Data     map[string]any `json:"data"`
	Warnings []string       `json:"warnings"`
	Pages    int            `json:"pages"`
}

func (h *Handler) process(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	templateName := strings.TrimSpace(c.PostForm("template"))
	if templateName == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "template is required", nil)
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

	res, err := h.Svc.Process(c.Request.Context(), ProcessRequest{
		TemplateName: templateName,
		FileName:     fileHeader.Filename,
		PDF:          data,
		Endpoint:     c.PostForm("endpoint"),
		APIKey:       c.PostForm("apiKey"),
	})
	if res.RunID != "" {
		c.Set(middleware.RunIDKey, res.RunID)
	}
	if err != nil {
		h.fail(c, res, err)
		return
	}

	respond.OK(c, processResponse{
		RunID:    res.RunID,
		State:    res.State,
		HTML:     res.Outcome.Render.HTML,
		Preview:  res.Outcome.Preview,
		Data:     res.Outcome.Data,
		Warnings: res.Outcome.Warnings,
		Pages:    res.Outcome.Input.Pages,
	})
}

func (h *Handler) fail(c *gin.Context, res Result, err error) {
	var perr *parser.ParseError
	switch {
	case errors.As(err, &perr):
		respond.Error(c, http.StatusBadGateway, "parse_error", perr.Error(), gin.H{
			"runId":       res.RunID,
			"state":       res.State,
			"kind":        perr.Kind,
			"status":      perr.Status,
			"bodyExcerpt": perr.BodyExcerpt,
		})
	case errors.Is(err, ErrBusy):
		respond.Error(c, http.StatusConflict, "busy", err.Error(), nil)
	case errors.Is(err, ErrEndpointMissing):
		respond.Error(c, http.StatusBadRequest, "endpoint_missing", "configure the parsing endpoint before processing", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), gin.H{"runId": res.RunID})
	case errors.Is(err, templates.ErrInvalidName):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, templates.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "template not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to process resume", gin.H{"runId": res.RunID})
	}
}

func (h *Handler) status(c *gin.Context) {
	st, err := h.Svc.Status(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "storage_error", "failed to list templates", nil)
		return
	}
	respond.OK(c, st)
}
