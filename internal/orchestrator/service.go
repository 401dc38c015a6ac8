package orchestrator

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"resume-formatter/internal/runs"
	"resume-formatter/internal/shared/metrics"
	"resume-formatter/internal/shared/storage/object"
	"resume-formatter/internal/shared/telemetry"
	"resume-formatter/internal/templates"
)

const uploadsNamespace = "uploads"

// ProcessRequest is one resume to format with a stored template.
type ProcessRequest struct {
	TemplateName string
	FileName     string
	PDF          []byte
	// Endpoint and APIKey override the configured credentials when set.
	Endpoint string
	APIKey   string
}

// Result is what a Process call produced. RunID is set once the attempt has
// been recorded, including for failed runs.
type Result struct {
	RunID   string
	State   State
	Outcome Outcome
}

// Service runs one session at a time and records every attempt in the run
// ledger.
type Service struct {
	Templates *templates.Store
	Runs      runs.Repo
	Uploads   object.ObjectStore
	Deps      Deps
	Endpoint  string
	APIKey    string

	mu sync.Mutex
}

// Process formats req.PDF with the named template. It returns ErrBusy
// without waiting when another call is in flight.
func (s *Service) Process(ctx context.Context, req ProcessRequest) (Result, error) {
	if !s.mu.TryLock() {
		metrics.IncRunBusy()
		return Result{}, ErrBusy
	}
	defer s.mu.Unlock()

	name, err := templates.NormalizeName(req.TemplateName)
	if err != nil {
		return Result{}, err
	}
	body, err := s.Templates.Get(ctx, name)
	if err != nil {
		return Result{}, err
	}

	endpoint, apiKey := s.credentials(req)
	if endpoint == "" {
		return Result{}, ErrEndpointMissing
	}

	session := NewSession(s.Deps, endpoint, apiKey)
	if err := session.SelectTemplate(name, body); err != nil {
		return Result{}, err
	}
	if err := session.SelectInput(req.FileName, req.PDF); err != nil {
		return Result{}, err
	}

	run := runs.Run{
		ID:           uuid.NewString(),
		FileName:     req.FileName,
		TemplateName: name,
		State:        string(StateParsing),
		Warnings:     []string{},
		InputKey:     s.retainInput(ctx, req),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.Runs.Create(ctx, run); err != nil {
		return Result{}, errors.Wrap(err, "record run")
	}
	metrics.IncRunStarted()

	outcome, procErr := session.Process(ctx)
	s.finish(ctx, &run, session, outcome, procErr)

	return Result{RunID: run.ID, State: session.State(), Outcome: outcome}, procErr
}

func (s *Service) finish(ctx context.Context, run *runs.Run, session *Session, outcome Outcome, procErr error) {
	timings := session.Timings()
	if timings.Parse > 0 {
		metrics.ObserveParseDurationMs(float64(timings.Parse.Milliseconds()))
	}

	now := time.Now().UTC()
	run.State = string(session.State())
	run.CompletedAt = &now
	if procErr != nil {
		run.ErrorKind = ErrorKind(procErr)
		run.ErrorDetail = procErr.Error()
		metrics.IncRunFailed(run.ErrorKind)
	} else {
		run.Warnings = outcome.Warnings
		run.HTML = outcome.Render.HTML
		run.Data = outcome.Data
		metrics.IncRunCompleted()
		metrics.AddRenderWarnings(len(outcome.Render.Errors))
		metrics.ObserveRenderDurationMs(float64(timings.Render.Milliseconds()))
	}

	// The caller's result does not depend on the ledger write.
	if err := s.Runs.Complete(context.WithoutCancel(ctx), *run); err != nil {
		telemetry.Error("run.complete_failed", map[string]any{
			"run_id": run.ID,
			"error":  err.Error(),
		})
	}
}

// retainInput keeps the upload for later base64 export. Failures only cost
// that export format.
func (s *Service) retainInput(ctx context.Context, req ProcessRequest) string {
	if s.Uploads == nil {
		return ""
	}
	key, _, _, err := s.Uploads.Save(ctx, uploadsNamespace, req.FileName, bytes.NewReader(req.PDF))
	if err != nil {
		telemetry.Warn("run.input_not_retained", map[string]any{
			"file":  req.FileName,
			"error": err.Error(),
		})
		return ""
	}
	return key
}

func (s *Service) credentials(req ProcessRequest) (string, string) {
	endpoint := strings.TrimSpace(req.Endpoint)
	apiKey := strings.TrimSpace(req.APIKey)
	if endpoint == "" {
		endpoint = s.Endpoint
	}
	if apiKey == "" {
		apiKey = s.APIKey
	}
	return strings.TrimSpace(endpoint), strings.TrimSpace(apiKey)
}

// Status describes the configuration the next run would use.
type Status struct {
	EndpointConfigured bool     `json:"endpointConfigured"`
	APIKeySet          bool     `json:"apiKeySet"`
	TemplateCount      int      `json:"templateCount"`
	Templates          []string `json:"templates"`
	Busy               bool     `json:"busy"`
}

// Status reports configuration and template availability.
func (s *Service) Status(ctx context.Context) (Status, error) {
	names, err := s.Templates.List(ctx)
	if err != nil {
		return Status{}, err
	}
	busy := !s.mu.TryLock()
	if !busy {
		s.mu.Unlock()
	}
	return Status{
		EndpointConfigured: strings.TrimSpace(s.Endpoint) != "",
		APIKeySet:          strings.TrimSpace(s.APIKey) != "",
		TemplateCount:      len(names),
		Templates:          names,
		Busy:               busy,
	}, nil
}
