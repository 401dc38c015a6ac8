package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"resume-formatter/internal/export"
	"resume-formatter/internal/extract"
	"resume-formatter/internal/parser"
	"resume-formatter/internal/render"
	"resume-formatter/internal/shared/telemetry"
)

// State is a step of the processing state machine.
type State string

// Session states. Failed is reachable from Parsing and Rendering only.
const (
	StateIdle          State = "Idle"
	StateAwaitingInput State = "AwaitingInput"
	StateParsing       State = "Parsing"
	StateRendering     State = "Rendering"
	StateDone          State = "Done"
	StateFailed        State = "Failed"
)

// Parser sends a resume to the parsing endpoint.
type Parser interface {
	Parse(ctx context.Context, req parser.Request) (map[string]any, error)
}

// Renderer renders a template body against parsed data.
type Renderer interface {
	Render(body string, data map[string]any) render.Result
}

// InspectFunc validates an input file before it is sent for parsing.
type InspectFunc func(ctx context.Context, data []byte) (extract.Info, error)

// Deps are the collaborators a Session calls into.
type Deps struct {
	Parser    Parser
	Renderer  Renderer
	Previewer *render.Previewer
	Validator *parser.SchemaValidator
	Inspect   InspectFunc
}

// Outcome is the result of a successful Process call.
type Outcome struct {
	Data     map[string]any `json:"data"`
	Render   render.Result  `json:"render"`
	Preview  string         `json:"preview"`
	Warnings []string       `json:"warnings"`
	Input    extract.Info   `json:"input"`
}

// Timings records how long the last Process call spent in each phase.
type Timings struct {
	Parse  time.Duration
	Render time.Duration
}

// Session drives one user's selections through
// Idle → AwaitingInput → Parsing → Rendering → Done, or Failed.
// Process holds the session lock for the whole call so no other
// transition runs while the parser call is outstanding.
type Session struct {
	mu   sync.Mutex
	deps Deps

	endpoint string
	apiKey   string

	state        State
	templateName string
	templateBody string
	fileName     string
	input        []byte

	outcome *Outcome
	failure error
	timings Timings
}

// NewSession returns an Idle session with the given parser credentials.
func NewSession(deps Deps, endpoint, apiKey string) *Session {
	if deps.Inspect == nil {
		deps.Inspect = extract.InspectPDF
	}
	return &Session{
		deps:     deps,
		endpoint: strings.TrimSpace(endpoint),
		apiKey:   strings.TrimSpace(apiKey),
		state:    StateIdle,
	}
}

// SetCredentials overrides the endpoint and key for later Process calls.
func (s *Session) SetCredentials(endpoint, apiKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoint = strings.TrimSpace(endpoint)
	s.apiKey = strings.TrimSpace(apiKey)
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SelectTemplate sets the template to render with. Any previous result is
// discarded.
func (s *Session) SelectTemplate(name, body string) error {
	if strings.TrimSpace(body) == "" {
		return errors.Wrap(ErrInvalidInput, "template body is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearResult()
	s.templateName = name
	s.templateBody = body
	s.advance()
	return nil
}

// SelectInput sets the resume file to process. Any previous result is
// discarded.
func (s *Session) SelectInput(fileName string, data []byte) error {
	if len(data) == 0 {
		return errors.Wrap(ErrInvalidInput, "input file is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearResult()
	s.fileName = fileName
	s.input = data
	s.advance()
	return nil
}

// Reset discards the input and any result, keeping the selected template.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearResult()
	s.fileName = ""
	s.input = nil
}

func (s *Session) clearResult() {
	s.state = StateIdle
	s.outcome = nil
	s.failure = nil
	s.timings = Timings{}
}

func (s *Session) advance() {
	if s.templateBody != "" && len(s.input) > 0 {
		s.state = StateAwaitingInput
	}
}

// Process parses the selected input and renders it. Parser failures move
// the session to Failed and are returned unchanged. Render problems never
// fail the run; they are reported in Outcome.Warnings.
func (s *Session) Process(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingInput {
		return Outcome{}, errors.Wrapf(ErrNotReady, "cannot process from state %s", s.state)
	}
	if s.endpoint == "" {
		return Outcome{}, ErrEndpointMissing
	}

	info, err := s.deps.Inspect(ctx, s.input)
	if err != nil {
		if errors.Is(err, extract.ErrNotPDF) || errors.Is(err, extract.ErrUnreadablePDF) {
			return Outcome{}, errors.Wrap(ErrInvalidInput, err.Error())
		}
		return Outcome{}, err
	}

	var warnings []string
	if !info.HasText {
		warnings = append(warnings, "input has no extractable text layer")
	}

	s.state = StateParsing
	start := time.Now()
	data, err := s.deps.Parser.Parse(ctx, parser.Request{
		Filename: s.fileName,
		PDF:      s.input,
		Endpoint: s.endpoint,
		APIKey:   s.apiKey,
	})
	s.timings.Parse = time.Since(start)
	if err != nil {
		s.fail(err)
		return Outcome{}, err
	}

	s.state = StateRendering
	outcome, err := s.renderOutcome(data, info, warnings)
	if err != nil {
		s.fail(err)
		return Outcome{}, err
	}

	s.outcome = &outcome
	s.state = StateDone
	telemetry.Info("session.done", map[string]any{
		"file":      s.fileName,
		"template":  s.templateName,
		"warnings":  len(outcome.Warnings),
		"parse_ms":  s.timings.Parse.Milliseconds(),
		"render_ms": s.timings.Render.Milliseconds(),
	})
	return outcome, nil
}

// renderOutcome never fails on template problems. The recover guards
// against faults outside the renderer, such as a broken validator.
func (s *Session) renderOutcome(data map[string]any, info extract.Info, warnings []string) (out Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("rendering aborted: %v", rec)
		}
	}()

	if msgs, verr := s.deps.Validator.Validate(data); verr != nil {
		warnings = append(warnings, "schema check skipped: "+verr.Error())
	} else {
		warnings = append(warnings, msgs...)
	}

	start := time.Now()
	result := s.deps.Renderer.Render(s.templateBody, data)
	s.timings.Render = time.Since(start)

	warnings = append(warnings, result.Errors...)
	if warnings == nil {
		warnings = []string{}
	}
	return Outcome{
		Data:     data,
		Render:   result,
		Preview:  s.deps.Previewer.Preview(result.HTML),
		Warnings: warnings,
		Input:    info,
	}, nil
}

func (s *Session) fail(err error) {
	s.state = StateFailed
	s.failure = err
	telemetry.Warn("session.failed", map[string]any{
		"file":     s.fileName,
		"template": s.templateName,
		"kind":     ErrorKind(err),
		"error":    err.Error(),
	})
}

// Outcome returns the result of the last successful Process call.
func (s *Session) Outcome() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome == nil {
		return Outcome{}, false
	}
	return *s.outcome, true
}

// Failure returns the error that moved the session to Failed.
func (s *Session) Failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// Timings returns phase durations of the last Process call.
func (s *Session) Timings() Timings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timings
}

// Export encodes an artifact of the finished run.
func (s *Session) Export(format export.Format) (export.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDone || s.outcome == nil {
		return export.Artifact{}, errors.Wrapf(ErrNotReady, "cannot export from state %s", s.state)
	}
	return export.Export(format, s.outcome.Render, s.outcome.Data, s.input, s.fileName)
}
