package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"sync"

	"github.com/flosch/pongo2/v6"
	"github.com/pkg/errors"

	"resume-formatter/internal/shared/telemetry"
)

// Result is the outcome of one render. Problems are collected in Errors
// instead of being returned, and HTML holds whatever was produced.
type Result struct {
	HTML   string   `json:"html"`
	Errors []string `json:"errors"`
}

// OK reports whether the render produced no errors.
func (r Result) OK() bool { return len(r.Errors) == 0 }

// Tags and filters that reach outside the supplied data.
var (
	bannedTags    = []string{"include", "import", "extends", "ssi", "now", "lorem"}
	bannedFilters = []string{"random"}
)

var identifierRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Renderer compiles user-supplied Jinja-style templates in a sandboxed
// pongo2 set. It is safe for concurrent use.
type Renderer struct {
	mu  sync.Mutex
	set *pongo2.TemplateSet
}

// New builds a Renderer whose template set cannot load files and has
// the I/O and non-deterministic tags removed.
func New() (*Renderer, error) {
	set := pongo2.NewSet("resume", refuseLoader{})
	for _, tag := range bannedTags {
		if err := set.BanTag(tag); err != nil {
			return nil, errors.Wrapf(err, "ban tag %s", tag)
		}
	}
	for _, filter := range bannedFilters {
		if err := set.BanFilter(filter); err != nil {
			return nil, errors.Wrapf(err, "ban filter %s", filter)
		}
	}
	return &Renderer{set: set}, nil
}

// MustNew is New for package-level initialization.
func MustNew() *Renderer {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

// Render compiles body and executes it against data. Missing variables
// render as empty strings. A compile error yields empty HTML; a runtime
// error or panic keeps the output written before the fault.
func (r *Renderer) Render(body string, data map[string]any) (res Result) {
	res.Errors = []string{}

	defer func() {
		if rec := recover(); rec != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("render panic: %v", rec))
		}
	}()

	tpl, err := r.compile(body)
	if err != nil {
		res.Errors = append(res.Errors, "template syntax error: "+err.Error())
		return res
	}

	ctx, skipped := toContext(data)
	if len(skipped) > 0 {
		telemetry.Debug("render.keys_skipped", map[string]any{"keys": skipped})
	}

	html, err := execute(func(w io.Writer) error {
		return tpl.ExecuteWriterUnbuffered(ctx, w)
	})
	res.HTML = html
	var perr *panicError
	switch {
	case errors.As(err, &perr):
		res.Errors = append(res.Errors, perr.Error())
	case err != nil:
		res.Errors = append(res.Errors, "template execution error: "+err.Error())
	}
	return res
}

type panicError struct {
	value any
}

func (e *panicError) Error() string { return fmt.Sprintf("render panic: %v", e.value) }

// execute runs fn against a fresh buffer and returns what it wrote, also
// when fn fails or panics part way.
func execute(fn func(w io.Writer) error) (html string, err error) {
	var buf bytes.Buffer
	defer func() {
		if rec := recover(); rec != nil {
			html, err = buf.String(), &panicError{value: rec}
		}
	}()
	err = fn(&buf)
	return buf.String(), err
}

// compile is serialized because the template set records state on first use.
func (r *Renderer) compile(body string) (*pongo2.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set.FromString(body)
}

// toContext copies the top-level keys usable as template identifiers and
// normalizes nested values. Other keys cannot be referenced by a template
// and are dropped.
func toContext(data map[string]any) (pongo2.Context, []string) {
	ctx := make(pongo2.Context, len(data))
	var skipped []string
	for key, value := range data {
		if !identifierRe.MatchString(key) {
			skipped = append(skipped, key)
			continue
		}
		ctx[key] = normalize(value)
	}
	sort.Strings(skipped)
	return ctx, skipped
}

// normalize turns JSON numbers into Go numbers, integral ones into ints so
// years and counts print without a fractional part.
func normalize(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalize(item)
		}
		return out
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return int64(v)
		}
		return v
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return normalize(f)
		}
		return v.String()
	default:
		return v
	}
}

type refuseLoader struct{}

func (refuseLoader) Abs(_, name string) string { return name }

func (refuseLoader) Get(path string) (io.Reader, error) {
	return nil, errors.Errorf("template loading is disabled: %s", path)
}
