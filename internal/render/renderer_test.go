package render

import (
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
)

func TestRenderMissingFieldRendersEmpty(t *testing.T) {
	r := MustNew()
	data := map[string]any{"name": "Jane Doe", "email": "jane@x.com"}

	res := r.Render("<h1>{{ name }}</h1><p>Phone: {{ phone }}</p>", data)

	if !res.OK() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if !strings.Contains(res.HTML, "Jane Doe") {
		t.Fatalf("expected name in output, got %q", res.HTML)
	}
	if strings.Contains(res.HTML, "{{") {
		t.Fatalf("placeholder leaked into output: %q", res.HTML)
	}
	if !strings.Contains(res.HTML, "<p>Phone: </p>") {
		t.Fatalf("expected empty phone, got %q", res.HTML)
	}
}

func TestRenderConditionalSectionOmitted(t *testing.T) {
	r := MustNew()
	body := `<h1>{{ name }}</h1>{% if experience %}<section id="exp">{% for job in experience %}<li>{{ job.title }} at {{ job.company }}</li>{% endfor %}</section>{% endif %}`

	tests := []struct {
		name     string
		data     map[string]any
		wantExp  bool
		contains string
	}{
		{name: "missing", data: map[string]any{"name": "Jane"}, wantExp: false},
		{name: "empty list", data: map[string]any{"name": "Jane", "experience": []any{}}, wantExp: false},
		{
			name: "present",
			data: map[string]any{"name": "Jane", "experience": []any{
				map[string]any{"title": "Engineer", "company": "Acme"},
			}},
			wantExp:  true,
			contains: "<li>Engineer at Acme</li>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Render(body, tt.data)
			if !res.OK() {
				t.Fatalf("unexpected errors: %v", res.Errors)
			}
			if got := strings.Contains(res.HTML, `id="exp"`); got != tt.wantExp {
				t.Fatalf("section present = %v, want %v: %q", got, tt.wantExp, res.HTML)
			}
			if tt.contains != "" && !strings.Contains(res.HTML, tt.contains) {
				t.Fatalf("expected %q in %q", tt.contains, res.HTML)
			}
		})
	}
}

func TestRenderEscapesInterpolatedText(t *testing.T) {
	r := MustNew()
	res := r.Render("<p>{{ summary }}</p>", map[string]any{"summary": `<script>alert("x")</script>`})
	if !res.OK() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if strings.Contains(res.HTML, "<script>") {
		t.Fatalf("interpolated markup was not escaped: %q", res.HTML)
	}
	if !strings.Contains(res.HTML, "&lt;script&gt;") {
		t.Fatalf("expected escaped markup, got %q", res.HTML)
	}
}

func TestRenderSyntaxErrors(t *testing.T) {
	r := MustNew()
	bodies := []string{
		"{% if name %}<p>unterminated",
		"{{ name ",
		"{% for %}{% endfor %}",
		"{% bogus_tag %}",
	}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			res := r.Render(body, map[string]any{"name": "Jane"})
			if res.OK() {
				t.Fatalf("expected errors for %q", body)
			}
			if res.HTML != "" {
				t.Fatalf("expected empty HTML on compile error, got %q", res.HTML)
			}
		})
	}
}

func TestRenderSandboxBlocksFileAccess(t *testing.T) {
	r := MustNew()
	bodies := []string{
		`{% include "/etc/passwd" %}`,
		`{% ssi "/etc/passwd" %}`,
		`{% extends "base.html" %}`,
		`{% import "macros.html" m %}`,
		`{% now "2006" %}`,
		`{{ items|random }}`,
	}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			res := r.Render(body, map[string]any{"items": []any{"a", "b"}})
			if res.OK() {
				t.Fatalf("expected sandbox error for %q, got %q", body, res.HTML)
			}
			if strings.Contains(res.HTML, "root:") {
				t.Fatalf("file contents leaked: %q", res.HTML)
			}
		})
	}
}

func TestRenderRuntimeErrorKeepsPartialOutput(t *testing.T) {
	r := MustNew()
	res := r.Render(`<p>before</p>{{ name|date:"2006" }}<p>after</p>`, map[string]any{"name": "Jane"})
	if res.OK() {
		t.Fatalf("expected runtime error")
	}
	if !strings.HasPrefix(res.HTML, "<p>before</p>") {
		t.Fatalf("expected partial output, got %q", res.HTML)
	}
}

func TestRenderSkipsInvalidIdentifiers(t *testing.T) {
	r := MustNew()
	res := r.Render("<h1>{{ name }}</h1>", map[string]any{
		"name":            "Jane Doe",
		"work-experience": []any{},
		"Contact Info":    map[string]any{"email": "jane@x.io"},
	})
	if res.HTML != "<h1>Jane Doe</h1>" {
		t.Fatalf("HTML = %q", res.HTML)
	}
	if !res.OK() {
		t.Fatalf("unusable keys must not be reported as errors: %v", res.Errors)
	}
}

func TestExecuteKeepsOutputOnPanic(t *testing.T) {
	html, err := execute(func(w io.Writer) error {
		_, _ = io.WriteString(w, "<h1>Jane Doe</h1>")
		panic("boom")
	})
	if html != "<h1>Jane Doe</h1>" {
		t.Fatalf("html = %q", html)
	}
	var perr *panicError
	if !errors.As(err, &perr) || err.Error() != "render panic: boom" {
		t.Fatalf("err = %v", err)
	}
}

func TestExecuteReturnsPartialOutputOnError(t *testing.T) {
	html, err := execute(func(w io.Writer) error {
		_, _ = io.WriteString(w, "<p>before</p>")
		return errors.New("filter failed")
	})
	if html != "<p>before</p>" || err == nil {
		t.Fatalf("html = %q, err = %v", html, err)
	}
}

func TestRenderIntegralNumbers(t *testing.T) {
	r := MustNew()
	res := r.Render("{{ year }} {{ gpa }}", map[string]any{"year": float64(2020), "gpa": 3.5})
	if !res.OK() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if !strings.HasPrefix(res.HTML, "2020 3.5") {
		t.Fatalf("HTML = %q", res.HTML)
	}
}

func TestRenderDeterministicAndConcurrent(t *testing.T) {
	r := MustNew()
	body := `{% for k, v in skills %}{{ k }}={{ v }};{% endfor %}`
	data := map[string]any{"skills": map[string]any{"go": "expert", "sql": "good", "css": "basic"}}

	want := r.Render(body, data)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := r.Render(body, data); got.HTML != want.HTML {
				t.Errorf("non-deterministic output %q vs %q", got.HTML, want.HTML)
			}
		}()
	}
	wg.Wait()
}

func TestRenderJSONNumbers(t *testing.T) {
	r := MustNew()
	res := r.Render("{% if years > 5 %}senior{% endif %} {{ years }}", map[string]any{"years": json.Number("7")})
	if !res.OK() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if res.HTML != "senior 7" {
		t.Fatalf("HTML = %q, want %q", res.HTML, "senior 7")
	}
}
