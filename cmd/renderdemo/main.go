package main

// Render a template against a parsed-resume JSON file without calling the parser:
//   go run ./cmd/renderdemo -template templates/modern.html -data jane.json -out ./out

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"resume-formatter/internal/export"
	"resume-formatter/internal/render"
)

func main() {
	templatePath := flag.String("template", "", "template file (.html)")
	dataPath := flag.String("data", "", "parsed resume JSON; either the data object or a {\"data\": ...} envelope")
	outDir := flag.String("out", "./out", "output directory")
	flag.Parse()

	if *templatePath == "" || *dataPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	written, warnings, err := run(*templatePath, *dataPath, *outDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "renderdemo: %v\n", err)
		os.Exit(1)
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	for _, path := range written {
		fmt.Printf("OK: wrote %s\n", path)
	}
}

func run(templatePath, dataPath, outDir string) ([]string, []string, error) {
	body, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read template")
	}
	raw, err := os.ReadFile(dataPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read data")
	}
	data, err := decodeData(raw)
	if err != nil {
		return nil, nil, err
	}

	result := render.MustNew().Render(string(body), data)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, nil, errors.Wrap(err, "create output dir")
	}
	var written []string
	for _, format := range []export.Format{export.FormatHTML, export.FormatJSON} {
		art, err := export.Export(format, result, data, nil, filepath.Base(dataPath))
		if err != nil {
			return written, result.Errors, err
		}
		path := filepath.Join(outDir, art.Filename)
		if err := os.WriteFile(path, art.Bytes, 0o644); err != nil {
			return written, result.Errors, errors.Wrapf(err, "write %s", path)
		}
		written = append(written, path)
	}
	return written, result.Errors, nil
}

// decodeData accepts the parser's {"data": {...}} envelope or a bare object.
func decodeData(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "data file must hold a JSON object")
	}
	if inner, ok := doc["data"].(map[string]any); ok && len(doc) == 1 {
		return inner, nil
	}
	return doc, nil
}
