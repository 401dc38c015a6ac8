package templates

import (
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"resume-formatter/internal/shared/storage/object"
	"resume-formatter/internal/shared/telemetry"
	"resume-formatter/internal/shared/util"
)

const contentType = "text/html; charset=utf-8"

// Store keeps named templates in a flat namespace of an object store.
type Store struct {
	objects object.KeyStore
	prefix  string
	locks   keyedMutex
}

// NewStore creates a template store over objects. Templates live directly
// under prefix; an empty prefix uses the store root.
func NewStore(objects object.KeyStore, prefix string) *Store {
	return &Store{
		objects: objects,
		prefix:  strings.Trim(prefix, "/"),
	}
}

// NormalizeName validates name and appends .html when it has no accepted extension.
func NormalizeName(name string) (string, error) {
	if err := util.ValidateName(name); err != nil {
		return "", ErrInvalidName
	}
	if !HasTemplateExtension(name) {
		name += DefaultExtension
	}
	return name, nil
}

// Put writes or overwrites a template and returns the stored name.
func (s *Store) Put(ctx context.Context, name, body string) (string, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return "", err
	}
	if !utf8.ValidString(body) {
		return "", ErrInvalidBody
	}
	if err := s.write(ctx, name, body); err != nil {
		return "", err
	}
	telemetry.Info("template.saved", map[string]any{
		"name":   name,
		"bytes":  len(body),
		"sha256": util.ContentHash([]byte(body)),
	})
	return name, nil
}

func (s *Store) write(ctx context.Context, name, body string) error {
	unlock := s.locks.lock(name)
	defer unlock()

	if _, err := s.objects.SaveWithKey(ctx, s.key(name), contentType, strings.NewReader(body)); err != nil {
		return &StorageError{Name: name, Op: "write", Err: err}
	}
	return nil
}

// Get returns the body of the named template. Names are normalized as in
// Put, so "cv" finds "cv.html".
func (s *Store) Get(ctx context.Context, name string) (string, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return "", err
	}

	rc, err := s.objects.Open(ctx, s.key(name))
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", &StorageError{Name: name, Op: "read", Err: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", &StorageError{Name: name, Op: "read", Err: errors.Wrap(err, "read body")}
	}
	return string(data), nil
}

// List returns template names in lexicographic order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	keys, err := s.objects.List(ctx, s.prefix)
	if err != nil {
		return nil, &StorageError{Name: s.prefix, Op: "list", Err: err}
	}

	names := make([]string, 0, len(keys))
	for _, key := range keys {
		name := path.Base(key)
		if HasTemplateExtension(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the named template.
func (s *Store) Delete(ctx context.Context, name string) error {
	name, err := NormalizeName(name)
	if err != nil {
		return err
	}

	unlock := s.locks.lock(name)
	defer unlock()

	if err := s.objects.Delete(ctx, s.key(name)); err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return ErrNotFound
		}
		return &StorageError{Name: name, Op: "delete", Err: err}
	}
	telemetry.Info("template.deleted", map[string]any{"name": name})
	return nil
}

// LoadAll reads every template into memory. Unreadable templates are logged
// and skipped so one bad file does not hide the rest.
func (s *Store) LoadAll(ctx context.Context) (map[string]string, error) {
	names, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(names))
	for _, name := range names {
		body, err := s.Get(ctx, name)
		if err != nil {
			telemetry.Warn("template.load_failed", map[string]any{"name": name, "error": err.Error()})
			continue
		}
		out[name] = body
	}
	return out, nil
}

func (s *Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}
