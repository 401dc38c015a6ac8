package templates

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"resume-formatter/internal/shared/storage/object"
	localstore "resume-formatter/internal/shared/storage/object/local"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return NewStore(localstore.New(dir), ""), dir
}

func TestPutGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		stored string
		body   string
	}{
		{name: "classic.html", stored: "classic.html", body: "<h1>{{ name }}</h1>"},
		{name: "modern.htm", stored: "modern.htm", body: "{% if email %}<a>{{ email }}</a>{% endif %}"},
		{name: "unicode.html", stored: "unicode.html", body: "<p>Zoë • Résumé • 履歴書</p>"},
		{name: "with space.html", stored: "with space.html", body: "<p>x</p>"},
		{name: "cv", stored: "cv.html", body: "<p>{{ phone }}</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stored, err := store.Put(ctx, tt.name, tt.body)
			if err != nil {
				t.Fatalf("Put: %v", err)
			}
			if stored != tt.stored {
				t.Fatalf("stored name = %q, want %q", stored, tt.stored)
			}
			got, err := store.Get(ctx, tt.name)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got != tt.body {
				t.Fatalf("Get = %q, want %q", got, tt.body)
			}
		})
	}
}

func TestPutRejectsUnsafeNames(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	names := []string{"", "  ", "../evil.html", "a/b.html", `a\b.html`, "..", "x..html", "/etc/passwd", "nul\x00.html", " padded.html"}
	for _, name := range names {
		t.Run(fmt.Sprintf("%q", name), func(t *testing.T) {
			if _, err := store.Put(ctx, name, "<p>x</p>"); !errors.Is(err, ErrInvalidName) {
				t.Fatalf("Put(%q) err = %v, want ErrInvalidName", name, err)
			}
		})
	}

	names, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("store changed after rejected puts: %v", names)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "evil.html")); !os.IsNotExist(err) {
		t.Fatalf("file escaped the store root: %v", err)
	}
}

func TestPutAppendsDefaultExtension(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	stored, err := store.Put(ctx, "custom_template", "<p>{{ name }}</p>")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if stored != "custom_template.html" {
		t.Fatalf("stored = %q, want custom_template.html", stored)
	}
	if _, err := store.Get(ctx, "custom_template.html"); err != nil {
		t.Fatalf("Get: %v", err)
	}
}

func TestPutRejectsInvalidUTF8(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.Put(context.Background(), "bad.html", "\xff\xfe"); !errors.Is(err, ErrInvalidBody) {
		t.Fatalf("err = %v, want ErrInvalidBody", err)
	}
}

func TestPutOverwritesExisting(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Put(ctx, "cv.html", "v1"); err != nil {
		t.Fatalf("Put v1: %v", err)
	}
	if _, err := store.Put(ctx, "cv.html", "v2"); err != nil {
		t.Fatalf("Put v2: %v", err)
	}
	got, err := store.Get(ctx, "cv.html")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "v2" {
		t.Fatalf("Get = %q, want v2", got)
	}
}

func TestListSortedAndFiltered(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"zeta.html", "alpha.htm", "mid.html"} {
		if _, err := store.Put(ctx, name, "<p/>"); err != nil {
			t.Fatalf("Put %s: %v", name, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore"), 0o644); err != nil {
		t.Fatalf("write stray file: %v", err)
	}

	got, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"alpha.htm", "mid.html", "zeta.html"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("List mismatch (-want +got):\n%s", diff)
	}

	all, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(all) != 3 || all["mid.html"] != "<p/>" {
		t.Fatalf("LoadAll = %v", all)
	}
}

func TestGetAndDeleteMissing(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing.html"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get err = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "missing.html"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete err = %v, want ErrNotFound", err)
	}
}

func TestDeleteRemovesTemplate(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Put(ctx, "cv.html", "<p/>"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Delete(ctx, "cv.html"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "cv.html"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentPutsSameName(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	bodies := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		body := fmt.Sprintf("<p>writer %d</p>", i)
		bodies[body] = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Put(ctx, "shared.html", body); err != nil {
				t.Errorf("Put: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "shared.html")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bodies[got] {
		t.Fatalf("Get = %q, want one complete writer body", got)
	}
}

type failingKeyStore struct {
	object.KeyStore
}

func (failingKeyStore) SaveWithKey(context.Context, string, string, io.Reader) (int64, error) {
	return 0, errors.New("disk full")
}

func TestPutWrapsBackendFailure(t *testing.T) {
	store := NewStore(failingKeyStore{}, "templates")

	_, err := store.Put(context.Background(), "cv.html", "<p/>")
	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("err = %v, want *StorageError", err)
	}
	if storageErr.Name != "cv.html" || storageErr.Op != "write" {
		t.Fatalf("StorageError = %+v", storageErr)
	}
}

func TestDeleteByBareName(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Put(ctx, "cv", "<p>x</p>"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Delete(ctx, "cv"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "cv.html"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete err = %v, want ErrNotFound", err)
	}
}
