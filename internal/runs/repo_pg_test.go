package runs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

var runColumns = []string{"id", "file_name", "template_name", "state", "error_kind", "error_detail", "warnings", "html", "data", "input_key", "created_at", "completed_at"}

func TestPGRepoCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	run := Run{
		ID:           "run-1",
		FileName:     "jane.pdf",
		TemplateName: "classic.html",
		State:        "Parsing",
		InputKey:     "uploads/abc_jane.pdf",
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(run.ID, run.FileName, run.TemplateName, run.State, []byte("[]"), run.InputKey, run.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), run); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCompleteMissingRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	done := time.Now().UTC()

	mock.ExpectExec("UPDATE runs").
		WithArgs("run-x", "Failed", "HttpError", "HTTP 401", []byte(`["w1"]`), "", sqlmock.AnyArg(), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Complete(context.Background(), Run{
		ID:          "run-x",
		State:       "Failed",
		ErrorKind:   "HttpError",
		ErrorDetail: "HTTP 401",
		Warnings:    []string{"w1"},
		CompletedAt: &done,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Complete err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDDecodesJSON(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	completed := created.Add(5 * time.Second)

	rows := sqlmock.NewRows(runColumns).AddRow(
		"run-1", "jane.pdf", "classic.html", "Done", "", "",
		[]byte(`["schema: email is required"]`), "<h1>Jane</h1>",
		[]byte(`{"name":"Jane","years":7}`), "uploads/k", created, completed,
	)
	mock.ExpectQuery("SELECT id, file_name").WithArgs("run-1").WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	want := Run{
		ID:           "run-1",
		FileName:     "jane.pdf",
		TemplateName: "classic.html",
		State:        "Done",
		Warnings:     []string{"schema: email is required"},
		HTML:         "<h1>Jane</h1>",
		Data:         map[string]any{"name": "Jane", "years": json.Number("7")},
		InputKey:     "uploads/k",
		CreatedAt:    created,
		CompletedAt:  &completed,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("run mismatch (-want +got):\n%s", diff)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT id, file_name").WithArgs("nope").WillReturnRows(sqlmock.NewRows(runColumns))

	if _, err := (&PGRepo{DB: db}).GetByID(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPGRepoListClampsPage(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(runColumns).
		AddRow("run-2", "b.pdf", "t.html", "Failed", "TransportError", "timeout", []byte(`[]`), "", nil, "", created, nil)
	mock.ExpectQuery("ORDER BY created_at DESC").WithArgs(100, 0).WillReturnRows(rows)

	list, err := (&PGRepo{DB: db}).List(context.Background(), 500, -3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ErrorKind != "TransportError" || list[0].Data != nil || list[0].CompletedAt != nil {
		t.Fatalf("unexpected list %+v", list)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
