package runs

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a run.
func (r *PGRepo) Create(ctx context.Context, run Run) error {
	warnings, err := marshalWarnings(run.Warnings)
	if err != nil {
		return err
	}
	const query = `
INSERT INTO runs (
    id, file_name, template_name, state, warnings, input_key, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = r.DB.ExecContext(ctx, query,
		run.ID,
		run.FileName,
		run.TemplateName,
		run.State,
		warnings,
		run.InputKey,
		run.CreatedAt,
	)
	return err
}

// Complete records the outcome of a run.
func (r *PGRepo) Complete(ctx context.Context, run Run) error {
	warnings, err := marshalWarnings(run.Warnings)
	if err != nil {
		return err
	}
	var data []byte
	if run.Data != nil {
		data, err = json.Marshal(run.Data)
		if err != nil {
			return errors.Wrap(err, "marshal run data")
		}
	}

	const query = `
UPDATE runs
SET state = $2, error_kind = $3, error_detail = $4, warnings = $5, html = $6, data = $7, input_key = $8, completed_at = $9
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query,
		run.ID,
		run.State,
		run.ErrorKind,
		run.ErrorDetail,
		warnings,
		run.HTML,
		data,
		run.InputKey,
		run.CompletedAt,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

const selectColumns = `
SELECT id, file_name, template_name, state, error_kind, error_detail, warnings, html, data, input_key, created_at, completed_at
FROM runs`

// GetByID returns a run by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Run, error) {
	run, err := scanRun(r.DB.QueryRowContext(ctx, selectColumns+`
WHERE id = $1
LIMIT 1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrNotFound
		}
		return Run{}, err
	}
	return run, nil
}

// List lists runs ordered newest-first.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Run, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := r.DB.QueryContext(ctx, selectColumns+`
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run         Run
		warnings    []byte
		data        []byte
		completedAt sql.NullTime
	)
	if err := row.Scan(
		&run.ID,
		&run.FileName,
		&run.TemplateName,
		&run.State,
		&run.ErrorKind,
		&run.ErrorDetail,
		&warnings,
		&run.HTML,
		&data,
		&run.InputKey,
		&run.CreatedAt,
		&completedAt,
	); err != nil {
		return Run{}, err
	}

	run.Warnings = []string{}
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &run.Warnings); err != nil {
			return Run{}, errors.Wrapf(err, "decode warnings for run %s", run.ID)
		}
	}
	if len(data) > 0 {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&run.Data); err != nil {
			return Run{}, errors.Wrapf(err, "decode data for run %s", run.ID)
		}
	}
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return run, nil
}

func marshalWarnings(warnings []string) ([]byte, error) {
	if warnings == nil {
		warnings = []string{}
	}
	b, err := json.Marshal(warnings)
	if err != nil {
		return nil, errors.Wrap(err, "marshal warnings")
	}
	return b, nil
}

var _ Repo = (*PGRepo)(nil)
