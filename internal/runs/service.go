package runs

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"resume-formatter/internal/export"
	"resume-formatter/internal/render"
	"resume-formatter/internal/shared/storage/object"
)

// StateDone is the state of a run whose results can be exported.
const StateDone = "Done"

// Service reads the ledger and re-encodes finished runs for download.
type Service struct {
	Repo  Repo
	Store object.ObjectStore
}

// Get returns a run by ID.
func (s *Service) Get(ctx context.Context, id string) (Run, error) {
	return s.Repo.GetByID(ctx, id)
}

// List returns runs newest-first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Run, error) {
	return s.Repo.List(ctx, limit, offset)
}

// Export encodes one artifact of a finished run. The original upload is only
// read for the base64 format.
func (s *Service) Export(ctx context.Context, id string, format export.Format) (export.Artifact, error) {
	run, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return export.Artifact{}, err
	}
	if run.State != StateDone {
		return export.Artifact{}, ErrNotDone
	}

	var original []byte
	if format == export.FormatBase64 {
		original, err = s.readInput(ctx, run.InputKey)
		if err != nil {
			return export.Artifact{}, err
		}
	}
	return export.Export(format, render.Result{HTML: run.HTML, Errors: run.Warnings}, run.Data, original, run.FileName)
}

func (s *Service) readInput(ctx context.Context, key string) ([]byte, error) {
	if key == "" || s.Store == nil {
		return nil, errors.Wrap(object.ErrNotFound, "run input was not retained")
	}
	rc, err := s.Store.Open(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "open run input %s", key)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "read run input %s", key)
	}
	return data, nil
}
