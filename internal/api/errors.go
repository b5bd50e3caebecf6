package api

import (
	"errors"
	"io/fs"
	"os"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/dropzone/internal/cutter"
	"github.com/smazurov/dropzone/internal/media"
	"github.com/smazurov/dropzone/internal/preview"
	"github.com/smazurov/dropzone/internal/process"
)

// mapEngineError converts engine errors into HTTP problems.
func (s *Server) mapEngineError(err error) error {
	if process.IsCanceled(err) {
		return huma.Error409Conflict("operation cancelled", err)
	}
	if errors.Is(err, fs.ErrNotExist) {
		return huma.Error404NotFound("file not found", err)
	}

	var probeErr *media.ProbeError
	if errors.As(err, &probeErr) {
		return huma.Error422UnprocessableEntity(probeErr.Message, err)
	}

	var cutErr *cutter.Error
	if errors.As(err, &cutErr) {
		switch cutErr.Code {
		case cutter.ErrCodeInvalidRange:
			return huma.Error400BadRequest(cutErr.Message, err)
		default:
			return huma.Error500InternalServerError(cutErr.Message, err)
		}
	}

	switch {
	case errors.Is(err, preview.ErrNothingToRetry):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, preview.ErrBusy):
		return huma.Error409Conflict(err.Error())
	}

	s.logger.Error("Request failed", "error", err)
	return huma.Error500InternalServerError("internal server error", err)
}

// requireFile reports a 404 for a missing path and a 400 for a directory.
func requireFile(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return huma.Error404NotFound("file not found: "+path, err)
	}
	if st.IsDir() {
		return huma.Error400BadRequest("not a file: " + path)
	}
	return nil
}
