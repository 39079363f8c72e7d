// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bacco007/webepg/internal/jobs"
	applog "github.com/bacco007/webepg/internal/log"
)

const maxProcessBody = 64 << 10

// ProcessRequest is the optional body of POST /api/v1/process.
type ProcessRequest struct {
	Sources []string `json:"sources"`
	Force   bool     `json:"force"`
}

// ProcessResponse acknowledges an accepted run.
type ProcessResponse struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id,omitempty"`
}

// handleProcess starts an ingestion run in the background. The run is
// bound to the server lifetime, not the request.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxProcessBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, fmt.Errorf("%w: %v", errInvalidRequest, err))
		return
	}
	if s.runner.Running() {
		writeError(w, r, jobs.ErrAlreadyRunning)
		return
	}

	reqID := applog.RequestIDFromContext(r.Context())
	ctx := applog.ContextWithRequestID(s.baseCtx, reqID)
	opts := jobs.Options{Force: req.Force, Sources: req.Sources}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		logger := applog.WithComponentFromContext(ctx, "api")
		status, err := s.runner.Run(ctx, opts)
		switch {
		case errors.Is(err, jobs.ErrAlreadyRunning):
			logger.Warn().Str(applog.FieldEvent, "process.rejected").Msg("ingestion already running")
			return
		case err != nil:
			logger.Error().Err(err).Str(applog.FieldEvent, "process.failed").Str("job_id", status.JobID).Msg("ingestion run failed")
		}
		if s.cache != nil {
			s.cache.Clear(ctx)
		}
	}()

	writeJSON(w, http.StatusAccepted, ProcessResponse{Status: "accepted", RequestID: reqID})
}

func (s *Server) handleProcessStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Status())
}
