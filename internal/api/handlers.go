package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ankemong/newsnexus-sub000/internal/job"
)

const enqueueTimeout = 5 * time.Second

type crawlRequest struct {
	URL          string `json:"url"`
	SourceType   string `json:"sourceType"`
	OutputFormat string `json:"outputFormat"`
}

// submitCrawl accepts a crawl request: validate, persist queued, enqueue.
// Persist and enqueue are two independent durable systems with no shared
// transaction; if the enqueue fails the record stays queued and the
// sweeper re-enqueues it later, so the client still gets a 500 and may
// retry the whole request (producing a new, distinct job).
func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := decodeJSON(r, &req); err != nil {
		s.rejected(w, "invalid JSON")
		return
	}
	crawlReq := job.Request{
		URL:          req.URL,
		SourceType:   job.SourceType(req.SourceType),
		OutputFormat: job.OutputFormat(req.OutputFormat),
	}
	if err := crawlReq.Validate(); err != nil {
		s.rejected(w, err.Error())
		return
	}
	crawlReq = crawlReq.Normalize()

	id, err := s.idGen.NewID()
	if err != nil {
		s.dependencyFailure(w, "generate job id", err)
		return
	}
	now := s.clock.Now()
	j := job.Job{
		ID:        id,
		Request:   crawlReq,
		Status:    job.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(r.Context(), j); err != nil {
		s.dependencyFailure(w, "create job", err)
		return
	}

	queueCtx, cancel := context.WithTimeout(r.Context(), enqueueTimeout)
	defer cancel()
	if err := s.queue.Enqueue(queueCtx, job.Message{JobID: id, Request: crawlReq}); err != nil {
		if s.metrics != nil {
			s.metrics.EnqueueFailures.Inc()
		}
		s.logger.Error("enqueue failed after persist, job left queued for sweep",
			zap.String("job_id", id),
			zap.Error(err),
		)
		s.writeError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	if s.metrics != nil {
		s.metrics.JobsAccepted.WithLabelValues(string(crawlReq.SourceType)).Inc()
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// getJob returns the full job record. Read-only.
func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	j, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "not found")
			return
		}
		s.dependencyFailure(w, "get job", err)
		return
	}
	s.writeJSON(w, http.StatusOK, j)
}

// downloadJob streams a completed job's artifact. Each request gets its
// own file handle, so concurrent clients never share read offsets.
func (s *Server) downloadJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	j, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "not found")
			return
		}
		s.dependencyFailure(w, "get job", err)
		return
	}
	if j.Status != job.StatusCompleted || j.FilePath == "" {
		s.writeError(w, http.StatusConflict, "job not completed")
		return
	}

	f, info, err := s.results.Open(j.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			// The artifact was evicted after completion; the record
			// stays completed but the bytes are gone for good.
			s.writeError(w, http.StatusGone, "file missing")
			return
		}
		s.dependencyFailure(w, "open artifact", err)
		return
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			s.logger.Warn("close artifact failed", zap.String("job_id", id), zap.Error(closeErr))
		}
	}()

	name := filepath.Base(info.Name())
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		// Headers are already out; all we can do is log the broken stream.
		s.logger.Warn("stream artifact interrupted", zap.String("job_id", id), zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.DownloadsServed.Inc()
	}
}

func (s *Server) rejected(w http.ResponseWriter, msg string) {
	if s.metrics != nil {
		s.metrics.JobsRejected.Inc()
	}
	s.writeError(w, http.StatusBadRequest, msg)
}

func (s *Server) dependencyFailure(w http.ResponseWriter, op string, err error) {
	s.logger.Error("dependency failure", zap.String("op", op), zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, "internal server error")
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}
