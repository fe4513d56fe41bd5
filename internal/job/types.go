// Package job defines the core types shared across the gateway subsystems.
package job

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a crawl job.
type Status string

// Job status values persisted in the job store. Transitions are one-way:
// queued -> processing -> {completed | failed}.
const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to next respects the
// monotonic lifecycle. Terminal states are reached only through
// processing, so a consumer cannot complete a job it never started.
// Self-transitions are not allowed.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusQueued:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// SourceType classifies what kind of resource the client wants crawled.
type SourceType string

// Source types accepted by the intake API.
const (
	SourceWebpage    SourceType = "webpage"
	SourceArticle    SourceType = "article"
	SourceSocial     SourceType = "social"
	SourceLargeScale SourceType = "large-scale"
)

// OutputFormat selects the artifact format produced by the worker.
type OutputFormat string

// Output formats accepted by the intake API.
const (
	FormatJSON     OutputFormat = "json"
	FormatCSV      OutputFormat = "csv"
	FormatExcel    OutputFormat = "excel"
	FormatPDF      OutputFormat = "pdf"
	FormatMarkdown OutputFormat = "markdown"
)

// DefaultOutputFormat is applied when the client omits output_format.
const DefaultOutputFormat = FormatJSON

var validSourceTypes = map[SourceType]struct{}{
	SourceWebpage:    {},
	SourceArticle:    {},
	SourceSocial:     {},
	SourceLargeScale: {},
}

var validOutputFormats = map[OutputFormat]struct{}{
	FormatJSON:     {},
	FormatCSV:      {},
	FormatExcel:    {},
	FormatPDF:      {},
	FormatMarkdown: {},
}

// Request is the immutable payload supplied by the client at intake.
// It is write-once: nothing mutates it after the job is created.
type Request struct {
	URL          string       `json:"url"`
	SourceType   SourceType   `json:"sourceType"`
	OutputFormat OutputFormat `json:"outputFormat"`
}

// Normalize fills defaults on the request without altering provided fields.
func (r Request) Normalize() Request {
	if r.OutputFormat == "" {
		r.OutputFormat = DefaultOutputFormat
	}
	return r
}

// Validate rejects requests missing required fields or carrying unknown
// enum values. Reachability of the URL is a worker concern, not checked here.
func (r Request) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return errors.New("url is required")
	}
	if r.SourceType == "" {
		return errors.New("source_type is required")
	}
	if _, ok := validSourceTypes[r.SourceType]; !ok {
		return fmt.Errorf("unknown source_type %q", r.SourceType)
	}
	if r.OutputFormat != "" {
		if _, ok := validOutputFormats[r.OutputFormat]; !ok {
			return fmt.Errorf("unknown output_format %q", r.OutputFormat)
		}
	}
	return nil
}

// Job is the record persisted for each accepted crawl request.
// FilePath is set only on completion, Error only on failure; the two are
// mutually exclusive across the job's lifetime.
type Job struct {
	ID        string    `json:"id"`
	Request   Request   `json:"request"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	FilePath  string    `json:"filePath,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Fields describes a partial update to a job record. Nil pointers leave the
// corresponding field untouched; the store applies set fields atomically per
// key so concurrent writers never clobber each other's fields.
type Fields struct {
	Status    *Status
	UpdatedAt *time.Time
	FilePath  *string
	Error     *string
}

// Empty reports whether the update would write nothing.
func (f Fields) Empty() bool {
	return f.Status == nil && f.UpdatedAt == nil && f.FilePath == nil && f.Error == nil
}

// Message is the descriptor carried on the dispatch queue. It includes the
// full request so a consumer never needs a store read to start working.
type Message struct {
	JobID   string  `json:"jobId"`
	Request Request `json:"request"`
}
