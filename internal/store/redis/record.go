package redis

import (
	"fmt"
	"time"

	"github.com/ankemong/newsnexus-sub000/internal/job"
)

const defaultKeyPrefix = "job:"

const scanCount = 200

// Hash field names. The layout is shared with the worker process, so
// renaming a field is a cross-deploy migration.
const (
	fieldID        = "id"
	fieldURL       = "url"
	fieldSource    = "source_type"
	fieldFormat    = "output_format"
	fieldStatus    = "status"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
	fieldFilePath  = "file_path"
	fieldError     = "error"
)

func hashFromJob(j job.Job) map[string]any {
	return map[string]any{
		fieldID:        j.ID,
		fieldURL:       j.Request.URL,
		fieldSource:    string(j.Request.SourceType),
		fieldFormat:    string(j.Request.OutputFormat),
		fieldStatus:    string(j.Status),
		fieldCreatedAt: j.CreatedAt.UTC().Format(time.RFC3339Nano),
		fieldUpdatedAt: j.UpdatedAt.UTC().Format(time.RFC3339Nano),
		fieldFilePath:  j.FilePath,
		fieldError:     j.Error,
	}
}

func hashFromFields(f job.Fields) map[string]any {
	out := make(map[string]any, 4)
	if f.Status != nil {
		out[fieldStatus] = string(*f.Status)
	}
	if f.UpdatedAt != nil {
		out[fieldUpdatedAt] = f.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	if f.FilePath != nil {
		out[fieldFilePath] = *f.FilePath
	}
	if f.Error != nil {
		out[fieldError] = *f.Error
	}
	return out
}

func jobFromHash(vals map[string]string) (job.Job, error) {
	j := job.Job{
		ID: vals[fieldID],
		Request: job.Request{
			URL:          vals[fieldURL],
			SourceType:   job.SourceType(vals[fieldSource]),
			OutputFormat: job.OutputFormat(vals[fieldFormat]),
		},
		Status:   job.Status(vals[fieldStatus]),
		FilePath: vals[fieldFilePath],
		Error:    vals[fieldError],
	}
	if j.ID == "" {
		return job.Job{}, fmt.Errorf("hash missing %s field", fieldID)
	}
	var err error
	if raw := vals[fieldCreatedAt]; raw != "" {
		j.CreatedAt, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return job.Job{}, fmt.Errorf("parse %s: %w", fieldCreatedAt, err)
		}
	}
	if raw := vals[fieldUpdatedAt]; raw != "" {
		j.UpdatedAt, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return job.Job{}, fmt.Errorf("parse %s: %w", fieldUpdatedAt, err)
		}
	}
	return j, nil
}
