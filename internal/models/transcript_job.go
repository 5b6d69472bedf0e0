package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TranscriptFormat enumerates supported export formats.
type TranscriptFormat string

const (
	TranscriptFormatCSV TranscriptFormat = "csv"
	TranscriptFormatPDF TranscriptFormat = "pdf"
)

// TranscriptJobStatus captures background job lifecycle states.
type TranscriptJobStatus string

const (
	TranscriptJobQueued     TranscriptJobStatus = "QUEUED"
	TranscriptJobProcessing TranscriptJobStatus = "PROCESSING"
	TranscriptJobFinished   TranscriptJobStatus = "FINISHED"
	TranscriptJobFailed     TranscriptJobStatus = "FAILED"
)

// TranscriptJob is persisted metadata for one asynchronous transcript export.
type TranscriptJob struct {
	ID           string               `db:"id" json:"id"`
	Params       TranscriptJobParams  `db:"params" json:"params"`
	Status       TranscriptJobStatus  `db:"status" json:"status"`
	ResultURL    *string              `db:"result_url" json:"result_url,omitempty"`
	CreatedBy    string               `db:"created_by" json:"created_by"`
	CreatedAt    time.Time            `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time           `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string              `db:"error_message" json:"error_message,omitempty"`
}

// TranscriptJobParams stores request-scoped options persisted as JSONB.
type TranscriptJobParams struct {
	StudentID string           `json:"studentId"`
	Format    TranscriptFormat `json:"format"`
}

// Value marshals params to JSON for persistence.
func (p TranscriptJobParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal transcript job params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *TranscriptJobParams) Scan(value interface{}) error {
	if value == nil {
		*p = TranscriptJobParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for TranscriptJobParams", value)
	}
	if len(data) == 0 {
		*p = TranscriptJobParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal transcript job params: %w", err)
	}
	return nil
}
