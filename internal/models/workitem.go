package models

import "time"

// WorkStage represents the lifecycle stage of a file work item.
type WorkStage string

const (
	StageIdle          WorkStage = "idle"
	StageUploading     WorkStage = "uploading"
	StageParsedPending WorkStage = "parsed_pending_analysis"
	StageAnalyzing     WorkStage = "analyzing"
	StageComplete      WorkStage = "complete"
	StageError         WorkStage = "error"
)

// Terminal reports whether no further forward transition is possible.
func (s WorkStage) Terminal() bool {
	return s == StageComplete || s == StageError
}

// FileWorkItem is one user-initiated upload/analysis cycle. Stages only move
// forward (or to error); a complete item is never mutated except by a re-run.
type FileWorkItem struct {
	ID            string         `json:"id" msgpack:"id"`
	BackendFileID int64          `json:"backendFileId,omitempty" msgpack:"backend_file_id,omitempty"`
	Filename      string         `json:"filename" msgpack:"filename"`
	Scores        []StudentScore `json:"scores" msgpack:"scores"`
	Stage         WorkStage      `json:"stage" msgpack:"stage"`
	StatusMessage string         `json:"statusMessage,omitempty" msgpack:"status_message,omitempty"`
	Progress      float64        `json:"progress" msgpack:"progress"` // 0-100
	StudentCount  int            `json:"studentCount,omitempty" msgpack:"student_count,omitempty"`
	QuotaCost     int            `json:"quotaCost,omitempty" msgpack:"quota_cost,omitempty"`
	UploadTime    time.Time      `json:"uploadTime" msgpack:"upload_time"`
}

// NewFileWorkItem creates a work item in the uploading stage.
func NewFileWorkItem(id, filename string) *FileWorkItem {
	return &FileWorkItem{
		ID:         id,
		Filename:   filename,
		Scores:     make([]StudentScore, 0),
		Stage:      StageUploading,
		Progress:   0,
		UploadTime: time.Now(),
	}
}
