package domain

import (
	"encoding/json"
	"time"
)

type AnalysisStatus string

const (
	AnalysisCompleted AnalysisStatus = "completed"
	AnalysisError     AnalysisStatus = "error"
)

// AnalysisResult is the per-document outcome of a batch analysis.
type AnalysisResult struct {
	FileName string          `json:"fileName"`
	Status   AnalysisStatus  `json:"status"`
	Result   json.RawMessage `json:"result,omitempty"`
	Message  string          `json:"message,omitempty"`
}

func AnalysisSucceeded(fileName string, result json.RawMessage) AnalysisResult {
	return AnalysisResult{FileName: fileName, Status: AnalysisCompleted, Result: result}
}

func AnalysisFailed(fileName string, err error) AnalysisResult {
	return AnalysisResult{FileName: fileName, Status: AnalysisError, Message: err.Error()}
}

// DocumentAnalysis is the persisted analysis of one document.
type DocumentAnalysis struct {
	ID         string          `json:"id"`
	ProcessID  string          `json:"process_id"`
	DocumentID string          `json:"document_id"`
	FileName   string          `json:"file_name"`
	Prompt     string          `json:"prompt"`
	Result     json.RawMessage `json:"result"`
	CreatedAt  time.Time       `json:"created_at"`
}
