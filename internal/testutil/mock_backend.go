// Package testutil provides mock implementations of the upstream backend and
// the upload spool for handler and orchestrator tests.
package testutil

import (
	"context"
	"io"
	"sync"

	"github.com/score-analyzer/webapp/internal/models"
	"github.com/score-analyzer/webapp/internal/scoreapi"
)

// MockBackend is a scriptable stand-in for the scoreapi client. Each call is
// counted so tests can assert that state violations fail without reaching the
// network.
type MockBackend struct {
	mu sync.Mutex

	UploadFunc  func(ctx context.Context, filename string, r io.Reader) (*scoreapi.UploadResult, error)
	AnalyzeFunc func(ctx context.Context, fileID int64, oneShotText string) (*scoreapi.AnalyzeResult, error)
	ExportFunc  func(ctx context.Context, format string, scores []models.StudentScore, originalFilename string) ([]byte, string, error)
	BalanceFunc func(ctx context.Context) (*scoreapi.QuotaBalance, error)

	uploadCalls  int
	analyzeCalls int
}

func (m *MockBackend) Upload(ctx context.Context, filename string, r io.Reader) (*scoreapi.UploadResult, error) {
	m.mu.Lock()
	m.uploadCalls++
	fn := m.UploadFunc
	m.mu.Unlock()

	if fn == nil {
		return &scoreapi.UploadResult{FileID: 1}, nil
	}
	return fn(ctx, filename, r)
}

func (m *MockBackend) Analyze(ctx context.Context, fileID int64, oneShotText string) (*scoreapi.AnalyzeResult, error) {
	m.mu.Lock()
	m.analyzeCalls++
	fn := m.AnalyzeFunc
	m.mu.Unlock()

	if fn == nil {
		return &scoreapi.AnalyzeResult{}, nil
	}
	return fn(ctx, fileID, oneShotText)
}

func (m *MockBackend) Export(ctx context.Context, format string, scores []models.StudentScore, originalFilename string) ([]byte, string, error) {
	if m.ExportFunc == nil {
		return []byte("export"), "application/octet-stream", nil
	}
	return m.ExportFunc(ctx, format, scores, originalFilename)
}

func (m *MockBackend) QuotaBalance(ctx context.Context) (*scoreapi.QuotaBalance, error) {
	if m.BalanceFunc == nil {
		return &scoreapi.QuotaBalance{Balance: 100}, nil
	}
	return m.BalanceFunc(ctx)
}

// UploadCalls returns how many times Upload was invoked.
func (m *MockBackend) UploadCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploadCalls
}

// AnalyzeCalls returns how many times Analyze was invoked.
func (m *MockBackend) AnalyzeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.analyzeCalls
}

// Students builds unanalyzed score rows for the given names.
func Students(names ...string) []models.StudentScore {
	scores := make([]models.StudentScore, 0, len(names))
	for _, name := range names {
		scores = append(scores, models.StudentScore{
			StudentName: name,
			TotalScore:  90,
			Scores: []models.ScoreItem{
				{QuestionName: "Q1", Deduction: -2, Category: "algebra"},
			},
		})
	}
	return scores
}

// Analyzed returns a copy of scores with analysis text filled in.
func Analyzed(scores []models.StudentScore) []models.StudentScore {
	out := make([]models.StudentScore, len(scores))
	copy(out, scores)
	for i := range out {
		out[i].Analysis = "Weak on " + out[i].StudentName + "'s algebra fundamentals."
		out[i].Suggestions = []string{"Review chapter 3 exercises."}
	}
	return out
}
