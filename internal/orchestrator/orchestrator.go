// Package orchestrator drives one uploaded file through the parse-then-analyze
// workflow: it owns the single pending slot, the committed record list's
// growth, the simulated progress timers, and the reconciliation of late
// network responses against superseded state.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/score-analyzer/webapp/internal/models"
	"github.com/score-analyzer/webapp/internal/progress"
	"github.com/score-analyzer/webapp/internal/scoreapi"
	"github.com/score-analyzer/webapp/internal/workspace"
)

// State violations fail synchronously, before any network call.
var (
	// ErrNothingToAnalyze is returned when no parsed file is waiting.
	ErrNothingToAnalyze = errors.New("no parsed file is ready to analyze")
	// ErrAnalysisInFlight rejects a second analyze while one is outstanding.
	ErrAnalysisInFlight = errors.New("an analysis is already in progress")
	// ErrNotReady is returned by Search when no completed item is active.
	ErrNotReady = errors.New("no completed analysis is active")
	// ErrSuperseded marks a response that arrived after its upload was
	// replaced by a newer one.
	ErrSuperseded = errors.New("upload superseded by a newer file")
)

// ValidationError rejects a file before any network call.
type ValidationError struct {
	Filename string
	Allowed  []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("unsupported file type %q, accepted: %s", e.Filename, strings.Join(e.Allowed, ", "))
}

// Backend is the slice of the upstream client the orchestrator needs.
type Backend interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*scoreapi.UploadResult, error)
	Analyze(ctx context.Context, fileID int64, oneShotText string) (*scoreapi.AnalyzeResult, error)
}

// QuotaSink receives the fresh balance after a successful analyze.
type QuotaSink interface {
	ApplyRemaining(remaining int)
}

// SearchResult is a client-side filter over the active item's scores. An
// empty Matches slice means no student matched; that is distinct from the
// ErrNotReady condition.
type SearchResult struct {
	Matches []models.StudentScore `json:"matches"`
	Total   int                   `json:"total"`
}

// Options tunes the orchestrator. Zero values fall back to defaults.
type Options struct {
	AcceptedExtensions []string
	Profile            progress.Profile
	TickInterval       time.Duration
	Clock              progress.Clock
}

// Orchestrator serializes the screen's upload/analyze actions. One instance
// per workspace; its mutex guards the in-flight flags and timers, while item
// state lives in the injected store.
type Orchestrator struct {
	backend Backend
	store   *workspace.Store
	quota   QuotaSink

	accepted []string
	profile  progress.Profile
	tick     time.Duration
	clock    progress.Clock

	mu            sync.Mutex
	uploadGen     uint64
	analyzeGen    uint64
	parseRunner   *progress.Runner
	analyzeBusy   bool
	analyzeRunner *progress.Runner
}

// New creates an orchestrator around the given collaborators. quota may be
// nil when no account state is wired (tests).
func New(backend Backend, store *workspace.Store, quota QuotaSink, opts Options) *Orchestrator {
	accepted := opts.AcceptedExtensions
	if len(accepted) == 0 {
		accepted = []string{".xlsx"}
	}
	profile := opts.Profile
	if profile == (progress.Profile{}) {
		profile = progress.DefaultProfile()
	}
	tick := opts.TickInterval
	if tick <= 0 {
		tick = 200 * time.Millisecond
	}
	clock := opts.Clock
	if clock == nil {
		clock = progress.SystemClock()
	}

	return &Orchestrator{
		backend:  backend,
		store:    store,
		quota:    quota,
		accepted: accepted,
		profile:  profile,
		tick:     tick,
		clock:    clock,
	}
}

// SubmitFile validates the file, supersedes any mid-parse upload, and drives
// the parse call. It blocks until the backend responds; progress for pollers
// is simulated in the background and reconciled the instant the response
// arrives. On success the item is held as pending and is not committed to the
// record list.
func (o *Orchestrator) SubmitFile(ctx context.Context, filename string, r io.Reader) (models.FileWorkItem, error) {
	if err := o.validateExtension(filename); err != nil {
		return models.FileWorkItem{}, err
	}

	item := models.NewFileWorkItem(uuid.New().String(), filename)
	item.StatusMessage = "Uploading file to the server..."

	o.mu.Lock()
	o.uploadGen++
	gen := o.uploadGen
	if o.parseRunner != nil {
		o.parseRunner.Stop()
	}
	o.store.BeginUpload(item)
	o.parseRunner = o.startRunner(models.StageUploading, item.ID)
	o.mu.Unlock()

	fmt.Printf("[Orchestrator %s] uploading %s\n", shortID(item.ID), filename)
	result, err := o.backend.Upload(ctx, filename, r)

	o.mu.Lock()
	if gen != o.uploadGen {
		// A newer upload replaced this one while the call was in flight;
		// its runner is already stopped and its state discarded.
		o.mu.Unlock()
		fmt.Printf("[Orchestrator %s] dropping superseded parse response\n", shortID(item.ID))
		return models.FileWorkItem{}, ErrSuperseded
	}
	if o.parseRunner != nil {
		o.parseRunner.Stop()
		o.parseRunner = nil
	}
	o.mu.Unlock()

	if err != nil {
		msg := parseFailureMessage(err)
		o.store.FailPending(item.ID, msg)
		fmt.Printf("[Orchestrator %s] parse failed: %v\n", shortID(item.ID), err)
		failed, _ := o.store.Item(item.ID)
		return failed, err
	}

	name := filename
	if result.OriginalFilename != "" {
		name = result.OriginalFilename
	}
	count := result.StudentCount
	if count == 0 {
		count = len(result.Scores)
	}
	o.store.CompleteParse(item.ID, result.FileID, result.Scores, count, result.QuotaCost,
		fmt.Sprintf("Parsed %d students from %s, ready to analyze", count, name))
	fmt.Printf("[Orchestrator %s] parse complete: %d students (file_id=%d)\n", shortID(item.ID), count, result.FileID)

	pending, _ := o.store.Item(item.ID)
	return pending, nil
}

// RequestAnalysis commits the pending item to the record list and drives the
// AI analyze call. A second call while one is outstanding is rejected
// synchronously; nothing is queued.
func (o *Orchestrator) RequestAnalysis(ctx context.Context, oneShotText string) (models.FileWorkItem, error) {
	o.mu.Lock()
	if o.analyzeBusy {
		o.mu.Unlock()
		return models.FileWorkItem{}, ErrAnalysisInFlight
	}
	item, ok := o.store.CommitPending()
	if !ok {
		o.mu.Unlock()
		return models.FileWorkItem{}, ErrNothingToAnalyze
	}
	o.store.SetStatusMessage(item.ID, "AI analysis in progress...")
	o.analyzeBusy = true
	o.analyzeGen++
	gen := o.analyzeGen
	o.analyzeRunner = o.startRunner(models.StageAnalyzing, item.ID)
	o.mu.Unlock()

	fmt.Printf("[Orchestrator %s] analyzing file_id=%d\n", shortID(item.ID), item.BackendFileID)
	result, err := o.backend.Analyze(ctx, item.BackendFileID, oneShotText)

	o.mu.Lock()
	stale := gen != o.analyzeGen
	o.analyzeBusy = false
	if o.analyzeRunner != nil {
		o.analyzeRunner.Stop()
		o.analyzeRunner = nil
	}
	o.mu.Unlock()

	if stale {
		fmt.Printf("[Orchestrator %s] dropping stale analyze response\n", shortID(item.ID))
		return models.FileWorkItem{}, ErrSuperseded
	}

	if err != nil {
		// The parsed rows stay visible so the user can inspect or retry.
		o.store.FailItem(item.ID, analyzeFailureMessage(err))
		fmt.Printf("[Orchestrator %s] analyze failed: %v\n", shortID(item.ID), err)
		failed, _ := o.store.Item(item.ID)
		return failed, err
	}

	count := result.StudentCount
	if count == 0 {
		count = len(result.Scores)
	}
	o.store.CompleteAnalysis(item.ID, result.Scores, count, result.QuotaCost,
		fmt.Sprintf("Analysis complete for %d students", count))
	if o.quota != nil && result.HasRemaining {
		o.quota.ApplyRemaining(result.QuotaRemaining)
	}
	fmt.Printf("[Orchestrator %s] analyze complete: %d students\n", shortID(item.ID), count)

	done, _ := o.store.Item(item.ID)
	return done, nil
}

// Search filters the active item's scores by a case-insensitive substring
// match on the student name. A blank fragment means "show all". Requires a
// complete active item.
func (o *Orchestrator) Search(fragment string) (*SearchResult, error) {
	item, ok := o.store.ActiveItem()
	if !ok || item.Stage != models.StageComplete {
		return nil, ErrNotReady
	}

	o.store.SetSearchText(fragment)

	needle := strings.ToLower(strings.TrimSpace(fragment))
	result := &SearchResult{
		Matches: make([]models.StudentScore, 0, len(item.Scores)),
		Total:   len(item.Scores),
	}
	for _, score := range item.Scores {
		if needle == "" || strings.Contains(strings.ToLower(score.StudentName), needle) {
			result.Matches = append(result.Matches, score)
		}
	}
	return result, nil
}

// EnsureSession forwards a session-marker check to the store, first stopping
// any timers so a superseded item cannot be mutated after the reset.
func (o *Orchestrator) EnsureSession(marker string) bool {
	o.mu.Lock()
	current := o.store.Marker()
	if current != marker {
		o.stopRunnersLocked()
	}
	o.mu.Unlock()
	return o.store.EnsureSession(marker)
}

// Reset clears the workspace within the current session.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.stopRunnersLocked()
	o.mu.Unlock()
	o.store.Reset()
}

// stopRunnersLocked cancels all timers and invalidates in-flight responses.
func (o *Orchestrator) stopRunnersLocked() {
	o.uploadGen++
	o.analyzeGen++
	o.analyzeBusy = false
	if o.parseRunner != nil {
		o.parseRunner.Stop()
		o.parseRunner = nil
	}
	if o.analyzeRunner != nil {
		o.analyzeRunner.Stop()
		o.analyzeRunner = nil
	}
}

// startRunner begins the simulated progress ticks for an item. The store's
// stage and monotonic guards make late ticks harmless, the runner stop makes
// them cease.
func (o *Orchestrator) startRunner(stage models.WorkStage, itemID string) *progress.Runner {
	return progress.StartRunner(o.profile, stage, o.tick, o.clock, func(percent float64) {
		o.store.SetProgress(itemID, percent)
	})
}

func (o *Orchestrator) validateExtension(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range o.accepted {
		if ext == allowed {
			return nil
		}
	}
	return &ValidationError{Filename: filename, Allowed: o.accepted}
}

func parseFailureMessage(err error) string {
	if scoreapi.IsTimeout(err) {
		return "The server did not respond in time. The file may still be processing, check back shortly."
	}
	if scoreapi.IsRejected(err) {
		return scoreapi.Message(err, "The file could not be parsed.")
	}
	return "Network error while uploading, please check your connection and retry."
}

func analyzeFailureMessage(err error) string {
	if scoreapi.IsTimeout(err) {
		return "The analysis is taking longer than expected and may still be running, check back shortly."
	}
	if scoreapi.IsRejected(err) {
		return scoreapi.Message(err, "The analysis request was rejected.")
	}
	return "Network error during analysis, please check your connection and retry."
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
