// Package workspace holds the session-scoped state of the analysis screen:
// at most one pending (parsed, not yet analyzed) work item, the committed
// record list, the active item and the search text. All mutation goes through
// the store; concurrent user actions are serialized by the orchestrator, not
// by callers taking locks.
package workspace

import (
	"fmt"
	"sync"

	"github.com/score-analyzer/webapp/internal/models"
)

// Store is the explicit, injectable session store. A non-empty snapshotPath
// enables persistence across restarts; the session marker decides whether a
// restored snapshot may be reused (see EnsureSession).
type Store struct {
	mu           sync.RWMutex
	marker       string
	pending      *models.FileWorkItem
	items        []*models.FileWorkItem
	activeID     string
	searchText   string
	snapshotPath string
}

// NewStore creates an empty store. snapshotPath may be "" to disable
// persistence.
func NewStore(snapshotPath string) *Store {
	return &Store{
		items:        make([]*models.FileWorkItem, 0),
		snapshotPath: snapshotPath,
	}
}

// EnsureSession compares marker against the last-seen session marker and
// discards all held work items when it changed. A stale session must never
// surface another session's cached data. Returns true if a reset happened.
func (s *Store) EnsureSession(marker string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.marker == marker {
		return false
	}
	if s.marker != "" {
		fmt.Printf("[Workspace] session marker changed, discarding %d items\n", len(s.items))
	}
	s.resetLocked()
	s.marker = marker
	s.persistLocked()
	return true
}

// Reset discards everything but keeps the current session marker.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.persistLocked()
}

func (s *Store) resetLocked() {
	s.pending = nil
	s.items = make([]*models.FileWorkItem, 0)
	s.activeID = ""
	s.searchText = ""
}

// Marker returns the last-seen session marker.
func (s *Store) Marker() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.marker
}

// BeginUpload installs item as the in-flight upload, discarding any previous
// pending item, and clears the search text and active view: a new upload
// invalidates whatever was displayed before.
func (s *Store) BeginUpload(item *models.FileWorkItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil && !s.pending.Stage.Terminal() {
		fmt.Printf("[Workspace] superseding pending item %s (%s)\n", shortID(s.pending.ID), s.pending.Stage)
	}
	s.pending = item
	s.searchText = ""
	s.activeID = ""
	s.persistLocked()
}

// CompleteParse reconciles a successful parse response into the pending item.
// Returns false if the item was superseded in the meantime.
func (s *Store) CompleteParse(id string, backendFileID int64, scores []models.StudentScore, studentCount, quotaCost int, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil || s.pending.ID != id || s.pending.Stage != models.StageUploading {
		return false
	}
	s.pending.BackendFileID = backendFileID
	s.pending.Scores = scores
	s.pending.StudentCount = studentCount
	s.pending.QuotaCost = quotaCost
	s.pending.Stage = models.StageParsedPending
	s.pending.Progress = 100
	s.pending.StatusMessage = message
	s.persistLocked()
	return true
}

// FailPending marks the in-flight upload as failed. The item stays visible as
// the pending slot's terminal state but is never committed to the record list.
func (s *Store) FailPending(id, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil || s.pending.ID != id || s.pending.Stage.Terminal() {
		return false
	}
	s.pending.Stage = models.StageError
	s.pending.StatusMessage = message
	s.persistLocked()
	return true
}

// CommitPending moves the pending item into the record list and marks it
// analyzing. The analyze phase carries its own progress signal, so the
// percentage restarts. Returns false when nothing is ready to analyze.
func (s *Store) CommitPending() (models.FileWorkItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil || s.pending.Stage != models.StageParsedPending {
		return models.FileWorkItem{}, false
	}
	item := s.pending
	s.pending = nil
	item.Stage = models.StageAnalyzing
	item.Progress = 0
	s.items = append(s.items, item)
	s.activeID = item.ID
	s.persistLocked()
	return *item, true
}

// CompleteAnalysis reconciles a successful analyze response into a committed
// item, replacing its scores with the analyzed rows.
func (s *Store) CompleteAnalysis(id string, scores []models.StudentScore, studentCount, quotaCost int, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findLocked(id)
	if item == nil || item.Stage != models.StageAnalyzing {
		return false
	}
	item.Scores = scores
	if studentCount > 0 {
		item.StudentCount = studentCount
	}
	if quotaCost > 0 {
		item.QuotaCost = quotaCost
	}
	item.Stage = models.StageComplete
	item.Progress = 100
	item.StatusMessage = message
	s.persistLocked()
	return true
}

// FailItem marks a committed item as failed, leaving its parsed scores in
// place so the user can inspect or retry.
func (s *Store) FailItem(id, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findLocked(id)
	if item == nil || item.Stage.Terminal() {
		return false
	}
	item.Stage = models.StageError
	item.StatusMessage = message
	s.persistLocked()
	return true
}

// SetProgress applies a simulated progress tick. It only ever raises the
// value, and only while the item is mid-flight, so a stale timer firing after
// reconciliation (or after the item was superseded) cannot corrupt state.
func (s *Store) SetProgress(id string, percent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findAnyLocked(id)
	if item == nil {
		return
	}
	if item.Stage != models.StageUploading && item.Stage != models.StageAnalyzing {
		return
	}
	if percent > item.Progress {
		item.Progress = percent
	}
}

// SetStatusMessage updates the human-readable stage description.
func (s *Store) SetStatusMessage(id, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.findAnyLocked(id); item != nil && !item.Stage.Terminal() {
		item.StatusMessage = message
	}
}

// Pending returns a copy of the pending slot.
func (s *Store) Pending() (models.FileWorkItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.pending == nil {
		return models.FileWorkItem{}, false
	}
	return *s.pending, true
}

// Item returns a copy of a committed or pending item by ID.
func (s *Store) Item(id string) (models.FileWorkItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item := s.findAnyLocked(id); item != nil {
		return *item, true
	}
	return models.FileWorkItem{}, false
}

// Items returns copies of the committed record list in commit order.
func (s *Store) Items() []models.FileWorkItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.FileWorkItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, *item)
	}
	return out
}

// ActiveItem returns a copy of the currently selected committed item.
func (s *Store) ActiveItem() (models.FileWorkItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.activeID == "" {
		return models.FileWorkItem{}, false
	}
	if item := s.findLocked(s.activeID); item != nil {
		return *item, true
	}
	return models.FileWorkItem{}, false
}

// SetActive selects a committed item by ID.
func (s *Store) SetActive(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findLocked(id) == nil {
		return false
	}
	s.activeID = id
	s.persistLocked()
	return true
}

// SearchText returns the current filter text.
func (s *Store) SearchText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchText
}

// SetSearchText records the current filter text.
func (s *Store) SetSearchText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchText = text
}

func (s *Store) findLocked(id string) *models.FileWorkItem {
	for _, item := range s.items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

func (s *Store) findAnyLocked(id string) *models.FileWorkItem {
	if s.pending != nil && s.pending.ID == id {
		return s.pending
	}
	return s.findLocked(id)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
