// snapshot.go - msgpack persistence of the session workspace
package workspace

import (
	"fmt"
	"os"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/score-analyzer/webapp/internal/models"
)

type snapshot struct {
	Marker     string                 `msgpack:"marker"`
	Pending    *models.FileWorkItem   `msgpack:"pending"`
	Items      []*models.FileWorkItem `msgpack:"items"`
	ActiveID   string                 `msgpack:"active_id"`
	SearchText string                 `msgpack:"search_text"`
	SavedAt    time.Time              `msgpack:"saved_at"`
}

// Restore loads a previously persisted workspace. With an empty marker the
// store adopts the marker the snapshot was saved under (server restart within
// a session); with a non-empty marker a snapshot from a different session is
// deleted, never reused: cached work items must not leak across sessions.
// Items that were mid-flight when the snapshot was written are dead after a
// restart and are marked accordingly.
func (s *Store) Restore(marker string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.marker = marker

	if s.snapshotPath == "" {
		return false, nil
	}

	data, err := os.ReadFile(s.snapshotPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		os.Remove(s.snapshotPath)
		return false, fmt.Errorf("decoding snapshot: %w", err)
	}

	if marker != "" && snap.Marker != marker {
		os.Remove(s.snapshotPath)
		fmt.Printf("[Workspace] discarding snapshot from another session (%d items)\n", len(snap.Items))
		return false, nil
	}
	s.marker = snap.Marker

	if snap.Pending != nil && snap.Pending.Stage == models.StageUploading {
		snap.Pending = nil
	}
	for _, item := range snap.Items {
		if item.Stage == models.StageAnalyzing {
			item.Stage = models.StageError
			item.StatusMessage = "analysis interrupted by a restart"
		}
	}
	if snap.Items == nil {
		snap.Items = make([]*models.FileWorkItem, 0)
	}

	s.pending = snap.Pending
	s.items = snap.Items
	s.activeID = snap.ActiveID
	s.searchText = snap.SearchText
	return true, nil
}

// persistLocked writes the snapshot atomically. Failures are logged and
// otherwise ignored: persistence is a convenience, not a correctness
// mechanism.
func (s *Store) persistLocked() {
	if s.snapshotPath == "" {
		return
	}

	snap := snapshot{
		Marker:     s.marker,
		Pending:    s.pending,
		Items:      s.items,
		ActiveID:   s.activeID,
		SearchText: s.searchText,
		SavedAt:    time.Now(),
	}

	data, err := msgpack.Marshal(&snap)
	if err != nil {
		fmt.Printf("[Workspace] snapshot encode failed: %v\n", err)
		return
	}

	tmp := s.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		fmt.Printf("[Workspace] snapshot write failed: %v\n", err)
		return
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		os.Remove(tmp)
		fmt.Printf("[Workspace] snapshot rename failed: %v\n", err)
	}
}
