// Package history is the durable, append-only log of quota snapshots.
//
// The log is a single JSON array file rewritten as a whole on every change.
// Within one process the Store is the only writer; a second writer (such as
// the IDE extension) hands its points over through a buffer file that is
// folded in with MergeExternal.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/j-veylop/antigravity-quota-history/internal/logger"
	"github.com/j-veylop/antigravity-quota-history/internal/models"
)

// Retention is how long snapshots are kept.
const Retention = 7 * 24 * time.Hour

// Store persists QuotaSnapshots to a JSON file.
type Store struct {
	mu   sync.RWMutex
	path string
}

// New returns a store backed by the file at path. The file need not exist.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Cutoff returns the oldest excluded timestamp for the retention window ending at now.
func Cutoff(now time.Time) int64 {
	return now.Unix() - int64(Retention/time.Second)
}

// Load returns the snapshots within the retention window, oldest first.
// A missing or corrupt file yields an empty history.
func (s *Store) Load(now time.Time) []models.QuotaSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadLocked(now)
}

func (s *Store) loadLocked(now time.Time) []models.QuotaSnapshot {
	points, err := readSnapshots(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("history unreadable, starting empty", "path", s.path, "error", err)
		}
		return []models.QuotaSnapshot{}
	}
	return prune(points, Cutoff(now))
}

// AppendAndPrune adds one snapshot, drops expired entries and persists the result.
func (s *Store) AppendAndPrune(point models.QuotaSnapshot, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	points := s.loadLocked(now)
	before := len(points)
	points = upsert(points, point)
	points = prune(points, Cutoff(now))

	logger.Debug("history append", "before", before, "after", len(points), "timestamp", point.Timestamp)

	return s.saveLocked(points)
}

// Record captures the accounts' last known quota as a snapshot at now.
func (s *Store) Record(accounts []models.Account, now time.Time) error {
	return s.AppendAndPrune(models.SnapshotFromAccounts(accounts, now.Unix()), now)
}

// MergeExternal folds the snapshots of the buffer file at bufferPath into the
// history, skipping timestamps already present, and deletes the buffer.
// A missing buffer is not an error. An unreadable buffer is left in place.
func (s *Store) MergeExternal(bufferPath string, now time.Time) (int, error) {
	buffer, err := readSnapshots(bufferPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read buffer: %w", err)
	}

	if len(buffer) == 0 {
		removeBuffer(bufferPath)
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := Cutoff(now)
	points := s.loadLocked(now)
	seen := lo.SliceToMap(points, func(p models.QuotaSnapshot) (int64, struct{}) {
		return p.Timestamp, struct{}{}
	})

	added := 0
	for _, bp := range buffer {
		if bp.Timestamp <= cutoff {
			continue
		}
		if _, ok := seen[bp.Timestamp]; ok {
			continue
		}
		seen[bp.Timestamp] = struct{}{}
		points = append(points, bp)
		added++
	}

	if added > 0 {
		models.SortSnapshots(points)
		points = prune(points, cutoff)
		if err := s.saveLocked(points); err != nil {
			return 0, err
		}
		logger.Info("merged buffered snapshots", "added", added, "buffer", bufferPath)
	}

	removeBuffer(bufferPath)
	return added, nil
}

// saveLocked writes the full history atomically (must hold lock).
func (s *Store) saveLocked(points []models.QuotaSnapshot) error {
	data, err := json.MarshalIndent(points, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	// Write to temp file first, then rename
	tmpFile := s.path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpFile, s.path); err != nil {
		if removeErr := os.Remove(tmpFile); removeErr != nil {
			logger.Error("failed to remove temp file", "error", removeErr)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

func readSnapshots(path string) ([]models.QuotaSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var points []models.QuotaSnapshot
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("failed to parse %s (%d bytes): %w", filepath.Base(path), len(data), err)
	}
	for i := range points {
		normalize(&points[i])
	}
	return points, nil
}

// normalize fills maps that older files omit.
func normalize(p *models.QuotaSnapshot) {
	if p.Usage == nil {
		p.Usage = make(map[string]float64)
	}
	if p.ResetAt == nil {
		p.ResetAt = make(map[string]int64)
	}
	if p.AccountNames == nil {
		p.AccountNames = make(map[string]string)
	}
}

// upsert appends point, replacing an entry captured in the same second and
// keeping the sequence ordered.
func upsert(points []models.QuotaSnapshot, point models.QuotaSnapshot) []models.QuotaSnapshot {
	for i := range points {
		if points[i].Timestamp == point.Timestamp {
			points[i] = point
			return points
		}
	}
	points = append(points, point)
	if n := len(points); n > 1 && points[n-2].Timestamp > point.Timestamp {
		models.SortSnapshots(points)
	}
	return points
}

func prune(points []models.QuotaSnapshot, cutoff int64) []models.QuotaSnapshot {
	return lo.Filter(points, func(p models.QuotaSnapshot, _ int) bool {
		return p.Timestamp > cutoff
	})
}

func removeBuffer(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to remove buffer", "path", path, "error", err)
	}
}
