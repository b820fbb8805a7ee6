package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RunLogPattern matches the per-run daemon logs written next to the
// LogFileName pointer.
const RunLogPattern = "brandkit-*.log"

// RunLogName returns the per-run log file name for runID.
func RunLogName(runID string) string {
	return "brandkit-" + runID + ".log"
}

// PruneRunLogs removes per-run logs in dir whose modification time is older
// than retentionDays and returns the removed paths. The active log and the
// file LogFileName resolves to are always kept, whether the pointer is a
// symlink or a hard link. A retentionDays value of 0 disables pruning.
func PruneRunLogs(logger *slog.Logger, dir string, retentionDays int, active string) []string {
	dir = strings.TrimSpace(dir)
	if retentionDays <= 0 || dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	keep := newKeepSet(dir, active)

	var removed []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if ok, _ := filepath.Match(RunLogPattern, name); !ok {
			continue
		}
		path := filepath.Join(dir, name)
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) || keep.has(path, info) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		removed = append(removed, path)
	}
	if len(removed) > 0 && logger != nil {
		logger.Info("old run logs pruned",
			Int("count", len(removed)),
			Int("retention_days", retentionDays),
			String(FieldEventType, "log_pruned"),
		)
	}
	return removed
}

// keepSet holds the files retention must not touch.
type keepSet struct {
	paths   map[string]struct{}
	pointer os.FileInfo
}

func newKeepSet(dir, active string) keepSet {
	k := keepSet{paths: make(map[string]struct{})}
	k.add(active)

	pointer := filepath.Join(dir, LogFileName)
	if target, err := os.Readlink(pointer); err == nil {
		if !filepath.IsAbs(target) {
			target = filepath.Join(dir, target)
		}
		k.add(target)
	} else if info, err := os.Stat(pointer); err == nil && info.Mode().IsRegular() {
		k.pointer = info
	}
	return k
}

func (k keepSet) add(path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	k.paths[filepath.Clean(path)] = struct{}{}
}

func (k keepSet) has(path string, info os.FileInfo) bool {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if _, ok := k.paths[filepath.Clean(path)]; ok {
		return true
	}
	return k.pointer != nil && os.SameFile(k.pointer, info)
}
