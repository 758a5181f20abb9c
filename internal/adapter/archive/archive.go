package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kawalsec/s1relay/internal/core/domain"
	"github.com/kawalsec/s1relay/internal/core/ports"
)

const (
	eventsSubdir = "events"
	alertsSubdir = "alerts"
	dateLayout   = "2006-01-02"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Store is the flat-file event archive: one JSONL partition per UTC day
// under <dir>/events, raw webhook snapshots under <dir>/alerts.
type Store struct {
	dir           string
	retentionDays int
	now           func() time.Time
}

func NewStore(dir string, retentionDays int) *Store {
	return &Store{dir: dir, retentionDays: retentionDays, now: time.Now}
}

func (s *Store) eventsDir() string { return filepath.Join(s.dir, eventsSubdir) }
func (s *Store) alertsDir() string { return filepath.Join(s.dir, alertsSubdir) }

func (s *Store) partitionFor(t time.Time) string {
	return filepath.Join(s.eventsDir(), t.UTC().Format(dateLayout)+".jsonl")
}

// Append writes events to today's partition and returns how many made it.
// A single unserializable event is skipped, not fatal.
func (s *Store) Append(events []domain.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	if err := os.MkdirAll(s.eventsDir(), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create archive dir: %w", err)
	}

	path := s.partitionFor(s.now())
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to open partition %s: %w", path, err)
	}
	defer f.Close()

	count := 0
	w := bufio.NewWriter(f)
	for _, ev := range events {
		line, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		w.Write(line)
		w.WriteByte('\n')
		count++
	}
	if err := w.Flush(); err != nil {
		return count, fmt.Errorf("failed to flush partition %s: %w", path, err)
	}
	return count, nil
}

// SaveRawAlert stores an incoming webhook body verbatim and returns the
// file path, so notifications can reference where the raw evidence lives.
func (s *Store) SaveRawAlert(body []byte) (string, error) {
	if err := os.MkdirAll(s.alertsDir(), 0o755); err != nil {
		return "", fmt.Errorf("failed to create alerts dir: %w", err)
	}

	name := fmt.Sprintf("alert_%s_%s.json", s.now().UTC().Format("20060102_150405"), uuid.NewString()[:8])
	path := filepath.Join(s.alertsDir(), name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to save alert %s: %w", path, err)
	}
	return path, nil
}

// ReadDate returns the events archived on a YYYY-MM-DD day. Invalid
// lines are skipped; a missing partition is an empty result.
func (s *Store) ReadDate(date string) ([]domain.Event, error) {
	if !datePattern.MatchString(date) {
		return nil, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", date)
	}

	f, err := os.Open(filepath.Join(s.eventsDir(), date+".jsonl"))
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.Event{}, nil
		}
		return nil, fmt.Errorf("failed to open partition for %s: %w", date, err)
	}
	defer f.Close()

	var events []domain.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev domain.Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("failed to read partition for %s: %w", date, err)
	}
	return events, nil
}

// List returns all archive files, newest first.
func (s *Store) List() ([]ports.ArchiveFile, error) {
	var files []ports.ArchiveFile
	for _, sub := range []string{eventsSubdir, alertsSubdir} {
		entries, err := os.ReadDir(filepath.Join(s.dir, sub))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to list %s: %w", sub, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			files = append(files, ports.ArchiveFile{
				Name:    e.Name(),
				Path:    filepath.Join(sub, e.Name()),
				Size:    info.Size(),
				ModTime: info.ModTime(),
				Kind:    sub,
			})
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].ModTime.After(files[j].ModTime) })
	return files, nil
}

// Prune deletes partitions whose date is past the retention window and
// alert snapshots older than it. Returns the removed paths.
func (s *Store) Prune(now time.Time) ([]string, error) {
	if s.retentionDays <= 0 {
		return nil, nil
	}
	cutoff := now.UTC().AddDate(0, 0, -s.retentionDays)

	var removed []string

	entries, err := os.ReadDir(s.eventsDir())
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to scan events dir: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		day, err := time.Parse(dateLayout, strings.TrimSuffix(name, ".jsonl"))
		if err != nil {
			continue
		}
		if day.Before(cutoff.Truncate(24 * time.Hour)) {
			path := filepath.Join(s.eventsDir(), name)
			if err := os.Remove(path); err == nil {
				removed = append(removed, path)
			}
		}
	}

	alerts, err := os.ReadDir(s.alertsDir())
	if err != nil && !os.IsNotExist(err) {
		return removed, fmt.Errorf("failed to scan alerts dir: %w", err)
	}
	for _, e := range alerts {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(s.alertsDir(), e.Name())
			if err := os.Remove(path); err == nil {
				removed = append(removed, path)
			}
		}
	}

	return removed, nil
}

// Resolve maps a listing-relative path ("events/2026-01-02.jsonl") back
// to an absolute path inside the archive dir, rejecting traversal.
func (s *Store) Resolve(rel string) (string, error) {
	clean := filepath.Clean(rel)
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid archive path %q", rel)
	}
	sub := strings.SplitN(clean, string(filepath.Separator), 2)
	if len(sub) != 2 || (sub[0] != eventsSubdir && sub[0] != alertsSubdir) {
		return "", fmt.Errorf("invalid archive path %q", rel)
	}
	return filepath.Join(s.dir, clean), nil
}
