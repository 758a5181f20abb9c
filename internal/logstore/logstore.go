package logstore

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	FileAll     = "all.log"
	FileError   = "error.log"
	FileSuccess = "success.log"

	timestampLayout = "2006-01-02 15:04:05"

	// defaultMaxSize triggers rotation; the dashboard serves these files
	// for download, so they cannot grow without bound.
	defaultMaxSize = 5 << 20
)

// Store appends human-readable lines to the operator-facing log files:
// all.log gets everything, error.log and success.log their levels.
// Lines also echo to the process log for console visibility.
type Store struct {
	dir     string
	maxSize int64
	mu      sync.Mutex
}

// FileInfo is a log file listing entry for the dashboard.
type FileInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log dir %s: %w", dir, err)
	}
	return &Store{dir: dir, maxSize: defaultMaxSize}, nil
}

func (s *Store) Info(format string, args ...any) {
	s.write("INFO", fmt.Sprintf(format, args...))
}

func (s *Store) Error(format string, args ...any) {
	s.write("ERROR", fmt.Sprintf(format, args...))
}

func (s *Store) Success(format string, args ...any) {
	s.write("SUCCESS", fmt.Sprintf(format, args...))
}

func (s *Store) write(level, msg string) {
	line := fmt.Sprintf("%s - %s - %s\n", time.Now().Format(timestampLayout), level, msg)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendLine(FileAll, line)
	switch level {
	case "ERROR":
		s.appendLine(FileError, line)
	case "SUCCESS":
		s.appendLine(FileSuccess, line)
	}

	log.Printf("[%s] %s", level, msg)
}

func (s *Store) appendLine(name, line string) {
	path := filepath.Join(s.dir, name)
	s.rotateIfNeeded(path)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("logstore: cannot open %s: %v", path, err)
		return
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		log.Printf("logstore: cannot write %s: %v", path, err)
	}
}

func (s *Store) rotateIfNeeded(path string) {
	info, err := os.Stat(path)
	if err != nil || info.Size() < s.maxSize {
		return
	}
	rotated := strings.TrimSuffix(path, ".log") + "." + time.Now().Format("20060102-150405") + ".log"
	if err := os.Rename(path, rotated); err != nil {
		log.Printf("logstore: rotation of %s failed: %v", path, err)
	}
}

// List returns the log files, newest first.
func (s *Store) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].ModTime.After(files[j].ModTime) })
	return files, nil
}

// Tail returns the last n lines of a log file by name. The name must be
// a plain file name; anything path-like is rejected.
func (s *Store) Tail(name string, n int) ([]string, error) {
	path, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to open log %s: %w", name, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log %s: %w", name, err)
	}
	return lines, nil
}

// Resolve maps a file name to its path inside the log dir, rejecting
// traversal attempts.
func (s *Store) Resolve(name string) (string, error) {
	if name != filepath.Base(name) || strings.Contains(name, "..") || !strings.HasSuffix(name, ".log") {
		return "", fmt.Errorf("invalid log name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}
