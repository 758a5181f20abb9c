package logstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func readLog(t *testing.T, s *Store, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

func TestLevelsRouteToFiles(t *testing.T) {
	s := openStore(t)

	s.Info("polling started")
	s.Error("telegram failed: %s", "timeout")
	s.Success("teams alert sent")

	all := readLog(t, s, FileAll)
	for _, want := range []string{"polling started", "telegram failed: timeout", "teams alert sent"} {
		if !strings.Contains(all, want) {
			t.Errorf("all.log missing %q", want)
		}
	}

	errLog := readLog(t, s, FileError)
	if !strings.Contains(errLog, "telegram failed") || strings.Contains(errLog, "polling started") {
		t.Errorf("error.log has wrong content: %q", errLog)
	}

	okLog := readLog(t, s, FileSuccess)
	if !strings.Contains(okLog, "teams alert sent") || strings.Contains(okLog, "telegram failed") {
		t.Errorf("success.log has wrong content: %q", okLog)
	}
}

func TestLineFormat(t *testing.T) {
	s := openStore(t)
	s.Info("hello")

	line := strings.TrimSpace(readLog(t, s, FileAll))
	parts := strings.SplitN(line, " - ", 3)
	if len(parts) != 3 {
		t.Fatalf("unexpected line format: %q", line)
	}
	if parts[1] != "INFO" {
		t.Errorf("level = %q, want INFO", parts[1])
	}
	if parts[2] != "hello" {
		t.Errorf("message = %q, want hello", parts[2])
	}
	// "2006-01-02 15:04:05"
	if len(parts[0]) != 19 {
		t.Errorf("timestamp %q not in expected layout", parts[0])
	}
}

func TestRotation(t *testing.T) {
	s := openStore(t)
	s.maxSize = 64

	for i := 0; i < 10; i++ {
		s.Info("a fairly long log line to push the file over the rotation threshold")
	}

	files, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	rotated := 0
	for _, f := range files {
		if f.Name != FileAll && strings.HasPrefix(f.Name, "all.") {
			rotated++
		}
	}
	if rotated == 0 {
		t.Error("expected at least one rotated all.log")
	}
}

func TestTail(t *testing.T) {
	s := openStore(t)
	for i := 0; i < 5; i++ {
		s.Info("line %d", i)
	}

	lines, err := s.Tail(FileAll, 2)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("Tail returned %d lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "line 3") || !strings.Contains(lines[1], "line 4") {
		t.Errorf("Tail returned wrong lines: %v", lines)
	}
}

func TestTailMissingFile(t *testing.T) {
	s := openStore(t)
	lines, err := s.Tail(FileSuccess, 10)
	if err != nil {
		t.Fatalf("Tail on missing file should not error: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("expected empty result, got %v", lines)
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	s := openStore(t)

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Plain log", "all.log", false},
		{"Rotated log", "all.20260829-120000.log", false},
		{"Parent dir", "../all.log", true},
		{"Nested", "sub/all.log", true},
		{"Dotdot inside", "a..b.log", true},
		{"Wrong extension", "config.json", true},
		{"Absolute", "/etc/passwd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Resolve(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("Resolve(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestListOnlyLogFiles(t *testing.T) {
	s := openStore(t)
	s.Info("x")
	os.WriteFile(filepath.Join(s.dir, "notes.txt"), []byte("x"), 0o644)

	files, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for _, f := range files {
		if !strings.HasSuffix(f.Name, ".log") {
			t.Errorf("non-log file listed: %s", f.Name)
		}
	}
}
